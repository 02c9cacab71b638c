// Package config loads runtime configuration from multiple sources (YAML files,
// environment variables, an optional .env file, CLI flags) with precedence:
// CLI flags > YAML config > Environment variables > Defaults. It exposes
// strongly typed settings, including the channel rule table and quantity
// band, to the rest of the application.
package config
