// Package channel defines the freight channel rule table: the weight cap,
// girth cap and volumetric divisor each channel applies to a single carton.
// Tables are immutable values so callers can inject alternate rule sets.
package channel
