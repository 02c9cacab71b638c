package channel

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	// ErrInvalidChannel is returned when a channel name is not part of the table.
	ErrInvalidChannel = errors.New("unknown freight channel")
	// ErrInvalidTable is returned when a rule table is empty, ambiguous or holds non-positive limits.
	ErrInvalidTable = errors.New("invalid channel rule table")
)

// Names of the built-in channels.
const (
	Express = "express"
	Sea     = "sea"
	Air     = "air"
)

// Rule holds the limits a freight channel enforces on one carton.
type Rule struct {
	Name             string   `json:"name" yaml:"name"`
	Aliases          []string `json:"aliases,omitempty" yaml:"aliases"`
	MaxWeight        float64  `json:"maxWeight" yaml:"max_weight"`
	MaxCircumference float64  `json:"maxCircumference" yaml:"max_circumference"`
	VolWeightDivisor float64  `json:"volWeightDivisor" yaml:"vol_weight_divisor"`
}

// Table is an immutable set of channel rules indexed by name and alias.
type Table struct {
	rules map[string]Rule
	index map[string]string
}

var defaultRules = []Rule{
	{Name: Express, Aliases: []string{"快递"}, MaxWeight: 24, MaxCircumference: 290, VolWeightDivisor: 5000},
	{Name: Sea, Aliases: []string{"海运"}, MaxWeight: 22, MaxCircumference: 260, VolWeightDivisor: 6000},
	{Name: Air, Aliases: []string{"空运"}, MaxWeight: 22, MaxCircumference: 260, VolWeightDivisor: 6000},
}

// DefaultTable returns the built-in express, sea and air channels.
func DefaultTable() Table {
	table, err := NewTable(defaultRules)
	if err != nil {
		panic(fmt.Sprintf("default channel table: %v", err))
	}
	return table
}

// NewTable builds a Table from rules. Names and aliases are matched
// case-insensitively and must be unique across the whole table.
func NewTable(rules []Rule) (Table, error) {
	if len(rules) == 0 {
		return Table{}, fmt.Errorf("%w: no channels defined", ErrInvalidTable)
	}

	t := Table{
		rules: make(map[string]Rule, len(rules)),
		index: make(map[string]string, len(rules)*2),
	}
	for _, rule := range rules {
		name := normalize(rule.Name)
		if name == "" {
			return Table{}, fmt.Errorf("%w: channel name is required", ErrInvalidTable)
		}
		if !(rule.MaxWeight > 0) || !(rule.MaxCircumference > 0) || !(rule.VolWeightDivisor > 0) {
			return Table{}, fmt.Errorf("%w: channel %q limits must be positive", ErrInvalidTable, rule.Name)
		}

		rule.Name = name
		rule.Aliases = append([]string(nil), rule.Aliases...)
		for _, key := range append([]string{name}, rule.Aliases...) {
			key = normalize(key)
			if key == "" {
				continue
			}
			if _, dup := t.index[key]; dup {
				return Table{}, fmt.Errorf("%w: duplicate channel name %q", ErrInvalidTable, key)
			}
			t.index[key] = name
		}
		t.rules[name] = rule
	}
	return t, nil
}

// Lookup resolves a channel by name or alias.
func (t Table) Lookup(name string) (Rule, error) {
	key, ok := t.index[normalize(name)]
	if !ok {
		return Rule{}, fmt.Errorf("%w: %q", ErrInvalidChannel, name)
	}
	rule := t.rules[key]
	rule.Aliases = append([]string(nil), rule.Aliases...)
	return rule, nil
}

// Rules returns a copy of every rule sorted by name.
func (t Table) Rules() []Rule {
	out := make([]Rule, 0, len(t.rules))
	for _, rule := range t.rules {
		rule.Aliases = append([]string(nil), rule.Aliases...)
		out = append(out, rule)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Names returns the canonical channel names sorted alphabetically.
func (t Table) Names() []string {
	names := make([]string, 0, len(t.rules))
	for name := range t.rules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type tableFile struct {
	Channels []Rule `yaml:"channels"`
}

// ParseTable decodes a YAML rule file of the form
//
//	channels:
//	  - name: express
//	    aliases: ["快递"]
//	    max_weight: 24
//	    max_circumference: 290
//	    vol_weight_divisor: 5000
func ParseTable(data []byte) (Table, error) {
	var file tableFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return Table{}, fmt.Errorf("parse YAML: %w", err)
	}
	return NewTable(file.Channels)
}

// LoadTable reads and parses a YAML rule file from disk.
func LoadTable(path string) (Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Table{}, fmt.Errorf("read file: %w", err)
	}
	return ParseTable(data)
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
