package channel

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTableLookup(t *testing.T) {
	t.Parallel()

	table := DefaultTable()

	tests := []struct {
		input string
		want  Rule
	}{
		{input: "express", want: Rule{Name: Express, MaxWeight: 24, MaxCircumference: 290, VolWeightDivisor: 5000}},
		{input: " SEA ", want: Rule{Name: Sea, MaxWeight: 22, MaxCircumference: 260, VolWeightDivisor: 6000}},
		{input: "空运", want: Rule{Name: Air, MaxWeight: 22, MaxCircumference: 260, VolWeightDivisor: 6000}},
		{input: "快递", want: Rule{Name: Express, MaxWeight: 24, MaxCircumference: 290, VolWeightDivisor: 5000}},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.input, func(t *testing.T) {
			t.Parallel()

			got, err := table.Lookup(tc.input)
			require.NoError(t, err)
			assert.Equal(t, tc.want.Name, got.Name)
			assert.Equal(t, tc.want.MaxWeight, got.MaxWeight)
			assert.Equal(t, tc.want.MaxCircumference, got.MaxCircumference)
			assert.Equal(t, tc.want.VolWeightDivisor, got.VolWeightDivisor)
		})
	}
}

func TestLookupUnknownChannel(t *testing.T) {
	t.Parallel()

	_, err := DefaultTable().Lookup("rail")
	require.ErrorIs(t, err, ErrInvalidChannel)
}

func TestRulesAreSortedCopies(t *testing.T) {
	t.Parallel()

	table := DefaultTable()
	rules := table.Rules()
	require.Len(t, rules, 3)
	assert.Equal(t, []string{Air, Express, Sea}, table.Names())
	assert.Equal(t, Air, rules[0].Name)

	rules[0].Aliases[0] = "mutated"
	again, err := table.Lookup("空运")
	require.NoError(t, err)
	assert.Equal(t, []string{"空运"}, again.Aliases)
}

func TestNewTableRejectsInvalidRules(t *testing.T) {
	t.Parallel()

	cases := map[string][]Rule{
		"empty":         nil,
		"missing name":  {{MaxWeight: 1, MaxCircumference: 1, VolWeightDivisor: 1}},
		"zero weight":   {{Name: "x", MaxCircumference: 1, VolWeightDivisor: 1}},
		"zero divisor":  {{Name: "x", MaxWeight: 1, MaxCircumference: 1}},
		"negative cap":  {{Name: "x", MaxWeight: 1, MaxCircumference: -5, VolWeightDivisor: 1}},
		"duplicate":     {{Name: "x", MaxWeight: 1, MaxCircumference: 1, VolWeightDivisor: 1}, {Name: "X", MaxWeight: 1, MaxCircumference: 1, VolWeightDivisor: 1}},
		"alias clashes": {{Name: "x", MaxWeight: 1, MaxCircumference: 1, VolWeightDivisor: 1}, {Name: "y", Aliases: []string{"x"}, MaxWeight: 1, MaxCircumference: 1, VolWeightDivisor: 1}},
	}

	for name, rules := range cases {
		rules := rules
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := NewTable(rules)
			require.ErrorIs(t, err, ErrInvalidTable)
		})
	}
}

func TestLoadTableFromYAML(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "channels.yaml")
	data := []byte(`channels:
  - name: rail
    aliases: ["train"]
    max_weight: 30
    max_circumference: 300
    vol_weight_divisor: 4000
`)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	table, err := LoadTable(path)
	require.NoError(t, err)

	rule, err := table.Lookup("Train")
	require.NoError(t, err)
	assert.Equal(t, "rail", rule.Name)
	assert.Equal(t, 30.0, rule.MaxWeight)

	_, err = table.Lookup(Express)
	assert.ErrorIs(t, err, ErrInvalidChannel)
}

func TestParseTableRejectsMalformedYAML(t *testing.T) {
	t.Parallel()

	_, err := ParseTable([]byte("channels: ["))
	require.Error(t, err)

	_, err = ParseTable([]byte("channels: []"))
	require.ErrorIs(t, err, ErrInvalidTable)
}
