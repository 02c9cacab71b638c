package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eugenenazirov/boxplan/internal/calculator"
	"github.com/eugenenazirov/boxplan/internal/sheet"
)

func writeSheet(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "skus.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func planArgs(input string, extra ...string) []string {
	args := []string{"plan", input, "--channel", "express",
		"--length", "60", "--width", "50", "--height", "40", "--tare", "1.35", "--price", "16"}
	return append(args, extra...)
}

func TestRunPlanJSON(t *testing.T) {
	t.Parallel()

	input := writeSheet(t, "SKU-ID,L,W,H,Weight\nSKU1,20,15,10,2\nSKU2,70,60,50,10\n")
	var out bytes.Buffer

	require.NoError(t, run(planArgs(input, "--format", "json"), &out))

	var plan calculator.Plan
	require.NoError(t, json.Unmarshal(out.Bytes(), &plan))
	require.Len(t, plan.Records, 2)
	assert.True(t, plan.Records[0].Accepted())
	assert.False(t, plan.Records[1].Accepted())
	assert.Equal(t, "express", plan.Channel.Name)
}

func TestRunPlanMarkdownAndOutputFile(t *testing.T) {
	t.Parallel()

	input := writeSheet(t, "SKU1,20,15,10,2\n")
	outPath := filepath.Join(t.TempDir(), "plan.xlsx")
	var out bytes.Buffer

	require.NoError(t, run(planArgs(input, "--format", "markdown", "--out", outPath), &out))

	assert.Contains(t, out.String(), "| SKU1 |")
	info, err := os.Stat(outPath)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestRunPlanTable(t *testing.T) {
	t.Parallel()

	input := writeSheet(t, "SKU1,20,15,10,2\n")
	var out bytes.Buffer

	require.NoError(t, run(planArgs(input), &out))
	assert.Contains(t, out.String(), "SKU1")
	assert.Contains(t, out.String(), "Chargeable weight")
}

func TestRunPlanErrors(t *testing.T) {
	t.Parallel()

	input := writeSheet(t, "SKU1,20,15,10,2\n")

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"unknown channel", []string{"plan", input, "--channel", "rail", "--length", "1", "--width", "1", "--height", "1", "--price", "1"}, "rail"},
		{"bad band", planArgs(input, "--min", "10", "--max", "5"), "quantity band"},
		{"bad output extension", planArgs(input, "--out", filepath.Join(t.TempDir(), "plan.pdf")), "unsupported"},
		{"missing price", []string{"plan", input, "--channel", "air", "--length", "1", "--width", "1", "--height", "1"}, "price"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := run(tt.args, &bytes.Buffer{})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestRunTemplate(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "template.xlsx")
	var out bytes.Buffer
	require.NoError(t, run([]string{"template", path}, &out))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := sheet.Parse(path, f)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "SKU-001", rows[0][0])
	assert.True(t, strings.HasPrefix(out.String(), "template written"))
}

func TestRunChannels(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	require.NoError(t, run([]string{"channels"}, &out))
	for _, name := range []string{"express", "sea", "air"} {
		assert.Contains(t, out.String(), name)
	}

	path := filepath.Join(t.TempDir(), "channels.yaml")
	require.NoError(t, os.WriteFile(path, []byte("channels:\n  - name: rail\n    max_weight: 30\n    max_circumference: 300\n    vol_weight_divisor: 4000\n"), 0o600))

	out.Reset()
	require.NoError(t, run([]string{"--channels", path, "channels"}, &out))
	assert.Contains(t, out.String(), "rail")
	assert.NotContains(t, out.String(), "express")
}

func TestRunPlanSaveAndHistory(t *testing.T) {
	t.Parallel()

	input := writeSheet(t, "SKU1,20,15,10,2\n")
	dbPath := filepath.Join(t.TempDir(), "plans.db")
	var out bytes.Buffer

	require.NoError(t, run(planArgs(input, "--format", "markdown", "--save", dbPath), &out))
	assert.Contains(t, out.String(), "plan saved as ")

	out.Reset()
	require.NoError(t, run([]string{"history", dbPath}, &out))
	assert.Contains(t, out.String(), "express")
	assert.Contains(t, out.String(), "cli")
	assert.Contains(t, out.String(), "1/1")
}
