// Package report renders a computed plan for people: a record table plus a
// summary block, as Markdown or as a styled terminal table.
package report

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/eugenenazirov/boxplan/internal/calculator"
)

// Header is the column order shared by every tabular rendering.
var Header = []string{"SKU-ID", "Quantity", "Unit weight (kg)", "Note"}

// Line is one labelled value of the summary block.
type Line struct {
	Label string
	Value string
}

// Table returns the record rows, without the header, in input order.
func Table(plan calculator.Plan) [][]string {
	rows := make([][]string, 0, len(plan.Records))
	for _, rec := range plan.Records {
		rows = append(rows, []string{
			rec.SKUID,
			strconv.Itoa(rec.Quantity),
			decimal.NewFromFloat(rec.UnitWeight).String(),
			rec.Note,
		})
	}
	return rows
}

// Summary returns the shipment figures rounded half-up to two decimals.
func Summary(plan calculator.Plan) []Line {
	s := plan.Summary
	return []Line{
		{Label: "Channel", Value: plan.Channel.Name},
		{Label: "Estimated total quantity", Value: strconv.Itoa(s.TotalQuantity)},
		{Label: "Estimated gross weight", Value: fixed(s.GrossWeight) + " kg"},
		{Label: "Volumetric weight", Value: fixed(s.VolumetricWeight) + " kg"},
		{Label: "Chargeable weight", Value: fixed(s.ChargeableWeight) + " kg"},
		{Label: "Estimated carton cost", Value: fixed(s.TotalCost)},
		{Label: "Estimated cost per item", Value: fixed(s.CostPerItem)},
	}
}

// Markdown renders the plan as a Markdown table followed by a bullet list
// summary and any warnings.
func Markdown(plan calculator.Plan) string {
	var b strings.Builder

	writeMarkdownRow(&b, Header)
	seps := make([]string, len(Header))
	for i := range seps {
		seps[i] = "---"
	}
	writeMarkdownRow(&b, seps)
	for _, row := range Table(plan) {
		writeMarkdownRow(&b, row)
	}

	b.WriteString("\n")
	for _, line := range Summary(plan) {
		fmt.Fprintf(&b, "- **%s**: %s\n", line.Label, line.Value)
	}
	for _, w := range plan.Warnings {
		fmt.Fprintf(&b, "- **Warning**: %s\n", w.Message)
	}
	return b.String()
}

func writeMarkdownRow(b *strings.Builder, cells []string) {
	b.WriteString("|")
	for _, cell := range cells {
		b.WriteString(" ")
		b.WriteString(strings.ReplaceAll(cell, "|", `\|`))
		b.WriteString(" |")
	}
	b.WriteString("\n")
}

func fixed(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}
