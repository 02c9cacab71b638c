package report

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/eugenenazirov/boxplan/internal/calculator"
)

var (
	headerStyle   = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle     = lipgloss.NewStyle().Padding(0, 1)
	rejectedStyle = cellStyle.Foreground(lipgloss.Color("9"))
	labelStyle    = lipgloss.NewStyle().Bold(true)
	warningStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)

// Terminal renders the plan for a terminal: a bordered record table, the
// summary block and warnings.
func Terminal(plan calculator.Plan) string {
	rows := Table(plan)

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(Header...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if row >= 0 && row < len(plan.Records) && !plan.Records[row].Accepted() {
				return rejectedStyle
			}
			return cellStyle
		})

	var b strings.Builder
	b.WriteString(t.Render())
	b.WriteString("\n\n")
	for _, line := range Summary(plan) {
		b.WriteString(labelStyle.Render(line.Label + ":"))
		b.WriteString(" ")
		b.WriteString(line.Value)
		b.WriteString("\n")
	}
	for _, w := range plan.Warnings {
		b.WriteString(warningStyle.Render("warning: " + w.Message))
		b.WriteString("\n")
	}
	return b.String()
}
