package report

import (
	"fmt"

	"github.com/ashwinyue/next-linker/internal/service/evaluation"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var (
	titleStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12"))

	headerStyle = lipgloss.NewStyle().
		Bold(true).
		Padding(0, 1).
		Align(lipgloss.Center)

	cellStyle = lipgloss.NewStyle().
		Padding(0, 1).
		Align(lipgloss.Right)

	summaryStyle = cellStyle.
		Foreground(lipgloss.Color("8"))

	borderStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("8"))
)

// RenderTable 渲染终端表格：单元行在前，汇总行在后
func RenderTable(r *evaluation.Report) string {
	units := unitRows(r)
	rows := append(units, summaryRows(r)...)

	t := table.New().
		Headers(header(r)...).
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case row >= len(units):
				return summaryStyle
			case col == 0:
				return cellStyle.Align(lipgloss.Left)
			default:
				return cellStyle
			}
		})

	title := titleStyle.Render(fmt.Sprintf("%s / %s: tp=%d fp=%d fn=%d undecidable=%d",
		r.Resolver, r.Strategy, r.Total.TP, r.Total.FP, r.Total.FN, r.Total.Undecidable))
	return lipgloss.JoinVertical(lipgloss.Left, title, t.String())
}
