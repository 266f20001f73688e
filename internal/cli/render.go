package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	valueStyle = lipgloss.NewStyle().Bold(true)
	boxStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1)
)

type row struct {
	label string
	value string
}

// renderPanel 渲染一个带标题的两列面板。
func renderPanel(title string, rows []row) string {
	width := 0
	for _, r := range rows {
		if w := lipgloss.Width(r.label); w > width {
			width = w
		}
	}

	lines := make([]string, 0, len(rows))
	for _, r := range rows {
		label := labelStyle.Width(width).Render(r.label)
		lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top, label, "  ", valueStyle.Render(r.value)))
	}

	body := strings.Join(lines, "\n")
	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, titleStyle.Render(title), "", body))
}

func countRow(label string, n int64, err error) row {
	if err != nil {
		return row{label: label, value: fmt.Sprintf("error: %v", err)}
	}
	return row{label: label, value: fmt.Sprintf("%d", n)}
}
