package progress

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var (
	borderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("99")).
			Padding(0, 1)
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true)
	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Bold(true)
	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86"))
	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))
)

// Summary is the end-of-run report printed by the CLI
type Summary struct {
	Dataset   string
	Path      string
	Collected int
	Existing  int
	Added     int
	Total     int
	Scrolls   int
	Elapsed   time.Duration
	// Partial is set when the records come from a failed run
	Partial bool
}

// Render lays the summary out as a bordered label/value panel
func (s Summary) Render() string {
	rows := []struct {
		label string
		value string
	}{
		{"Dataset", s.Dataset},
		{"File", s.Path},
		{"Collected", fmt.Sprintf("%d", s.Collected)},
		{"Already stored", fmt.Sprintf("%d", s.Existing)},
		{"Added", fmt.Sprintf("%d", s.Added)},
		{"Total", fmt.Sprintf("%d", s.Total)},
		{"Scrolls", fmt.Sprintf("%d", s.Scrolls)},
		{"Elapsed", s.Elapsed.Round(time.Second).String()},
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Harvest summary"))
	b.WriteString("\n")
	for _, row := range rows {
		b.WriteString(labelStyle.Render(fmt.Sprintf("%-15s", row.label)))
		b.WriteString(valueStyle.Render(row.value))
		b.WriteString("\n")
	}
	if s.Partial {
		b.WriteString(warnStyle.Render("run failed, partial records were saved"))
		b.WriteString("\n")
	}
	return borderStyle.Render(strings.TrimSuffix(b.String(), "\n"))
}
