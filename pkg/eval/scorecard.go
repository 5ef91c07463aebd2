package eval

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Result holds one evaluated case's metrics.
type Result struct {
	Case            string  `yaml:"case" json:"case"`
	BoundaryF1      float64 `yaml:"boundary_f1" json:"boundary_f1"`
	SpeechIoU       float64 `yaml:"speech_iou" json:"speech_iou"`
	MicroIPUsPerMin float64 `yaml:"micro_ipus_per_min" json:"micro_ipus_per_min"`
	SwitchesPerMin  float64 `yaml:"switches_per_min" json:"switches_per_min"`
}

// Summary averages metrics across results.
func Summary(results []Result) Result {
	out := Result{Case: "mean"}
	if len(results) == 0 {
		return out
	}
	for _, r := range results {
		out.BoundaryF1 += r.BoundaryF1
		out.SpeechIoU += r.SpeechIoU
		out.MicroIPUsPerMin += r.MicroIPUsPerMin
		out.SwitchesPerMin += r.SwitchesPerMin
	}
	n := float64(len(results))
	out.BoundaryF1 /= n
	out.SpeechIoU /= n
	out.MicroIPUsPerMin /= n
	out.SwitchesPerMin /= n
	return out
}

// scorecard colors
var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00ff9f")).Padding(0, 1)
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00ff9f"))
	rowStyle    = lipgloss.NewStyle()
	meanStyle   = lipgloss.NewStyle().Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#6e7681"))
)

// RenderScorecard formats results as a styled terminal table with a
// trailing mean row.
func RenderScorecard(results []Result) string {
	const format = "%-20s %12s %12s %14s %14s"

	var b strings.Builder
	b.WriteString(titleStyle.Render("scorecard"))
	b.WriteByte('\n')
	b.WriteString(headerStyle.Render(fmt.Sprintf(format,
		"case", "boundary F1", "speech IoU", "micro-IPU/min", "switches/min")))
	b.WriteByte('\n')
	b.WriteString(dimStyle.Render(strings.Repeat("─", 76)))
	b.WriteByte('\n')

	writeRow := func(style lipgloss.Style, r Result) {
		b.WriteString(style.Render(fmt.Sprintf(format,
			r.Case,
			fmt.Sprintf("%.3f", r.BoundaryF1),
			fmt.Sprintf("%.3f", r.SpeechIoU),
			fmt.Sprintf("%.2f", r.MicroIPUsPerMin),
			fmt.Sprintf("%.2f", r.SwitchesPerMin))))
		b.WriteByte('\n')
	}
	for _, r := range results {
		writeRow(rowStyle, r)
	}
	if len(results) > 1 {
		b.WriteString(dimStyle.Render(strings.Repeat("─", 76)))
		b.WriteByte('\n')
		writeRow(meanStyle, Summary(results))
	}
	return b.String()
}
