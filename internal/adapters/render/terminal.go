// Package render paints engine notifications on a terminal.
package render

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/mikey/phish-guard/internal/core"
)

// Terminal writes one block per notification to w. Safe for concurrent use.
type Terminal struct {
	mu sync.Mutex
	w  io.Writer

	warnTitle lipgloss.Style
	bold      lipgloss.Style
	dim       lipgloss.Style
	muted     lipgloss.Style
	success   lipgloss.Style
	errStyle  lipgloss.Style
	unsure    lipgloss.Style
}

// NewTerminal creates a renderer. Colors are only emitted when w is a terminal.
func NewTerminal(w io.Writer) *Terminal {
	r := lipgloss.NewRenderer(w)
	return &Terminal{
		w:         w,
		warnTitle: r.NewStyle().Bold(true).Foreground(lipgloss.Color("#dc2626")),
		bold:      r.NewStyle().Bold(true),
		dim:       r.NewStyle().Foreground(lipgloss.Color("#9ca3af")),
		muted:     r.NewStyle().Foreground(lipgloss.Color("#6b7280")),
		success:   r.NewStyle().Foreground(lipgloss.Color("#16a34a")),
		errStyle:  r.NewStyle().Foreground(lipgloss.Color("#dc2626")),
		unsure:    r.NewStyle().Foreground(lipgloss.Color("#d97706")),
	}
}

func (t *Terminal) ShowWarning(messageID string, warnings []core.Warning) {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", t.warnTitle.Render("⚠ Potential phishing"), t.muted.Render(messageID))
	for i, w := range warnings {
		connector := "├─"
		if i == len(warnings)-1 {
			connector = "└─"
		}
		fmt.Fprintf(&b, "  %s %s\n", t.muted.Render(connector), t.bold.Render(w.Title))
		if w.Details != "" {
			prefix := "  │    "
			if connector == "└─" {
				prefix = "       "
			}
			fmt.Fprintf(&b, "%s%s\n", t.muted.Render(prefix), t.dim.Render(w.Details))
		}
	}
	t.write(b.String())
}

func (t *Terminal) RetractWarning(messageID string) {
	t.write(fmt.Sprintf("%s %s\n", t.success.Render("✓ Warning cleared"), t.muted.Render(messageID)))
}

func (t *Terminal) UpdateCount(n int) {
	t.write(t.dim.Render(fmt.Sprintf("Phishing emails: %d", n)) + "\n")
}

func (t *Terminal) ShowAnalysisResult(payload core.DisplayPayload) {
	if payload.Failed() {
		t.write(fmt.Sprintf("%s %s\n  %s\n",
			t.errStyle.Render("✗ Analysis failed"),
			t.muted.Render(payload.MessageID),
			payload.Summary))
		return
	}
	t.write(fmt.Sprintf("%s %s\n  %s\n",
		t.verdictLabel(payload.Verdict),
		t.muted.Render(payload.MessageID),
		payload.Summary))
}

func (t *Terminal) ShowError(message string) {
	t.write(t.errStyle.Render("✗") + " " + message + "\n")
}

// ShowRules lists rules as name, title and an indented details line
func (t *Terminal) ShowRules(rules []core.Warning) {
	width := 0
	for _, r := range rules {
		if n := lipgloss.Width(r.Rule); n > width {
			width = n
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", t.bold.Render(fmt.Sprintf("Heuristic rules (%d)", len(rules))))
	for _, r := range rules {
		pad := strings.Repeat(" ", width-lipgloss.Width(r.Rule))
		fmt.Fprintf(&b, "  %s%s  %s\n", t.warnTitle.Render(r.Rule), pad, t.bold.Render(r.Title))
		if r.Details != "" {
			fmt.Fprintf(&b, "  %s  %s\n", strings.Repeat(" ", width), t.dim.Render(r.Details))
		}
	}
	t.write(b.String())
}

// Status prints a plain status line, such as a scan summary
func (t *Terminal) Status(line string) {
	t.write(t.success.Render("✓") + " " + line + "\n")
}

func (t *Terminal) verdictLabel(v core.Verdict) string {
	label := "Verdict: " + string(v)
	switch v {
	case core.VerdictScam:
		return t.warnTitle.Render(label)
	case core.VerdictLegit:
		return t.success.Render(label)
	default:
		return t.unsure.Render(label)
	}
}

func (t *Terminal) write(s string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	io.WriteString(t.w, s)
}
