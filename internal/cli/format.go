package cli

import (
	"fmt"
	"io"
	"strings"

	"charm.land/bubbles/v2/progress"
	"github.com/charmbracelet/lipgloss"
	"github.com/raphaelgruber/jarvis/internal/agent"
	"github.com/raphaelgruber/jarvis/internal/intent"
)

// Theme holds the color scheme for terminal output.
type Theme struct {
	Status  lipgloss.Color
	Success lipgloss.Color
	Error   lipgloss.Color
	Hint    lipgloss.Color
	Warning lipgloss.Color
}

// defaultTheme provides default colors.
var defaultTheme = Theme{
	Status:  lipgloss.Color("#5FAFD7"), // light blue
	Success: lipgloss.Color("#00D787"), // green
	Error:   lipgloss.Color("#FF005F"), // red
	Hint:    lipgloss.Color("#6C6C6C"), // dim gray
	Warning: lipgloss.Color("#FFAF00"), // amber
}

func (t Theme) statusStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Status)
}

func (t Theme) answerStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Success).Bold(true)
}

func (t Theme) errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error).Bold(true)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

func (t Theme) warningStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Warning)
}

// newConfidenceBar creates the bar used to show classification confidence.
func newConfidenceBar() progress.Model {
	return progress.New(
		progress.WithDefaultBlend(),
		progress.WithWidth(20),
	)
}

// intentLine renders "[intent] ▓▓▓░░ 87%".
func (t Theme) intentLine(bar progress.Model, kind intent.Type, confidence float64) string {
	status := t.statusStyle().Render(fmt.Sprintf("[%s]", kind))
	return fmt.Sprintf("%s %s %3.0f%%", status, bar.ViewAs(confidence), confidence*100)
}

// renderResponse builds the display text for one agent answer.
func (t Theme) renderResponse(bar progress.Model, resp *agent.ProcessResponse) string {
	var b strings.Builder
	b.WriteString(t.intentLine(bar, resp.Intent, resp.Confidence))
	b.WriteString("\n")
	b.WriteString(t.answerStyle().Render(resp.Answer))
	b.WriteString("\n")

	if resp.HallucinationWarning != nil {
		b.WriteString(t.warningStyle().Render("⚠ " + *resp.HallucinationWarning))
		b.WriteString("\n")
	}
	if len(resp.Sources) > 0 {
		b.WriteString(t.hintStyle().Render(fmt.Sprintf("Sources (%d):", len(resp.Sources))))
		b.WriteString("\n")
		for _, s := range resp.Sources {
			fmt.Fprintf(&b, "  • %s\n", truncate(s.Text, 120))
		}
	}
	for _, a := range resp.Actions {
		fmt.Fprintf(&b, "  → %s (%s): %s\n", a.Type, a.Status, a.Description)
	}
	return b.String()
}

// printResponse writes an agent answer to w.
func printResponse(w io.Writer, resp *agent.ProcessResponse) {
	fmt.Fprint(w, defaultTheme.renderResponse(newConfidenceBar(), resp))
	if verbose {
		fmt.Fprintln(w, defaultTheme.hintStyle().Render("session: "+resp.SessionID))
	}
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
