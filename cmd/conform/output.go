package main

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/blackcoderx/conform/pkg/model"
)

// consoleStyles is the plain-text CLI's subset of the teacher's log-entry
// palette (pkg/tui/styles.go), reused directly since both are terminal
// log lines colored by semantic role rather than a TUI's interactive
// chrome — only AccentColor/ErrorColor/SuccessColor/WarningColor/DimColor
// have an analogue in a non-interactive event stream.
type consoleStyles struct {
	accent  lipgloss.Style
	success lipgloss.Style
	failure lipgloss.Style
	warning lipgloss.Style
	dim     lipgloss.Style
}

func newConsoleStyles(enabled bool) consoleStyles {
	mk := func(c lipgloss.Color) lipgloss.Style {
		s := lipgloss.NewStyle().Foreground(c)
		if !enabled {
			return lipgloss.NewStyle()
		}
		return s
	}
	return consoleStyles{
		accent:  mk(lipgloss.Color("#7aa2f7")),
		success: mk(lipgloss.Color("#73daca")),
		failure: mk(lipgloss.Color("#f7768e")),
		warning: mk(lipgloss.Color("#e0af68")),
		dim:     mk(lipgloss.Color("#6c6c6c")),
	}
}

// colorEnabled resolves NO_COLOR/FORCE_COLOR (spec section 6's env vars)
// against the --no-color/--force-color flags, FORCE_COLOR and
// --force-color taking precedence over NO_COLOR per the usual CLI
// convention of "the more specific override wins".
func colorEnabled(f cliFlags) bool {
	if f.forceColor || os.Getenv("FORCE_COLOR") != "" {
		return true
	}
	if f.noColor || os.Getenv("NO_COLOR") != "" {
		return false
	}
	return true
}

// consoleReporter renders Events to w as they arrive, the console
// equivalent of a report writer: one line per ScenarioFinished/Warning/
// NonFatalError/EngineFinished, following spec section 3's event stream
// ordering rather than buffering until the run completes.
type consoleReporter struct {
	w      io.Writer
	styles consoleStyles
}

func newConsoleReporter(w io.Writer, f cliFlags) *consoleReporter {
	return &consoleReporter{w: w, styles: newConsoleStyles(colorEnabled(f))}
}

func (r *consoleReporter) consume(events <-chan *model.Event) *model.Summary {
	var summary *model.Summary
	for ev := range events {
		switch ev.Kind {
		case model.EventEngineStarted:
			fmt.Fprintln(r.w, r.styles.accent.Render("== conform run started =="))
		case model.EventScenarioFinished:
			r.renderScenario(ev)
		case model.EventWarning:
			fmt.Fprintln(r.w, r.styles.warning.Render(fmt.Sprintf("warning: %s (%s)", ev.WarningKind, ev.Operation)))
		case model.EventNonFatalError:
			fmt.Fprintln(r.w, r.styles.failure.Render(fmt.Sprintf("error: %s: %s", ev.Operation, ev.Info)))
		case model.EventEngineFinished:
			summary = ev.FinalSummary
			r.renderSummary(summary)
		}
	}
	return summary
}

func (r *consoleReporter) renderScenario(ev *model.Event) {
	switch ev.Status {
	case model.ScenarioSuccess:
		fmt.Fprintln(r.w, r.styles.success.Render(fmt.Sprintf("PASS  %s", ev.Operation)))
	case model.ScenarioFailure:
		fmt.Fprintln(r.w, r.styles.failure.Render(fmt.Sprintf("FAIL  %s", ev.Operation)))
	case model.ScenarioError:
		fmt.Fprintln(r.w, r.styles.failure.Render(fmt.Sprintf("ERROR %s", ev.Operation)))
	case model.ScenarioSkipped:
		fmt.Fprintln(r.w, r.styles.dim.Render(fmt.Sprintf("SKIP  %s", ev.Operation)))
	case model.ScenarioInterrupted:
		fmt.Fprintln(r.w, r.styles.dim.Render(fmt.Sprintf("STOP  %s", ev.Operation)))
	}
}

func (r *consoleReporter) renderSummary(s *model.Summary) {
	if s == nil {
		return
	}
	line := fmt.Sprintf("== %d/%d operations tested, %s cases, %s failures in %s ==",
		s.OperationsTested, s.OperationsTotal,
		humanize.Comma(int64(s.TotalCases)), humanize.Comma(int64(s.TotalFailures)),
		s.Duration.Round(0))
	if s.TotalFailures > 0 {
		fmt.Fprintln(r.w, r.styles.failure.Render(line))
		return
	}
	fmt.Fprintln(r.w, r.styles.success.Render(line))
}
