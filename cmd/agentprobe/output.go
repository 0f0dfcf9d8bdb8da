package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/sznuper/agentprobe/internal/runner"
)

type printer struct {
	w                   io.Writer
	ok, fail, warn, dim lipgloss.Style
	slowThreshold       time.Duration
}

// newPrinter styles output only when f is a terminal.
func newPrinter(f *os.File, slowThreshold time.Duration) *printer {
	p := &printer{w: f, slowThreshold: slowThreshold}
	if isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()) {
		p.ok = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
		p.fail = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
		p.warn = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
		p.dim = lipgloss.NewStyle().Faint(true)
	}
	return p
}

func (p *printer) result(r runner.Result) {
	elapsed := p.dim.Render(r.Elapsed().Round(time.Millisecond).String())
	if r.Healthy() {
		fmt.Fprintf(p.w, "%s %s (%s) %s\n", p.ok.Render("✓"), r.Endpoint, r.Kind, elapsed)
		if r.Slow {
			fmt.Fprintf(p.w, "  %s\n", p.warn.Render(fmt.Sprintf("Slow: over %s", p.slowThreshold)))
		}
		return
	}

	fmt.Fprintf(p.w, "%s %s (%s) %s\n", p.fail.Render("✗"), r.Endpoint, r.Kind, elapsed)
	fmt.Fprintf(p.w, "  Address: %s\n", r.Address)
	fmt.Fprintf(p.w, "  Error (%s): %s\n", r.Outcome.Class, r.Outcome.Diagnostic)
	if r.Notified {
		label := "Alert sent"
		if r.DryRun {
			label = "Alert validated (dry run)"
		}
		fmt.Fprintf(p.w, "  %s\n", p.dim.Render(label))
	}
}

func (p *printer) summary(results []runner.Result) {
	status := runner.Status(results)
	style := p.ok
	if !runner.Healthy(results) {
		style = p.fail
	}
	fmt.Fprintf(p.w, "\nHealth check completed. Overall status: %s\n", style.Render(status))
}
