// Package cliui provides reusable terminal UI helpers (spinners, step
// indicators, fragment styling) for eventsource CLI commands.
package cliui

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/papercomputeco/eventsource/pkg/sse"
)

var (
	SuccessMark  = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Render("✓")
	FailMark     = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Render("✗")
	StepStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	KeyStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("75"))
	ValueStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	DimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	spinnerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
)

// kindStyles colors the field name of each fragment kind.
var kindStyles = map[sse.Kind]lipgloss.Style{
	sse.KindComment: DimStyle,
	sse.KindData:    lipgloss.NewStyle().Foreground(lipgloss.Color("82")),
	sse.KindEvent:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("213")),
	sse.KindID:      lipgloss.NewStyle().Foreground(lipgloss.Color("220")),
	sse.KindRetry:   lipgloss.NewStyle().Foreground(lipgloss.Color("208")),
}

var spinnerFrames = []string{"⣾", "⣽", "⣻", "⢿", "⡿", "⣟", "⣯", "⣷"}

// Step prints an animated spinner while fn runs, then replaces it with
// a ✓ or ✗ checkmark and elapsed time.
func Step(w io.Writer, msg string, fn func() error) error {
	done := make(chan struct{})
	stopped := make(chan struct{})
	var mu sync.Mutex

	go func() {
		defer close(stopped)
		frame := 0
		ticker := time.NewTicker(80 * time.Millisecond)
		defer ticker.Stop()

		for {
			mu.Lock()
			fmt.Fprintf(w, "\r  %s %s",
				spinnerStyle.Render(spinnerFrames[frame%len(spinnerFrames)]),
				msg,
			)
			mu.Unlock()

			select {
			case <-done:
				return
			case <-ticker.C:
				frame++
			}
		}
	}()

	start := time.Now()
	err := fn()
	elapsed := time.Since(start)

	close(done)
	<-stopped

	mu.Lock()
	fmt.Fprintf(w, "\r  %s %s %s\n",
		Mark(err),
		msg,
		StepStyle.Render(fmt.Sprintf("(%s)", FormatDuration(elapsed))),
	)
	mu.Unlock()

	return err
}

// Mark returns a ✓ for nil errors or ✗ for non-nil errors.
func Mark(err error) string {
	if err != nil {
		return FailMark
	}
	return SuccessMark
}

// FormatDuration formats a duration for display (e.g. "12ms" or "3.2s").
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

// RenderFragment renders f as a styled "kind  value" line.
func RenderFragment(f sse.Fragment) string {
	style, ok := kindStyles[f.Kind]
	if !ok {
		style = DimStyle
	}
	name := style.Render(fmt.Sprintf("%-7s", f.Kind.String()))
	if f.Kind == sse.KindComment {
		return name + " " + DimStyle.Render(f.Value)
	}
	return name + " " + ValueStyle.Render(f.Value)
}
