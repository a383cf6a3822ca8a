// Package consolelog is a small, styled logging helper adapted from the
// teacher's pkg/styles: the same default/error/success/info palette
// convention, built on the same charmbracelet/lipgloss library, applied
// to Coordinator and Brokerage log lines instead of recommendation-engine
// output. It is not a pluggable structured-logging subsystem — spec.md
// §1 explicitly names logging as an external collaborator — it is just
// where this codebase's own log lines go through the teacher's console
// styling.
package consolelog

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
)

var (
	defaultStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#F45E6E"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6EF4A1"))
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#6EC4F4"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#F4C56E"))
)

// Level selects which palette entry a line is rendered with.
type Level int

const (
	Default Level = iota
	Info
	Success
	Warn
	Error
)

func styleFor(level Level) lipgloss.Style {
	switch level {
	case Info:
		return infoStyle
	case Success:
		return successStyle
	case Warn:
		return warnStyle
	case Error:
		return errorStyle
	default:
		return defaultStyle
	}
}

// Printf renders format/args at the given level and writes it, newline
// terminated, to stderr — matching the teacher's habit of printing
// operational logs directly rather than through the standard "log"
// package.
func Printf(level Level, format string, args ...any) {
	fmt.Fprintln(os.Stderr, styleFor(level).Render(fmt.Sprintf(format, args...)))
}

func Info_(format string, args ...any)    { Printf(Info, format, args...) }
func Success_(format string, args ...any) { Printf(Success, format, args...) }
func Warn_(format string, args ...any)    { Printf(Warn, format, args...) }
func Error_(format string, args ...any)   { Printf(Error, format, args...) }
