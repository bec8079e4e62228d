// Package ui renders terminal output for the animerge CLI.
package ui

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/dustin/go-humanize/english"
	"github.com/mattn/go-isatty"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	// Detect if we're in a terminal
	isTerminal   = isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
	colorEnabled = os.Getenv("NO_COLOR") == ""

	out io.Writer = os.Stdout
	in  io.Reader = os.Stdin

	upper = cases.Upper(language.Und)
)

// SetOutput redirects all ui output, returning the previous writer.
func SetOutput(w io.Writer) io.Writer {
	prev := out
	out = w
	return prev
}

// Output returns the writer ui prints to.
func Output() io.Writer {
	return out
}

// SetInput replaces the reader Confirm reads answers from.
func SetInput(r io.Reader) {
	in = r
}

// DisableColors disables all color output
func DisableColors() {
	colorEnabled = false
	isTerminal = false
	initStyles()
}

// EnableColors enables color output
func EnableColors() {
	colorEnabled = true
	isTerminal = isatty.IsTerminal(os.Stdout.Fd())
	initStyles()
}

// IsTerminal checks if stdout is a terminal
func IsTerminal() bool {
	return isTerminal && colorEnabled
}

// Section prints a section header
func Section(title string) {
	fmt.Fprintln(out)
	if IsTerminal() {
		fmt.Fprintln(out, headerStyle.Render("━━━ "+upper.String(title)+" ━━━"))
	} else {
		fmt.Fprintln(out, upper.String(title))
		fmt.Fprintln(out, strings.Repeat("=", len([]rune(title))+6))
	}
}

// Subsection prints a subsection header
func Subsection(title string) {
	fmt.Fprintln(out, "  "+title)
}

// FormatCount formats n with thousands separators
func FormatCount(n int) string {
	return humanize.Comma(int64(n))
}

// FormatAge formats t relative to now, e.g. "3 hours ago"
func FormatAge(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return humanize.Time(t)
}

// FormatDuration formats duration to human-readable format
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%.1fm", d.Minutes())
	}
	return fmt.Sprintf("%.1fh", d.Hours())
}

// Plural returns "1 group" or "3 groups".
func Plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return FormatCount(n) + " " + english.PluralWord(n, noun, "")
}

// Confirm prompts for user confirmation
func Confirm(prompt string) bool {
	if !IsTerminal() {
		// Non-interactive: default to no
		return false
	}
	return confirmFrom(prompt)
}

func confirmFrom(prompt string) bool {
	fmt.Fprint(out, prompt+" (y/N): ")
	line, _ := bufio.NewReader(in).ReadString('\n')
	response := strings.ToLower(strings.TrimSpace(line))
	return response == "y" || response == "yes"
}
