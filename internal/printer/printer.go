// Package printer writes the human-facing output of kasm commands. Diagnostics
// go through zap; everything a user is meant to read goes through here.
package printer

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/fatih/color"
)

func init() {
	// Force color output even when not connected to TTY
	// Users can disable with NO_COLOR environment variable
	if os.Getenv("NO_COLOR") == "" {
		color.NoColor = false
	}
}

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed, color.Bold)
	cyan   = color.New(color.FgCyan)
	faint  = color.New(color.Faint)

	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

// SetOutput redirects printer output and returns a function restoring the
// previous writers. Used by command tests.
func SetOutput(out, errOut io.Writer) (restore func()) {
	prevOut, prevErr := stdout, stderr
	stdout, stderr = out, errOut
	return func() { stdout, stderr = prevOut, prevErr }
}

// Success prints a success line in green with a checkmark prefix
func Success(format string, a ...any) {
	green.Fprintf(stdout, "✓ %s\n", fmt.Sprintf(format, a...))
}

// Info prints an informational line in the default color
func Info(format string, a ...any) {
	fmt.Fprintf(stdout, format+"\n", a...)
}

// Warning prints a warning line in yellow
func Warning(format string, a ...any) {
	yellow.Fprintf(stderr, "⚠️  %s\n", fmt.Sprintf(format, a...))
}

// Step prints a step line (used in multi-step operations)
func Step(format string, a ...any) {
	cyan.Fprintf(stdout, "→ %s\n", fmt.Sprintf(format, a...))
}

// Item prints an indented list entry with an optional dimmed note.
func Item(text, note string) {
	if note == "" {
		fmt.Fprintf(stdout, "  • %s\n", text)
		return
	}
	fmt.Fprintf(stdout, "  • %s ", text)
	faint.Fprintf(stdout, "(%s)\n", note)
}

// Out returns the writer used for plain command output such as tables.
func Out() io.Writer {
	return stdout
}

// Error prints a formatted error with title, explanation and suggestions to
// stderr and returns a plain error for cobra, which is configured not to print it.
func Error(title string, explanation string, suggestions []string) error {
	return ErrorWithContext(title, explanation, nil, suggestions)
}

// ErrorWithContext is Error with key/value details, printed in key order.
func ErrorWithContext(title string, explanation string, context map[string]string, suggestions []string) error {
	red.Fprintf(stderr, "%s\n\n", title)

	if explanation != "" {
		fmt.Fprintf(stderr, "%s\n", explanation)
	}

	if len(context) > 0 {
		keys := make([]string, 0, len(context))
		for k := range context {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		fmt.Fprintf(stderr, "\n")
		for _, k := range keys {
			fmt.Fprintf(stderr, "  %s: %s\n", k, context[k])
		}
	}

	if len(suggestions) > 0 {
		fmt.Fprintf(stderr, "\n")
		if len(suggestions) == 1 {
			fmt.Fprintf(stderr, "%s\n", suggestions[0])
		} else {
			fmt.Fprintf(stderr, "Either:\n")
			for i, suggestion := range suggestions {
				fmt.Fprintf(stderr, "  %d. %s\n", i+1, suggestion)
			}
		}
	}

	return fmt.Errorf("%s", title)
}
