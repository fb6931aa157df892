// Package ui builds the terminal output surface shared by every command:
// color-mode resolution, the cli.Ui all messages flow through, severity
// badges, and the per-task prefix writer for interleaved task output.
package ui

import (
	"io"
	"os"
	"regexp"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/mitchellh/cli"

	"github.com/lazy-build/lazy/internal/ci"
)

// IsTTY reports whether stdout is attached to a terminal.
var IsTTY = isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())

// IsCI reports whether the process looks non-interactive: a known CI
// vendor, or simply no terminal on stdout.
var IsCI = !IsTTY || ci.IsCi()

// badge renders the reverse-video severity tag used in front of
// user-facing error/warning/info lines.
func badge(text string, fg color.Attribute) string {
	return color.New(color.Bold, fg, color.ReverseVideo).Sprint(" " + text + " ")
}

var (
	ERROR_PREFIX   = badge("ERROR", color.FgRed)
	WARNING_PREFIX = badge("WARNING", color.FgYellow)
	InfoPrefix     = badge("INFO", color.FgWhite)
)

var faint = color.New(color.Faint)

// Dim renders str in the terminal's faint style.
func Dim(str string) string {
	return faint.Sprint(str)
}

// ansiSequence matches CSI/OSC escape sequences (the pattern from the
// ansi-regex package), so suppressed-color output can be scrubbed of
// codes emitted by task commands and by formatting applied before the
// color decision was made.
var ansiSequence = regexp.MustCompile("[\u001B\u009B][[\\]()#;?]*(?:(?:(?:[a-zA-Z\\d]*(?:;[a-zA-Z\\d]*)*)?\u0007)|(?:(?:\\d{1,4}(?:;\\d{0,4})*)?[\\dA-PRZcf-ntqry=><~]))")

// StripAnsi removes every ANSI escape sequence from s.
func StripAnsi(s string) string {
	return ansiSequence.ReplaceAllString(s, "")
}

// ansiScrubber is an io.Writer that strips escape sequences on the way
// through. It always reports len(p) written on success: the scrubbed
// byte count is smaller than the input's, and io.Writer's contract wants
// an error whenever n < len(p).
type ansiScrubber struct {
	out io.Writer
}

func (w *ansiScrubber) Write(p []byte) (int, error) {
	if _, err := w.out.Write(ansiSequence.ReplaceAll(p, nil)); err != nil {
		return 0, err
	}
	return len(p), nil
}

// BuildColoredUi constructs the cli.Ui every command prints through. With
// color suppressed, output and error streams are scrubbed of ANSI codes
// instead of merely not adding new ones.
func BuildColoredUi(colorMode ColorMode) *cli.ColoredUi {
	colorMode = applyColorMode(colorMode)

	var out, errOut io.Writer = os.Stdout, os.Stderr
	if colorMode == ColorModeSuppressed {
		out = &ansiScrubber{out: os.Stdout}
		errOut = &ansiScrubber{out: os.Stderr}
	}

	return &cli.ColoredUi{
		Ui: &cli.BasicUi{
			Reader:      os.Stdin,
			Writer:      out,
			ErrorWriter: errOut,
		},
		OutputColor: cli.UiColorNone,
		InfoColor:   cli.UiColorNone,
		WarnColor:   cli.UiColor{Code: int(color.FgYellow), Bold: false},
		ErrorColor:  cli.UiColorRed,
	}
}
