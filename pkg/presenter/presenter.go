// Package presenter writes user-facing CLI output: status lines, section
// headers, tables and key/value listings, colored when the terminal allows.
package presenter

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
)

// Presenter is the CLI output surface used by the commands
type Presenter interface {
	Error(err error, context string)
	Success(message string)
	Warning(message string)
	Info(message string)
	Section(title string)
	Table(headers []string, rows [][]string)
	KeyValues(pairs map[string]string)
	Separator()
	SetQuiet(quiet bool)
	IsQuiet() bool
}

// ColorMode controls whether output is colored
type ColorMode int

const (
	// ColorAuto leaves detection to the color package
	ColorAuto ColorMode = iota
	// ColorAlways forces color
	ColorAlways
	// ColorNever disables color
	ColorNever
)

// TerminalPresenter writes to a terminal or any pair of writers
type TerminalPresenter struct {
	output      io.Writer
	errorOutput io.Writer
	colorMode   ColorMode
	quiet       bool
}

// New creates a presenter on stdout/stderr
func New() *TerminalPresenter {
	return NewWithOptions(os.Stdout, os.Stderr, detectColorMode())
}

// NewWithOptions creates a presenter on the given writers
func NewWithOptions(output, errorOutput io.Writer, colorMode ColorMode) *TerminalPresenter {
	switch colorMode {
	case ColorAlways:
		color.NoColor = false
	case ColorNever:
		color.NoColor = true
	}
	return &TerminalPresenter{
		output:      output,
		errorOutput: errorOutput,
		colorMode:   colorMode,
	}
}

// detectColorMode honours NO_COLOR and SKILLET_COLOR
func detectColorMode() ColorMode {
	if os.Getenv("NO_COLOR") != "" {
		return ColorNever
	}
	switch os.Getenv("SKILLET_COLOR") {
	case "always", "force":
		return ColorAlways
	case "never", "off":
		return ColorNever
	default:
		return ColorAuto
	}
}

// Error writes an error to stderr; it is shown even in quiet mode
func (p *TerminalPresenter) Error(err error, context string) {
	if err == nil {
		return
	}
	errorColor := color.New(color.FgRed, color.Bold)
	if context != "" {
		errorColor.Fprintf(p.errorOutput, "[ERROR] %s: %v\n", context, err)
		return
	}
	errorColor.Fprintf(p.errorOutput, "[ERROR] %v\n", err)
}

func (p *TerminalPresenter) Success(message string) {
	if p.quiet {
		return
	}
	color.New(color.FgGreen, color.Bold).Fprintf(p.output, "✓ %s\n", message)
}

func (p *TerminalPresenter) Warning(message string) {
	if p.quiet {
		return
	}
	color.New(color.FgYellow, color.Bold).Fprintf(p.output, "⚠ %s\n", message)
}

func (p *TerminalPresenter) Info(message string) {
	if p.quiet {
		return
	}
	fmt.Fprintln(p.output, message)
}

// Section writes an underlined header
func (p *TerminalPresenter) Section(title string) {
	if p.quiet {
		return
	}
	headerColor := color.New(color.Bold)
	headerColor.Fprintln(p.output, title)
	headerColor.Fprintln(p.output, strings.Repeat("-", len(title)))
}

// Table writes rows aligned under bold headers
func (p *TerminalPresenter) Table(headers []string, rows [][]string) {
	if p.quiet {
		return
	}
	w := tabwriter.NewWriter(p.output, 0, 0, 2, ' ', 0)
	if len(headers) > 0 {
		fmt.Fprintln(w, color.New(color.Bold).Sprint(strings.Join(headers, "\t")))
	}
	for _, row := range rows {
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	w.Flush()
}

// KeyValues writes sorted "key: value" lines with the keys aligned
func (p *TerminalPresenter) KeyValues(pairs map[string]string) {
	if p.quiet {
		return
	}
	keys := make([]string, 0, len(pairs))
	for k := range pairs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	keyColor := color.New(color.FgCyan)
	w := tabwriter.NewWriter(p.output, 0, 0, 1, ' ', 0)
	for _, k := range keys {
		fmt.Fprintf(w, "%s\t%s\n", keyColor.Sprint(k+":"), pairs[k])
	}
	w.Flush()
}

func (p *TerminalPresenter) Separator() {
	if p.quiet {
		return
	}
	color.New(color.Faint).Fprintln(p.output, strings.Repeat("-", 60))
}

func (p *TerminalPresenter) SetQuiet(quiet bool) {
	p.quiet = quiet
}

func (p *TerminalPresenter) IsQuiet() bool {
	return p.quiet
}

var defaultPresenter Presenter = New()

// Error writes an error with the default presenter
func Error(err error, context string) { defaultPresenter.Error(err, context) }

// Success writes a success line with the default presenter
func Success(message string) { defaultPresenter.Success(message) }

// Warning writes a warning with the default presenter
func Warning(message string) { defaultPresenter.Warning(message) }

// Info writes a plain line with the default presenter
func Info(message string) { defaultPresenter.Info(message) }

// Section writes a header with the default presenter
func Section(title string) { defaultPresenter.Section(title) }

// Table writes a table with the default presenter
func Table(headers []string, rows [][]string) { defaultPresenter.Table(headers, rows) }

// KeyValues writes key/value lines with the default presenter
func KeyValues(pairs map[string]string) { defaultPresenter.KeyValues(pairs) }

// Separator writes a rule with the default presenter
func Separator() { defaultPresenter.Separator() }

// SetQuiet toggles quiet mode on the default presenter
func SetQuiet(quiet bool) { defaultPresenter.SetQuiet(quiet) }

// IsQuiet reports quiet mode of the default presenter
func IsQuiet() bool { return defaultPresenter.IsQuiet() }
