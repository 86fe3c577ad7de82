package output

import (
	"fmt"
	"os"
	"strconv"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// ColorMode represents the color output mode
type ColorMode int

const (
	// ColorAuto enables colors if output is a TTY
	ColorAuto ColorMode = iota
	// ColorAlways forces colors on
	ColorAlways
	// ColorNever disables colors
	ColorNever
)

// Colors holds the color functions for different output types
type Colors struct {
	Time    func(format string, a ...interface{}) string
	Train   func(format string, a ...interface{}) string
	Station func(format string, a ...interface{}) string
	Seats   func(format string, a ...interface{}) string
	Plenty  func(format string, a ...interface{}) string
	Few     func(format string, a ...interface{}) string
	Link    func(format string, a ...interface{}) string
	Error   func(format string, a ...interface{}) string
	Header  func(format string, a ...interface{}) string
	Muted   func(format string, a ...interface{}) string
}

// NewColors creates a new Colors instance based on the color mode
func NewColors(mode ColorMode) *Colors {
	useColors := false
	switch mode {
	case ColorAlways:
		useColors = true
		color.NoColor = false // Force colors on
	case ColorNever:
		useColors = false
	case ColorAuto:
		useColors = isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
	}

	if !useColors {
		noColor := func(format string, a ...interface{}) string {
			if len(a) == 0 {
				return format
			}
			return fmt.Sprintf(format, a...)
		}
		return &Colors{
			Time:    noColor,
			Train:   noColor,
			Station: noColor,
			Seats:   noColor,
			Plenty:  noColor,
			Few:     noColor,
			Link:    noColor,
			Error:   noColor,
			Header:  noColor,
			Muted:   noColor,
		}
	}

	return &Colors{
		Time:    color.New(color.FgWhite, color.Bold).SprintfFunc(),
		Train:   color.New(color.FgCyan, color.Bold).SprintfFunc(),
		Station: color.New(color.FgWhite).SprintfFunc(),
		Seats:   color.New(color.FgMagenta).SprintfFunc(),
		Plenty:  color.New(color.FgGreen, color.Bold).SprintfFunc(),
		Few:     color.New(color.FgYellow).SprintfFunc(),
		Link:    color.New(color.FgBlue, color.Underline).SprintfFunc(),
		Error:   color.New(color.FgRed, color.Bold).SprintfFunc(),
		Header:  color.New(color.FgWhite, color.Bold).SprintfFunc(),
		Muted:   color.New(color.FgHiBlack).SprintfFunc(),
	}
}

// fewThreshold is the remaining count below which totals are highlighted as scarce
const fewThreshold = 5

// FormatTotal formats a remaining-seat label with a fixed 4-char width.
// Capped labels ("≥20") and counts of at least 5 are shown as plentiful.
func (c *Colors) FormatTotal(label string) string {
	n, err := strconv.Atoi(label)
	if err != nil || n >= fewThreshold {
		return c.Plenty("%4s", label)
	}
	return c.Few("%4s", label)
}

// ParseColorMode parses a color mode string
func ParseColorMode(s string) ColorMode {
	switch s {
	case "always":
		return ColorAlways
	case "never":
		return ColorNever
	default:
		return ColorAuto
	}
}
