// Package ui renders CLI output: search results, index summaries, and
// status reports. Color is applied only when writing to an interactive
// terminal and NO_COLOR is unset.
package ui

import (
	"io"
	"os"

	"github.com/mattn/go-isatty"
)

// IsTTY reports whether w is an interactive terminal.
func IsTTY(w io.Writer) bool {
	if w == nil {
		return false
	}
	if f, ok := w.(*os.File); ok {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return false
}

// DetectNoColor reports whether the NO_COLOR convention is in effect.
func DetectNoColor() bool {
	_, exists := os.LookupEnv("NO_COLOR")
	return exists
}

// UseColor decides whether styled output should be used for w.
func UseColor(w io.Writer) bool {
	return IsTTY(w) && !DetectNoColor()
}
