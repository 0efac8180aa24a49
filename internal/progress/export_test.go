package progress

import (
	"io"

	"github.com/muesli/termenv"
)

// NewBarForWriter constructs an always-enabled Bar without color for arbitrary writers.
func NewBarForWriter(output io.Writer) *Bar {
	return newBar(output, true, termenv.Ascii)
}

// Enabled reports whether the bar draws anything.
func (bar *Bar) Enabled() bool {
	return bar.enabled
}
