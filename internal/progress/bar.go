// Package progress draws a single-line progress bar for repository batches on a terminal.
package progress

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	bubblesprogress "github.com/charmbracelet/bubbles/progress"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
)

const (
	barWidthConstant       = 40
	lineTemplateConstant   = "\r%s %d/%d"
	carriageReturnConstant = "\r"
)

// Bar renders batch progress on an error stream. A disabled Bar ignores every call.
type Bar struct {
	mutex      sync.Mutex
	output     io.Writer
	model      bubblesprogress.Model
	enabled    bool
	lastLength int
	highest    int // workers report out of order; never draw below this
}

// NewBar constructs a Bar writing to output. Rendering is enabled only when output is a terminal.
func NewBar(output *os.File) *Bar {
	if output == nil {
		return &Bar{output: io.Discard}
	}
	descriptor := output.Fd()
	terminal := isatty.IsTerminal(descriptor) || isatty.IsCygwinTerminal(descriptor)
	return newBar(output, terminal, termenv.NewOutput(output).ColorProfile())
}

func newBar(output io.Writer, enabled bool, profile termenv.Profile) *Bar {
	return &Bar{
		output:  output,
		enabled: enabled,
		model: bubblesprogress.New(
			bubblesprogress.WithDefaultGradient(),
			bubblesprogress.WithWidth(barWidthConstant),
			bubblesprogress.WithColorProfile(profile),
		),
	}
}

// Start draws an empty bar.
func (bar *Bar) Start(total int) {
	if !bar.enabled {
		return
	}
	bar.mutex.Lock()
	defer bar.mutex.Unlock()
	bar.highest = 0
	bar.draw(0, total)
}

// Advance redraws the bar for completed of total items. A count lower than one already
// drawn keeps the bar where it is.
func (bar *Bar) Advance(completed int, total int) {
	if !bar.enabled {
		return
	}
	bar.mutex.Lock()
	defer bar.mutex.Unlock()
	bar.highest = max(bar.highest, completed)
	bar.draw(bar.highest, total)
}

func (bar *Bar) draw(completed int, total int) {
	percent := 1.0
	if total > 0 {
		percent = float64(completed) / float64(total)
	}
	line := fmt.Sprintf(lineTemplateConstant, bar.model.ViewAs(percent), completed, total)
	bar.lastLength = max(bar.lastLength, len(line)-len(carriageReturnConstant))
	fmt.Fprint(bar.output, line)
}

// Finish erases the bar so later output starts on a clean line.
func (bar *Bar) Finish() {
	if !bar.enabled {
		return
	}
	bar.mutex.Lock()
	defer bar.mutex.Unlock()
	if bar.lastLength == 0 {
		return
	}
	fmt.Fprint(bar.output, carriageReturnConstant+strings.Repeat(" ", bar.lastLength)+carriageReturnConstant)
	bar.lastLength = 0
}
