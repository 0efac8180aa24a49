package report

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/tyemirov/gitstat/internal/gitrepo"
	"github.com/tyemirov/gitstat/internal/repos/status"
)

const (
	labelSeparatorConstant       = ", "
	capturedOutputIndentConstant = "    "
	urlMismatchHintConstant      = "hint: run `gitstat update` to record the current origin URL"
	colorModeErrorTemplate       = "unsupported color mode %q (expected auto, always or never)"
)

// ColorMode controls ANSI styling of report output.
type ColorMode string

const (
	// ColorAuto styles output only when the destination is a terminal.
	ColorAuto ColorMode = "auto"
	// ColorAlways styles output unconditionally.
	ColorAlways ColorMode = "always"
	// ColorNever disables styling.
	ColorNever ColorMode = "never"
)

// ParseColorMode validates a color mode string. An empty value selects ColorAuto.
func ParseColorMode(value string) (ColorMode, error) {
	switch ColorMode(strings.ToLower(strings.TrimSpace(value))) {
	case "", ColorAuto:
		return ColorAuto, nil
	case ColorAlways:
		return ColorAlways, nil
	case ColorNever:
		return ColorNever, nil
	default:
		return "", fmt.Errorf(colorModeErrorTemplate, value)
	}
}

type palette struct {
	path    lipgloss.Style
	sync    lipgloss.Style
	local   lipgloss.Style
	alarm   lipgloss.Style
	clean   lipgloss.Style
	failure lipgloss.Style
	detail  lipgloss.Style
}

func newPalette(renderer *lipgloss.Renderer) palette {
	return palette{
		path:    renderer.NewStyle().Bold(true),
		sync:    renderer.NewStyle().Foreground(lipgloss.Color("3")),
		local:   renderer.NewStyle().Foreground(lipgloss.Color("6")),
		alarm:   renderer.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
		clean:   renderer.NewStyle().Foreground(lipgloss.Color("2")),
		failure: renderer.NewStyle().Foreground(lipgloss.Color("1")),
		detail:  renderer.NewStyle().Faint(true),
	}
}

func (colors palette) forKind(kind status.ChangeKind) lipgloss.Style {
	switch kind {
	case status.ChangePullRequired, status.ChangeUnpushed, status.ChangeNoUpstreamBranch:
		return colors.sync
	case status.ChangeDiverged, status.ChangeURLMismatch, status.ChangeOriginURLError:
		return colors.alarm
	case status.ChangeUpToDate:
		return colors.clean
	default:
		return colors.local
	}
}

// Writer renders status reports to the output stream and diagnostics to a separate error
// stream. It is safe for concurrent use.
type Writer struct {
	mutex        sync.Mutex
	output       io.Writer
	errorOutput  io.Writer
	outputColors palette
	errorColors  palette
}

// NewWriter constructs a Writer for the provided streams.
func NewWriter(output io.Writer, errorOutput io.Writer, mode ColorMode) *Writer {
	if output == nil {
		output = io.Discard
	}
	if errorOutput == nil {
		errorOutput = io.Discard
	}
	return &Writer{
		output:       output,
		errorOutput:  errorOutput,
		outputColors: newPalette(newRenderer(output, mode)),
		errorColors:  newPalette(newRenderer(errorOutput, mode)),
	}
}

func newRenderer(destination io.Writer, mode ColorMode) *lipgloss.Renderer {
	renderer := lipgloss.NewRenderer(destination)
	switch mode {
	case ColorAlways:
		renderer.SetColorProfile(termenv.ANSI)
	case ColorNever:
		renderer.SetColorProfile(termenv.Ascii)
	}
	return renderer
}

// RenderStatuses prints one aligned line per repository: the path followed by its change labels.
func (writer *Writer) RenderStatuses(statuses []status.RepositoryStatus) {
	writer.mutex.Lock()
	defer writer.mutex.Unlock()

	width := 0
	for _, repositoryStatus := range statuses {
		width = max(width, len(repositoryStatus.Path))
	}

	mismatchFound := false
	for _, repositoryStatus := range statuses {
		labels := make([]string, 0, len(repositoryStatus.Changes))
		for _, kind := range repositoryStatus.Changes {
			labels = append(labels, writer.outputColors.forKind(kind).Render(kind.Label()))
			if kind == status.ChangeURLMismatch {
				mismatchFound = true
			}
		}
		paddedPath := repositoryStatus.Path + strings.Repeat(" ", width-len(repositoryStatus.Path))
		fmt.Fprintf(writer.output, "%s  %s\n", writer.outputColors.path.Render(paddedPath), strings.Join(labels, labelSeparatorConstant))
	}

	if mismatchFound {
		fmt.Fprintln(writer.errorOutput, writer.errorColors.detail.Render(urlMismatchHintConstant))
	}
}

// Println writes an unstyled line to the output stream.
func (writer *Writer) Println(message string) {
	writer.mutex.Lock()
	defer writer.mutex.Unlock()
	fmt.Fprintln(writer.output, message)
}

// Printf writes an unstyled formatted message to the output stream.
func (writer *Writer) Printf(format string, arguments ...any) {
	writer.mutex.Lock()
	defer writer.mutex.Unlock()
	fmt.Fprintf(writer.output, format, arguments...)
}

// Warn writes a styled line to the error stream.
func (writer *Writer) Warn(message string) {
	writer.mutex.Lock()
	defer writer.mutex.Unlock()
	fmt.Fprintln(writer.errorOutput, writer.errorColors.failure.Render(message))
}

// ReportError writes a failure to the error stream. Output captured from a failed git command
// follows the message, stdout first.
func (writer *Writer) ReportError(failure error) {
	if failure == nil {
		return
	}
	writer.mutex.Lock()
	defer writer.mutex.Unlock()

	fmt.Fprintln(writer.errorOutput, writer.errorColors.failure.Render(failure.Error()))

	var probeError gitrepo.ProbeError
	if !errors.As(failure, &probeError) {
		return
	}
	standardOutput, standardError := probeError.CapturedOutput()
	for _, captured := range []string{standardOutput, standardError} {
		trimmed := strings.TrimRight(captured, "\n")
		if len(strings.TrimSpace(trimmed)) == 0 {
			continue
		}
		for _, line := range strings.Split(trimmed, "\n") {
			fmt.Fprintln(writer.errorOutput, writer.errorColors.detail.Render(capturedOutputIndentConstant+line))
		}
	}
}

// ReportDiagnostic writes a non-fatal problem to the error stream.
func (writer *Writer) ReportDiagnostic(diagnostic error) {
	writer.ReportError(diagnostic)
}
