package execshell

import (
	"fmt"
	"strings"
)

const (
	humanStartedTemplateConstant          = "Running %s"
	humanCompletedTemplateConstant        = "Completed %s"
	humanFailedTemplateConstant           = "%s failed with exit code %d"
	humanFailedWithDetailTemplateConstant = "%s failed with exit code %d: %s"
	humanExecutionFailedTemplateConstant  = "%s failed: %v"
	humanWorkingDirectoryTemplateConstant = "%s (in %s)"
)

// CommandMessageFormatter renders human-readable command lifecycle messages.
type CommandMessageFormatter struct{}

// BuildStartedMessage describes a command that is about to run.
func (formatter CommandMessageFormatter) BuildStartedMessage(command ShellCommand) string {
	return fmt.Sprintf(humanStartedTemplateConstant, formatter.describe(command))
}

// BuildSuccessMessage describes a command that exited cleanly.
func (formatter CommandMessageFormatter) BuildSuccessMessage(command ShellCommand) string {
	return fmt.Sprintf(humanCompletedTemplateConstant, formatter.describe(command))
}

// BuildFailureMessage describes a command that exited with a non-zero status.
func (formatter CommandMessageFormatter) BuildFailureMessage(command ShellCommand, result ExecutionResult) string {
	detail := firstLine(result.StandardError)
	if len(detail) == 0 {
		detail = firstLine(result.StandardOutput)
	}
	if len(detail) == 0 {
		return fmt.Sprintf(humanFailedTemplateConstant, formatter.describe(command), result.ExitCode)
	}
	return fmt.Sprintf(humanFailedWithDetailTemplateConstant, formatter.describe(command), result.ExitCode, detail)
}

// BuildExecutionFailureMessage describes a command the runner could not execute.
func (formatter CommandMessageFormatter) BuildExecutionFailureMessage(command ShellCommand, cause error) string {
	return fmt.Sprintf(humanExecutionFailedTemplateConstant, formatter.describe(command), cause)
}

func (formatter CommandMessageFormatter) describe(command ShellCommand) string {
	parts := append([]string{string(command.Name)}, command.Details.Arguments...)
	description := strings.Join(parts, " ")
	workingDirectory := strings.TrimSpace(command.Details.WorkingDirectory)
	if len(workingDirectory) == 0 {
		return description
	}
	return fmt.Sprintf(humanWorkingDirectoryTemplateConstant, description, workingDirectory)
}

func firstLine(text string) string {
	trimmed := strings.TrimSpace(text)
	if index := strings.IndexByte(trimmed, '\n'); index >= 0 {
		return strings.TrimSpace(trimmed[:index])
	}
	return trimmed
}
