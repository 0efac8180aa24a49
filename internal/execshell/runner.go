package execshell

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"time"
)

// OSCommandRunner executes commands as child processes of the current process.
type OSCommandRunner struct {
	timeout time.Duration
}

// NewOSCommandRunner constructs a runner without a per-command timeout.
func NewOSCommandRunner() OSCommandRunner {
	return OSCommandRunner{}
}

// NewOSCommandRunnerWithTimeout constructs a runner that kills commands running longer than timeout.
// A non-positive timeout disables the limit.
func NewOSCommandRunnerWithTimeout(timeout time.Duration) OSCommandRunner {
	if timeout < 0 {
		timeout = 0
	}
	return OSCommandRunner{timeout: timeout}
}

// Run executes the command and reports its exit code. A non-zero exit is not an error;
// an error means the process could not be started or was stopped by the context.
func (runner OSCommandRunner) Run(executionContext context.Context, command ShellCommand) (ExecutionResult, error) {
	if len(command.Name) == 0 {
		return ExecutionResult{}, ErrCommandNameMissing
	}
	if executionContext == nil {
		executionContext = context.Background()
	}

	if runner.timeout > 0 {
		var cancel context.CancelFunc
		executionContext, cancel = context.WithTimeout(executionContext, runner.timeout)
		defer cancel()
	}

	process := exec.CommandContext(executionContext, string(command.Name), command.Details.Arguments...)
	process.Dir = command.Details.WorkingDirectory
	if len(command.Details.EnvironmentVariables) > 0 {
		process.Env = mergeEnvironment(os.Environ(), command.Details.EnvironmentVariables)
	}
	if len(command.Details.StandardInput) > 0 {
		process.Stdin = bytes.NewReader(command.Details.StandardInput)
	}

	var standardOutput bytes.Buffer
	var standardError bytes.Buffer
	process.Stdout = &standardOutput
	process.Stderr = &standardError

	runError := process.Run()
	result := ExecutionResult{
		StandardOutput: standardOutput.String(),
		StandardError:  standardError.String(),
	}
	if runError == nil {
		return result, nil
	}

	if contextError := executionContext.Err(); contextError != nil {
		return result, contextError
	}

	var exitError *exec.ExitError
	if errors.As(runError, &exitError) {
		result.ExitCode = exitError.ExitCode()
		return result, nil
	}
	return result, runError
}

func mergeEnvironment(base []string, overrides map[string]string) []string {
	merged := make([]string, 0, len(base)+len(overrides))
	for _, entry := range base {
		name := entry
		for index := 0; index < len(entry); index++ {
			if entry[index] == '=' {
				name = entry[:index]
				break
			}
		}
		if _, overridden := overrides[name]; overridden {
			continue
		}
		merged = append(merged, entry)
	}
	for name, value := range overrides {
		merged = append(merged, name+"="+value)
	}
	return merged
}
