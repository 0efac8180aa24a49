package errors

import (
	stdErrors "errors"
	"fmt"
)

// Operation identifies the logical operation producing a contextual error.
type Operation string

const (
	// OperationStatusCheck denotes repository classification.
	OperationStatusCheck Operation = "repo.status.check"
	// OperationFetch denotes fetching from origin.
	OperationFetch Operation = "repo.fetch"
	// OperationPull denotes pulling from origin.
	OperationPull Operation = "repo.pull"
	// OperationTrack denotes adding a repository to the tracking store.
	OperationTrack Operation = "tracking.track"
	// OperationUntrack denotes removing a repository from the tracking store.
	OperationUntrack Operation = "tracking.untrack"
	// OperationIgnore denotes setting the ignore flag on a tracked repository.
	OperationIgnore Operation = "tracking.ignore"
	// OperationUnignore denotes clearing the ignore flag on a tracked repository.
	OperationUnignore Operation = "tracking.unignore"
	// OperationUpdate denotes refreshing the recorded origin URL.
	OperationUpdate Operation = "tracking.update"
	// OperationStoreLoad denotes reading the tracking store file.
	OperationStoreLoad Operation = "tracking.load"
	// OperationStoreSave denotes rewriting the tracking store file.
	OperationStoreSave Operation = "tracking.save"
	// OperationPathResolve denotes canonicalizing and validating a repository path.
	OperationPathResolve Operation = "repo.path.resolve"
)

// Sentinel describes a stable error code shared across executors.
type Sentinel string

// Error returns the sentinel code string.
func (sentinel Sentinel) Error() string {
	return string(sentinel)
}

// Code exposes the sentinel code string.
func (sentinel Sentinel) Code() string {
	return string(sentinel)
}

// OperationError annotates an error with the operation and the repository path it concerns.
type OperationError struct {
	operation Operation
	subject   string
	err       error
	message   string
}

// Error implements the error interface.
func (operationError OperationError) Error() string {
	if len(operationError.message) > 0 {
		if len(operationError.subject) == 0 {
			return fmt.Sprintf("%s: %s", operationError.operation, operationError.message)
		}
		return fmt.Sprintf("%s[%s]: %s", operationError.operation, operationError.subject, operationError.message)
	}
	if len(operationError.subject) == 0 {
		return fmt.Sprintf("%s: %v", operationError.operation, operationError.err)
	}
	return fmt.Sprintf("%s[%s]: %v", operationError.operation, operationError.subject, operationError.err)
}

// Unwrap exposes the underlying error chain.
func (operationError OperationError) Unwrap() error {
	return operationError.err
}

// Operation returns the originating operation identifier.
func (operationError OperationError) Operation() Operation {
	return operationError.operation
}

// Subject returns the repository path related to the error.
func (operationError OperationError) Subject() string {
	return operationError.subject
}

// Code surfaces the sentinel code of the wrapped error when present.
func (operationError OperationError) Code() string {
	if coder, found := findSentinel(operationError.err); found {
		return coder.Code()
	}
	return ""
}

// Message exposes the formatted message when provided via WrapMessage.
func (operationError OperationError) Message() string {
	return operationError.message
}

// Wrap constructs an OperationError combining the provided metadata with the base sentinel.
// The detail error stays reachable through errors.Is and errors.As.
func Wrap(operation Operation, subject string, sentinel Sentinel, detail error) error {
	if len(sentinel) == 0 {
		return OperationError{operation: operation, subject: subject, err: detail}
	}
	baseError := error(sentinel)
	if detail != nil {
		baseError = fmt.Errorf("%w: %w", sentinel, detail)
	}
	return OperationError{operation: operation, subject: subject, err: baseError}
}

// WrapMessage constructs an OperationError combining the provided metadata with a formatted message.
func WrapMessage(operation Operation, subject string, sentinel Sentinel, message string) error {
	if len(message) == 0 {
		return Wrap(operation, subject, sentinel, nil)
	}
	return OperationError{operation: operation, subject: subject, err: fmt.Errorf("%w: %s", sentinel, message), message: message}
}

func findSentinel(err error) (Sentinel, bool) {
	if err == nil {
		return "", false
	}
	var sentinel Sentinel
	if stdErrors.As(err, &sentinel) {
		return sentinel, true
	}
	return "", false
}

var (
	// ErrProbeFailed indicates a git invocation returned an unexpected exit code.
	ErrProbeFailed Sentinel = "probe_failed"
	// ErrUserInput indicates a path argument or requested action was invalid.
	ErrUserInput Sentinel = "user_input_invalid"
	// ErrConfigInconsistent indicates the recorded configuration disagrees with the working copy.
	ErrConfigInconsistent Sentinel = "config_inconsistent"
	// ErrStoreUnavailable indicates the tracking store could not be read or written.
	ErrStoreUnavailable Sentinel = "store_unavailable"
	// ErrFetchFailed indicates a git fetch step failed.
	ErrFetchFailed Sentinel = "fetch_failed"
	// ErrPullFailed indicates a git pull step failed.
	ErrPullFailed Sentinel = "pull_failed"
	// ErrRepositoryMissing indicates the repository path does not exist.
	ErrRepositoryMissing Sentinel = "repository_missing"
	// ErrNotGitRepository indicates the path exists but holds no git metadata.
	ErrNotGitRepository Sentinel = "not_git_repository"
)
