package gitrepo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tyemirov/gitstat/internal/execshell"
	repoerrors "github.com/tyemirov/gitstat/internal/repos/errors"
)

const (
	gitConfigSubcommandConstant            = "config"
	gitConfigGetFlagConstant               = "--get"
	gitOriginURLKeyConstant                = "remote.origin.url"
	gitRevParseSubcommandConstant          = "rev-parse"
	gitHeadShorthandConstant               = "@"
	gitUpstreamShorthandConstant           = "@{u}"
	gitMergeBaseSubcommandConstant         = "merge-base"
	gitUpdateIndexSubcommandConstant       = "update-index"
	gitQuietShortFlagConstant              = "-q"
	gitQuietFlagConstant                   = "--quiet"
	gitIgnoreSubmodulesFlagConstant        = "--ignore-submodules"
	gitRefreshFlagConstant                 = "--refresh"
	gitDiffFilesSubcommandConstant         = "diff-files"
	gitDiffIndexSubcommandConstant         = "diff-index"
	gitCachedFlagConstant                  = "--cached"
	gitHeadReferenceConstant               = "HEAD"
	gitLsFilesSubcommandConstant           = "ls-files"
	gitOthersFlagConstant                  = "-o"
	gitExcludeStandardFlagConstant         = "--exclude-standard"
	gitDiffSubcommandConstant              = "diff"
	gitUnpushedRangeConstant               = "@{u}.."
	gitFetchSubcommandConstant             = "fetch"
	gitPullSubcommandConstant              = "pull"
	gitTerminalPromptEnvironmentConstant   = "GIT_TERMINAL_PROMPT"
	gitTerminalPromptDisabledConstant      = "0"
	noUpstreamConfiguredMarkerConstant     = "no upstream configured"
	gitLocaleEnvironmentConstant           = "LC_ALL"
	gitUntranslatedLocaleConstant          = "C"
	repositoryPathFieldNameConstant        = "repository_path"
	requiredValueMessageConstant           = "value required"
	executorNotConfiguredMessageConstant   = "git executor not configured"
	invalidRepositoryInputTemplateConstant = "%s: %s"
	probeErrorTemplateConstant             = "%s failed for %s"
	probeErrorWithCauseTemplateConstant    = "%s failed for %s: %v"
)

// ProbeOperation names an individual repository probe.
type ProbeOperation string

const (
	// ProbeLocalRevision resolves the checked-out revision.
	ProbeLocalRevision ProbeOperation = "LocalRevision"
	// ProbeRemoteRevision resolves the upstream revision.
	ProbeRemoteRevision ProbeOperation = "RemoteRevision"
	// ProbeMergeBase resolves the common ancestor of HEAD and upstream.
	ProbeMergeBase ProbeOperation = "MergeBase"
	// ProbeRefreshIndex refreshes cached stat information in the index.
	ProbeRefreshIndex ProbeOperation = "RefreshIndex"
	// ProbeFetch fetches from origin.
	ProbeFetch ProbeOperation = "Fetch"
	// ProbePull pulls from origin.
	ProbePull ProbeOperation = "Pull"
)

// GitCommandExecutor exposes the subset of execshell functionality required by RepositoryProbe.
type GitCommandExecutor interface {
	ExecuteGit(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

var (
	// ErrGitExecutorNotConfigured indicates the RepositoryProbe was constructed without a git executor.
	ErrGitExecutorNotConfigured = errors.New(executorNotConfiguredMessageConstant)
)

// InvalidRepositoryInputError indicates validation failures for repository probes.
type InvalidRepositoryInputError struct {
	FieldName string
	Message   string
}

// Error describes the validation failure.
func (inputError InvalidRepositoryInputError) Error() string {
	return fmt.Sprintf(invalidRepositoryInputTemplateConstant, inputError.FieldName, inputError.Message)
}

// ProbeError reports a git invocation that exited unexpectedly. Result holds the captured
// output when git ran to completion.
type ProbeError struct {
	Operation      ProbeOperation
	RepositoryPath string
	Result         execshell.ExecutionResult
	Cause          error
}

// Error describes the probe failure.
func (probeError ProbeError) Error() string {
	if probeError.Cause == nil {
		return fmt.Sprintf(probeErrorTemplateConstant, probeError.Operation, probeError.RepositoryPath)
	}
	return fmt.Sprintf(probeErrorWithCauseTemplateConstant, probeError.Operation, probeError.RepositoryPath, probeError.Cause)
}

// Unwrap exposes the underlying execution error.
func (probeError ProbeError) Unwrap() error {
	return probeError.Cause
}

// Is reports ProbeError as a repoerrors.ErrProbeFailed.
func (probeError ProbeError) Is(target error) bool {
	return target == error(repoerrors.ErrProbeFailed)
}

// CapturedOutput returns the stdout and stderr git produced before failing.
func (probeError ProbeError) CapturedOutput() (string, string) {
	return probeError.Result.StandardOutput, probeError.Result.StandardError
}

// RemoteRevision is the upstream revision of the current branch. Configured is false when
// the branch tracks no upstream; Revision is empty in that case.
type RemoteRevision struct {
	Revision   string
	Configured bool
}

// RepositoryProbe runs single git queries against a working copy.
type RepositoryProbe struct {
	executor GitCommandExecutor
}

// NewRepositoryProbe constructs a RepositoryProbe for the provided executor.
func NewRepositoryProbe(executor GitCommandExecutor) (*RepositoryProbe, error) {
	if executor == nil {
		return nil, ErrGitExecutorNotConfigured
	}
	return &RepositoryProbe{executor: executor}, nil
}

// LocalRevision returns the revision currently checked out.
func (probe *RepositoryProbe) LocalRevision(executionContext context.Context, repositoryPath string) (string, error) {
	return probe.revision(executionContext, repositoryPath, ProbeLocalRevision, gitRevParseSubcommandConstant, gitHeadShorthandConstant)
}

// RemoteRevision returns the revision of the upstream branch.
func (probe *RepositoryProbe) RemoteRevision(executionContext context.Context, repositoryPath string) (RemoteRevision, error) {
	trimmedPath, validationError := requirePath(repositoryPath)
	if validationError != nil {
		return RemoteRevision{}, validationError
	}

	// the no-upstream marker is matched against untranslated output
	executionResult, executionError := probe.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:            []string{gitRevParseSubcommandConstant, gitUpstreamShorthandConstant},
		WorkingDirectory:     trimmedPath,
		EnvironmentVariables: map[string]string{gitLocaleEnvironmentConstant: gitUntranslatedLocaleConstant},
	})
	if executionError != nil {
		captured := capturedResult(executionError)
		if strings.Contains(captured.StandardError, noUpstreamConfiguredMarkerConstant) {
			return RemoteRevision{Configured: false}, nil
		}
		return RemoteRevision{}, ProbeError{Operation: ProbeRemoteRevision, RepositoryPath: trimmedPath, Result: captured, Cause: executionError}
	}
	return RemoteRevision{Revision: strings.TrimSpace(executionResult.StandardOutput), Configured: true}, nil
}

// MergeBase returns the common ancestor of HEAD and its upstream.
func (probe *RepositoryProbe) MergeBase(executionContext context.Context, repositoryPath string) (string, error) {
	return probe.revision(executionContext, repositoryPath, ProbeMergeBase, gitMergeBaseSubcommandConstant, gitHeadShorthandConstant, gitUpstreamShorthandConstant)
}

// RefreshIndex updates cached stat information so later diffs ignore timestamp-only changes.
func (probe *RepositoryProbe) RefreshIndex(executionContext context.Context, repositoryPath string) error {
	_, runError := probe.run(executionContext, repositoryPath, ProbeRefreshIndex, nil,
		gitUpdateIndexSubcommandConstant, gitQuietShortFlagConstant, gitIgnoreSubmodulesFlagConstant, gitRefreshFlagConstant)
	return runError
}

// HasUnstagedChanges reports whether tracked files differ from the index.
func (probe *RepositoryProbe) HasUnstagedChanges(executionContext context.Context, repositoryPath string) bool {
	return probe.differs(executionContext, repositoryPath, gitDiffFilesSubcommandConstant, gitQuietFlagConstant, gitIgnoreSubmodulesFlagConstant)
}

// HasStagedChanges reports whether the index differs from HEAD.
func (probe *RepositoryProbe) HasStagedChanges(executionContext context.Context, repositoryPath string) bool {
	return probe.differs(executionContext, repositoryPath, gitDiffIndexSubcommandConstant, gitCachedFlagConstant, gitQuietFlagConstant, gitHeadReferenceConstant, gitIgnoreSubmodulesFlagConstant)
}

// HasUntrackedFiles reports whether the working tree holds files that are neither tracked nor ignored.
func (probe *RepositoryProbe) HasUntrackedFiles(executionContext context.Context, repositoryPath string) bool {
	executionResult, executionError := probe.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{gitLsFilesSubcommandConstant, gitOthersFlagConstant, gitExcludeStandardFlagConstant},
		WorkingDirectory: strings.TrimSpace(repositoryPath),
	})
	if executionError != nil {
		return false
	}
	return len(strings.TrimSpace(executionResult.StandardOutput)) > 0
}

// HasUnpushedDiff reports whether HEAD differs from the upstream tip.
func (probe *RepositoryProbe) HasUnpushedDiff(executionContext context.Context, repositoryPath string) bool {
	return probe.differs(executionContext, repositoryPath, gitDiffSubcommandConstant, gitQuietFlagConstant, gitUnpushedRangeConstant)
}

// OriginURL returns the configured origin URL. The boolean is false when no origin URL can be read.
func (probe *RepositoryProbe) OriginURL(executionContext context.Context, repositoryPath string) (string, bool) {
	executionResult, executionError := probe.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        []string{gitConfigSubcommandConstant, gitConfigGetFlagConstant, gitOriginURLKeyConstant},
		WorkingDirectory: strings.TrimSpace(repositoryPath),
	})
	if executionError != nil {
		return "", false
	}
	originURL := strings.TrimSpace(executionResult.StandardOutput)
	return originURL, len(originURL) > 0
}

// Fetch downloads objects and refs from origin without touching the working tree.
func (probe *RepositoryProbe) Fetch(executionContext context.Context, repositoryPath string) (string, error) {
	return probe.sync(executionContext, repositoryPath, ProbeFetch, gitFetchSubcommandConstant)
}

// Pull fetches from origin and integrates the upstream branch.
func (probe *RepositoryProbe) Pull(executionContext context.Context, repositoryPath string) (string, error) {
	return probe.sync(executionContext, repositoryPath, ProbePull, gitPullSubcommandConstant)
}

func (probe *RepositoryProbe) sync(executionContext context.Context, repositoryPath string, operation ProbeOperation, subcommand string) (string, error) {
	environment := map[string]string{gitTerminalPromptEnvironmentConstant: gitTerminalPromptDisabledConstant}
	_, runError := probe.run(executionContext, repositoryPath, operation, environment, subcommand, gitQuietFlagConstant)
	return strings.TrimSpace(repositoryPath), runError
}

func (probe *RepositoryProbe) revision(executionContext context.Context, repositoryPath string, operation ProbeOperation, arguments ...string) (string, error) {
	executionResult, runError := probe.run(executionContext, repositoryPath, operation, nil, arguments...)
	if runError != nil {
		return "", runError
	}
	return strings.TrimSpace(executionResult.StandardOutput), nil
}

func (probe *RepositoryProbe) run(executionContext context.Context, repositoryPath string, operation ProbeOperation, environment map[string]string, arguments ...string) (execshell.ExecutionResult, error) {
	trimmedPath, validationError := requirePath(repositoryPath)
	if validationError != nil {
		return execshell.ExecutionResult{}, validationError
	}

	executionResult, executionError := probe.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:            arguments,
		WorkingDirectory:     trimmedPath,
		EnvironmentVariables: environment,
	})
	if executionError != nil {
		return execshell.ExecutionResult{}, ProbeError{
			Operation:      operation,
			RepositoryPath: trimmedPath,
			Result:         capturedResult(executionError),
			Cause:          executionError,
		}
	}
	return executionResult, nil
}

// differs treats every failure as a difference.
func (probe *RepositoryProbe) differs(executionContext context.Context, repositoryPath string, arguments ...string) bool {
	_, executionError := probe.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        arguments,
		WorkingDirectory: strings.TrimSpace(repositoryPath),
	})
	return executionError != nil
}

func requirePath(repositoryPath string) (string, error) {
	trimmedPath := strings.TrimSpace(repositoryPath)
	if len(trimmedPath) == 0 {
		return "", InvalidRepositoryInputError{FieldName: repositoryPathFieldNameConstant, Message: requiredValueMessageConstant}
	}
	return trimmedPath, nil
}

func capturedResult(executionError error) execshell.ExecutionResult {
	var failure execshell.CommandFailedError
	if errors.As(executionError, &failure) {
		return failure.Result
	}
	return execshell.ExecutionResult{}
}
