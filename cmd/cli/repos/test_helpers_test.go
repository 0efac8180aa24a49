package repos_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	repos "github.com/tyemirov/gitstat/cmd/cli/repos"
	"github.com/tyemirov/gitstat/internal/execshell"
	"github.com/tyemirov/gitstat/internal/tracking"
)

const (
	testStoreFileNameConstant  = "gitstat.yaml"
	testRevisionAConstant      = "1111111111111111111111111111111111111111"
	testRevisionBConstant      = "2222222222222222222222222222222222222222"
	testNoUpstreamStderr       = "fatal: no upstream configured for branch 'main'\n"
	testNotRepositoryStderr    = "fatal: not a git repository (or any of the parent directories): .git\n"
	testFetchFailureStderr     = "fatal: unable to access 'https://example.com/alpha.git/'\n"
	testPullFailureStderr      = "error: cannot pull with rebase: You have unstaged changes.\n"
	testGitFailureExitCode     = 1
	testGitFatalExitCode       = 128
	testOriginURLArguments     = "config --get remote.origin.url"
	testLocalRevisionArguments = "rev-parse @"
	testUpstreamArguments      = "rev-parse @{u}"
	testMergeBaseArguments     = "merge-base @ @{u}"
	testUnstagedArguments      = "diff-files --quiet --ignore-submodules"
	testStagedArguments        = "diff-index --cached --quiet HEAD --ignore-submodules"
	testUntrackedArguments     = "ls-files -o --exclude-standard"
	testUnpushedArguments      = "diff --quiet @{u}.."
	testFetchArguments         = "fetch --quiet"
	testPullArguments          = "pull --quiet"
)

// fakeRepository describes the answers git gives for one working copy. A zero value is a
// clean repository in sync with its upstream.
type fakeRepository struct {
	originURL      string
	localRevision  string
	remoteRevision string
	mergeBase      string
	noUpstream     bool
	unstaged       bool
	staged         bool
	untrackedFiles string
	unpushed       bool
	fetchFailure   string
	pullFailure    string
}

type fakeGitExecutor struct {
	mutex        sync.Mutex
	repositories map[string]*fakeRepository
	commands     []execshell.CommandDetails
}

func (executor *fakeGitExecutor) ExecuteGit(_ context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error) {
	executor.mutex.Lock()
	defer executor.mutex.Unlock()
	executor.commands = append(executor.commands, details)

	repository, found := executor.repositories[details.WorkingDirectory]
	if !found {
		return failedGitCommand(details, testGitFatalExitCode, "", testNotRepositoryStderr)
	}

	switch strings.Join(details.Arguments, " ") {
	case testOriginURLArguments:
		if len(repository.originURL) == 0 {
			return failedGitCommand(details, testGitFailureExitCode, "", "")
		}
		return execshell.ExecutionResult{StandardOutput: repository.originURL + "\n"}, nil
	case testLocalRevisionArguments:
		return execshell.ExecutionResult{StandardOutput: revisionOrDefault(repository.localRevision) + "\n"}, nil
	case testUpstreamArguments:
		if repository.noUpstream {
			return failedGitCommand(details, testGitFatalExitCode, "", testNoUpstreamStderr)
		}
		return execshell.ExecutionResult{StandardOutput: revisionOrDefault(repository.remoteRevision) + "\n"}, nil
	case testMergeBaseArguments:
		return execshell.ExecutionResult{StandardOutput: revisionOrDefault(repository.mergeBase) + "\n"}, nil
	case testUnstagedArguments:
		return differenceResult(details, repository.unstaged)
	case testStagedArguments:
		return differenceResult(details, repository.staged)
	case testUnpushedArguments:
		if repository.noUpstream {
			return failedGitCommand(details, testGitFatalExitCode, "", testNoUpstreamStderr)
		}
		return differenceResult(details, repository.unpushed)
	case testUntrackedArguments:
		return execshell.ExecutionResult{StandardOutput: repository.untrackedFiles}, nil
	case testFetchArguments:
		if len(repository.fetchFailure) > 0 {
			return failedGitCommand(details, testGitFailureExitCode, "", repository.fetchFailure)
		}
	case testPullArguments:
		if len(repository.pullFailure) > 0 {
			return failedGitCommand(details, testGitFailureExitCode, "", repository.pullFailure)
		}
	}
	return execshell.ExecutionResult{}, nil
}

func (executor *fakeGitExecutor) invocations(workingDirectory string, arguments string) int {
	executor.mutex.Lock()
	defer executor.mutex.Unlock()
	count := 0
	for _, details := range executor.commands {
		if details.WorkingDirectory == workingDirectory && strings.Join(details.Arguments, " ") == arguments {
			count++
		}
	}
	return count
}

func revisionOrDefault(revision string) string {
	if len(revision) == 0 {
		return testRevisionAConstant
	}
	return revision
}

func differenceResult(details execshell.CommandDetails, differs bool) (execshell.ExecutionResult, error) {
	if differs {
		return failedGitCommand(details, testGitFailureExitCode, "", "")
	}
	return execshell.ExecutionResult{}, nil
}

func failedGitCommand(details execshell.CommandDetails, exitCode int, standardOutput string, standardError string) (execshell.ExecutionResult, error) {
	result := execshell.ExecutionResult{StandardOutput: standardOutput, StandardError: standardError, ExitCode: exitCode}
	return execshell.ExecutionResult{}, execshell.CommandFailedError{
		Command: execshell.ShellCommand{Name: execshell.CommandGit, Details: details},
		Result:  result,
	}
}

type commandHarness struct {
	rootDirectory string
	storePath     string
	executor      *fakeGitExecutor
	builder       *repos.CommandBuilder
}

func newCommandHarness(testInstance *testing.T) *commandHarness {
	testInstance.Helper()
	rootDirectory, resolveError := filepath.EvalSymlinks(testInstance.TempDir())
	require.NoError(testInstance, resolveError)

	harness := &commandHarness{
		rootDirectory: rootDirectory,
		storePath:     filepath.Join(rootDirectory, testStoreFileNameConstant),
		executor:      &fakeGitExecutor{repositories: map[string]*fakeRepository{}},
	}
	harness.builder = &repos.CommandBuilder{
		ConfigurationProvider: func() repos.CommandConfiguration {
			return repos.CommandConfiguration{StorePath: harness.storePath, Workers: 2, Color: "never"}
		},
		GitExecutor: harness.executor,
	}
	return harness
}

// addRepository creates a working copy directory answered by repository and returns its path.
func (harness *commandHarness) addRepository(testInstance *testing.T, name string, repository *fakeRepository) string {
	testInstance.Helper()
	repositoryPath := filepath.Join(harness.rootDirectory, name)
	require.NoError(testInstance, os.MkdirAll(filepath.Join(repositoryPath, ".git"), 0o755))
	harness.executor.repositories[repositoryPath] = repository
	return repositoryPath
}

func (harness *commandHarness) addPlainDirectory(testInstance *testing.T, name string) string {
	testInstance.Helper()
	directoryPath := filepath.Join(harness.rootDirectory, name)
	require.NoError(testInstance, os.MkdirAll(directoryPath, 0o755))
	return directoryPath
}

func (harness *commandHarness) seedStore(testInstance *testing.T, records ...tracking.Repository) {
	testInstance.Helper()
	store := tracking.NewStore(harness.storePath)
	for _, record := range records {
		require.NoError(testInstance, store.Track(record.Path, record.URL))
		if record.Ignored {
			require.NoError(testInstance, store.Ignore(record.Path))
		}
	}
	require.NoError(testInstance, store.Save())
}

func (harness *commandHarness) loadStore(testInstance *testing.T) *tracking.Store {
	testInstance.Helper()
	store, loadError := tracking.Load(harness.storePath)
	require.NoError(testInstance, loadError)
	return store
}

type commandOutput struct {
	standardOutput string
	standardError  string
	err            error
}

func (harness *commandHarness) run(testInstance *testing.T, build func(*repos.CommandBuilder) (*cobra.Command, error), arguments ...string) commandOutput {
	testInstance.Helper()
	command, buildError := build(harness.builder)
	require.NoError(testInstance, buildError)

	standardOutput := &bytes.Buffer{}
	standardError := &bytes.Buffer{}
	command.SetOut(standardOutput)
	command.SetErr(standardError)
	command.SetArgs(arguments)
	command.SilenceUsage = true
	command.SilenceErrors = true
	command.SetContext(context.Background())

	executionError := command.Execute()
	return commandOutput{standardOutput: standardOutput.String(), standardError: standardError.String(), err: executionError}
}
