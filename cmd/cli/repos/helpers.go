package repos

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tyemirov/gitstat/internal/execshell"
	"github.com/tyemirov/gitstat/internal/gitrepo"
	"github.com/tyemirov/gitstat/internal/progress"
	"github.com/tyemirov/gitstat/internal/report"
	"github.com/tyemirov/gitstat/internal/repos/batch"
	repoerrors "github.com/tyemirov/gitstat/internal/repos/errors"
	"github.com/tyemirov/gitstat/internal/repos/status"
	"github.com/tyemirov/gitstat/internal/tracking"
	"github.com/tyemirov/gitstat/internal/utils"
	pathutils "github.com/tyemirov/gitstat/internal/utils/path"
)

const (
	notFoundMessageConstant           = "not found"
	notGitDirectoryMessageConstant    = "not a git directory"
	alreadyTrackedMessageConstant     = "already being tracked"
	alreadyNotTrackedMessageConstant  = "already not being tracked"
	notTrackedMessageConstant         = "not being tracked"
	isTrackedMessageConstant          = "is being tracked"
	alreadyIgnoredMessageConstant     = "already ignored"
	alreadyUnignoredMessageConstant   = "already un-ignored"
	originURLErrorMessageConstant     = "error getting git URL"
	pathMessageTemplateConstant       = "%s: %s"
	changesFoundMessageConstant       = "changes found"
	noRepositoriesMessageConstant     = "no repositories to check"
	environmentPreparedLogMessage     = "command_environment_prepared"
	pathRejectedLogMessage            = "repository_path_rejected"
	configurationFileLogFieldConstant = "config_file"
	storePathLogFieldConstant         = "store_path"
	trackedCountLogFieldConstant      = "tracked_count"
	repositoryPathLogFieldConstant    = "repository_path"
	errorLogFieldConstant             = "error"
	emptyPathArgumentMessageConstant  = "empty path argument"
)

var (
	// ErrChangesFound is the exit reason of a quiet check that found changes.
	ErrChangesFound = errors.New(changesFoundMessageConstant)
	// ErrNoRepositories is the exit reason of a check with nothing to check.
	ErrNoRepositories = errors.New(noRepositoriesMessageConstant)
)

// ExitStatusError requests a non-zero exit without printing anything further; the command
// already wrote whatever the user needs to see.
type ExitStatusError struct {
	Reason error
}

// Error implements the error interface.
func (exitError ExitStatusError) Error() string {
	if exitError.Reason == nil {
		return ""
	}
	return exitError.Reason.Error()
}

// Unwrap exposes the reason.
func (exitError ExitStatusError) Unwrap() error {
	return exitError.Reason
}

// LoggerProvider yields a zap logger for command execution.
type LoggerProvider func() *zap.Logger

// CommandBuilder assembles the repository commands. GitExecutor replaces the git
// process runner, which tests use to script git output.
type CommandBuilder struct {
	LoggerProvider               LoggerProvider
	HumanReadableLoggingProvider func() bool
	ConfigurationProvider        func() CommandConfiguration
	GitExecutor                  gitrepo.GitCommandExecutor
}

type commandEnvironment struct {
	configuration CommandConfiguration
	logger        *zap.Logger
	store         *tracking.Store
	probe         *gitrepo.RepositoryProbe
	writer        *report.Writer
	sanitizer     *pathutils.RepositoryPathSanitizer
	progressFile  *os.File
}

func (builder *CommandBuilder) resolveConfiguration() CommandConfiguration {
	if builder.ConfigurationProvider == nil {
		return DefaultCommandConfiguration()
	}
	return builder.ConfigurationProvider().sanitize()
}

func (builder *CommandBuilder) humanReadableLogging() bool {
	if builder.HumanReadableLoggingProvider == nil {
		return false
	}
	return builder.HumanReadableLoggingProvider()
}

func (builder *CommandBuilder) prepare(command *cobra.Command) (*commandEnvironment, error) {
	configuration := builder.resolveConfiguration()
	logger := resolveLogger(builder.LoggerProvider)

	contextAccessor := utils.NewCommandContextAccessor()
	if storePath, found := contextAccessor.StorePath(command.Context()); found {
		configuration.StorePath = storePath
	}
	sanitizer := pathutils.NewRepositoryPathSanitizer()
	if storePath, ok := sanitizer.Canonicalize(configuration.StorePath); ok {
		configuration.StorePath = storePath
	}

	colorMode, colorError := report.ParseColorMode(configuration.Color)
	if colorError != nil {
		return nil, colorError
	}

	store, loadError := tracking.Load(configuration.StorePath)
	if loadError != nil {
		return nil, loadError
	}

	executor, executorError := builder.resolveGitExecutor(logger, configuration)
	if executorError != nil {
		return nil, executorError
	}
	probe, probeError := gitrepo.NewRepositoryProbe(executor)
	if probeError != nil {
		return nil, probeError
	}

	configurationFile, _ := contextAccessor.ConfigurationFilePath(command.Context())
	logger.Debug(
		environmentPreparedLogMessage,
		zap.String(configurationFileLogFieldConstant, configurationFile),
		zap.String(storePathLogFieldConstant, store.FilePath()),
		zap.Int(trackedCountLogFieldConstant, store.Len()),
	)

	progressFile, _ := command.ErrOrStderr().(*os.File)
	return &commandEnvironment{
		configuration: configuration,
		logger:        logger,
		store:         store,
		probe:         probe,
		writer:        report.NewWriter(command.OutOrStdout(), command.ErrOrStderr(), colorMode),
		sanitizer:     sanitizer,
		progressFile:  progressFile,
	}, nil
}

func (builder *CommandBuilder) resolveGitExecutor(logger *zap.Logger, configuration CommandConfiguration) (gitrepo.GitCommandExecutor, error) {
	if builder.GitExecutor != nil {
		return builder.GitExecutor, nil
	}
	runner := execshell.NewOSCommandRunner()
	if configuration.CommandTimeout > 0 {
		runner = execshell.NewOSCommandRunnerWithTimeout(configuration.CommandTimeout)
	}
	return execshell.NewShellExecutor(logger, runner, builder.humanReadableLogging())
}

func (environment *commandEnvironment) newRunner() (*batch.Runner, error) {
	classifier, classifierError := status.NewClassifier(environment.probe, environment.store, environment.writer, environment.logger)
	if classifierError != nil {
		return nil, classifierError
	}
	return batch.NewRunner(batch.Config{
		Classifier: classifier,
		Sync:       environment.probe,
		Errors:     environment.writer,
		Progress:   progress.NewBar(environment.progressFile),
		Logger:     environment.logger,
		Workers:    environment.configuration.Workers,
	})
}

// selectRepositoryPaths resolves the repositories a command operates on. Without arguments
// every tracked repository is used. Paths that are missing or are not working copies are
// reported and dropped, as are ignored repositories unless includeIgnored is set.
func (environment *commandEnvironment) selectRepositoryPaths(arguments []string, includeIgnored bool) []string {
	var candidates []string
	if len(arguments) == 0 {
		for _, repository := range environment.store.Repositories(includeIgnored) {
			candidates = append(candidates, repository.Path)
		}
	} else {
		for _, repositoryPath := range environment.sanitizer.Sanitize(arguments) {
			if repository, tracked := environment.store.Lookup(repositoryPath); tracked && repository.Ignored && !includeIgnored {
				continue
			}
			candidates = append(candidates, repositoryPath)
		}
	}

	selected := make([]string, 0, len(candidates))
	for _, repositoryPath := range candidates {
		switch pathutils.Inspect(repositoryPath) {
		case pathutils.PathMissing:
			environment.rejectPath(repositoryPath, notFoundMessageConstant, repoerrors.ErrRepositoryMissing)
		case pathutils.PathNotWorkingCopy:
			environment.rejectPath(repositoryPath, notGitDirectoryMessageConstant, repoerrors.ErrNotGitRepository)
		default:
			selected = append(selected, repositoryPath)
		}
	}
	return selected
}

// canonicalPaths canonicalizes path arguments for the store mutation commands, which act on
// paths whether or not they still exist.
func (environment *commandEnvironment) canonicalPaths(arguments []string) []string {
	paths := make([]string, 0, len(arguments))
	for _, argument := range arguments {
		canonical, valid := environment.sanitizer.Canonicalize(argument)
		if !valid {
			environment.writer.Warn(emptyPathArgumentMessageConstant)
			continue
		}
		paths = append(paths, canonical)
	}
	return paths
}

func (environment *commandEnvironment) rejectPath(repositoryPath string, message string, sentinel repoerrors.Sentinel) {
	environment.writer.Warn(fmt.Sprintf(pathMessageTemplateConstant, message, repositoryPath))
	environment.logger.Warn(
		pathRejectedLogMessage,
		zap.String(repositoryPathLogFieldConstant, repositoryPath),
		zap.Error(repoerrors.Wrap(repoerrors.OperationPathResolve, repositoryPath, sentinel, nil)),
	)
}

// reportUserError prints the user-facing message for a tracking store error and logs it.
func (environment *commandEnvironment) reportUserError(repositoryPath string, failure error) {
	environment.writer.Warn(fmt.Sprintf(pathMessageTemplateConstant, userErrorMessage(failure), repositoryPath))
	environment.logger.Warn(
		pathRejectedLogMessage,
		zap.String(repositoryPathLogFieldConstant, repositoryPath),
		zap.String(errorLogFieldConstant, failure.Error()),
	)
}

func userErrorMessage(failure error) string {
	switch {
	case errors.Is(failure, tracking.ErrAlreadyTracked):
		return alreadyTrackedMessageConstant
	case errors.Is(failure, tracking.ErrAlreadyIgnored):
		return alreadyIgnoredMessageConstant
	case errors.Is(failure, tracking.ErrAlreadyUnignored):
		return alreadyUnignoredMessageConstant
	case errors.Is(failure, tracking.ErrNotTracked):
		return notTrackedMessageConstant
	case errors.Is(failure, repoerrors.ErrRepositoryMissing):
		return notFoundMessageConstant
	case errors.Is(failure, repoerrors.ErrNotGitRepository):
		return notGitDirectoryMessageConstant
	default:
		return failure.Error()
	}
}

func (environment *commandEnvironment) saveIfModified() error {
	if !environment.store.Modified() {
		return nil
	}
	return environment.store.Save()
}

func resolveLogger(provider LoggerProvider) *zap.Logger {
	if provider == nil {
		return zap.NewNop()
	}
	logger := provider()
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

func displayCommandHelp(command *cobra.Command) error {
	if command == nil {
		return nil
	}
	return command.Help()
}

// BuildCommands constructs every repository command.
func (builder *CommandBuilder) BuildCommands() ([]*cobra.Command, error) {
	constructors := []func() (*cobra.Command, error){
		builder.BuildCheckCommand,
		builder.BuildTrackCommand,
		builder.BuildUntrackCommand,
		builder.BuildIgnoreCommand,
		builder.BuildUnignoreCommand,
		builder.BuildUpdateCommand,
		builder.BuildShowCloneCommand,
		builder.BuildFetchCommand,
		builder.BuildPullCommand,
		builder.BuildIsTrackedCommand,
	}
	commands := make([]*cobra.Command, 0, len(constructors))
	for _, construct := range constructors {
		command, buildError := construct()
		if buildError != nil {
			return nil, buildError
		}
		commands = append(commands, command)
	}
	return commands, nil
}
