package repos

import (
	"fmt"

	"github.com/spf13/cobra"

	flagutils "github.com/tyemirov/gitstat/internal/utils/flags"
	pathutils "github.com/tyemirov/gitstat/internal/utils/path"
)

const (
	fetchCommandUseConstant                  = "fetch [paths...]"
	fetchCommandShortDescriptionConstant     = "Fetch from origin"
	fetchCommandLongDescriptionConstant      = "fetch runs git fetch in every selected repo in parallel. A failed fetch is reported with its git output and does not stop the others."
	pullCommandUseConstant                   = "pull [paths...]"
	pullCommandShortDescriptionConstant      = "Pull from origin (if no local changes)"
	pullCommandLongDescriptionConstant       = "pull runs git pull only in repos whose sole change is a required pull. Hint: run \"gitstat fetch\" first."
	showCloneCommandUseConstant              = "showclone"
	showCloneCommandShortDescriptionConstant = "Show \"git clone\" commands needed to clone missing repos"
	showCloneCommandLongDescriptionConstant  = "showclone prints a git clone command for every tracked repo that is missing on disk."
	includeExistingFlagNameConstant          = "include-existing"
	includeExistingFlagUsageConstant         = "Include repos that already exist"
	pullingMessageTemplateConstant           = "pulling %s"
	cloneCommandTemplateConstant             = "git clone %s %s"
)

// BuildFetchCommand constructs the fetch command.
func (builder *CommandBuilder) BuildFetchCommand() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   fetchCommandUseConstant,
		Short: fetchCommandShortDescriptionConstant,
		Long:  fetchCommandLongDescriptionConstant,
		RunE:  builder.runFetch,
	}
	bindSyncFlags(command)
	return command, nil
}

// BuildPullCommand constructs the pull command.
func (builder *CommandBuilder) BuildPullCommand() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   pullCommandUseConstant,
		Short: pullCommandShortDescriptionConstant,
		Long:  pullCommandLongDescriptionConstant,
		RunE:  builder.runPull,
	}
	bindSyncFlags(command)
	return command, nil
}

func bindSyncFlags(command *cobra.Command) {
	command.Flags().Bool(flagutils.IncludeIgnoredFlagName, false, flagutils.IncludeIgnoredFlagUsage)
	command.Flags().BoolP(progressFlagNameConstant, progressFlagShorthandConstant, false, progressFlagUsageConstant)
}

func (builder *CommandBuilder) runFetch(command *cobra.Command, arguments []string) error {
	environment, repositoryPaths, showProgress, setupError := builder.prepareSync(command, arguments)
	if setupError != nil || len(repositoryPaths) == 0 {
		return setupError
	}
	runner, runnerError := environment.newRunner()
	if runnerError != nil {
		return runnerError
	}
	_, fetchError := runner.FetchAll(command.Context(), repositoryPaths, showProgress)
	return fetchError
}

func (builder *CommandBuilder) runPull(command *cobra.Command, arguments []string) error {
	environment, repositoryPaths, showProgress, setupError := builder.prepareSync(command, arguments)
	if setupError != nil || len(repositoryPaths) == 0 {
		return setupError
	}
	runner, runnerError := environment.newRunner()
	if runnerError != nil {
		return runnerError
	}
	_, pullError := runner.PullSelected(command.Context(), repositoryPaths, showProgress, func(repositoryPath string) {
		environment.writer.Println(fmt.Sprintf(pullingMessageTemplateConstant, repositoryPath))
	})
	return pullError
}

func (builder *CommandBuilder) prepareSync(command *cobra.Command, arguments []string) (*commandEnvironment, []string, bool, error) {
	includeIgnored, includeIgnoredError := command.Flags().GetBool(flagutils.IncludeIgnoredFlagName)
	if includeIgnoredError != nil {
		return nil, nil, false, includeIgnoredError
	}
	showProgress, progressError := command.Flags().GetBool(progressFlagNameConstant)
	if progressError != nil {
		return nil, nil, false, progressError
	}
	environment, prepareError := builder.prepare(command)
	if prepareError != nil {
		return nil, nil, false, prepareError
	}
	return environment, environment.selectRepositoryPaths(arguments, includeIgnored), showProgress, nil
}

// BuildShowCloneCommand constructs the showclone command.
func (builder *CommandBuilder) BuildShowCloneCommand() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   showCloneCommandUseConstant,
		Short: showCloneCommandShortDescriptionConstant,
		Long:  showCloneCommandLongDescriptionConstant,
		Args:  cobra.NoArgs,
		RunE:  builder.runShowClone,
	}
	command.Flags().Bool(includeExistingFlagNameConstant, false, includeExistingFlagUsageConstant)
	command.Flags().Bool(flagutils.IncludeIgnoredFlagName, false, flagutils.IncludeIgnoredFlagUsage)
	return command, nil
}

func (builder *CommandBuilder) runShowClone(command *cobra.Command, _ []string) error {
	includeExisting, includeExistingError := command.Flags().GetBool(includeExistingFlagNameConstant)
	if includeExistingError != nil {
		return includeExistingError
	}
	includeIgnored, includeIgnoredError := command.Flags().GetBool(flagutils.IncludeIgnoredFlagName)
	if includeIgnoredError != nil {
		return includeIgnoredError
	}
	environment, prepareError := builder.prepare(command)
	if prepareError != nil {
		return prepareError
	}

	for _, repository := range environment.store.Repositories(includeIgnored) {
		if !includeExisting && pathutils.Inspect(repository.Path) == pathutils.PathWorkingCopy {
			continue
		}
		environment.writer.Println(fmt.Sprintf(cloneCommandTemplateConstant, repository.URL, repository.Path))
	}
	return nil
}
