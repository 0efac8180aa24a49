package repos

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tyemirov/gitstat/internal/repos/batch"
	flagutils "github.com/tyemirov/gitstat/internal/utils/flags"
)

const (
	checkCommandUseConstant              = "check [paths...]"
	checkCommandShortDescriptionConstant = "Check repo(s)"
	checkCommandLongDescriptionConstant  = "check reports unstaged, uncommitted and untracked changes, unpushed commits, required pulls, diverged branches and origin URL mismatches for the given repositories, or for every tracked repository when no path is given."
	allFlagNameConstant                  = "all"
	allFlagShorthandConstant             = "a"
	allFlagUsageConstant                 = "Show all repos, including repos without changes"
	quietFlagNameConstant                = "quiet"
	quietFlagShorthandConstant           = "q"
	quietFlagUsageConstant               = "Be quiet; exit 1 if any repo has changes, else exit 0"
	progressFlagNameConstant             = "progress"
	progressFlagShorthandConstant        = "p"
	progressFlagUsageConstant            = "Show progress bar"
	fetchFlagNameConstant                = "fetch"
	fetchFlagShorthandConstant           = "f"
	fetchFlagUsageConstant               = "Fetch from origin before checking"
	noTrackedRepositoriesMessageConstant = `
No repos specified and no repos are being tracked.
Either specify path(s) to git repos on the command line, or
track repo(s) with "gitstat track /path/to/repo".
`
)

type checkOptions struct {
	includeUpToDate bool
	quiet           bool
	showProgress    bool
	includeIgnored  bool
	fetch           bool
}

// BuildCheckCommand constructs the check command.
func (builder *CommandBuilder) BuildCheckCommand() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   checkCommandUseConstant,
		Short: checkCommandShortDescriptionConstant,
		Long:  checkCommandLongDescriptionConstant,
		RunE:  builder.RunCheck,
	}
	BindCheckFlags(command)
	return command, nil
}

// BindCheckFlags registers the check flags on command. The root command binds them too so
// that running gitstat without a subcommand behaves like check.
func BindCheckFlags(command *cobra.Command) {
	command.Flags().BoolP(allFlagNameConstant, allFlagShorthandConstant, false, allFlagUsageConstant)
	command.Flags().BoolP(quietFlagNameConstant, quietFlagShorthandConstant, false, quietFlagUsageConstant)
	command.Flags().BoolP(progressFlagNameConstant, progressFlagShorthandConstant, false, progressFlagUsageConstant)
	command.Flags().BoolP(fetchFlagNameConstant, fetchFlagShorthandConstant, false, fetchFlagUsageConstant)
	command.Flags().Bool(flagutils.IncludeIgnoredFlagName, false, flagutils.IncludeIgnoredFlagUsage)
}

// RunCheck executes check for command, which must carry the flags bound by BindCheckFlags.
func (builder *CommandBuilder) RunCheck(command *cobra.Command, arguments []string) error {
	environment, prepareError := builder.prepare(command)
	if prepareError != nil {
		return prepareError
	}

	options, optionsError := resolveCheckOptions(command, environment.configuration.Check)
	if optionsError != nil {
		return optionsError
	}

	if len(arguments) == 0 && environment.store.Len() == 0 {
		fmt.Fprint(command.ErrOrStderr(), noTrackedRepositoriesMessageConstant)
		_ = displayCommandHelp(command.Root())
		return ExitStatusError{Reason: ErrNoRepositories}
	}

	runner, runnerError := environment.newRunner()
	if runnerError != nil {
		return runnerError
	}

	repositoryPaths := environment.selectRepositoryPaths(arguments, options.includeIgnored)
	checkOptions := batch.CheckOptions{
		IncludeUpToDate:  options.includeUpToDate,
		FetchBeforeCheck: options.fetch,
		ShowProgress:     options.showProgress,
	}

	if options.quiet {
		if runner.AnyChanges(command.Context(), repositoryPaths, checkOptions) {
			return ExitStatusError{Reason: ErrChangesFound}
		}
		return nil
	}

	environment.writer.RenderStatuses(runner.Collect(command.Context(), repositoryPaths, checkOptions))
	return nil
}

func resolveCheckOptions(command *cobra.Command, defaults CheckConfiguration) (checkOptions, error) {
	options := checkOptions{
		showProgress:   defaults.Progress,
		includeIgnored: defaults.IncludeIgnored,
		fetch:          defaults.Fetch,
	}

	flagTargets := []struct {
		name   string
		target *bool
	}{
		{name: allFlagNameConstant, target: &options.includeUpToDate},
		{name: quietFlagNameConstant, target: &options.quiet},
		{name: progressFlagNameConstant, target: &options.showProgress},
		{name: flagutils.IncludeIgnoredFlagName, target: &options.includeIgnored},
		{name: fetchFlagNameConstant, target: &options.fetch},
	}
	for _, flagTarget := range flagTargets {
		value, changed, flagError := flagutils.BoolFlag(command, flagTarget.name)
		if flagError != nil {
			return checkOptions{}, flagError
		}
		if changed {
			*flagTarget.target = value
		}
	}
	return options, nil
}
