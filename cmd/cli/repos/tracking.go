package repos

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	repoerrors "github.com/tyemirov/gitstat/internal/repos/errors"
	"github.com/tyemirov/gitstat/internal/tracking"
	pathutils "github.com/tyemirov/gitstat/internal/utils/path"
)

const (
	trackCommandUseConstant                  = "track <paths...>"
	trackCommandShortDescriptionConstant     = "Track repo(s)"
	trackCommandLongDescriptionConstant      = "track records each working copy and its current origin URL in the tracking store."
	untrackCommandUseConstant                = "untrack <paths...>"
	untrackCommandShortDescriptionConstant   = "Untrack repo(s)"
	untrackCommandLongDescriptionConstant    = "untrack removes each path from the tracking store. The working copy itself is left alone."
	ignoreCommandUseConstant                 = "ignore <paths...>"
	ignoreCommandShortDescriptionConstant    = "Ignore repo(s)"
	ignoreCommandLongDescriptionConstant     = "ignore keeps a tracked repo in the store but leaves it out of check, fetch, pull and showclone unless --include-ignored is given."
	unignoreCommandUseConstant               = "unignore <paths...>"
	unignoreCommandShortDescriptionConstant  = "Un-ignore repo(s)"
	unignoreCommandLongDescriptionConstant   = "unignore returns an ignored repo to the default selection."
	updateCommandUseConstant                 = "update [paths...]"
	updateCommandShortDescriptionConstant    = "Update recorded origin URL(s)"
	updateCommandLongDescriptionConstant     = "update replaces the recorded origin URL with the origin configured in git, for the given paths or for every tracked repo."
	isTrackedCommandUseConstant              = "is-tracked <paths...>"
	isTrackedCommandShortDescriptionConstant = "Show whether repo(s) are tracked"
	isTrackedCommandLongDescriptionConstant  = "is-tracked prints whether each path is in the tracking store."
	quietIfTrackedFlagNameConstant           = "quiet-if-tracked"
	quietIfTrackedFlagShorthandConstant      = "q"
	quietIfTrackedFlagUsageConstant          = "Don't output anything if the repo is being tracked"
	oldURLTemplateConstant                   = "  old: %s\n"
	newURLTemplateConstant                   = "  new: %s\n"
)

// BuildTrackCommand constructs the track command.
func (builder *CommandBuilder) BuildTrackCommand() (*cobra.Command, error) {
	return &cobra.Command{
		Use:   trackCommandUseConstant,
		Short: trackCommandShortDescriptionConstant,
		Long:  trackCommandLongDescriptionConstant,
		Args:  cobra.MinimumNArgs(1),
		RunE:  builder.runTrack,
	}, nil
}

func (builder *CommandBuilder) runTrack(command *cobra.Command, arguments []string) error {
	environment, prepareError := builder.prepare(command)
	if prepareError != nil {
		return prepareError
	}

	for _, repositoryPath := range environment.canonicalPaths(arguments) {
		if environment.store.IsTracked(repositoryPath) {
			environment.reportUserError(repositoryPath, repoerrors.Wrap(repoerrors.OperationTrack, repositoryPath, repoerrors.ErrUserInput, tracking.ErrAlreadyTracked))
			continue
		}
		if rejection := inspectionError(repoerrors.OperationTrack, repositoryPath); rejection != nil {
			environment.reportUserError(repositoryPath, rejection)
			continue
		}
		originURL, found := environment.probe.OriginURL(command.Context(), repositoryPath)
		if !found {
			environment.reportUserError(repositoryPath, errors.New(originURLErrorMessageConstant))
			continue
		}
		if trackError := environment.store.Track(repositoryPath, originURL); trackError != nil {
			environment.reportUserError(repositoryPath, trackError)
		}
	}
	return environment.saveIfModified()
}

// BuildUntrackCommand constructs the untrack command.
func (builder *CommandBuilder) BuildUntrackCommand() (*cobra.Command, error) {
	return &cobra.Command{
		Use:   untrackCommandUseConstant,
		Short: untrackCommandShortDescriptionConstant,
		Long:  untrackCommandLongDescriptionConstant,
		Args:  cobra.MinimumNArgs(1),
		RunE:  builder.runUntrack,
	}, nil
}

func (builder *CommandBuilder) runUntrack(command *cobra.Command, arguments []string) error {
	return builder.mutateEach(command, arguments, func(environment *commandEnvironment, repositoryPath string) {
		untrackError := environment.store.Untrack(repositoryPath)
		switch {
		case untrackError == nil:
		case errors.Is(untrackError, tracking.ErrNotTracked):
			environment.writer.Warn(fmt.Sprintf(pathMessageTemplateConstant, alreadyNotTrackedMessageConstant, repositoryPath))
		default:
			environment.reportUserError(repositoryPath, untrackError)
		}
	})
}

// BuildIgnoreCommand constructs the ignore command.
func (builder *CommandBuilder) BuildIgnoreCommand() (*cobra.Command, error) {
	return &cobra.Command{
		Use:   ignoreCommandUseConstant,
		Short: ignoreCommandShortDescriptionConstant,
		Long:  ignoreCommandLongDescriptionConstant,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(command *cobra.Command, arguments []string) error {
			return builder.mutateEach(command, arguments, func(environment *commandEnvironment, repositoryPath string) {
				if ignoreError := environment.store.Ignore(repositoryPath); ignoreError != nil {
					environment.reportUserError(repositoryPath, ignoreError)
				}
			})
		},
	}, nil
}

// BuildUnignoreCommand constructs the unignore command.
func (builder *CommandBuilder) BuildUnignoreCommand() (*cobra.Command, error) {
	return &cobra.Command{
		Use:   unignoreCommandUseConstant,
		Short: unignoreCommandShortDescriptionConstant,
		Long:  unignoreCommandLongDescriptionConstant,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(command *cobra.Command, arguments []string) error {
			return builder.mutateEach(command, arguments, func(environment *commandEnvironment, repositoryPath string) {
				if unignoreError := environment.store.Unignore(repositoryPath); unignoreError != nil {
					environment.reportUserError(repositoryPath, unignoreError)
				}
			})
		},
	}, nil
}

// mutateEach applies mutation to every canonical path argument and saves the store once if
// anything changed. A failing path never stops its siblings.
func (builder *CommandBuilder) mutateEach(command *cobra.Command, arguments []string, mutation func(*commandEnvironment, string)) error {
	environment, prepareError := builder.prepare(command)
	if prepareError != nil {
		return prepareError
	}
	for _, repositoryPath := range environment.canonicalPaths(arguments) {
		mutation(environment, repositoryPath)
	}
	return environment.saveIfModified()
}

// BuildUpdateCommand constructs the update command.
func (builder *CommandBuilder) BuildUpdateCommand() (*cobra.Command, error) {
	return &cobra.Command{
		Use:   updateCommandUseConstant,
		Short: updateCommandShortDescriptionConstant,
		Long:  updateCommandLongDescriptionConstant,
		RunE:  builder.runUpdate,
	}, nil
}

func (builder *CommandBuilder) runUpdate(command *cobra.Command, arguments []string) error {
	environment, prepareError := builder.prepare(command)
	if prepareError != nil {
		return prepareError
	}

	repositoryPaths := environment.canonicalPaths(arguments)
	if len(arguments) == 0 {
		for _, repository := range environment.store.Repositories(true) {
			repositoryPaths = append(repositoryPaths, repository.Path)
		}
	}

	for _, repositoryPath := range repositoryPaths {
		if !environment.store.IsTracked(repositoryPath) {
			environment.reportUserError(repositoryPath, repoerrors.Wrap(repoerrors.OperationUpdate, repositoryPath, repoerrors.ErrUserInput, tracking.ErrNotTracked))
			continue
		}
		if rejection := inspectionError(repoerrors.OperationUpdate, repositoryPath); rejection != nil {
			environment.reportUserError(repositoryPath, rejection)
			continue
		}
		originURL, found := environment.probe.OriginURL(command.Context(), repositoryPath)
		if !found {
			environment.reportUserError(repositoryPath, errors.New(originURLErrorMessageConstant))
			continue
		}
		previousURL, changed, updateError := environment.store.UpdateURL(repositoryPath, originURL)
		if updateError != nil {
			environment.reportUserError(repositoryPath, updateError)
			continue
		}
		if changed {
			environment.writer.Println(repositoryPath)
			environment.writer.Printf(oldURLTemplateConstant, previousURL)
			environment.writer.Printf(newURLTemplateConstant, originURL)
		}
	}
	return environment.saveIfModified()
}

// BuildIsTrackedCommand constructs the is-tracked command.
func (builder *CommandBuilder) BuildIsTrackedCommand() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   isTrackedCommandUseConstant,
		Short: isTrackedCommandShortDescriptionConstant,
		Long:  isTrackedCommandLongDescriptionConstant,
		Args:  cobra.MinimumNArgs(1),
		RunE:  builder.runIsTracked,
	}
	command.Flags().BoolP(quietIfTrackedFlagNameConstant, quietIfTrackedFlagShorthandConstant, false, quietIfTrackedFlagUsageConstant)
	return command, nil
}

func (builder *CommandBuilder) runIsTracked(command *cobra.Command, arguments []string) error {
	quietIfTracked, flagError := command.Flags().GetBool(quietIfTrackedFlagNameConstant)
	if flagError != nil {
		return flagError
	}
	environment, prepareError := builder.prepare(command)
	if prepareError != nil {
		return prepareError
	}
	for _, repositoryPath := range environment.canonicalPaths(arguments) {
		if !environment.store.IsTracked(repositoryPath) {
			environment.writer.Warn(fmt.Sprintf(pathMessageTemplateConstant, notTrackedMessageConstant, repositoryPath))
			continue
		}
		if !quietIfTracked {
			environment.writer.Println(fmt.Sprintf(pathMessageTemplateConstant, isTrackedMessageConstant, repositoryPath))
		}
	}
	return nil
}

func inspectionError(operation repoerrors.Operation, repositoryPath string) error {
	switch pathutils.Inspect(repositoryPath) {
	case pathutils.PathMissing:
		return repoerrors.Wrap(operation, repositoryPath, repoerrors.ErrRepositoryMissing, nil)
	case pathutils.PathNotWorkingCopy:
		return repoerrors.Wrap(operation, repositoryPath, repoerrors.ErrNotGitRepository, nil)
	default:
		return nil
	}
}
