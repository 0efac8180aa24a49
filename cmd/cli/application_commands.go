package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tyemirov/gitstat/cmd/cli/repos"
)

const commandRegistrationErrorTemplateConstant = "unable to register repository commands: %w"

func (application *Application) registerCommands(cobraCommand *cobra.Command) error {
	application.reposBuilder = &repos.CommandBuilder{
		LoggerProvider: func() *zap.Logger {
			return application.logger
		},
		HumanReadableLoggingProvider: application.humanReadableLoggingEnabled,
		ConfigurationProvider:        application.reposConfiguration,
	}

	repos.BindCheckFlags(cobraCommand)
	return attachCommands(cobraCommand, application.reposBuilder.BuildCommands)
}

func attachCommands(cobraCommand *cobra.Command, build func() ([]*cobra.Command, error)) error {
	subcommands, buildError := build()
	if buildError != nil {
		return fmt.Errorf(commandRegistrationErrorTemplateConstant, buildError)
	}
	cobraCommand.AddCommand(subcommands...)
	return nil
}
