package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/tyemirov/gitstat/cmd/cli/repos"
	"github.com/tyemirov/gitstat/internal/execshell"
	"github.com/tyemirov/gitstat/internal/report"
	"github.com/tyemirov/gitstat/internal/utils"
	flagutils "github.com/tyemirov/gitstat/internal/utils/flags"
	"github.com/tyemirov/gitstat/internal/version"
)

const (
	applicationNameConstant                            = "gitstat"
	applicationShortDescriptionConstant                = "Succinctly display information about git repositories"
	applicationLongDescriptionConstant                 = "Succinctly display information about git repositories.\n\ngitstat looks for unstaged changes, uncommitted changes, untracked files, unpushed commits,\ndiverged branches and whether a pull from upstream is required.\n\ngitstat maintains a list of repos about which it reports. Use \"gitstat track\" to add repo(s)\nto the list. If no paths are given on the command line, gitstat reports on the tracked repos.\n\nRunning gitstat without a command runs \"gitstat check\"."
	configFileFlagNameConstant                         = "config"
	configFileFlagUsageConstant                        = "Optional path to a configuration file (YAML or JSON)."
	logLevelFlagNameConstant                           = "log-level"
	logLevelFlagUsageConstant                          = "Override the configured log level."
	logFormatFlagNameConstant                          = "log-format"
	logFormatFlagUsageConstant                         = "Override the configured log format."
	storeFlagUsageConstant                             = "Path to the tracking store file."
	workersFlagUsageConstant                           = "Number of repositories processed in parallel (0 uses every CPU)."
	timeoutFlagUsageConstant                           = "Kill a git command that runs longer than this duration (0 disables)."
	colorFlagUsageConstant                             = "Colorize output."
	versionFlagNameConstant                            = "version"
	versionFlagUsageConstant                           = "Print the application version and exit"
	versionOutputTemplateConstant                      = "gitstat version: %s\n"
	versionCommandUseNameConstant                      = "version"
	versionCommandShortDescriptionConstant             = "Print the gitstat version"
	versionCommandLongDescriptionConstant              = "version prints the current gitstat release identifier."
	commonConfigurationKeyConstant                     = "common"
	commonLogLevelConfigKeyConstant                    = commonConfigurationKeyConstant + ".log_level"
	commonLogFormatConfigKeyConstant                   = commonConfigurationKeyConstant + ".log_format"
	commonStorePathConfigKeyConstant                   = commonConfigurationKeyConstant + ".store_path"
	commonWorkersConfigKeyConstant                     = commonConfigurationKeyConstant + ".workers"
	commonCommandTimeoutConfigKeyConstant              = commonConfigurationKeyConstant + ".command_timeout"
	commonColorConfigKeyConstant                       = commonConfigurationKeyConstant + ".color"
	checkConfigurationKeyConstant                      = "check"
	checkFetchConfigKeyConstant                        = checkConfigurationKeyConstant + ".fetch"
	checkProgressConfigKeyConstant                     = checkConfigurationKeyConstant + ".progress"
	checkIncludeIgnoredConfigKeyConstant               = checkConfigurationKeyConstant + ".include_ignored"
	environmentPrefixConstant                          = "GITSTAT"
	configurationNameConstant                          = "config"
	configurationTypeConstant                          = "yaml"
	configurationFileNameConstant                      = configurationNameConstant + "." + configurationTypeConstant
	configurationInitializedMessageConstant            = "configuration initialized"
	configurationLogLevelFieldConstant                 = "log_level"
	configurationLogFormatFieldConstant                = "log_format"
	configurationFileFieldConstant                     = "config_file"
	configurationStorePathFieldConstant                = "store_path"
	configurationInitializedConsoleTemplateConstant    = "%s | log level=%s | log format=%s | config file=%s | store=%s"
	xdgConfigHomeEnvironmentVariableConstant           = "XDG_CONFIG_HOME"
	configurationLoadErrorTemplateConstant             = "unable to load configuration: %w"
	loggerCreationErrorTemplateConstant                = "unable to create logger: %w"
	loggerSyncErrorTemplateConstant                    = "unable to flush logger: %w"
	defaultConfigurationSearchPathConstant             = "."
	applicationConfigurationDirectoryNameConstant      = "gitstat"
	homeConfigurationDirectoryNameConstant             = ".gitstat"
	configurationSearchPathEnvironmentVariableConstant = "GITSTAT_CONFIG_SEARCH_PATH"
	rootCommandDebugMessageConstant                    = "gitstat CLI diagnostics"
	logFieldCommandNameConstant                        = "command_name"
	logFieldArgumentsConstant                          = "arguments"
)

type loggerOutputsFactory interface {
	CreateLoggerOutputs(utils.LogLevel, utils.LogFormat) (utils.LoggerOutputs, error)
}

// Application wires the Cobra root command, configuration loader, and structured logger.
type Application struct {
	rootCommand                       *cobra.Command
	configurationLoader               *utils.ConfigurationLoader
	loggerFactory                     loggerOutputsFactory
	logger                            *zap.Logger
	consoleLogger                     *zap.Logger
	configuration                     ApplicationConfiguration
	configurationMetadata             utils.LoadedConfiguration
	configurationFilePath             string
	logLevelFlagValue                 string
	logFormatFlagValue                string
	commandContextAccessor            utils.CommandContextAccessor
	reposBuilder                      *repos.CommandBuilder
	configurationInitializationScope  string
	configurationInitializationForced bool
	versionFlag                       bool
	versionResolver                   func(context.Context) string
	exitFunction                      func(int)
	commandRegistrationError          error
}

// NewApplication assembles a fully wired CLI application instance.
func NewApplication() *Application {
	application := &Application{
		loggerFactory:          utils.NewLoggerFactory(),
		logger:                 zap.NewNop(),
		consoleLogger:          zap.NewNop(),
		commandContextAccessor: utils.NewCommandContextAccessor(),
	}
	application.versionResolver = application.resolveVersion
	application.exitFunction = os.Exit

	application.configurationLoader = utils.NewConfigurationLoader(
		configurationNameConstant,
		configurationTypeConstant,
		environmentPrefixConstant,
		application.resolveConfigurationSearchPaths(),
	)
	embeddedConfigurationData, embeddedConfigurationType := EmbeddedDefaultConfiguration()
	application.configurationLoader.SetEmbeddedConfiguration(embeddedConfigurationData, embeddedConfigurationType)

	cobraCommand := &cobra.Command{
		Use:           applicationNameConstant + " [paths...]",
		Short:         applicationShortDescriptionConstant,
		Long:          applicationLongDescriptionConstant,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(command *cobra.Command, arguments []string) error {
			if initializationError := application.initializeConfiguration(command); initializationError != nil {
				return initializationError
			}
			versionRequested := application.versionFlag
			if flagValue, flagChanged, flagError := flagutils.BoolFlag(command, versionFlagNameConstant); flagError == nil && flagChanged {
				versionRequested = flagValue
			}
			if versionRequested {
				application.printVersion(command)
				application.exitFunction(0)
			}
			return nil
		},
		RunE: func(command *cobra.Command, arguments []string) error {
			return application.runRootCommand(command, arguments)
		},
	}
	cobraCommand.SetContext(context.Background())

	persistentFlags := cobraCommand.PersistentFlags()
	persistentFlags.StringVar(&application.configurationFilePath, configFileFlagNameConstant, "", configFileFlagUsageConstant)
	persistentFlags.StringVar(&application.logLevelFlagValue, logLevelFlagNameConstant, "", flagutils.FormatChoiceUsage(
		string(utils.LogLevelError),
		[]string{string(utils.LogLevelDebug), string(utils.LogLevelInfo), string(utils.LogLevelWarn), string(utils.LogLevelError)},
		logLevelFlagUsageConstant,
	))
	persistentFlags.StringVar(&application.logFormatFlagValue, logFormatFlagNameConstant, "", flagutils.FormatChoiceUsage(
		string(utils.LogFormatStructured),
		[]string{string(utils.LogFormatStructured), string(utils.LogFormatConsole)},
		logFormatFlagUsageConstant,
	))
	persistentFlags.String(flagutils.StoreFlagName, "", storeFlagUsageConstant)
	persistentFlags.Int(flagutils.WorkersFlagName, 0, workersFlagUsageConstant)
	persistentFlags.Duration(flagutils.TimeoutFlagName, 0, timeoutFlagUsageConstant)
	persistentFlags.String(flagutils.ColorFlagName, string(report.ColorAuto), flagutils.FormatChoiceUsage(
		string(report.ColorAuto),
		[]string{string(report.ColorAuto), string(report.ColorAlways), string(report.ColorNever)},
		colorFlagUsageConstant,
	))
	persistentFlags.BoolVar(&application.versionFlag, versionFlagNameConstant, false, versionFlagUsageConstant)
	application.bindConfigurationInitializationFlags(cobraCommand)

	cobraCommand.AddCommand(&cobra.Command{
		Use:           versionCommandUseNameConstant,
		Short:         versionCommandShortDescriptionConstant,
		Long:          versionCommandLongDescriptionConstant,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(command *cobra.Command, arguments []string) error {
			application.printVersion(command)
			return nil
		},
	})

	application.commandRegistrationError = application.registerCommands(cobraCommand)
	application.rootCommand = cobraCommand
	return application
}

// Execute runs the configured Cobra command hierarchy and ensures logger flushing.
func (application *Application) Execute() error {
	return application.ExecuteWithArguments(os.Args[1:])
}

// ExecuteWithArguments runs the command hierarchy against the provided arguments.
func (application *Application) ExecuteWithArguments(arguments []string) error {
	if application.commandRegistrationError != nil {
		return application.commandRegistrationError
	}
	application.rootCommand.SetArgs(arguments)

	executionError := application.rootCommand.Execute()
	if syncError := application.flushLogger(); syncError != nil && executionError == nil {
		return fmt.Errorf(loggerSyncErrorTemplateConstant, syncError)
	}
	return executionError
}

// Execute builds a fresh application instance and executes the root command hierarchy.
func Execute() error {
	return NewApplication().Execute()
}

func (application *Application) resolveConfigurationSearchPaths() []string {
	overrideValue := strings.TrimSpace(os.Getenv(configurationSearchPathEnvironmentVariableConstant))
	if len(overrideValue) == 0 {
		return append([]string{defaultConfigurationSearchPathConstant}, application.resolveUserConfigurationDirectoryPaths()...)
	}

	overridePaths := strings.FieldsFunc(overrideValue, func(candidate rune) bool {
		return candidate == os.PathListSeparator
	})

	cleanedPaths := make([]string, 0, len(overridePaths))
	for _, pathCandidate := range overridePaths {
		trimmedCandidate := strings.TrimSpace(pathCandidate)
		if len(trimmedCandidate) == 0 {
			continue
		}
		cleanedPaths = append(cleanedPaths, trimmedCandidate)
	}

	if len(cleanedPaths) == 0 {
		return []string{defaultConfigurationSearchPathConstant}
	}
	return cleanedPaths
}

// resolveUserConfigurationDirectoryPaths lists $XDG_CONFIG_HOME/gitstat,
// os.UserConfigDir()/gitstat and $HOME/.gitstat without duplicates.
func (application *Application) resolveUserConfigurationDirectoryPaths() []string {
	userConfigurationDirectoryPaths := make([]string, 0, 3)

	appendConfigurationDirectory := func(baseDirectoryPath string, directoryName string) {
		trimmedBaseDirectoryPath := strings.TrimSpace(baseDirectoryPath)
		if len(trimmedBaseDirectoryPath) == 0 {
			return
		}
		candidateDirectoryPath := filepath.Join(trimmedBaseDirectoryPath, directoryName)
		for _, existingDirectoryPath := range userConfigurationDirectoryPaths {
			if existingDirectoryPath == candidateDirectoryPath {
				return
			}
		}
		userConfigurationDirectoryPaths = append(userConfigurationDirectoryPaths, candidateDirectoryPath)
	}

	appendConfigurationDirectory(os.Getenv(xdgConfigHomeEnvironmentVariableConstant), applicationConfigurationDirectoryNameConstant)
	if userConfigurationBaseDirectoryPath, userConfigurationDirectoryError := os.UserConfigDir(); userConfigurationDirectoryError == nil {
		appendConfigurationDirectory(userConfigurationBaseDirectoryPath, applicationConfigurationDirectoryNameConstant)
	}
	if userHomeDirectoryPath, userHomeDirectoryError := os.UserHomeDir(); userHomeDirectoryError == nil {
		appendConfigurationDirectory(userHomeDirectoryPath, homeConfigurationDirectoryNameConstant)
	}

	return userConfigurationDirectoryPaths
}

func (application *Application) initializeConfiguration(command *cobra.Command) error {
	defaultValues := map[string]any{
		commonLogLevelConfigKeyConstant:       string(utils.LogLevelError),
		commonLogFormatConfigKeyConstant:      string(utils.LogFormatStructured),
		commonStorePathConfigKeyConstant:      repos.DefaultStorePath(),
		commonWorkersConfigKeyConstant:        0,
		commonCommandTimeoutConfigKeyConstant: "0s",
		commonColorConfigKeyConstant:          string(report.ColorAuto),
		checkFetchConfigKeyConstant:           false,
		checkProgressConfigKeyConstant:        false,
		checkIncludeIgnoredConfigKeyConstant:  false,
	}

	application.configuration = ApplicationConfiguration{}
	loadedConfiguration, loadError := application.configurationLoader.LoadConfiguration(application.configurationFilePath, defaultValues, &application.configuration)
	if loadError != nil {
		return fmt.Errorf(configurationLoadErrorTemplateConstant, loadError)
	}
	application.configurationMetadata = loadedConfiguration

	if overrideError := application.applyFlagOverrides(command); overrideError != nil {
		return overrideError
	}

	loggerOutputs, loggerCreationError := application.loggerFactory.CreateLoggerOutputs(
		utils.LogLevel(application.configuration.Common.LogLevel),
		utils.LogFormat(application.configuration.Common.LogFormat),
	)
	if loggerCreationError != nil {
		return fmt.Errorf(loggerCreationErrorTemplateConstant, loggerCreationError)
	}

	application.logger = loggerOutputs.DiagnosticLogger
	if application.logger == nil {
		application.logger = zap.NewNop()
	}
	application.consoleLogger = loggerOutputs.ConsoleLogger
	if application.consoleLogger == nil {
		application.consoleLogger = zap.NewNop()
	}

	application.logConfigurationInitialization()

	if command != nil {
		updatedContext := application.commandContextAccessor.WithConfigurationFilePath(command.Context(), application.configurationMetadata.ConfigFileUsed)
		updatedContext = application.commandContextAccessor.WithLogLevel(updatedContext, application.configuration.Common.LogLevel)
		updatedContext = application.commandContextAccessor.WithStorePath(updatedContext, application.configuration.Common.StorePath)
		command.SetContext(updatedContext)
		if rootCommand := command.Root(); rootCommand != nil {
			rootCommand.SetContext(updatedContext)
		}
	}

	return nil
}

func (application *Application) applyFlagOverrides(command *cobra.Command) error {
	common := &application.configuration.Common
	if application.persistentFlagChanged(command, logLevelFlagNameConstant) {
		common.LogLevel = application.logLevelFlagValue
	}
	if application.persistentFlagChanged(command, logFormatFlagNameConstant) {
		common.LogFormat = application.logFormatFlagValue
	}
	if command == nil {
		return nil
	}

	if overrideError := overrideFromFlag(command, flagutils.StoreFlagName, flagutils.StringFlag, &common.StorePath); overrideError != nil {
		return overrideError
	}
	if overrideError := overrideFromFlag(command, flagutils.WorkersFlagName, flagutils.IntFlag, &common.Workers); overrideError != nil {
		return overrideError
	}
	if overrideError := overrideFromFlag(command, flagutils.TimeoutFlagName, flagutils.DurationFlag, &common.CommandTimeout); overrideError != nil {
		return overrideError
	}
	if overrideError := overrideFromFlag(command, flagutils.ColorFlagName, flagutils.StringFlag, &common.Color); overrideError != nil {
		return overrideError
	}
	_, colorError := report.ParseColorMode(common.Color)
	return colorError
}

// overrideFromFlag copies a user-set flag into target. Commands that do not carry the flag
// leave target untouched.
func overrideFromFlag[T any](command *cobra.Command, flagName string, lookup func(*cobra.Command, string) (T, bool, error), target *T) error {
	value, changed, lookupError := lookup(command, flagName)
	switch {
	case errors.Is(lookupError, flagutils.ErrFlagNotDefined):
		return nil
	case lookupError != nil:
		return lookupError
	case changed:
		*target = value
	}
	return nil
}

// InitializeForCommand prepares application state for the provided command name without executing command logic.
func (application *Application) InitializeForCommand(commandUse string) error {
	command := &cobra.Command{Use: commandUse}
	return application.initializeConfiguration(command)
}

// ConfigFileUsed returns the configuration file path used during initialization.
func (application *Application) ConfigFileUsed() string {
	return application.configurationMetadata.ConfigFileUsed
}

// Configuration returns the effective configuration after initialization.
func (application *Application) Configuration() ApplicationConfiguration {
	return application.configuration
}

func (application *Application) humanReadableLoggingEnabled() bool {
	logFormatValue := strings.TrimSpace(application.configuration.Common.LogFormat)
	return strings.EqualFold(logFormatValue, string(utils.LogFormatConsole))
}

func (application *Application) logConfigurationInitialization() {
	if !strings.EqualFold(strings.TrimSpace(application.configuration.Common.LogLevel), string(utils.LogLevelDebug)) {
		return
	}

	if application.humanReadableLoggingEnabled() {
		application.consoleLogger.Debug(fmt.Sprintf(
			configurationInitializedConsoleTemplateConstant,
			configurationInitializedMessageConstant,
			application.configuration.Common.LogLevel,
			application.configuration.Common.LogFormat,
			application.configurationMetadata.ConfigFileUsed,
			application.configuration.Common.StorePath,
		))
		return
	}

	application.logger.Debug(
		configurationInitializedMessageConstant,
		zap.String(configurationLogLevelFieldConstant, application.configuration.Common.LogLevel),
		zap.String(configurationLogFormatFieldConstant, application.configuration.Common.LogFormat),
		zap.String(configurationFileFieldConstant, application.configurationMetadata.ConfigFileUsed),
		zap.String(configurationStorePathFieldConstant, application.configuration.Common.StorePath),
	)
}

func (application *Application) resolveVersion(executionContext context.Context) string {
	dependencies := version.Dependencies{}
	gitExecutor, executorError := execshell.NewShellExecutor(application.logger, execshell.NewOSCommandRunner(), application.humanReadableLoggingEnabled())
	if executorError == nil {
		dependencies.GitExecutor = gitExecutor
	}
	return strings.TrimSpace(version.Detect(executionContext, dependencies))
}

func (application *Application) printVersion(command *cobra.Command) {
	fmt.Fprintf(command.OutOrStdout(), versionOutputTemplateConstant, application.versionResolver(command.Context()))
}

func (application *Application) runRootCommand(command *cobra.Command, arguments []string) error {
	if application.versionFlag {
		return nil
	}
	initializationHandled, initializationError := application.handleConfigurationInitialization(command)
	if initializationError != nil || initializationHandled {
		return initializationError
	}

	application.logger.Debug(
		rootCommandDebugMessageConstant,
		zap.String(logFieldCommandNameConstant, command.Name()),
		zap.Strings(logFieldArgumentsConstant, arguments),
	)
	return application.reposBuilder.RunCheck(command, arguments)
}

func (application *Application) flushLogger() error {
	if syncError := application.syncLoggerInstance(application.logger); syncError != nil {
		return syncError
	}
	return application.syncLoggerInstance(application.consoleLogger)
}

func (application *Application) syncLoggerInstance(logger *zap.Logger) error {
	if logger == nil {
		return nil
	}

	syncError := logger.Sync()
	switch {
	case syncError == nil:
		return nil
	case errors.Is(syncError, syscall.ENOTSUP):
		return nil
	case errors.Is(syncError, syscall.EINVAL):
		return nil
	case errors.Is(syncError, syscall.EBADF):
		return nil
	case errors.Is(syncError, syscall.ENOTTY):
		return nil
	default:
		return syncError
	}
}

func (application *Application) persistentFlagChanged(command *cobra.Command, flagName string) bool {
	if command == nil {
		return false
	}

	flagSetsToInspect := []*pflag.FlagSet{
		command.PersistentFlags(),
		command.InheritedFlags(),
	}
	if rootCommand := command.Root(); rootCommand != nil {
		flagSetsToInspect = append(flagSetsToInspect, rootCommand.PersistentFlags())
	}

	for _, flagSet := range flagSetsToInspect {
		if flagSet != nil && flagSet.Changed(flagName) {
			return true
		}
	}
	return false
}
