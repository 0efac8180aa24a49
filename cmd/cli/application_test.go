package cli_test

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tyemirov/gitstat/cmd/cli"
	"github.com/tyemirov/gitstat/cmd/cli/repos"
)

const (
	testConfigurationFileNameConstant                        = "config.yaml"
	testConfigurationHeaderConstant                          = "common:\n  log_level: error\n  log_format: structured\n"
	testConfigurationSearchPathEnvironmentName               = "GITSTAT_CONFIG_SEARCH_PATH"
	testUserConfigurationDirectoryNameConstant               = ".gitstat"
	testXDGConfigurationDirectoryNameConstant                = "gitstat"
	testXDGConfigHomeDirectoryNameConstant                   = "config"
	testCaseWorkingDirectoryPreferredMessageConstant         = "WorkingDirectoryPreferred"
	testCaseXDGDirectoryFallbackMessageConstant              = "XDGDirectoryFallback"
	testCaseHomeDirectoryFallbackMessageConstant             = "HomeDirectoryFallback"
	applicationSearchPathSubtestNameTemplateConstant         = "%d_%s"
	configurationDirectoryRoleWorkingConstant                = "working"
	configurationDirectoryRoleXDGConstant                    = "xdg"
	configurationDirectoryRoleHomeConstant                   = "home"
	configurationInitializationLocalTestNameConstant         = "LocalScope"
	configurationInitializationUserTestNameConstant          = "UserScope"
	configurationInitializationForceRequiredTestNameConstant = "ForceRequired"
	configurationInitializationForceEnabledTestNameConstant  = "ForceEnabled"
	configurationInitializationArgumentsLocalConstant        = "--init"
	configurationInitializationArgumentsUserConstant         = "--init=user"
	configurationInitializationForceFlagConstant             = "--force"
	configurationInitializationExistingContentConstant       = "common:\n  log_level: error\n"
	configurationInitializationErrorMessageFragmentConstant  = "already exists"
	configurationInitializationApplicationNameConstant       = "gitstat"
	testCheckCommandNameConstant                             = "check"
	testStoreFileNameConstant                                = "gitstat.yaml"
)

func TestApplicationConfigurationInitializationCreatesConfiguration(testInstance *testing.T) {
	embeddedConfigurationContent, _ := cli.EmbeddedDefaultConfiguration()
	require.NotEmpty(testInstance, embeddedConfigurationContent)

	testCases := []struct {
		name      string
		arguments []string
		setup     func(*testing.T) string
	}{
		{
			name:      configurationInitializationLocalTestNameConstant,
			arguments: []string{configurationInitializationArgumentsLocalConstant},
			setup: func(t *testing.T) string {
				workingDirectory := changeToTemporaryDirectory(t)
				return filepath.Join(workingDirectory, testConfigurationFileNameConstant)
			},
		},
		{
			name:      configurationInitializationUserTestNameConstant,
			arguments: []string{configurationInitializationArgumentsUserConstant},
			setup: func(t *testing.T) string {
				changeToTemporaryDirectory(t)
				homeDirectory := t.TempDir()
				t.Setenv("HOME", homeDirectory)
				t.Setenv("XDG_CONFIG_HOME", "")
				return filepath.Join(homeDirectory, testUserConfigurationDirectoryNameConstant, testConfigurationFileNameConstant)
			},
		},
	}

	for testCaseIndex, testCase := range testCases {
		testInstance.Run(fmt.Sprintf(applicationSearchPathSubtestNameTemplateConstant, testCaseIndex, testCase.name), func(t *testing.T) {
			t.Setenv(testConfigurationSearchPathEnvironmentName, t.TempDir())
			expectedConfigurationPath := testCase.setup(t)

			originalArguments := os.Args
			os.Args = append([]string{configurationInitializationApplicationNameConstant}, testCase.arguments...)
			t.Cleanup(func() {
				os.Args = originalArguments
			})

			application := cli.NewApplication()
			executionError := application.Execute()
			require.NoError(t, executionError)

			fileContent, readError := os.ReadFile(expectedConfigurationPath)
			require.NoError(t, readError)
			require.Equal(t, embeddedConfigurationContent, fileContent)
		})
	}
}

func TestApplicationConfigurationInitializationForceHandling(testInstance *testing.T) {
	embeddedConfigurationContent, _ := cli.EmbeddedDefaultConfiguration()
	require.NotEmpty(testInstance, embeddedConfigurationContent)

	testCases := []struct {
		name        string
		arguments   []string
		expectError bool
	}{
		{
			name:        configurationInitializationForceRequiredTestNameConstant,
			arguments:   []string{configurationInitializationArgumentsLocalConstant},
			expectError: true,
		},
		{
			name: configurationInitializationForceEnabledTestNameConstant,
			arguments: []string{
				configurationInitializationArgumentsLocalConstant,
				configurationInitializationForceFlagConstant,
			},
			expectError: false,
		},
	}

	for testCaseIndex, testCase := range testCases {
		testInstance.Run(fmt.Sprintf(applicationSearchPathSubtestNameTemplateConstant, testCaseIndex, testCase.name), func(t *testing.T) {
			workingDirectory := changeToTemporaryDirectory(t)
			t.Setenv(testConfigurationSearchPathEnvironmentName, t.TempDir())

			configurationPath := filepath.Join(workingDirectory, testConfigurationFileNameConstant)
			require.NoError(t, os.WriteFile(configurationPath, []byte(configurationInitializationExistingContentConstant), 0o600))

			application := cli.NewApplication()
			executionError := application.ExecuteWithArguments(testCase.arguments)

			fileContent, readError := os.ReadFile(configurationPath)
			require.NoError(t, readError)

			if testCase.expectError {
				require.Error(t, executionError)
				require.Contains(t, executionError.Error(), configurationInitializationErrorMessageFragmentConstant)
				require.Equal(t, configurationInitializationExistingContentConstant, string(fileContent))
				return
			}

			require.NoError(t, executionError)
			require.Equal(t, embeddedConfigurationContent, fileContent)
		})
	}
}

func TestApplicationConfigurationSearchPaths(testInstance *testing.T) {
	testCases := []struct {
		name                                string
		createWorkingDirectoryConfiguration bool
		createXDGConfiguration              bool
		createHomeConfiguration             bool
		expectedDirectoryRole               string
	}{
		{
			name:                                testCaseWorkingDirectoryPreferredMessageConstant,
			createWorkingDirectoryConfiguration: true,
			createXDGConfiguration:              true,
			createHomeConfiguration:             true,
			expectedDirectoryRole:               configurationDirectoryRoleWorkingConstant,
		},
		{
			name:                    testCaseXDGDirectoryFallbackMessageConstant,
			createXDGConfiguration:  true,
			createHomeConfiguration: true,
			expectedDirectoryRole:   configurationDirectoryRoleXDGConstant,
		},
		{
			name:                    testCaseHomeDirectoryFallbackMessageConstant,
			createHomeConfiguration: true,
			expectedDirectoryRole:   configurationDirectoryRoleHomeConstant,
		},
	}

	for testCaseIndex, testCase := range testCases {
		testInstance.Run(fmt.Sprintf(applicationSearchPathSubtestNameTemplateConstant, testCaseIndex, testCase.name), func(testInstance *testing.T) {
			workingDirectoryPath := changeToTemporaryDirectory(testInstance)
			homeDirectoryPath := testInstance.TempDir()
			xdgConfigHomeDirectoryPath := filepath.Join(homeDirectoryPath, testXDGConfigHomeDirectoryNameConstant)

			testInstance.Setenv("HOME", homeDirectoryPath)
			testInstance.Setenv("XDG_CONFIG_HOME", xdgConfigHomeDirectoryPath)
			testInstance.Setenv(testConfigurationSearchPathEnvironmentName, "")

			homeConfigurationDirectoryPath := filepath.Join(homeDirectoryPath, testUserConfigurationDirectoryNameConstant)
			xdgConfigurationDirectoryPath := filepath.Join(xdgConfigHomeDirectoryPath, testXDGConfigurationDirectoryNameConstant)
			require.NoError(testInstance, os.MkdirAll(homeConfigurationDirectoryPath, 0o755))
			require.NoError(testInstance, os.MkdirAll(xdgConfigurationDirectoryPath, 0o755))

			expectedConfigurationPathByRole := map[string]string{
				configurationDirectoryRoleWorkingConstant: filepath.Join(workingDirectoryPath, testConfigurationFileNameConstant),
				configurationDirectoryRoleXDGConstant:     filepath.Join(xdgConfigurationDirectoryPath, testConfigurationFileNameConstant),
				configurationDirectoryRoleHomeConstant:    filepath.Join(homeConfigurationDirectoryPath, testConfigurationFileNameConstant),
			}
			if testCase.createWorkingDirectoryConfiguration {
				writeConfigurationFile(testInstance, expectedConfigurationPathByRole[configurationDirectoryRoleWorkingConstant], testConfigurationHeaderConstant)
			}
			if testCase.createXDGConfiguration {
				writeConfigurationFile(testInstance, expectedConfigurationPathByRole[configurationDirectoryRoleXDGConstant], testConfigurationHeaderConstant)
			}
			if testCase.createHomeConfiguration {
				writeConfigurationFile(testInstance, expectedConfigurationPathByRole[configurationDirectoryRoleHomeConstant], testConfigurationHeaderConstant)
			}

			expectedConfigurationPath, expectedPathKnown := expectedConfigurationPathByRole[testCase.expectedDirectoryRole]
			require.True(testInstance, expectedPathKnown, "unexpected directory role %s", testCase.expectedDirectoryRole)
			expectedConfigurationPath = resolveSymlinkedPath(testInstance, expectedConfigurationPath)

			application := cli.NewApplication()

			stderrCapture := startTestStderrCapture(testInstance)
			initializationError := application.InitializeForCommand(testCheckCommandNameConstant)
			capturedOutput := stderrCapture.Stop(testInstance)

			require.NoError(testInstance, initializationError)
			require.Empty(testInstance, strings.TrimSpace(capturedOutput))
			require.Equal(testInstance, expectedConfigurationPath, resolveSymlinkedPath(testInstance, application.ConfigFileUsed()))
		})
	}
}

func TestApplicationEmbeddedDefaults(testInstance *testing.T) {
	configHome := testInstance.TempDir()
	testInstance.Setenv("XDG_CONFIG_HOME", configHome)
	testInstance.Setenv(testConfigurationSearchPathEnvironmentName, testInstance.TempDir())

	application := cli.NewApplication()
	require.NoError(testInstance, application.InitializeForCommand(testCheckCommandNameConstant))
	require.Empty(testInstance, application.ConfigFileUsed())

	configuration := application.Configuration()
	require.Equal(testInstance, "error", configuration.Common.LogLevel)
	require.Equal(testInstance, "structured", configuration.Common.LogFormat)
	require.Equal(testInstance, "auto", configuration.Common.Color)
	require.Equal(testInstance, filepath.Join(configHome, testStoreFileNameConstant), configuration.Common.StorePath)
	require.Zero(testInstance, configuration.Common.Workers)
	require.Zero(testInstance, configuration.Common.CommandTimeout)
	require.Equal(testInstance, repos.CheckConfiguration{}, configuration.Check)
}

func TestApplicationConfigurationFileAndEnvironment(testInstance *testing.T) {
	testCases := []struct {
		name          string
		content       string
		environment   map[string]string
		expectWorkers int
		expectTimeout time.Duration
		expectCheck   repos.CheckConfiguration
		expectStore   string
	}{
		{
			name:          "FileValues",
			content:       "common:\n  workers: 4\n  command_timeout: 30s\n  store_path: /var/lib/gitstat.yaml\ncheck:\n  fetch: true\n  include_ignored: true\n",
			expectWorkers: 4,
			expectTimeout: 30 * time.Second,
			expectCheck:   repos.CheckConfiguration{Fetch: true, IncludeIgnored: true},
			expectStore:   "/var/lib/gitstat.yaml",
		},
		{
			name:          "EnvironmentOverridesFile",
			content:       "common:\n  workers: 4\n  store_path: /var/lib/gitstat.yaml\n",
			environment:   map[string]string{"GITSTAT_COMMON_WORKERS": "9", "GITSTAT_CHECK_PROGRESS": "true"},
			expectWorkers: 9,
			expectCheck:   repos.CheckConfiguration{Progress: true},
			expectStore:   "/var/lib/gitstat.yaml",
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			configurationDirectory := testInstance.TempDir()
			writeConfigurationFile(testInstance, filepath.Join(configurationDirectory, testConfigurationFileNameConstant), testCase.content)
			testInstance.Setenv(testConfigurationSearchPathEnvironmentName, configurationDirectory)
			for name, value := range testCase.environment {
				testInstance.Setenv(name, value)
			}

			application := cli.NewApplication()
			require.NoError(testInstance, application.InitializeForCommand(testCheckCommandNameConstant))

			configuration := application.Configuration()
			require.Equal(testInstance, testCase.expectWorkers, configuration.Common.Workers)
			require.Equal(testInstance, testCase.expectTimeout, configuration.Common.CommandTimeout)
			require.Equal(testInstance, testCase.expectCheck, configuration.Check)
			require.Equal(testInstance, testCase.expectStore, configuration.Common.StorePath)
		})
	}
}

func changeToTemporaryDirectory(testingInstance testing.TB) string {
	testingInstance.Helper()
	workingDirectory := resolveSymlinkedPath(testingInstance, testingInstance.TempDir())
	originalWorkingDirectory, workingDirectoryError := os.Getwd()
	require.NoError(testingInstance, workingDirectoryError)
	require.NoError(testingInstance, os.Chdir(workingDirectory))
	testingInstance.Cleanup(func() {
		require.NoError(testingInstance, os.Chdir(originalWorkingDirectory))
	})
	return workingDirectory
}

func resolveSymlinkedPath(testingInstance testing.TB, candidatePath string) string {
	testingInstance.Helper()
	trimmedPath := strings.TrimSpace(candidatePath)
	if len(trimmedPath) == 0 {
		return ""
	}

	absolutePath, absoluteError := filepath.Abs(trimmedPath)
	require.NoError(testingInstance, absoluteError)
	resolvedPath, resolveError := filepath.EvalSymlinks(absolutePath)
	require.NoError(testingInstance, resolveError)
	return resolvedPath
}

func writeConfigurationFile(testingInstance testing.TB, configurationPath string, configurationContent string) {
	testingInstance.Helper()
	require.NoError(testingInstance, os.WriteFile(configurationPath, []byte(configurationContent), 0o600))
}

type testStderrCapture struct {
	originalDescriptor *os.File
	reader             *os.File
	writer             *os.File
}

func startTestStderrCapture(testingInstance testing.TB) testStderrCapture {
	testingInstance.Helper()

	reader, writer, pipeError := os.Pipe()
	require.NoError(testingInstance, pipeError)

	capture := testStderrCapture{
		originalDescriptor: os.Stderr,
		reader:             reader,
		writer:             writer,
	}
	os.Stderr = writer
	return capture
}

func (capture *testStderrCapture) Stop(testingInstance testing.TB) string {
	testingInstance.Helper()

	os.Stderr = capture.originalDescriptor
	require.NoError(testingInstance, capture.writer.Close())

	capturedBytes, readError := io.ReadAll(capture.reader)
	require.NoError(testingInstance, readError)
	require.NoError(testingInstance, capture.reader.Close())
	return string(capturedBytes)
}
