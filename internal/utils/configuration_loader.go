package utils

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

const (
	embeddedConfigurationReadErrorTemplate = "unable to read embedded configuration: %w"
	configurationFileReadErrorTemplate     = "unable to read configuration file %s: %w"
	configurationDecodeErrorTemplate       = "unable to decode configuration: %w"
	configurationPathStatErrorTemplate     = "unable to inspect configuration path %s: %w"
	environmentKeySeparator                = "_"
	configurationKeySeparator              = "."
	configurationListSeparator             = ","
)

// LoadedConfiguration describes where configuration values came from.
type LoadedConfiguration struct {
	ConfigFileUsed string
}

// ConfigurationLoader layers defaults, an embedded document, a configuration file and
// environment variables into a single decoded structure.
type ConfigurationLoader struct {
	configurationName string
	configurationType string
	environmentPrefix string
	searchPaths       []string
	embeddedData      []byte
	embeddedType      string
}

// NewConfigurationLoader constructs a ConfigurationLoader. searchPaths are consulted in order
// when no explicit configuration file is requested; the first directory holding
// <name>.<type> wins.
func NewConfigurationLoader(configurationName string, configurationType string, environmentPrefix string, searchPaths []string) *ConfigurationLoader {
	return &ConfigurationLoader{
		configurationName: configurationName,
		configurationType: configurationType,
		environmentPrefix: environmentPrefix,
		searchPaths:       append([]string{}, searchPaths...),
	}
}

// SetEmbeddedConfiguration registers a document layered above defaults and below files.
func (loader *ConfigurationLoader) SetEmbeddedConfiguration(data []byte, configurationType string) {
	loader.embeddedData = append([]byte{}, data...)
	loader.embeddedType = configurationType
}

// LoadConfiguration decodes the merged configuration into target.
func (loader *ConfigurationLoader) LoadConfiguration(explicitPath string, defaults map[string]any, target any) (LoadedConfiguration, error) {
	configuration := viper.New()
	configuration.SetConfigType(loader.configurationType)

	for key, value := range defaults {
		configuration.SetDefault(key, value)
	}

	if len(loader.embeddedData) > 0 {
		embeddedType := loader.embeddedType
		if len(embeddedType) == 0 {
			embeddedType = loader.configurationType
		}
		configuration.SetConfigType(embeddedType)
		if readError := configuration.ReadConfig(bytes.NewReader(loader.embeddedData)); readError != nil {
			return LoadedConfiguration{}, fmt.Errorf(embeddedConfigurationReadErrorTemplate, readError)
		}
		configuration.SetConfigType(loader.configurationType)
	}

	configurationFilePath, resolveError := loader.resolveConfigurationFile(explicitPath)
	if resolveError != nil {
		return LoadedConfiguration{}, resolveError
	}
	if len(configurationFilePath) > 0 {
		configuration.SetConfigFile(configurationFilePath)
		if mergeError := configuration.MergeInConfig(); mergeError != nil {
			return LoadedConfiguration{}, fmt.Errorf(configurationFileReadErrorTemplate, configurationFilePath, mergeError)
		}
	}

	if len(loader.environmentPrefix) > 0 {
		configuration.SetEnvPrefix(loader.environmentPrefix)
	}
	configuration.SetEnvKeyReplacer(strings.NewReplacer(configurationKeySeparator, environmentKeySeparator))
	configuration.AutomaticEnv()

	if target != nil {
		decodeError := configuration.Unmarshal(target, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(configurationListSeparator),
		)))
		if decodeError != nil {
			return LoadedConfiguration{}, fmt.Errorf(configurationDecodeErrorTemplate, decodeError)
		}
	}

	return LoadedConfiguration{ConfigFileUsed: configurationFilePath}, nil
}

func (loader *ConfigurationLoader) resolveConfigurationFile(explicitPath string) (string, error) {
	trimmedExplicitPath := strings.TrimSpace(explicitPath)
	if len(trimmedExplicitPath) > 0 {
		return trimmedExplicitPath, nil
	}

	fileName := loader.configurationName + configurationKeySeparator + loader.configurationType
	for _, searchPath := range loader.searchPaths {
		candidatePath := filepath.Join(searchPath, fileName)
		fileInfo, statError := os.Stat(candidatePath)
		if statError != nil {
			if errors.Is(statError, os.ErrNotExist) {
				continue
			}
			return "", fmt.Errorf(configurationPathStatErrorTemplate, candidatePath, statError)
		}
		if fileInfo.IsDir() {
			continue
		}
		return candidatePath, nil
	}
	return "", nil
}
