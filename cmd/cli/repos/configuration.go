package repos

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tyemirov/gitstat/internal/report"
)

const (
	storeFileNameConstant            = "gitstat.yaml"
	xdgConfigHomeEnvironmentVariable = "XDG_CONFIG_HOME"
	fallbackConfigDirectoryConstant  = ".config"
)

// CommandConfiguration carries the settings every repository command shares.
type CommandConfiguration struct {
	StorePath      string
	Workers        int
	CommandTimeout time.Duration
	Color          string
	Check          CheckConfiguration
}

// CheckConfiguration holds defaults for the check command; flags override them.
type CheckConfiguration struct {
	Fetch          bool `mapstructure:"fetch"`
	Progress       bool `mapstructure:"progress"`
	IncludeIgnored bool `mapstructure:"include_ignored"`
}

// DefaultCommandConfiguration returns baseline settings.
func DefaultCommandConfiguration() CommandConfiguration {
	return CommandConfiguration{
		StorePath: DefaultStorePath(),
		Color:     string(report.ColorAuto),
	}
}

// DefaultStorePath returns $XDG_CONFIG_HOME/gitstat.yaml, falling back to
// $HOME/.config/gitstat.yaml.
func DefaultStorePath() string {
	if configHome := strings.TrimSpace(os.Getenv(xdgConfigHomeEnvironmentVariable)); len(configHome) > 0 {
		return filepath.Join(configHome, storeFileNameConstant)
	}
	homeDirectory, homeError := os.UserHomeDir()
	if homeError != nil || len(homeDirectory) == 0 {
		return storeFileNameConstant
	}
	return filepath.Join(homeDirectory, fallbackConfigDirectoryConstant, storeFileNameConstant)
}

func (configuration CommandConfiguration) sanitize() CommandConfiguration {
	sanitized := configuration
	sanitized.StorePath = strings.TrimSpace(sanitized.StorePath)
	if len(sanitized.StorePath) == 0 {
		sanitized.StorePath = DefaultStorePath()
	}
	if sanitized.Workers < 0 {
		sanitized.Workers = 0
	}
	if sanitized.CommandTimeout < 0 {
		sanitized.CommandTimeout = 0
	}
	if len(strings.TrimSpace(sanitized.Color)) == 0 {
		sanitized.Color = string(report.ColorAuto)
	}
	return sanitized
}
