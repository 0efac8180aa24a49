// Package flags provides lookup helpers for Cobra flags shared across gitstat commands.
package flags

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const (
	// StoreFlagName names the persistent tracking store flag.
	StoreFlagName = "store"
	// WorkersFlagName names the persistent worker count flag.
	WorkersFlagName = "workers"
	// TimeoutFlagName names the persistent per-command timeout flag.
	TimeoutFlagName = "timeout"
	// ColorFlagName names the persistent color mode flag.
	ColorFlagName = "color"
	// IncludeIgnoredFlagName names the flag that keeps ignored repositories in scope.
	IncludeIgnoredFlagName = "include-ignored"
	// IncludeIgnoredFlagUsage describes IncludeIgnoredFlagName.
	IncludeIgnoredFlagUsage = "Include repositories marked as ignored"

	choiceUsageTemplate = "%s (one of: %s; default %s)"
)

// ErrFlagNotDefined indicates that the requested flag is not present on the command.
var ErrFlagNotDefined = errors.New("flag not defined")

// BoolFlag returns the flag value and whether the user set it.
func BoolFlag(command *cobra.Command, name string) (bool, bool, error) {
	flagSet, flag := locateFlag(command, name)
	if flag == nil {
		return false, false, ErrFlagNotDefined
	}
	value, err := flagSet.GetBool(name)
	if err != nil {
		return false, false, err
	}
	return value, flag.Changed, nil
}

// StringFlag returns the flag value and whether the user set it.
func StringFlag(command *cobra.Command, name string) (string, bool, error) {
	flagSet, flag := locateFlag(command, name)
	if flag == nil {
		return "", false, ErrFlagNotDefined
	}
	value, err := flagSet.GetString(name)
	if err != nil {
		return "", false, err
	}
	return value, flag.Changed, nil
}

// IntFlag returns the flag value and whether the user set it.
func IntFlag(command *cobra.Command, name string) (int, bool, error) {
	flagSet, flag := locateFlag(command, name)
	if flag == nil {
		return 0, false, ErrFlagNotDefined
	}
	value, err := flagSet.GetInt(name)
	if err != nil {
		return 0, false, err
	}
	return value, flag.Changed, nil
}

// DurationFlag returns the flag value and whether the user set it.
func DurationFlag(command *cobra.Command, name string) (time.Duration, bool, error) {
	flagSet, flag := locateFlag(command, name)
	if flag == nil {
		return 0, false, ErrFlagNotDefined
	}
	value, err := flagSet.GetDuration(name)
	if err != nil {
		return 0, false, err
	}
	return value, flag.Changed, nil
}

// FormatChoiceUsage appends the accepted values and default to a flag usage string.
func FormatChoiceUsage(defaultValue string, choices []string, usage string) string {
	return fmt.Sprintf(choiceUsageTemplate, usage, strings.Join(choices, ", "), defaultValue)
}

func locateFlag(command *cobra.Command, name string) (*pflag.FlagSet, *pflag.Flag) {
	if command == nil {
		return nil, nil
	}

	candidateSets := []*pflag.FlagSet{
		command.Flags(),
		command.PersistentFlags(),
		command.InheritedFlags(),
	}

	if root := command.Root(); root != nil {
		candidateSets = append(candidateSets, root.PersistentFlags())
	}

	for _, set := range candidateSets {
		if set == nil {
			continue
		}
		if flag := set.Lookup(name); flag != nil {
			return set, flag
		}
	}

	return nil, nil
}
