package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/temirov/treedump/internal/utils"
)

// InitTarget identifies where configuration should be initialized.
type InitTarget string

const (
	// InitTargetLocal writes configuration into the working directory.
	InitTargetLocal InitTarget = "local"
	// InitTargetGlobal writes configuration into the global configuration directory.
	InitTargetGlobal InitTarget = "global"

	defaultConfigurationTemplate = `# treedump configuration
# Flags given on the command line override these values.
output: ""
exclude: []
include: []
use_gitignore: true
use_ignore: true
include_git: false
hidden: false
line_numbers: true
tokens:
  enabled: false
  model: gpt-4o
clipboard: false
`
)

const (
	errorWorkingDirectoryFormat = "determine working directory for configuration: %w"
	errorHomeDirectoryFormat    = "resolve home directory for configuration: %w"
	errorCreateDirectoryFormat  = "create configuration directory %s: %w"
	errorInspectPathFormat      = "inspect configuration path %s: %w"
	errorWriteFormat            = "write configuration to %s: %w"
	errorUnsupportedTargetFmt   = "unsupported init target %q"
)

// ErrConfigurationExists is returned when the destination exists and Force is not set.
var ErrConfigurationExists = errors.New("configuration file already exists")

// InitOptions controls how configuration initialization behaves.
type InitOptions struct {
	Target           InitTarget
	Force            bool
	WorkingDirectory string
}

// InitializeConfiguration writes the default configuration template to the
// requested target and returns the path written.
func InitializeConfiguration(options InitOptions) (string, error) {
	destinationPath, resolveError := resolveInitDestination(options)
	if resolveError != nil {
		return "", resolveError
	}

	if _, statError := os.Stat(destinationPath); statError == nil {
		if !options.Force {
			return "", fmt.Errorf("%w at %s", ErrConfigurationExists, destinationPath)
		}
	} else if !os.IsNotExist(statError) {
		return "", fmt.Errorf(errorInspectPathFormat, destinationPath, statError)
	}

	if writeError := os.WriteFile(destinationPath, []byte(defaultConfigurationTemplate), 0o600); writeError != nil {
		return "", fmt.Errorf(errorWriteFormat, destinationPath, writeError)
	}
	return destinationPath, nil
}

func resolveInitDestination(options InitOptions) (string, error) {
	switch options.Target {
	case "", InitTargetLocal:
		workingDirectory := options.WorkingDirectory
		if workingDirectory == "" {
			currentDirectory, workingDirectoryError := os.Getwd()
			if workingDirectoryError != nil {
				return "", fmt.Errorf(errorWorkingDirectoryFormat, workingDirectoryError)
			}
			workingDirectory = currentDirectory
		}
		return filepath.Join(workingDirectory, utils.ConfigFileName), nil
	case InitTargetGlobal:
		homeDirectory, homeError := os.UserHomeDir()
		if homeError != nil {
			return "", fmt.Errorf(errorHomeDirectoryFormat, homeError)
		}
		configurationDirectory := filepath.Join(homeDirectory, utils.GlobalConfigDirectoryName)
		if makeError := os.MkdirAll(configurationDirectory, 0o755); makeError != nil {
			return "", fmt.Errorf(errorCreateDirectoryFormat, configurationDirectory, makeError)
		}
		return filepath.Join(configurationDirectory, utils.GlobalConfigFileName), nil
	default:
		return "", fmt.Errorf(errorUnsupportedTargetFmt, options.Target)
	}
}
