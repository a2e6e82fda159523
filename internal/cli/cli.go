// Package cli provides the command line interface.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/treedump/internal/commands"
	"github.com/temirov/treedump/internal/config"
	"github.com/temirov/treedump/internal/dump"
	"github.com/temirov/treedump/internal/services/clipboard"
	"github.com/temirov/treedump/internal/tokenizer"
	"github.com/temirov/treedump/internal/types"
	"github.com/temirov/treedump/internal/utils"
)

const (
	outputFlagName        = "output"
	outputFlagShorthand   = "o"
	exclusionFlagName     = "e"
	includeFlagName       = "include"
	noGitignoreFlagName   = "no-gitignore"
	noIgnoreFlagName      = "no-ignore"
	includeGitFlagName    = "git"
	hiddenFlagName        = "hidden"
	lineNumbersFlagName   = "line-numbers"
	tokensFlagName        = "tokens"
	modelFlagName         = "model"
	copyFlagName          = "copy"
	configFlagName        = "config"
	versionFlagName       = "version"
	globalFlagName        = "global"
	forceFlagName         = "force"
	versionTemplate       = "treedump version: %s\n"
	initResultTemplate    = "configuration written to %s\n"
	defaultPath           = "."
	standardOutputMarker  = "-"
	rootUse               = types.CommandRoot + " [path]"
	rootShortDescription  = "flatten a directory into one text file"
	rootLongDescription   = `treedump prints a chain-compressed tree diagram of a directory followed by
the numbered content of every file in it, producing one text artifact.
Files that are not valid text are replaced by a placeholder line.`
	rootUsageExample = `  # Flatten the current directory to standard output
  treedump

  # Write a project dump to a file, skipping vendored code
  treedump ./service -e vendor/ -o service.txt

  # Only Go sources, raw content, copied to the clipboard
  treedump --include '*.go' --line-numbers=false --copy`
	initUse              = types.CommandInit
	initShortDescription = "write a default configuration file"

	outputFlagDescription           = "write the artifact to this file instead of standard output"
	exclusionFlagDescription        = "exclude path pattern"
	includeFlagDescription          = "only include files matching pattern"
	disableGitignoreFlagDescription = "do not use .gitignore"
	disableIgnoreFlagDescription    = "do not use .ignore"
	includeGitFlagDescription       = "include git directory"
	hiddenFlagDescription           = "include hidden files and directories"
	lineNumbersFlagDescription      = "prefix content lines with line numbers; false prints raw content"
	tokensFlagDescription           = "report estimated token counts"
	modelFlagDescription            = "tokenizer model to use for token counting"
	copyFlagDescription             = "copy the artifact to the system clipboard"
	configFlagDescription           = "configuration file to use instead of ./" + utils.ConfigFileName
	versionFlagDescription          = "display application version"
	globalFlagDescription           = "write the configuration under the home directory"
	forceFlagDescription            = "overwrite an existing configuration file"
	defaultTokenizerModelName       = "gpt-4o"

	workingDirectoryErrorFormat = "unable to determine working directory: %w"
	errorAbsolutePathFormat     = "abs failed for '%s': %w"
	errorPathMissingFormat      = "path '%s' does not exist"
	errorStatFormat             = "stat failed for '%s': %w"
	errorCreateOutputFormat     = "creating output file %s: %w"
	errorFlushOutputFormat      = "flushing output: %w"
	errorCloseOutputFormat      = "closing output file %s: %w"
	errorLoadConfigFormat       = "loading configuration: %w"
	errorIgnorePatternsFormat   = "loading ignore patterns for %s: %w"
	clipboardWarningMessage     = "failed to copy output to clipboard"
)

// Dependencies are the collaborators the commands run against.
type Dependencies struct {
	Logger *zap.Logger
	Stdout io.Writer
	Copier clipboard.Copier
}

// rootOptions stores the values bound to the root command flags.
type rootOptions struct {
	outputPath        string
	exclusionPatterns []string
	includePatterns   []string
	disableGitignore  bool
	disableIgnoreFile bool
	includeGit        bool
	includeHidden     bool
	lineNumbers       bool
	tokensEnabled     bool
	tokenModel        string
	copyToClipboard   bool
	configPath        string
	showVersion       bool
}

// runSettings is the outcome of merging flags over configuration.
type runSettings struct {
	outputPath        string
	exclusionPatterns []string
	includePatterns   []string
	useGitignore      bool
	useIgnoreFile     bool
	includeGit        bool
	includeHidden     bool
	mode              dump.Mode
	tokensEnabled     bool
	tokenModel        string
	copyToClipboard   bool
}

// Execute runs the treedump application.
func Execute(ctx context.Context, logger *zap.Logger) error {
	rootCommand := NewRootCommand(Dependencies{Logger: logger, Stdout: os.Stdout, Copier: clipboard.NewService()})
	rootCommand.SetArgs(normalizeBooleanFlagArguments(rootCommand, os.Args[1:]))
	return rootCommand.ExecuteContext(ctx)
}

// NewRootCommand builds the root Cobra command.
func NewRootCommand(dependencies Dependencies) *cobra.Command {
	if dependencies.Logger == nil {
		dependencies.Logger = zap.NewNop()
	}
	if dependencies.Stdout == nil {
		dependencies.Stdout = os.Stdout
	}
	if dependencies.Copier == nil {
		dependencies.Copier = clipboard.NewService()
	}

	var options rootOptions
	rootCommand := &cobra.Command{
		Use:           rootUse,
		Short:         rootShortDescription,
		Long:          rootLongDescription,
		Example:       rootUsageExample,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(command *cobra.Command, arguments []string) error {
			if options.showVersion {
				_, writeError := fmt.Fprintf(dependencies.Stdout, versionTemplate, utils.GetApplicationVersion())
				return writeError
			}
			targetPath := defaultPath
			if len(arguments) > 0 {
				targetPath = arguments[0]
			}
			return runFlatten(command, dependencies, options, targetPath)
		},
	}

	flagSet := rootCommand.Flags()
	flagSet.StringVarP(&options.outputPath, outputFlagName, outputFlagShorthand, "", outputFlagDescription)
	flagSet.StringArrayVarP(&options.exclusionPatterns, exclusionFlagName, exclusionFlagName, nil, exclusionFlagDescription)
	flagSet.StringArrayVar(&options.includePatterns, includeFlagName, nil, includeFlagDescription)
	registerBooleanFlag(flagSet, &options.disableGitignore, noGitignoreFlagName, false, disableGitignoreFlagDescription)
	registerBooleanFlag(flagSet, &options.disableIgnoreFile, noIgnoreFlagName, false, disableIgnoreFlagDescription)
	registerBooleanFlag(flagSet, &options.includeGit, includeGitFlagName, false, includeGitFlagDescription)
	registerBooleanFlag(flagSet, &options.includeHidden, hiddenFlagName, false, hiddenFlagDescription)
	registerBooleanFlag(flagSet, &options.lineNumbers, lineNumbersFlagName, true, lineNumbersFlagDescription)
	registerBooleanFlag(flagSet, &options.tokensEnabled, tokensFlagName, false, tokensFlagDescription)
	flagSet.StringVar(&options.tokenModel, modelFlagName, defaultTokenizerModelName, modelFlagDescription)
	registerBooleanFlag(flagSet, &options.copyToClipboard, copyFlagName, false, copyFlagDescription)
	flagSet.StringVar(&options.configPath, configFlagName, "", configFlagDescription)
	flagSet.BoolVar(&options.showVersion, versionFlagName, false, versionFlagDescription)

	rootCommand.AddCommand(createInitCommand(dependencies))
	rootCommand.InitDefaultCompletionCmd()
	return rootCommand
}

// createInitCommand returns the init subcommand.
func createInitCommand(dependencies Dependencies) *cobra.Command {
	var global bool
	var force bool
	initCommand := &cobra.Command{
		Use:   initUse,
		Short: initShortDescription,
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			target := config.InitTargetLocal
			if global {
				target = config.InitTargetGlobal
			}
			writtenPath, initError := config.InitializeConfiguration(config.InitOptions{Target: target, Force: force})
			if initError != nil {
				return initError
			}
			_, writeError := fmt.Fprintf(dependencies.Stdout, initResultTemplate, writtenPath)
			return writeError
		},
	}
	registerBooleanFlag(initCommand.Flags(), &global, globalFlagName, false, globalFlagDescription)
	registerBooleanFlag(initCommand.Flags(), &force, forceFlagName, false, forceFlagDescription)
	return initCommand
}

// runFlatten resolves the target, merges configuration and writes the artifact.
func runFlatten(command *cobra.Command, dependencies Dependencies, options rootOptions, targetPath string) (err error) {
	workingDirectory, workingDirectoryError := os.Getwd()
	if workingDirectoryError != nil {
		return fmt.Errorf(workingDirectoryErrorFormat, workingDirectoryError)
	}
	configuration, configurationError := config.LoadApplicationConfiguration(config.LoadOptions{
		WorkingDirectory: workingDirectory,
		ExplicitFilePath: options.configPath,
	})
	if configurationError != nil {
		return fmt.Errorf(errorLoadConfigFormat, configurationError)
	}
	settings := mergeSettings(command, options, configuration)

	target, pathError := resolveAndValidatePath(targetPath)
	if pathError != nil {
		return pathError
	}

	var ignorePatterns []string
	if target.IsDir {
		patterns, loadError := config.LoadRecursiveIgnorePatterns(target.AbsolutePath, config.IgnoreOptions{
			UseGitignore:  settings.useGitignore,
			UseIgnoreFile: settings.useIgnoreFile,
			IncludeGit:    settings.includeGit,
			Exclusions:    settings.exclusionPatterns,
		})
		if loadError != nil {
			return fmt.Errorf(errorIgnorePatternsFormat, target.AbsolutePath, loadError)
		}
		ignorePatterns = patterns
	}

	flattenOptions := commands.FlattenOptions{
		Target:          target,
		DisplayName:     targetPath,
		IgnorePatterns:  ignorePatterns,
		IncludePatterns: settings.includePatterns,
		IncludeHidden:   settings.includeHidden,
		IncludeGit:      settings.includeGit,
		Mode:            settings.mode,
	}
	if settings.tokensEnabled {
		counter, resolvedModel, counterError := tokenizer.NewCounter(tokenizer.Config{Model: settings.tokenModel})
		if counterError != nil {
			return counterError
		}
		flattenOptions.TokenCounter = counter
		flattenOptions.TokenModel = resolvedModel
	}

	destination := dependencies.Stdout
	var outputFile *os.File
	if settings.outputPath != "" && settings.outputPath != standardOutputMarker {
		absoluteOutputPath, absoluteError := filepath.Abs(settings.outputPath)
		if absoluteError != nil {
			return fmt.Errorf(errorAbsolutePathFormat, settings.outputPath, absoluteError)
		}
		// #nosec G304
		createdFile, createError := os.Create(absoluteOutputPath)
		if createError != nil {
			return fmt.Errorf(errorCreateOutputFormat, absoluteOutputPath, createError)
		}
		outputFile = createdFile
		destination = outputFile
		flattenOptions.ExcludedPaths = []string{absoluteOutputPath}
		defer func() {
			if closeError := outputFile.Close(); closeError != nil && err == nil {
				err = fmt.Errorf(errorCloseOutputFormat, absoluteOutputPath, closeError)
			}
		}()
	}

	bufferedWriter := bufio.NewWriter(destination)
	var sink io.Writer = bufferedWriter
	var capture *clipboard.Capture
	if settings.copyToClipboard {
		capture = &clipboard.Capture{}
		sink = io.MultiWriter(bufferedWriter, capture)
	}

	flattener := commands.NewFlattener(dependencies.Logger)
	summary, flattenError := flattener.Flatten(command.Context(), flattenOptions, sink)
	if flattenError != nil {
		return flattenError
	}
	if flushError := bufferedWriter.Flush(); flushError != nil {
		return fmt.Errorf(errorFlushOutputFormat, flushError)
	}

	if capture != nil {
		if copyError := capture.CopyTo(dependencies.Copier); copyError != nil {
			dependencies.Logger.Warn(clipboardWarningMessage, zap.Error(copyError))
		}
	}
	flattener.LogSummary(target.AbsolutePath, summary)
	return nil
}

// mergeSettings applies configuration values to every flag the user did not set.
func mergeSettings(command *cobra.Command, options rootOptions, configuration config.ApplicationConfiguration) runSettings {
	flagSet := command.Flags()
	settings := runSettings{
		outputPath:        options.outputPath,
		exclusionPatterns: options.exclusionPatterns,
		includePatterns:   options.includePatterns,
		useGitignore:      !resolveBooleanFlag(flagSet, noGitignoreFlagName, options.disableGitignore, invertBool(configuration.UseGitignore)),
		useIgnoreFile:     !resolveBooleanFlag(flagSet, noIgnoreFlagName, options.disableIgnoreFile, invertBool(configuration.UseIgnoreFile)),
		includeGit:        resolveBooleanFlag(flagSet, includeGitFlagName, options.includeGit, configuration.IncludeGit),
		includeHidden:     resolveBooleanFlag(flagSet, hiddenFlagName, options.includeHidden, configuration.Hidden),
		tokensEnabled:     resolveBooleanFlag(flagSet, tokensFlagName, options.tokensEnabled, configuration.Tokens.Enabled),
		tokenModel:        options.tokenModel,
		copyToClipboard:   resolveBooleanFlag(flagSet, copyFlagName, options.copyToClipboard, configuration.Clipboard),
		mode:              dump.ModeNumbered,
	}
	if !flagSet.Changed(outputFlagName) && configuration.Output != "" {
		settings.outputPath = configuration.Output
	}
	if !flagSet.Changed(exclusionFlagName) && len(configuration.Exclude) > 0 {
		settings.exclusionPatterns = configuration.Exclude
	}
	if !flagSet.Changed(includeFlagName) && len(configuration.Include) > 0 {
		settings.includePatterns = configuration.Include
	}
	if !flagSet.Changed(modelFlagName) && configuration.Tokens.Model != "" {
		settings.tokenModel = configuration.Tokens.Model
	}
	if !resolveBooleanFlag(flagSet, lineNumbersFlagName, options.lineNumbers, configuration.LineNumbers) {
		settings.mode = dump.ModeRaw
	}
	settings.exclusionPatterns = utils.DeduplicatePatterns(settings.exclusionPatterns)
	settings.includePatterns = utils.DeduplicatePatterns(settings.includePatterns)
	return settings
}

func invertBool(value *bool) *bool {
	if value == nil {
		return nil
	}
	inverted := !*value
	return &inverted
}

// resolveAndValidatePath converts the input path to absolute form and validates its existence.
func resolveAndValidatePath(inputPath string) (types.ValidatedPath, error) {
	absolutePath, absolutePathError := filepath.Abs(inputPath)
	if absolutePathError != nil {
		return types.ValidatedPath{}, fmt.Errorf(errorAbsolutePathFormat, inputPath, absolutePathError)
	}
	cleanPath := filepath.Clean(absolutePath)
	info, fileStatusError := os.Stat(cleanPath)
	if fileStatusError != nil {
		if os.IsNotExist(fileStatusError) {
			return types.ValidatedPath{}, fmt.Errorf(errorPathMissingFormat, inputPath)
		}
		return types.ValidatedPath{}, fmt.Errorf(errorStatFormat, inputPath, fileStatusError)
	}
	return types.ValidatedPath{AbsolutePath: cleanPath, IsDir: info.IsDir()}, nil
}
