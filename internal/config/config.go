// Package config loads ignore files and the application configuration.
package config

import (
	"bufio"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/temirov/treedump/internal/utils"
)

const (
	// gitDirectoryPattern represents the pattern that matches the Git directory.
	gitDirectoryPattern = utils.GitDirectoryName + "/"
	commentPrefix       = "#"
	negationPrefix      = "!"
	anchorPrefix        = "/"
	anyDirectoryPrefix  = "**/"

	errorLoadIgnoreFileFormat = "loading %s from %s: %w"
	errorResolveRootFormat    = "resolving ignore root %s: %w"
)

// IgnoreOptions selects which ignore sources contribute patterns.
type IgnoreOptions struct {
	UseGitignore  bool
	UseIgnoreFile bool
	IncludeGit    bool
	// Exclusions are user supplied patterns appended after the file patterns.
	Exclusions []string
}

// LoadIgnoreFilePatterns reads one ignore file and returns its patterns. A
// missing file yields no patterns. Negated patterns are not supported and are
// dropped.
//
// #nosec G304
func LoadIgnoreFilePatterns(ignoreFilePath string) ([]string, error) {
	fileHandle, openFileError := os.Open(ignoreFilePath)
	if openFileError != nil {
		if os.IsNotExist(openFileError) {
			return nil, nil
		}
		return nil, openFileError
	}
	defer fileHandle.Close()

	var ignorePatterns []string
	scanner := bufio.NewScanner(fileHandle)
	for scanner.Scan() {
		trimmedLine := strings.TrimSpace(scanner.Text())
		if trimmedLine == "" || strings.HasPrefix(trimmedLine, commentPrefix) || strings.HasPrefix(trimmedLine, negationPrefix) {
			continue
		}
		ignorePatterns = append(ignorePatterns, trimmedLine)
	}
	if scanError := scanner.Err(); scanError != nil {
		return nil, scanError
	}
	return ignorePatterns, nil
}

// scopePattern rewrites a pattern found in the ignore file of the directory at
// prefix so that it applies to paths relative to the walk root. Anchored
// patterns become prefix exclusions. A leading "**/" is dropped.
func scopePattern(prefix string, pattern string) string {
	pattern = strings.TrimPrefix(pattern, anyDirectoryPrefix)
	if strings.HasPrefix(pattern, anchorPrefix) {
		return utils.ExclusionPrefix + prefix + strings.TrimPrefix(pattern, anchorPrefix)
	}
	return prefix + pattern
}

// LoadRecursiveIgnorePatterns walks rootDirectoryPath and aggregates ignore
// patterns from every utils.IgnoreFileName and utils.GitIgnoreFileName it finds.
// Patterns from nested directories are scoped to that directory. The directory
// named utils.GitDirectoryName is ignored unless options.IncludeGit is set. A
// symlinked root is followed.
func LoadRecursiveIgnorePatterns(rootDirectoryPath string, options IgnoreOptions) ([]string, error) {
	var aggregatedPatterns []string

	ignoreFileNames := make([]string, 0, 2)
	if options.UseIgnoreFile {
		ignoreFileNames = append(ignoreFileNames, utils.IgnoreFileName)
	}
	if options.UseGitignore {
		ignoreFileNames = append(ignoreFileNames, utils.GitIgnoreFileName)
	}

	if len(ignoreFileNames) > 0 {
		resolvedRoot, resolveError := filepath.EvalSymlinks(rootDirectoryPath)
		if resolveError != nil {
			return nil, fmt.Errorf(errorResolveRootFormat, rootDirectoryPath, resolveError)
		}
		rootDirectoryPath = resolvedRoot
		walkFunction := func(currentDirectoryPath string, directoryEntry fs.DirEntry, walkError error) error {
			if walkError != nil {
				return walkError
			}
			if !directoryEntry.IsDir() {
				return nil
			}
			if !options.IncludeGit && directoryEntry.Name() == utils.GitDirectoryName {
				return filepath.SkipDir
			}

			relativeDirectory := utils.RelativePathOrSelf(currentDirectoryPath, rootDirectoryPath)
			prefix := ""
			if relativeDirectory != "." {
				prefix = relativeDirectory + "/"
			}

			for _, ignoreFileName := range ignoreFileNames {
				filePatterns, loadError := LoadIgnoreFilePatterns(filepath.Join(currentDirectoryPath, ignoreFileName))
				if loadError != nil {
					return fmt.Errorf(errorLoadIgnoreFileFormat, ignoreFileName, currentDirectoryPath, loadError)
				}
				for _, pattern := range filePatterns {
					aggregatedPatterns = append(aggregatedPatterns, scopePattern(prefix, pattern))
				}
			}
			return nil
		}

		if walkError := filepath.WalkDir(rootDirectoryPath, walkFunction); walkError != nil {
			return nil, walkError
		}
	}

	if !options.IncludeGit {
		aggregatedPatterns = append(aggregatedPatterns, gitDirectoryPattern)
	}

	deduplicatedPatterns := utils.DeduplicatePatterns(aggregatedPatterns)

	for _, pattern := range options.Exclusions {
		trimmedPattern := strings.TrimSpace(pattern)
		if trimmedPattern == "" {
			continue
		}
		if !utils.ContainsString(deduplicatedPatterns, trimmedPattern) {
			deduplicatedPatterns = append(deduplicatedPatterns, trimmedPattern)
		}
	}

	return deduplicatedPatterns, nil
}
