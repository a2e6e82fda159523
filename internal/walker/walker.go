// Package walker produces the filtered (relative path, is directory) sequence
// that the tree builder consumes.
package walker

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/temirov/treedump/internal/types"
	"github.com/temirov/treedump/internal/utils"
)

const hiddenPrefix = "."

var errEmptyRoot = errors.New("walker: root path is empty")

const (
	errorWalkEntryFormat      = "walking %s: %w"
	errorResolveSymlinkFormat = "resolving symlink %s: %w"
	errorStatExcludedFormat   = "inspecting excluded path %s: %w"
	errorResolveRootFormat    = "resolving walk root %s: %w"
)

// Options configures a walk.
type Options struct {
	// Root is the absolute directory to walk. It may be a symlink to a directory.
	Root string
	// IgnorePatterns are matched with utils.ShouldIgnoreByPath.
	IgnorePatterns []string
	// IncludePatterns restrict emitted files when non-empty.
	IncludePatterns []string
	// ExcludedPaths are filesystem paths never emitted, such as the output destination.
	ExcludedPaths []string
	IncludeHidden bool
	IncludeGit    bool
}

// Walker emits filtered entries below a root directory.
type Walker struct {
	options       Options
	excludedInfos []os.FileInfo
}

// New constructs a Walker. A symlinked root is resolved so the walk descends
// into its target. Excluded paths that do not exist yet are skipped.
func New(options Options) (*Walker, error) {
	if options.Root == "" {
		return nil, errEmptyRoot
	}
	resolvedRoot, resolveError := filepath.EvalSymlinks(options.Root)
	if resolveError != nil {
		return nil, fmt.Errorf(errorResolveRootFormat, options.Root, resolveError)
	}
	options.Root = resolvedRoot
	walker := &Walker{options: options}
	for _, excludedPath := range options.ExcludedPaths {
		if excludedPath == "" {
			continue
		}
		excludedInfo, statError := os.Stat(excludedPath)
		if statError != nil {
			if os.IsNotExist(statError) {
				continue
			}
			return nil, fmt.Errorf(errorStatExcludedFormat, excludedPath, statError)
		}
		walker.excludedInfos = append(walker.excludedInfos, excludedInfo)
	}
	return walker, nil
}

// Walk sends one entry per kept path to out in lexical walk order. A failure to
// list a directory or to classify an entry is sent as a terminal entry carrying
// the error and is also returned.
func (walker *Walker) Walk(ctx context.Context, out chan<- types.WalkEntry) error {
	walkError := filepath.WalkDir(walker.options.Root, func(currentPath string, directoryEntry fs.DirEntry, entryError error) error {
		if entryError != nil {
			return fmt.Errorf(errorWalkEntryFormat, currentPath, entryError)
		}
		if currentPath == walker.options.Root {
			return nil
		}

		relativePath := utils.RelativePathOrSelf(currentPath, walker.options.Root)
		if walker.skip(relativePath, directoryEntry, currentPath) {
			if directoryEntry.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		isDirectory, classifyError := classify(currentPath, directoryEntry)
		if classifyError != nil {
			return classifyError
		}

		if isDirectory && len(walker.options.IncludePatterns) > 0 {
			return nil
		}
		if !isDirectory && len(walker.options.IncludePatterns) > 0 && !utils.MatchesAnyPattern(relativePath, walker.options.IncludePatterns) {
			return nil
		}

		return send(ctx, out, types.WalkEntry{RelativePath: relativePath, IsDir: isDirectory})
	})
	if walkError != nil {
		_ = send(ctx, out, types.WalkEntry{Err: walkError})
	}
	return walkError
}

// skip reports whether an entry and, for directories, its subtree are filtered out.
func (walker *Walker) skip(relativePath string, directoryEntry fs.DirEntry, fullPath string) bool {
	entryName := directoryEntry.Name()
	if !walker.options.IncludeGit && directoryEntry.IsDir() && entryName == utils.GitDirectoryName {
		return true
	}
	if !walker.options.IncludeHidden && strings.HasPrefix(entryName, hiddenPrefix) {
		if !(walker.options.IncludeGit && entryName == utils.GitDirectoryName) {
			return true
		}
	}
	if utils.ShouldIgnoreByPath(relativePath, walker.options.IgnorePatterns) {
		return true
	}
	return walker.isExcluded(fullPath)
}

func (walker *Walker) isExcluded(fullPath string) bool {
	if len(walker.excludedInfos) == 0 {
		return false
	}
	entryInfo, statError := os.Stat(fullPath)
	if statError != nil {
		return false
	}
	for _, excludedInfo := range walker.excludedInfos {
		if os.SameFile(entryInfo, excludedInfo) {
			return true
		}
	}
	return false
}

// classify reports whether an entry is a directory. Symlinks are not followed
// during the walk; they are classified by their target, and a dangling link is
// an error.
func classify(fullPath string, directoryEntry fs.DirEntry) (bool, error) {
	if directoryEntry.Type()&fs.ModeSymlink == 0 {
		return directoryEntry.IsDir(), nil
	}
	targetInfo, statError := os.Stat(fullPath)
	if statError != nil {
		return false, fmt.Errorf(errorResolveSymlinkFormat, fullPath, statError)
	}
	return targetInfo.IsDir(), nil
}

func send(ctx context.Context, out chan<- types.WalkEntry, entry types.WalkEntry) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case out <- entry:
		return nil
	}
}
