package walker_test

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/temirov/treedump/internal/types"
	"github.com/temirov/treedump/internal/walker"
)

type walkedEntry struct {
	path  string
	isDir bool
}

func createFiles(t *testing.T, root string, relativePaths ...string) {
	t.Helper()
	for _, relativePath := range relativePaths {
		fullPath := filepath.Join(root, filepath.FromSlash(relativePath))
		require.NoError(t, os.MkdirAll(filepath.Dir(fullPath), 0o755))
		require.NoError(t, os.WriteFile(fullPath, []byte(relativePath), 0o600))
	}
}

func collect(t *testing.T, options walker.Options) ([]walkedEntry, error) {
	t.Helper()
	fileWalker, constructionError := walker.New(options)
	require.NoError(t, constructionError)

	entries := make(chan types.WalkEntry, 256)
	walkError := fileWalker.Walk(context.Background(), entries)
	close(entries)

	var collected []walkedEntry
	for entry := range entries {
		if entry.Err != nil {
			continue
		}
		collected = append(collected, walkedEntry{path: entry.RelativePath, isDir: entry.IsDir})
	}
	return collected, walkError
}

func TestWalkEmitsRelativeEntriesInLexicalOrder(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	createFiles(t, root, "b.txt", "a/one.txt", "a/two.txt")
	require.NoError(t, os.Mkdir(filepath.Join(root, "empty"), 0o755))

	collected, walkError := collect(t, walker.Options{Root: root})
	require.NoError(t, walkError)
	assert.Equal(t, []walkedEntry{
		{path: "a", isDir: true},
		{path: "a/one.txt"},
		{path: "a/two.txt"},
		{path: "b.txt"},
		{path: "empty", isDir: true},
	}, collected)
}

func TestWalkFiltersHiddenGitAndIgnored(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	createFiles(t, root, ".git/HEAD", ".env", "keep.go", "vendor/lib.go", "build/out.log", "src/main.go")

	testCases := []struct {
		name     string
		options  walker.Options
		expected []walkedEntry
	}{
		{
			name:    "defaults skip hidden entries",
			options: walker.Options{Root: root, IgnorePatterns: []string{"vendor/", "*.log"}},
			expected: []walkedEntry{
				{path: "build", isDir: true},
				{path: "keep.go"},
				{path: "src", isDir: true},
				{path: "src/main.go"},
			},
		},
		{
			name:    "hidden entries without git",
			options: walker.Options{Root: root, IncludeHidden: true, IgnorePatterns: []string{"vendor/", "build/", "src/"}},
			expected: []walkedEntry{
				{path: ".env"},
				{path: "keep.go"},
			},
		},
		{
			name:    "git directory on request",
			options: walker.Options{Root: root, IncludeGit: true, IgnorePatterns: []string{"vendor/", "build/", "src/"}},
			expected: []walkedEntry{
				{path: ".git", isDir: true},
				{path: ".git/HEAD"},
				{path: "keep.go"},
			},
		},
	}

	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()
			collected, walkError := collect(t, testCase.options)
			require.NoError(t, walkError)
			assert.Equal(t, testCase.expected, collected)
		})
	}
}

func TestWalkIncludePatternsKeepOnlyMatchingFiles(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	createFiles(t, root, "docs/readme.md", "docs/image.png", "main.go", "pkg/util.go")
	require.NoError(t, os.Mkdir(filepath.Join(root, "empty"), 0o755))

	collected, walkError := collect(t, walker.Options{Root: root, IncludePatterns: []string{"*.go", "docs/*.md"}})
	require.NoError(t, walkError)
	assert.Equal(t, []walkedEntry{
		{path: "docs/readme.md"},
		{path: "main.go"},
		{path: "pkg/util.go"},
	}, collected)
}

func TestWalkSkipsOutputDestination(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	createFiles(t, root, "dump.txt", "main.go")

	collected, walkError := collect(t, walker.Options{Root: root, ExcludedPaths: []string{filepath.Join(root, "dump.txt"), filepath.Join(root, "missing.txt")}})
	require.NoError(t, walkError)
	assert.Equal(t, []walkedEntry{{path: "main.go"}}, collected)
}

func TestWalkReportsBrokenSymlink(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks require elevated privileges on windows")
	}
	t.Parallel()

	root := t.TempDir()
	createFiles(t, root, "a.txt")
	require.NoError(t, os.Symlink(filepath.Join(root, "nowhere"), filepath.Join(root, "dangling")))

	fileWalker, constructionError := walker.New(walker.Options{Root: root})
	require.NoError(t, constructionError)
	entries := make(chan types.WalkEntry, 16)
	walkError := fileWalker.Walk(context.Background(), entries)
	close(entries)
	require.Error(t, walkError)

	var terminal types.WalkEntry
	for entry := range entries {
		terminal = entry
	}
	assert.ErrorIs(t, terminal.Err, os.ErrNotExist)
}

func TestWalkClassifiesDirectorySymlinkAsDirectory(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks require elevated privileges on windows")
	}
	t.Parallel()

	root := t.TempDir()
	target := t.TempDir()
	createFiles(t, target, "inside.txt")
	require.NoError(t, os.Symlink(target, filepath.Join(root, "linked")))

	collected, walkError := collect(t, walker.Options{Root: root})
	require.NoError(t, walkError)
	assert.Equal(t, []walkedEntry{{path: "linked", isDir: true}}, collected)
}

func TestWalkDescendsIntoSymlinkedRoot(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks require elevated privileges on windows")
	}
	t.Parallel()

	parent := t.TempDir()
	createFiles(t, filepath.Join(parent, "real"), "b.txt", "sub/a.txt")
	linkPath := filepath.Join(parent, "link")
	require.NoError(t, os.Symlink(filepath.Join(parent, "real"), linkPath))

	collected, walkError := collect(t, walker.Options{Root: linkPath})
	require.NoError(t, walkError)
	assert.Equal(t, []walkedEntry{
		{path: "b.txt", isDir: false},
		{path: "sub", isDir: true},
		{path: "sub/a.txt", isDir: false},
	}, collected)
}

func TestNewRejectsEmptyRoot(t *testing.T) {
	t.Parallel()

	_, constructionError := walker.New(walker.Options{})
	assert.Error(t, constructionError)
}
