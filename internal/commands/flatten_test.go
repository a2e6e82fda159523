package commands_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/temirov/treedump/internal/commands"
	"github.com/temirov/treedump/internal/dump"
	"github.com/temirov/treedump/internal/types"
)

func writeProjectFile(t *testing.T, root string, relativePath string, content string) {
	t.Helper()
	fullPath := filepath.Join(root, filepath.FromSlash(relativePath))
	require.NoError(t, os.MkdirAll(filepath.Dir(fullPath), 0o755))
	require.NoError(t, os.WriteFile(fullPath, []byte(content), 0o600))
}

func TestFlattenProducesDiagramAndBlocks(t *testing.T) {
	t.Parallel()

	root := filepath.Join(t.TempDir(), "project")
	writeProjectFile(t, root, "src/main/App.java", "class App {}\n")
	writeProjectFile(t, root, "README.md", "# title\n\ntext\n")
	writeProjectFile(t, root, "data.bin", "\xff\xfe\x00")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "empty"), 0o755))

	var output bytes.Buffer
	summary, flattenError := commands.NewFlattener(nil).Flatten(context.Background(), commands.FlattenOptions{
		Target: types.ValidatedPath{AbsolutePath: root, IsDir: true},
	}, &output)
	require.NoError(t, flattenError)

	expected := strings.Join([]string{
		"project",
		"├── README.md",
		"├── data.bin",
		"├── empty/",
		"└── src/main/App.java",
		"",
		"---",
		"",
		"/README.md:",
		"1 # title",
		"2 ",
		"3 text",
		"---",
		"",
		"/data.bin:",
		dump.Placeholder,
		"---",
		"",
		"/src/main/App.java:",
		"1 class App {}",
		"---",
		"",
	}, "\n")
	assert.Equal(t, expected, output.String())
	assert.Equal(t, 3, summary.TotalFiles)
	assert.Equal(t, 1, summary.UnreadableFiles)
}

func TestFlattenSingleFileTarget(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeProjectFile(t, root, "notes.txt", "a\nb\n")

	var output bytes.Buffer
	_, flattenError := commands.NewFlattener(nil).Flatten(context.Background(), commands.FlattenOptions{
		Target: types.ValidatedPath{AbsolutePath: filepath.Join(root, "notes.txt")},
		Mode:   dump.ModeRaw,
	}, &output)
	require.NoError(t, flattenError)
	assert.Equal(t, "notes.txt\n\n---\n\n/notes.txt:\na\nb\n---\n", output.String())
}

func TestFlattenFollowsSymlinkedRoot(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks require elevated privileges on windows")
	}
	t.Parallel()

	parent := t.TempDir()
	writeProjectFile(t, filepath.Join(parent, "real"), "b.txt", "b\n")
	writeProjectFile(t, filepath.Join(parent, "real"), "sub/a.txt", "a\n")
	linkPath := filepath.Join(parent, "link")
	require.NoError(t, os.Symlink(filepath.Join(parent, "real"), linkPath))

	var output bytes.Buffer
	summary, flattenError := commands.NewFlattener(nil).Flatten(context.Background(), commands.FlattenOptions{
		Target: types.ValidatedPath{AbsolutePath: linkPath, IsDir: true},
	}, &output)
	require.NoError(t, flattenError)
	assert.Equal(t, "link\n├── b.txt\n└── sub/a.txt\n\n---\n\n/b.txt:\n1 b\n---\n\n/sub/a.txt:\n1 a\n---\n", output.String())
	assert.Equal(t, 2, summary.TotalFiles)
}

func TestFlattenNamesRootAfterTypedPath(t *testing.T) {
	t.Parallel()

	root := filepath.Join(t.TempDir(), "checkout")
	writeProjectFile(t, root, "main.go", "package main\n")

	testCases := []struct {
		name        string
		displayName string
		firstLine   string
	}{
		{name: "working directory", displayName: ".", firstLine: "."},
		{name: "trailing separator", displayName: "checkout/", firstLine: "checkout"},
		{name: "parent directory", displayName: "..", firstLine: ".."},
		{name: "unset", displayName: "", firstLine: "checkout"},
	}

	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()
			var output bytes.Buffer
			_, flattenError := commands.NewFlattener(nil).Flatten(context.Background(), commands.FlattenOptions{
				Target:      types.ValidatedPath{AbsolutePath: root, IsDir: true},
				DisplayName: testCase.displayName,
			}, &output)
			require.NoError(t, flattenError)
			firstLine, _, _ := strings.Cut(output.String(), "\n")
			assert.Equal(t, testCase.firstLine, firstLine)
		})
	}
}

func TestFlattenExcludesOutputFile(t *testing.T) {
	t.Parallel()

	root := filepath.Join(t.TempDir(), "work")
	writeProjectFile(t, root, "main.go", "package main\n")
	writeProjectFile(t, root, "dump.txt", "previous run\n")

	var output bytes.Buffer
	_, flattenError := commands.NewFlattener(nil).Flatten(context.Background(), commands.FlattenOptions{
		Target:        types.ValidatedPath{AbsolutePath: root, IsDir: true},
		ExcludedPaths: []string{filepath.Join(root, "dump.txt")},
	}, &output)
	require.NoError(t, flattenError)
	assert.NotContains(t, output.String(), "dump.txt")
	assert.Contains(t, output.String(), "/main.go:")
}

func TestFlattenWalkErrorWritesNothing(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeProjectFile(t, root, "a.txt", "a\n")
	require.NoError(t, os.Symlink(filepath.Join(root, "missing"), filepath.Join(root, "broken")))

	var output bytes.Buffer
	_, flattenError := commands.NewFlattener(nil).Flatten(context.Background(), commands.FlattenOptions{
		Target: types.ValidatedPath{AbsolutePath: root, IsDir: true},
	}, &output)
	require.Error(t, flattenError)
	assert.ErrorIs(t, flattenError, os.ErrNotExist)
	assert.Empty(t, output.String())
}

func TestBuildTreeHonorsCancellation(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	for index := 0; index < 200; index++ {
		writeProjectFile(t, root, filepath.Join("dir", strings.Repeat("f", index%7+1)+string(rune('a'+index%26)), "x.txt"), "x")
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, buildError := commands.BuildTree(ctx, commands.FlattenOptions{Target: types.ValidatedPath{AbsolutePath: root, IsDir: true}})
	assert.ErrorIs(t, buildError, context.Canceled)
}

func TestSummarizeAndLogSummary(t *testing.T) {
	t.Parallel()

	summary := commands.Summarize([]types.FileSummary{
		{RelativePath: "a.txt", SizeBytes: 1500, Tokens: 10, Readable: true},
		{RelativePath: "b.txt", SizeBytes: 500, Tokens: 5, Readable: true},
		{RelativePath: "c.bin"},
	}, "gpt-4o")
	assert.Equal(t, 3, summary.TotalFiles)
	assert.Equal(t, 1, summary.UnreadableFiles)
	assert.Equal(t, 15, summary.TotalTokens)
	assert.Equal(t, "2.0 kB", summary.TotalSize)

	core, recorded := observer.New(zapcore.InfoLevel)
	commands.NewFlattener(zap.New(core)).LogSummary("/root", summary)

	entries := recorded.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "flatten complete", entries[0].Message)
	fields := entries[0].ContextMap()
	assert.Equal(t, int64(3), fields["files"])
	assert.Equal(t, "2.0 kB", fields["size"])
	assert.Equal(t, int64(15), fields["tokens"])
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
}
