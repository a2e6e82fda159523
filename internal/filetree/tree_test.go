package filetree_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/temirov/treedump/internal/filetree"
	"github.com/temirov/treedump/internal/types"
)

func entriesChannel(entries ...types.WalkEntry) <-chan types.WalkEntry {
	channel := make(chan types.WalkEntry, len(entries))
	for _, entry := range entries {
		channel <- entry
	}
	close(channel)
	return channel
}

func childNames(node *filetree.Node) []string {
	names := make([]string, 0, node.Len())
	for index := 0; index < node.Len(); index++ {
		name, _ := node.Child(index)
		names = append(names, name)
	}
	return names
}

func TestBuildOrdersChildrenIndependentOfWalkOrder(t *testing.T) {
	t.Parallel()

	tree, buildError := filetree.Build("/tmp/project", entriesChannel(
		types.WalkEntry{RelativePath: "zeta.txt"},
		types.WalkEntry{RelativePath: "src", IsDir: true},
		types.WalkEntry{RelativePath: "src/main.go"},
		types.WalkEntry{RelativePath: "alpha.txt"},
		types.WalkEntry{RelativePath: "Makefile"},
		types.WalkEntry{RelativePath: "src/api.go"},
	))
	require.NoError(t, buildError)

	assert.Equal(t, []string{"Makefile", "alpha.txt", "src", "zeta.txt"}, childNames(tree.Root))
	sourceDirectory, found := tree.Root.Lookup("src")
	require.True(t, found)
	assert.True(t, sourceDirectory.IsDir())
	assert.Equal(t, []string{"api.go", "main.go"}, childNames(sourceDirectory))
	assert.Equal(t, "project", tree.Name)
}

func TestBuildFileCountIgnoresDuplicates(t *testing.T) {
	t.Parallel()

	tree, buildError := filetree.Build("root", entriesChannel(
		types.WalkEntry{RelativePath: "a/b.txt"},
		types.WalkEntry{RelativePath: "a/b.txt"},
		types.WalkEntry{RelativePath: "a", IsDir: true},
		types.WalkEntry{RelativePath: "c.txt"},
		types.WalkEntry{RelativePath: "empty", IsDir: true},
	))
	require.NoError(t, buildError)
	assert.Equal(t, 2, tree.FileCount())

	directoryNode, found := tree.Root.Lookup("a")
	require.True(t, found)
	assert.Equal(t, []string{"b.txt"}, childNames(directoryNode))
}

func TestInsertCreatesIntermediateDirectories(t *testing.T) {
	t.Parallel()

	tree := filetree.New("root")
	tree.Insert("a/b/c/d.txt", false)

	currentNode := tree.Root
	for _, segment := range []string{"a", "b", "c"} {
		nextNode, found := currentNode.Lookup(segment)
		require.True(t, found, segment)
		require.True(t, nextNode.IsDir(), segment)
		currentNode = nextNode
	}
	leaf, found := currentNode.Lookup("d.txt")
	require.True(t, found)
	assert.False(t, leaf.IsDir())
}

func TestInsertStopsBelowExistingFile(t *testing.T) {
	t.Parallel()

	tree := filetree.New("root")
	tree.Insert("notes", false)
	tree.Insert("notes/inner.txt", false)

	notesNode, found := tree.Root.Lookup("notes")
	require.True(t, found)
	assert.False(t, notesNode.IsDir())
	assert.Equal(t, 0, notesNode.Len())
	assert.Equal(t, 1, tree.FileCount())
}

func TestBuildPropagatesWalkError(t *testing.T) {
	t.Parallel()

	permissionError := errors.New("permission denied")
	tree, buildError := filetree.Build("root", entriesChannel(
		types.WalkEntry{RelativePath: "a.txt"},
		types.WalkEntry{Err: permissionError},
		types.WalkEntry{RelativePath: "b.txt"},
	))
	require.Error(t, buildError)
	assert.ErrorIs(t, buildError, permissionError)
	assert.Nil(t, tree)
}

func TestVisitFilesYieldsLexicographicPaths(t *testing.T) {
	t.Parallel()

	tree := filetree.New("root")
	for _, relativePath := range []string{"b/z.txt", "a.txt", "b/a/x.txt", "c", "b/y.txt"} {
		tree.Insert(relativePath, false)
	}
	tree.Insert("d", true)

	var visited []string
	visitError := tree.VisitFiles(func(relativePath string) error {
		visited = append(visited, relativePath)
		return nil
	})
	require.NoError(t, visitError)
	assert.Equal(t, []string{"a.txt", "b/a/x.txt", "b/y.txt", "b/z.txt", "c"}, visited)
}

func TestVisitFilesStopsOnVisitorError(t *testing.T) {
	t.Parallel()

	tree := filetree.New("root")
	tree.Insert("a.txt", false)
	tree.Insert("b.txt", false)

	stopError := errors.New("stop")
	var visited []string
	visitError := tree.VisitFiles(func(relativePath string) error {
		visited = append(visited, relativePath)
		return stopError
	})
	assert.ErrorIs(t, visitError, stopError)
	assert.Equal(t, []string{"a.txt"}, visited)
}

func TestNewSingleFile(t *testing.T) {
	t.Parallel()

	tree := filetree.NewSingleFile("/work/docs/readme.md")
	assert.True(t, tree.SingleFile)
	assert.Equal(t, "readme.md", tree.Name)
	assert.Equal(t, "/work/docs", tree.ContentRoot)
	assert.Equal(t, 1, tree.FileCount())
	assert.True(t, tree.Root.IsDir())
}
