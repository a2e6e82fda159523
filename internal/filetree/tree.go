// Package filetree holds the in-memory directory tree built from a filtered walk,
// the depth-first file traversal over it, and the chain-compressed diagram renderer.
package filetree

import (
	"fmt"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/temirov/treedump/internal/types"
)

const (
	// errorWalkFormat wraps a failure reported by the walk sequence.
	errorWalkFormat = "building tree for %s: %w"
	// pathSegmentSeparator joins relative path segments in traversal output.
	pathSegmentSeparator = "/"
)

// NodeKind distinguishes directories from files.
type NodeKind int

const (
	// KindDirectory marks a node that owns children.
	KindDirectory NodeKind = iota
	// KindFile marks a leaf.
	KindFile
)

// Node is a directory or a file. Directory children are kept sorted by name,
// so iteration order is always ascending bytewise order.
type Node struct {
	Kind     NodeKind
	names    []string
	children []*Node
}

func newDirectory() *Node {
	return &Node{Kind: KindDirectory}
}

func newFile() *Node {
	return &Node{Kind: KindFile}
}

// IsDir reports whether the node is a directory.
func (node *Node) IsDir() bool {
	return node.Kind == KindDirectory
}

// Len returns the number of direct children.
func (node *Node) Len() int {
	return len(node.names)
}

// Child returns the name and node of the child at index in ascending order.
func (node *Node) Child(index int) (string, *Node) {
	return node.names[index], node.children[index]
}

// Lookup returns the child registered under name.
func (node *Node) Lookup(name string) (*Node, bool) {
	index := sort.SearchStrings(node.names, name)
	if index < len(node.names) && node.names[index] == name {
		return node.children[index], true
	}
	return nil, false
}

// lookupOrInsert returns the existing child for name or inserts created at its
// sorted position.
func (node *Node) lookupOrInsert(name string, created *Node) *Node {
	index := sort.SearchStrings(node.names, name)
	if index < len(node.names) && node.names[index] == name {
		return node.children[index]
	}
	node.names = append(node.names, "")
	copy(node.names[index+1:], node.names[index:])
	node.names[index] = name
	node.children = append(node.children, nil)
	copy(node.children[index+1:], node.children[index:])
	node.children[index] = created
	return created
}

// Tree is a fully built directory tree rooted at a directory node.
type Tree struct {
	// Root is always a directory.
	Root *Node
	// Name is the display name printed on the first diagram line.
	Name string
	// ContentRoot is the filesystem directory that relative file paths are joined to.
	ContentRoot string
	// SingleFile marks a tree built for a target that is itself a file.
	SingleFile bool
}

// New creates an empty tree for the walked root path.
func New(rootPath string) *Tree {
	return &Tree{
		Root:        newDirectory(),
		Name:        DisplayName(rootPath),
		ContentRoot: rootPath,
	}
}

// NewSingleFile creates a tree for a target that is a single file: the root
// directory holds one file leaf named after it and content is read from its parent.
func NewSingleFile(filePath string) *Tree {
	tree := &Tree{
		Root:        newDirectory(),
		Name:        DisplayName(filePath),
		ContentRoot: filepath.Dir(filePath),
		SingleFile:  true,
	}
	tree.Insert(filepath.Base(filePath), false)
	return tree
}

// DisplayName returns the last element of rootPath, or rootPath itself when it
// has no usable last element.
func DisplayName(rootPath string) string {
	baseName := filepath.Base(rootPath)
	if baseName == "." || baseName == string(filepath.Separator) || baseName == "" {
		return rootPath
	}
	return baseName
}

// Insert adds one walk entry. Intermediate directories are created on demand.
// Inserting an existing file is a no-op and inserting an existing directory keeps
// its children. An entry whose intermediate segment is already a file is dropped.
func (tree *Tree) Insert(relativePath string, isDirectory bool) {
	segments := splitSegments(relativePath)
	if len(segments) == 0 {
		return
	}
	currentNode := tree.Root
	lastIndex := len(segments) - 1
	for segmentIndex, segment := range segments {
		if segmentIndex == lastIndex {
			if isDirectory {
				currentNode.lookupOrInsert(segment, newDirectory())
			} else {
				currentNode.lookupOrInsert(segment, newFile())
			}
			return
		}
		childNode := currentNode.lookupOrInsert(segment, newDirectory())
		if !childNode.IsDir() {
			return
		}
		currentNode = childNode
	}
}

// Build consumes the walk sequence exhaustively and returns the finished tree.
// The first walk error aborts construction.
func Build(rootPath string, entries <-chan types.WalkEntry) (*Tree, error) {
	tree := New(rootPath)
	for entry := range entries {
		if entry.Err != nil {
			return nil, fmt.Errorf(errorWalkFormat, rootPath, entry.Err)
		}
		tree.Insert(entry.RelativePath, entry.IsDir)
	}
	return tree, nil
}

// FileCount returns the number of file leaves.
func (tree *Tree) FileCount() int {
	return countFiles(tree.Root)
}

func countFiles(node *Node) int {
	if !node.IsDir() {
		return 1
	}
	total := 0
	for _, child := range node.children {
		total += countFiles(child)
	}
	return total
}

// VisitFiles calls visitor with the slash-separated relative path of every file
// leaf in ascending lexicographic path order. A visitor error stops the traversal.
func (tree *Tree) VisitFiles(visitor func(relativePath string) error) error {
	return visitFiles(tree.Root, "", visitor)
}

func visitFiles(node *Node, currentPath string, visitor func(string) error) error {
	if !node.IsDir() {
		return visitor(currentPath)
	}
	for childIndex, childName := range node.names {
		if visitError := visitFiles(node.children[childIndex], path.Join(currentPath, childName), visitor); visitError != nil {
			return visitError
		}
	}
	return nil
}

// splitSegments breaks a relative path into its non-empty segments, accepting
// either separator.
func splitSegments(relativePath string) []string {
	normalizedPath := filepath.ToSlash(relativePath)
	rawSegments := strings.Split(normalizedPath, pathSegmentSeparator)
	segments := make([]string, 0, len(rawSegments))
	for _, segment := range rawSegments {
		if segment == "" || segment == "." {
			continue
		}
		segments = append(segments, segment)
	}
	return segments
}
