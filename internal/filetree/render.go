package filetree

import (
	"fmt"
	"io"
	"strings"
)

const (
	middleConnector     = "├── "
	lastConnector       = "└── "
	middleContinuation  = "│   "
	lastContinuation    = "    "
	directorySuffix     = "/"
	diagramLineTemplate = "%s%s%s\n"
)

// Display writes the root display name followed by the compressed diagram of
// its children. A directory whose only child is a directory is merged with that
// child into a single line, so the diagram grows with branching rather than depth.
func (tree *Tree) Display(writer io.Writer) error {
	if _, writeError := fmt.Fprintln(writer, tree.Name); writeError != nil {
		return writeError
	}
	if tree.SingleFile {
		return nil
	}
	return displayChildren(writer, tree.Root, "")
}

func displayChildren(writer io.Writer, directory *Node, prefix string) error {
	childCount := directory.Len()
	for childIndex := 0; childIndex < childCount; childIndex++ {
		childName, childNode := directory.Child(childIndex)
		isLastChild := childIndex == childCount-1
		connector := middleConnector
		childPrefix := prefix + middleContinuation
		if isLastChild {
			connector = lastConnector
			childPrefix = prefix + lastContinuation
		}

		if !childNode.IsDir() {
			if _, writeError := fmt.Fprintf(writer, diagramLineTemplate, prefix, connector, childName); writeError != nil {
				return writeError
			}
			continue
		}

		chainEnd, chainPath := followChain(childName, childNode)
		switch chainEnd.Len() {
		case 0:
			if _, writeError := fmt.Fprintf(writer, diagramLineTemplate, prefix, connector, chainPath+directorySuffix); writeError != nil {
				return writeError
			}
		case 1:
			fileName, _ := chainEnd.Child(0)
			if _, writeError := fmt.Fprintf(writer, diagramLineTemplate, prefix, connector, chainPath+directorySuffix+fileName); writeError != nil {
				return writeError
			}
		default:
			if _, writeError := fmt.Fprintf(writer, diagramLineTemplate, prefix, connector, chainPath+directorySuffix); writeError != nil {
				return writeError
			}
			if renderError := displayChildren(writer, chainEnd, childPrefix); renderError != nil {
				return renderError
			}
		}
	}
	return nil
}

// followChain walks down while the current directory has exactly one child and
// that child is a directory. It returns the last directory reached and the
// joined names along the way. When it stops on a single child, that child is a file.
func followChain(name string, directory *Node) (*Node, string) {
	chainSegments := []string{name}
	currentNode := directory
	for currentNode.Len() == 1 {
		onlyChildName, onlyChild := currentNode.Child(0)
		if !onlyChild.IsDir() {
			break
		}
		chainSegments = append(chainSegments, onlyChildName)
		currentNode = onlyChild
	}
	return currentNode, strings.Join(chainSegments, directorySuffix)
}
