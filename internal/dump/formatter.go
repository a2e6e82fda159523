// Package dump writes the per-file content blocks that follow the tree diagram.
package dump

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/temirov/treedump/internal/filetree"
	"github.com/temirov/treedump/internal/tokenizer"
	"github.com/temirov/treedump/internal/types"
	"github.com/temirov/treedump/internal/utils"
)

// Mode selects how file content is printed.
type Mode string

const (
	// ModeNumbered prints every line prefixed by its right-aligned 1-based number.
	ModeNumbered Mode = "numbered"
	// ModeRaw prints the file content verbatim.
	ModeRaw Mode = "raw"
)

const (
	// Placeholder replaces the content of files that cannot be opened or decoded as text.
	Placeholder = "   * [Could not read file content (likely binary or permission error)]"
	// Delimiter terminates every file block and the diagram.
	Delimiter = "---"
	// DefaultMaxRawBytes bounds the size of a file read whole in raw mode.
	DefaultMaxRawBytes int64 = 32 << 20

	headerFormat       = "/%s:\n"
	numberedLineFormat = "%*d %s\n"
	errorWriteFormat   = "writing block for %s: %w"
)

var (
	errNotText      = errors.New("content is not valid text")
	errFileTooLarge = errors.New("file exceeds raw read limit")
)

// Options configures a Formatter.
type Options struct {
	Mode         Mode
	MaxRawBytes  int64
	TokenCounter tokenizer.Counter
	// Warn receives non-fatal diagnostics such as token counting failures.
	Warn func(message string)
}

// Formatter renders file blocks for every file leaf of a tree.
type Formatter struct {
	options Options
}

// NewFormatter constructs a Formatter, filling unset options with defaults.
func NewFormatter(options Options) *Formatter {
	if options.Mode == "" {
		options.Mode = ModeNumbered
	}
	if options.MaxRawBytes <= 0 {
		options.MaxRawBytes = DefaultMaxRawBytes
	}
	if options.Warn == nil {
		options.Warn = func(string) {}
	}
	return &Formatter{options: options}
}

// Format writes one block per file of tree in traversal order and returns the
// per-file summaries. Unreadable files degrade to the placeholder; only write
// failures are returned.
func (formatter *Formatter) Format(tree *filetree.Tree, writer io.Writer) ([]types.FileSummary, error) {
	var summaries []types.FileSummary
	visitError := tree.VisitFiles(func(relativePath string) error {
		summary, formatError := formatter.FormatFile(tree.ContentRoot, relativePath, writer)
		if formatError != nil {
			return formatError
		}
		summaries = append(summaries, summary)
		return nil
	})
	return summaries, visitError
}

// FormatFile writes the block for one file. The whole block is assembled before
// it is written, so a file that fails midway never produces a partial dump.
func (formatter *Formatter) FormatFile(contentRoot string, relativePath string, writer io.Writer) (types.FileSummary, error) {
	summary := types.FileSummary{RelativePath: filepath.ToSlash(relativePath)}

	var block bytes.Buffer
	block.WriteString("\n")
	fmt.Fprintf(&block, headerFormat, summary.RelativePath)

	var content bytes.Buffer
	fullPath := filepath.Join(contentRoot, filepath.FromSlash(relativePath))
	sizeBytes, tokenSource, readError := formatter.readContent(fullPath, &content)
	if readError != nil {
		block.WriteString(Placeholder)
		block.WriteString("\n")
	} else {
		summary.Readable = true
		summary.SizeBytes = sizeBytes
		block.Write(content.Bytes())
		summary.Tokens = formatter.countTokens(summary.RelativePath, tokenSource)
	}
	block.WriteString(Delimiter)
	block.WriteString("\n")

	if _, writeError := writer.Write(block.Bytes()); writeError != nil {
		return summary, fmt.Errorf(errorWriteFormat, summary.RelativePath, writeError)
	}
	return summary, nil
}

// readContent formats the file at fullPath into content according to the mode.
// It returns the file size and the text used for token counting.
func (formatter *Formatter) readContent(fullPath string, content *bytes.Buffer) (int64, []byte, error) {
	// #nosec G304
	fileHandle, openError := os.Open(fullPath)
	if openError != nil {
		return 0, nil, openError
	}
	defer fileHandle.Close()

	fileInformation, statError := fileHandle.Stat()
	if statError != nil {
		return 0, nil, statError
	}

	if formatter.options.Mode == ModeRaw {
		data, rawError := readRaw(fileHandle, fileInformation.Size(), formatter.options.MaxRawBytes)
		if rawError != nil {
			return 0, nil, rawError
		}
		content.Write(data)
		if len(data) > 0 && data[len(data)-1] != '\n' {
			content.WriteString("\n")
		}
		return fileInformation.Size(), data, nil
	}

	lineCount, validationError := countTextLines(fileHandle)
	if validationError != nil {
		return 0, nil, validationError
	}
	if _, seekError := fileHandle.Seek(0, io.SeekStart); seekError != nil {
		return 0, nil, seekError
	}
	var tokenSource []byte
	collectText := formatter.options.TokenCounter != nil
	width := digitCount(lineCount)
	lineNumber := 0
	printError := forEachLine(fileHandle, func(line []byte) error {
		if utils.IsBinary(line) {
			return errNotText
		}
		lineNumber++
		fmt.Fprintf(content, numberedLineFormat, width, lineNumber, line)
		if collectText {
			tokenSource = append(tokenSource, line...)
			tokenSource = append(tokenSource, '\n')
		}
		return nil
	})
	if printError != nil {
		return 0, nil, printError
	}
	return fileInformation.Size(), tokenSource, nil
}

func (formatter *Formatter) countTokens(relativePath string, data []byte) int {
	if formatter.options.TokenCounter == nil {
		return 0
	}
	countResult, countError := tokenizer.CountBytes(formatter.options.TokenCounter, data)
	if countError != nil {
		formatter.options.Warn(fmt.Sprintf("failed to count tokens for %s: %v", relativePath, countError))
		return 0
	}
	return countResult.Tokens
}

// countTextLines reads every line and fails on the first one that is not valid UTF-8.
func countTextLines(reader io.Reader) (int, error) {
	lineCount := 0
	countError := forEachLine(reader, func(line []byte) error {
		if utils.IsBinary(line) {
			return errNotText
		}
		lineCount++
		return nil
	})
	return lineCount, countError
}

// forEachLine calls handle for each line of reader. Lines are split on '\n'; a
// '\r' directly before the '\n' is dropped. A final line without a newline is
// still reported, an empty input reports no lines.
func forEachLine(reader io.Reader, handle func(line []byte) error) error {
	bufferedReader := bufio.NewReader(reader)
	for {
		line, readError := bufferedReader.ReadBytes('\n')
		if len(line) > 0 {
			if line[len(line)-1] == '\n' {
				line = line[:len(line)-1]
				line = bytes.TrimSuffix(line, []byte{'\r'})
			}
			if handleError := handle(line); handleError != nil {
				return handleError
			}
		}
		if readError == io.EOF {
			return nil
		}
		if readError != nil {
			return readError
		}
	}
}

// readRaw reads the whole file, refusing files larger than limit.
func readRaw(reader io.Reader, size int64, limit int64) ([]byte, error) {
	if size > limit {
		return nil, errFileTooLarge
	}
	data, readError := io.ReadAll(io.LimitReader(reader, limit+1))
	if readError != nil {
		return nil, readError
	}
	if int64(len(data)) > limit {
		return nil, errFileTooLarge
	}
	if utils.IsBinary(data) {
		return nil, errNotText
	}
	return data, nil
}

// digitCount returns the number of decimal digits of value, at least 1.
func digitCount(value int) int {
	digits := 1
	for value >= 10 {
		value /= 10
		digits++
	}
	return digits
}
