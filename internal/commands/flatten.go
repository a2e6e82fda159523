// Package commands wires the walker, tree builder, renderer and file dump
// formatter into a single flatten run.
package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/temirov/treedump/internal/dump"
	"github.com/temirov/treedump/internal/filetree"
	"github.com/temirov/treedump/internal/tokenizer"
	"github.com/temirov/treedump/internal/types"
	"github.com/temirov/treedump/internal/walker"
)

const (
	diagramSeparator = "\n" + dump.Delimiter + "\n"

	errorWalkerFormat  = "preparing walk of %s: %w"
	errorDiagramFormat = "writing tree diagram: %w"
	errorDumpFormat    = "writing file contents: %w"

	summaryMessage       = "flatten complete"
	unreadableMessage    = "some files were replaced by the placeholder"
	summaryFieldFiles    = "files"
	summaryFieldSize     = "size"
	summaryFieldTokens   = "tokens"
	summaryFieldModel    = "model"
	summaryFieldSkipped  = "unreadable"
	summaryFieldRoot     = "root"
	walkChannelCapacity  = 64
	warningMessagePrefix = "warning"
)

// FlattenOptions describes one flatten run.
type FlattenOptions struct {
	Target types.ValidatedPath
	// DisplayName is the target as the user typed it. When set, its last
	// element names the diagram root instead of the absolute path's.
	DisplayName     string
	IgnorePatterns  []string
	IncludePatterns []string
	// ExcludedPaths are never emitted by the walker, typically the output file.
	ExcludedPaths []string
	IncludeHidden bool
	IncludeGit    bool
	Mode          dump.Mode
	MaxRawBytes   int64
	TokenCounter  tokenizer.Counter
	TokenModel    string
}

// Flattener produces the flattened artifact for a target path.
type Flattener struct {
	logger *zap.Logger
}

// NewFlattener constructs a Flattener. A nil logger disables diagnostics.
func NewFlattener(logger *zap.Logger) *Flattener {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Flattener{logger: logger}
}

// Flatten writes the tree diagram, the separator and every file block to
// writer. The tree is fully built before anything is written.
func (flattener *Flattener) Flatten(ctx context.Context, options FlattenOptions, writer io.Writer) (types.OutputSummary, error) {
	tree, buildError := BuildTree(ctx, options)
	if buildError != nil {
		return types.OutputSummary{}, buildError
	}

	if displayError := tree.Display(writer); displayError != nil {
		return types.OutputSummary{}, fmt.Errorf(errorDiagramFormat, displayError)
	}
	if _, separatorError := io.WriteString(writer, diagramSeparator); separatorError != nil {
		return types.OutputSummary{}, fmt.Errorf(errorDiagramFormat, separatorError)
	}

	formatter := dump.NewFormatter(dump.Options{
		Mode:         options.Mode,
		MaxRawBytes:  options.MaxRawBytes,
		TokenCounter: options.TokenCounter,
		Warn: func(message string) {
			flattener.logger.Warn(warningMessagePrefix + ": " + message)
		},
	})
	fileSummaries, formatError := formatter.Format(tree, writer)
	if formatError != nil {
		return types.OutputSummary{}, fmt.Errorf(errorDumpFormat, formatError)
	}

	return Summarize(fileSummaries, options.TokenModel), nil
}

// BuildTree materializes the tree for the target. Directory targets are walked
// with the walker feeding filetree.Build over a channel; a file target yields a
// single-file tree.
func BuildTree(ctx context.Context, options FlattenOptions) (*filetree.Tree, error) {
	if !options.Target.IsDir {
		return nameRoot(filetree.NewSingleFile(options.Target.AbsolutePath), options.DisplayName), nil
	}

	directoryWalker, walkerError := walker.New(walker.Options{
		Root:            options.Target.AbsolutePath,
		IgnorePatterns:  options.IgnorePatterns,
		IncludePatterns: options.IncludePatterns,
		ExcludedPaths:   options.ExcludedPaths,
		IncludeHidden:   options.IncludeHidden,
		IncludeGit:      options.IncludeGit,
	})
	if walkerError != nil {
		return nil, fmt.Errorf(errorWalkerFormat, options.Target.AbsolutePath, walkerError)
	}

	var tree *filetree.Tree
	produce := func(walkCtx context.Context, entries chan<- types.WalkEntry) error {
		return directoryWalker.Walk(walkCtx, entries)
	}
	consume := func(entries <-chan types.WalkEntry) error {
		builtTree, buildError := filetree.Build(options.Target.AbsolutePath, entries)
		if buildError != nil {
			return buildError
		}
		tree = builtTree
		return nil
	}
	if dispatchError := dispatchWalk(ctx, produce, consume); dispatchError != nil {
		return nil, dispatchError
	}
	return nameRoot(tree, options.DisplayName), nil
}

func nameRoot(tree *filetree.Tree, displayName string) *filetree.Tree {
	if displayName != "" {
		tree.Name = filetree.DisplayName(filepath.Clean(displayName))
	}
	return tree
}

// dispatchWalk runs produce and consume concurrently over one channel. The
// channel is closed when produce returns. The consumer's error wins because it
// carries the walk error wrapped with the tree context.
func dispatchWalk(
	ctx context.Context,
	produce func(context.Context, chan<- types.WalkEntry) error,
	consume func(<-chan types.WalkEntry) error,
) error {
	group, walkCtx := errgroup.WithContext(ctx)
	entries := make(chan types.WalkEntry, walkChannelCapacity)

	var consumeError error
	group.Go(func() error {
		defer close(entries)
		return produce(walkCtx, entries)
	})
	group.Go(func() error {
		consumeError = consume(entries)
		// Drain whatever the producer still sends after an early return.
		for range entries {
		}
		return consumeError
	})

	groupError := group.Wait()
	if consumeError != nil {
		return consumeError
	}
	if groupError != nil && !errors.Is(groupError, context.Canceled) {
		return groupError
	}
	return ctx.Err()
}

// Summarize aggregates per-file summaries into the run summary.
func Summarize(fileSummaries []types.FileSummary, model string) types.OutputSummary {
	var totalBytes int64
	summary := types.OutputSummary{TotalFiles: len(fileSummaries), Model: model}
	for _, fileSummary := range fileSummaries {
		if !fileSummary.Readable {
			summary.UnreadableFiles++
			continue
		}
		totalBytes += fileSummary.SizeBytes
		summary.TotalTokens += fileSummary.Tokens
	}
	summary.TotalSize = humanize.Bytes(uint64(totalBytes))
	return summary
}

// LogSummary reports the run summary on the logger.
func (flattener *Flattener) LogSummary(root string, summary types.OutputSummary) {
	fields := []zap.Field{
		zap.String(summaryFieldRoot, root),
		zap.Int(summaryFieldFiles, summary.TotalFiles),
		zap.String(summaryFieldSize, summary.TotalSize),
	}
	if summary.Model != "" {
		fields = append(fields, zap.Int(summaryFieldTokens, summary.TotalTokens), zap.String(summaryFieldModel, summary.Model))
	}
	flattener.logger.Info(summaryMessage, fields...)
	if summary.UnreadableFiles > 0 {
		flattener.logger.Warn(unreadableMessage, zap.Int(summaryFieldSkipped, summary.UnreadableFiles))
	}
}
