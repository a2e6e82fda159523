// Package types defines every cross-package data structure used by the treedump CLI.
package types

// Command names.
const (
	CommandRoot = "treedump"
	CommandInit = "init"
)

// ValidatedPath is an absolute input path that already passed existence checks.
type ValidatedPath struct {
	AbsolutePath string
	IsDir        bool
}

// WalkEntry is one filtered record produced by the walker. RelativePath is
// relative to the walked root. A non-nil Err terminates the sequence.
type WalkEntry struct {
	RelativePath string
	IsDir        bool
	Err          error
}

// FileSummary describes one dumped file.
type FileSummary struct {
	RelativePath string
	SizeBytes    int64
	Tokens       int
	Readable     bool
}

// OutputSummary captures aggregate information about dumped files.
type OutputSummary struct {
	TotalFiles      int
	UnreadableFiles int
	TotalSize       string
	TotalTokens     int
	Model           string
}
