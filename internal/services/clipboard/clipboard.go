// Package clipboard copies the finished artifact to the system clipboard.
package clipboard

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/atotto/clipboard"
)

// ErrUnavailable is returned when no clipboard utility exists on the system.
var ErrUnavailable = errors.New("clipboard is not available on this system")

// Copier copies textual data to the system clipboard.
type Copier interface {
	Copy(text string) error
}

// Service implements Copier using github.com/atotto/clipboard.
type Service struct{}

// NewService constructs a Clipboard service implementation.
func NewService() *Service {
	return &Service{}
}

// Copy writes text to the system clipboard.
func (service *Service) Copy(text string) error {
	if clipboard.Unsupported {
		return ErrUnavailable
	}
	if writeError := clipboard.WriteAll(text); writeError != nil {
		return fmt.Errorf("copy to clipboard: %w", writeError)
	}
	return nil
}

// Capture records everything written to it so the artifact can be copied once
// the run has succeeded.
type Capture struct {
	buffer bytes.Buffer
}

// Write appends data to the capture.
func (capture *Capture) Write(data []byte) (int, error) {
	return capture.buffer.Write(data)
}

// CopyTo hands the captured text to copier.
func (capture *Capture) CopyTo(copier Copier) error {
	return copier.Copy(capture.buffer.String())
}

var _ Copier = (*Service)(nil)
