package utils

import (
	"errors"
	"syscall"
)

// IsBrokenPipe reports whether err was caused by the output consumer closing its
// end of the stream.
func IsBrokenPipe(err error) bool {
	return errors.Is(err, syscall.EPIPE)
}
