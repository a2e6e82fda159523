package utils

import "unicode/utf8"

// IsBinary reports whether data cannot be decoded as UTF-8 text. NUL bytes are
// valid UTF-8 and do not make data binary.
func IsBinary(data []byte) bool {
	return !utf8.Valid(data)
}
