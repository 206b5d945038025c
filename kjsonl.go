package kjsonl

import (
	"errors"
	"fmt"
	"strings"
)

const (
	newline   = '\n'
	dquote    = '"'
	colon     = ':'
	backslash = '\\'
	space     = ' '
)

// ErrNotFound is returned by the getter when a key cannot be found.
var ErrNotFound = errors.New("kjsonl: not found")

// ErrReleased is returned by all getter methods after Release was called.
var ErrReleased = errors.New("kjsonl: getter was released")

// ErrMalformed is matched by all syntax errors, use errors.Is to test for it.
var ErrMalformed = errors.New("kjsonl: malformed line")

// ErrLineTooLong is returned by the scanner when no line break could be found
// within the configured number of buffers.
var ErrLineTooLong = errors.New("kjsonl: line exceeds buffering limit")

var (
	errClosed     = errors.New("kjsonl: writer is closed")
	errCompressed = errors.New("kjsonl: random access is not supported on compressed files")
)

// SyntaxError describes a malformed line.
type SyntaxError struct {
	Line int    // 1-based line number
	Msg  string // description
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("kjsonl: malformed line %d: %s", e.Line, e.Msg)
}

// Is implements errors.Is.
func (e *SyntaxError) Is(target error) bool { return target == ErrMalformed }

// --------------------------------------------------------------------

// Compression is the compression codec of a file.
type Compression byte

// Supported compression codecs
const (
	NoCompression Compression = iota
	SnappyCompression
)

// SnappyExt is the file name extension of snappy compressed files.
const SnappyExt = ".sz"

// CompressionOf detects the compression codec by file name.
func CompressionOf(name string) Compression {
	if strings.HasSuffix(name, SnappyExt) {
		return SnappyCompression
	}
	return NoCompression
}

func (c Compression) String() string {
	switch c {
	case NoCompression:
		return "none"
	case SnappyCompression:
		return "snappy"
	}
	return fmt.Sprintf("Compression(%d)", byte(c))
}
