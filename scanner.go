package kjsonl

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// ScannerOptions define scanner specific options.
type ScannerOptions struct {
	// BufferSize is the number of bytes requested from the underlying
	// reader at once.
	// Default: 64KiB.
	BufferSize int

	// MaxBuffers is the maximum number of buffers a single line may span
	// before the scanner gives up with ErrLineTooLong.
	// Default: 100.
	MaxBuffers int
}

func (o *ScannerOptions) norm() *ScannerOptions {
	var oo ScannerOptions
	if o != nil {
		oo = *o
	}

	if oo.BufferSize < 1 {
		oo.BufferSize = 64 * 1024
	}
	if oo.MaxBuffers < 1 {
		oo.MaxBuffers = 100
	}

	return &oo
}

// Line is a single parsed, non-empty line.
type Line struct {
	Number     int    // 1-based, blank lines are not counted
	Offset     int64  // absolute offset of the first byte of the line
	QuotedKey  bool   // true if the key is a JSON string literal
	Key        []byte // raw key, still escaped if quoted
	Value      []byte // raw JSON value
	ValueStart int64  // absolute offset of the value
	ValueEnd   int64  // absolute offset of the end of the value
}

// DecodeKey returns the decoded key.
func (l *Line) DecodeKey() (string, error) {
	if !l.QuotedKey {
		return string(l.Key), nil
	}

	var key string
	if err := json.Unmarshal(l.Key, &key); err != nil {
		return "", &SyntaxError{Line: l.Number, Msg: "invalid key: " + err.Error()}
	}
	return key, nil
}

// spaced reports whether the separator was followed by the optional space.
func (l *Line) spaced() bool {
	return l.ValueStart-l.Offset-int64(len(l.Key)) > 1
}

// --------------------------------------------------------------------

// Scanner reads lines from a stream, one chunk at a time. Scanners are
// forward-only and cannot be restarted.
type Scanner struct {
	r io.Reader
	o *ScannerOptions

	chunk    []byte   // the current chunk
	chunkPos int64    // absolute offset of the current chunk
	off      int      // bytes consumed from the current chunk
	partial  [][]byte // chunk tails without a line break
	partPos  int64    // absolute offset of the first partial byte
	pos      int64    // total bytes read
	eof      bool
	lines    int

	line Line
	err  error
}

// NewScanner wraps a reader and returns a Scanner.
func NewScanner(r io.Reader, o *ScannerOptions) *Scanner {
	return &Scanner{r: r, o: o.norm()}
}

// Next advances the cursor to the next line and returns true if successful.
func (s *Scanner) Next() bool {
	for s.err == nil {
		if s.chunk != nil {
			if n := bytes.IndexByte(s.chunk[s.off:], newline); n >= 0 {
				raw, pos := s.chunk[s.off:s.off+n], s.chunkPos+int64(s.off)
				if len(s.partial) != 0 {
					raw, pos = s.joinPartial(raw), s.partPos
				}
				s.off += n + 1

				if s.parse(raw, pos) {
					return true
				}
				continue
			}

			if rest := s.chunk[s.off:]; len(rest) != 0 {
				if len(s.partial) == 0 {
					s.partPos = s.chunkPos + int64(s.off)
				}
				s.partial = append(s.partial, rest)
			}
			s.chunk = nil

			if len(s.partial) >= s.o.MaxBuffers {
				s.err = fmt.Errorf("%w: processed %d buffers of %d bytes without finding a line break,"+
					" check the file is valid or increase the limits", ErrLineTooLong, len(s.partial), s.o.BufferSize)
				return false
			}
		}

		if s.eof {
			if len(s.partial) == 0 {
				return false
			}
			pos := s.partPos
			if s.parse(s.joinPartial(nil), pos) {
				return true
			}
			continue
		}

		s.fill()
	}
	return false
}

// Line returns the current line. The returned struct is overwritten by the
// next call to Next, but its Key and Value slices remain valid.
func (s *Scanner) Line() *Line { return &s.line }

// Err exposes scanner errors, if any.
func (s *Scanner) Err() error { return s.err }

func (s *Scanner) fill() {
	buf := make([]byte, s.o.BufferSize)
	n, err := s.r.Read(buf)
	if n > 0 {
		s.chunk = buf[:n]
		s.chunkPos = s.pos
		s.off = 0
		s.pos += int64(n)
	}

	if err == io.EOF {
		s.eof = true
	} else if err != nil {
		s.err = err
	}
}

func (s *Scanner) joinPartial(tail []byte) []byte {
	size := len(tail)
	for _, p := range s.partial {
		size += len(p)
	}

	buf := make([]byte, 0, size)
	for _, p := range s.partial {
		buf = append(buf, p...)
	}
	s.partial = s.partial[:0]
	return append(buf, tail...)
}

func (s *Scanner) parse(raw []byte, pos int64) bool {
	size := len(raw)
	if size == 0 {
		return false
	}
	s.lines++

	quoted := raw[0] == dquote
	keyLen := -1
	if quoted {
		for i := 1; i < size; i++ {
			if raw[i] == dquote {
				keyLen = i + 1
				break
			} else if raw[i] == backslash {
				i++ // skip escaped byte
			}
		}
		if keyLen < 0 {
			s.err = &SyntaxError{Line: s.lines, Msg: `no closing '"' found`}
			return false
		}
	} else if keyLen = bytes.IndexByte(raw, colon); keyLen < 0 {
		keyLen = size
	}

	if keyLen >= size {
		s.err = &SyntaxError{Line: s.lines, Msg: "key without value"}
		return false
	}
	if raw[keyLen] != colon {
		s.err = &SyntaxError{Line: s.lines, Msg: "expected ':'"}
		return false
	}

	vpos := keyLen + 1
	if vpos < size && raw[vpos] == space {
		vpos++
	}

	s.line = Line{
		Number:     s.lines,
		Offset:     pos,
		QuotedKey:  quoted,
		Key:        raw[:keyLen],
		Value:      raw[vpos:],
		ValueStart: pos + int64(vpos),
		ValueEnd:   pos + int64(size),
	}
	return true
}

// --------------------------------------------------------------------

// Scan is a convenience wrapper which calls fn for each line of r.
func Scan(r io.Reader, o *ScannerOptions, fn func(*Line) error) error {
	s := NewScanner(r, o)
	for s.Next() {
		if err := fn(s.Line()); err != nil {
			return err
		}
	}
	return s.Err()
}
