package kjsonl

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// Writer instances can write KJSONL.
type Writer struct {
	w *bufio.Writer

	last    string // the last appended key
	hasLast bool
	closed  bool

	tmp  bytes.Buffer // value scratch buffer
	ktmp bytes.Buffer // key scratch buffer
}

// NewWriter wraps a writer and returns a Writer.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// Append appends a key/value pair. Keys must be appended in strictly
// ascending order and values must be valid JSON.
func (w *Writer) Append(key string, value []byte) error {
	if w.closed {
		return errClosed
	}

	if w.hasLast && Compare(key, w.last) <= 0 {
		return fmt.Errorf("kjsonl: attempted an out-of-order append, %q must be > %q", key, w.last)
	}
	if !utf8.ValidString(key) {
		return fmt.Errorf("kjsonl: key %q is not valid UTF-8", key)
	}

	value = bytes.TrimSpace(value)
	if !json.Valid(value) {
		return fmt.Errorf("kjsonl: invalid JSON value for key %q", key)
	}
	if bytes.ContainsAny(value, "\r\n") {
		w.tmp.Reset()
		if err := json.Compact(&w.tmp, value); err != nil {
			return err
		}
		value = w.tmp.Bytes()
	}

	if err := w.writeKey(key); err != nil {
		return err
	}
	if err := w.writeValue(value); err != nil {
		return err
	}

	w.last, w.hasLast = key, true
	return nil
}

// WriteLine writes a line exactly as it was read, including the optional
// space after the separator. No order checks are performed.
func (w *Writer) WriteLine(line *Line) error {
	if w.closed {
		return errClosed
	}
	if _, err := w.w.Write(line.Key); err != nil {
		return err
	}
	if line.spaced() {
		if err := w.w.WriteByte(colon); err != nil {
			return err
		}
		if err := w.w.WriteByte(space); err != nil {
			return err
		}
		if _, err := w.w.Write(line.Value); err != nil {
			return err
		}
		return w.w.WriteByte(newline)
	}
	return w.writeValue(line.Value)
}

// Close flushes buffered data. It does not close the underlying writer.
func (w *Writer) Close() error {
	if w.closed {
		return errClosed
	}
	w.closed = true
	return w.w.Flush()
}

func (w *Writer) writeKey(key string) error {
	if isBareKey(key) {
		_, err := w.w.WriteString(key)
		return err
	}

	w.ktmp.Reset()
	enc := json.NewEncoder(&w.ktmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(key); err != nil {
		return err
	}
	_, err := w.w.Write(bytes.TrimSuffix(w.ktmp.Bytes(), []byte{newline}))
	return err
}

func (w *Writer) writeValue(value []byte) error {
	if err := w.w.WriteByte(colon); err != nil {
		return err
	}
	if _, err := w.w.Write(value); err != nil {
		return err
	}
	return w.w.WriteByte(newline)
}

// isBareKey reports whether key can be written without quoting.
func isBareKey(key string) bool {
	return key != "" && key[0] != dquote && !strings.ContainsAny(key, ":\r\n")
}
