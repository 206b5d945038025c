package kjsonl

import "io"

// Span is the byte range of a value within a file.
type Span struct {
	Start int64 // absolute offset of the first byte
	End   int64 // absolute offset after the last byte
}

// Len returns the number of bytes in the span.
func (s Span) Len() int { return int(s.End - s.Start) }

// Index maps decoded keys to the position of their values.
type Index map[string]Span

// BuildIndex consumes all lines of r and returns an index of value offsets.
// If a key occurs more than once, the last occurrence wins.
func BuildIndex(r io.Reader, o *ScannerOptions) (Index, error) {
	index := make(Index)
	err := Scan(r, o, func(line *Line) error {
		key, err := line.DecodeKey()
		if err != nil {
			return err
		}
		index[key] = Span{Start: line.ValueStart, End: line.ValueEnd}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return index, nil
}
