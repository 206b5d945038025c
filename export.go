package kjsonl

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// ExportOptions define export specific options.
type ExportOptions struct {
	// Compact disables indentation.
	Compact bool

	// Indent is the indentation used unless Compact is set.
	// Default: two spaces.
	Indent string

	// Scanner configures the scanner.
	Scanner ScannerOptions
}

func (o *ExportOptions) norm() *ExportOptions {
	var oo ExportOptions
	if o != nil {
		oo = *o
	}

	if oo.Indent == "" {
		oo.Indent = "  "
	}

	return &oo
}

// Export writes all lines of r as a single JSON object to w. Keys are
// emitted in order of their first occurrence. If a key occurs more than
// once, the last value wins. Nothing is written if r is malformed.
func Export(w io.Writer, r io.Reader, o *ExportOptions) error {
	o = o.norm()

	var (
		members []exportMember
		pos     = make(map[string]int)
		key     bytes.Buffer
	)

	enc := json.NewEncoder(&key)
	enc.SetEscapeHTML(false)

	err := Scan(r, &o.Scanner, func(line *Line) error {
		decoded, err := line.DecodeKey()
		if err != nil {
			return err
		}

		var val bytes.Buffer
		if o.Compact {
			err = json.Compact(&val, line.Value)
		} else {
			err = json.Indent(&val, line.Value, o.Indent, o.Indent)
		}
		if err != nil {
			return &SyntaxError{Line: line.Number, Msg: fmt.Sprintf("invalid value: %v", err)}
		}

		if i, ok := pos[decoded]; ok {
			members[i].value = val.Bytes()
			return nil
		}

		key.Reset()
		if err := enc.Encode(decoded); err != nil {
			return err
		}
		pos[decoded] = len(members)
		members = append(members, exportMember{
			key:   append([]byte(nil), bytes.TrimSuffix(key.Bytes(), []byte{newline})...),
			value: val.Bytes(),
		})
		return nil
	})
	if err != nil {
		return err
	}

	bw := bufio.NewWriter(w)
	_ = bw.WriteByte('{')
	for i, m := range members {
		if i != 0 {
			_ = bw.WriteByte(',')
		}
		if !o.Compact {
			_ = bw.WriteByte(newline)
			_, _ = bw.WriteString(o.Indent)
		}
		_, _ = bw.Write(m.key)
		_ = bw.WriteByte(colon)
		if !o.Compact {
			_ = bw.WriteByte(space)
		}
		_, _ = bw.Write(m.value)
	}
	if !o.Compact && len(members) != 0 {
		_ = bw.WriteByte(newline)
	}
	_ = bw.WriteByte('}')
	return bw.Flush()
}

type exportMember struct {
	key   []byte // encoded key
	value []byte // formatted value
}

// ExportJSON writes the contents of the named file as a single JSON object
// to w.
func ExportJSON(w io.Writer, name string, o *ExportOptions) error {
	src, err := OpenFile(name)
	if err != nil {
		return err
	}
	defer func() {
		_ = src.Close()
	}()

	if err := Export(w, src, o); err != nil {
		return fmt.Errorf("kjsonl: failed to export %s: %w", name, err)
	}
	return nil
}
