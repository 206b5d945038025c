package kjsonl

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/golang/snappy"
	"github.com/google/renameio/v2"
)

// OpenFile opens a file for streaming, decompressing it if the name ends
// with SnappyExt.
func OpenFile(name string) (io.ReadCloser, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}

	if CompressionOf(name) == SnappyCompression {
		return readCloser{Reader: snappy.NewReader(f), Closer: f}, nil
	}
	return f, nil
}

type readCloser struct {
	io.Reader
	io.Closer
}

// ReplaceFile calls fn with a writer to a temporary file and atomically
// replaces name with it once fn returns without error. Output is
// compressed if the name ends with SnappyExt. Permissions of an existing
// file are preserved.
func ReplaceFile(name string, fn func(io.Writer) error) error {
	pf, err := renameio.NewPendingFile(name, renameio.WithPermissions(0o644), renameio.WithExistingPermissions())
	if err != nil {
		return fmt.Errorf("kjsonl: failed to create temporary file for %s: %w", name, err)
	}
	defer func() {
		_ = pf.Cleanup()
	}()

	var w io.Writer = pf
	var sw *snappy.Writer
	if CompressionOf(name) == SnappyCompression {
		sw = snappy.NewBufferedWriter(pf)
		w = sw
	}

	if err := fn(w); err != nil {
		return err
	}
	if sw != nil {
		if err := sw.Close(); err != nil {
			return fmt.Errorf("kjsonl: failed to flush %s: %w", name, err)
		}
	}
	if err := pf.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("kjsonl: failed to replace %s: %w", name, err)
	}
	return nil
}

// --------------------------------------------------------------------

// Delete removes all lines with the given keys from the file and returns
// the number of removed lines. All other lines are kept unchanged.
func Delete(name string, keys ...string) (int, error) {
	set := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		set[key] = struct{}{}
	}

	src, err := OpenFile(name)
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = src.Close()
	}()

	var removed int
	err = ReplaceFile(name, func(w io.Writer) error {
		out := NewWriter(w)
		if err := Scan(src, nil, func(line *Line) error {
			key, err := line.DecodeKey()
			if err != nil {
				return err
			}
			if _, ok := set[key]; ok {
				removed++
				return nil
			}
			return out.WriteLine(line)
		}); err != nil {
			return fmt.Errorf("kjsonl: failed to read %s: %w", name, err)
		}
		return out.Close()
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// MergeFiles merges sources into target. An existing target takes part in
// the merge as the first source, so any source overrides it. The target
// is created if it does not exist.
func MergeFiles(target string, sources []string, o *MergeOptions) (*MergeStats, error) {
	srcs := make([]MergeSource, 0, len(sources)+1)
	defer func() {
		for _, src := range srcs {
			_ = src.Reader.(io.Closer).Close()
		}
	}()

	if f, err := OpenFile(target); err == nil {
		srcs = append(srcs, MergeSource{Name: target, Reader: f})
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	for _, name := range sources {
		f, err := OpenFile(name)
		if err != nil {
			return nil, err
		}
		srcs = append(srcs, MergeSource{Name: name, Reader: f})
	}

	var stats *MergeStats
	err := ReplaceFile(target, func(w io.Writer) (err error) {
		stats, err = Merge(w, srcs, o)
		return
	})
	return stats, err
}
