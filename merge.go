package kjsonl

import (
	"fmt"
	"io"
	"log/slog"
)

// MergeSource is a single sorted input of a merge.
type MergeSource struct {
	Name   string // identifies the source in diagnostics
	Reader io.Reader
}

// MergeOptions define merge specific options.
type MergeOptions struct {
	// Scanner configures the scanners of all sources.
	Scanner ScannerOptions

	// Logger receives duplicate key warnings.
	// Default: slog.Default().
	Logger *slog.Logger
}

func (o *MergeOptions) norm() *MergeOptions {
	var oo MergeOptions
	if o != nil {
		oo = *o
	}

	if oo.Logger == nil {
		oo.Logger = slog.Default()
	}

	return &oo
}

// MergeStats summarizes a merge.
type MergeStats struct {
	Written    int // lines written
	Duplicates int // lines dropped in favour of another line with the same key
}

// Merge combines sorted sources into a single sorted output written to w.
// When several sources contain the same key, the line of the source listed
// last wins; the other lines are dropped and a warning is logged. Lines
// are copied without re-encoding.
func Merge(w io.Writer, srcs []MergeSource, o *MergeOptions) (*MergeStats, error) {
	o = o.norm()

	cursors := make([]*mergeCursor, 0, len(srcs))
	for _, src := range srcs {
		c := &mergeCursor{name: src.Name, s: NewScanner(src.Reader, &o.Scanner)}
		if err := c.advance(); err != nil {
			return nil, err
		}
		cursors = append(cursors, c)
	}

	var (
		out     = NewWriter(w)
		stats   = new(MergeStats)
		group   = make([]*mergeCursor, 0, len(cursors))
		last    string
		emitted bool
	)

	for {
		// Gather all cursors positioned on the minimum key, in source order.
		group = group[:0]
		for _, c := range cursors {
			if !c.ok {
				continue
			}
			if len(group) == 0 {
				group = append(group, c)
				continue
			}
			if cmp := Compare(c.key, group[0].key); cmp < 0 {
				group = append(group[:0], c)
			} else if cmp == 0 {
				group = append(group, c)
			}
		}
		if len(group) == 0 {
			break
		}

		winner := group[len(group)-1]
		if emitted && winner.key == last {
			stats.Duplicates += len(group)
			o.Logger.Warn("kjsonl: duplicate key", "key", winner.key, "sources", cursorNames(group))
		} else {
			if err := out.WriteLine(&winner.line); err != nil {
				return stats, err
			}
			stats.Written++

			if len(group) > 1 {
				stats.Duplicates += len(group) - 1
				o.Logger.Warn("kjsonl: duplicate key", "key", winner.key, "winner", winner.name, "sources", cursorNames(group[:len(group)-1]))
			}
			last, emitted = winner.key, true
		}

		for _, c := range group {
			if err := c.advance(); err != nil {
				return stats, err
			}
		}
	}

	return stats, out.Close()
}

type mergeCursor struct {
	name string
	s    *Scanner

	line Line   // the pending line
	key  string // the decoded key of the pending line
	ok   bool   // false when exhausted
}

func (c *mergeCursor) advance() error {
	if !c.s.Next() {
		c.ok = false
		if err := c.s.Err(); err != nil {
			return fmt.Errorf("kjsonl: failed to read %s: %w", c.name, err)
		}
		return nil
	}

	c.line = *c.s.Line()
	key, err := c.line.DecodeKey()
	if err != nil {
		return fmt.Errorf("kjsonl: failed to read %s: %w", c.name, err)
	}
	c.key, c.ok = key, true
	return nil
}

func cursorNames(cursors []*mergeCursor) []string {
	names := make([]string, 0, len(cursors))
	for _, c := range cursors {
		names = append(names, c.name)
	}
	return names
}
