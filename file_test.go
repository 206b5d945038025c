package kjsonl_test

import (
	"bytes"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/bsm/kjsonl"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Files", func() {
	var dir string

	BeforeEach(func() {
		var err error
		dir, err = os.MkdirTemp("", "kjsonl-file")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		Expect(os.RemoveAll(dir)).To(Succeed())
	})

	It("should detect compression", func() {
		Expect(kjsonl.CompressionOf("data.kjsonl")).To(Equal(kjsonl.NoCompression))
		Expect(kjsonl.CompressionOf("data.kjsonl.sz")).To(Equal(kjsonl.SnappyCompression))
		Expect(kjsonl.SnappyCompression.String()).To(Equal("snappy"))
	})

	It("should replace files atomically", func() {
		path := writeFile(dir, "data.kjsonl", "a:1\n")
		Expect(os.Chmod(path, 0o600)).To(Succeed())

		failure := io.ErrShortWrite
		Expect(kjsonl.ReplaceFile(path, func(w io.Writer) error {
			_, _ = io.WriteString(w, "b:2\n")
			return failure
		})).To(MatchError(failure))
		Expect(readFile(path)).To(Equal("a:1\n"))

		Expect(kjsonl.ReplaceFile(path, func(w io.Writer) error {
			_, err := io.WriteString(w, "b:2\n")
			return err
		})).To(Succeed())
		Expect(readFile(path)).To(Equal("b:2\n"))

		info, err := os.Stat(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(info.Mode().Perm()).To(Equal(fs.FileMode(0o600)))

		entries, err := os.ReadDir(dir)
		Expect(err).NotTo(HaveOccurred())
		Expect(entries).To(HaveLen(1))
	})

	It("should round-trip compressed files", func() {
		path := filepath.Join(dir, "data.kjsonl.sz")
		Expect(kjsonl.ReplaceFile(path, func(w io.Writer) error {
			return seedFile(w, 100)
		})).To(Succeed())

		var exp bytes.Buffer
		Expect(seedFile(&exp, 100)).To(Succeed())
		Expect(readFile(path)).NotTo(Equal(exp.String()))

		f, err := kjsonl.OpenFile(path)
		Expect(err).NotTo(HaveOccurred())
		defer f.Close()

		data, err := io.ReadAll(f)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(Equal(exp.String()))
	})

	Describe("Delete", func() {
		It("should delete keys", func() {
			path := writeFile(dir, "data.kjsonl", "a:1\n\"b\": 2\nc:  3\n")
			Expect(kjsonl.Delete(path, "b", "x")).To(Equal(1))
			Expect(readFile(path)).To(Equal("a:1\nc:  3\n"))

			Expect(kjsonl.Delete(path)).To(Equal(0))
			Expect(readFile(path)).To(Equal("a:1\nc:  3\n"))
		})

		It("should delete from compressed files", func() {
			path := filepath.Join(dir, "data.kjsonl.sz")
			Expect(kjsonl.ReplaceFile(path, func(w io.Writer) error {
				return seedFile(w, 3)
			})).To(Succeed())

			Expect(kjsonl.Delete(path, "key000001")).To(Equal(1))

			var buf bytes.Buffer
			Expect(kjsonl.ExportJSON(&buf, path, &kjsonl.ExportOptions{Compact: true})).To(Succeed())
			Expect(buf.String()).To(Equal(`{"key000000":{"n":0},"key000002":{"n":2}}`))
		})

		It("should fail on missing files", func() {
			_, err := kjsonl.Delete(filepath.Join(dir, "missing.kjsonl"), "a")
			Expect(err).To(MatchError(fs.ErrNotExist))
		})

		It("should keep malformed files", func() {
			path := writeFile(dir, "data.kjsonl", "a:1\nbroken\n")
			_, err := kjsonl.Delete(path, "a")
			Expect(err).To(MatchError(kjsonl.ErrMalformed))
			Expect(readFile(path)).To(Equal("a:1\nbroken\n"))
		})
	})

	Describe("MergeFiles", func() {
		It("should create targets", func() {
			target := filepath.Join(dir, "target.kjsonl")
			a := writeFile(dir, "a.kjsonl", "a:1\nc:3\n")
			b := writeFile(dir, "b.kjsonl", "b:2\nc:30\n")

			Expect(kjsonl.MergeFiles(target, []string{a, b}, nil)).To(Equal(&kjsonl.MergeStats{Written: 3, Duplicates: 1}))
			Expect(readFile(target)).To(Equal("a:1\nb:2\nc:30\n"))
			Expect(readFile(a)).To(Equal("a:1\nc:3\n"))
		})

		It("should merge into existing targets", func() {
			var logs bytes.Buffer
			target := writeFile(dir, "target.kjsonl", "k:0\nz:0\n")
			a := writeFile(dir, "a.kjsonl", "k:1\n")
			b := writeFile(dir, "b.kjsonl", "a:2\nk:2\n")

			Expect(kjsonl.MergeFiles(target, []string{a, b}, &kjsonl.MergeOptions{Logger: newTestLogger(&logs)})).
				To(Equal(&kjsonl.MergeStats{Written: 3, Duplicates: 2}))
			Expect(readFile(target)).To(Equal("a:2\nk:2\nz:0\n"))
			Expect(logs.String()).To(ContainSubstring("winner=" + b))
			Expect(logs.String()).To(ContainSubstring(target))
		})

		It("should fail on missing sources", func() {
			target := writeFile(dir, "target.kjsonl", "a:1\n")
			_, err := kjsonl.MergeFiles(target, []string{filepath.Join(dir, "missing.kjsonl")}, nil)
			Expect(err).To(MatchError(fs.ErrNotExist))
			Expect(readFile(target)).To(Equal("a:1\n"))
		})
	})

	Describe("ExportJSON", func() {
		var path string

		BeforeEach(func() {
			path = writeFile(dir, "data.kjsonl", "b: {\"x\":[1, 2]}\n\"a<b>\":\"s\"\nc:null\n")
		})

		It("should export", func() {
			var buf bytes.Buffer
			Expect(kjsonl.ExportJSON(&buf, path, nil)).To(Succeed())
			Expect(buf.String()).To(Equal(`{
  "b": {
    "x": [
      1,
      2
    ]
  },
  "a<b>": "s",
  "c": null
}`))
		})

		It("should export compact", func() {
			var buf bytes.Buffer
			Expect(kjsonl.ExportJSON(&buf, path, &kjsonl.ExportOptions{Compact: true})).To(Succeed())
			Expect(buf.String()).To(Equal(`{"b":{"x":[1,2]},"a<b>":"s","c":null}`))
		})

		It("should collapse duplicate keys", func() {
			var buf bytes.Buffer
			dupes := writeFile(dir, "dupes.kjsonl", "a:1\nb:2\n\"a\":3\n")
			Expect(kjsonl.ExportJSON(&buf, dupes, &kjsonl.ExportOptions{Compact: true})).To(Succeed())
			Expect(buf.String()).To(Equal(`{"a":3,"b":2}`))
		})

		It("should export empty files", func() {
			var buf bytes.Buffer
			Expect(kjsonl.ExportJSON(&buf, writeFile(dir, "empty.kjsonl", ""), nil)).To(Succeed())
			Expect(buf.String()).To(Equal(`{}`))
		})

		It("should fail on invalid values", func() {
			var buf bytes.Buffer
			err := kjsonl.ExportJSON(&buf, writeFile(dir, "bad.kjsonl", "a:1\nb:{\n"), nil)
			Expect(err).To(MatchError(kjsonl.ErrMalformed))
			Expect(err).To(MatchError(ContainSubstring("malformed line 2: invalid value")))
			Expect(buf.Len()).To(BeZero())
		})
	})
})
