package kjsonl_test

import (
	"bytes"
	"strings"

	"github.com/bsm/kjsonl"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Writer", func() {
	var buf *bytes.Buffer
	var subject *kjsonl.Writer

	BeforeEach(func() {
		buf = new(bytes.Buffer)
		subject = kjsonl.NewWriter(buf)
	})

	It("should write", func() {
		Expect(subject.Append(`"`, []byte(`321`))).To(Succeed())
		Expect(subject.Append("a:b", []byte(`{"y":[1,2]}`))).To(Succeed())
		Expect(subject.Append("a<b>", []byte(` "x" `))).To(Succeed())
		Expect(subject.Append("simple_key", []byte(`123`))).To(Succeed())
		Expect(subject.Append("x\ny", []byte(`null`))).To(Succeed())
		Expect(buf.Len()).To(BeZero())

		Expect(subject.Close()).To(Succeed())
		Expect(buf.String()).To(Equal(strings.Join([]string{
			`"\"":321`,
			`"a:b":{"y":[1,2]}`,
			`a<b>:"x"`,
			`simple_key:123`,
			`"x\ny":null`,
			``,
		}, "\n")))
	})

	It("should quote keys which would be ambiguous", func() {
		Expect(subject.Append("", []byte(`0`))).To(Succeed())
		Expect(subject.Append(`"a"`, []byte(`1`))).To(Succeed())
		Expect(subject.Append("a\rb", []byte(`2`))).To(Succeed())
		Expect(subject.Append("a\"b", []byte(`3`))).To(Succeed())
		Expect(subject.Close()).To(Succeed())

		lines, err := collect(bytes.NewReader(buf.Bytes()), nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(lines).To(HaveLen(4))
		Expect(string(lines[0].Key)).To(Equal(`""`))
		Expect(string(lines[1].Key)).To(Equal(`"\"a\""`))
		Expect(string(lines[2].Key)).To(Equal(`"a\rb"`))
		Expect(string(lines[3].Key)).To(Equal(`a"b`))
		Expect(lines[3].QuotedKey).To(BeFalse())

		for i, exp := range []string{"", `"a"`, "a\rb", "a\"b"} {
			Expect(lines[i].DecodeKey()).To(Equal(exp))
		}
	})

	It("should compact multi-line values", func() {
		Expect(subject.Append("a", []byte("{\n  \"x\": [\n    1,\n    2\n  ]\n}\n"))).To(Succeed())
		Expect(subject.Append("b", []byte(`{"s": "keep  spaces"}`))).To(Succeed())
		Expect(subject.Close()).To(Succeed())
		Expect(buf.String()).To(Equal("a:{\"x\":[1,2]}\nb:{\"s\": \"keep  spaces\"}\n"))
	})

	It("should prevent out-of-order appends", func() {
		Expect(subject.Append("b", []byte(`1`))).To(Succeed())
		Expect(subject.Append("b", []byte(`2`))).To(MatchError(`kjsonl: attempted an out-of-order append, "b" must be > "b"`))
		Expect(subject.Append("a", []byte(`2`))).To(MatchError(`kjsonl: attempted an out-of-order append, "a" must be > "b"`))
		Expect(subject.Append("ba", []byte(`2`))).To(Succeed())
	})

	It("should reject invalid values", func() {
		Expect(subject.Append("a", []byte(`{`))).To(MatchError(`kjsonl: invalid JSON value for key "a"`))
		Expect(subject.Append("a", []byte(``))).To(MatchError(`kjsonl: invalid JSON value for key "a"`))
		Expect(subject.Append("a", []byte(`1 2`))).To(MatchError(`kjsonl: invalid JSON value for key "a"`))
		Expect(subject.Append("\xff", []byte(`1`))).To(HaveOccurred())
		Expect(subject.Close()).To(Succeed())
		Expect(buf.Len()).To(BeZero())
	})

	It("should write lines unchanged", func() {
		src := "b: {\"x\": 1}\n\"a\":2\nc:  3\n"
		Expect(kjsonl.Scan(strings.NewReader(src), nil, subject.WriteLine)).To(Succeed())
		Expect(subject.Close()).To(Succeed())
		Expect(buf.String()).To(Equal(src))
	})

	It("should not allow writes after close", func() {
		Expect(subject.Close()).To(Succeed())
		Expect(subject.Append("a", []byte(`1`))).To(HaveOccurred())
		Expect(subject.Close()).To(HaveOccurred())
	})
})
