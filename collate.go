package kjsonl

import "bytes"

// Compare compares two decoded keys byte by byte, a key that is a prefix of
// another sorts first. The result is 0 if a == b, negative if a < b and
// positive if a > b. Files must be sorted by this order.
func Compare(a, b string) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}

	for i := 0; i < n; i++ {
		if a[i] < b[i] {
			return -1
		} else if a[i] > b[i] {
			return 1
		}
	}

	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	}
	return 0
}

// CompareBytes is like Compare, but for raw byte slices.
func CompareBytes(a, b []byte) int { return bytes.Compare(a, b) }
