package searchdata

import (
	"fmt"
	"strconv"
	"strings"
)

// EncodeKey returns the search id Doxygen derives from a label: ASCII letters
// are lower-cased, digits kept, and every other byte written as '_' plus two
// hex digits. The per-file serial suffix is not included.
//
//	EncodeKey("indexError_") == "indexerror_5f"
//	EncodeKey("~Array")      == "_7earray"
func EncodeKey(label string) string {
	var b strings.Builder
	b.Grow(len(label))
	for i := 0; i < len(label); i++ {
		c := label[i]
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9':
			b.WriteByte(c)
		case c >= 'A' && c <= 'Z':
			b.WriteByte(c + 'a' - 'A')
		default:
			fmt.Fprintf(&b, "_%02x", c)
		}
	}
	return b.String()
}

// SplitKey separates a record key into its encoded base and serial number.
// ok is false when the key carries no "_<decimal>" suffix.
func SplitKey(key string) (base string, serial int, ok bool) {
	i := strings.LastIndexByte(key, '_')
	if i < 0 || i == len(key)-1 {
		return key, 0, false
	}
	n, err := strconv.Atoi(key[i+1:])
	if err != nil || n < 0 {
		return key, 0, false
	}
	return key[:i], n, true
}

// DecodeKey reverses the hex escaping of a key base. Letter case is lost by
// the encoding and cannot be restored.
func DecodeKey(base string) string {
	var b strings.Builder
	b.Grow(len(base))
	for i := 0; i < len(base); i++ {
		c := base[i]
		if c == '_' && i+2 < len(base) && isHex(base[i+1]) && isHex(base[i+2]) {
			n, _ := strconv.ParseUint(base[i+1:i+3], 16, 8)
			b.WriteByte(byte(n))
			i += 2
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

// KeyMatchesLabel reports whether key (with or without serial) was derived
// from label.
func KeyMatchesLabel(key, label string) bool {
	base, _, ok := SplitKey(key)
	if !ok {
		base = key
	}
	return base == EncodeKey(label)
}

func isHex(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}
