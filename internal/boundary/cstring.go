package boundary

import (
	"strings"
	"unicode/utf8"
	"unsafe"

	"golang.org/x/text/encoding/unicode"
)

// maxForeignString bounds the scan for a terminating NUL. Longer buffers are
// truncated; process paths are limited to 4*MAXPATHLEN by the OS anyway.
const maxForeignString = 4096

// copyCString copies the NUL-terminated buffer at p into Go memory.
func copyCString(p unsafe.Pointer) []byte {
	if p == nil {
		return nil
	}
	n := 0
	for n < maxForeignString && *(*byte)(unsafe.Add(p, n)) != 0 {
		n++
	}
	out := make([]byte, n)
	copy(out, unsafe.Slice((*byte)(p), n))
	return out
}

// displayString copies and decodes a process name, path or layout id.
// Invalid UTF-8 is replaced with U+FFFD.
func displayString(p unsafe.Pointer) string {
	b := copyCString(p)
	if len(b) == 0 {
		return ""
	}
	return strings.ToValidUTF8(string(b), "\uFFFD")
}

var utf16Decoder = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// keyCharString decodes the key character buffer. UTF-8 is tried first;
// otherwise the first two bytes are read as one UTF-16 code unit. The
// boolean reports whether the fallback was used.
func keyCharString(p unsafe.Pointer) (string, bool) {
	b := copyCString(p)
	if len(b) == 0 {
		return "", false
	}
	if utf8.Valid(b) {
		return string(b), false
	}

	// A one-byte C string still has its NUL at offset 1, so the two bytes
	// of the code unit are always readable.
	var unit [2]byte
	copy(unit[:], unsafe.Slice((*byte)(p), 2))

	decoded, err := utf16Decoder.NewDecoder().Bytes(unit[:])
	if err != nil || len(decoded) == 0 {
		return "\uFFFD", true
	}
	return string(decoded), true
}
