package document

import (
	"bytes"
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
)

// DecodeError reports input that is not valid UTF-8 text.
type DecodeError struct {
	Source string
	Offset int
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: invalid UTF-8 at byte %d", e.Source, e.Offset)
}

// Decode turns raw bytes into text. Invalid UTF-8 is rejected; a leading
// byte order mark is dropped.
func Decode(source string, data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", &DecodeError{Source: source, Offset: invalidOffset(data)}
	}
	out, err := unicode.UTF8BOM.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("%s: decode: %w", source, err)
	}
	return string(out), nil
}

// BOM is the UTF-8 byte order mark.
const BOM = "\ufeff"

// HasBOM reports whether data starts with a UTF-8 byte order mark. Callers
// that rewrite a decoded file put it back so the bytes round-trip.
func HasBOM(data []byte) bool {
	return bytes.HasPrefix(data, []byte(BOM))
}

func invalidOffset(data []byte) int {
	for i := 0; i < len(data); {
		r, size := utf8.DecodeRune(data[i:])
		if r == utf8.RuneError && size == 1 {
			return i
		}
		i += size
	}
	return len(data)
}
