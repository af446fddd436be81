package email

import (
	"bytes"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/gogs/chardet"
	htmlcharset "golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
)

// fallbackEncodings are tried in order when detection fails. Single-byte
// western encodings cover most carrier mails.
var fallbackEncodings = []encoding.Encoding{
	charmap.Windows1252,
	charmap.ISO8859_1,
	charmap.ISO8859_15,
}

// decodeCharset converts data from the named charset to UTF-8.
func decodeCharset(data []byte, label string) ([]byte, error) {
	r, err := htmlcharset.NewReaderLabel(label, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return io.ReadAll(io.LimitReader(r, maxPartBytes))
}

// ensureUTF8 returns data as a valid UTF-8 string. Invalid input is run through
// charset detection and a list of common encodings; bytes that still do not
// decode are dropped.
func ensureUTF8(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}

	minConfidence := 30
	if len(data) > 50 {
		minConfidence = 50
	}

	detector := chardet.NewTextDetector()
	if result, err := detector.DetectBest(data); err == nil && result.Confidence >= minConfidence {
		if enc, err := htmlindex.Get(result.Charset); err == nil {
			if decoded, err := enc.NewDecoder().Bytes(data); err == nil && utf8.Valid(decoded) {
				return string(decoded)
			}
		}
	}

	for _, enc := range fallbackEncodings {
		if decoded, err := enc.NewDecoder().Bytes(data); err == nil && utf8.Valid(decoded) {
			return string(decoded)
		}
	}

	return strings.ToValidUTF8(string(data), "")
}
