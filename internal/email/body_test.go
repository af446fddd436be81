package email

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func rawMessage(lines ...string) []byte {
	return []byte(strings.Join(lines, "\r\n"))
}

func TestExtractBody_MultipartPrefersHTML(t *testing.T) {
	raw := rawMessage(
		"From: DHL <noreply@dhl.de>",
		"Subject: Ihre Sendung",
		"MIME-Version: 1.0",
		`Content-Type: multipart/alternative; boundary="b1"`,
		"",
		"--b1",
		"Content-Type: text/plain; charset=utf-8",
		"",
		"Plain Sendung 111111111111",
		"--b1",
		"Content-Type: text/html; charset=utf-8",
		"",
		"<html><body><p>Ihre Sendung</p><p>123456789012</p></body></html>",
		"--b1--",
		"",
	)

	assert.Equal(t, "Ihre Sendung\n123456789012", ExtractBody(raw))
}

func TestExtractBody_MultipartPlainOnly(t *testing.T) {
	raw := rawMessage(
		"MIME-Version: 1.0",
		`Content-Type: multipart/alternative; boundary="b1"`,
		"",
		"--b1",
		"Content-Type: text/plain; charset=utf-8",
		"",
		"Ihr Paket ist unterwegs",
		"--b1--",
		"",
	)

	assert.Equal(t, "Ihr Paket ist unterwegs", ExtractBody(raw))
}

func TestExtractBody_EmptyHTMLFallsBackToPlain(t *testing.T) {
	raw := rawMessage(
		"MIME-Version: 1.0",
		`Content-Type: multipart/alternative; boundary="b1"`,
		"",
		"--b1",
		"Content-Type: text/html; charset=utf-8",
		"",
		"<html><body>   </body></html>",
		"--b1",
		"Content-Type: text/plain; charset=utf-8",
		"",
		"Sendung 123456789012",
		"--b1--",
		"",
	)

	assert.Equal(t, "Sendung 123456789012", ExtractBody(raw))
}

func TestExtractBody_SkipsAttachments(t *testing.T) {
	raw := rawMessage(
		"MIME-Version: 1.0",
		`Content-Type: multipart/mixed; boundary="outer"`,
		"",
		"--outer",
		"Content-Type: text/plain; charset=utf-8",
		`Content-Disposition: attachment; filename="label.txt"`,
		"",
		"Attachment 999999999999",
		"--outer",
		"Content-Type: text/plain; charset=utf-8",
		"",
		"Body 123456789012",
		"--outer--",
		"",
	)

	assert.Equal(t, "Body 123456789012", ExtractBody(raw))
}

func TestExtractBody_NestedMultipart(t *testing.T) {
	raw := rawMessage(
		"MIME-Version: 1.0",
		`Content-Type: multipart/mixed; boundary="outer"`,
		"",
		"--outer",
		`Content-Type: multipart/alternative; boundary="inner"`,
		"",
		"--inner",
		"Content-Type: text/plain; charset=utf-8",
		"",
		"plain text",
		"--inner",
		"Content-Type: text/html; charset=utf-8",
		"",
		"<div>html <b>text</b></div>",
		"--inner--",
		"--outer--",
		"",
	)

	assert.Equal(t, "html\ntext", ExtractBody(raw))
}

func TestExtractBody_FlatQuotedPrintableLatin1(t *testing.T) {
	raw := rawMessage(
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=iso-8859-1",
		"Content-Transfer-Encoding: quoted-printable",
		"",
		"Zustellung f=FCr morgen geplant",
	)

	assert.Equal(t, "Zustellung für morgen geplant", ExtractBody(raw))
}

func TestExtractBody_FlatHTML(t *testing.T) {
	raw := rawMessage(
		"MIME-Version: 1.0",
		"Content-Type: text/html; charset=utf-8",
		"",
		"<p>Paket</p><script>var x = 1;</script><p>zugestellt</p>",
	)

	assert.Equal(t, "Paket\nzugestellt", ExtractBody(raw))
}

func TestExtractBody_Unparseable(t *testing.T) {
	raw := []byte("this is not a header line\r\n\r\nbody 123456789012")

	result := ExtractBody(raw)
	assert.Contains(t, result, "123456789012")
	assert.True(t, utf8.ValidString(result))
}

func TestExtractBody_Empty(t *testing.T) {
	assert.Empty(t, ExtractBody(nil))
}

func TestHTMLToText(t *testing.T) {
	tests := []struct {
		name     string
		html     string
		expected string
	}{
		{"paragraphs", "<p>one</p><p>two</p>", "one\ntwo"},
		{"entities decoded", "<span>Gr&uuml;&szlig;e &amp; mehr</span>", "Grüße & mehr"},
		{"style dropped", "<style>p{color:red}</style><p>text</p>", "text"},
		{"whitespace nodes dropped", "<table>\n  <tr>\n    <td>a</td>\n  </tr>\n</table>", "a"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, HTMLToText(tt.html))
		})
	}
}

func TestEnsureUTF8(t *testing.T) {
	assert.Equal(t, "already valid ü", ensureUTF8([]byte("already valid ü")))

	result := ensureUTF8([]byte("Viele Gr\xfc\xdfe aus Berlin"))
	assert.True(t, utf8.ValidString(result))
	assert.True(t, strings.HasPrefix(result, "Viele Gr"))
}
