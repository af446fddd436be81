package email

import (
	"bytes"
	"io"
	"strings"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"golang.org/x/net/html"
)

const maxPartBytes = 10 << 20

// skippedElements hold no readable text.
var skippedElements = map[string]bool{
	"script": true,
	"style":  true,
}

// ExtractBody returns the readable text of a raw RFC 5322 message.
//
// For multipart messages the first non-empty text/html part and the first
// non-empty text/plain part are collected, skipping attachments. Text rendered
// from HTML is preferred; plain text is used otherwise. A message that cannot
// be parsed degrades to its raw bytes as UTF-8. ExtractBody never fails.
func ExtractBody(raw []byte) string {
	entity, err := message.Read(bytes.NewReader(raw))
	if err != nil && !isRecoverable(err) {
		return strings.TrimSpace(ensureUTF8(raw))
	}

	mediaType, _, _ := entity.Header.ContentType()
	if !strings.HasPrefix(mediaType, "multipart/") {
		return strings.TrimSpace(partText(entity, mediaType, message.IsUnknownCharset(err)))
	}

	var htmlText, plainText string
	walkErr := entity.Walk(func(_ []int, part *message.Entity, err error) error {
		if err != nil && !isRecoverable(err) {
			return err
		}
		if isAttachment(part) {
			return nil
		}

		partType, _, _ := part.Header.ContentType()
		switch {
		case partType == "text/html" && htmlText == "":
			htmlText = strings.TrimSpace(partText(part, partType, message.IsUnknownCharset(err)))
		case partType == "text/plain" && plainText == "":
			plainText = strings.TrimSpace(partText(part, partType, message.IsUnknownCharset(err)))
		}
		return nil
	})
	if walkErr != nil && htmlText == "" && plainText == "" {
		return strings.TrimSpace(ensureUTF8(raw))
	}

	if htmlText != "" {
		return htmlText
	}
	return plainText
}

func isRecoverable(err error) bool {
	return message.IsUnknownCharset(err) || message.IsUnknownEncoding(err)
}

func isAttachment(part *message.Entity) bool {
	disposition := strings.ToLower(part.Header.Get("Content-Disposition"))
	return strings.Contains(disposition, "attachment")
}

// partText reads and decodes the body of a single leaf entity. HTML bodies are
// rendered to text. undecoded is set when go-message could not convert the
// declared charset itself.
func partText(part *message.Entity, mediaType string, undecoded bool) string {
	data, err := io.ReadAll(io.LimitReader(part.Body, maxPartBytes))
	if err != nil && len(data) == 0 {
		return ""
	}

	if undecoded {
		if _, params, _ := part.Header.ContentType(); params["charset"] != "" {
			if decoded, err := decodeCharset(data, params["charset"]); err == nil {
				data = decoded
			}
		}
	}

	text := ensureUTF8(data)
	if mediaType == "text/html" {
		return HTMLToText(text)
	}
	return text
}

// HTMLToText renders an HTML document to plain text. Text nodes are trimmed
// and joined with newlines; script and style content is dropped.
func HTMLToText(document string) string {
	z := html.NewTokenizer(strings.NewReader(document))

	var lines []string
	skipDepth := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.Join(lines, "\n")
		case html.StartTagToken:
			name, _ := z.TagName()
			if skippedElements[string(name)] {
				skipDepth++
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if skippedElements[string(name)] && skipDepth > 0 {
				skipDepth--
			}
		case html.TextToken:
			if skipDepth > 0 {
				continue
			}
			text := strings.TrimSpace(string(z.Text()))
			if text != "" {
				lines = append(lines, text)
			}
		}
	}
}
