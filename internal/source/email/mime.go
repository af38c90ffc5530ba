package email

import (
	"bytes"
	"html"
	"io"
	"regexp"
	"strings"

	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"github.com/microcosm-cc/bluemonday"
)

// parseMIMEBody parses a raw RFC 5322 message using go-message and
// returns the first text/plain and text/html parts. Attachments are
// ignored. Non-UTF-8 charsets are decoded through go-message/charset.
func parseMIMEBody(raw []byte) (textBody string, htmlBody string) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		// Not MIME; use whatever follows the header block.
		if _, body, ok := bytes.Cut(raw, []byte("\r\n\r\n")); ok {
			return string(body), ""
		}
		return string(raw), ""
	}
	defer mr.Close()

	for {
		part, err := mr.NextPart()
		if err != nil {
			break
		}

		h, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}

		contentType, _, _ := h.ContentType()
		if contentType == "" {
			contentType = "text/plain"
		}
		body, readErr := io.ReadAll(part.Body)
		if readErr != nil {
			continue
		}

		switch {
		case contentType == "text/plain" && textBody == "":
			textBody = string(body)
		case contentType == "text/html" && htmlBody == "":
			htmlBody = string(body)
		}
	}

	return textBody, htmlBody
}

var (
	textPolicy = bluemonday.StrictPolicy()

	blockBreak  = regexp.MustCompile(`(?i)<br\s*/?>|</(p|div|li|tr|h[1-6])>`)
	dropContent = regexp.MustCompile(`(?is)<(style|script|head)[^>]*>.*?</(style|script|head)>`)
	extraBlank  = regexp.MustCompile(`\n{3,}`)
	trailingWS  = regexp.MustCompile(`[ \t]+\n`)
)

// htmlToText reduces an HTML body to readable plain text.
func htmlToText(s string) string {
	if s == "" {
		return ""
	}

	s = dropContent.ReplaceAllString(s, "")
	s = blockBreak.ReplaceAllString(s, "\n")
	s = textPolicy.Sanitize(s)
	s = html.UnescapeString(s)
	s = strings.ReplaceAll(s, "\u00a0", " ")
	s = trailingWS.ReplaceAllString(s, "\n")
	s = extraBlank.ReplaceAllString(s, "\n\n")

	return strings.TrimSpace(s)
}

// bodyText prefers the plain-text part and falls back to converted HTML.
func bodyText(m ParsedMessage) string {
	if t := strings.TrimSpace(m.TextBody); t != "" {
		return strings.ReplaceAll(t, "\r\n", "\n")
	}
	return htmlToText(m.HTMLBody)
}
