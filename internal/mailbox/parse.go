package mailbox

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
)

const maxPartBytes = 5 << 20

var reTags = regexp.MustCompile(`(?is)<[^>]+>`)

// Parsed is the decoded view of one RFC822 message.
type Parsed struct {
	MessageID string
	Subject   string
	From      string
	Date      time.Time
	Text      string // text/plain, else text/html rendered to text, else the first other leaf
}

// ParseMessage decodes headers (RFC 2047) and picks a text body.
// On a malformed message the raw bytes come back as Text together with the error.
func ParseMessage(raw []byte) (Parsed, error) {
	if len(raw) == 0 {
		return Parsed{}, nil
	}

	e, err := message.Read(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) {
		return Parsed{Text: strings.TrimSpace(string(raw))}, fmt.Errorf("parse rfc822: %w", err)
	}

	h := mail.Header{Header: e.Header}
	var p Parsed
	p.MessageID, _ = h.MessageID()
	p.Date, _ = h.Date()
	if p.Subject, err = h.Subject(); err != nil {
		p.Subject = h.Get("Subject")
	}
	if from, ferr := h.AddressList("From"); ferr == nil && len(from) > 0 {
		p.From = from[0].Address
	} else {
		p.From = strings.TrimSpace(h.Get("From"))
	}

	var plain, html, leaf string
	_ = e.Walk(func(_ []int, part *message.Entity, werr error) error {
		if part == nil || (werr != nil && !message.IsUnknownCharset(werr)) {
			return nil
		}
		mediaType, _, _ := part.Header.ContentType()
		mediaType = strings.ToLower(mediaType)
		if strings.HasPrefix(mediaType, "multipart/") {
			return nil
		}
		if disp, _, _ := part.Header.ContentDisposition(); strings.EqualFold(disp, "attachment") {
			return nil
		}

		switch {
		case strings.HasPrefix(mediaType, "text/plain") && plain == "":
			plain = readPart(part.Body)
		case strings.HasPrefix(mediaType, "text/html") && html == "":
			html = readPart(part.Body)
		case mediaType == "" && plain == "":
			plain = readPart(part.Body)
		case leaf == "":
			// mislabelled alerts (application/octet-stream and friends)
			if b := readPart(part.Body); utf8.ValidString(b) {
				leaf = b
			}
		}
		return nil
	})

	switch {
	case strings.TrimSpace(plain) != "":
		p.Text = strings.TrimSpace(plain)
	case strings.TrimSpace(html) != "":
		p.Text = HTMLToText(html)
	case strings.TrimSpace(leaf) != "":
		p.Text = strings.TrimSpace(leaf)
	}
	return p, nil
}

func readPart(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, maxPartBytes))
	return string(b)
}

// HTMLToText renders an HTML body as single-spaced text, dropping scripts and styles.
func HTMLToText(s string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return cleanText(reTags.ReplaceAllString(s, " "))
	}
	doc.Find("script, style, head").Remove()
	// keep words in adjacent blocks apart
	doc.Find("br, p, div, td, li, tr, h1, h2, h3, h4").AppendHtml(" ")
	return cleanText(doc.Text())
}

func cleanText(s string) string {
	return strings.TrimSpace(strings.Join(strings.Fields(s), " "))
}
