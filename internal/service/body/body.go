// Package body turns a message payload tree into the plain-text body the
// triage components read.
package body

import (
	"encoding/base64"
	"mime"
	"strings"
	"unicode/utf8"

	"github.com/huavcjj/wavemail/internal/domain/mail"
)

const (
	// NoBody is returned when the payload has neither a text/plain nor a
	// text/html leaf.
	NoBody = "No readable body found."

	// MaxChars bounds the body attached to an Email. Longer bodies are cut
	// to MaxChars runes followed by Ellipsis.
	MaxChars = 1000
	Ellipsis = "..."
)

type kind int

const (
	kindNone kind = iota
	kindPlain
	kindHTML
)

type found struct {
	kind kind
	text string
}

// Extract returns the first text/plain leaf in depth-first order. Without
// one, it returns the visible text of the last text/html leaf.
func Extract(p *mail.Part) string {
	r := search(p)
	switch r.kind {
	case kindPlain:
		return r.text
	case kindHTML:
		return htmlToText(r.text)
	default:
		return NoBody
	}
}

// Email extracts and truncates the body of msg and applies header defaults.
func Email(msg *mail.Message) mail.Email {
	return mail.NewEmail(msg, Truncate(Extract(msg.Payload)))
}

// Truncate cuts s to MaxChars runes plus Ellipsis when it is longer.
func Truncate(s string) string {
	if utf8.RuneCountInString(s) <= MaxChars {
		return s
	}
	return string([]rune(s)[:MaxChars]) + Ellipsis
}

func search(p *mail.Part) found {
	if p == nil {
		return found{}
	}
	if len(p.Parts) == 0 {
		return leaf(p)
	}

	var last found
	for _, child := range p.Parts {
		r := search(child)
		switch r.kind {
		case kindPlain:
			return r
		case kindHTML:
			last = r
		}
	}
	return last
}

func leaf(p *mail.Part) found {
	if p.Data == "" {
		return found{}
	}

	var k kind
	switch mediaType(p.MimeType) {
	case "text/plain":
		k = kindPlain
	case "text/html":
		k = kindHTML
	default:
		return found{}
	}

	raw, ok := decodeBase64(p.Data)
	if !ok {
		return found{}
	}
	return found{kind: k, text: decodeCharset(raw, p.Charset)}
}

func mediaType(v string) string {
	mt, _, err := mime.ParseMediaType(v)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(v))
	}
	return mt
}

var encodings = []*base64.Encoding{
	base64.URLEncoding,
	base64.RawURLEncoding,
	base64.StdEncoding,
	base64.RawStdEncoding,
}

func decodeBase64(data string) ([]byte, bool) {
	data = strings.Map(func(r rune) rune {
		if r == '\r' || r == '\n' || r == ' ' || r == '\t' {
			return -1
		}
		return r
	}, data)
	for _, enc := range encodings {
		if b, err := enc.DecodeString(data); err == nil {
			return b, true
		}
	}
	return nil, false
}
