package body

import (
	"bytes"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/emersion/go-message/charset"
	"golang.org/x/text/encoding/charmap"
)

// decodeCharset converts raw to UTF-8. Payloads that claim UTF-8 (or claim
// nothing) but are not valid UTF-8 are read as Latin-1.
func decodeCharset(raw []byte, cs string) string {
	switch strings.ToLower(strings.TrimSpace(cs)) {
	case "", "utf-8", "utf8", "us-ascii", "ascii":
	default:
		if out, ok := convert(raw, cs); ok {
			return out
		}
	}

	if utf8.Valid(raw) {
		return string(raw)
	}
	return latin1(raw)
}

func convert(raw []byte, cs string) (string, bool) {
	r, err := charset.Reader(cs, bytes.NewReader(raw))
	if err != nil {
		return "", false
	}
	out, err := io.ReadAll(r)
	if err != nil || !utf8.Valid(out) {
		return "", false
	}
	return string(out), true
}

func latin1(raw []byte) string {
	out, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
	if err != nil {
		return strings.ToValidUTF8(string(raw), "\uFFFD")
	}
	return string(out)
}
