package spam

import (
	"strings"
	"unicode"

	"github.com/huavcjj/wavemail/internal/domain/mail"
)

var DefaultKeywords = []string{"unsubscribe", "newsletter", "promo", "sale", "advertisement"}

// Filter flags bulk mail by keyword before any oracle call is made.
type Filter struct {
	keywords []string
}

// NewFilter returns a Filter over keywords, or DefaultKeywords when none are given.
func NewFilter(keywords ...string) *Filter {
	if len(keywords) == 0 {
		keywords = DefaultKeywords
	}
	normalized := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if k = strings.TrimSpace(normalize(k)); k != "" {
			normalized = append(normalized, k)
		}
	}
	return &Filter{keywords: normalized}
}

func (f *Filter) IsSpam(e mail.Email) bool {
	text := normalize(e.Subject + " " + e.Body)
	for _, k := range f.keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}

// normalize lower-cases s and drops punctuation so "Un-subscribe!" reads
// as "unsubscribe".
func normalize(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) {
			return -1
		}
		return unicode.ToLower(r)
	}, s)
}
