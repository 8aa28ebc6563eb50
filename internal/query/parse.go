package query

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"
)

var ErrUnsupported = errors.New("unsupported search expression")

type Field string

const (
	FieldIs        Field = "is"
	FieldHas       Field = "has"
	FieldIn        Field = "in"
	FieldBefore    Field = "before"
	FieldAfter     Field = "after"
	FieldNewerThan Field = "newer_than"
	FieldOlderThan Field = "older_than"
	FieldFrom      Field = "from"
	FieldTo        Field = "to"
	FieldSubject   Field = "subject"
	FieldText      Field = "text"
)

// Term is one parsed predicate. Time is set for before/after, Window for
// newer_than/older_than.
type Term struct {
	Field   Field
	Value   string
	Negated bool
	Time    time.Time
	Window  time.Duration
}

// Query is the conjunction of its terms.
type Query struct {
	Terms []Term
}

// Folder returns the folder named by the first non-negated in: term.
func (q Query) Folder() string {
	for _, t := range q.Terms {
		if t.Field == FieldIn && !t.Negated {
			return t.Value
		}
	}
	return ""
}

var isValues = map[string]bool{"unread": true, "read": true, "important": true, "starred": true}

// Parse converts an expression into typed terms. OR groups are not supported.
func Parse(expr string) (Query, error) {
	tokens, err := tokenize(expr)
	if err != nil {
		return Query{}, err
	}

	var q Query
	for _, tok := range tokens {
		term, err := parseTerm(tok)
		if err != nil {
			return Query{}, err
		}
		q.Terms = append(q.Terms, term)
	}
	return q, nil
}

func parseTerm(tok string) (Term, error) {
	var term Term
	if strings.HasPrefix(tok, "-") && len(tok) > 1 {
		term.Negated = true
		tok = tok[1:]
	}
	if tok == "OR" || strings.HasPrefix(tok, "{") || strings.HasPrefix(tok, "(") {
		return Term{}, fmt.Errorf("%w: boolean group %q", ErrUnsupported, tok)
	}

	name, value, ok := strings.Cut(tok, ":")
	if !ok || !isOperator(name) {
		term.Field = FieldText
		term.Value = unquote(tok)
		return term, nil
	}
	value = unquote(value)
	if value == "" {
		return Term{}, fmt.Errorf("%w: empty value for %q", ErrUnsupported, name)
	}

	switch Field(strings.ToLower(name)) {
	case FieldIs:
		v := strings.ToLower(value)
		if !isValues[v] {
			return Term{}, fmt.Errorf("%w: is:%s", ErrUnsupported, value)
		}
		term.Field, term.Value = FieldIs, v
	case FieldHas:
		if !strings.EqualFold(value, "attachment") {
			return Term{}, fmt.Errorf("%w: has:%s", ErrUnsupported, value)
		}
		term.Field, term.Value = FieldHas, "attachment"
	case FieldIn, "label":
		term.Field, term.Value = FieldIn, value
	case FieldBefore, FieldAfter:
		t, err := parseDate(value)
		if err != nil {
			return Term{}, err
		}
		term.Field, term.Value, term.Time = Field(strings.ToLower(name)), value, t
	case FieldNewerThan, FieldOlderThan:
		d, err := parseWindow(value)
		if err != nil {
			return Term{}, err
		}
		term.Field, term.Value, term.Window = Field(strings.ToLower(name)), value, d
	case FieldFrom, FieldTo, FieldSubject:
		term.Field, term.Value = Field(strings.ToLower(name)), value
	default:
		return Term{}, fmt.Errorf("%w: operator %q", ErrUnsupported, name)
	}
	return term, nil
}

func isOperator(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		if !unicode.IsLetter(r) && r != '_' {
			return false
		}
	}
	return true
}

func parseDate(v string) (time.Time, error) {
	for _, layout := range []string{dateLayout, "2006/1/2", "2006-01-02"} {
		if t, err := time.Parse(layout, v); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: date %q", ErrUnsupported, v)
}

func parseWindow(v string) (time.Duration, error) {
	if len(v) < 2 {
		return 0, fmt.Errorf("%w: window %q", ErrUnsupported, v)
	}
	n, err := strconv.Atoi(v[:len(v)-1])
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: window %q", ErrUnsupported, v)
	}
	day := 24 * time.Hour
	switch Unit(strings.ToLower(v[len(v)-1:])) {
	case Hours:
		return time.Duration(n) * time.Hour, nil
	case Days:
		return time.Duration(n) * day, nil
	case Months:
		return time.Duration(n) * 30 * day, nil
	case Years:
		return time.Duration(n) * 365 * day, nil
	}
	return 0, fmt.Errorf("%w: window %q", ErrUnsupported, v)
}

func tokenize(expr string) ([]string, error) {
	var (
		tokens  []string
		cur     strings.Builder
		inQuote bool
	)
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}
	for _, r := range expr {
		switch {
		case r == '"':
			inQuote = !inQuote
			cur.WriteRune(r)
		case unicode.IsSpace(r) && !inQuote:
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	if inQuote {
		return nil, fmt.Errorf("%w: unterminated quote in %q", ErrUnsupported, expr)
	}
	flush()
	return tokens, nil
}

func unquote(s string) string {
	return strings.Trim(s, `"`)
}
