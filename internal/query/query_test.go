package query

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilders(t *testing.T) {
	day := time.Date(2025, 3, 7, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"notifications", And(Important(), NewerThan(1, Days)), "is:important newer_than:1d"},
		{"unread", Unread(), "is:unread"},
		{"quoted subject", Subject("weekly report"), `subject:"weekly report"`},
		{"sender", From("boss@corp.com"), "from:boss@corp.com"},
		{"dates", And(After(day), Before(day.AddDate(0, 0, 1))), "after:2025/03/07 before:2025/03/08"},
		{"negation", And(In("inbox"), Not(HasAttachment())), "in:inbox -has:attachment"},
		{"or group", Or(From("a@x.com"), From("b@x.com")), "{from:a@x.com from:b@x.com}"},
		{"or single", Or(From("a@x.com"), ""), "from:a@x.com"},
		{"skips empty", And("", Unread(), " "), "is:unread"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got)
		})
	}
}

func TestParse(t *testing.T) {
	q, err := Parse(`is:important newer_than:1d from:boss@corp.com subject:"weekly report" -in:spam invoice`)
	require.NoError(t, err)
	require.Len(t, q.Terms, 6)

	assert.Equal(t, Term{Field: FieldIs, Value: "important"}, q.Terms[0])
	assert.Equal(t, FieldNewerThan, q.Terms[1].Field)
	assert.Equal(t, 24*time.Hour, q.Terms[1].Window)
	assert.Equal(t, Term{Field: FieldFrom, Value: "boss@corp.com"}, q.Terms[2])
	assert.Equal(t, Term{Field: FieldSubject, Value: "weekly report"}, q.Terms[3])
	assert.Equal(t, Term{Field: FieldIn, Value: "spam", Negated: true}, q.Terms[4])
	assert.Equal(t, Term{Field: FieldText, Value: "invoice"}, q.Terms[5])
	assert.Equal(t, "", q.Folder())
}

func TestParseDates(t *testing.T) {
	q, err := Parse("after:2025/01/02 before:2025-02-03 older_than:2m label:Work")
	require.NoError(t, err)

	assert.Equal(t, time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC), q.Terms[0].Time)
	assert.Equal(t, time.Date(2025, 2, 3, 0, 0, 0, 0, time.UTC), q.Terms[1].Time)
	assert.Equal(t, 60*24*time.Hour, q.Terms[2].Window)
	assert.Equal(t, "Work", q.Folder())
}

func TestParseRoundTripsBuilders(t *testing.T) {
	expr := And(Unread(), HasAttachment(), To("team@corp.com"), Text("quarterly numbers"))
	q, err := Parse(expr)
	require.NoError(t, err)
	require.Len(t, q.Terms, 4)
	assert.Equal(t, "quarterly numbers", q.Terms[3].Value)
}

func TestParseErrors(t *testing.T) {
	for _, expr := range []string{
		"{from:a from:b}",
		"from:a OR from:b",
		"is:snoozed",
		"has:drive",
		"newer_than:xd",
		"newer_than:3w",
		"before:yesterday",
		"cc:someone",
		`subject:"open`,
		"from:",
	} {
		t.Run(expr, func(t *testing.T) {
			_, err := Parse(expr)
			assert.ErrorIs(t, err, ErrUnsupported)
		})
	}
}

func TestParseEmpty(t *testing.T) {
	q, err := Parse("   ")
	require.NoError(t, err)
	assert.Empty(t, q.Terms)
}
