package summarizer

import (
	"context"
	"errors"
	"testing"

	"github.com/huavcjj/wavemail/internal/domain/mail"
	"github.com/huavcjj/wavemail/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarize(t *testing.T) {
	o := testutil.NewOracle("  Quarterly report due Friday \n")
	s := NewSummarizer(o, false)

	got, err := s.Summarize(context.Background(), mail.Email{ID: "1", Subject: "Report", Body: "Please send the Q3 report by Friday."})

	require.NoError(t, err)
	assert.Equal(t, "Quarterly report due Friday", got)

	calls := o.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "You are an assistant that summarizes emails in a single concise phrase.", calls[0].System)
	assert.Equal(t,
		"Summarize this email. Do not mention names or additional context:\n\nSubject: Report\nContent: Please send the Q3 report by Friday.",
		calls[0].User,
	)
}

func TestSummarizeError(t *testing.T) {
	boom := errors.New("rate limited")
	o := &testutil.Oracle{Respond: func(string, string) (string, error) { return "", boom }}

	_, err := NewSummarizer(o, true).Summarize(context.Background(), mail.Email{ID: "9"})

	assert.ErrorIs(t, err, boom)
}
