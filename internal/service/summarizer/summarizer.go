package summarizer

import (
	"context"
	"fmt"
	"strings"

	"github.com/huavcjj/wavemail/internal/domain/mail"
	"github.com/huavcjj/wavemail/internal/domain/oracle"
	"github.com/huavcjj/wavemail/internal/service/prompt"
)

const (
	systemPrompt = "You are an assistant that summarizes emails in a single concise phrase."
	userPrefix   = "Summarize this email. Do not mention names or additional context:\n\n"
)

type Summarizer struct {
	oracle oracle.Client
	redact bool
}

func NewSummarizer(o oracle.Client, redact bool) *Summarizer {
	return &Summarizer{oracle: o, redact: redact}
}

// Summarize returns the oracle's one-phrase summary of e, trimmed. The text
// is free-form and is not validated further.
func (s *Summarizer) Summarize(ctx context.Context, e mail.Email) (string, error) {
	answer, err := s.oracle.Complete(ctx, systemPrompt, userPrefix+prompt.Render(e, s.redact))
	if err != nil {
		return "", fmt.Errorf("failed to summarize email %s: %w", e.ID, err)
	}
	return strings.TrimSpace(answer), nil
}
