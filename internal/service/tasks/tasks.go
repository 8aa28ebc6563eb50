package tasks

import (
	"context"
	"log/slog"

	"github.com/huavcjj/wavemail/internal/domain/mail"
	"github.com/huavcjj/wavemail/internal/domain/oracle"
	"github.com/huavcjj/wavemail/internal/domain/triage"
	"github.com/huavcjj/wavemail/internal/service/prompt"
)

const (
	systemPrompt = "You extract actionable tasks from emails. " +
		"If the email is purely informational, reply with the single word: none. " +
		"Otherwise reply with one concise task per line, and make the first line a short note of what the email is about. " +
		"Do not add any other text."
	userPrefix = "Extract the tasks from this email:\n\n"
)

type SpamChecker interface {
	IsSpam(e mail.Email) bool
}

type Classifier interface {
	Classify(ctx context.Context, e mail.Email) triage.Verdict
}

// Extractor pulls action items out of mail that is neither spam nor
// unimportant.
type Extractor struct {
	spam       SpamChecker
	importance Classifier
	oracle     oracle.Client
	redact     bool
}

func NewExtractor(spam SpamChecker, importance Classifier, o oracle.Client, redact bool) *Extractor {
	return &Extractor{
		spam:       spam,
		importance: importance,
		oracle:     o,
		redact:     redact,
	}
}

// Extract returns the task lines for e, or nil. It never fails: oracle
// errors yield no tasks.
func (x *Extractor) Extract(ctx context.Context, e mail.Email) []string {
	if x.spam.IsSpam(e) {
		return nil
	}
	if x.importance.Classify(ctx, e) != triage.Important {
		return nil
	}

	answer, err := x.oracle.Complete(ctx, systemPrompt, userPrefix+prompt.Render(e, x.redact))
	if err != nil {
		slog.Warn("task extraction fallback applied",
			"message_id", e.ID,
			"condition", triage.OracleError,
			"error", err,
		)
		return triage.FallbackFor(triage.OracleError).Tasks
	}
	return ParseTasks(answer)
}
