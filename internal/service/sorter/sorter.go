package sorter

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/huavcjj/wavemail/internal/domain/mail"
	"github.com/huavcjj/wavemail/internal/domain/oracle"
	"github.com/huavcjj/wavemail/internal/domain/triage"
	"github.com/huavcjj/wavemail/internal/service/prompt"
)

const systemPrompt = "You are an assistant that files emails into exactly one category. " +
	"Reply with one word from this list and nothing else: "

// DefaultGuidance is appended to the system prompt. It is advice for the
// oracle, not a rule the sorter enforces.
const DefaultGuidance = "Use spam for unsolicited or deceptive mail and trash for mail with no value to the reader. " +
	"Promotions are marketing offers and social is mail from social networks. " +
	"News belongs under updates; general informational mail belongs under forums. " +
	"Use inbox for anything that needs the reader's attention."

var categoryLabelIDs = map[triage.CategoryLabel]string{
	triage.LabelPromotions: "CATEGORY_PROMOTIONS",
	triage.LabelSocial:     "CATEGORY_SOCIAL",
	triage.LabelUpdates:    "CATEGORY_UPDATES",
	triage.LabelForums:     "CATEGORY_FORUMS",
}

type Classifier interface {
	Classify(ctx context.Context, e mail.Email) triage.Verdict
}

// Sorter assigns each email one CategoryLabel and applies it to the store.
type Sorter struct {
	store      mail.Store
	importance Classifier
	oracle     oracle.Client
	guidance   string
	redact     bool
	locks      keyedMutex
	claims     claimSet
}

type Option func(*Sorter)

func WithGuidance(guidance string) Option {
	return func(s *Sorter) { s.guidance = guidance }
}

func WithRedaction(on bool) Option {
	return func(s *Sorter) { s.redact = on }
}

func NewSorter(store mail.Store, importance Classifier, o oracle.Client, opts ...Option) *Sorter {
	s := &Sorter{
		store:      store,
		importance: importance,
		oracle:     o,
		guidance:   DefaultGuidance,
		redact:     true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Label decides the terminal label for e without touching the store.
// Important mail always stays in the inbox.
func (s *Sorter) Label(ctx context.Context, e mail.Email) triage.CategoryLabel {
	if s.importance.Classify(ctx, e) == triage.Important {
		return triage.LabelInbox
	}

	answer, err := s.oracle.Complete(ctx, s.system(), "Categorize this email:\n\n"+prompt.Render(e, s.redact))
	if err != nil {
		slog.Warn("sort fallback applied", "message_id", e.ID, "condition", triage.OracleError, "error", err)
		return triage.FallbackFor(triage.OracleError).Category
	}

	label, ok := ParseLabel(answer)
	if !ok {
		slog.Warn("sort fallback applied", "message_id", e.ID, "condition", triage.UnrecognizedResponse, "answer", answer)
		return triage.FallbackFor(triage.UnrecognizedResponse).Category
	}
	return label
}

// Apply performs the one store mutation that label calls for. Mutations on
// the same message id never run concurrently.
func (s *Sorter) Apply(ctx context.Context, id string, label triage.CategoryLabel) error {
	unlock := s.locks.lock(id)
	defer unlock()

	switch label {
	case triage.LabelInbox:
		return nil
	case triage.LabelSpam:
		return s.store.MarkSpam(ctx, id)
	case triage.LabelTrash:
		return s.store.MoveToTrash(ctx, id)
	}

	labelID, ok := categoryLabelIDs[label]
	if !ok {
		return fmt.Errorf("unknown category label %q", label)
	}
	return s.store.ModifyLabels(ctx, id, []string{labelID}, []string{mail.LabelInbox})
}

func (s *Sorter) Sort(ctx context.Context, e mail.Email) (triage.CategoryLabel, error) {
	label := s.Label(ctx, e)
	if err := s.Apply(ctx, e.ID, label); err != nil {
		return label, fmt.Errorf("failed to apply label %s to %s: %w", label, e.ID, err)
	}
	return label, nil
}

// SortAll sorts each distinct email once, in order. Emails that an
// overlapping pass is already sorting are skipped. A failed mutation is
// logged and counted, and the pass continues.
func (s *Sorter) SortAll(ctx context.Context, emails []mail.Email) triage.SortResult {
	result := triage.SortResult{Labeled: make(map[triage.CategoryLabel]int)}
	seen := make(map[string]bool, len(emails))

	for _, e := range emails {
		if seen[e.ID] {
			continue
		}
		seen[e.ID] = true

		if err := ctx.Err(); err != nil {
			slog.Warn("sort pass interrupted", "remaining", len(emails)-result.Processed-result.Skipped, "error", err)
			break
		}

		release, ok := s.claims.claim(e.ID)
		if !ok {
			result.Skipped++
			slog.Info("email already being sorted", "message_id", e.ID)
			continue
		}
		label, err := s.Sort(ctx, e)
		release()
		result.Processed++
		if err != nil {
			result.Failed++
			slog.Error("failed to sort email",
				"message_id", e.ID,
				"label", label,
				"error", err,
			)
			continue
		}
		result.Labeled[label]++
		slog.Info("email sorted", "message_id", e.ID, "label", label)
	}
	return result
}

func (s *Sorter) system() string {
	names := make([]string, len(triage.Labels))
	for i, l := range triage.Labels {
		names[i] = string(l)
	}
	p := systemPrompt + strings.Join(names, ", ") + "."
	if s.guidance != "" {
		p += " " + s.guidance
	}
	return p
}
