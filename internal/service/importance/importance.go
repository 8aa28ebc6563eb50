package importance

import (
	"context"
	"log/slog"
	"strings"

	"github.com/huavcjj/wavemail/internal/domain/mail"
	"github.com/huavcjj/wavemail/internal/domain/oracle"
	"github.com/huavcjj/wavemail/internal/domain/triage"
	"github.com/huavcjj/wavemail/internal/service/prompt"
)

var (
	DefaultKeywords = []string{"urgent", "asap", "deadline", "payment", "immediately"}
	DefaultVIPs     = []string{"boss@", "teamlead@"}
)

const systemPrompt = "You are an assistant that decides whether an email is important for the recipient. " +
	"Answer with exactly one word: Yes or No."

type Stage string

const (
	StageKeyword  Stage = "rule-keyword"
	StageVIP      Stage = "rule-vip"
	StageOracle   Stage = "oracle"
	StageFallback Stage = "fallback"
)

// Decision is a verdict together with the stage that produced it.
type Decision struct {
	Verdict triage.Verdict
	Stage   Stage
	Match   string
}

// Classifier decides importance with keyword and VIP rules first and asks
// the oracle only when no rule matches.
type Classifier struct {
	oracle   oracle.Client
	keywords []string
	vips     []string
	redact   bool
}

type Option func(*Classifier)

func WithKeywords(keywords ...string) Option {
	return func(c *Classifier) {
		if len(keywords) > 0 {
			c.keywords = lowerAll(keywords)
		}
	}
}

func WithVIPs(patterns ...string) Option {
	return func(c *Classifier) {
		if len(patterns) > 0 {
			c.vips = lowerAll(patterns)
		}
	}
}

// WithRedaction controls whether personal data is masked before the oracle
// sees the email. It is on by default.
func WithRedaction(on bool) Option {
	return func(c *Classifier) { c.redact = on }
}

func NewClassifier(o oracle.Client, opts ...Option) *Classifier {
	c := &Classifier{
		oracle:   o,
		keywords: DefaultKeywords,
		vips:     DefaultVIPs,
		redact:   true,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Classifier) Classify(ctx context.Context, e mail.Email) triage.Verdict {
	return c.Decide(ctx, e).Verdict
}

func (c *Classifier) Decide(ctx context.Context, e mail.Email) Decision {
	if d, ok := c.rules(e); ok {
		return d
	}

	answer, err := c.oracle.Complete(ctx, systemPrompt, userPrompt(e, c.redact))
	if err != nil {
		return fallback(e, triage.OracleError, "error", err)
	}

	v, ok := ParseVerdict(answer)
	if !ok {
		return fallback(e, triage.UnrecognizedResponse, "answer", answer)
	}
	return Decision{Verdict: v, Stage: StageOracle}
}

func (c *Classifier) rules(e mail.Email) (Decision, bool) {
	text := strings.ToLower(e.Subject + " " + e.Body)
	for _, k := range c.keywords {
		if strings.Contains(text, k) {
			return Decision{Verdict: triage.Important, Stage: StageKeyword, Match: k}, true
		}
	}

	sender := strings.ToLower(e.Sender)
	for _, v := range c.vips {
		if strings.Contains(sender, v) {
			return Decision{Verdict: triage.Important, Stage: StageVIP, Match: v}, true
		}
	}
	return Decision{}, false
}

func fallback(e mail.Email, cond triage.Condition, key string, val any) Decision {
	slog.Warn("importance fallback applied",
		"message_id", e.ID,
		"condition", cond,
		key, val,
	)
	return Decision{Verdict: triage.FallbackFor(cond).Importance, Stage: StageFallback}
}

func userPrompt(e mail.Email, redact bool) string {
	return "Is this email important?\n\n" + prompt.Render(e, redact) + "\n\nAnswer Yes or No."
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}
