package line

import (
	"context"
	"fmt"
	"net/http"
	"time"

	line_repo "github.com/huavcjj/wavemail/internal/domain/line"
	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
)

const (
	// maxTextRunes is the LINE limit for a single text message.
	maxTextRunes = 5000
	// maxMessagesPerPush is the LINE limit for messages in one push request.
	maxMessagesPerPush = 5
)

type lineRepo struct {
	bot *messaging_api.MessagingApiAPI
}

var _ line_repo.LineRepo = (*lineRepo)(nil)

func NewLineRepo(channelToken string, opts ...messaging_api.MessagingApiAPIOption) (line_repo.LineRepo, error) {
	if channelToken == "" {
		return nil, fmt.Errorf("line channel token is empty")
	}

	apiOpts := []messaging_api.MessagingApiAPIOption{
		messaging_api.WithHTTPClient(&http.Client{Timeout: 30 * time.Second}),
	}
	bot, err := messaging_api.NewMessagingApiAPI(channelToken, append(apiOpts, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create messaging API: %w", err)
	}

	return &lineRepo{
		bot: bot,
	}, nil
}

// PushMessage sends message as text, split across as many messages and
// requests as the LINE limits require.
func (r *lineRepo) PushMessage(ctx context.Context, userID, message string) error {
	if userID == "" {
		return fmt.Errorf("user ID is empty")
	}

	chunks := split(message, maxTextRunes)
	for len(chunks) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		n := min(len(chunks), maxMessagesPerPush)

		msgs := make([]messaging_api.MessageInterface, 0, n)
		for _, c := range chunks[:n] {
			msgs = append(msgs, messaging_api.TextMessage{Text: c})
		}
		chunks = chunks[n:]

		_, err := r.bot.PushMessage(
			&messaging_api.PushMessageRequest{
				To:       userID,
				Messages: msgs,
			},
			"",
		)
		if err != nil {
			return fmt.Errorf("failed to send text message: %w", err)
		}
	}
	return nil
}

func split(s string, size int) []string {
	runes := []rune(s)
	if len(runes) == 0 {
		return []string{""}
	}
	var out []string
	for len(runes) > 0 {
		n := min(len(runes), size)
		out = append(out, string(runes[:n]))
		runes = runes[n:]
	}
	return out
}
