package webhook

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/goccy/go-json"
)

type PubSubMessage struct {
	Message struct {
		Data        string            `json:"data"`
		MessageID   string            `json:"messageId"`
		Attributes  map[string]string `json:"attributes"`
		PublishTime string            `json:"publishTime"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

// gmailNotification is the payload Gmail publishes for a mailbox change.
type gmailNotification struct {
	EmailAddress string `json:"emailAddress"`
	HistoryID    uint64 `json:"historyId"`
}

// Deliverer pushes notifications for new important mail.
type Deliverer interface {
	Deliver(ctx context.Context) (int, error)
}

type PubSubWebhookHandler struct {
	deliverer Deliverer
}

func NewPubSubWebhookHandler(deliverer Deliverer) *PubSubWebhookHandler {
	return &PubSubWebhookHandler{
		deliverer: deliverer,
	}
}

func (h *PubSubWebhookHandler) HandlePubSub(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var msg PubSubMessage
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		slog.Error("failed to decode pubsub message", "error", err)
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	var change gmailNotification
	if data, err := base64.StdEncoding.DecodeString(msg.Message.Data); err == nil && len(data) > 0 {
		if err := json.Unmarshal(data, &change); err != nil {
			slog.Warn("failed to decode gmail notification", "error", err)
		}
	}

	slog.Info("received Gmail notification",
		"message_id", msg.Message.MessageID,
		"publish_time", msg.Message.PublishTime,
		"history_id", change.HistoryID,
	)

	sent, err := h.deliverer.Deliver(r.Context())
	if err != nil {
		slog.Error("failed to process Gmail notification", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	slog.Info("notifications delivered", "count", sent)

	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}
