package notification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	delivery_repo "github.com/huavcjj/wavemail/internal/domain/delivery"
	line_repo "github.com/huavcjj/wavemail/internal/domain/line"
	"github.com/huavcjj/wavemail/internal/domain/triage"
)

const helpMessage = "Available commands:\n• notifications - important mail from the last day\n• todo - tasks from important mail\n• sort - sort unread mail into categories\n• history - notifications delivered in the last day"

const historyWindow = 24 * time.Hour

// Pipeline is the part of the triage pipeline the notifier drives.
type Pipeline interface {
	Notifications(ctx context.Context, n int) ([]triage.NotificationItem, error)
	TodoList(ctx context.Context, n int) ([]triage.TodoItem, error)
	SortInbox(ctx context.Context) (triage.SortResult, error)
}

type Service struct {
	pipeline   Pipeline
	lineRepo   line_repo.LineRepo
	deliveries delivery_repo.DeliveryRepo
	recipient  string
	count      int
}

// NewService wires the notifier. recipient is the LINE user that receives
// pushed notifications; count bounds each view (0 uses the pipeline default).
func NewService(pipeline Pipeline, lineRepo line_repo.LineRepo, deliveries delivery_repo.DeliveryRepo, recipient string, count int) *Service {
	return &Service{
		pipeline:   pipeline,
		lineRepo:   lineRepo,
		deliveries: deliveries,
		recipient:  recipient,
		count:      count,
	}
}

// Deliver pushes every important mail that has not been delivered yet and
// returns how many were pushed.
func (s *Service) Deliver(ctx context.Context) (int, error) {
	if s.recipient == "" {
		return 0, errors.New("line recipient is not configured")
	}

	items, err := s.pipeline.Notifications(ctx, s.count)
	if err != nil {
		return 0, fmt.Errorf("failed to build notifications: %w", err)
	}

	sent := 0
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return sent, err
		}

		delivered, err := s.deliveries.Exists(ctx, item.MessageID)
		if err != nil {
			return sent, fmt.Errorf("failed to check delivery: %w", err)
		}
		if delivered {
			continue
		}

		text := fmt.Sprintf("📧 Important mail\n\nFrom: %s\nSubject: %s\n\n%s", item.From, item.Subject, item.Summary)
		if err := s.lineRepo.PushMessage(ctx, s.recipient, text); err != nil {
			slog.Error("failed to send LINE notification",
				"message_id", item.MessageID,
				"error", err,
			)
			continue
		}

		err = s.deliveries.Record(ctx, &delivery_repo.Delivery{
			MessageID: item.MessageID,
			Recipient: s.recipient,
			Subject:   item.Subject,
		})
		if err != nil {
			slog.Error("failed to record delivery", "message_id", item.MessageID, "error", err)
		}
		sent++

		slog.Info("notification sent successfully",
			"message_id", item.MessageID,
			"subject", item.Subject,
		)
	}
	return sent, nil
}

// Reply runs the command in text and pushes the result to userID.
func (s *Service) Reply(ctx context.Context, userID, text string) error {
	var (
		reply string
		err   error
		op    string
	)

	switch strings.ToLower(strings.TrimSpace(text)) {
	case "notifications", "notification":
		op = "notifications"
		var items []triage.NotificationItem
		if items, err = s.pipeline.Notifications(ctx, s.count); err == nil {
			reply = renderNotifications(items)
		}
	case "todo", "todolist", "todos":
		op = "todo list"
		var items []triage.TodoItem
		if items, err = s.pipeline.TodoList(ctx, s.count); err == nil {
			reply = renderTodos(items)
		}
	case "sort":
		op = "automated sort"
		var result triage.SortResult
		if result, err = s.pipeline.SortInbox(ctx); err == nil {
			reply = renderSort(result)
		}
	case "history":
		op = "delivery history"
		var records []delivery_repo.Delivery
		if records, err = s.deliveries.ListSince(ctx, time.Now().Add(-historyWindow)); err == nil {
			reply = renderHistory(records)
		}
	default:
		reply = helpMessage
	}

	if err != nil {
		slog.Error("failed to run command", "user_id", userID, "command", op, "error", err)
		reply = fmt.Sprintf("⚠️ Unable to complete %s. Please try again later.", op)
	}

	if pushErr := s.lineRepo.PushMessage(ctx, userID, reply); pushErr != nil {
		return errors.Join(err, fmt.Errorf("failed to send reply: %w", pushErr))
	}
	return err
}

func renderNotifications(items []triage.NotificationItem) string {
	if len(items) == 0 {
		return "📭 No important mail in the last day"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "📧 Important mail (%d)\n", len(items))
	for i, it := range items {
		fmt.Fprintf(&b, "\n%d. %s\nFrom: %s\n%s\n", i+1, it.Subject, it.From, it.Summary)
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderTodos(items []triage.TodoItem) string {
	if len(items) == 0 {
		return "✅ Nothing to do"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "📝 To-do (%d)\n", len(items))
	for i, it := range items {
		fmt.Fprintf(&b, "\n%d. %s\nFrom: %s\nSubject: %s\n", i+1, it.Todo, it.From, it.Subject)
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderHistory(records []delivery_repo.Delivery) string {
	if len(records) == 0 {
		return "📭 Nothing delivered in the last day"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "📬 Delivered (%d)\n", len(records))
	for i, r := range records {
		fmt.Fprintf(&b, "\n%d. %s\nAt: %s\n", i+1, r.Subject, r.DeliveredAt.Local().Format("2006-01-02 15:04"))
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderSort(r triage.SortResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🗂 Sorted %d emails", r.Processed)
	for _, l := range triage.Labels {
		if n := r.Labeled[l]; n > 0 {
			fmt.Fprintf(&b, "\n%s: %d", l, n)
		}
	}
	if r.Failed > 0 {
		fmt.Fprintf(&b, "\nfailed: %d", r.Failed)
	}
	if r.Skipped > 0 {
		fmt.Fprintf(&b, "\nskipped: %d", r.Skipped)
	}
	return b.String()
}
