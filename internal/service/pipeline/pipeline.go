// Package pipeline runs the triage components over fetched batches of mail.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/huavcjj/wavemail/internal/domain/mail"
	"github.com/huavcjj/wavemail/internal/domain/triage"
	"github.com/huavcjj/wavemail/internal/query"
	"github.com/huavcjj/wavemail/internal/service/body"
	"golang.org/x/sync/errgroup"
)

type Classifier interface {
	Classify(ctx context.Context, e mail.Email) triage.Verdict
}

type Summarizer interface {
	Summarize(ctx context.Context, e mail.Email) (string, error)
}

type TaskExtractor interface {
	Extract(ctx context.Context, e mail.Email) []string
}

type Sorter interface {
	SortAll(ctx context.Context, emails []mail.Email) triage.SortResult
}

type Options struct {
	NotificationsQuery string
	TodoQuery          string
	SortQuery          string
	DefaultCount       int
	// SortLimit caps a sort pass; zero sorts every match.
	SortLimit int
	// Concurrency bounds how many emails the read-only views process at
	// once. Sort passes are always sequential.
	Concurrency int
}

func DefaultOptions() Options {
	return Options{
		NotificationsQuery: query.And(query.Important(), query.NewerThan(1, query.Days)),
		TodoQuery:          query.Important(),
		SortQuery:          query.Unread(),
		DefaultCount:       10,
		SortLimit:          0,
		Concurrency:        1,
	}
}

type Service struct {
	store      mail.Store
	classifier Classifier
	summarizer Summarizer
	tasks      TaskExtractor
	sorter     Sorter
	opts       Options
}

func NewService(store mail.Store, classifier Classifier, summarizer Summarizer, tasks TaskExtractor, sorter Sorter, opts Options) *Service {
	def := DefaultOptions()
	if opts.NotificationsQuery == "" {
		opts.NotificationsQuery = def.NotificationsQuery
	}
	if opts.TodoQuery == "" {
		opts.TodoQuery = def.TodoQuery
	}
	if opts.SortQuery == "" {
		opts.SortQuery = def.SortQuery
	}
	if opts.DefaultCount <= 0 {
		opts.DefaultCount = def.DefaultCount
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	return &Service{
		store:      store,
		classifier: classifier,
		summarizer: summarizer,
		tasks:      tasks,
		sorter:     sorter,
		opts:       opts,
	}
}

// Notifications summarizes the important mail among the latest n matches of
// the notifications query.
func (s *Service) Notifications(ctx context.Context, n int) ([]triage.NotificationItem, error) {
	emails, err := s.Fetch(ctx, s.opts.NotificationsQuery, s.count(n))
	if err != nil {
		return nil, err
	}

	items := make([]*triage.NotificationItem, len(emails))
	s.each(ctx, emails, func(ctx context.Context, i int, e mail.Email) {
		if s.classifier.Classify(ctx, e) != triage.Important {
			return
		}
		summary, err := s.summarizer.Summarize(ctx, e)
		if err != nil {
			slog.Warn("skipping notification", "message_id", e.ID, "error", err)
			return
		}
		items[i] = &triage.NotificationItem{
			MessageID: e.ID,
			From:      e.Sender,
			Subject:   e.Subject,
			Summary:   summary,
			Date:      e.Date,
		}
	})
	return compact(items), nil
}

// TodoList collects the extracted tasks of the latest n matches of the todo
// query. Emails without tasks are left out.
func (s *Service) TodoList(ctx context.Context, n int) ([]triage.TodoItem, error) {
	emails, err := s.Fetch(ctx, s.opts.TodoQuery, s.count(n))
	if err != nil {
		return nil, err
	}

	items := make([]*triage.TodoItem, len(emails))
	s.each(ctx, emails, func(ctx context.Context, i int, e mail.Email) {
		tasks := s.tasks.Extract(ctx, e)
		if len(tasks) == 0 {
			return
		}
		items[i] = &triage.TodoItem{
			MessageID: e.ID,
			From:      e.Sender,
			Subject:   e.Subject,
			Todo:      strings.Join(tasks, " "),
			Date:      e.Date,
		}
	})
	return compact(items), nil
}

// SortInbox runs one sort pass over unread mail.
func (s *Service) SortInbox(ctx context.Context) (triage.SortResult, error) {
	runID := uuid.NewString()
	emails, err := s.Fetch(ctx, s.opts.SortQuery, s.opts.SortLimit)
	if err != nil {
		return triage.SortResult{}, err
	}
	slog.Info("sort pass started", "run_id", runID, "query", s.opts.SortQuery, "emails", len(emails))

	result := s.sorter.SortAll(ctx, emails)
	slog.Info("sort pass completed",
		"run_id", runID,
		"processed", result.Processed,
		"failed", result.Failed,
	)
	return result, nil
}

// Fetch searches the store and extracts up to n emails; n <= 0 fetches
// every match. Messages deleted between search and read are skipped.
func (s *Service) Fetch(ctx context.Context, expr string, n int) ([]mail.Email, error) {
	ids, err := s.store.Search(ctx, expr, n)
	if err != nil {
		return nil, &triage.FetchError{Query: expr, Err: err}
	}

	emails := make([]mail.Email, 0, len(ids))
	for _, id := range ids {
		msg, err := s.store.Get(ctx, id)
		if errors.Is(err, mail.ErrNotFound) {
			slog.Warn("message disappeared before fetch", "message_id", id)
			continue
		}
		if err != nil {
			return nil, &triage.FetchError{Query: expr, Err: err}
		}
		emails = append(emails, body.Email(msg))
	}
	return emails, nil
}

func (s *Service) FetchLatest(ctx context.Context, n int) ([]mail.Email, error) {
	return s.Fetch(ctx, query.In("inbox"), s.count(n))
}

func (s *Service) FetchFromSender(ctx context.Context, sender string, n int) ([]mail.Email, error) {
	return s.Fetch(ctx, query.From(sender), s.count(n))
}

func (s *Service) count(n int) int {
	if n <= 0 {
		return s.opts.DefaultCount
	}
	return n
}

func (s *Service) each(ctx context.Context, emails []mail.Email, fn func(ctx context.Context, i int, e mail.Email)) {
	if s.opts.Concurrency <= 1 {
		for i, e := range emails {
			fn(ctx, i, e)
		}
		return
	}

	var g errgroup.Group
	g.SetLimit(s.opts.Concurrency)
	for i, e := range emails {
		g.Go(func() error {
			fn(ctx, i, e)
			return nil
		})
	}
	_ = g.Wait()
}

func compact[T any](in []*T) []T {
	out := make([]T, 0, len(in))
	for _, v := range in {
		if v != nil {
			out = append(out, *v)
		}
	}
	return out
}
