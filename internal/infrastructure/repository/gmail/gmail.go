package gmail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/huavcjj/wavemail/internal/domain/mail"
	"github.com/sony/gobreaker"
	"golang.org/x/oauth2"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const maxPageSize = 500

type Config struct {
	CredentialsPath string
	TokenPath       string
	User            string
}

type Repo struct {
	srv  *gmail.Service
	user string
	cb   *gobreaker.CircuitBreaker
}

var (
	_ mail.Store   = (*Repo)(nil)
	_ mail.Watcher = (*Repo)(nil)
)

func NewGmailRepo(ctx context.Context, cfg Config) (*Repo, error) {
	config, err := LoadConfig(cfg.CredentialsPath)
	if err != nil {
		return nil, err
	}

	token, err := LoadToken(cfg.TokenPath)
	if err != nil {
		return nil, err
	}

	ts := &savingTokenSource{
		src:  config.TokenSource(ctx, token),
		path: cfg.TokenPath,
		last: token.AccessToken,
	}
	client := oauth2.NewClient(ctx, oauth2.ReuseTokenSource(token, ts))

	srv, err := gmail.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to create gmail service: %w", err)
	}
	return NewGmailRepoWithService(srv, cfg.User), nil
}

func NewGmailRepoWithService(srv *gmail.Service, user string) *Repo {
	if user == "" {
		user = "me"
	}
	return &Repo{
		srv:  srv,
		user: user,
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "gmail-api",
			MaxRequests: 3,
			Interval:    60 * time.Second,
			Timeout:     30 * time.Second,
			IsSuccessful: func(err error) bool {
				var nce *nonCircuitError
				return err == nil || errors.As(err, &nce)
			},
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				slog.Warn("circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
			},
		}),
	}
}

func (r *Repo) Search(ctx context.Context, expr string, max int) ([]string, error) {
	var (
		ids       []string
		pageToken string
	)
	for {
		call := r.srv.Users.Messages.List(r.user).Q(expr).Context(ctx)
		size := maxPageSize
		if max > 0 {
			size = min(max-len(ids), maxPageSize)
		}
		call = call.MaxResults(int64(size))
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		var resp *gmail.ListMessagesResponse
		err := r.execute("list", func() error {
			var err error
			resp, err = call.Do()
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("unable to search messages: %w", err)
		}

		for _, m := range resp.Messages {
			ids = append(ids, m.Id)
			if max > 0 && len(ids) >= max {
				return ids, nil
			}
		}
		if resp.NextPageToken == "" {
			return ids, nil
		}
		pageToken = resp.NextPageToken
	}
}

func (r *Repo) Get(ctx context.Context, id string) (*mail.Message, error) {
	var msg *gmail.Message
	err := r.execute("get", func() error {
		var err error
		msg, err = r.srv.Users.Messages.Get(r.user, id).Format("full").Context(ctx).Do()
		return err
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", mail.ErrNotFound, id)
		}
		return nil, fmt.Errorf("unable to retrieve message: %w", err)
	}
	return convertMessage(msg), nil
}

func (r *Repo) MarkSpam(ctx context.Context, id string) error {
	return r.modify(ctx, id, []string{mail.LabelSpam}, []string{mail.LabelInbox})
}

func (r *Repo) MoveToTrash(ctx context.Context, id string) error {
	err := r.execute("trash", func() error {
		_, err := r.srv.Users.Messages.Trash(r.user, id).Context(ctx).Do()
		return err
	})
	if err != nil {
		return fmt.Errorf("unable to trash message: %w", err)
	}
	return nil
}

func (r *Repo) ModifyLabels(ctx context.Context, id string, add, remove []string) error {
	return r.modify(ctx, id, add, remove)
}

func (r *Repo) modify(ctx context.Context, id string, add, remove []string) error {
	req := &gmail.ModifyMessageRequest{
		AddLabelIds:    add,
		RemoveLabelIds: remove,
	}
	err := r.execute("modify", func() error {
		_, err := r.srv.Users.Messages.Modify(r.user, id, req).Context(ctx).Do()
		return err
	})
	if err != nil {
		return fmt.Errorf("unable to modify labels: %w", err)
	}
	return nil
}

// Watch registers a Pub/Sub push subscription for inbox changes and
// returns the current history id.
func (r *Repo) Watch(ctx context.Context, topic string) (uint64, error) {
	req := &gmail.WatchRequest{
		TopicName:         topic,
		LabelIds:          []string{mail.LabelInbox},
		LabelFilterAction: "include",
	}

	var resp *gmail.WatchResponse
	err := r.execute("watch", func() error {
		var err error
		resp, err = r.srv.Users.Watch(r.user, req).Context(ctx).Do()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("unable to watch mailbox: %w", err)
	}
	return resp.HistoryId, nil
}

// execute runs fn through the circuit breaker. Client errors (4xx other
// than 429) are returned without counting as breaker failures.
func (r *Repo) execute(operation string, fn func() error) error {
	_, err := r.cb.Execute(func() (interface{}, error) {
		err := fn()
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && apiErr.Code >= 400 && apiErr.Code < 500 && apiErr.Code != http.StatusTooManyRequests {
			return nil, &nonCircuitError{err: err}
		}
		return nil, err
	})

	var nce *nonCircuitError
	if errors.As(err, &nce) {
		return nce.err
	}
	if err != nil {
		slog.Error("gmail call failed", "operation", operation, "state", r.cb.State().String(), "error", err)
	}
	return err
}

// nonCircuitError carries errors that should not trip the breaker.
type nonCircuitError struct {
	err error
}

func (e *nonCircuitError) Error() string {
	return e.err.Error()
}

func isNotFound(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound
}
