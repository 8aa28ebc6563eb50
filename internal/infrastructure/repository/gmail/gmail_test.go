package gmail

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/huavcjj/wavemail/internal/domain/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

type recorded struct {
	method string
	path   string
	query  string
	body   string
}

func newTestRepo(t *testing.T, handler http.HandlerFunc) (*Repo, func() []recorded) {
	t.Helper()

	var (
		mu   sync.Mutex
		reqs []recorded
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		reqs = append(reqs, recorded{method: r.Method, path: r.URL.Path, query: r.URL.RawQuery, body: string(b)})
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	svc, err := gmail.NewService(context.Background(),
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)

	return NewGmailRepoWithService(svc, ""), func() []recorded {
		mu.Lock()
		defer mu.Unlock()
		return append([]recorded(nil), reqs...)
	}
}

func TestSearchPages(t *testing.T) {
	repo, requests := newTestRepo(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("pageToken") == "" {
			_, _ = w.Write([]byte(`{"messages":[{"id":"a"},{"id":"b"}],"nextPageToken":"p2"}`))
			return
		}
		_, _ = w.Write([]byte(`{"messages":[{"id":"c"}]}`))
	})

	ids, err := repo.Search(context.Background(), "is:unread", 0)

	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, ids)
	reqs := requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, "/gmail/v1/users/me/messages", reqs[0].path)
	assert.Contains(t, reqs[0].query, "q=is%3Aunread")
}

func TestSearchStopsAtMax(t *testing.T) {
	repo, requests := newTestRepo(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"messages":[{"id":"a"},{"id":"b"},{"id":"c"}],"nextPageToken":"more"}`))
	})

	ids, err := repo.Search(context.Background(), "is:important", 2)

	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)
	assert.Len(t, requests(), 1)
	assert.Contains(t, requests()[0].query, "maxResults=2")
}

func TestGet(t *testing.T) {
	repo, _ := newTestRepo(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"id": "m1",
			"threadId": "t1",
			"labelIds": ["INBOX", "UNREAD"],
			"payload": {
				"mimeType": "multipart/alternative",
				"headers": [
					{"name": "From", "value": "Boss <boss@corp.com>"},
					{"name": "Subject", "value": "Status"},
					{"name": "Date", "value": "Mon, 3 Mar 2025 09:00:00 +0000"}
				],
				"parts": [
					{
						"mimeType": "text/plain",
						"headers": [{"name": "Content-Type", "value": "text/plain; charset=\"ISO-8859-1\""}],
						"body": {"data": "aGVsbG8="}
					},
					{"mimeType": "application/pdf", "filename": "a.pdf", "body": {"attachmentId": "x"}}
				]
			}
		}`))
	})

	msg, err := repo.Get(context.Background(), "m1")

	require.NoError(t, err)
	assert.Equal(t, "m1", msg.ID)
	assert.Equal(t, "t1", msg.ThreadID)
	assert.Equal(t, "Status", msg.Header("subject"))
	require.NotNil(t, msg.Payload)
	require.Len(t, msg.Payload.Parts, 2)
	assert.Equal(t, "text/plain", msg.Payload.Parts[0].MimeType)
	assert.Equal(t, "ISO-8859-1", msg.Payload.Parts[0].Charset)
	assert.Equal(t, "aGVsbG8=", msg.Payload.Parts[0].Data)
	assert.Equal(t, "a.pdf", msg.Payload.Parts[1].Filename)
}

func TestGetNotFound(t *testing.T) {
	repo, _ := newTestRepo(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"code":404,"message":"Requested entity was not found."}}`))
	})

	_, err := repo.Get(context.Background(), "gone")

	assert.ErrorIs(t, err, mail.ErrNotFound)
}

func TestMutations(t *testing.T) {
	repo, requests := newTestRepo(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"m1"}`))
	})
	ctx := context.Background()

	require.NoError(t, repo.MarkSpam(ctx, "m1"))
	require.NoError(t, repo.MoveToTrash(ctx, "m2"))
	require.NoError(t, repo.ModifyLabels(ctx, "m3", []string{"CATEGORY_UPDATES"}, []string{"INBOX"}))

	reqs := requests()
	require.Len(t, reqs, 3)

	assert.Equal(t, "/gmail/v1/users/me/messages/m1/modify", reqs[0].path)
	assert.JSONEq(t, `{"addLabelIds":["SPAM"],"removeLabelIds":["INBOX"]}`, reqs[0].body)

	assert.Equal(t, http.MethodPost, reqs[1].method)
	assert.Equal(t, "/gmail/v1/users/me/messages/m2/trash", reqs[1].path)

	assert.Equal(t, "/gmail/v1/users/me/messages/m3/modify", reqs[2].path)
	assert.JSONEq(t, `{"addLabelIds":["CATEGORY_UPDATES"],"removeLabelIds":["INBOX"]}`, reqs[2].body)
}

func TestClientErrorsDoNotTripBreaker(t *testing.T) {
	repo, _ := newTestRepo(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":400,"message":"Invalid query"}}`))
	})

	for range 10 {
		_, err := repo.Search(context.Background(), "bad", 1)
		require.Error(t, err)
	}
	assert.Equal(t, "closed", repo.cb.State().String())
}
