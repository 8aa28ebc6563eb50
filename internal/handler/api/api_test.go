package api

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/huavcjj/wavemail/internal/service/importance"
	"github.com/huavcjj/wavemail/internal/service/pipeline"
	"github.com/huavcjj/wavemail/internal/service/sorter"
	"github.com/huavcjj/wavemail/internal/service/spam"
	"github.com/huavcjj/wavemail/internal/service/summarizer"
	"github.com/huavcjj/wavemail/internal/service/tasks"
	"github.com/huavcjj/wavemail/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func oracle() *testutil.Oracle {
	return &testutil.Oracle{Respond: func(system, user string) (string, error) {
		switch {
		case strings.Contains(system, "summarizes emails"):
			return "Report due Friday", nil
		case strings.Contains(system, "extract actionable tasks"):
			return "Quarterly report\n- submit report by Friday", nil
		case strings.Contains(system, "files emails"):
			return "updates", nil
		default:
			return "No", nil
		}
	}}
}

func newServer(t *testing.T, store *testutil.Store) *httptest.Server {
	t.Helper()
	o := oracle()
	classifier := importance.NewClassifier(o)
	p := pipeline.NewService(
		store,
		classifier,
		summarizer.NewSummarizer(o, true),
		tasks.NewExtractor(spam.NewFilter(), classifier, o, true),
		sorter.NewSorter(store, classifier, o),
		pipeline.DefaultOptions(),
	)

	r := chi.NewRouter()
	NewHandler(p, 10).Register(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func scenarioStore() *testutil.Store {
	return testutil.NewStore(
		testutil.NewMessage("m1", "Boss <boss@corp.com>", "URGENT: quarterly report", "Please submit report by Friday."),
		testutil.NewMessage("m2", "friend@example.com", "Lunch menu", "tacos today"),
		testutil.NewMessage("m3", "newsletter@z.com", "Weekly Newsletter", "... unsubscribe ..."),
	)
}

func get(t *testing.T, url string, v any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	if v != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	}
	return resp.StatusCode
}

func TestHealth(t *testing.T) {
	srv := newServer(t, scenarioStore())

	var body map[string]string
	status := get(t, srv.URL+"/health", &body)

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, map[string]string{"status": "healthy"}, body)
}

func TestNotifications(t *testing.T) {
	srv := newServer(t, scenarioStore())

	var items []map[string]string
	status := get(t, srv.URL+"/notifications", &items)

	assert.Equal(t, http.StatusOK, status)
	require.Len(t, items, 1)
	assert.Equal(t, "URGENT: quarterly report", items[0]["subject"])
	assert.Equal(t, "Boss <boss@corp.com>", items[0]["from"])
	assert.Equal(t, "Report due Friday", items[0]["summary"])
	assert.NotContains(t, items[0], "MessageID")
}

func TestTodoList(t *testing.T) {
	srv := newServer(t, scenarioStore())

	var items []map[string]string
	status := get(t, srv.URL+"/todolist?n=5", &items)

	assert.Equal(t, http.StatusOK, status)
	require.Len(t, items, 1)
	assert.Equal(t, "Quarterly report submit report by Friday", items[0]["todo"])
}

func TestAutomatedSort(t *testing.T) {
	store := scenarioStore()
	store.Results["is:unread"] = []string{"m1", "m2", "m3"}
	srv := newServer(t, store)

	resp, err := http.Post(srv.URL+"/automatedsort", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body struct {
		Status    string         `json:"status"`
		Processed int            `json:"processed"`
		Labeled   map[string]int `json:"labeled"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "sorted", body.Status)
	assert.Equal(t, 3, body.Processed)
	assert.Equal(t, 2, body.Labeled["updates"])
	assert.Len(t, store.Mutations(), 2)
}

func TestEmails(t *testing.T) {
	store := scenarioStore()
	srv := newServer(t, store)

	var emails []map[string]string
	assert.Equal(t, http.StatusOK, get(t, srv.URL+"/emails?n=2", &emails))
	assert.Len(t, emails, 2)

	assert.Equal(t, http.StatusOK, get(t, srv.URL+"/emails?sender=boss@corp.com", &emails))
	assert.Equal(t, http.StatusOK, get(t, srv.URL+"/emails?q=is:unread", &emails))

	assert.Equal(t, []string{"in:inbox", "from:boss@corp.com", "is:unread"}, store.Queries())
}

func TestCountValidation(t *testing.T) {
	store := scenarioStore()
	srv := newServer(t, store)

	for _, n := range []string{"0", "-1", "ten"} {
		var body errorResponse
		status := get(t, srv.URL+"/notifications?n="+n, &body)
		assert.Equal(t, http.StatusBadRequest, status, n)
		assert.Contains(t, body.Error, "n must be a positive integer")
	}

	var body errorResponse
	assert.Equal(t, http.StatusBadRequest, get(t, srv.URL+"/emails?q=a&sender=b", &body))

	assert.Equal(t, http.StatusOK, get(t, srv.URL+"/emails?n=500", nil))
	assert.Equal(t, []string{"in:inbox"}, store.Queries())
}

func TestFetchErrorIsBadGateway(t *testing.T) {
	store := scenarioStore()
	store.SearchErr = errors.New("unreachable")
	srv := newServer(t, store)

	for path, op := range map[string]string{
		"/notifications": "notifications",
		"/todolist":      "todo list",
		"/automatedsort": "automated sort",
		"/emails":        "fetch",
	} {
		var body errorResponse
		status := get(t, srv.URL+path, &body)
		assert.Equal(t, http.StatusBadGateway, status, path)
		assert.Equal(t, "unable to complete "+op, body.Error)
	}
}
