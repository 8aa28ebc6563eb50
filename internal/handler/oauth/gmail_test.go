package oauth

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"testing"

	gmailrepo "github.com/huavcjj/wavemail/internal/infrastructure/repository/gmail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func newHandler(t *testing.T, status int) (*GmailOAuthHandler, string) {
	t.Helper()
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "the-code", r.PostForm.Get("code"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status == http.StatusOK {
			w.Write([]byte(`{"access_token":"access","token_type":"Bearer","refresh_token":"refresh","expires_in":3600}`))
			return
		}
		w.Write([]byte(`{"error":"invalid_grant"}`))
	}))
	t.Cleanup(tokenSrv.Close)

	config := &oauth2.Config{
		ClientID:     "client",
		ClientSecret: "secret",
		RedirectURL:  "http://localhost/oauth/gmail/callback",
		Endpoint: oauth2.Endpoint{
			AuthURL:  "https://accounts.example.com/auth",
			TokenURL: tokenSrv.URL,
		},
	}
	path := filepath.Join(t.TempDir(), "token.json")
	return NewGmailOAuthHandler(config, path, "state-1"), path
}

func callback(h *GmailOAuthHandler, query url.Values) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.HandleCallback(rec, httptest.NewRequest(http.MethodGet, "/oauth/gmail/callback?"+query.Encode(), nil))
	return rec
}

func TestCallbackSavesToken(t *testing.T) {
	h, path := newHandler(t, http.StatusOK)

	rec := callback(h, url.Values{"code": {"the-code"}, "state": {"state-1"}})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Authorization complete")
	require.NoError(t, <-h.Done())

	token, err := gmailrepo.LoadToken(path)
	require.NoError(t, err)
	assert.Equal(t, "access", token.AccessToken)
	assert.Equal(t, "refresh", token.RefreshToken)
}

type flushRecorder struct {
	*httptest.ResponseRecorder
	onFlush func()
}

func (f *flushRecorder) Flush() {
	f.onFlush()
	f.ResponseRecorder.Flush()
}

func TestCallbackRespondsBeforeSignalingDone(t *testing.T) {
	h, _ := newHandler(t, http.StatusOK)

	var flushedBody string
	pendingAtFlush := -1
	rec := &flushRecorder{ResponseRecorder: httptest.NewRecorder()}
	rec.onFlush = func() {
		flushedBody = rec.Body.String()
		pendingAtFlush = len(h.Done())
	}
	query := url.Values{"code": {"the-code"}, "state": {"state-1"}}
	h.HandleCallback(rec, httptest.NewRequest(http.MethodGet, "/oauth/gmail/callback?"+query.Encode(), nil))

	assert.Contains(t, flushedBody, "Authorization complete")
	assert.Zero(t, pendingAtFlush)
	require.NoError(t, <-h.Done())
}

func TestCallbackExchangeFailure(t *testing.T) {
	h, _ := newHandler(t, http.StatusBadRequest)

	rec := callback(h, url.Values{"code": {"the-code"}, "state": {"state-1"}})

	assert.Contains(t, rec.Body.String(), "Authorization failed")
	assert.Error(t, <-h.Done())
}

func TestCallbackRejectsBadRequests(t *testing.T) {
	h, _ := newHandler(t, http.StatusOK)

	assert.Equal(t, http.StatusBadRequest, callback(h, url.Values{"state": {"state-1"}}).Code)
	assert.Equal(t, http.StatusBadRequest, callback(h, url.Values{"code": {"the-code"}, "state": {"other"}}).Code)
	assert.Empty(t, h.Done())
}

func TestAuthURL(t *testing.T) {
	h, _ := newHandler(t, http.StatusOK)

	u, err := url.Parse(h.AuthURL())
	require.NoError(t, err)
	assert.Equal(t, "state-1", u.Query().Get("state"))
	assert.Equal(t, "offline", u.Query().Get("access_type"))
}
