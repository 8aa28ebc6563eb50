package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "channel-secret"

type replier struct {
	mu    sync.Mutex
	calls [][2]string
	err   error
}

func (r *replier) Reply(_ context.Context, userID, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, [2]string{userID, text})
	return r.err
}

type deliverer struct {
	calls int
	err   error
}

func (d *deliverer) Deliver(context.Context) (int, error) {
	d.calls++
	return 1, d.err
}

func sign(body string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(body))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

const textEvent = `{
  "destination": "U0",
  "events": [{
    "type": "message",
    "mode": "active",
    "timestamp": 1700000000000,
    "webhookEventId": "01H0",
    "deliveryContext": {"isRedelivery": false},
    "replyToken": "token",
    "source": {"type": "user", "userId": "U123"},
    "message": {"type": "text", "id": "1", "quoteToken": "q", "text": "  todo  "}
  }]
}`

func TestLineWebhookDispatchesText(t *testing.T) {
	r := &replier{}
	h := NewLineWebhookHandler(r, secret)

	req := httptest.NewRequest(http.MethodPost, "/webhook/line", strings.NewReader(textEvent))
	req.Header.Set("X-Line-Signature", sign(textEvent))
	rec := httptest.NewRecorder()
	h.HandleWebhook(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, r.calls, 1)
	assert.Equal(t, [2]string{"U123", "todo"}, r.calls[0])
}

func TestLineWebhookReplyErrorStillAcks(t *testing.T) {
	r := &replier{err: errors.New("push failed")}
	h := NewLineWebhookHandler(r, secret)

	req := httptest.NewRequest(http.MethodPost, "/webhook/line", strings.NewReader(textEvent))
	req.Header.Set("X-Line-Signature", sign(textEvent))
	rec := httptest.NewRecorder()
	h.HandleWebhook(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, r.calls, 1)
}

func TestLineWebhookRejectsBadSignature(t *testing.T) {
	r := &replier{}
	h := NewLineWebhookHandler(r, secret)

	req := httptest.NewRequest(http.MethodPost, "/webhook/line", strings.NewReader(textEvent))
	req.Header.Set("X-Line-Signature", base64.StdEncoding.EncodeToString([]byte("forged")))
	rec := httptest.NewRecorder()
	h.HandleWebhook(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, r.calls)
}

func TestLineWebhookMethods(t *testing.T) {
	h := NewLineWebhookHandler(&replier{}, secret)

	rec := httptest.NewRecorder()
	h.HandleWebhook(rec, httptest.NewRequest(http.MethodGet, "/webhook/line", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.HandleWebhook(rec, httptest.NewRequest(http.MethodPut, "/webhook/line", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestPubSubDelivers(t *testing.T) {
	d := &deliverer{}
	h := NewPubSubWebhookHandler(d)

	data := base64.StdEncoding.EncodeToString([]byte(`{"emailAddress":"me@example.com","historyId":42}`))
	body := `{"message":{"data":"` + data + `","messageId":"m1","publishTime":"2024-01-01T00:00:00Z"},"subscription":"s"}`
	rec := httptest.NewRecorder()
	h.HandlePubSub(rec, httptest.NewRequest(http.MethodPost, "/webhook/pubsub", strings.NewReader(body)))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, d.calls)
}

func TestPubSubErrors(t *testing.T) {
	d := &deliverer{}
	h := NewPubSubWebhookHandler(d)

	rec := httptest.NewRecorder()
	h.HandlePubSub(rec, httptest.NewRequest(http.MethodPost, "/webhook/pubsub", strings.NewReader("{")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.HandlePubSub(rec, httptest.NewRequest(http.MethodGet, "/webhook/pubsub", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Zero(t, d.calls)

	d.err = errors.New("store down")
	rec = httptest.NewRecorder()
	h.HandlePubSub(rec, httptest.NewRequest(http.MethodPost, "/webhook/pubsub", strings.NewReader(`{"message":{}}`)))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
