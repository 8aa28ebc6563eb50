package oauth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	gmailrepo "github.com/huavcjj/wavemail/internal/infrastructure/repository/gmail"
	"golang.org/x/oauth2"
)

const (
	htmlError   = `<html><body><h1>❌ Authorization failed</h1></body></html>`
	htmlSuccess = `<html><body><h1>✅ Authorization complete</h1><p>You can close this window.</p></body></html>`
)

// GmailOAuthHandler receives the OAuth redirect, exchanges the code and
// writes the token file the Gmail store reads at startup.
type GmailOAuthHandler struct {
	config    *oauth2.Config
	tokenPath string
	state     string
	done      chan error
}

func NewGmailOAuthHandler(config *oauth2.Config, tokenPath, state string) *GmailOAuthHandler {
	return &GmailOAuthHandler{
		config:    config,
		tokenPath: tokenPath,
		state:     state,
		done:      make(chan error, 1),
	}
}

// AuthURL is the consent page the user must visit.
func (h *GmailOAuthHandler) AuthURL() string {
	return gmailrepo.GetAuthURL(h.config, h.state)
}

// Done receives the outcome of the first completed callback.
func (h *GmailOAuthHandler) Done() <-chan error {
	return h.done
}

func (h *GmailOAuthHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")

	if code == "" || state == "" {
		slog.Error("missing code or state", "code", code, "state", state)
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	if state != h.state {
		slog.Error("oauth state mismatch", "state", state)
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	err := h.complete(r.Context(), code)

	// Done fires only after the page is flushed; its reader closes the server.
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err != nil {
		slog.Error("failed to complete Gmail auth", "error", err)
		fmt.Fprint(w, htmlError)
	} else {
		slog.Info("gmail token saved", "path", h.tokenPath)
		fmt.Fprint(w, htmlSuccess)
	}
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}

	select {
	case h.done <- err:
	default:
	}
}

func (h *GmailOAuthHandler) complete(ctx context.Context, code string) error {
	token, err := gmailrepo.ExchangeCode(ctx, h.config, code)
	if err != nil {
		return err
	}
	return gmailrepo.SaveToken(h.tokenPath, token)
}
