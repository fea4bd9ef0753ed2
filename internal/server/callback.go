package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/charmbracelet/log"
)

// CallbackPath is where the authorization server redirects the browser.
const CallbackPath = "/callback"

// AuthCallbackReceiver takes the authorization code delivered by the redirect.
// Implemented by auth.Authorizer.
type AuthCallbackReceiver interface {
	HandleAuthCallback(ctx context.Context, code, state string)
}

// CallbackHandler is the inbound half of the authorization-code flow.
// Implements the [Handler] interface for registration with a Router.
type CallbackHandler struct {
	receiver AuthCallbackReceiver
	logger   *log.Logger
}

// NewCallbackHandler creates a handler forwarding codes to receiver.
func NewCallbackHandler(receiver AuthCallbackReceiver, logger *log.Logger) *CallbackHandler {
	return &CallbackHandler{receiver: receiver, logger: logger}
}

// Routes returns the HTTP routes this handler serves.
func (h *CallbackHandler) Routes() []string {
	return []string{CallbackPath}
}

// ServeHTTP forwards code and state to the receiver, which validates the state and runs the exchange.
//
// Provider errors (?error=access_denied) are answered with 400 and never reach the receiver.
func (h *CallbackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	if errParam := query.Get("error"); errParam != "" {
		h.logger.Warn("authorization denied", "error", errParam, "description", query.Get("error_description"))
		http.Error(w, fmt.Sprintf("Authorization failed: %s", errParam), http.StatusBadRequest)
		return
	}

	code := query.Get("code")
	if code == "" {
		h.logger.Warn("callback without authorization code")
		http.Error(w, "Missing authorization code", http.StatusBadRequest)
		return
	}

	// The exchange outlives the browser connection.
	h.receiver.HandleAuthCallback(context.WithoutCancel(r.Context()), code, query.Get("state"))

	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, `
<!DOCTYPE html>
<html>
<head>
    <title>Spotiplay Authorization</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh;
               margin: 0; background: #f5f5f5; }
        .container { text-align: center; background: white; padding: 2rem;
                     border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        h1 { color: #1DB954; margin: 0 0 1rem 0; }
        p { color: #666; margin: 0; }
    </style>
</head>
<body>
    <div class="container">
        <h1>✓ Authorization Received</h1>
        <p>You can close this window and return to your notes.</p>
    </div>
</body>
</html>
`)
}
