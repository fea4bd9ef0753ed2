package server

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/spotiplay/internal/shared"
)

type recordingReceiver struct {
	mu     sync.Mutex
	codes  []string
	states []string
}

func (r *recordingReceiver) HandleAuthCallback(ctx context.Context, code, state string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codes = append(r.codes, code)
	r.states = append(r.states, state)
}

func (r *recordingReceiver) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.codes)
}

func TestCallbackHandler(t *testing.T) {
	logger := shared.NewLogger(io.Discard)

	t.Run("forwards code and state", func(t *testing.T) {
		receiver := &recordingReceiver{}
		h := NewCallbackHandler(receiver, logger)

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?code=abc&state=xyz", nil))

		if rec.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", rec.Code)
		}
		if receiver.count() != 1 || receiver.codes[0] != "abc" || receiver.states[0] != "xyz" {
			t.Errorf("unexpected forwarded values %v %v", receiver.codes, receiver.states)
		}
		if !strings.Contains(rec.Body.String(), "Authorization Received") {
			t.Error("expected confirmation page")
		}
	})

	t.Run("provider error", func(t *testing.T) {
		receiver := &recordingReceiver{}
		h := NewCallbackHandler(receiver, logger)

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?error=access_denied&state=xyz", nil))

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "access_denied") {
			t.Errorf("expected provider error in body, got %q", rec.Body.String())
		}
		if receiver.count() != 0 {
			t.Error("expected receiver not to be called")
		}
	})

	t.Run("missing code", func(t *testing.T) {
		receiver := &recordingReceiver{}
		h := NewCallbackHandler(receiver, logger)

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?state=xyz", nil))

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
		if receiver.count() != 0 {
			t.Error("expected receiver not to be called")
		}
	})

	t.Run("routes", func(t *testing.T) {
		routes := NewCallbackHandler(&recordingReceiver{}, logger).Routes()
		if len(routes) != 1 || routes[0] != CallbackPath {
			t.Errorf("unexpected routes %v", routes)
		}
	})
}

func TestBasicRouter(t *testing.T) {
	t.Run("middleware order", func(t *testing.T) {
		var order []string
		mark := func(name string) Middleware {
			return func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					order = append(order, name)
					next.ServeHTTP(w, r)
				})
			}
		}

		router := NewBasicRouter()
		router.Use(mark("first"), mark("second"))
		router.Handle(http.MethodGet, "/ping", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			order = append(order, "handler")
		}))

		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ping", nil))

		if strings.Join(order, ",") != "first,second,handler" {
			t.Errorf("unexpected order %v", order)
		}
	})

	t.Run("method filtering", func(t *testing.T) {
		router := NewBasicRouter()
		router.Handle(http.MethodGet, "/ping", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/ping", nil))

		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", rec.Code)
		}
	})
}

func TestCallbackServer(t *testing.T) {
	receiver := &recordingReceiver{}
	srv := NewCallbackServer("127.0.0.1:0", receiver, shared.NewLogger(io.Discard))

	if err := srv.Start(); err != nil {
		t.Fatalf("failed to start: %v", err)
	}

	resp, err := http.Get("http://" + srv.Addr() + "/callback?code=c1&state=s1")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
	if receiver.count() != 1 {
		t.Errorf("expected one callback, got %d", receiver.count())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Errorf("expected clean shutdown, got %v", err)
	}
	if err := srv.Shutdown(ctx); err != nil {
		t.Errorf("expected second shutdown to be a no-op, got %v", err)
	}
}
