package auth_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/desertthunder/spotiplay/internal/auth"
	"github.com/desertthunder/spotiplay/internal/shared"
	tu "github.com/desertthunder/spotiplay/internal/testing"
)

const (
	testClientID     = "client-id"
	testClientSecret = "client-secret"
	testRedirectURI  = "http://127.0.0.1:3000/callback"
	testState        = "state-1"
)

// tokenServer fakes the accounts service token endpoint.
// While hold is set, requests are recorded and then wait for it to close or for the client to give up.
type tokenServer struct {
	t        *testing.T
	mu       sync.Mutex
	status   int
	body     string
	hold     chan struct{}
	requests []url.Values
}

func (s *tokenServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id, secret, ok := r.BasicAuth()
	if !ok || id != testClientID || secret != testClientSecret {
		s.t.Errorf("expected basic auth with client credentials, got %q/%q (ok=%v)", id, secret, ok)
	}
	if err := r.ParseForm(); err != nil {
		s.t.Errorf("failed to parse token request: %v", err)
	}

	s.mu.Lock()
	s.requests = append(s.requests, r.PostForm)
	hold := s.hold
	s.mu.Unlock()

	if hold != nil {
		select {
		case <-hold:
		case <-r.Context().Done():
			return
		}
	}

	s.mu.Lock()
	status, body := s.status, s.body
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	io.WriteString(w, body)
}

func (s *tokenServer) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

func (s *tokenServer) last() url.Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[len(s.requests)-1]
}

// stall makes requests wait until the returned release func is called.
func (s *tokenServer) stall(t *testing.T) (release func()) {
	hold := make(chan struct{})
	s.mu.Lock()
	s.hold = hold
	s.mu.Unlock()

	var once sync.Once
	release = func() { once.Do(func() { close(hold) }) }
	t.Cleanup(release)
	return release
}

// resume lets new requests through immediately; requests already waiting stay held.
func (s *tokenServer) resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hold = nil
}

func (s *tokenServer) respond(status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status, s.body = status, body
}

type harness struct {
	authorizer *auth.Authorizer
	clock      *tu.FakeClock
	tokens     *tokenServer
	opens      atomic.Int32

	mu      sync.Mutex
	changes []auth.TokenSet
}

func (h *harness) notified() []auth.TokenSet {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]auth.TokenSet(nil), h.changes...)
}

func newHarness(t *testing.T, seed auth.TokenSet) *harness {
	t.Helper()

	h := &harness{clock: tu.NewFakeClock(), tokens: &tokenServer{t: t}}
	server := httptest.NewServer(h.tokens)
	t.Cleanup(server.Close)

	config := auth.NewConfig(testClientID, testClientSecret, testRedirectURI)
	config.Endpoint.TokenURL = server.URL + "/api/token"

	h.authorizer = auth.New(auth.Options{
		Config:       config,
		AccessToken:  seed.AccessToken,
		RefreshToken: seed.RefreshToken,
		OpenURL: func(string) error {
			h.opens.Add(1)
			return nil
		},
		OnTokenChange: func(ts auth.TokenSet) {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.changes = append(h.changes, ts)
		},
		Clock:    h.clock,
		Logger:   shared.NewLogger(io.Discard),
		NewState: func() string { return testState },
	})
	t.Cleanup(h.authorizer.Dispose)
	return h
}

// authenticate starts Authenticate in the background and waits for the browser to open.
func (h *harness) authenticate(t *testing.T) <-chan error {
	t.Helper()
	result := make(chan error, 1)
	go func() { result <- h.authorizer.Authenticate(context.Background()) }()
	tu.Eventually(t, h.authorizer.Pending, "authorization pending")
	return result
}

func await(t *testing.T, result <-chan error) error {
	t.Helper()
	select {
	case err := <-result:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("Authenticate did not return")
		return nil
	}
}

func TestAuthorizer(t *testing.T) {
	t.Run("AuthURL", func(t *testing.T) {
		h := newHarness(t, auth.TokenSet{})

		u, err := url.Parse(h.authorizer.AuthURL("abc"))
		if err != nil {
			t.Fatalf("invalid auth URL: %v", err)
		}
		if u.Host != "accounts.spotify.com" || u.Path != "/authorize" {
			t.Errorf("unexpected authorization endpoint %s", u)
		}

		q := u.Query()
		expected := map[string]string{
			"client_id":     testClientID,
			"response_type": "code",
			"redirect_uri":  testRedirectURI,
			"scope":         "user-read-playback-state user-modify-playback-state",
			"state":         "abc",
		}
		for key, want := range expected {
			if got := q.Get(key); got != want {
				t.Errorf("expected %s=%q, got %q", key, want, got)
			}
		}
	})

	t.Run("Authenticate", func(t *testing.T) {
		t.Run("successful exchange", func(t *testing.T) {
			h := newHarness(t, auth.TokenSet{})
			h.tokens.respond(http.StatusOK, `{"access_token":"A1","refresh_token":"R1","token_type":"Bearer","expires_in":3600}`)

			result := h.authenticate(t)
			h.authorizer.HandleAuthCallback(context.Background(), "code-1", testState)

			if err := await(t, result); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			form := h.tokens.last()
			if form.Get("grant_type") != "authorization_code" {
				t.Errorf("expected authorization_code grant, got %q", form.Get("grant_type"))
			}
			if form.Get("code") != "code-1" {
				t.Errorf("expected code-1, got %q", form.Get("code"))
			}
			if form.Get("redirect_uri") != testRedirectURI {
				t.Errorf("expected redirect_uri %q, got %q", testRedirectURI, form.Get("redirect_uri"))
			}

			tokens := h.authorizer.Tokens()
			if tokens.AccessToken != "A1" || tokens.RefreshToken != "R1" {
				t.Errorf("unexpected tokens %+v", tokens)
			}
			if h.authorizer.Pending() {
				t.Error("expected pending slot to be cleared")
			}
			if n := len(h.clock.LiveWith(auth.DefaultRefreshInterval)); n != 1 {
				t.Errorf("expected one refresh timer, got %d", n)
			}
			if n := len(h.clock.LiveWith(auth.DefaultTimeout)); n != 0 {
				t.Errorf("expected timeout to be cancelled, got %d live", n)
			}

			changes := h.notified()
			if len(changes) != 1 || changes[0].AccessToken != "A1" {
				t.Errorf("expected one token change notification, got %+v", changes)
			}
		})

		t.Run("times out", func(t *testing.T) {
			h := newHarness(t, auth.TokenSet{AccessToken: "stale"})

			result := h.authenticate(t)
			if n := h.clock.Fire(auth.DefaultTimeout); n != 1 {
				t.Fatalf("expected one timeout timer, fired %d", n)
			}

			if err := await(t, result); !errors.Is(err, auth.ErrAuthTimeout) {
				t.Errorf("expected ErrAuthTimeout, got %v", err)
			}
			if tok := h.authorizer.AccessToken(); tok != "" {
				t.Errorf("expected tokens cleared, got %q", tok)
			}
			if h.tokens.count() != 0 {
				t.Error("expected no token request")
			}

			changes := h.notified()
			if len(changes) != 1 || changes[0] != (auth.TokenSet{}) {
				t.Errorf("expected a cleared token notification, got %+v", changes)
			}
		})

		t.Run("late callback is dropped", func(t *testing.T) {
			h := newHarness(t, auth.TokenSet{})
			h.tokens.respond(http.StatusOK, `{"access_token":"A1","token_type":"Bearer"}`)

			result := h.authenticate(t)
			h.clock.Fire(auth.DefaultTimeout)
			await(t, result)

			h.authorizer.HandleAuthCallback(context.Background(), "code-1", testState)

			if h.tokens.count() != 0 {
				t.Error("expected late callback not to exchange")
			}
			if h.authorizer.AccessToken() != "" {
				t.Error("expected no token after late callback")
			}
		})

		t.Run("state mismatch is dropped", func(t *testing.T) {
			h := newHarness(t, auth.TokenSet{})

			result := h.authenticate(t)
			h.authorizer.HandleAuthCallback(context.Background(), "code-1", "forged")

			if h.tokens.count() != 0 {
				t.Error("expected no exchange for foreign state")
			}
			if !h.authorizer.Pending() {
				t.Error("expected authorization to remain pending")
			}

			h.clock.Fire(auth.DefaultTimeout)
			if err := await(t, result); !errors.Is(err, auth.ErrAuthTimeout) {
				t.Errorf("expected ErrAuthTimeout, got %v", err)
			}
		})

		t.Run("callback without pending authorization", func(t *testing.T) {
			h := newHarness(t, auth.TokenSet{})
			h.authorizer.HandleAuthCallback(context.Background(), "code-1", testState)

			if h.tokens.count() != 0 {
				t.Error("expected no exchange")
			}
		})

		t.Run("failed exchange", func(t *testing.T) {
			h := newHarness(t, auth.TokenSet{})
			h.tokens.respond(http.StatusBadRequest, `{"error":"invalid_grant","error_description":"Invalid authorization code"}`)

			result := h.authenticate(t)
			h.authorizer.HandleAuthCallback(context.Background(), "bad-code", testState)

			if err := await(t, result); err != nil {
				t.Errorf("expected failed exchange to resolve without error, got %v", err)
			}
			if h.authorizer.AccessToken() != "" {
				t.Error("expected no token after failed exchange")
			}
			if h.authorizer.Pending() {
				t.Error("expected pending slot to be cleared")
			}
			if n := len(h.clock.LiveWith(auth.DefaultRefreshInterval)); n != 0 {
				t.Errorf("expected no refresh timer, got %d", n)
			}
		})

		t.Run("concurrent callers share one flow", func(t *testing.T) {
			h := newHarness(t, auth.TokenSet{})

			first := h.authenticate(t)

			results := make(chan error, 2)
			var joined sync.WaitGroup
			for range 2 {
				joined.Add(1)
				go func() {
					joined.Done()
					results <- h.authorizer.Authenticate(context.Background())
				}()
			}
			joined.Wait()
			time.Sleep(50 * time.Millisecond)

			if n := h.opens.Load(); n != 1 {
				t.Fatalf("expected the browser to open once, got %d", n)
			}

			h.clock.Fire(auth.DefaultTimeout)

			if err := await(t, first); !errors.Is(err, auth.ErrAuthTimeout) {
				t.Errorf("expected ErrAuthTimeout for first caller, got %v", err)
			}
			for range 2 {
				if err := await(t, results); !errors.Is(err, auth.ErrAuthTimeout) {
					t.Errorf("expected ErrAuthTimeout for joined caller, got %v", err)
				}
			}
		})

		t.Run("stalled exchange is bounded by the timeout", func(t *testing.T) {
			h := newHarness(t, auth.TokenSet{})
			h.tokens.respond(http.StatusOK, `{"access_token":"A1","refresh_token":"R1","token_type":"Bearer"}`)
			h.tokens.stall(t)

			result := h.authenticate(t)
			go h.authorizer.HandleAuthCallback(context.Background(), "code-1", testState)
			tu.Eventually(t, func() bool { return h.tokens.count() == 1 }, "exchange request sent")

			joined := make(chan error, 1)
			go func() { joined <- h.authorizer.Authenticate(context.Background()) }()

			if n := h.clock.Fire(auth.DefaultTimeout); n != 1 {
				t.Fatalf("expected the exchange deadline to fire, fired %d", n)
			}

			if err := await(t, result); err != nil {
				t.Errorf("expected abandoned exchange to resolve without error, got %v", err)
			}
			if h.authorizer.AccessToken() != "" {
				t.Error("expected no token after abandoned exchange")
			}

			// The joined caller either shared the abandoned flow or started a fresh one.
			select {
			case err := <-joined:
				if err != nil {
					t.Errorf("expected joined caller to resolve without error, got %v", err)
				}
			case <-time.After(100 * time.Millisecond):
				tu.Eventually(t, h.authorizer.Pending, "fresh authorization pending")
				if n := h.opens.Load(); n != 2 {
					t.Errorf("expected a fresh authorization to open the browser, got %d opens", n)
				}
				h.clock.Fire(auth.DefaultTimeout)
				if err := await(t, joined); !errors.Is(err, auth.ErrAuthTimeout) {
					t.Errorf("expected ErrAuthTimeout, got %v", err)
				}
			}
		})

		t.Run("dispose cancels a stalled exchange", func(t *testing.T) {
			h := newHarness(t, auth.TokenSet{})
			h.tokens.stall(t)

			result := h.authenticate(t)
			done := make(chan struct{})
			go func() {
				h.authorizer.HandleAuthCallback(context.Background(), "code-1", testState)
				close(done)
			}()
			tu.Eventually(t, func() bool { return h.tokens.count() == 1 }, "exchange request sent")

			h.authorizer.Dispose()

			if err := await(t, result); !errors.Is(err, auth.ErrAuthorizerClosed) {
				t.Errorf("expected ErrAuthorizerClosed, got %v", err)
			}
			select {
			case <-done:
			case <-time.After(2 * time.Second):
				t.Fatal("exchange still running after dispose")
			}
		})

		t.Run("context cancellation", func(t *testing.T) {
			h := newHarness(t, auth.TokenSet{})

			ctx, cancel := context.WithCancel(context.Background())
			result := make(chan error, 1)
			go func() { result <- h.authorizer.Authenticate(ctx) }()
			tu.Eventually(t, h.authorizer.Pending, "authorization pending")

			cancel()
			if err := await(t, result); !errors.Is(err, context.Canceled) {
				t.Errorf("expected context.Canceled, got %v", err)
			}
			if !h.authorizer.Pending() {
				t.Error("expected authorization to stay pending for other callers")
			}
		})

		t.Run("browser failure still waits for callback", func(t *testing.T) {
			h := newHarness(t, auth.TokenSet{})
			h.tokens.respond(http.StatusOK, `{"access_token":"A1","refresh_token":"R1","token_type":"Bearer"}`)

			config := auth.NewConfig(testClientID, testClientSecret, testRedirectURI)
			server := httptest.NewServer(h.tokens)
			t.Cleanup(server.Close)
			config.Endpoint.TokenURL = server.URL

			a := auth.New(auth.Options{
				Config:   config,
				OpenURL:  func(string) error { return errors.New("no browser") },
				Clock:    h.clock,
				Logger:   shared.NewLogger(io.Discard),
				NewState: func() string { return testState },
			})
			t.Cleanup(a.Dispose)

			result := make(chan error, 1)
			go func() { result <- a.Authenticate(context.Background()) }()
			tu.Eventually(t, a.Pending, "authorization pending")

			a.HandleAuthCallback(context.Background(), "code-1", testState)
			if err := await(t, result); err != nil {
				t.Errorf("expected no error, got %v", err)
			}
			if a.AccessToken() != "A1" {
				t.Errorf("expected A1, got %q", a.AccessToken())
			}
		})
	})

	t.Run("RefreshAccessToken", func(t *testing.T) {
		t.Run("without refresh token", func(t *testing.T) {
			h := newHarness(t, auth.TokenSet{AccessToken: "A0"})

			h.authorizer.RefreshAccessToken(context.Background())

			if h.tokens.count() != 0 {
				t.Error("expected no token request")
			}
			if h.authorizer.AccessToken() != "A0" {
				t.Error("expected access token to be unchanged")
			}
			if len(h.clock.Live()) != 0 {
				t.Error("expected no timers")
			}
			if len(h.notified()) != 0 {
				t.Error("expected no notification")
			}
		})

		t.Run("retains refresh token when omitted", func(t *testing.T) {
			h := newHarness(t, auth.TokenSet{AccessToken: "A0", RefreshToken: "R0"})
			h.tokens.respond(http.StatusOK, `{"access_token":"A2","token_type":"Bearer","expires_in":3600}`)

			h.authorizer.RefreshAccessToken(context.Background())

			form := h.tokens.last()
			if form.Get("grant_type") != "refresh_token" || form.Get("refresh_token") != "R0" {
				t.Errorf("unexpected refresh request %v", form)
			}
			if form.Get("client_id") != testClientID {
				t.Errorf("expected client_id %q in refresh body, got %q", testClientID, form.Get("client_id"))
			}

			tokens := h.authorizer.Tokens()
			if tokens.AccessToken != "A2" || tokens.RefreshToken != "R0" {
				t.Errorf("unexpected tokens %+v", tokens)
			}
			changes := h.notified()
			if len(changes) != 1 || changes[0].AccessToken != "A2" {
				t.Errorf("expected refresh notification, got %+v", changes)
			}
		})

		t.Run("replaces rotated refresh token", func(t *testing.T) {
			h := newHarness(t, auth.TokenSet{AccessToken: "A0", RefreshToken: "R0"})
			h.tokens.respond(http.StatusOK, `{"access_token":"A2","refresh_token":"R2","token_type":"Bearer"}`)

			h.authorizer.RefreshAccessToken(context.Background())

			if got := h.authorizer.Tokens().RefreshToken; got != "R2" {
				t.Errorf("expected rotated refresh token R2, got %q", got)
			}
		})

		t.Run("keeps a single live timer", func(t *testing.T) {
			h := newHarness(t, auth.TokenSet{AccessToken: "A0", RefreshToken: "R0"})
			h.tokens.respond(http.StatusOK, `{"access_token":"A2","token_type":"Bearer"}`)

			if n := len(h.clock.LiveWith(auth.DefaultRefreshInterval)); n != 1 {
				t.Fatalf("expected seeded refresh timer, got %d", n)
			}

			for range 3 {
				h.authorizer.RefreshAccessToken(context.Background())
			}

			if n := len(h.clock.LiveWith(auth.DefaultRefreshInterval)); n != 1 {
				t.Errorf("expected exactly one live refresh timer, got %d", n)
			}
		})

		t.Run("timer triggers refresh", func(t *testing.T) {
			h := newHarness(t, auth.TokenSet{AccessToken: "A0", RefreshToken: "R0"})
			h.tokens.respond(http.StatusOK, `{"access_token":"A2","token_type":"Bearer"}`)

			if n := h.clock.Advance(auth.DefaultRefreshInterval); n != 1 {
				t.Fatalf("expected refresh timer to fire, fired %d", n)
			}

			if h.tokens.count() != 1 {
				t.Errorf("expected one refresh request, got %d", h.tokens.count())
			}
			if h.authorizer.AccessToken() != "A2" {
				t.Errorf("expected A2, got %q", h.authorizer.AccessToken())
			}
			if n := len(h.clock.LiveWith(auth.DefaultRefreshInterval)); n != 1 {
				t.Errorf("expected timer to be re-armed, got %d", n)
			}
		})

		t.Run("result is dropped when the session was cleared meanwhile", func(t *testing.T) {
			h := newHarness(t, auth.TokenSet{AccessToken: "A0", RefreshToken: "R0"})
			h.tokens.respond(http.StatusOK, `{"access_token":"A2","token_type":"Bearer"}`)
			release := h.tokens.stall(t)

			refreshed := make(chan struct{})
			go func() {
				h.authorizer.RefreshAccessToken(context.Background())
				close(refreshed)
			}()
			tu.Eventually(t, func() bool { return h.tokens.count() == 1 }, "refresh request sent")

			result := h.authenticate(t)
			h.clock.Fire(auth.DefaultTimeout)
			if err := await(t, result); !errors.Is(err, auth.ErrAuthTimeout) {
				t.Fatalf("expected ErrAuthTimeout, got %v", err)
			}

			release()
			select {
			case <-refreshed:
			case <-time.After(2 * time.Second):
				t.Fatal("refresh did not return")
			}

			if tokens := h.authorizer.Tokens(); tokens != (auth.TokenSet{}) {
				t.Errorf("expected cleared session to stay cleared, got %+v", tokens)
			}
			if n := len(h.clock.LiveWith(auth.DefaultRefreshInterval)); n != 0 {
				t.Errorf("expected no refresh timer, got %d", n)
			}
			changes := h.notified()
			if len(changes) != 1 || changes[0] != (auth.TokenSet{}) {
				t.Errorf("expected only the cleared notification, got %+v", changes)
			}
		})

		t.Run("result is dropped when a new authorization completed meanwhile", func(t *testing.T) {
			h := newHarness(t, auth.TokenSet{AccessToken: "A0", RefreshToken: "R0"})
			h.tokens.respond(http.StatusOK, `{"access_token":"A2","token_type":"Bearer"}`)
			release := h.tokens.stall(t)

			refreshed := make(chan struct{})
			go func() {
				h.authorizer.RefreshAccessToken(context.Background())
				close(refreshed)
			}()
			tu.Eventually(t, func() bool { return h.tokens.count() == 1 }, "refresh request sent")

			// The code exchange is answered first; the stalled refresh only after it.
			h.tokens.resume()
			h.tokens.respond(http.StatusOK, `{"access_token":"A3","refresh_token":"R3","token_type":"Bearer"}`)
			result := h.authenticate(t)
			h.authorizer.HandleAuthCallback(context.Background(), "code-1", testState)
			if err := await(t, result); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			h.tokens.respond(http.StatusOK, `{"access_token":"A2","token_type":"Bearer"}`)
			release()
			select {
			case <-refreshed:
			case <-time.After(2 * time.Second):
				t.Fatal("refresh did not return")
			}

			if tokens := h.authorizer.Tokens(); tokens.AccessToken != "A3" || tokens.RefreshToken != "R3" {
				t.Errorf("expected exchanged tokens to win, got %+v", tokens)
			}
		})

		t.Run("failure stops background refresh", func(t *testing.T) {
			h := newHarness(t, auth.TokenSet{AccessToken: "A0", RefreshToken: "R0"})
			h.tokens.respond(http.StatusBadRequest, `{"error":"invalid_grant"}`)

			h.clock.Fire(auth.DefaultRefreshInterval)

			tokens := h.authorizer.Tokens()
			if tokens.AccessToken != "A0" || tokens.RefreshToken != "R0" {
				t.Errorf("expected tokens unchanged, got %+v", tokens)
			}
			if n := len(h.clock.LiveWith(auth.DefaultRefreshInterval)); n != 0 {
				t.Errorf("expected no re-armed timer, got %d", n)
			}
			if len(h.notified()) != 0 {
				t.Error("expected no notification on failure")
			}
		})
	})

	t.Run("Dispose", func(t *testing.T) {
		t.Run("releases waiters", func(t *testing.T) {
			h := newHarness(t, auth.TokenSet{AccessToken: "A0", RefreshToken: "R0"})

			result := h.authenticate(t)
			h.authorizer.Dispose()

			if err := await(t, result); !errors.Is(err, auth.ErrAuthorizerClosed) {
				t.Errorf("expected ErrAuthorizerClosed, got %v", err)
			}
			if len(h.clock.Live()) != 0 {
				t.Errorf("expected all timers stopped, got %d live", len(h.clock.Live()))
			}
			if h.authorizer.Tokens() != (auth.TokenSet{}) {
				t.Error("expected tokens cleared")
			}
			if len(h.notified()) != 0 {
				t.Error("expected dispose not to notify")
			}
		})

		t.Run("is idempotent", func(t *testing.T) {
			h := newHarness(t, auth.TokenSet{})
			h.authorizer.Dispose()
			h.authorizer.Dispose()

			if err := h.authorizer.Authenticate(context.Background()); !errors.Is(err, auth.ErrAuthorizerClosed) {
				t.Errorf("expected ErrAuthorizerClosed, got %v", err)
			}
			if h.opens.Load() != 0 {
				t.Error("expected no browser after dispose")
			}
		})

		t.Run("ignores refresh", func(t *testing.T) {
			h := newHarness(t, auth.TokenSet{AccessToken: "A0", RefreshToken: "R0"})
			h.authorizer.Dispose()
			h.authorizer.RefreshAccessToken(context.Background())

			if h.tokens.count() != 0 {
				t.Error("expected no refresh request after dispose")
			}
		})
	})
}
