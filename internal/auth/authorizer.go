package auth

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotiplay/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"

	// DefaultTimeout bounds how long [Authorizer.Authenticate] waits for the browser redirect.
	DefaultTimeout = 30 * time.Second
	// DefaultRefreshInterval is kept under the one hour access-token lifetime.
	DefaultRefreshInterval = 3500 * time.Second
)

// Scopes are the Spotify scopes needed to read devices and start playback.
var Scopes = []string{"user-read-playback-state", "user-modify-playback-state"}

var (
	ErrAuthTimeout      = errors.New("authentication timed out")
	ErrAuthorizerClosed = errors.New("authorizer disposed")
)

// NewConfig builds the OAuth2 client configuration for the Spotify accounts service.
//
// Client credentials travel in an HTTP Basic header on every token request.
func NewConfig(clientID, clientSecret, redirectURI string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURI,
		Scopes:       Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   spotifyAuthURL,
			TokenURL:  spotifyTokenURL,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}
}

// Options configures an [Authorizer]. Only Config is required.
type Options struct {
	Config *oauth2.Config

	// AccessToken and RefreshToken seed the session from persisted settings.
	AccessToken  string
	RefreshToken string

	// OpenURL sends the user to the authorization page. Defaults to [shared.OpenBrowser].
	OpenURL func(url string) error
	// OnTokenChange receives the current tokens every time they change, including when they are cleared.
	OnTokenChange func(TokenSet)

	Clock           Clock
	Logger          *log.Logger
	Timeout         time.Duration
	RefreshInterval time.Duration
	NewState        func() string
}

// Authorizer runs the OAuth2 authorization-code flow and keeps the access token fresh.
//
// A single authorization can be in flight at a time. Concurrent [Authorizer.Authenticate] calls join it
// and all receive its outcome.
type Authorizer struct {
	config          *oauth2.Config
	openURL         func(string) error
	onTokenChange   func(TokenSet)
	clock           Clock
	logger          *log.Logger
	timeout         time.Duration
	refreshInterval time.Duration
	newState        func() string

	ctx    context.Context
	cancel context.CancelFunc

	notifyMu sync.Mutex

	mu      sync.Mutex
	session session
	pending *pendingAuth
	closed  bool
}

// pendingAuth joins an outbound authorization request with its inbound redirect.
type pendingAuth struct {
	state      string
	timeout    Timer
	exchanging bool
	done       chan struct{}
	err        error
}

// settle records the outcome and wakes every waiter. Callers hold the authorizer lock
// and have already removed p from the pending slot, so it runs once per flow.
func (p *pendingAuth) settle(err error) {
	p.err = err
	close(p.done)
}

// New creates an [Authorizer]. When a refresh token is seeded the refresh timer is armed immediately.
func New(opts Options) *Authorizer {
	if opts.OpenURL == nil {
		opts.OpenURL = shared.OpenBrowser
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.RefreshInterval <= 0 {
		opts.RefreshInterval = DefaultRefreshInterval
	}
	if opts.NewState == nil {
		opts.NewState = shared.GenerateState
	}

	ctx, cancel := context.WithCancel(context.Background())
	a := &Authorizer{
		config:          opts.Config,
		openURL:         opts.OpenURL,
		onTokenChange:   opts.OnTokenChange,
		clock:           opts.Clock,
		logger:          shared.WithLogger(opts.Logger, "component", "auth"),
		timeout:         opts.Timeout,
		refreshInterval: opts.RefreshInterval,
		newState:        opts.NewState,
		ctx:             ctx,
		cancel:          cancel,
		session: session{tokens: TokenSet{
			AccessToken:  opts.AccessToken,
			RefreshToken: opts.RefreshToken,
		}},
	}

	a.mu.Lock()
	a.armRefreshLocked()
	a.mu.Unlock()

	return a
}

// AuthURL returns the authorization page URL for the given state value.
func (a *Authorizer) AuthURL(state string) string {
	return a.config.AuthCodeURL(state)
}

// Authenticate opens the authorization page and waits for [Authorizer.HandleAuthCallback] to deliver a code.
//
// It returns [ErrAuthTimeout] when no redirect arrives in time; the session is cleared in that case.
// A failed code exchange is logged and returns nil with no token held.
func (a *Authorizer) Authenticate(ctx context.Context) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return ErrAuthorizerClosed
	}

	p := a.pending
	started := p == nil
	if started {
		p = &pendingAuth{state: a.newState(), done: make(chan struct{})}
		p.timeout = a.clock.AfterFunc(a.timeout, func() { a.expire(p) })
		a.pending = p
	}
	a.mu.Unlock()

	if started {
		authURL := a.AuthURL(p.state)
		a.logger.Info("opening browser for authorization", "timeout", a.timeout)
		if err := a.openURL(authURL); err != nil {
			a.logger.Warn("failed to open browser, visit the URL manually", "url", authURL, "error", err)
		}
	} else {
		a.logger.Debug("joining in-flight authorization")
	}

	select {
	case <-p.done:
		return p.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// expire fires when the authorization window closes without a redirect.
func (a *Authorizer) expire(p *pendingAuth) {
	a.mu.Lock()
	if a.pending != p || p.exchanging {
		a.mu.Unlock()
		return
	}
	a.pending = nil
	a.session = a.session.cleared()
	p.settle(ErrAuthTimeout)
	a.mu.Unlock()

	a.logger.Warn("authorization timed out", "timeout", a.timeout)
	a.notify()
}

// HandleAuthCallback receives the authorization code from the redirect and exchanges it for tokens.
//
// Callbacks that arrive with no authorization pending, after the timeout, or with a foreign state are dropped.
func (a *Authorizer) HandleAuthCallback(ctx context.Context, code, state string) {
	a.mu.Lock()
	p := a.pending
	switch {
	case p == nil:
		a.mu.Unlock()
		a.logger.Warn("no authorization pending, dropping callback")
		return
	case p.exchanging:
		a.mu.Unlock()
		a.logger.Warn("authorization code already received, dropping callback")
		return
	case state != p.state:
		a.mu.Unlock()
		a.logger.Warn("state mismatch, dropping callback")
		return
	}

	if !p.timeout.Stop() {
		a.mu.Unlock()
		a.logger.Warn("authorization already timed out, dropping callback")
		return
	}
	p.exchanging = true
	a.mu.Unlock()

	tok, err := a.exchange(ctx, code)

	a.mu.Lock()
	if a.pending != p {
		a.mu.Unlock()
		a.logger.Debug("authorizer disposed during code exchange")
		return
	}
	a.pending = nil

	if err != nil {
		p.settle(nil)
		a.mu.Unlock()
		a.logger.Error("failed to exchange authorization code", "error", err)
		return
	}

	a.session = a.session.exchanged(tok)
	a.armRefreshLocked()
	p.settle(nil)
	a.mu.Unlock()

	a.logger.Info("authorization complete")
	a.notify()
}

// RefreshAccessToken trades the refresh token for a new access token.
//
// Without a refresh token it only logs. On failure the current tokens are kept and the timer is not re-armed,
// so background refresh stops until the next successful authorization.
func (a *Authorizer) RefreshAccessToken(ctx context.Context) {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	refreshToken := a.session.tokens.RefreshToken
	gen := a.session.gen
	a.mu.Unlock()

	if refreshToken == "" {
		a.logger.Warn("no refresh token available, skipping refresh")
		return
	}

	tok, err := a.refreshConfig(refreshToken).Token(ctx)
	if err != nil {
		a.logger.Error("failed to refresh access token", "error", err)
		return
	}

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	if a.session.gen != gen {
		a.mu.Unlock()
		a.logger.Debug("session changed during refresh, dropping result")
		return
	}
	a.session = a.session.refreshed(tok)
	a.armRefreshLocked()
	a.mu.Unlock()

	a.logger.Debug("access token refreshed")
	a.notify()
}

// exchange trades code for tokens. The request is bounded by the authorization timeout on the
// authorizer's clock and is cancelled by [Authorizer.Dispose].
func (a *Authorizer) exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stop := context.AfterFunc(a.ctx, cancel)
	defer stop()

	deadline := a.clock.AfterFunc(a.timeout, func() {
		a.logger.Warn("token endpoint did not answer in time", "timeout", a.timeout)
		cancel()
	})
	defer deadline.Stop()

	return a.config.Exchange(ctx, code)
}

// refreshConfig describes a refresh_token grant. The body carries refresh_token and client_id;
// the client credentials travel as configured on the endpoint.
func (a *Authorizer) refreshConfig(refreshToken string) *clientcredentials.Config {
	return &clientcredentials.Config{
		ClientID:     a.config.ClientID,
		ClientSecret: a.config.ClientSecret,
		TokenURL:     a.config.Endpoint.TokenURL,
		AuthStyle:    a.config.Endpoint.AuthStyle,
		EndpointParams: url.Values{
			"grant_type":    {"refresh_token"},
			"refresh_token": {refreshToken},
			"client_id":     {a.config.ClientID},
		},
	}
}

// armRefreshLocked replaces the refresh timer. Without a refresh token no timer stays armed.
func (a *Authorizer) armRefreshLocked() {
	if !a.session.canRefresh() {
		a.session = a.session.rearmed(nil)
		return
	}
	a.session = a.session.rearmed(a.clock.AfterFunc(a.refreshInterval, func() {
		a.RefreshAccessToken(a.ctx)
	}))
}

// Dispose stops all timers, forgets the tokens and releases waiters with [ErrAuthorizerClosed].
//
// The token-change callback is not invoked, so the persisted session outlives the process.
func (a *Authorizer) Dispose() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return
	}
	a.closed = true
	a.cancel()
	a.session = a.session.cleared()

	if p := a.pending; p != nil {
		a.pending = nil
		p.timeout.Stop()
		p.settle(ErrAuthorizerClosed)
	}
}

// Tokens returns the current token pair.
func (a *Authorizer) Tokens() TokenSet {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.session.tokens
}

// AccessToken returns the current access token, or "" when none is held.
func (a *Authorizer) AccessToken() string {
	return a.Tokens().AccessToken
}

// RefreshToken returns the current refresh token, or "" when none is held.
func (a *Authorizer) RefreshToken() string {
	return a.Tokens().RefreshToken
}

// Pending reports whether an authorization is waiting for its redirect.
func (a *Authorizer) Pending() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pending != nil
}

// notify reports the latest tokens. Serialised so the last call always carries the newest state.
func (a *Authorizer) notify() {
	if a.onTokenChange == nil {
		return
	}

	a.notifyMu.Lock()
	defer a.notifyMu.Unlock()
	a.onTokenChange(a.Tokens())
}
