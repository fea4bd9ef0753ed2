// Spotify Web API implementation of [Player]
//
// Requests go through github.com/zmb3/spotify/v2; see https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/desertthunder/spotiplay/internal/shared"
	"github.com/zmb3/spotify/v2"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	spotifyBaseURL = "https://api.spotify.com/v1/"

	defaultRateLimit = 5.0
	defaultBurst     = 2
)

// APIError is an error response returned by the Spotify Web API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("spotify API error: status %d: %s", e.Status, e.Message)
}

// ErrorMessage returns the message the Spotify API attached to err, or "" if there is none.
func ErrorMessage(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return ""
}

// SpotifyOption configures a [SpotifyService].
type SpotifyOption func(*SpotifyService)

// WithBaseURL points the service at an alternate API root. The URL must end with a slash.
func WithBaseURL(baseURL string) SpotifyOption {
	return func(s *SpotifyService) { s.baseURL = baseURL }
}

// WithHTTPClient sets the client whose transport carries API requests.
func WithHTTPClient(client *http.Client) SpotifyOption {
	return func(s *SpotifyService) { s.httpClient = client }
}

// WithRateLimit throttles outbound requests to rps requests per second.
func WithRateLimit(rps float64, burst int) SpotifyOption {
	return func(s *SpotifyService) { s.limiter = rate.NewLimiter(rate.Limit(rps), burst) }
}

// SpotifyService implements [Player] against the Spotify Web API.
type SpotifyService struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter

	mu     sync.RWMutex
	client *spotify.Client
}

// NewSpotifyService creates a service with no token set.
func NewSpotifyService(opts ...SpotifyOption) *SpotifyService {
	s := &SpotifyService{
		baseURL:    spotifyBaseURL,
		httpClient: http.DefaultClient,
		limiter:    rate.NewLimiter(rate.Limit(defaultRateLimit), defaultBurst),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the name of the service.
func (s *SpotifyService) Name() string {
	return "Spotify"
}

// SetAccessToken swaps the bearer token and rebuilds the underlying client.
func (s *SpotifyService) SetAccessToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if token == "" {
		s.client = nil
		return
	}

	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, s.httpClient)
	httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: token,
		TokenType:   "Bearer",
	}))
	httpClient.Transport = &limitedTransport{next: httpClient.Transport, limiter: s.limiter}

	s.client = spotify.New(httpClient, spotify.WithBaseURL(s.baseURL))
}

func (s *SpotifyService) current() (*spotify.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.client == nil {
		return nil, fmt.Errorf("%w: no access token set", shared.ErrNotAuthenticated)
	}
	return s.client, nil
}

// Devices lists the user's available playback devices.
func (s *SpotifyService) Devices(ctx context.Context) ([]Device, error) {
	client, err := s.current()
	if err != nil {
		return nil, err
	}

	found, err := client.PlayerDevices(ctx)
	if err != nil {
		return nil, wrapError(err)
	}

	devices := make([]Device, 0, len(found))
	for _, d := range found {
		devices = append(devices, Device{
			ID:         string(d.ID),
			Name:       d.Name,
			Type:       d.Type,
			Active:     d.Active,
			Restricted: d.Restricted,
		})
	}
	return devices, nil
}

// Play starts playback of req on its device.
func (s *SpotifyService) Play(ctx context.Context, req PlayRequest) error {
	client, err := s.current()
	if err != nil {
		return err
	}

	opts := &spotify.PlayOptions{}
	if req.DeviceID != "" {
		id := spotify.ID(req.DeviceID)
		opts.DeviceID = &id
	}
	if req.ContextURI != "" {
		uri := spotify.URI(req.ContextURI)
		opts.PlaybackContext = &uri
	}
	for _, u := range req.URIs {
		opts.URIs = append(opts.URIs, spotify.URI(u))
	}

	if err := client.PlayOpt(ctx, opts); err != nil {
		return wrapError(err)
	}
	return nil
}

// wrapError converts client library errors into [APIError] values carrying the service's message.
func wrapError(err error) error {
	var value spotify.Error
	if errors.As(err, &value) {
		return &APIError{Status: value.Status, Message: value.Message}
	}

	var ptr *spotify.Error
	if errors.As(err, &ptr) && ptr != nil {
		return &APIError{Status: ptr.Status, Message: ptr.Message}
	}

	return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
}

// limitedTransport waits on a shared [rate.Limiter] before each request.
type limitedTransport struct {
	next    http.RoundTripper
	limiter *rate.Limiter
}

func (t *limitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limiter.Wait(req.Context()); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}
	return t.next.RoundTrip(req)
}
