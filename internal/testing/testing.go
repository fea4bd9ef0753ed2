// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/spotiplay/internal/auth"
	"github.com/desertthunder/spotiplay/internal/services"
	"github.com/desertthunder/spotiplay/internal/shared"
)

// FakeClock is a manually advanced [auth.Clock].
//
// Timers only fire through [FakeClock.Fire] or [FakeClock.Advance].
type FakeClock struct {
	mu     sync.Mutex
	now    time.Duration
	timers []*FakeTimer
}

// FakeTimer is the [auth.Timer] handed out by [FakeClock].
type FakeTimer struct {
	clock    *FakeClock
	Duration time.Duration
	deadline time.Duration
	f        func()
	fired    bool
	stopped  bool
}

func NewFakeClock() *FakeClock {
	return &FakeClock{}
}

func (c *FakeClock) AfterFunc(d time.Duration, f func()) auth.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := &FakeTimer{clock: c, Duration: d, deadline: c.now + d, f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *FakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()

	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	return true
}

// Live returns the timers that have neither fired nor been stopped, ordered by deadline.
func (c *FakeClock) Live() []*FakeTimer {
	c.mu.Lock()
	defer c.mu.Unlock()

	live := []*FakeTimer{}
	for _, t := range c.timers {
		if !t.fired && !t.stopped {
			live = append(live, t)
		}
	}
	sort.SliceStable(live, func(i, j int) bool { return live[i].deadline < live[j].deadline })
	return live
}

// LiveWith returns the live timers scheduled with duration d.
func (c *FakeClock) LiveWith(d time.Duration) []*FakeTimer {
	matching := []*FakeTimer{}
	for _, t := range c.Live() {
		if t.Duration == d {
			matching = append(matching, t)
		}
	}
	return matching
}

// Fire runs every live timer scheduled with duration d and reports how many ran.
// Callbacks run without the clock lock held, so they may schedule new timers.
func (c *FakeClock) Fire(d time.Duration) int {
	due := c.claim(func(t *FakeTimer) bool { return t.Duration == d })
	for _, t := range due {
		t.f()
	}
	return len(due)
}

// Advance moves the clock forward by d and runs every timer whose deadline has passed.
func (c *FakeClock) Advance(d time.Duration) int {
	c.mu.Lock()
	c.now += d
	now := c.now
	c.mu.Unlock()

	due := c.claim(func(t *FakeTimer) bool { return t.deadline <= now })
	for _, t := range due {
		t.f()
	}
	return len(due)
}

func (c *FakeClock) claim(match func(*FakeTimer) bool) []*FakeTimer {
	c.mu.Lock()
	defer c.mu.Unlock()

	due := []*FakeTimer{}
	for _, t := range c.timers {
		if !t.fired && !t.stopped && match(t) {
			t.fired = true
			due = append(due, t)
		}
	}
	return due
}

// FakePlayer is a test double for [services.Player].
//
// When ValidToken is set, calls made with any other token fail with an [services.APIError] status 401.
type FakePlayer struct {
	mu sync.Mutex

	ValidToken string
	DeviceList []services.Device
	DevicesErr error
	PlayErr    error

	token        string
	DeviceCalls  int
	PlayRequests []services.PlayRequest
	Tokens       []string
}

func (p *FakePlayer) SetAccessToken(token string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.token = token
	p.Tokens = append(p.Tokens, token)
}

func (p *FakePlayer) authorized() error {
	if p.token == "" {
		return shared.ErrNotAuthenticated
	}
	if p.ValidToken != "" && p.token != p.ValidToken {
		return &services.APIError{Status: http.StatusUnauthorized, Message: "Invalid access token"}
	}
	return nil
}

func (p *FakePlayer) Devices(ctx context.Context) ([]services.Device, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.DeviceCalls++
	if err := p.authorized(); err != nil {
		return nil, err
	}
	if p.DevicesErr != nil {
		return nil, p.DevicesErr
	}
	return append([]services.Device(nil), p.DeviceList...), nil
}

func (p *FakePlayer) Play(ctx context.Context, req services.PlayRequest) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.PlayRequests = append(p.PlayRequests, req)
	if err := p.authorized(); err != nil {
		return err
	}
	return p.PlayErr
}

// Calls returns the number of device listings and play requests made so far.
func (p *FakePlayer) Calls() (devices, plays int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.DeviceCalls, len(p.PlayRequests)
}

// LastPlay returns the most recent play request.
func (p *FakePlayer) LastPlay() (services.PlayRequest, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.PlayRequests) == 0 {
		return services.PlayRequest{}, false
	}
	return p.PlayRequests[len(p.PlayRequests)-1], true
}

// FakeSettingsStore keeps playback settings in memory.
type FakeSettingsStore struct {
	mu       sync.Mutex
	Current  shared.PlaybackSettings
	SaveErr  error
	Saved    []string
	Recorded []string
}

func (s *FakeSettingsStore) Settings() shared.PlaybackSettings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Current
}

func (s *FakeSettingsStore) SaveDevice(deviceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SaveErr != nil {
		return s.SaveErr
	}
	s.Current.DeviceID = deviceID
	s.Saved = append(s.Saved, deviceID)
	return nil
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

// Eventually polls cond until it holds or the deadline passes.
func Eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met: %s", msg)
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustWriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write file %s: %v", path, err)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
