package ui

import (
	"context"
	"sync"

	"github.com/desertthunder/spotiplay/internal/playback"
)

// State is the display state of a [Button].
type State int

const (
	StateIdle State = iota
	StateLoading
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Dispatcher starts playback for a button. Implemented by [playback.Dispatcher].
type Dispatcher interface {
	Play(ctx context.Context, uri string) playback.Result
}

// Button is one play button. Each instance owns its state; buttons never share it.
type Button struct {
	label      string
	uri        string
	dispatcher Dispatcher

	mu      sync.Mutex
	loading bool
	err     string
	last    playback.Result
}

func NewButton(label, uri string, d Dispatcher) *Button {
	return &Button{label: label, uri: uri, dispatcher: d}
}

func (b *Button) Label() string { return b.label }
func (b *Button) URI() string   { return b.uri }

// Press moves the button to loading and clears any previous error.
// It reports false, changing nothing, when a click is already in flight.
func (b *Button) Press() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.loading {
		return false
	}
	b.loading = true
	b.err = ""
	return true
}

// Run dispatches the button's URI and records the outcome. Call it once per successful [Button.Press].
func (b *Button) Run(ctx context.Context) playback.Result {
	res := b.dispatcher.Play(ctx, b.uri)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.loading = false
	b.last = res
	if !res.OK() {
		b.err = res.Message
		if b.err == "" {
			b.err = res.Kind.String()
		}
	}
	return res
}

// Click presses and runs the button, reporting false when the click was dropped.
func (b *Button) Click(ctx context.Context) bool {
	if !b.Press() {
		return false
	}
	b.Run(ctx)
	return true
}

func (b *Button) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stateLocked()
}

func (b *Button) stateLocked() State {
	switch {
	case b.loading:
		return StateLoading
	case b.err != "":
		return StateError
	default:
		return StateIdle
	}
}

// Text is the button caption.
func (b *Button) Text() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.stateLocked() {
	case StateLoading:
		return "Loading..."
	case StateError:
		return "Error!"
	default:
		return "🎵 Play " + b.label
	}
}

// Err returns the detailed message of the last failed click, or "".
func (b *Button) Err() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}

// Last returns the result of the most recent completed click.
func (b *Button) Last() playback.Result {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.last
}
