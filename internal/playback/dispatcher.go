package playback

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotiplay/internal/services"
	"github.com/desertthunder/spotiplay/internal/shared"
)

const (
	msgNoToken      = "No access token. Please authenticate."
	msgNoDevices    = "No devices available for playback."
	msgInvalidURI   = `Invalid URI or unsupported web URL type. Should be "spotify:track:...", "spotify:playlist:...", "spotify:album:...", or the corresponding open.spotify.com URL.`
	msgUnsupported  = "Unsupported Spotify web URL. Please use a link for a track, playlist, or album."
	msgUnknownError = "Unknown error"
)

var ErrNoDevice = errors.New("no devices available for playback")

// Kind tags the stage a dispatch stopped at.
type Kind int

const (
	KindOK Kind = iota
	KindNotAuthenticated
	KindNoDevice
	KindInvalidURI
	KindPlaybackFailed
)

func (k Kind) String() string {
	switch k {
	case KindOK:
		return "ok"
	case KindNotAuthenticated:
		return "not_authenticated"
	case KindNoDevice:
		return "no_device"
	case KindInvalidURI:
		return "invalid_uri"
	case KindPlaybackFailed:
		return "playback_failed"
	default:
		return "unknown"
	}
}

// Result is the outcome of one dispatch.
type Result struct {
	URI      string
	Target   Target
	DeviceID string
	Kind     Kind
	Message  string
}

// OK reports whether playback started.
func (r Result) OK() bool {
	return r.Kind == KindOK
}

// Err converts a failed result into an error wrapping the stage's sentinel.
func (r Result) Err() error {
	var sentinel error
	switch r.Kind {
	case KindOK:
		return nil
	case KindNotAuthenticated:
		sentinel = shared.ErrNotAuthenticated
	case KindNoDevice:
		sentinel = ErrNoDevice
	case KindInvalidURI:
		sentinel = ErrInvalidURI
	default:
		sentinel = shared.ErrPlaybackFailed
	}
	return fmt.Errorf("%w: %s", sentinel, r.Message)
}

// Authenticator supplies the access token and runs the interactive login.
type Authenticator interface {
	AccessToken() string
	Authenticate(ctx context.Context) error
}

// SettingsStore is the durable home of the selected device.
type SettingsStore interface {
	Settings() shared.PlaybackSettings
	SaveDevice(deviceID string) error
}

// Recorder receives every dispatch result.
type Recorder interface {
	Record(ctx context.Context, res Result) error
}

// Dispatcher turns a play request into token check, device selection, URI classification and dispatch.
//
// Stages run in order and stop at the first failure. Nothing is retried.
type Dispatcher struct {
	auth     Authenticator
	player   services.Player
	settings SettingsStore
	recorder Recorder
	logger   *log.Logger
}

// DispatcherOpts holds the collaborators of a [Dispatcher]. Recorder and Logger are optional.
type DispatcherOpts struct {
	Auth     Authenticator
	Player   services.Player
	Settings SettingsStore
	Recorder Recorder
	Logger   *log.Logger
}

func NewDispatcher(opts DispatcherOpts) *Dispatcher {
	logger := opts.Logger
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Dispatcher{
		auth:     opts.Auth,
		player:   opts.Player,
		settings: opts.Settings,
		recorder: opts.Recorder,
		logger:   shared.WithLogger(logger, "component", "playback"),
	}
}

// Play dispatches uri to the configured device, selecting one first if needed.
func (d *Dispatcher) Play(ctx context.Context, uri string) Result {
	res := d.play(ctx, uri)
	if res.OK() {
		d.logger.Info("playback started", "uri", res.Target.URI, "device", res.DeviceID)
	} else {
		d.logger.Error("playback failed", "uri", uri, "kind", res.Kind, "message", res.Message)
	}

	if d.recorder != nil {
		if err := d.recorder.Record(ctx, res); err != nil {
			d.logger.Warn("failed to record play", "error", err)
		}
	}
	return res
}

func (d *Dispatcher) play(ctx context.Context, uri string) Result {
	res := Result{URI: uri}
	d.logger.Debug("play requested", "uri", uri)

	if err := d.ensureAuthenticated(ctx); err != nil {
		res.Kind, res.Message = KindNotAuthenticated, msgNoToken
		return res
	}

	deviceID := d.settings.Settings().DeviceID
	if deviceID == "" {
		device, err := d.selectFirst(ctx)
		if err != nil {
			res.Kind = KindNoDevice
			res.Message = "Unable to select device: " + deviceMessage(err)
			return res
		}
		deviceID = device.ID
	}
	res.DeviceID = deviceID

	target, err := Classify(uri)
	if err != nil {
		res.Kind = KindInvalidURI
		res.Message = "Unable to play track: " + uriMessage(err)
		return res
	}
	res.Target = target

	if err := d.player.Play(ctx, target.Request(deviceID)); err != nil {
		msg := services.ErrorMessage(err)
		if msg == "" {
			msg = msgUnknownError
		}
		res.Kind = KindPlaybackFailed
		res.Message = "Unable to play track: Error playing track: " + msg
		return res
	}
	return res
}

// ensureAuthenticated probes the current token and logs in again when the probe fails.
func (d *Dispatcher) ensureAuthenticated(ctx context.Context) error {
	if d.tokenValid(ctx) {
		return nil
	}

	if err := d.auth.Authenticate(ctx); err != nil {
		d.logger.Warn("authentication did not complete", "error", err)
	}

	token := d.auth.AccessToken()
	if token == "" {
		return shared.ErrNotAuthenticated
	}
	d.player.SetAccessToken(token)
	return nil
}

// tokenValid lists devices as a behavioural probe. Any failure counts as an expired token.
func (d *Dispatcher) tokenValid(ctx context.Context) bool {
	token := d.auth.AccessToken()
	if token == "" {
		d.logger.Debug("no access token")
		return false
	}

	d.player.SetAccessToken(token)
	if _, err := d.player.Devices(ctx); err != nil {
		d.logger.Debug("token probe failed, treating as expired", "error", err)
		return false
	}
	return true
}

func (d *Dispatcher) selectFirst(ctx context.Context) (services.Device, error) {
	devices, err := d.player.Devices(ctx)
	if err != nil {
		return services.Device{}, err
	}
	if len(devices) == 0 {
		return services.Device{}, ErrNoDevice
	}
	return d.save(devices[0]), nil
}

func (d *Dispatcher) save(device services.Device) services.Device {
	if err := d.settings.SaveDevice(device.ID); err != nil {
		d.logger.Warn("failed to persist device", "device", device.ID, "error", err)
	}
	d.logger.Debug("selected device", "device", device.ID, "name", device.Name)
	return device
}

// Devices lists the available devices, logging in first if needed.
func (d *Dispatcher) Devices(ctx context.Context) ([]services.Device, error) {
	if err := d.ensureAuthenticated(ctx); err != nil {
		return nil, err
	}
	return d.player.Devices(ctx)
}

// SelectDevice replaces the persisted device. An empty id picks the first device the service lists;
// otherwise the id must be among the listed devices.
func (d *Dispatcher) SelectDevice(ctx context.Context, deviceID string) (services.Device, error) {
	devices, err := d.Devices(ctx)
	if err != nil {
		return services.Device{}, err
	}
	if len(devices) == 0 {
		return services.Device{}, ErrNoDevice
	}
	if deviceID == "" {
		return d.save(devices[0]), nil
	}

	for _, device := range devices {
		if device.ID == deviceID {
			return d.save(device), nil
		}
	}
	return services.Device{}, fmt.Errorf("%w: %s", shared.ErrDeviceNotFound, deviceID)
}

func deviceMessage(err error) string {
	if errors.Is(err, ErrNoDevice) {
		return msgNoDevices
	}
	if msg := services.ErrorMessage(err); msg != "" {
		return msg
	}
	return err.Error()
}

func uriMessage(err error) string {
	if errors.Is(err, ErrUnsupportedWebURL) {
		return msgUnsupported
	}
	return msgInvalidURI
}
