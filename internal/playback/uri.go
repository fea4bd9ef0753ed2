package playback

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/desertthunder/spotiplay/internal/services"
)

const (
	uriScheme  = "spotify:"
	webURLRoot = "https://open.spotify.com/"
)

var (
	ErrInvalidURI        = errors.New(`invalid URI or unsupported web URL type. Should be "spotify:track:...", "spotify:playlist:...", "spotify:album:...", or the corresponding open.spotify.com URL`)
	ErrUnsupportedWebURL = errors.New("unsupported Spotify web URL. Please use a link for a track, playlist, or album")
)

var webURLPattern = regexp.MustCompile(`^https://open\.spotify\.com/(track|playlist|album)/([a-zA-Z0-9]+)`)

// Resource is the kind of item a URI points at.
type Resource int

const (
	Track Resource = iota
	Playlist
	Album
)

func (r Resource) String() string {
	switch r {
	case Track:
		return "track"
	case Playlist:
		return "playlist"
	case Album:
		return "album"
	default:
		return "unknown"
	}
}

// Target is a classified playback target in native URI form.
type Target struct {
	Resource Resource
	ID       string
	URI      string
}

// IsContext reports whether the target plays as a context (an ordered collection) rather than a track list.
func (t Target) IsContext() bool {
	return t.Resource == Playlist || t.Resource == Album
}

// Request builds the play request for the target on deviceID.
func (t Target) Request(deviceID string) services.PlayRequest {
	req := services.PlayRequest{DeviceID: deviceID}
	if t.IsContext() {
		req.ContextURI = t.URI
	} else {
		req.URIs = []string{t.URI}
	}
	return req
}

// Normalize converts an open.spotify.com link to native "spotify:<type>:<id>" form.
// Anything that isn't a web URL is returned trimmed but otherwise untouched.
func Normalize(raw string) (string, error) {
	uri := strings.TrimSpace(raw)
	if !strings.HasPrefix(uri, webURLRoot) {
		return uri, nil
	}

	m := webURLPattern.FindStringSubmatch(uri)
	if m == nil {
		return "", ErrUnsupportedWebURL
	}
	return uriScheme + m[1] + ":" + m[2], nil
}

// Classify resolves raw into a [Target]. It makes no network calls.
//
// Web URLs are normalised first; every other form fails with [ErrInvalidURI] or [ErrUnsupportedWebURL].
func Classify(raw string) (Target, error) {
	uri, err := Normalize(raw)
	if err != nil {
		return Target{}, err
	}

	for _, r := range []Resource{Track, Playlist, Album} {
		prefix := uriScheme + r.String() + ":"
		if id, ok := strings.CutPrefix(uri, prefix); ok {
			if id == "" || strings.ContainsAny(id, " \t:/") {
				return Target{}, fmt.Errorf("%w: %q", ErrInvalidURI, raw)
			}
			return Target{Resource: r, ID: id, URI: uri}, nil
		}
	}
	return Target{}, fmt.Errorf("%w: %q", ErrInvalidURI, raw)
}
