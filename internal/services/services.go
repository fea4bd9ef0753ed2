// package services defines the remote playback capabilities the player depends on
//
// Spotify Web API (devices, start playback)
package services

import (
	"context"
)

// Player defines the remote playback operations needed by the play buttons.
//
// Implementations must be safe for concurrent use; the bearer token is shared by every caller.
type Player interface {
	// SetAccessToken replaces the bearer token used by subsequent calls.
	SetAccessToken(token string)

	// Devices lists the playback devices available to the authenticated user, in service order.
	Devices(ctx context.Context) ([]Device, error)

	// Play starts playback of the request on its device.
	Play(ctx context.Context, req PlayRequest) error
}

// Device represents a Spotify Connect playback device.
type Device struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Type       string `json:"type"`
	Active     bool   `json:"is_active"`
	Restricted bool   `json:"is_restricted"`
}

// PlayRequest describes what to play and where.
//
// Exactly one of URIs (individual tracks) or ContextURI (playlist or album) is set.
type PlayRequest struct {
	DeviceID   string
	URIs       []string
	ContextURI string
}
