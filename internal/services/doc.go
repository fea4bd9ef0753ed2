// Package services defines the [Player] interface for remote playback and implements it for Spotify.
//
// # Player Interface
//
// The play buttons need four remote capabilities. Two of them (code exchange and token refresh) live in
// internal/auth; the other two are here:
//   - [Player.Devices] : list Spotify Connect devices, also used as a cheap token validity probe
//   - [Player.Play] : start playback of tracks or a playlist/album context on a device
//
// # Spotify Implementation
//
// [SpotifyService] wraps github.com/zmb3/spotify/v2. The bearer token is injected through
// [SpotifyService.SetAccessToken], which rebuilds the client around an [oauth2.StaticTokenSource].
// Refreshing is not the client's job; the authorizer owns the token lifecycle and pushes new tokens in.
//
// Outbound requests share a [rate.Limiter] so a burst of button clicks can't trip Spotify's rate limiting.
//
// # Error Handling
//
// Error responses from the API are converted to [APIError], keeping the status and the human readable
// message from the response body. [ErrorMessage] extracts that message for display.
// Transport failures are wrapped with [shared.ErrAPIRequest]; calls without a token fail with
// [shared.ErrNotAuthenticated] before any request is made.
package services
