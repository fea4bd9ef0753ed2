// Package playback turns a play request from a note into Spotify playback.
//
// # Dispatch
//
// [Dispatcher.Play] runs five stages, stopping at the first failure:
//  1. Token check: with a token held, list devices as a probe; any failure means expired
//  2. Re-authentication through the [Authenticator] when the probe failed
//  3. Device selection: the persisted device, else the first one the service lists (saved for next time)
//  4. URI classification with [Classify]
//  5. The play request itself
//
// The returned [Result] carries a [Kind] naming the failed stage and a message meant for the user.
//
// # URIs
//
// Native URIs ("spotify:track:<id>", "spotify:playlist:<id>", "spotify:album:<id>") and the matching
// https://open.spotify.com links are accepted. Tracks play as a one element track list; playlists and
// albums play as a context.
package playback
