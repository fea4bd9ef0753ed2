// Package auth implements the Spotify OAuth2 authorization-code flow used by the play buttons.
//
// # Authorization
//
// [Authorizer.Authenticate] opens the Spotify authorization page in the user's browser and parks the
// caller on a pending slot until the redirect delivers a code to [Authorizer.HandleAuthCallback]
// (wired to the local callback server in internal/server). The wait is bounded by a timeout
// (30 seconds by default); when it expires the session is cleared and [ErrAuthTimeout] is returned.
//
// Only one authorization runs at a time. Callers arriving while one is pending join it rather than
// replacing it, so every waiter observes the same outcome.
//
// # Refresh
//
// Every successful exchange arms a single refresh timer that fires before the one hour token lifetime
// runs out. Re-arming always cancels the previous timer. A failed refresh is logged and leaves the tokens
// untouched; the timer is not re-armed, so the next expired probe triggers a fresh login.
//
// # Token changes
//
// The owner is told about every token change through [Options.OnTokenChange] and decides what to persist.
package auth
