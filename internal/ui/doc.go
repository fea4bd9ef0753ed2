// Package ui implements the play buttons and a terminal view of a note built on bubbletea's Elm architecture.
//
// # Buttons
//
// A [Button] has three states: [StateIdle] ("🎵 Play <label>"), [StateLoading] ("Loading...") and
// [StateError] ("Error!"). [Button.Press] is the reentrancy guard: a press while loading is dropped.
// The detailed failure message is kept apart from the caption and read with [Button.Err].
//
// # Note view
//
// The (view) [Model] lists every spotiplayer block of a note as a row. Enter plays the selected row in
// the background; the caption updates as the click progresses and a failure's message renders under it.
// Malformed blocks render as an inline error instead of a button.
//
// With a [NoteWatcher] the note is re-parsed whenever it changes on disk. Buttons whose label and URI
// are unchanged keep their state across reloads.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, r, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
