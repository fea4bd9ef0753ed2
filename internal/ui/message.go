package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/spotiplay/internal/notes"
	"github.com/desertthunder/spotiplay/internal/playback"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgPlayed MsgKind = iota
	MsgNoteLoaded
	MsgNoteChanged
	MsgWatchFailed
	MsgAuthPending
)

type played struct {
	index  int
	result playback.Result
}

type noteLoaded struct {
	blocks []notes.Block
	err    error
}

// playedMsg is the constructor for [MsgPlayed]
func playedMsg(index int, result playback.Result) Msg {
	return Msg{kind: MsgPlayed, data: played{index, result}}
}

// noteLoadedMsg is the constructor for [MsgNoteLoaded]
func noteLoadedMsg(blocks []notes.Block, err error) Msg {
	return Msg{kind: MsgNoteLoaded, data: noteLoaded{blocks, err}}
}

// noteChangedMsg is the constructor for [MsgNoteChanged]
func noteChangedMsg() Msg {
	return Msg{kind: MsgNoteChanged}
}

// watchFailedMsg is the constructor for [MsgWatchFailed]
func watchFailedMsg(err error) Msg {
	return Msg{kind: MsgWatchFailed, data: err}
}

// AuthPendingMsg tells the model that an authorization page was opened at url.
// Sent from outside the program with [tea.Program.Send].
func AuthPendingMsg(url string) Msg {
	return Msg{kind: MsgAuthPending, data: url}
}
