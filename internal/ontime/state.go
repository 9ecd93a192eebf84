// Package ontime implements the client side of the ontime show-control
// protocol: a persistent WebSocket connection carrying state snapshots, a
// one-shot HTTP event directory fetch, and outbound commands.
package ontime

import (
	"encoding/json"
	"fmt"
)

// Message types pushed by the device.
const (
	msgTypeState   = "ontime"
	msgTypeRefetch = "ontime-refetch"
)

// Playback values reported in State.Playback.
const (
	PlaybackStart = "start"
	PlaybackPause = "pause"
	PlaybackStop  = "stop"
	PlaybackRoll  = "roll"
)

// Envelope is the wire frame exchanged on the socket in both directions.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// DecodeEnvelope parses a raw text frame. A frame without a type is
// reported as an error so callers can decide (and count) what to drop,
// rather than the decoder swallowing it.
func DecodeEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("malformed frame: %w", err)
	}
	if env.Type == "" {
		return Envelope{}, fmt.Errorf("frame missing type")
	}
	return env, nil
}

// TimerState carries the device's timer block. The millisecond fields that
// are absent while no event runs are pointers so "not running" is
// distinguishable from zero.
type TimerState struct {
	Current        *int64 `json:"current"`
	Clock          int64  `json:"clock"`
	StartedAt      *int64 `json:"startedAt"`
	ExpectedFinish *int64 `json:"expectedFinish"`
	AddedTime      int64  `json:"addedTime"`
}

// TitleBlock holds the now/next rundown titles.
type TitleBlock struct {
	TitleNow     string `json:"titleNow"`
	SubtitleNow  string `json:"subtitleNow"`
	PresenterNow string `json:"presenterNow"`
	NoteNow      string `json:"noteNow"`

	TitleNext     string `json:"titleNext"`
	SubtitleNext  string `json:"subtitleNext"`
	PresenterNext string `json:"presenterNext"`
	NoteNext      string `json:"noteNext"`
}

// Message is one of the device's three operator message surfaces.
type Message struct {
	Text   string `json:"text"`
	Active bool   `json:"active"`
}

// State is the full snapshot pushed by the device. It is replaced
// wholesale on every state message; there is no partial merge.
type State struct {
	Timer         TimerState `json:"timer"`
	Playback      string     `json:"playback"`
	OnAir         bool       `json:"onAir"`
	Titles        TitleBlock `json:"titles"`
	TimerMessage  Message    `json:"timerMessage"`
	PublicMessage Message    `json:"publicMessage"`
	LowerMessage  Message    `json:"lowerMessage"`
}

// TimeIsNegative reports whether the running timer has gone past zero.
func (s *State) TimeIsNegative() bool {
	return s.Timer.Current != nil && *s.Timer.Current < 0
}
