// Package models defines the data structures for transcript events.
package models

const (
	EventTypePartial = "channel.transcript.partial"
	EventTypeFinal   = "channel.transcript.final"
)

// TranscriptPartial carries the in-progress text of one speaker.
type TranscriptPartial struct {
	EventType  string `json:"eventType"`
	Channel    string `json:"channel"`
	SpeakerUID int32  `json:"speakerUid"`
	Timestamp  int64  `json:"timestamp"`
	Text       string `json:"text"`
}

// TranscriptFinal is a finalized line: everything one speaker said up to and
// including a final word.
type TranscriptFinal struct {
	EventType  string `json:"eventType"`
	Channel    string `json:"channel"`
	SpeakerUID int32  `json:"speakerUid"`
	Timestamp  int64  `json:"timestamp"`
	Text       string `json:"text"`
	StartMs    int64  `json:"startMs"`
	EndMs      int64  `json:"endMs"`
}
