package transcript

import (
	"iter"
	"strings"
)

// Line is a finalized utterance for one speaker.
type Line struct {
	SpeakerUID int32
	Text       string
	StartMs    int64 // start of the first buffered word
	EndMs      int64 // start+duration of the finalizing word
}

type speakerBuffer struct {
	text    strings.Builder
	startMs int32
}

// Assembler rebuilds per-speaker lines from word events.
//
// A speaker buffer is created on the first word for a uid and removed when a
// final word closes the line. Lines for different speakers come out in the
// order their finalizing words arrive. Assembler is not safe for concurrent
// use; each pipeline owns one.
type Assembler struct {
	buffers map[int32]*speakerBuffer
}

// NewAssembler returns an assembler with no buffered speakers.
func NewAssembler() *Assembler {
	return &Assembler{buffers: make(map[int32]*speakerBuffer)}
}

// Push appends the word to its speaker buffer. When the word is final the
// buffered text is returned as a Line and the buffer is cleared.
func (a *Assembler) Push(ev WordEvent) (Line, bool) {
	buf, ok := a.buffers[ev.SpeakerUID]
	if !ok {
		buf = &speakerBuffer{startMs: ev.StartMs}
		a.buffers[ev.SpeakerUID] = buf
	}
	buf.text.WriteString(ev.Text)

	if !ev.IsFinal {
		return Line{}, false
	}

	line := Line{
		SpeakerUID: ev.SpeakerUID,
		Text:       buf.text.String(),
		StartMs:    int64(buf.startMs),
		EndMs:      int64(ev.StartMs) + int64(ev.DurationMs),
	}
	delete(a.buffers, ev.SpeakerUID)
	return line, true
}

// Pending returns the not yet finalized text buffered for uid.
func (a *Assembler) Pending(uid int32) (string, bool) {
	buf, ok := a.buffers[uid]
	if !ok {
		return "", false
	}
	return buf.text.String(), true
}

// Speakers returns the number of speakers with buffered words.
func (a *Assembler) Speakers() int {
	return len(a.buffers)
}

// Reset drops every speaker buffer.
func (a *Assembler) Reset() {
	clear(a.buffers)
}

// Lines lazily maps a word event sequence to finalized lines.
func (a *Assembler) Lines(events iter.Seq[WordEvent]) iter.Seq[Line] {
	return func(yield func(Line) bool) {
		for ev := range events {
			if line, ok := a.Push(ev); ok {
				if !yield(line) {
					return
				}
			}
		}
	}
}
