package transcript

import (
	"slices"
	"strings"
	"testing"
)

func TestAssembler_HelloScenario(t *testing.T) {
	raw := Encode(&Frame{
		UID: 7,
		Words: []Word{
			{Text: "hel", IsFinal: false},
			{Text: "lo", IsFinal: true},
		},
	})
	f, err := Decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	a := NewAssembler()
	lines := slices.Collect(a.Lines(f.WordEvents()))

	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	if lines[0].SpeakerUID != 7 || lines[0].Text != "hello" {
		t.Errorf("unexpected line: %+v", lines[0])
	}
}

func TestAssembler_FinalAtK(t *testing.T) {
	texts := []string{"the ", "quick ", "brown ", "fox ", "jumps"}

	for k := 1; k <= len(texts); k++ {
		a := NewAssembler()
		var lines []Line
		for i, text := range texts {
			ev := WordEvent{SpeakerUID: 1, Word: Word{Text: text, IsFinal: i == k-1}}
			if line, ok := a.Push(ev); ok {
				lines = append(lines, line)
			}
		}
		if len(lines) != 1 {
			t.Fatalf("k=%d: expected exactly 1 line, got %d", k, len(lines))
		}
		want := strings.Join(texts[:k], "")
		if lines[0].Text != want {
			t.Errorf("k=%d: expected %q, got %q", k, want, lines[0].Text)
		}
	}
}

func TestAssembler_Timing(t *testing.T) {
	a := NewAssembler()
	a.Push(WordEvent{SpeakerUID: 1, Word: Word{Text: "", StartMs: 100, DurationMs: 50}})
	a.Push(WordEvent{SpeakerUID: 1, Word: Word{Text: "hi ", StartMs: 150, DurationMs: 100}})
	line, ok := a.Push(WordEvent{SpeakerUID: 1, Word: Word{Text: "there", StartMs: 300, DurationMs: 250, IsFinal: true}})

	if !ok {
		t.Fatal("expected a line")
	}
	if line.Text != "hi there" {
		t.Errorf("expected 'hi there', got %q", line.Text)
	}
	if line.StartMs != 100 {
		t.Errorf("expected startMs 100, got %d", line.StartMs)
	}
	if line.EndMs != 550 {
		t.Errorf("expected endMs 550, got %d", line.EndMs)
	}
}

func TestAssembler_InterleavedSpeakers(t *testing.T) {
	events := []WordEvent{
		{SpeakerUID: 1, Word: Word{Text: "a1 "}},
		{SpeakerUID: 2, Word: Word{Text: "b1 "}},
		{SpeakerUID: 2, Word: Word{Text: "b2", IsFinal: true}},
		{SpeakerUID: 1, Word: Word{Text: "a2", IsFinal: true}},
		{SpeakerUID: 3, Word: Word{Text: "c1"}},
	}

	a := NewAssembler()
	lines := slices.Collect(a.Lines(slices.Values(events)))

	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if lines[0].SpeakerUID != 2 || lines[0].Text != "b1 b2" {
		t.Errorf("unexpected first line: %+v", lines[0])
	}
	if lines[1].SpeakerUID != 1 || lines[1].Text != "a1 a2" {
		t.Errorf("unexpected second line: %+v", lines[1])
	}
	if pending, ok := a.Pending(3); !ok || pending != "c1" {
		t.Errorf("expected pending 'c1' for speaker 3, got %q (%v)", pending, ok)
	}
	if a.Speakers() != 1 {
		t.Errorf("expected 1 buffered speaker, got %d", a.Speakers())
	}
}

func TestAssembler_BufferClearedAfterFinal(t *testing.T) {
	a := NewAssembler()
	a.Push(WordEvent{SpeakerUID: 1, Word: Word{Text: "one", IsFinal: true}})

	if _, ok := a.Pending(1); ok {
		t.Error("expected no pending buffer after finalization")
	}

	line, ok := a.Push(WordEvent{SpeakerUID: 1, Word: Word{Text: "two", IsFinal: true}})
	if !ok || line.Text != "two" {
		t.Errorf("expected fresh line 'two', got %+v (%v)", line, ok)
	}
}

func TestAssembler_NoWordsNoLine(t *testing.T) {
	a := NewAssembler()
	if got := slices.Collect(a.Lines(slices.Values([]WordEvent(nil)))); len(got) != 0 {
		t.Errorf("expected no lines, got %d", len(got))
	}
	if _, ok := a.Pending(9); ok {
		t.Error("expected no buffer for unseen speaker")
	}
}

func TestAssembler_Reset(t *testing.T) {
	a := NewAssembler()
	a.Push(WordEvent{SpeakerUID: 1, Word: Word{Text: "stale "}})
	a.Reset()

	line, ok := a.Push(WordEvent{SpeakerUID: 1, Word: Word{Text: "fresh", IsFinal: true}})
	if !ok || line.Text != "fresh" {
		t.Errorf("expected 'fresh' after reset, got %+v", line)
	}
}
