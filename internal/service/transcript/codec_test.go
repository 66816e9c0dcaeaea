package transcript

import (
	"bytes"
	"errors"
	"reflect"
	"testing"

	"google.golang.org/protobuf/encoding/protowire"
)

func TestDecode_KnownBytes(t *testing.T) {
	// uid=7, words=[{text:"hel"}, {text:"lo", is_final:true}]
	raw := []byte{
		0x20, 0x07,
		0x52, 0x05, 0x0a, 0x03, 'h', 'e', 'l',
		0x52, 0x06, 0x0a, 0x02, 'l', 'o', 0x20, 0x01,
	}

	f, err := Decode(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.UID != 7 {
		t.Errorf("expected uid 7, got %d", f.UID)
	}
	if len(f.Words) != 2 {
		t.Fatalf("expected 2 words, got %d", len(f.Words))
	}
	if f.Words[0].Text != "hel" || f.Words[0].IsFinal {
		t.Errorf("unexpected first word: %+v", f.Words[0])
	}
	if f.Words[1].Text != "lo" || !f.Words[1].IsFinal {
		t.Errorf("unexpected second word: %+v", f.Words[1])
	}

	if got := Encode(f); !bytes.Equal(got, raw) {
		t.Errorf("re-encode mismatch:\n got %x\nwant %x", got, raw)
	}
}

func TestEncodeDecode_AllFields(t *testing.T) {
	want := &Frame{
		Vendor:      1,
		Version:     2,
		Seqnum:      42,
		UID:         1001,
		Flag:        3,
		TimeMs:      1_700_000_000_123,
		Lang:        5,
		StartTimeMs: 100,
		OffTimeMs:   2500,
		Words: []Word{
			{Text: "good ", StartMs: 100, DurationMs: 200, Confidence: 0.5},
			{Text: "morning", StartMs: 300, DurationMs: 400, IsFinal: true, Confidence: 0.93},
		},
	}

	got, err := Decode(Encode(want))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("mismatch:\n got %+v\nwant %+v", got, want)
	}
}

func TestEncode_OmitsZeroScalars(t *testing.T) {
	if b := Encode(&Frame{}); len(b) != 0 {
		t.Errorf("expected empty encoding for zero frame, got %x", b)
	}

	f, err := Decode(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(f, &Frame{}) {
		t.Errorf("expected zero frame, got %+v", f)
	}
}

func TestEncodeDecode_NegativeInt32(t *testing.T) {
	b := Encode(&Frame{Seqnum: -1})
	// tag + ten byte sign-extended varint
	if len(b) != 11 {
		t.Errorf("expected 11 bytes, got %d (%x)", len(b), b)
	}
	f, err := Decode(b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Seqnum != -1 {
		t.Errorf("expected seqnum -1, got %d", f.Seqnum)
	}
}

func TestDecode_SkipsUnknownFields(t *testing.T) {
	want := &Frame{
		UID:   7,
		Words: []Word{{Text: "hi", IsFinal: true}},
	}
	b := Encode(want)

	// unknown length-delimited, fixed32 and varint fields at the top level
	b = protowire.AppendTag(b, 15, protowire.BytesType)
	b = protowire.AppendString(b, "future")
	b = protowire.AppendTag(b, 20, protowire.Fixed32Type)
	b = protowire.AppendFixed32(b, 0xdeadbeef)
	b = protowire.AppendTag(b, 99, protowire.VarintType)
	b = protowire.AppendVarint(b, 12345)

	// unknown field nested inside a word
	word := encodeWord(Word{Text: "there", IsFinal: true})
	word = protowire.AppendTag(word, 9, protowire.Fixed64Type)
	word = protowire.AppendFixed64(word, 1)
	b = protowire.AppendTag(b, fieldWords, protowire.BytesType)
	b = protowire.AppendBytes(b, word)
	want.Words = append(want.Words, Word{Text: "there", IsFinal: true})

	got, err := Decode(b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("mismatch:\n got %+v\nwant %+v", got, want)
	}
}

func TestDecode_Errors(t *testing.T) {
	valid := Encode(&Frame{UID: 7, Words: []Word{{Text: "hello", IsFinal: true}}})

	tests := []struct {
		name     string
		input    []byte
		wireType bool
	}{
		{"truncated word", valid[:len(valid)-1], false},
		{"truncated varint", []byte{0x20, 0x80}, false},
		{"truncated tag", []byte{0x80}, false},
		{"field number zero", []byte{0x00, 0x01}, false},
		{"uid as bytes", []byte{0x22, 0x01, 0x00}, true},
		{"words as varint", []byte{0x50, 0x01}, true},
		{"confidence as varint", []byte{0x52, 0x02, 0x28, 0x01}, true},
		{"bad length in unknown field", []byte{0x7a, 0x05, 'a'}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Decode(tt.input)
			if err == nil {
				t.Fatalf("expected error, got frame %+v", f)
			}
			var de *DecodeError
			if !errors.As(err, &de) {
				t.Fatalf("expected *DecodeError, got %T", err)
			}
			if tt.wireType && !errors.Is(err, ErrWireType) {
				t.Errorf("expected ErrWireType, got %v", err)
			}
		})
	}
}

func TestFrame_WordEvents(t *testing.T) {
	f := &Frame{UID: 3, Words: []Word{{Text: "a"}, {Text: "b"}, {Text: "c"}}}

	var got []WordEvent
	for ev := range f.WordEvents() {
		got = append(got, ev)
		if len(got) == 2 {
			break
		}
	}
	if len(got) != 2 {
		t.Fatalf("expected early stop after 2 events, got %d", len(got))
	}
	for _, ev := range got {
		if ev.SpeakerUID != 3 {
			t.Errorf("expected speaker 3, got %d", ev.SpeakerUID)
		}
	}
}
