// Package transcript turns RTC side-channel frames into per-speaker transcript lines.
//
// Frames use the provider's protobuf wire layout. The codec works directly on
// the wire with protowire so no generated message types are needed:
//
//	Text {
//	  1 vendor int32, 2 version int32, 3 seqnum int32, 4 uid int32, 5 flag int32,
//	  6 time int64, 7 lang int32, 8 starttime int32, 9 offtime int32,
//	  10 repeated Word
//	}
//	Word { 1 text string, 2 start_ms int32, 3 duration_ms int32, 4 is_final bool, 5 confidence double }
package transcript

import (
	"errors"
	"fmt"
	"iter"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// Text message field numbers.
const (
	fieldVendor    protowire.Number = 1
	fieldVersion   protowire.Number = 2
	fieldSeqnum    protowire.Number = 3
	fieldUID       protowire.Number = 4
	fieldFlag      protowire.Number = 5
	fieldTime      protowire.Number = 6
	fieldLang      protowire.Number = 7
	fieldStartTime protowire.Number = 8
	fieldOffTime   protowire.Number = 9
	fieldWords     protowire.Number = 10
)

// Word message field numbers.
const (
	wordText       protowire.Number = 1
	wordStartMs    protowire.Number = 2
	wordDurationMs protowire.Number = 3
	wordIsFinal    protowire.Number = 4
	wordConfidence protowire.Number = 5
)

// Word is one recognized fragment inside a frame.
type Word struct {
	Text       string
	StartMs    int32
	DurationMs int32
	IsFinal    bool
	Confidence float64 // 0 when the provider did not report one
}

// Frame is one decoded side-channel message.
type Frame struct {
	Vendor      int32
	Version     int32
	Seqnum      int32
	UID         int32
	Flag        int32
	TimeMs      int64
	Lang        int32
	StartTimeMs int32
	OffTimeMs   int32
	Words       []Word
}

// WordEvent is a Word tagged with the speaker uid of its enclosing frame.
type WordEvent struct {
	SpeakerUID int32
	Word
}

// WordEvents yields the frame's words in wire order, each tagged with the frame uid.
func (f *Frame) WordEvents() iter.Seq[WordEvent] {
	return func(yield func(WordEvent) bool) {
		for _, w := range f.Words {
			if !yield(WordEvent{SpeakerUID: f.UID, Word: w}) {
				return
			}
		}
	}
}

// ErrWireType is wrapped by DecodeError when a known field carries an unexpected wire type.
var ErrWireType = errors.New("unexpected wire type")

// DecodeError reports a malformed or truncated frame.
type DecodeError struct {
	Message string // "frame" or "word"
	Field   protowire.Number
	Offset  int
	Err     error
}

func (e *DecodeError) Error() string {
	if e.Field == 0 {
		return fmt.Sprintf("transcript: decode %s at offset %d: %v", e.Message, e.Offset, e.Err)
	}
	return fmt.Sprintf("transcript: decode %s field %d at offset %d: %v", e.Message, e.Field, e.Offset, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Decode parses a single frame. Unknown fields are skipped; zero-valued
// scalars that were omitted on the wire decode to their zero value.
func Decode(b []byte) (*Frame, error) {
	f := &Frame{}
	r := wireReader{msg: "frame", buf: b}
	for !r.done() {
		num, typ, err := r.tag()
		if err != nil {
			return nil, err
		}
		switch num {
		case fieldVendor, fieldVersion, fieldSeqnum, fieldUID, fieldFlag,
			fieldLang, fieldStartTime, fieldOffTime:
			v, err := r.varint(num, typ)
			if err != nil {
				return nil, err
			}
			setFrameInt32(f, num, int32(v))
		case fieldTime:
			v, err := r.varint(num, typ)
			if err != nil {
				return nil, err
			}
			f.TimeMs = int64(v)
		case fieldWords:
			raw, err := r.bytes(num, typ)
			if err != nil {
				return nil, err
			}
			w, err := decodeWord(raw, r.offset())
			if err != nil {
				return nil, err
			}
			f.Words = append(f.Words, w)
		default:
			if err := r.skip(num, typ); err != nil {
				return nil, err
			}
		}
	}
	return f, nil
}

func setFrameInt32(f *Frame, num protowire.Number, v int32) {
	switch num {
	case fieldVendor:
		f.Vendor = v
	case fieldVersion:
		f.Version = v
	case fieldSeqnum:
		f.Seqnum = v
	case fieldUID:
		f.UID = v
	case fieldFlag:
		f.Flag = v
	case fieldLang:
		f.Lang = v
	case fieldStartTime:
		f.StartTimeMs = v
	case fieldOffTime:
		f.OffTimeMs = v
	}
}

func decodeWord(b []byte, base int) (Word, error) {
	var w Word
	r := wireReader{msg: "word", buf: b, base: base - len(b)}
	for !r.done() {
		num, typ, err := r.tag()
		if err != nil {
			return Word{}, err
		}
		switch num {
		case wordText:
			raw, err := r.bytes(num, typ)
			if err != nil {
				return Word{}, err
			}
			w.Text = string(raw)
		case wordStartMs:
			v, err := r.varint(num, typ)
			if err != nil {
				return Word{}, err
			}
			w.StartMs = int32(v)
		case wordDurationMs:
			v, err := r.varint(num, typ)
			if err != nil {
				return Word{}, err
			}
			w.DurationMs = int32(v)
		case wordIsFinal:
			v, err := r.varint(num, typ)
			if err != nil {
				return Word{}, err
			}
			w.IsFinal = protowire.DecodeBool(v)
		case wordConfidence:
			if typ != protowire.Fixed64Type {
				return Word{}, r.fail(num, ErrWireType)
			}
			v, n := protowire.ConsumeFixed64(r.buf[r.pos:])
			if n < 0 {
				return Word{}, r.fail(num, protowire.ParseError(n))
			}
			r.pos += n
			w.Confidence = math.Float64frombits(v)
		default:
			if err := r.skip(num, typ); err != nil {
				return Word{}, err
			}
		}
	}
	return w, nil
}

// wireReader walks one message and produces positioned DecodeErrors.
type wireReader struct {
	msg  string
	buf  []byte
	pos  int
	base int
}

func (r *wireReader) done() bool  { return r.pos >= len(r.buf) }
func (r *wireReader) offset() int { return r.base + r.pos }

func (r *wireReader) fail(num protowire.Number, err error) error {
	return &DecodeError{Message: r.msg, Field: num, Offset: r.offset(), Err: err}
}

func (r *wireReader) tag() (protowire.Number, protowire.Type, error) {
	num, typ, n := protowire.ConsumeTag(r.buf[r.pos:])
	if n < 0 {
		return 0, 0, r.fail(0, protowire.ParseError(n))
	}
	r.pos += n
	return num, typ, nil
}

func (r *wireReader) varint(num protowire.Number, typ protowire.Type) (uint64, error) {
	if typ != protowire.VarintType {
		return 0, r.fail(num, ErrWireType)
	}
	v, n := protowire.ConsumeVarint(r.buf[r.pos:])
	if n < 0 {
		return 0, r.fail(num, protowire.ParseError(n))
	}
	r.pos += n
	return v, nil
}

func (r *wireReader) bytes(num protowire.Number, typ protowire.Type) ([]byte, error) {
	if typ != protowire.BytesType {
		return nil, r.fail(num, ErrWireType)
	}
	v, n := protowire.ConsumeBytes(r.buf[r.pos:])
	if n < 0 {
		return nil, r.fail(num, protowire.ParseError(n))
	}
	r.pos += n
	return v, nil
}

func (r *wireReader) skip(num protowire.Number, typ protowire.Type) error {
	n := protowire.ConsumeFieldValue(num, typ, r.buf[r.pos:])
	if n < 0 {
		return r.fail(num, protowire.ParseError(n))
	}
	r.pos += n
	return nil
}

// Encode serializes a frame in the same layout Decode reads. Zero scalars are omitted.
func Encode(f *Frame) []byte {
	var b []byte
	b = appendInt32(b, fieldVendor, f.Vendor)
	b = appendInt32(b, fieldVersion, f.Version)
	b = appendInt32(b, fieldSeqnum, f.Seqnum)
	b = appendInt32(b, fieldUID, f.UID)
	b = appendInt32(b, fieldFlag, f.Flag)
	if f.TimeMs != 0 {
		b = protowire.AppendTag(b, fieldTime, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(f.TimeMs))
	}
	b = appendInt32(b, fieldLang, f.Lang)
	b = appendInt32(b, fieldStartTime, f.StartTimeMs)
	b = appendInt32(b, fieldOffTime, f.OffTimeMs)
	for _, w := range f.Words {
		b = protowire.AppendTag(b, fieldWords, protowire.BytesType)
		b = protowire.AppendBytes(b, encodeWord(w))
	}
	return b
}

func encodeWord(w Word) []byte {
	var b []byte
	if w.Text != "" {
		b = protowire.AppendTag(b, wordText, protowire.BytesType)
		b = protowire.AppendString(b, w.Text)
	}
	b = appendInt32(b, wordStartMs, w.StartMs)
	b = appendInt32(b, wordDurationMs, w.DurationMs)
	if w.IsFinal {
		b = protowire.AppendTag(b, wordIsFinal, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeBool(true))
	}
	if w.Confidence != 0 {
		b = protowire.AppendTag(b, wordConfidence, protowire.Fixed64Type)
		b = protowire.AppendFixed64(b, math.Float64bits(w.Confidence))
	}
	return b
}

// appendInt32 sign-extends negative values to ten bytes, as protobuf int32 does.
func appendInt32(b []byte, num protowire.Number, v int32) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(int64(v)))
}
