// Command frameclient replays a sentence as transcript frames against a running
// orchestrator, over the WebSocket stream endpoint or the gRPC ingest service.
package main

import (
	"context"
	"flag"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/wrapperspb"

	grpcapi "rtc-session-orchestrator/internal/api/grpc"
	"rtc-session-orchestrator/internal/service/transcript"
)

const wordDurationMs = 300

func main() {
	transport := flag.String("transport", "ws", "ws or grpc")
	httpAddr := flag.String("http", "localhost:8080", "orchestrator HTTP address")
	grpcAddr := flag.String("grpc", "localhost:50051", "orchestrator gRPC address")
	channel := flag.String("channel", "demo", "channel with an active transcription")
	uid := flag.String("uid", "1001", "client uid")
	speaker := flag.Int("speaker", 42, "speaker uid written into frames")
	text := flag.String("text", "hello from the frame client", "sentence to send, one word per frame")
	interval := flag.Duration("interval", 200*time.Millisecond, "delay between frames")
	flag.Parse()

	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).With().Timestamp().Logger()

	frames := buildFrames(int32(*speaker), *text)
	log.Info().Int("frames", len(frames)).Str("channel", *channel).Str("transport", *transport).Msg("Sending frames")

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	var err error
	switch *transport {
	case "ws":
		err = sendWebSocket(ctx, *httpAddr, *channel, *uid, frames, *interval)
	case "grpc":
		err = sendGRPC(ctx, *grpcAddr, *channel, frames, *interval)
	default:
		log.Fatal().Str("transport", *transport).Msg("Unknown transport")
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Frame stream failed")
	}
}

// buildFrames encodes one word per frame; the last word closes the line.
func buildFrames(speaker int32, text string) [][]byte {
	words := strings.Fields(text)
	out := make([][]byte, 0, len(words))
	start := int32(0)
	for i, w := range words {
		last := i == len(words)-1
		if !last {
			w += " "
		}
		out = append(out, transcript.Encode(&transcript.Frame{
			Seqnum: int32(i + 1),
			UID:    speaker,
			TimeMs: time.Now().UnixMilli(),
			Words: []transcript.Word{{
				Text:       w,
				StartMs:    start,
				DurationMs: wordDurationMs,
				IsFinal:    last,
				Confidence: 0.9,
			}},
		}))
		start += wordDurationMs
	}
	return out
}

func sendWebSocket(ctx context.Context, addr, channel, uid string, frames [][]byte, interval time.Duration) error {
	u := url.URL{
		Scheme:   "ws",
		Host:     addr,
		Path:     "/v1/channels/" + url.PathEscape(channel) + "/stream",
		RawQuery: url.Values{"uid": {uid}}.Encode(),
	}
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return err
	}
	defer ws.Close()

	go func() {
		for {
			_, msg, err := ws.ReadMessage()
			if err != nil {
				return
			}
			log.Info().RawJSON("event", msg).Msg("Control message")
		}
	}()

	for i, f := range frames {
		if err := ws.WriteMessage(websocket.BinaryMessage, f); err != nil {
			return err
		}
		log.Debug().Int("seq", i+1).Int("bytes", len(f)).Msg("Frame sent")
		time.Sleep(interval)
	}

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done")
	return ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
}

func sendGRPC(ctx context.Context, addr, channel string, frames [][]byte, interval time.Duration) error {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return err
	}
	defer conn.Close()

	ctx = metadata.AppendToOutgoingContext(ctx, grpcapi.ChannelMetadataKey, channel)
	stream, err := conn.NewStream(ctx, &grpcapi.IngestServiceDesc.Streams[0], grpcapi.StreamFramesMethod)
	if err != nil {
		return err
	}
	for _, f := range frames {
		if err := stream.SendMsg(wrapperspb.Bytes(f)); err != nil {
			return err
		}
		time.Sleep(interval)
	}
	if err := stream.CloseSend(); err != nil {
		return err
	}
	ack := &wrapperspb.UInt64Value{}
	if err := stream.RecvMsg(ack); err != nil {
		return err
	}
	log.Info().Uint64("accepted", ack.GetValue()).Msg("Frame stream acknowledged")
	return nil
}
