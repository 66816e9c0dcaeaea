package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"rtc-session-orchestrator/internal/observability/logging"
	"rtc-session-orchestrator/internal/schema"
	"rtc-session-orchestrator/internal/service/token"
	"rtc-session-orchestrator/internal/service/transcript"
)

const (
	maxFrameBytes = 64 << 10
	writeWait     = 5 * time.Second

	eventExpiryWarning = "token-privilege-will-expire"
	eventTokenRenewed  = "token-renewed"
)

// FrameSink accepts raw transcript frames per channel.
type FrameSink interface {
	Submit(channel string, frame []byte) error
	Active(channel string) bool
}

// Ingest bridges an RTC client's data-channel stream into the transcript
// pipeline. Binary messages are frames; text messages are control events.
type Ingest struct {
	frames     FrameSink
	issuer     token.Issuer
	renewLead  time.Duration
	defaultTTL uint32
	upgrader   websocket.Upgrader
}

// NewIngest creates the stream endpoint handler. defaultTTL applies to
// renewals whose expiry warning carries no expireTime.
func NewIngest(frames FrameSink, issuer token.Issuer, renewLead time.Duration, defaultTTL uint32) *Ingest {
	if defaultTTL == 0 {
		defaultTTL = 3600
	}
	return &Ingest{
		frames:     frames,
		issuer:     issuer,
		renewLead:  renewLead,
		defaultTTL: defaultTTL,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

type controlEvent struct {
	Event      string               `json:"event"`
	Role       string               `json:"role"`
	ExpireTime schema.ExpireSeconds `json:"expireTime"`
}

type tokenRenewed struct {
	Event     string `json:"event"`
	Token     string `json:"token"`
	UID       string `json:"uid"`
	ExpiresAt int64  `json:"expiresAt"`
}

// conn serializes writes; gorilla allows one concurrent writer.
type conn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

// ApplyToken implements token.Transport by pushing the renewed token to the client.
func (c *conn) ApplyToken(_ context.Context, tok token.Token) error {
	return c.writeJSON(tokenRenewed{
		Event:     eventTokenRenewed,
		Token:     tok.Value,
		UID:       tok.UID,
		ExpiresAt: tok.ExpiresAt().Unix(),
	})
}

func (c *conn) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteJSON(v)
}

func (c *conn) close(code int, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	msg := websocket.FormatCloseMessage(code, reason)
	_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	_ = c.ws.Close()
}

// ServeHTTP handles GET /v1/channels/{channel}/stream?uid=<uid>.
func (in *Ingest) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	channel := chi.URLParam(r, "channel")
	uid := r.URL.Query().Get("uid")
	if uid == "" {
		writeText(w, http.StatusBadRequest, "uid is required")
		return
	}
	if !in.frames.Active(channel) {
		writeError(w, r, transcript.ErrNoPipeline)
		return
	}

	ws, err := in.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		return
	}
	ws.SetReadLimit(maxFrameBytes)
	c := &conn{ws: ws}
	logger := logging.WithChannel(channel).With().Str("uid", uid).Logger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	renewer := token.NewRenewer(in.issuer, c, in.renewLead)
	go renewer.Run(ctx)

	logger.Info().Msg("Transcript stream connected")
	code, reason := in.readLoop(c, channel, uid, renewer, logger)
	c.close(code, reason)
	logger.Info().Str("reason", reason).Msg("Transcript stream closed")
}

func (in *Ingest) readLoop(c *conn, channel, uid string, renewer *token.Renewer, logger zerolog.Logger) (int, string) {
	for {
		typ, data, err := c.ws.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug().Err(err).Msg("Stream read ended")
			}
			return websocket.CloseNormalClosure, "client closed"
		}

		switch typ {
		case websocket.BinaryMessage:
			err := in.frames.Submit(channel, data)
			if errors.Is(err, transcript.ErrNoPipeline) {
				return websocket.CloseNormalClosure, "transcription stopped"
			}
			// A full queue drops the frame; it is already counted.
		case websocket.TextMessage:
			in.handleControl(data, channel, uid, renewer, logger)
		}
	}
}

func (in *Ingest) handleControl(data []byte, channel, uid string, renewer *token.Renewer, logger zerolog.Logger) {
	var evt controlEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		logger.Warn().Err(err).Msg("Ignoring malformed control message")
		return
	}
	switch evt.Event {
	case eventExpiryWarning:
		role, err := token.ParseRole(evt.Role)
		if err != nil {
			logger.Warn().Str("role", evt.Role).Msg("Ignoring expiry warning with unknown role")
			return
		}
		ttl := uint32(evt.ExpireTime)
		if ttl == 0 {
			ttl = in.defaultTTL
		}
		renewer.Warn(token.ExpiryWarning{Token: token.Token{
			UID:        uid,
			Channel:    channel,
			Role:       role,
			TTLSeconds: ttl,
		}})
	default:
		logger.Debug().Str("event", evt.Event).Msg("Ignoring unknown control event")
	}
}
