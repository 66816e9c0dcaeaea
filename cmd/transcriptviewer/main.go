// Command transcriptviewer tails the transcript topics and pushes every event
// to connected browsers over a WebSocket.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"rtc-session-orchestrator/internal/models"
)

// viewerEvent is the union of partial and final transcript events.
type viewerEvent struct {
	models.TranscriptFinal
}

func main() {
	port := flag.String("port", "8081", "HTTP server port")
	brokers := flag.String("brokers", "localhost:9092", "Kafka brokers (comma-separated)")
	topicPartial := flag.String("topic-partial", "rtc.transcript.partial", "partial transcript topic")
	topicFinal := flag.String("topic-final", "rtc.transcript.final", "final transcript topic")
	channel := flag.String("channel", "", "only show this channel")
	flag.Parse()

	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).With().Timestamp().Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hub := newHub()
	go hub.run(ctx)

	for _, topic := range []string{*topicPartial, *topicFinal} {
		go consume(ctx, hub, strings.Split(*brokers, ","), topic, *channel)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(indexHTML))
	})
	mux.HandleFunc("/ws", hub.serveWS)

	srv := &http.Server{Addr: ":" + *port, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().
		Str("addr", "http://localhost:"+*port).
		Str("brokers", *brokers).
		Strs("topics", []string{*topicPartial, *topicFinal}).
		Msg("Transcript viewer starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("Server error")
	}
}

func consume(ctx context.Context, hub *hub, brokers []string, topic, channel string) {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	defer reader.Close()

	if err := reader.SetOffsetAt(ctx, time.Now().Add(-time.Hour)); err != nil {
		log.Warn().Err(err).Str("topic", topic).Msg("Could not rewind reader, tailing from latest")
	}
	log.Info().Str("topic", topic).Msg("Consuming transcript events")

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warn().Err(err).Str("topic", topic).Msg("Kafka read error")
			time.Sleep(time.Second)
			continue
		}

		var evt viewerEvent
		if err := json.Unmarshal(msg.Value, &evt); err != nil {
			log.Warn().Err(err).Str("topic", topic).Msg("Skipping malformed event")
			continue
		}
		if channel != "" && evt.Channel != channel {
			continue
		}
		log.Debug().
			Str("eventType", evt.EventType).
			Str("channel", evt.Channel).
			Int32("speakerUid", evt.SpeakerUID).
			Str("text", truncate(evt.Text, 40)).
			Msg("Event received")
		hub.broadcast <- evt
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

type hub struct {
	clients    map[*websocket.Conn]struct{}
	broadcast  chan viewerEvent
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	upgrader   websocket.Upgrader
}

func newHub() *hub {
	return &hub{
		clients:    make(map[*websocket.Conn]struct{}),
		broadcast:  make(chan viewerEvent, 100),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		upgrader:   websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
	}
}

// run owns the client set; all writes happen on this goroutine.
func (h *hub) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				_ = c.Close()
			}
			return
		case c := <-h.register:
			h.clients[c] = struct{}{}
			log.Info().Int("clients", len(h.clients)).Msg("Viewer connected")
		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				_ = c.Close()
				log.Info().Int("clients", len(h.clients)).Msg("Viewer disconnected")
			}
		case evt := <-h.broadcast:
			for c := range h.clients {
				_ = c.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := c.WriteJSON(evt); err != nil {
					delete(h.clients, c)
					_ = c.Close()
				}
			}
		}
	}
}

func (h *hub) serveWS(w http.ResponseWriter, r *http.Request) {
	c, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	h.register <- c
	go func() {
		defer func() { h.unregister <- c }()
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

const indexHTML = `<!doctype html>
<html>
<head>
<meta charset="utf-8">
<title>Transcripts</title>
<style>
body { font-family: sans-serif; margin: 2rem; }
.line { margin: .25rem 0; }
.partial { color: #888; font-style: italic; }
.speaker { font-weight: bold; margin-right: .5rem; }
</style>
</head>
<body>
<h1>Live transcripts</h1>
<div id="lines"></div>
<script>
const lines = document.getElementById("lines");
const partials = {};
const ws = new WebSocket((location.protocol === "https:" ? "wss://" : "ws://") + location.host + "/ws");
ws.onmessage = (m) => {
  const e = JSON.parse(m.data);
  const key = e.channel + "/" + e.speakerUid;
  let el = partials[key];
  if (!el) {
    el = document.createElement("div");
    lines.appendChild(el);
    partials[key] = el;
  }
  el.className = "line" + (e.eventType.endsWith(".partial") ? " partial" : "");
  el.innerHTML = "";
  const who = document.createElement("span");
  who.className = "speaker";
  who.textContent = "[" + e.channel + "] " + e.speakerUid + ":";
  el.appendChild(who);
  el.appendChild(document.createTextNode(e.text));
  if (!e.eventType.endsWith(".partial")) {
    delete partials[key];
  }
};
</script>
</body>
</html>
`
