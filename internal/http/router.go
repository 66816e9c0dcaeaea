package http

import (
	"net/http"

	"rtc-session-orchestrator/internal/app"
	"rtc-session-orchestrator/internal/observability/logging"
	"rtc-session-orchestrator/internal/observability/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const (
	postMethods = "POST, OPTIONS"
	getMethods  = "GET, OPTIONS"
)

// NewRouter constructs the HTTP router for the service.
func NewRouter(application *app.Application, h *Handlers, ingest *Ingest) http.Handler {
	r := chi.NewRouter()

	// Basic middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(accessLog(logging.WithComponent("http"))...)
	r.Use(middleware.Recoverer)
	r.Use(recordMetrics(metrics.DefaultMetrics))

	// Health endpoints
	r.Get("/v1/liveness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/v1/readiness", func(w http.ResponseWriter, _ *http.Request) {
		if !application.Ready() {
			writeText(w, http.StatusServiceUnavailable, "not ready")
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	// Browser-facing API, original client paths
	r.Group(func(r chi.Router) {
		r.Use(cors(postMethods))
		post := func(pattern string, fn http.HandlerFunc) {
			r.Post(pattern, fn)
			r.Options(pattern, fn)
		}
		post("/api/token.json", h.issueToken)
		post("/api/recording/start.json", h.startRecording)
		post("/api/recording/stop.json", h.stopRecording)
		post("/api/recording/query.json", h.queryRecording)
		post("/api/transcription/start.json", h.startTranscription)
		post("/api/transcription/stop.json", h.stopTranscription)
		post("/api/transcription/query.json", h.queryTranscription)
		post("/start-recording/{channel}.json", h.legacyStartRecording)
		post("/stop-recording/{channel}.json", h.legacyStopRecording)
	})

	r.Group(func(r chi.Router) {
		r.Use(cors(getMethods))
		get := func(pattern string, fn http.HandlerFunc) {
			r.Get(pattern, fn)
			r.Options(pattern, fn)
		}
		get("/rtc/{channel}/{role}/{uid}.json", h.rtcToken)
		get("/rtc/{channel}/{role}/{tokentype}/{uid}.json", h.rtcTypedToken)
	})

	r.Route("/v1/channels/{channel}", func(r chi.Router) {
		r.Get("/sessions", h.channelStatus)
		r.Get("/history", h.channelHistory)
		if ingest != nil {
			r.Get("/stream", ingest.ServeHTTP)
		}
	})

	return r
}
