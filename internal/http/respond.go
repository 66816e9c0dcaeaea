package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/hlog"

	"rtc-session-orchestrator/internal/schema"
	"rtc-session-orchestrator/internal/service/provider"
	"rtc-session-orchestrator/internal/service/session"
	"rtc-session-orchestrator/internal/service/token"
	"rtc-session-orchestrator/internal/service/transcript"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeRaw writes a provider body through unchanged.
func writeRaw(w http.ResponseWriter, body json.RawMessage) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func writeText(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(msg))
}

// writeError maps domain errors to status codes. Bodies are plain text.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		ve *schema.ValidationError
		ue *provider.UpstreamError
	)
	switch {
	case errors.As(err, &ve):
		writeText(w, http.StatusBadRequest, ve.Message)
	case errors.Is(err, token.ErrInvalidRole):
		writeText(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, session.ErrSessionActive), errors.Is(err, session.ErrInvalidTransition):
		writeText(w, http.StatusConflict, err.Error())
	case errors.Is(err, session.ErrSessionNotFound), errors.Is(err, transcript.ErrNoPipeline):
		writeText(w, http.StatusNotFound, err.Error())
	case errors.Is(err, session.ErrManagerClosed), errors.Is(err, token.ErrNotConfigured):
		writeText(w, http.StatusServiceUnavailable, err.Error())
	case errors.As(err, &ue):
		hlog.FromRequest(r).Error().Err(err).Int("upstreamStatus", ue.StatusCode).Msg("Provider call failed")
		writeText(w, http.StatusBadGateway, err.Error())
	default:
		hlog.FromRequest(r).Error().Err(err).Msg("Request failed")
		writeText(w, http.StatusInternalServerError, "internal error")
	}
}
