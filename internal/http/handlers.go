package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"rtc-session-orchestrator/internal/schema"
	"rtc-session-orchestrator/internal/service/provider"
	"rtc-session-orchestrator/internal/service/session"
	"rtc-session-orchestrator/internal/service/token"
	"rtc-session-orchestrator/internal/store"
)

// TokenTTLs are the fixed lifetimes of tokens minted by the GET /rtc routes.
type TokenTTLs struct {
	Legacy      uint32
	LegacyTyped uint32
}

// SessionManager is the session surface the handlers drive.
type SessionManager interface {
	Start(ctx context.Context, channel string, kind session.Kind, opts session.StartOptions) (*session.Session, error)
	StopJob(ctx context.Context, job provider.Job) (json.RawMessage, error)
	QueryJob(ctx context.Context, job provider.Job) (json.RawMessage, error)
	Current(channel string, kind session.Kind) (*session.Session, bool)
}

// Handlers serves the session and token API.
type Handlers struct {
	sessions  SessionManager
	issuer    token.Issuer
	validator *schema.Validator
	ttls      TokenTTLs
	history   store.HistoryReader
}

// NewHandlers wires the API handlers. history may be nil.
func NewHandlers(sessions SessionManager, issuer token.Issuer, ttls TokenTTLs, history store.HistoryReader) *Handlers {
	return &Handlers{
		sessions:  sessions,
		issuer:    issuer,
		validator: schema.New(),
		ttls:      ttls,
		history:   history,
	}
}

func (h *Handlers) issueToken(w http.ResponseWriter, r *http.Request) {
	var req schema.TokenRequest
	if err := h.validator.Decode(r.Body, &req); err != nil {
		writeError(w, r, err)
		return
	}
	role, err := token.ParseRole(req.Role)
	if err != nil {
		writeError(w, r, err)
		return
	}

	tok, err := h.issuer.Issue(r.Context(), token.Request{
		Channel:    req.Channel,
		UID:        req.UID.String(),
		Role:       role,
		TTLSeconds: uint32(req.ExpireTime),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": tok.Value})
}

type recordingStarted struct {
	ResourceID string `json:"resourceId"`
	SID        string `json:"sid"`
}

func (h *Handlers) startRecording(w http.ResponseWriter, r *http.Request) {
	var req schema.RecordingStartRequest
	if err := h.validator.Decode(r.Body, &req); err != nil {
		writeError(w, r, err)
		return
	}
	h.respondRecordingStart(w, r, req.Channel, req.UID.String())
}

func (h *Handlers) respondRecordingStart(w http.ResponseWriter, r *http.Request, channel, uid string) {
	s, err := h.sessions.Start(r.Context(), channel, session.KindRecording, session.StartOptions{UID: uid})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recordingStarted{ResourceID: s.ProviderResourceID(), SID: s.ProviderJobID()})
}

func (h *Handlers) stopRecording(w http.ResponseWriter, r *http.Request) {
	var req schema.RecordingStopRequest
	if err := h.validator.Decode(r.Body, &req); err != nil {
		writeError(w, r, err)
		return
	}
	h.respondStop(w, r, recordingJob(req.Channel, req.UID.String(), req.ResourceID, req.SID))
}

func (h *Handlers) queryRecording(w http.ResponseWriter, r *http.Request) {
	var req schema.RecordingQueryRequest
	if err := h.validator.Decode(r.Body, &req); err != nil {
		writeError(w, r, err)
		return
	}
	h.respondQuery(w, r, recordingJob(req.Channel, "", req.ResourceID, req.SID))
}

type transcriptionStarted struct {
	TaskID       string `json:"taskId"`
	BuilderToken string `json:"builderToken"`
}

func (h *Handlers) startTranscription(w http.ResponseWriter, r *http.Request) {
	var req schema.TranscriptionStartRequest
	if err := h.validator.Decode(r.Body, &req); err != nil {
		writeError(w, r, err)
		return
	}
	s, err := h.sessions.Start(r.Context(), req.Channel, session.KindTranscription, session.StartOptions{})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, transcriptionStarted{TaskID: s.ProviderJobID(), BuilderToken: s.ProviderResourceID()})
}

func (h *Handlers) stopTranscription(w http.ResponseWriter, r *http.Request) {
	var req schema.TranscriptionJobRequest
	if err := h.validator.Decode(r.Body, &req); err != nil {
		writeError(w, r, err)
		return
	}
	h.respondStop(w, r, transcriptionJob(req.Channel, req.BuilderToken, req.TaskID))
}

func (h *Handlers) queryTranscription(w http.ResponseWriter, r *http.Request) {
	var req schema.TranscriptionJobRequest
	if err := h.validator.Decode(r.Body, &req); err != nil {
		writeError(w, r, err)
		return
	}
	h.respondQuery(w, r, transcriptionJob(req.Channel, req.BuilderToken, req.TaskID))
}

func (h *Handlers) respondStop(w http.ResponseWriter, r *http.Request, job provider.Job) {
	body, err := h.sessions.StopJob(r.Context(), job)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeRaw(w, body)
}

func (h *Handlers) respondQuery(w http.ResponseWriter, r *http.Request, job provider.Job) {
	body, err := h.sessions.QueryJob(r.Context(), job)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeRaw(w, body)
}

func recordingJob(channel, uid, resourceID, sid string) provider.Job {
	return provider.Job{
		Resource: provider.Resource{Kind: provider.KindRecording, Channel: channel, UID: uid, ID: resourceID},
		ID:       sid,
	}
}

func transcriptionJob(channel, builderToken, taskID string) provider.Job {
	return provider.Job{
		Resource: provider.Resource{Kind: provider.KindTranscription, Channel: channel, ID: builderToken},
		ID:       taskID,
	}
}

// rtcToken serves GET /rtc/{channel}/{role}/{uid}.json.
func (h *Handlers) rtcToken(w http.ResponseWriter, r *http.Request) {
	channel, uid := chi.URLParam(r, "channel"), chi.URLParam(r, "uid")
	if channel == "" {
		writeText(w, http.StatusBadRequest, "channel is required")
		return
	}
	var role token.Role
	switch chi.URLParam(r, "role") {
	case "publisher":
		role = token.RolePublisher
	case "subscriber":
		role = token.RoleSubscriber
	default:
		writeText(w, http.StatusBadRequest, "role is incorrect")
		return
	}
	if uid == "" {
		writeText(w, http.StatusBadRequest, "uid is required")
		return
	}
	h.respondRTCToken(w, r, token.Request{Channel: channel, UID: uid, Role: role, TTLSeconds: h.ttls.Legacy})
}

// rtcTypedToken serves GET /rtc/{channel}/{role}/{tokentype}/{uid}.json.
func (h *Handlers) rtcTypedToken(w http.ResponseWriter, r *http.Request) {
	channel, uid := chi.URLParam(r, "channel"), chi.URLParam(r, "uid")
	if channel == "" {
		writeText(w, http.StatusBadRequest, "channel is required")
		return
	}
	var role token.Role
	switch chi.URLParam(r, "role") {
	case "publisher":
		role = token.RolePublisher
	case "audience":
		role = token.RoleSubscriber
	default:
		writeText(w, http.StatusBadRequest, "role is incorrect")
		return
	}
	if uid == "" {
		writeText(w, http.StatusBadRequest, "uid is required")
		return
	}

	req := token.Request{Channel: channel, UID: uid, Role: role, TTLSeconds: h.ttls.LegacyTyped}
	switch chi.URLParam(r, "tokentype") {
	case "userAccount":
		req.AccountUID = true
	case "uid":
	default:
		writeText(w, http.StatusBadRequest, "token type is invalid")
		return
	}
	h.respondRTCToken(w, r, req)
}

func (h *Handlers) respondRTCToken(w http.ResponseWriter, r *http.Request, req token.Request) {
	tok, err := h.issuer.Issue(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"rtcToken": tok.Value})
}

// legacyStartRecording serves POST /start-recording/{channel}.json.
func (h *Handlers) legacyStartRecording(w http.ResponseWriter, r *http.Request) {
	req := schema.LegacyStartRecordingRequest{Channel: chi.URLParam(r, "channel")}
	if err := h.validator.Decode(r.Body, &req); err != nil {
		writeError(w, r, err)
		return
	}
	h.respondRecordingStart(w, r, req.Channel, req.UID.String())
}

// legacyStopRecording serves POST /stop-recording/{channel}.json.
func (h *Handlers) legacyStopRecording(w http.ResponseWriter, r *http.Request) {
	req := schema.LegacyStopRecordingRequest{Channel: chi.URLParam(r, "channel")}
	if err := h.validator.Decode(r.Body, &req); err != nil {
		writeError(w, r, err)
		return
	}
	h.respondStop(w, r, recordingJob(req.Channel, req.UID.String(), req.ResourceID, req.SID))
}

type sessionView struct {
	ID         string   `json:"id"`
	State      string   `json:"state"`
	ResourceID string   `json:"resourceId,omitempty"`
	JobID      string   `json:"jobId,omitempty"`
	UIDs       []string `json:"uids,omitempty"`
	StopReason string   `json:"stopReason,omitempty"`
	Error      string   `json:"error,omitempty"`
	CreatedAt  int64    `json:"createdAt"`
}

func viewOf(s *session.Session) *sessionView {
	v := &sessionView{
		ID:         s.ID,
		State:      s.State().String(),
		ResourceID: s.ProviderResourceID(),
		JobID:      s.ProviderJobID(),
		UIDs:       s.ParticipantUIDs(),
		StopReason: s.StopReason(),
		CreatedAt:  s.CreatedAt.UnixMilli(),
	}
	if err := s.Err(); err != nil {
		v.Error = err.Error()
	}
	return v
}

// channelStatus serves GET /v1/channels/{channel}/sessions: the latest
// recording and transcription session known to this process.
func (h *Handlers) channelStatus(w http.ResponseWriter, r *http.Request) {
	channel := chi.URLParam(r, "channel")
	out := map[string]*sessionView{}
	for _, kind := range []session.Kind{session.KindRecording, session.KindTranscription} {
		if s, ok := h.sessions.Current(channel, kind); ok {
			out[kind.String()] = viewOf(s)
		}
	}
	if len(out) == 0 {
		writeError(w, r, session.ErrSessionNotFound)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

type transitionView struct {
	SessionID string `json:"sessionId"`
	Kind      string `json:"kind"`
	From      string `json:"from"`
	To        string `json:"to"`
	Reason    string `json:"reason,omitempty"`
	Error     string `json:"error,omitempty"`
	At        int64  `json:"at"`
}

const defaultHistoryLimit = 50

// channelHistory serves GET /v1/channels/{channel}/history from the session journal.
func (h *Handlers) channelHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeText(w, http.StatusNotFound, store.ErrDisabled.Error())
		return
	}
	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 500 {
			writeText(w, http.StatusBadRequest, "limit is invalid")
			return
		}
		limit = n
	}

	list, err := h.history.History(r.Context(), chi.URLParam(r, "channel"), limit)
	if err != nil {
		if errors.Is(err, store.ErrDisabled) {
			writeText(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, r, err)
		return
	}
	out := make([]transitionView, 0, len(list))
	for _, t := range list {
		out = append(out, transitionView{
			SessionID: t.SessionID,
			Kind:      t.Kind,
			From:      t.From,
			To:        t.To,
			Reason:    t.Reason,
			Error:     t.Error,
			At:        t.At.UnixMilli(),
		})
	}
	writeJSON(w, http.StatusOK, out)
}
