// Package agora implements provider.Client against the Agora cloud recording
// and real-time speech-to-text REST APIs.
package agora

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"rtc-session-orchestrator/internal/observability/metrics"
	"rtc-session-orchestrator/internal/service/provider"
	"rtc-session-orchestrator/internal/service/token"
)

const maxResponseBytes = 1 << 20

// StorageConfig is the third-party bucket recordings are uploaded to.
type StorageConfig struct {
	Vendor    int
	Region    int
	Bucket    string
	AccessKey string
	SecretKey string
}

// RecordingConfig configures cloud recording jobs.
type RecordingConfig struct {
	Mode           string   // mix, individual or web
	MaxIdleTime    int      // seconds without media before the provider ends the job
	FileNamePrefix []string // a millisecond timestamp is appended per job
	AVFileTypes    []string
	Storage        StorageConfig
}

// TranscriptionConfig configures speech-to-text jobs.
type TranscriptionConfig struct {
	Languages   []string
	MaxIdleTime int
}

// Config holds the client configuration.
type Config struct {
	BaseURL        string
	AppID          string
	CustomerKey    string
	CustomerSecret string
	Timeout        time.Duration
	Recording      RecordingConfig
	Transcription  TranscriptionConfig
}

// Client calls the provider REST API with HTTP basic auth.
type Client struct {
	cfg     Config
	http    *http.Client
	now     func() time.Time
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// New creates a provider client.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Recording.Mode == "" {
		cfg.Recording.Mode = "mix"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		now:     time.Now,
		metrics: metrics.DefaultMetrics,
		logger:  log.With().Str("component", "agora-client").Logger(),
	}
}

var _ provider.Client = (*Client)(nil)

// Acquire obtains a recording resourceId or a speech-to-text builder token.
func (c *Client) Acquire(ctx context.Context, kind provider.Kind, channel, uid string) (provider.Resource, error) {
	res := provider.Resource{Kind: kind, Channel: channel, UID: uid}
	switch kind {
	case provider.KindRecording:
		var out struct {
			ResourceID string `json:"resourceId"`
		}
		body := recordingRequest{Cname: channel, UID: uid, ClientRequest: struct{}{}}
		if _, err := c.do(ctx, "recording.acquire", http.MethodPost, c.recordingPath("acquire"), body, &out); err != nil {
			return provider.Resource{}, err
		}
		if out.ResourceID == "" {
			return provider.Resource{}, missing("recording.acquire", "resourceId")
		}
		res.ID = out.ResourceID
	case provider.KindTranscription:
		var out struct {
			TokenName string `json:"tokenName"`
		}
		body := map[string]string{"instanceId": channel}
		if _, err := c.do(ctx, "transcription.acquire", http.MethodPost, c.sttPath("builderTokens"), body, &out); err != nil {
			return provider.Resource{}, err
		}
		if out.TokenName == "" {
			return provider.Resource{}, missing("transcription.acquire", "tokenName")
		}
		res.ID = out.TokenName
	default:
		return provider.Resource{}, fmt.Errorf("acquire: unsupported job kind %v", kind)
	}
	return res, nil
}

// Start starts the job on an acquired resource. Recording expects one token;
// transcription expects the subscriber bot token followed by the publisher bot token.
func (c *Client) Start(ctx context.Context, res provider.Resource, tokens []token.Token) (provider.Job, error) {
	job := provider.Job{Resource: res}
	switch res.Kind {
	case provider.KindRecording:
		if len(tokens) < 1 {
			return provider.Job{}, fmt.Errorf("recording start: expected 1 token, got %d", len(tokens))
		}
		var out struct {
			SID string `json:"sid"`
		}
		path := c.recordingPath("resourceid", res.ID, "mode", c.cfg.Recording.Mode, "start")
		if _, err := c.do(ctx, "recording.start", http.MethodPost, path, c.recordingStartBody(res, tokens[0]), &out); err != nil {
			return provider.Job{}, err
		}
		if out.SID == "" {
			return provider.Job{}, missing("recording.start", "sid")
		}
		job.ID = out.SID
	case provider.KindTranscription:
		if len(tokens) < 2 {
			return provider.Job{}, fmt.Errorf("transcription start: expected 2 tokens, got %d", len(tokens))
		}
		var out struct {
			TaskID string `json:"taskId"`
		}
		path := c.sttPath("tasks") + builderQuery(res.ID)
		if _, err := c.do(ctx, "transcription.start", http.MethodPost, path, c.transcriptionStartBody(res, tokens[0], tokens[1]), &out); err != nil {
			return provider.Job{}, err
		}
		if out.TaskID == "" {
			return provider.Job{}, missing("transcription.start", "taskId")
		}
		job.ID = out.TaskID
	default:
		return provider.Job{}, fmt.Errorf("start: unsupported job kind %v", res.Kind)
	}
	return job, nil
}

// Stop ends the job and returns the provider acknowledgement body.
func (c *Client) Stop(ctx context.Context, job provider.Job) (json.RawMessage, error) {
	switch job.Kind {
	case provider.KindRecording:
		body := recordingRequest{Cname: job.Channel, UID: job.UID, ClientRequest: struct{}{}}
		path := c.recordingPath("resourceid", job.Resource.ID, "sid", job.ID, "mode", c.cfg.Recording.Mode, "stop")
		return c.do(ctx, "recording.stop", http.MethodPost, path, body, nil)
	case provider.KindTranscription:
		path := c.sttPath("tasks", job.ID) + builderQuery(job.Resource.ID)
		return c.do(ctx, "transcription.stop", http.MethodDelete, path, nil, nil)
	default:
		return nil, fmt.Errorf("stop: unsupported job kind %v", job.Kind)
	}
}

// Query returns the provider status body for the job.
func (c *Client) Query(ctx context.Context, job provider.Job) (json.RawMessage, error) {
	switch job.Kind {
	case provider.KindRecording:
		path := c.recordingPath("resourceid", job.Resource.ID, "sid", job.ID, "mode", c.cfg.Recording.Mode, "query")
		return c.do(ctx, "recording.query", http.MethodGet, path, nil, nil)
	case provider.KindTranscription:
		path := c.sttPath("tasks", job.ID) + builderQuery(job.Resource.ID)
		return c.do(ctx, "transcription.query", http.MethodGet, path, nil, nil)
	default:
		return nil, fmt.Errorf("query: unsupported job kind %v", job.Kind)
	}
}

func (c *Client) do(ctx context.Context, op, method, path string, in, out any) (json.RawMessage, error) {
	start := time.Now()
	logger := c.logger.With().Str("op", op).Str("method", method).Logger()

	var reader io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("%s: marshal request: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", op, err)
	}
	req.SetBasicAuth(c.cfg.CustomerKey, c.cfg.CustomerSecret)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.RecordProviderRequest(op, "error", time.Since(start).Seconds())
		logger.Error().Err(err).Msg("Provider request failed")
		return nil, &provider.UpstreamError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	c.metrics.RecordProviderRequest(op, strconv.Itoa(resp.StatusCode), time.Since(start).Seconds())
	if err != nil {
		return nil, &provider.UpstreamError{Op: op, StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		logger.Warn().
			Int("status", resp.StatusCode).
			Str("body", string(raw)).
			Msg("Provider returned non-success status")
		return nil, &provider.UpstreamError{Op: op, StatusCode: resp.StatusCode, Body: string(raw)}
	}

	if len(bytes.TrimSpace(raw)) == 0 {
		raw = []byte("{}")
	}
	if !json.Valid(raw) {
		return nil, &provider.UpstreamError{Op: op, StatusCode: resp.StatusCode, Body: string(raw), Err: errInvalidJSON}
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return nil, &provider.UpstreamError{Op: op, StatusCode: resp.StatusCode, Body: string(raw), Err: err}
		}
	}

	logger.Debug().
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Msg("Provider request completed")
	return json.RawMessage(raw), nil
}

func (c *Client) recordingPath(parts ...string) string {
	return "/v1/apps/" + url.PathEscape(c.cfg.AppID) + "/cloud_recording/" + joinEscaped(parts)
}

func (c *Client) sttPath(parts ...string) string {
	return "/v1/projects/" + url.PathEscape(c.cfg.AppID) + "/rtsc/speech-to-text/" + joinEscaped(parts)
}

func joinEscaped(parts []string) string {
	escaped := make([]string, len(parts))
	for i, p := range parts {
		escaped[i] = url.PathEscape(p)
	}
	return strings.Join(escaped, "/")
}

func builderQuery(builderToken string) string {
	return "?" + url.Values{"builderToken": {builderToken}}.Encode()
}

func missing(op, field string) error {
	return &provider.UpstreamError{Op: op, StatusCode: http.StatusOK, Err: fmt.Errorf("%w: %s", provider.ErrMissingField, field)}
}
