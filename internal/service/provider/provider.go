// Package provider defines the boundary to the external RTC cloud provider:
// resource acquisition and the start/stop/query lifecycle of recording and
// speech-to-text jobs.
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"rtc-session-orchestrator/internal/service/token"
)

// Kind identifies the type of provider-side job.
type Kind int

const (
	KindRecording Kind = iota + 1
	KindTranscription
)

// String returns the lower-case kind name used in logs, metrics and routes.
func (k Kind) String() string {
	switch k {
	case KindRecording:
		return "recording"
	case KindTranscription:
		return "transcription"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Resource is an acquired provider handle. For recordings ID is the
// resourceId; for transcription it is the builder token.
type Resource struct {
	Kind    Kind
	Channel string
	UID     string
	ID      string
}

// Job is a started provider job. ID is the recording sid or the transcription taskId.
type Job struct {
	Resource
	ID string
}

// ResourceAcquirer obtains a job handle for a channel.
type ResourceAcquirer interface {
	Acquire(ctx context.Context, kind Kind, channel, uid string) (Resource, error)
}

// JobRunner drives provider jobs. Stop and Query return the provider body unchanged.
type JobRunner interface {
	Start(ctx context.Context, res Resource, tokens []token.Token) (Job, error)
	Stop(ctx context.Context, job Job) (json.RawMessage, error)
	Query(ctx context.Context, job Job) (json.RawMessage, error)
}

// Client is the full provider surface used by the session manager.
type Client interface {
	ResourceAcquirer
	JobRunner
}

// ErrMissingField is wrapped by UpstreamError when a success response lacks a required field.
var ErrMissingField = errors.New("response missing required field")

// UpstreamError reports a failed provider call. StatusCode is zero when the
// request never produced an HTTP response.
type UpstreamError struct {
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *UpstreamError) Error() string {
	switch {
	case e.StatusCode == 0:
		return fmt.Sprintf("provider %s: %v", e.Op, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("provider %s: status %d: %v", e.Op, e.StatusCode, e.Err)
	default:
		return fmt.Sprintf("provider %s: status %d: %s", e.Op, e.StatusCode, e.Body)
	}
}

func (e *UpstreamError) Unwrap() error { return e.Err }
