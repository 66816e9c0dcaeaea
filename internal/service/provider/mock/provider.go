// Package mock provides an in-memory provider for local runs without vendor credentials.
// Jobs live until stopped or killed; querying a missing job fails the way the
// real provider does once a job has ended on its side.
package mock

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/rs/zerolog/log"

	"rtc-session-orchestrator/internal/service/provider"
	"rtc-session-orchestrator/internal/service/token"
)

// Provider implements provider.Client in memory.
type Provider struct {
	mu      sync.Mutex
	counter int
	jobs    map[string]provider.Job
	calls   map[string]int
	fail    map[string]error
}

// New creates an empty mock provider.
func New() *Provider {
	return &Provider{
		jobs:  make(map[string]provider.Job),
		calls: make(map[string]int),
		fail:  make(map[string]error),
	}
}

var _ provider.Client = (*Provider)(nil)

// FailNext makes the next call of op ("acquire", "start", "stop", "query") return err.
func (p *Provider) FailNext(op string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fail[op] = err
}

// Kill removes a running job as if the provider ended it.
func (p *Provider) Kill(jobID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.jobs, jobID)
}

// Calls returns how many times op was invoked.
func (p *Provider) Calls(op string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[op]
}

// Running returns the number of live jobs.
func (p *Provider) Running() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.jobs)
}

func (p *Provider) enter(op string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls[op]++
	if err, ok := p.fail[op]; ok {
		delete(p.fail, op)
		return err
	}
	return nil
}

func (p *Provider) nextID(prefix string) string {
	p.counter++
	return fmt.Sprintf("%s_%d", prefix, p.counter)
}

// Acquire returns a fresh resource handle.
func (p *Provider) Acquire(_ context.Context, kind provider.Kind, channel, uid string) (provider.Resource, error) {
	if err := p.enter("acquire"); err != nil {
		return provider.Resource{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	prefix := "res"
	if kind == provider.KindTranscription {
		prefix = "bt"
	}
	return provider.Resource{Kind: kind, Channel: channel, UID: uid, ID: p.nextID(prefix)}, nil
}

// Start registers a running job.
func (p *Provider) Start(_ context.Context, res provider.Resource, tokens []token.Token) (provider.Job, error) {
	if err := p.enter("start"); err != nil {
		return provider.Job{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	prefix := "sid"
	if res.Kind == provider.KindTranscription {
		prefix = "task"
	}
	job := provider.Job{Resource: res, ID: p.nextID(prefix)}
	p.jobs[job.ID] = job
	log.Debug().
		Str("channel", res.Channel).
		Str("kind", res.Kind.String()).
		Str("jobId", job.ID).
		Int("tokens", len(tokens)).
		Msg("Mock job started")
	return job, nil
}

// Stop removes the job.
func (p *Provider) Stop(_ context.Context, job provider.Job) (json.RawMessage, error) {
	if err := p.enter("stop"); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.jobs[job.ID]; !ok {
		return nil, notFound(job.Kind.String() + ".stop")
	}
	delete(p.jobs, job.ID)
	return json.RawMessage(fmt.Sprintf(`{"resourceId":%q,"sid":%q,"status":"stopped"}`, job.Resource.ID, job.ID)), nil
}

// Query reports the job as running, or fails if it is gone.
func (p *Provider) Query(_ context.Context, job provider.Job) (json.RawMessage, error) {
	if err := p.enter("query"); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.jobs[job.ID]; !ok {
		return nil, notFound(job.Kind.String() + ".query")
	}
	return json.RawMessage(fmt.Sprintf(`{"resourceId":%q,"sid":%q,"status":"running"}`, job.Resource.ID, job.ID)), nil
}

func notFound(op string) error {
	return &provider.UpstreamError{Op: op, StatusCode: http.StatusNotFound, Body: `{"code":404,"reason":"job not found"}`}
}
