package session

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"rtc-session-orchestrator/internal/service/provider"
	"rtc-session-orchestrator/internal/service/token"
)

type mockIssuer struct {
	mu   sync.Mutex
	reqs []token.Request
	err  error
}

func (m *mockIssuer) Issue(_ context.Context, req token.Request) (token.Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reqs = append(m.reqs, req)
	if m.err != nil {
		return token.Token{}, m.err
	}
	return token.Token{
		Value:      "tok-" + req.UID,
		UID:        req.UID,
		Channel:    req.Channel,
		Role:       req.Role,
		IssuedAt:   time.Now(),
		TTLSeconds: req.TTLSeconds,
	}, nil
}

type mockClient struct {
	mu sync.Mutex

	acquireErr error
	startErr   error
	stopErr    error
	queryErr   error

	// stopRelease, when set, blocks Stop until closed.
	stopRelease chan struct{}
	// queryRelease, when set, blocks Query until closed, ignoring ctx.
	queryRelease chan struct{}
	queryStarted chan struct{}

	calls       map[string]int
	startTokens []token.Token
	stopped     []provider.Job
}

func newMockClient() *mockClient {
	return &mockClient{calls: make(map[string]int)}
}

func (m *mockClient) count(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

func (m *mockClient) setQueryErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queryErr = err
}

func (m *mockClient) Acquire(_ context.Context, kind provider.Kind, channel, uid string) (provider.Resource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["acquire"]++
	if m.acquireErr != nil {
		return provider.Resource{}, m.acquireErr
	}
	id := "res_abc"
	if kind == provider.KindTranscription {
		id = "bt_1"
	}
	return provider.Resource{Kind: kind, Channel: channel, UID: uid, ID: id}, nil
}

func (m *mockClient) Start(_ context.Context, res provider.Resource, tokens []token.Token) (provider.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["start"]++
	m.startTokens = tokens
	if m.startErr != nil {
		return provider.Job{}, m.startErr
	}
	id := "sid_123"
	if res.Kind == provider.KindTranscription {
		id = "task_1"
	}
	return provider.Job{Resource: res, ID: id}, nil
}

func (m *mockClient) Stop(_ context.Context, job provider.Job) (json.RawMessage, error) {
	m.mu.Lock()
	m.calls["stop"]++
	m.stopped = append(m.stopped, job)
	release := m.stopRelease
	err := m.stopErr
	m.mu.Unlock()

	if release != nil {
		<-release
	}
	if err != nil {
		return nil, err
	}
	return json.RawMessage(`{"stopped":true}`), nil
}

func (m *mockClient) Query(ctx context.Context, _ provider.Job) (json.RawMessage, error) {
	m.mu.Lock()
	m.calls["query"]++
	release := m.queryRelease
	started := m.queryStarted
	m.mu.Unlock()

	if started != nil {
		select {
		case started <- struct{}{}:
		default:
		}
	}
	if release != nil {
		<-release
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.queryErr != nil {
		return nil, m.queryErr
	}
	return json.RawMessage(`{"status":"running"}`), nil
}

type transition struct {
	from, to State
}

type recordingObserver struct {
	mu          sync.Mutex
	transitions []transition
}

func (o *recordingObserver) SessionTransitioned(_ *Session, from, to State) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.transitions = append(o.transitions, transition{from, to})
}

func (o *recordingObserver) seen() []transition {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]transition(nil), o.transitions...)
}

func newTestManager(client *mockClient, interval time.Duration, observers ...Observer) (*Manager, *mockIssuer) {
	issuer := &mockIssuer{}
	cfg := DefaultConfig()
	cfg.HealthInterval = interval
	return NewManager(cfg, issuer, client, observers...), issuer
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool, message string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(message)
}
