package token

import (
	"context"
	"errors"
	"testing"
	"time"

	rtctokenbuilder "github.com/AgoraIO/Tools/DynamicKey/AgoraDynamicKey/go/src/rtctokenbuilder2"
)

const (
	testAppID   = "970ca35de60c44645bbae8a215061b33"
	testAppCert = "5cfd2fd1755d40ecb72977518be15d3b"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		in      string
		want    Role
		wantErr bool
	}{
		{"publisher", RolePublisher, false},
		{"subscriber", RoleSubscriber, false},
		{"audience", RoleSubscriber, false},
		{"", 0, true},
		{"admin", 0, true},
		{"Publisher", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRole(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidRole) {
					t.Errorf("expected ErrInvalidRole, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestToken_Expiry(t *testing.T) {
	issued := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	tok := Token{IssuedAt: issued, TTLSeconds: 3600}

	if got := tok.ExpiresAt(); !got.Equal(issued.Add(time.Hour)) {
		t.Errorf("unexpected expiry: %v", got)
	}
	if got := tok.WarnAt(30 * time.Second); !got.Equal(issued.Add(time.Hour - 30*time.Second)) {
		t.Errorf("unexpected warn time: %v", got)
	}
	if got := tok.WarnAt(2 * time.Hour); !got.Equal(issued) {
		t.Errorf("expected warn time clamped to issue time, got %v", got)
	}
}

type builderCall struct {
	uid     uint32
	account string
	role    rtctokenbuilder.Role
	expire  uint32
}

func newFakeIssuer(calls *[]builderCall) *AgoraIssuer {
	i := NewAgoraIssuer(testAppID, testAppCert)
	i.now = func() time.Time { return time.Unix(1700000000, 0) }
	i.buildUID = func(_, _, _ string, uid uint32, role rtctokenbuilder.Role, tokenExpire, _ uint32) (string, error) {
		*calls = append(*calls, builderCall{uid: uid, role: role, expire: tokenExpire})
		return "uid-token", nil
	}
	i.buildAccount = func(_, _, _, account string, role rtctokenbuilder.Role, tokenExpire, _ uint32) (string, error) {
		*calls = append(*calls, builderCall{account: account, role: role, expire: tokenExpire})
		return "account-token", nil
	}
	return i
}

func TestAgoraIssuer_SelectsBuilder(t *testing.T) {
	tests := []struct {
		name      string
		req       Request
		wantValue string
	}{
		{"numeric uid", Request{Channel: "room1", UID: "1234", Role: RolePublisher, TTLSeconds: 3600}, "uid-token"},
		{"string account", Request{Channel: "room1", UID: "alice", Role: RoleSubscriber, TTLSeconds: 600}, "account-token"},
		{"forced account", Request{Channel: "room1", UID: "42", Role: RolePublisher, AccountUID: true, TTLSeconds: 600}, "account-token"},
		{"uid overflows uint32", Request{Channel: "room1", UID: "4294967296", Role: RolePublisher, TTLSeconds: 45}, "account-token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls []builderCall
			i := newFakeIssuer(&calls)

			tok, err := i.Issue(context.Background(), tt.req)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tok.Value != tt.wantValue {
				t.Errorf("expected %q, got %q", tt.wantValue, tok.Value)
			}
			if len(calls) != 1 {
				t.Fatalf("expected 1 builder call, got %d", len(calls))
			}
			if calls[0].expire != tt.req.TTLSeconds {
				t.Errorf("expected expire %d, got %d", tt.req.TTLSeconds, calls[0].expire)
			}
			if tok.UID != tt.req.UID || tok.Channel != tt.req.Channel || tok.Role != tt.req.Role {
				t.Errorf("token does not echo request: %+v", tok)
			}
			if !tok.IssuedAt.Equal(time.Unix(1700000000, 0)) {
				t.Errorf("unexpected issue time: %v", tok.IssuedAt)
			}
		})
	}
}

func TestAgoraIssuer_MapsRoles(t *testing.T) {
	var calls []builderCall
	i := newFakeIssuer(&calls)

	_, _ = i.Issue(context.Background(), Request{Channel: "c", UID: "1", Role: RolePublisher, TTLSeconds: 10})
	_, _ = i.Issue(context.Background(), Request{Channel: "c", UID: "2", Role: RoleSubscriber, TTLSeconds: 10})

	var pub, sub rtctokenbuilder.Role = rtctokenbuilder.RolePublisher, rtctokenbuilder.RoleSubscriber
	if calls[0].role != pub {
		t.Errorf("expected publisher role, got %v", calls[0].role)
	}
	if calls[1].role != sub {
		t.Errorf("expected subscriber role, got %v", calls[1].role)
	}
}

func TestAgoraIssuer_Errors(t *testing.T) {
	unconfigured := NewAgoraIssuer("", "")
	if _, err := unconfigured.Issue(context.Background(), Request{Channel: "c", UID: "1", Role: RolePublisher}); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured, got %v", err)
	}

	var calls []builderCall
	i := newFakeIssuer(&calls)
	if _, err := i.Issue(context.Background(), Request{Channel: "c", UID: "1"}); !errors.Is(err, ErrInvalidRole) {
		t.Errorf("expected ErrInvalidRole, got %v", err)
	}

	boom := errors.New("boom")
	i.buildUID = func(_, _, _ string, _ uint32, _ rtctokenbuilder.Role, _, _ uint32) (string, error) {
		return "", boom
	}
	if _, err := i.Issue(context.Background(), Request{Channel: "c", UID: "1", Role: RolePublisher}); !errors.Is(err, boom) {
		t.Errorf("expected wrapped builder error, got %v", err)
	}
}

func TestAgoraIssuer_RealBuilder(t *testing.T) {
	i := NewAgoraIssuer(testAppID, testAppCert)

	tok, err := i.Issue(context.Background(), Request{Channel: "room1", UID: "1", Role: RolePublisher, TTLSeconds: 3600})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tok.Value == "" {
		t.Error("expected a signed token")
	}
}

func TestDevIssuer(t *testing.T) {
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	i := &DevIssuer{now: func() time.Time { return at }}

	tok, err := i.Issue(context.Background(), Request{Channel: "room1", UID: "7", Role: RolePublisher, TTLSeconds: 60})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if tok.Value == "" || tok.Value[:4] != "dev." {
		t.Errorf("unexpected token value %q", tok.Value)
	}
	if !tok.ExpiresAt().Equal(at.Add(time.Minute)) {
		t.Errorf("unexpected expiry %v", tok.ExpiresAt())
	}

	if _, err := i.Issue(context.Background(), Request{Channel: "room1"}); err == nil {
		t.Error("expected error without uid")
	}
}
