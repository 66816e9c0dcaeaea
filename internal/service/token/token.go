// Package token mints and renews RTC access tokens.
package token

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Role is the privilege a token grants inside a channel.
type Role int

const (
	RolePublisher Role = iota + 1
	RoleSubscriber
)

// String returns the wire name of the role.
func (r Role) String() string {
	switch r {
	case RolePublisher:
		return "publisher"
	case RoleSubscriber:
		return "subscriber"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

var (
	ErrInvalidRole   = errors.New("role is incorrect")
	ErrNotConfigured = errors.New("token issuer is not configured")
)

// ParseRole maps a request role name to a Role. "audience" is accepted as
// an alias for subscriber.
func ParseRole(s string) (Role, error) {
	switch s {
	case "publisher":
		return RolePublisher, nil
	case "subscriber", "audience":
		return RoleSubscriber, nil
	default:
		return 0, ErrInvalidRole
	}
}

// Token is an issued access token. Values are never modified after issue;
// renewal produces a new Token.
type Token struct {
	Value      string
	UID        string
	Channel    string
	Role       Role
	IssuedAt   time.Time
	TTLSeconds uint32
}

// ExpiresAt returns the instant the token stops being accepted.
func (t Token) ExpiresAt() time.Time {
	return t.IssuedAt.Add(time.Duration(t.TTLSeconds) * time.Second)
}

// WarnAt returns when an expiry warning should fire for the given lead.
// It never returns a time before IssuedAt.
func (t Token) WarnAt(lead time.Duration) time.Time {
	at := t.ExpiresAt().Add(-lead)
	if at.Before(t.IssuedAt) {
		return t.IssuedAt
	}
	return at
}

// Request describes the token to mint.
type Request struct {
	Channel string
	UID     string
	Role    Role
	// AccountUID forces user-account semantics even for numeric uids.
	AccountUID bool
	TTLSeconds uint32
}

// Issuer mints signed access tokens.
type Issuer interface {
	Issue(ctx context.Context, req Request) (Token, error)
}
