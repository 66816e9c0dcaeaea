package token

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"
)

// DevIssuer mints unsigned placeholder tokens for local runs against the mock
// provider. They are rejected by the real RTC service.
type DevIssuer struct {
	now func() time.Time
}

func NewDevIssuer() *DevIssuer {
	return &DevIssuer{now: time.Now}
}

func (i *DevIssuer) Issue(_ context.Context, req Request) (Token, error) {
	if req.Channel == "" || req.UID == "" {
		return Token{}, fmt.Errorf("dev token: channel and uid are required")
	}
	issued := i.now()
	raw := fmt.Sprintf("%s:%s:%s:%d:%d", req.Channel, req.UID, req.Role, issued.Unix(), req.TTLSeconds)
	return Token{
		Value:      "dev." + base64.RawURLEncoding.EncodeToString([]byte(raw)),
		UID:        req.UID,
		Channel:    req.Channel,
		Role:       req.Role,
		IssuedAt:   issued,
		TTLSeconds: req.TTLSeconds,
	}, nil
}
