package token

import (
	"context"
	"fmt"
	"strconv"
	"time"

	rtctokenbuilder "github.com/AgoraIO/Tools/DynamicKey/AgoraDynamicKey/go/src/rtctokenbuilder2"
	"github.com/rs/zerolog/log"

	"rtc-session-orchestrator/internal/observability/metrics"
)

type (
	uidBuilder     func(appID, appCertificate, channel string, uid uint32, role rtctokenbuilder.Role, tokenExpire, privilegeExpire uint32) (string, error)
	accountBuilder func(appID, appCertificate, channel, account string, role rtctokenbuilder.Role, tokenExpire, privilegeExpire uint32) (string, error)
)

// AgoraIssuer signs tokens with the vendor's dynamic key builder.
// Numeric uids are signed as integer uids, anything else as a user account.
type AgoraIssuer struct {
	appID          string
	appCertificate string
	now            func() time.Time
	buildUID       uidBuilder
	buildAccount   accountBuilder
	metrics        *metrics.Metrics
}

// NewAgoraIssuer creates an issuer for the given project credentials.
func NewAgoraIssuer(appID, appCertificate string) *AgoraIssuer {
	return &AgoraIssuer{
		appID:          appID,
		appCertificate: appCertificate,
		now:            time.Now,
		buildUID:       rtctokenbuilder.BuildTokenWithUid,
		buildAccount:   rtctokenbuilder.BuildTokenWithUserAccount,
		metrics:        metrics.DefaultMetrics,
	}
}

// Issue mints a token whose token and privilege expiry both equal req.TTLSeconds.
func (i *AgoraIssuer) Issue(_ context.Context, req Request) (Token, error) {
	if i.appID == "" || i.appCertificate == "" {
		return Token{}, ErrNotConfigured
	}

	role, err := vendorRole(req.Role)
	if err != nil {
		return Token{}, err
	}

	issuedAt := i.now()
	var value string
	if uid, perr := strconv.ParseUint(req.UID, 10, 32); perr == nil && !req.AccountUID {
		value, err = i.buildUID(i.appID, i.appCertificate, req.Channel, uint32(uid), role, req.TTLSeconds, req.TTLSeconds)
	} else {
		value, err = i.buildAccount(i.appID, i.appCertificate, req.Channel, req.UID, role, req.TTLSeconds, req.TTLSeconds)
	}
	if err != nil {
		return Token{}, fmt.Errorf("build token for uid %s: %w", req.UID, err)
	}

	i.metrics.RecordTokenIssued(req.Role.String())
	log.Debug().
		Str("channel", req.Channel).
		Str("uid", req.UID).
		Str("role", req.Role.String()).
		Uint32("ttlSeconds", req.TTLSeconds).
		Msg("Token issued")

	return Token{
		Value:      value,
		UID:        req.UID,
		Channel:    req.Channel,
		Role:       req.Role,
		IssuedAt:   issuedAt,
		TTLSeconds: req.TTLSeconds,
	}, nil
}

func vendorRole(r Role) (rtctokenbuilder.Role, error) {
	var role rtctokenbuilder.Role
	switch r {
	case RolePublisher:
		role = rtctokenbuilder.RolePublisher
	case RoleSubscriber:
		role = rtctokenbuilder.RoleSubscriber
	default:
		return role, ErrInvalidRole
	}
	return role, nil
}
