// Package auth issues and verifies the signed member tokens handed out
// when a participant joins a room, and hashes room passcodes.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/parcener/backend/internal/common"
)

const (
	defaultMemberTTL = 72 * time.Hour

	roomClaim = "room_id"
)

// Tokens signs and parses member tokens. A member token binds one member
// identity to one room; it carries no user account semantics.
type Tokens struct {
	secret    []byte
	ttl       time.Duration
	issuer    string
	audience  string
	clockSkew time.Duration
	now       func() time.Time
	signer    jwa.SignatureAlgorithm
}

// TokensConfig configures the token service.
type TokensConfig struct {
	Secret    string
	TTL       time.Duration
	Issuer    string
	Audience  string
	ClockSkew time.Duration
}

// NewTokens constructs a Tokens instance with sane defaults.
func NewTokens(cfg TokensConfig) (*Tokens, error) {
	secret := strings.TrimSpace(cfg.Secret)
	if secret == "" {
		return nil, errors.New("auth: secret is required")
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultMemberTTL
	}
	issuer := strings.TrimSpace(cfg.Issuer)
	if issuer == "" {
		issuer = "parcener"
	}
	audience := strings.TrimSpace(cfg.Audience)
	if audience == "" {
		audience = "parcener-app"
	}
	clockSkew := cfg.ClockSkew
	if clockSkew < 0 {
		clockSkew = 0
	}
	return &Tokens{
		secret:    []byte(secret),
		ttl:       ttl,
		issuer:    issuer,
		audience:  audience,
		clockSkew: clockSkew,
		now:       time.Now,
		signer:    jwa.HS256,
	}, nil
}

// WithNow allows tests to override the time provider.
func (t *Tokens) WithNow(now func() time.Time) {
	if now != nil {
		t.now = now
	}
}

// Issue signs a token for the member scoped to the room.
func (t *Tokens) Issue(memberID, roomID uuid.UUID) (string, time.Time, error) {
	now := t.now()
	expiresAt := now.Add(t.ttl)
	token, err := jwt.NewBuilder().
		Subject(memberID.String()).
		Issuer(t.issuer).
		Audience([]string{t.audience}).
		IssuedAt(now).
		NotBefore(now.Add(-t.clockSkew)).
		Expiration(expiresAt).
		Claim(roomClaim, roomID.String()).
		Build()
	if err != nil {
		return "", time.Time{}, err
	}
	signed, err := jwt.Sign(token, jwt.WithKey(t.signer, t.secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return string(signed), expiresAt, nil
}

// Parse verifies the token signature and validity window and returns the
// member and room identities it carries.
func (t *Tokens) Parse(token string) (uuid.UUID, uuid.UUID, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return uuid.Nil, uuid.Nil, common.NewAppError("UNAUTHORIZED", "missing token", httpStatusUnauthorized, nil)
	}
	algorithm, err := extractTokenAlgorithm(trimmed)
	if err != nil {
		return uuid.Nil, uuid.Nil, common.NewAppError("UNAUTHORIZED", "invalid token", httpStatusUnauthorized, err)
	}
	if algorithm != t.signer {
		return uuid.Nil, uuid.Nil, common.NewAppError("UNAUTHORIZED", "invalid token", httpStatusUnauthorized, fmt.Errorf("unexpected token algorithm %s", algorithm))
	}
	parsed, err := jwt.ParseString(trimmed, jwt.WithKey(algorithm, t.secret))
	if err != nil {
		return uuid.Nil, uuid.Nil, common.NewAppError("UNAUTHORIZED", "invalid token", httpStatusUnauthorized, err)
	}
	if err := t.validate(parsed); err != nil {
		return uuid.Nil, uuid.Nil, common.NewAppError("UNAUTHORIZED", "invalid token", httpStatusUnauthorized, err)
	}
	memberID, err := uuid.Parse(parsed.Subject())
	if err != nil {
		return uuid.Nil, uuid.Nil, common.NewAppError("UNAUTHORIZED", "invalid token", httpStatusUnauthorized, err)
	}
	raw, ok := parsed.Get(roomClaim)
	if !ok {
		return uuid.Nil, uuid.Nil, common.NewAppError("UNAUTHORIZED", "invalid token", httpStatusUnauthorized, errors.New("auth: token missing room claim"))
	}
	roomStr, ok := raw.(string)
	if !ok {
		return uuid.Nil, uuid.Nil, common.NewAppError("UNAUTHORIZED", "invalid token", httpStatusUnauthorized, errors.New("auth: malformed room claim"))
	}
	roomID, err := uuid.Parse(roomStr)
	if err != nil {
		return uuid.Nil, uuid.Nil, common.NewAppError("UNAUTHORIZED", "invalid token", httpStatusUnauthorized, err)
	}
	return memberID, roomID, nil
}

func (t *Tokens) validate(tok jwt.Token) error {
	now := t.now()
	options := []jwt.ValidateOption{
		jwt.WithClock(jwt.ClockFunc(func() time.Time { return now })),
		jwt.WithIssuer(t.issuer),
		jwt.WithAudience(t.audience),
	}
	if t.clockSkew > 0 {
		options = append(options, jwt.WithAcceptableSkew(t.clockSkew))
	}
	return jwt.Validate(tok, options...)
}

func extractTokenAlgorithm(token string) (jwa.SignatureAlgorithm, error) {
	message, err := jws.ParseString(token)
	if err != nil {
		return "", err
	}
	signatures := message.Signatures()
	if len(signatures) == 0 {
		return "", errors.New("auth: token contains no signatures")
	}
	var algorithm jwa.SignatureAlgorithm
	for _, sig := range signatures {
		headers := sig.ProtectedHeaders()
		if headers == nil {
			return "", errors.New("auth: token missing protected headers")
		}
		alg := headers.Algorithm()
		if alg == "" {
			return "", errors.New("auth: token missing algorithm")
		}
		if alg == jwa.NoSignature {
			return "", errors.New("auth: token uses none algorithm")
		}
		if algorithm == "" {
			algorithm = alg
			continue
		}
		if algorithm != alg {
			return "", errors.New("auth: token signatures disagree on algorithm")
		}
	}
	return algorithm, nil
}
