// Package callback issues and verifies the signed tokens that verification
// providers present when they report an outcome out of band. A token is bound
// to one attempt of one applicant; it is handed to the provider when the
// attempt starts and never returned to the client.
package callback

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	id "loankyc/pkg/domain"
	dErrors "loankyc/pkg/domain-errors"
)

const (
	Issuer   = "loankyc"
	Audience = "provider-callback"

	// MinKeyLength is the shortest accepted HS256 signing key, in bytes.
	MinKeyLength = 32
)

// Grant is what a callback token authorizes: reporting the outcome of one attempt.
type Grant struct {
	ApplicationID id.ApplicationID
	ApplicantID   id.ApplicantID
	AttemptID     id.AttemptID
	Method        id.MethodID
}

// Claims are the JWT claims of a callback token.
type Claims struct {
	ApplicationID string `json:"application_id"`
	ApplicantID   string `json:"applicant_id"`
	AttemptID     string `json:"attempt_id"`
	Method        string `json:"method"`
	jwt.RegisteredClaims
}

type Tokens struct {
	signingKey []byte
	ttl        time.Duration
	now        func() time.Time
}

type Option func(*Tokens)

func WithClock(now func() time.Time) Option {
	return func(t *Tokens) {
		if now != nil {
			t.now = now
		}
	}
}

func NewTokens(signingKey []byte, ttl time.Duration, opts ...Option) (*Tokens, error) {
	if len(signingKey) < MinKeyLength {
		return nil, errors.New("callback signing key must be at least 32 bytes")
	}
	if ttl <= 0 {
		return nil, errors.New("callback token ttl must be positive")
	}
	t := &Tokens{
		signingKey: append([]byte(nil), signingKey...),
		ttl:        ttl,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Issue signs a token for grant that expires after the configured ttl.
func (t *Tokens) Issue(grant Grant) (string, error) {
	now := t.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		ApplicationID: grant.ApplicationID.String(),
		ApplicantID:   grant.ApplicantID.String(),
		AttemptID:     grant.AttemptID.String(),
		Method:        string(grant.Method),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    Issuer,
			Subject:   grant.AttemptID.String(),
			Audience:  []string{Audience},
			ID:        uuid.NewString(),
		},
	})
	signed, err := token.SignedString(t.signingKey)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign callback token")
	}
	return signed, nil
}

// Verify checks the signature, issuer, audience, and expiry of a token and
// returns the grant it carries.
//
// Errors: CodeUnauthorized for any token that does not verify.
func (t *Tokens) Verify(tokenString string) (*Grant, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return t.signingKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithAudience(Audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "callback token has expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid callback token")
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid callback token")
	}
	return claims.grant()
}

func (c *Claims) grant() (*Grant, error) {
	applicationID, err := id.ParseApplicationID(c.ApplicationID)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid callback token claims")
	}
	applicantID, err := id.ParseApplicantID(c.ApplicantID)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid callback token claims")
	}
	attemptID, err := id.ParseAttemptID(c.AttemptID)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid callback token claims")
	}
	method, err := id.ParseMethodID(c.Method)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid callback token claims")
	}
	return &Grant{
		ApplicationID: applicationID,
		ApplicantID:   applicantID,
		AttemptID:     attemptID,
		Method:        method,
	}, nil
}
