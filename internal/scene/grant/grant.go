// Package grant signs and verifies join grants: short-lived EdDSA JWTs that
// bind a relay join to a project and a user identity.
package grant

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/selight/designo/internal/platform/errors"
	"github.com/selight/designo/internal/platform/id"
)

// Claims captures validated grant claims.
type Claims struct {
	Issuer      string
	Audience    []string
	ExpiresAt   time.Time
	IssuedAt    time.Time
	JWTID       string
	ProjectID   string
	UserID      string
	DisplayName string
}

// Subject identifies who a grant is issued to.
type Subject struct {
	ProjectID   string
	UserID      string
	DisplayName string
}

type grantClaims struct {
	jwt.RegisteredClaims
	ProjectID   string `json:"project_id"`
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
}

// Issue signs a grant for subject.
func Issue(subject Subject, cfg IssuerConfig) (string, error) {
	if !cfg.Enabled() {
		return "", errors.New("join grant issuer is not configured")
	}
	if strings.TrimSpace(subject.ProjectID) == "" || strings.TrimSpace(subject.UserID) == "" {
		return "", errors.New("join grant needs project and user")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	jti, err := id.NewID()
	if err != nil {
		return "", fmt.Errorf("join grant id: %w", err)
	}
	now := cfg.Now().UTC()
	claims := grantClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			Audience:  jwt.ClaimStrings{cfg.Audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        jti,
		},
		ProjectID:   strings.TrimSpace(subject.ProjectID),
		UserID:      strings.TrimSpace(subject.UserID),
		DisplayName: strings.TrimSpace(subject.DisplayName),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims).SignedString(cfg.Key)
	if err != nil {
		return "", fmt.Errorf("sign join grant: %w", err)
	}
	return token, nil
}

// Validate verifies token and checks that it was issued for projectID.
func Validate(token string, projectID string, cfg VerifierConfig) (Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Claims{}, apperrors.New(apperrors.CodeJoinGrantInvalid, "join grant is required")
	}
	if !cfg.Enabled() || cfg.Issuer == "" || cfg.Audience == "" {
		return Claims{}, errors.New("join grant verifier is not configured")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	var parsed grantClaims
	_, err := jwt.ParseWithClaims(token, &parsed, func(*jwt.Token) (any, error) {
		return cfg.Key, nil
	},
		jwt.WithValidMethods([]string{"EdDSA"}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return Claims{}, mapJWTError(err)
	}

	if parsed.Issuer == "" || parsed.Issuer != cfg.Issuer {
		return Claims{}, mismatch("issuer", projectID)
	}
	if !audienceContains(parsed.Audience, cfg.Audience) {
		return Claims{}, mismatch("audience", projectID)
	}
	if parsed.ID == "" {
		return Claims{}, apperrors.New(apperrors.CodeJoinGrantInvalid, "join grant jti is required")
	}
	if parsed.ExpiresAt == nil {
		return Claims{}, apperrors.New(apperrors.CodeJoinGrantInvalid, "join grant exp is required")
	}

	now := cfg.Now().UTC()
	exp := parsed.ExpiresAt.Time.UTC()
	if !exp.After(now) {
		return Claims{}, apperrors.New(apperrors.CodeJoinGrantExpired, "join grant is expired")
	}
	if parsed.NotBefore != nil && now.Before(parsed.NotBefore.Time) {
		return Claims{}, apperrors.New(apperrors.CodeJoinGrantInvalid, "join grant not active yet")
	}
	if strings.TrimSpace(parsed.ProjectID) == "" || parsed.ProjectID != projectID {
		return Claims{}, mismatch("project_id", projectID)
	}
	if strings.TrimSpace(parsed.UserID) == "" {
		return Claims{}, apperrors.New(apperrors.CodeJoinGrantInvalid, "join grant user_id is required")
	}

	claims := Claims{
		Issuer:      parsed.Issuer,
		Audience:    []string(parsed.Audience),
		ExpiresAt:   exp,
		JWTID:       parsed.ID,
		ProjectID:   parsed.ProjectID,
		UserID:      parsed.UserID,
		DisplayName: parsed.DisplayName,
	}
	if parsed.IssuedAt != nil {
		claims.IssuedAt = parsed.IssuedAt.Time.UTC()
	}
	return claims, nil
}

func mismatch(field string, projectID string) error {
	return apperrors.New(apperrors.CodeJoinGrantMismatch, "join grant "+field+" mismatch").
		With("Field", field).
		With("ProjectID", projectID)
}

// mapJWTError translates jwt library errors to application errors.
func mapJWTError(err error) error {
	if errors.Is(err, jwt.ErrTokenSignatureInvalid) || errors.Is(err, jwt.ErrEd25519Verification) {
		return apperrors.Wrap(apperrors.CodeJoinGrantInvalid, "join grant signature is invalid", err)
	}
	if errors.Is(err, jwt.ErrTokenUnverifiable) {
		return apperrors.Wrap(apperrors.CodeJoinGrantInvalid, "join grant alg is invalid", err)
	}
	return apperrors.Wrap(apperrors.CodeJoinGrantInvalid, "join grant is invalid", err)
}

func audienceContains(aud jwt.ClaimStrings, value string) bool {
	for _, item := range aud {
		if item == value {
			return true
		}
	}
	return false
}
