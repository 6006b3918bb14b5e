package grant

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/selight/designo/internal/platform/config"
)

// DefaultTTL bounds the lifetime of issued grants.
const DefaultTTL = 10 * time.Minute

// grantEnv holds raw env values before post-parse validation.
type grantEnv struct {
	Issuer     string        `env:"JOIN_GRANT_ISSUER"   envDefault:"designo"`
	Audience   string        `env:"JOIN_GRANT_AUDIENCE" envDefault:"designo-relay"`
	PublicKey  string        `env:"JOIN_GRANT_PUBLIC_KEY"`
	PrivateKey string        `env:"JOIN_GRANT_PRIVATE_KEY"`
	TTL        time.Duration `env:"JOIN_GRANT_TTL"      envDefault:"10m"`
}

// VerifierConfig defines how the relay verifies grants.
type VerifierConfig struct {
	Issuer   string
	Audience string
	Key      ed25519.PublicKey
	Now      func() time.Time
}

// Enabled reports whether grants must be verified.
func (c VerifierConfig) Enabled() bool {
	return len(c.Key) == ed25519.PublicKeySize
}

// IssuerConfig defines how grants are signed.
type IssuerConfig struct {
	Issuer   string
	Audience string
	Key      ed25519.PrivateKey
	TTL      time.Duration
	Now      func() time.Time
}

// Enabled reports whether a signing key is configured.
func (c IssuerConfig) Enabled() bool {
	return len(c.Key) == ed25519.PrivateKeySize
}

// LoadVerifierFromEnv reads the verification config. An unset public key
// yields a disabled verifier.
func LoadVerifierFromEnv(now func() time.Time) (VerifierConfig, error) {
	var raw grantEnv
	if err := config.ParseEnv(&raw); err != nil {
		return VerifierConfig{}, fmt.Errorf("parse join grant env: %w", err)
	}
	cfg := VerifierConfig{
		Issuer:   strings.TrimSpace(raw.Issuer),
		Audience: strings.TrimSpace(raw.Audience),
		Now:      now,
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	publicKey := strings.TrimSpace(raw.PublicKey)
	if publicKey == "" {
		return cfg, nil
	}
	key, err := decodeKey(publicKey, ed25519.PublicKeySize)
	if err != nil {
		return VerifierConfig{}, fmt.Errorf("join grant public key: %w", err)
	}
	cfg.Key = ed25519.PublicKey(key)
	return cfg, nil
}

// LoadIssuerFromEnv reads the signing config. An unset private key yields a
// disabled issuer.
func LoadIssuerFromEnv(now func() time.Time) (IssuerConfig, error) {
	var raw grantEnv
	if err := config.ParseEnv(&raw); err != nil {
		return IssuerConfig{}, fmt.Errorf("parse join grant env: %w", err)
	}
	cfg := IssuerConfig{
		Issuer:   strings.TrimSpace(raw.Issuer),
		Audience: strings.TrimSpace(raw.Audience),
		TTL:      raw.TTL,
		Now:      now,
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	privateKey := strings.TrimSpace(raw.PrivateKey)
	if privateKey == "" {
		return cfg, nil
	}
	key, err := decodeKey(privateKey, ed25519.PrivateKeySize)
	if err != nil {
		return IssuerConfig{}, fmt.Errorf("join grant private key: %w", err)
	}
	cfg.Key = ed25519.PrivateKey(key)
	return cfg, nil
}

// EncodeKey renders a key the way the env loaders expect it.
func EncodeKey(key []byte) string {
	return base64.RawStdEncoding.EncodeToString(key)
}

func decodeKey(value string, size int) ([]byte, error) {
	decoded, err := decodeBase64(value)
	if err != nil {
		return nil, err
	}
	if len(decoded) != size {
		return nil, fmt.Errorf("must be %d bytes, got %d", size, len(decoded))
	}
	return decoded, nil
}

func decodeBase64(value string) ([]byte, error) {
	if value == "" {
		return nil, errors.New("empty base64 value")
	}
	decoded, err := base64.RawStdEncoding.DecodeString(value)
	if err == nil {
		return decoded, nil
	}
	return base64.StdEncoding.DecodeString(value)
}
