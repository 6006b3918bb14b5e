package grant

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/selight/designo/internal/platform/errors"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testConfigs(t *testing.T) (IssuerConfig, VerifierConfig) {
	t.Helper()
	public, private, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	now := func() time.Time { return testNow }
	return IssuerConfig{Issuer: "designo", Audience: "designo-relay", Key: private, TTL: time.Minute, Now: now},
		VerifierConfig{Issuer: "designo", Audience: "designo-relay", Key: public, Now: now}
}

func TestIssueAndValidate(t *testing.T) {
	t.Parallel()

	issuer, verifier := testConfigs(t)
	token, err := Issue(Subject{ProjectID: "p1", UserID: "u1", DisplayName: "Ana"}, issuer)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, err := Validate(token, "p1", verifier)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.UserID != "u1" || claims.DisplayName != "Ana" || claims.ProjectID != "p1" {
		t.Fatalf("claims = %+v", claims)
	}
	if !claims.ExpiresAt.Equal(testNow.Add(time.Minute)) {
		t.Fatalf("expires = %v", claims.ExpiresAt)
	}
	if claims.JWTID == "" {
		t.Fatal("expected jti")
	}
}

func TestValidateRejectsWrongProject(t *testing.T) {
	t.Parallel()

	issuer, verifier := testConfigs(t)
	token, err := Issue(Subject{ProjectID: "p1", UserID: "u1"}, issuer)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	_, err = Validate(token, "p2", verifier)
	if !apperrors.IsCode(err, apperrors.CodeJoinGrantMismatch) {
		t.Fatalf("code = %s, want %s", apperrors.GetCode(err), apperrors.CodeJoinGrantMismatch)
	}
}

func TestValidateRejectsExpired(t *testing.T) {
	t.Parallel()

	issuer, verifier := testConfigs(t)
	token, err := Issue(Subject{ProjectID: "p1", UserID: "u1"}, issuer)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	verifier.Now = func() time.Time { return testNow.Add(2 * time.Minute) }
	_, err = Validate(token, "p1", verifier)
	if !apperrors.IsCode(err, apperrors.CodeJoinGrantExpired) {
		t.Fatalf("code = %s, want %s", apperrors.GetCode(err), apperrors.CodeJoinGrantExpired)
	}
}

func TestValidateRejectsForeignSignature(t *testing.T) {
	t.Parallel()

	issuer, _ := testConfigs(t)
	_, verifier := testConfigs(t)
	token, err := Issue(Subject{ProjectID: "p1", UserID: "u1"}, issuer)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	_, err = Validate(token, "p1", verifier)
	if !apperrors.IsCode(err, apperrors.CodeJoinGrantInvalid) {
		t.Fatalf("code = %s, want %s", apperrors.GetCode(err), apperrors.CodeJoinGrantInvalid)
	}
}

func TestValidateRejectsOtherAlgorithms(t *testing.T) {
	t.Parallel()

	_, verifier := testConfigs(t)
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss": "designo", "aud": "designo-relay", "project_id": "p1", "user_id": "u1",
	}).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	_, err = Validate(token, "p1", verifier)
	if !apperrors.IsCode(err, apperrors.CodeJoinGrantInvalid) {
		t.Fatalf("code = %s, want %s", apperrors.GetCode(err), apperrors.CodeJoinGrantInvalid)
	}
}

func TestValidateRequiresToken(t *testing.T) {
	t.Parallel()

	_, verifier := testConfigs(t)
	if _, err := Validate("  ", "p1", verifier); !apperrors.IsCode(err, apperrors.CodeJoinGrantInvalid) {
		t.Fatalf("err = %v, want invalid grant", err)
	}
}

func TestIssueRequiresKey(t *testing.T) {
	t.Parallel()

	if _, err := Issue(Subject{ProjectID: "p1", UserID: "u1"}, IssuerConfig{}); err == nil {
		t.Fatal("expected error without key")
	}
}

func TestLoadFromEnv(t *testing.T) {
	public, private, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	t.Setenv("DESIGNO_JOIN_GRANT_PUBLIC_KEY", EncodeKey(public))
	t.Setenv("DESIGNO_JOIN_GRANT_PRIVATE_KEY", EncodeKey(private))
	t.Setenv("DESIGNO_JOIN_GRANT_TTL", "30s")

	verifier, err := LoadVerifierFromEnv(nil)
	if err != nil {
		t.Fatalf("load verifier: %v", err)
	}
	if !verifier.Enabled() || verifier.Audience != "designo-relay" {
		t.Fatalf("verifier = %+v", verifier)
	}
	issuer, err := LoadIssuerFromEnv(nil)
	if err != nil {
		t.Fatalf("load issuer: %v", err)
	}
	if !issuer.Enabled() || issuer.TTL != 30*time.Second {
		t.Fatalf("issuer = %+v", issuer)
	}
}

func TestLoadVerifierDisabledWithoutKey(t *testing.T) {
	t.Setenv("DESIGNO_JOIN_GRANT_PUBLIC_KEY", "")
	verifier, err := LoadVerifierFromEnv(nil)
	if err != nil {
		t.Fatalf("load verifier: %v", err)
	}
	if verifier.Enabled() {
		t.Fatal("expected disabled verifier")
	}
}

func TestLoadVerifierRejectsShortKey(t *testing.T) {
	t.Setenv("DESIGNO_JOIN_GRANT_PUBLIC_KEY", EncodeKey([]byte("short")))
	if _, err := LoadVerifierFromEnv(nil); err == nil {
		t.Fatal("expected short key error")
	}
}
