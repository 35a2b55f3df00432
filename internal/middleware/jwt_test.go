package middleware

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "unit-test-secret"

func signToken(t *testing.T, claims CandidateClaims, secret string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestValidateCandidateToken_Valid(t *testing.T) {
	signed := signToken(t, CandidateClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		CandidateID: 42,
	}, testSecret)

	claims, err := ValidateCandidateToken(signed, testSecret)
	if err != nil {
		t.Fatalf("ValidateCandidateToken: %v", err)
	}
	if claims.CandidateID != 42 {
		t.Fatalf("candidate_id = %d, want 42", claims.CandidateID)
	}
}

func TestValidateCandidateToken_WrongSecret(t *testing.T) {
	signed := signToken(t, CandidateClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		CandidateID: 42,
	}, "other-secret")

	if _, err := ValidateCandidateToken(signed, testSecret); err == nil {
		t.Fatal("token signed with a different secret was accepted")
	}
}

func TestValidateCandidateToken_Expired(t *testing.T) {
	signed := signToken(t, CandidateClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
		CandidateID: 42,
	}, testSecret)

	if _, err := ValidateCandidateToken(signed, testSecret); err == nil {
		t.Fatal("expired token was accepted")
	}
}

func TestValidateCandidateToken_MissingCandidateID(t *testing.T) {
	signed := signToken(t, CandidateClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}, testSecret)

	if _, err := ValidateCandidateToken(signed, testSecret); err == nil {
		t.Fatal("token without candidate_id was accepted")
	}
}
