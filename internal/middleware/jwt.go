// Package middleware carries the request-level glue for the engine's HTTP
// surface. Authentication itself is an external collaborator: the
// marketplace identity service issues candidate tokens and this backend
// only verifies them.
package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/talentsift/assesshub-backend/internal/response"
)

// ContextKeyClaims is the Gin context key for verified candidate claims.
const ContextKeyClaims = "claims"

// CandidateClaims are the fields this backend needs from a marketplace
// candidate token.
type CandidateClaims struct {
	jwt.RegisteredClaims
	CandidateID int `json:"candidate_id"`
}

// ValidateCandidateToken parses and verifies an HS256 candidate JWT.
func ValidateCandidateToken(tokenStr, secret string) (*CandidateClaims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &CandidateClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*CandidateClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	if claims.CandidateID <= 0 {
		return nil, fmt.Errorf("token missing candidate_id")
	}
	return claims, nil
}

// RequireCandidateJWT validates a candidate JWT from the Authorization header.
func RequireCandidateJWT(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := bearerToken(c)
		if tokenStr == "" {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}

		claims, err := ValidateCandidateToken(tokenStr, secret)
		if err != nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenInvalid)
			return
		}

		c.Set(ContextKeyClaims, claims)
		c.Next()
	}
}

// RequireCandidateWSAuth validates a candidate JWT from the query param
// ?token=... — browsers cannot set headers on WebSocket upgrade requests.
func RequireCandidateWSAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := c.Query("token")
		if tokenStr == "" {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}

		claims, err := ValidateCandidateToken(tokenStr, secret)
		if err != nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenInvalid)
			return
		}

		c.Set(ContextKeyClaims, claims)
		c.Next()
	}
}

// GetClaims retrieves the verified candidate claims from the Gin context.
func GetClaims(c *gin.Context) *CandidateClaims {
	val, exists := c.Get(ContextKeyClaims)
	if !exists {
		return nil
	}
	claims, ok := val.(*CandidateClaims)
	if !ok {
		return nil
	}
	return claims
}

func bearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return parts[1]
		}
	}
	return ""
}
