package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

type contextKey string

const callerKey contextKey = "caller"

// authMiddleware resolves the acting caller address from the bearer token.
// The token must be HMAC-signed with the configured secret and carry a
// hex-encoded "addr" claim.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			s.sendError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		tok, err := jwt.Parse(strings.TrimPrefix(header, "Bearer "), func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return []byte(s.config.JWTSecret), nil
		})
		if err != nil || !tok.Valid {
			s.sendError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		claims, ok := tok.Claims.(jwt.MapClaims)
		if !ok {
			s.sendError(w, http.StatusUnauthorized, "invalid claims")
			return
		}
		addr, ok := claims["addr"].(string)
		if !ok || !common.IsHexAddress(addr) {
			s.sendError(w, http.StatusUnauthorized, "missing or malformed addr claim")
			return
		}

		ctx := context.WithValue(r.Context(), callerKey, common.HexToAddress(addr))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// caller returns the authenticated caller address placed by authMiddleware.
func (s *Server) caller(r *http.Request) common.Address {
	addr, _ := r.Context().Value(callerKey).(common.Address)
	return addr
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("API request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

// IssueToken mints a bearer token for addr, signed with the server secret.
// Used by operators to provision API credentials.
func IssueToken(secret string, addr common.Address, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"addr": addr.Hex(),
		"iat":  time.Now().Unix(),
		"exp":  time.Now().Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
