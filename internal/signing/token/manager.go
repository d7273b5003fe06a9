// Package token issues and checks the signing-link tokens that identify a
// signer to the overlay.
package token

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/signflow/signflow-backend/pkg/actor"
	"github.com/signflow/signflow-backend/pkg/config"
	apperrors "github.com/signflow/signflow-backend/pkg/errors"
	"github.com/signflow/signflow-backend/pkg/httputil"
	"github.com/signflow/signflow-backend/pkg/logger"
)

// Claims of a signing-link token
type Claims struct {
	jwt.RegisteredClaims
	SignerID   string `json:"signer_id"`
	DocumentID string `json:"document_id"`
	Email      string `json:"email,omitempty"`
	Name       string `json:"name,omitempty"`
}

// Signer identifies who a token is issued for
type Signer struct {
	ID         string
	DocumentID string
	Email      string
	Name       string
}

// Manager handles signer token operations
type Manager struct {
	config *config.JWTConfig
}

// NewManager creates a new token manager
func NewManager(cfg *config.JWTConfig) *Manager {
	return &Manager{config: cfg}
}

// Issue signs a token for one signer on one document
func (m *Manager) Issue(s Signer) (string, time.Time, error) {
	now := time.Now()
	expiry := now.Add(m.config.SignerExpiry)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.config.Issuer,
			Subject:   s.ID,
			ExpiresAt: jwt.NewNumericDate(expiry),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.New().String(),
		},
		SignerID:   s.ID,
		DocumentID: s.DocumentID,
		Email:      s.Email,
		Name:       s.Name,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(m.config.Secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiry, nil
}

// Validate parses a token and returns its claims
func (m *Manager) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, apperrors.TokenInvalid()
		}
		return []byte(m.config.Secret), nil
	}, jwt.WithIssuer(m.config.Issuer))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperrors.TokenExpired()
		}
		return nil, apperrors.TokenInvalid()
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.SignerID == "" {
		return nil, apperrors.TokenInvalid()
	}

	return claims, nil
}

// Actor converts the claims into the viewer identity
func (c *Claims) Actor() *actor.Actor {
	return &actor.Actor{
		ID:         c.SignerID,
		Name:       c.Name,
		Email:      c.Email,
		Role:       actor.RoleSigner,
		DocumentID: c.DocumentID,
	}
}

// Middleware resolves the viewer identity. A Bearer token identifies a
// signer; otherwise the X-User-ID header set by the gateway identifies the
// document owner. Requests with neither continue without an actor.
func Middleware(m *Manager, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if authHeader := r.Header.Get("Authorization"); authHeader != "" {
				scheme, tokenString, ok := strings.Cut(authHeader, " ")
				if !ok || scheme != "Bearer" || tokenString == "" {
					httputil.Error(w, apperrors.Unauthorized("invalid authorization header format"))
					return
				}

				claims, err := m.Validate(tokenString)
				if err != nil {
					log.Debug().Err(err).Msg("signer token rejected")
					httputil.Error(w, err)
					return
				}
				ctx = actor.WithActor(ctx, claims.Actor())
			} else if userID := r.Header.Get("X-User-ID"); userID != "" {
				ctx = actor.WithActor(ctx, &actor.Actor{
					ID:    userID,
					Email: r.Header.Get("X-User-Email"),
					Role:  actor.RoleEditor,
				})
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
