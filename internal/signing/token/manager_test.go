package token

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/signflow/signflow-backend/pkg/actor"
	"github.com/signflow/signflow-backend/pkg/config"
	apperrors "github.com/signflow/signflow-backend/pkg/errors"
	"github.com/signflow/signflow-backend/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.JWTConfig {
	return &config.JWTConfig{Secret: "test-secret", SignerExpiry: time.Hour, Issuer: "signflow"}
}

func TestIssueAndValidate(t *testing.T) {
	m := NewManager(testConfig())

	tok, expiry, err := m.Issue(Signer{ID: "S1", DocumentID: "doc-1", Email: "s1@example.com", Name: "Sam"})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiry, 5*time.Second)

	claims, err := m.Validate(tok)
	require.NoError(t, err)
	assert.Equal(t, "S1", claims.SignerID)
	assert.Equal(t, "doc-1", claims.DocumentID)

	a := claims.Actor()
	assert.Equal(t, actor.RoleSigner, a.Role)
	assert.Equal(t, "S1", a.SignerID())
}

func TestValidate_Rejects(t *testing.T) {
	m := NewManager(testConfig())

	expiredCfg := testConfig()
	expiredCfg.SignerExpiry = -time.Minute
	expired, _, err := NewManager(expiredCfg).Issue(Signer{ID: "S1"})
	require.NoError(t, err)

	otherCfg := testConfig()
	otherCfg.Secret = "another-secret"
	forged, _, err := NewManager(otherCfg).Issue(Signer{ID: "S1"})
	require.NoError(t, err)

	wrongIssuerCfg := testConfig()
	wrongIssuerCfg.Issuer = "someone-else"
	wrongIssuer, _, err := NewManager(wrongIssuerCfg).Issue(Signer{ID: "S1"})
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{"expired", expired, apperrors.ErrTokenExpired},
		{"wrong secret", forged, apperrors.ErrTokenInvalid},
		{"wrong issuer", wrongIssuer, apperrors.ErrTokenInvalid},
		{"garbage", "not.a.token", apperrors.ErrTokenInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Validate(tt.token)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestMiddleware(t *testing.T) {
	m := NewManager(testConfig())
	tok, _, err := m.Issue(Signer{ID: "S1", DocumentID: "doc-1"})
	require.NoError(t, err)

	var seen *actor.Actor
	h := Middleware(m, logger.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = actor.FromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	t.Run("signer token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusNoContent, rr.Code)
		require.NotNil(t, seen)
		assert.Equal(t, "S1", seen.SignerID())
	})

	t.Run("gateway user header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-User-ID", "owner-1")
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)

		require.NotNil(t, seen)
		assert.Equal(t, actor.RoleEditor, seen.Role)
		assert.Equal(t, "", seen.SignerID())
	})

	t.Run("anonymous", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusNoContent, rr.Code)
		assert.Nil(t, seen)
	})

	t.Run("bad token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer nope")
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("wrong scheme", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Basic abc")
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}
