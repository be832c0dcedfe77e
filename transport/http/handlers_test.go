package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/cerberus-auth/cerberus/adapters/cache"
	"github.com/cerberus-auth/cerberus/adapters/hasher"
	"github.com/cerberus-auth/cerberus/adapters/store"
	"github.com/cerberus-auth/cerberus/adapters/tokenizer"
	"github.com/cerberus-auth/cerberus/core"
	"github.com/cerberus-auth/cerberus/service"
)

type noopPublisher struct{}

func (noopPublisher) PublishLogout(ctx context.Context, subject, tokenID string) error {
	return nil
}

func (noopPublisher) PublishCredentialInvalidation(ctx context.Context, subject, scope string) error {
	return nil
}

func newTestRouter(t *testing.T) (*gin.Engine, *tokenizer.JWTTokenizer) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	invalidation := service.NewInvalidationRepository(
		cache.NewMemoryCache(),
		core.DefaultRevocationTTLs(),
		logger,
	)
	accounts := service.NewAccountService(
		store.NewMemoryStore(),
		invalidation,
		hasher.NewBcryptHasher(bcrypt.MinCost),
		noopPublisher{},
		logger,
	)

	tk := tokenizer.NewJWTTokenizer([]byte("test-secret"))
	metrics := NewMetrics(prometheus.NewRegistry())
	return SetupRouter(accounts, invalidation, tk, metrics), tk
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func signToken(t *testing.T, tk *tokenizer.JWTTokenizer, id, subject string, tokenType core.TokenType) string {
	t.Helper()

	issued := time.Now().Add(-time.Minute)
	value, err := core.NewTokenValue(id, subject, tokenType, issued, issued.Add(time.Hour))
	require.NoError(t, err)

	credential, err := tk.Sign(value)
	require.NoError(t, err)
	return credential
}

func TestVerifyThenLogout(t *testing.T) {
	router, tk := newTestRouter(t)
	credential := signToken(t, tk, "t1", "u1", core.TokenTypeRefresh)

	w := doJSON(t, router, http.MethodPost, "/tokens/verify", gin.H{"token": credential})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"valid": true}`, w.Body.String())

	w = doJSON(t, router, http.MethodPost, "/auth/logout", gin.H{"token": credential})
	require.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(t, router, http.MethodPost, "/tokens/verify", gin.H{"token": credential})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"valid": false, "reason": "invalidated"}`, w.Body.String())
}

func TestVerifyReportsExpired(t *testing.T) {
	router, tk := newTestRouter(t)

	issued := time.Now().Add(-2 * time.Hour)
	value, err := core.NewTokenValue("t1", "u1", core.TokenTypeAccess, issued, issued.Add(time.Hour))
	require.NoError(t, err)
	credential, err := tk.Sign(value)
	require.NoError(t, err)

	w := doJSON(t, router, http.MethodPost, "/tokens/verify", gin.H{"token": credential})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"valid": false, "reason": "expired"}`, w.Body.String())
}

func TestVerifyRejectsMalformedToken(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/tokens/verify", gin.H{"token": "garbage"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRegisterEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/users", gin.H{
		"email":      "ada@example.com",
		"password":   "secret",
		"first_name": "Ada",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.ID)
	assert.Equal(t, "ada@example.com", resp.Email)

	w = doJSON(t, router, http.MethodPost, "/users", gin.H{
		"email":    "ada@example.com",
		"password": "secret",
	})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestRegisterUnknownInviter(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/users", gin.H{
		"email":      "ada@example.com",
		"password":   "secret",
		"invited_by": "missing",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestLogoutAllRequiresAuth(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/auth/logout-all", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLogoutAllRevokesEarlierTokens(t *testing.T) {
	router, tk := newTestRouter(t)

	// Register so the subject exists for the watermark update.
	w := doJSON(t, router, http.MethodPost, "/users", gin.H{
		"email":    "ada@example.com",
		"password": "secret",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var resp struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	access := signToken(t, tk, "t1", resp.ID, core.TokenTypeAccess)
	refresh := signToken(t, tk, "t2", resp.ID, core.TokenTypeRefresh)

	req := httptest.NewRequest(http.MethodPost, "/auth/logout-all", bytes.NewReader([]byte("{}")))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+access)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)

	w = doJSON(t, router, http.MethodPost, "/tokens/verify", gin.H{"token": refresh})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"valid": false, "reason": "invalidated"}`, w.Body.String())
}
