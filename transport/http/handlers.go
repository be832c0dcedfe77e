package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cerberus-auth/cerberus/core"
	"github.com/cerberus-auth/cerberus/ports"
	"github.com/cerberus-auth/cerberus/service"
)

// Handlers contains the HTTP handlers for the revocation surface
type Handlers struct {
	accounts     *service.AccountService
	invalidation *service.InvalidationRepository
	tokenizer    ports.Tokenizer
	metrics      *Metrics
}

// NewHandlers creates new handlers
func NewHandlers(
	accounts *service.AccountService,
	invalidation *service.InvalidationRepository,
	tokenizer ports.Tokenizer,
	metrics *Metrics,
) *Handlers {
	return &Handlers{
		accounts:     accounts,
		invalidation: invalidation,
		tokenizer:    tokenizer,
		metrics:      metrics,
	}
}

func (h *Handlers) decodeToken(c *gin.Context, credential string) (core.TokenValue, bool) {
	token, err := h.tokenizer.Decode(credential)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid token"})
		return core.TokenValue{}, false
	}
	return token, true
}

// VerifyToken handles token verification for the authorization layer
func (h *Handlers) VerifyToken(c *gin.Context) {
	var req struct {
		Token string `json:"token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	token, ok := h.decodeToken(c, req.Token)
	if !ok {
		return
	}

	err := h.accounts.VerifyToken(c.Request.Context(), token)
	switch {
	case err == nil:
		h.metrics.TokenVerdicts.WithLabelValues("valid").Inc()
		c.JSON(http.StatusOK, gin.H{"valid": true})
	case errors.Is(err, core.ErrTokenExpired):
		h.metrics.TokenVerdicts.WithLabelValues("expired").Inc()
		c.JSON(http.StatusOK, gin.H{"valid": false, "reason": "expired"})
	case errors.Is(err, core.ErrTokenInvalidated):
		h.metrics.TokenVerdicts.WithLabelValues("invalidated").Inc()
		c.JSON(http.StatusOK, gin.H{"valid": false, "reason": "invalidated"})
	default:
		h.metrics.TokenVerdicts.WithLabelValues("error").Inc()
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Verification failed"})
	}
}

// Logout handles single-token revocation
func (h *Handlers) Logout(c *gin.Context) {
	var req struct {
		Token string `json:"token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	token, ok := h.decodeToken(c, req.Token)
	if !ok {
		return
	}

	if err := h.accounts.Logout(c.Request.Context(), token); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to logout"})
		return
	}

	c.Status(http.StatusNoContent)
}

// LogoutEverywhere revokes every token of the authenticated subject
func (h *Handlers) LogoutEverywhere(c *gin.Context) {
	// Body is optional; without one the logout covers every token type.
	var req struct {
		Type string `json:"type"`
	}
	_ = c.ShouldBindJSON(&req)

	subject := c.GetString(contextKeySubject)

	var types []core.TokenType
	if req.Type != "" {
		tokenType := core.TokenType(req.Type)
		if !tokenType.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown token type"})
			return
		}
		types = append(types, tokenType)
	}

	if err := h.accounts.LogoutEverywhere(c.Request.Context(), subject, types...); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to logout"})
		return
	}

	c.Status(http.StatusNoContent)
}

// Register handles account creation
func (h *Handlers) Register(c *gin.Context) {
	var req struct {
		Email     string `json:"email" binding:"required,email"`
		Password  string `json:"password" binding:"required"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		InvitedBy string `json:"invited_by"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	user, err := h.accounts.Register(c.Request.Context(), req.Email, req.Password, req.FirstName, req.LastName, req.InvitedBy)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrEmailTaken):
			c.JSON(http.StatusConflict, gin.H{"error": "Email already registered"})
		case errors.Is(err, core.ErrCancelled):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Unknown inviter"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Registration failed"})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": user.ID, "email": user.Email})
}

// ConfirmEmail consumes an email-confirmation token
func (h *Handlers) ConfirmEmail(c *gin.Context) {
	var req struct {
		Token string `json:"token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	token, ok := h.decodeToken(c, req.Token)
	if !ok {
		return
	}

	if err := h.accounts.ConfirmEmail(c.Request.Context(), token); err != nil {
		switch {
		case errors.Is(err, core.ErrInvalidToken), errors.Is(err, core.ErrTokenInvalidated), errors.Is(err, core.ErrTokenExpired):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid confirmation token"})
		case errors.Is(err, core.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Confirmation failed"})
		}
		return
	}

	c.Status(http.StatusNoContent)
}

// RecoverPassword consumes a password-recovery token
func (h *Handlers) RecoverPassword(c *gin.Context) {
	var req struct {
		Token       string `json:"token" binding:"required"`
		NewPassword string `json:"new_password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	token, ok := h.decodeToken(c, req.Token)
	if !ok {
		return
	}

	if err := h.accounts.RecoverPassword(c.Request.Context(), token, req.NewPassword); err != nil {
		switch {
		case errors.Is(err, core.ErrInvalidToken), errors.Is(err, core.ErrTokenInvalidated), errors.Is(err, core.ErrTokenExpired):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid recovery token"})
		case errors.Is(err, core.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Recovery failed"})
		}
		return
	}

	c.Status(http.StatusNoContent)
}

// ChangePassword rotates the authenticated subject's password
func (h *Handlers) ChangePassword(c *gin.Context) {
	var req struct {
		NewPassword string `json:"new_password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	subject := c.GetString(contextKeySubject)

	if err := h.accounts.ChangePassword(c.Request.Context(), subject, req.NewPassword); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Password change failed"})
		return
	}

	c.Status(http.StatusNoContent)
}

// UpdateProfile merges optional profile fields
func (h *Handlers) UpdateProfile(c *gin.Context) {
	var req struct {
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	subject := c.GetString(contextKeySubject)

	if err := h.accounts.UpdateProfile(c.Request.Context(), subject, req.FirstName, req.LastName); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Profile update failed"})
		return
	}

	c.Status(http.StatusNoContent)
}

// Deactivate suspends an account and revokes all its tokens
func (h *Handlers) Deactivate(c *gin.Context) {
	h.accountAction(c, h.accounts.Deactivate)
}

// Activate re-enables an account
func (h *Handlers) Activate(c *gin.Context) {
	h.accountAction(c, h.accounts.Activate)
}

// DeleteAccount removes an account and revokes all its tokens
func (h *Handlers) DeleteAccount(c *gin.Context) {
	h.accountAction(c, h.accounts.DeleteAccount)
}

func (h *Handlers) accountAction(c *gin.Context, action func(ctx context.Context, userID string) error) {
	userID := c.Param("id")

	if err := action(c.Request.Context(), userID); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Operation failed"})
		return
	}

	c.Status(http.StatusNoContent)
}

// ListInvalidations returns the cutoff markers held for a subject
func (h *Handlers) ListInvalidations(c *gin.Context) {
	markers, err := h.invalidation.ActiveInvalidations(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Lookup failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"markers": markers})
}

// ClearInvalidations lifts every cutoff marker for a subject
func (h *Handlers) ClearInvalidations(c *gin.Context) {
	if err := h.invalidation.ClearInvalidations(c.Request.Context(), c.Param("id")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Clear failed"})
		return
	}

	c.Status(http.StatusNoContent)
}
