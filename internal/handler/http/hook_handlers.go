package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	domainErrors "github.com/KynuxDev/DiscordLite/internal/domain/errors"
)

type sessionStartRequest struct {
	AccountID   string `json:"account_id" binding:"required"`
	DisplayName string `json:"display_name" binding:"required"`
	SessionID   string `json:"session_id" binding:"required"`
	Origin      string `json:"origin" binding:"required"`
}

func (r *Router) sessionStart(c *gin.Context) {
	var req sessionStartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	r.sessions.OnSessionStart(c.Request.Context(), req.AccountID, req.DisplayName, req.SessionID, req.Origin)
	c.JSON(http.StatusAccepted, gin.H{"account_id": req.AccountID})
}

type sessionQuitRequest struct {
	AccountID string `json:"account_id" binding:"required"`
}

func (r *Router) sessionQuit(c *gin.Context) {
	var req sessionQuitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	r.sessions.OnSessionQuit(c.Request.Context(), req.AccountID)
	c.JSON(http.StatusAccepted, gin.H{"account_id": req.AccountID})
}

type startLinkRequest struct {
	AccountID   string `json:"account_id" binding:"required"`
	DisplayName string `json:"display_name" binding:"required"`
}

func (r *Router) startLink(c *gin.Context) {
	var req startLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	link, err := r.links.StartLink(c.Request.Context(), req.AccountID, req.DisplayName)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case isNotEligibleErr(err) || isErr(err, domainErrors.ErrAlreadyLinked):
			status = http.StatusConflict
		case isErr(err, domainErrors.ErrCooldownActive):
			status = http.StatusTooManyRequests
		case domainErrors.IsRetryable(err):
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"code":       link.Code,
		"expires_at": link.ExpiresAt,
	})
}

type resolveLinkRequest struct {
	Code       string `json:"code" binding:"required"`
	ExternalID string `json:"external_id" binding:"required"`
}

func (r *Router) resolveLink(c *gin.Context) {
	var req resolveLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	identity, err := r.links.ResolveLink(c.Request.Context(), req.Code, req.ExternalID)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case isErr(err, domainErrors.ErrInvalidCode):
			status = http.StatusNotFound
		case isErr(err, domainErrors.ErrCodeExpired):
			status = http.StatusGone
		case isErr(err, domainErrors.ErrExternalAlreadyLinked):
			status = http.StatusConflict
		case domainErrors.IsRetryable(err):
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, identity)
}

// challengeVerdictRequest carries the external identity that pressed the
// button, so the audit trail names who resolved the challenge.
type challengeVerdictRequest struct {
	ActorID string `json:"actor_id" binding:"required"`
}

func (r *Router) approveChallenge(c *gin.Context) {
	var req challengeVerdictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := r.challenges.Approve(c.Param("id"), req.ActorID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "challenge not pending"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"challenge_id": c.Param("id")})
}

func (r *Router) denyChallenge(c *gin.Context) {
	var req challengeVerdictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := r.challenges.Deny(c.Request.Context(), c.Param("id"), req.ActorID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "challenge not pending"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"challenge_id": c.Param("id")})
}

func isErr(err, target error) bool {
	return errors.Is(err, target)
}
