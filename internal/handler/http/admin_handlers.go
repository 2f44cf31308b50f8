package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	domainErrors "github.com/KynuxDev/DiscordLite/internal/domain/errors"
	"github.com/KynuxDev/DiscordLite/internal/domain/models"
	"github.com/KynuxDev/DiscordLite/internal/domain/service"
)

type banRequest struct {
	Origin string `json:"origin" binding:"required"`
	Reason string `json:"reason" binding:"required"`
	// DurationSecs of zero or below produces a permanent ban.
	DurationSecs int `json:"duration_secs"`
}

func (r *Router) listBans(c *gin.Context) {
	bans, err := r.bans.ListActive(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list bans"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"bans": bans, "count": len(bans)})
}

func (r *Router) createBan(c *gin.Context) {
	var req banRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	issuer := c.GetString("admin_subject")
	created := r.bans.Ban(c.Request.Context(), req.Origin, req.Reason, issuer,
		time.Duration(req.DurationSecs)*time.Second)
	if !created {
		c.JSON(http.StatusConflict, gin.H{"error": "origin already banned or whitelisted"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"origin": req.Origin})
}

func (r *Router) deleteBan(c *gin.Context) {
	origin := c.Param("origin")
	if !r.bans.Unban(c.Request.Context(), origin, c.GetString("admin_subject")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no active ban for origin"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"origin": origin})
}

func (r *Router) checkWhitelist(c *gin.Context) {
	origin := c.Param("origin")
	c.JSON(http.StatusOK, gin.H{"origin": origin, "whitelisted": r.bans.IsWhitelisted(origin)})
}

func (r *Router) addWhitelist(c *gin.Context) {
	origin := c.Param("origin")
	if !r.bans.AddToWhitelist(origin) {
		c.JSON(http.StatusConflict, gin.H{"error": "origin already whitelisted"})
		return
	}
	r.persistWhitelist(c)
	r.recordAdminAction(c, "origin whitelisted", origin)
	c.JSON(http.StatusCreated, gin.H{"origin": origin})
}

func (r *Router) removeWhitelist(c *gin.Context) {
	origin := c.Param("origin")
	if !r.bans.RemoveFromWhitelist(origin) {
		c.JSON(http.StatusNotFound, gin.H{"error": "origin not whitelisted"})
		return
	}
	r.persistWhitelist(c)
	r.recordAdminAction(c, "origin removed from whitelist", origin)
	c.JSON(http.StatusOK, gin.H{"origin": origin})
}

// persistWhitelist mirrors the in-memory whitelist to the store so it
// survives restarts. Best effort; the in-memory set stays authoritative.
func (r *Router) persistWhitelist(c *gin.Context) {
	value := strings.Join(r.bans.Whitelist(), ",")
	if err := r.store.Settings().Set(c.Request.Context(), service.WhitelistSettingKey, value); err != nil {
		r.logger.Warn("failed to persist whitelist", zap.Error(err))
	}
}

func (r *Router) unlinkAccount(c *gin.Context) {
	accountID := c.Param("id")
	if !r.links.Unlink(c.Request.Context(), accountID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "account not linked"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"account_id": accountID})
}

// resetAccount abandons anything in flight for the account and deletes its
// identity record, returning it to a never-linked state.
func (r *Router) resetAccount(c *gin.Context) {
	accountID := c.Param("id")

	r.links.Cancel(accountID)
	r.challenges.CancelForAccount(accountID)
	r.links.Unlink(c.Request.Context(), accountID)
	if err := r.store.Identities().Delete(c.Request.Context(), accountID); err != nil && !isNotFoundErr(err) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to reset account"})
		return
	}

	r.audit.Record(models.NewSecurityEvent(models.EventAdminAction, "account reset").
		WithAccount(accountID, "").
		WithDetails("issuer=" + c.GetString("admin_subject")))
	c.JSON(http.StatusOK, gin.H{"account_id": accountID})
}

type secondFactorRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

func (r *Router) setSecondFactor(c *gin.Context) {
	accountID := c.Param("id")

	var req secondFactorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := r.challenges.SetSecondFactor(c.Request.Context(), accountID, *req.Enabled); err != nil {
		status := http.StatusInternalServerError
		switch {
		case isNotFoundErr(err):
			status = http.StatusNotFound
		case isNotEligibleErr(err):
			status = http.StatusConflict
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"account_id": accountID, "enabled": *req.Enabled})
}

func (r *Router) riskStatus(c *gin.Context) {
	origin := c.Param("origin")
	c.JSON(http.StatusOK, gin.H{
		"origin":   origin,
		"level":    r.risk.CurrentLevel(origin).String(),
		"failures": r.risk.FailureCount(origin),
	})
}

func (r *Router) listEvents(c *gin.Context) {
	filter := models.EventFilter{
		Kind:      models.EventKind(c.Query("kind")),
		AccountID: c.Query("account_id"),
		Origin:    c.Query("origin"),
	}
	if since := c.Query("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "since must be RFC3339"})
			return
		}
		filter.Since = t
	}
	if until := c.Query("until"); until != "" {
		t, err := time.Parse(time.RFC3339, until)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "until must be RFC3339"})
			return
		}
		filter.Until = t
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}

	events, total, err := r.audit.Query(c.Request.Context(), filter, limit, (page-1)*limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query events"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"events": events,
		"total":  total,
		"page":   page,
		"limit":  limit,
	})
}

func (r *Router) health(c *gin.Context) {
	if err := r.store.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func isNotFoundErr(err error) bool {
	return errors.Is(err, domainErrors.ErrNotFound)
}

func isNotEligibleErr(err error) bool {
	return errors.Is(err, domainErrors.ErrNotEligible)
}

// recordAdminAction logs the operator's action against the origin it touched.
// Severity stays below the risk-feed gate: an operator editing the whitelist
// is not a signal against that origin.
func (r *Router) recordAdminAction(c *gin.Context, description, origin string) {
	r.audit.Record(models.NewSecurityEvent(models.EventAdminAction, description).
		WithOrigin(origin).
		WithSeverity(1).
		WithDetails("issuer=" + c.GetString("admin_subject")))
}
