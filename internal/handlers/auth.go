package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/thereayou/residence-chat/internal/middleware"
	"github.com/thereayou/residence-chat/pkg/auth"
	"go.uber.org/zap"
)

type AuthHandler struct {
	jwtManager *auth.JWTManager
	redis      *redis.Client
	log        *zap.Logger
}

func NewAuthHandler(jwtMgr *auth.JWTManager, rdb *redis.Client, log *zap.Logger) *AuthHandler {
	return &AuthHandler{jwtManager: jwtMgr, redis: rdb, log: log}
}

// Logout blacklists the caller's token until it expires.
func (h *AuthHandler) Logout(c *gin.Context) {
	if h.redis == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "token revocation is not configured"})
		return
	}

	rawToken, err := auth.ExtractTokenFromHeader(c.Request)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	exp, err := h.jwtManager.Expiry(rawToken)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	if err := h.redis.Set(c.Request.Context(), middleware.BlacklistPrefix+rawToken, 1, time.Until(exp)).Err(); err != nil {
		h.log.Error("blacklist token failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "token revocation unavailable"})
		return
	}
	c.Status(http.StatusNoContent)
}
