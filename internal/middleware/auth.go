package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/thereayou/residence-chat/internal/models"
	"github.com/thereayou/residence-chat/pkg/auth"
	"go.uber.org/zap"
)

const (
	IdentityKey     = "identity"
	BlacklistPrefix = "blacklist:"
)

// Identity is the caller as asserted by the bearer token.
type Identity struct {
	UserID string
	Name   string
	Role   models.Role
}

func (i Identity) IsAdmin() bool { return i.Role == models.RoleAdmin }

// CurrentIdentity returns the identity set by AuthMiddleware.
func CurrentIdentity(c *gin.Context) Identity {
	return c.MustGet(IdentityKey).(Identity)
}

// AuthMiddleware verifies the bearer token and stores the caller's Identity.
// rdb may be nil, in which case revoked tokens are not checked.
func AuthMiddleware(jwtManager *auth.JWTManager, rdb *redis.Client, log *zap.Logger) gin.HandlerFunc {
	return authenticate(jwtManager, rdb, log, func(c *gin.Context) string {
		token, _ := auth.ExtractTokenFromHeader(c.Request)
		return token
	})
}

// WSAuthMiddleware also accepts the token as ?token=, since browsers cannot set
// headers on a websocket handshake.
func WSAuthMiddleware(jwtManager *auth.JWTManager, rdb *redis.Client, log *zap.Logger) gin.HandlerFunc {
	return authenticate(jwtManager, rdb, log, func(c *gin.Context) string {
		if token := c.Query("token"); token != "" {
			return token
		}
		token, _ := auth.ExtractTokenFromHeader(c.Request)
		return token
	})
}

func authenticate(jwtManager *auth.JWTManager, rdb *redis.Client, log *zap.Logger, tokenFrom func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := tokenFrom(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid token"})
			return
		}

		if rdb != nil {
			exists, err := rdb.Exists(c.Request.Context(), BlacklistPrefix+token).Result()
			if err != nil {
				log.Warn("token blacklist lookup failed", zap.Error(err))
			}
			if err != nil || exists > 0 {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "token is blacklisted"})
				return
			}
		}

		claims, err := jwtManager.Verify(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		role := models.Role(strings.ToLower(claims.Role))
		if !role.Valid() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "unknown role"})
			return
		}

		c.Set(IdentityKey, Identity{UserID: claims.Subject, Name: claims.Name, Role: role})
		c.Next()
	}
}

// RequireAdmin rejects callers that are not administrators.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !CurrentIdentity(c).IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin only"})
			return
		}
		c.Next()
	}
}
