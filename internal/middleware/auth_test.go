package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"
	"github.com/thereayou/residence-chat/internal/models"
	"github.com/thereayou/residence-chat/pkg/auth"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(t *testing.T, rdb *redis.Client) (*gin.Engine, *auth.JWTManager) {
	t.Helper()
	jwt := auth.NewJWTManager("middleware-secret-0123", time.Hour)

	r := gin.New()
	r.Use(Recovery(zap.NewNop()))
	r.GET("/me", AuthMiddleware(jwt, rdb, zap.NewNop()), func(c *gin.Context) {
		id := CurrentIdentity(c)
		c.JSON(http.StatusOK, gin.H{"user_id": id.UserID, "name": id.Name, "role": id.Role})
	})
	r.GET("/ws", WSAuthMiddleware(jwt, rdb, zap.NewNop()), func(c *gin.Context) {
		c.String(http.StatusOK, CurrentIdentity(c).UserID)
	})
	r.GET("/admin", AuthMiddleware(jwt, rdb, zap.NewNop()), RequireAdmin(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	r.GET("/panic", func(c *gin.Context) { panic("boom") })
	return r, jwt
}

func do(r http.Handler, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware(t *testing.T) {
	req := require.New(t)
	r, jwt := newRouter(t, nil)

	token, err := jwt.Generate("res-1", "Alice", "Resident")
	req.NoError(err)

	w := do(r, "/me", token)
	req.Equal(http.StatusOK, w.Code)
	req.JSONEq(`{"user_id":"res-1","name":"Alice","role":"resident"}`, w.Body.String())

	req.Equal(http.StatusUnauthorized, do(r, "/me", "").Code)
	req.Equal(http.StatusUnauthorized, do(r, "/me", "garbage").Code)

	guest, err := jwt.Generate("g-1", "Guest", "guest")
	req.NoError(err)
	req.Equal(http.StatusForbidden, do(r, "/me", guest).Code)
}

func TestWSAuthMiddleware_QueryToken(t *testing.T) {
	r, jwt := newRouter(t, nil)
	token, err := jwt.Generate("adm-1", "Budi", "admin")
	require.NoError(t, err)

	w := do(r, "/ws?token="+token, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "adm-1", w.Body.String())
}

func TestRequireAdmin(t *testing.T) {
	r, jwt := newRouter(t, nil)
	resident, _ := jwt.Generate("res-1", "Alice", "resident")
	admin, _ := jwt.Generate("adm-1", "Budi", "admin")

	require.Equal(t, http.StatusForbidden, do(r, "/admin", resident).Code)
	require.Equal(t, http.StatusNoContent, do(r, "/admin", admin).Code)
}

func TestAuthMiddleware_Blacklist(t *testing.T) {
	req := require.New(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	r, jwt := newRouter(t, rdb)

	token, err := jwt.Generate("res-1", "Alice", string(models.RoleResident))
	req.NoError(err)
	req.Equal(http.StatusOK, do(r, "/me", token).Code)

	req.NoError(rdb.Set(context.Background(), BlacklistPrefix+token, 1, time.Minute).Err())
	req.Equal(http.StatusUnauthorized, do(r, "/me", token).Code)

	// Redis down: fail closed
	mr.Close()
	req.Equal(http.StatusUnauthorized, do(r, "/me", token).Code)
}

func TestRecovery(t *testing.T) {
	r, _ := newRouter(t, nil)
	require.Equal(t, http.StatusInternalServerError, do(r, "/panic", "").Code)
}

func TestRequestLogger(t *testing.T) {
	req := require.New(t)
	core, logs := observer.New(zap.DebugLevel)

	r := gin.New()
	r.Use(RequestLogger(zap.New(core)))
	r.GET("/rooms/:id", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	do(r, "/rooms/abc", "")

	entries := logs.All()
	req.Len(entries, 1)
	req.Equal(zap.WarnLevel, entries[0].Level)
	fields := entries[0].ContextMap()
	req.Equal("/rooms/:id", fields["path"])
	req.EqualValues(http.StatusNotFound, fields["status"])
}
