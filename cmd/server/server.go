package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/thereayou/residence-chat/internal/config"
	"github.com/thereayou/residence-chat/internal/database"
	"github.com/thereayou/residence-chat/internal/delivery"
	"github.com/thereayou/residence-chat/internal/handlers"
	"github.com/thereayou/residence-chat/internal/services"
	ws "github.com/thereayou/residence-chat/internal/websocket"
	"github.com/thereayou/residence-chat/pkg/auth"
	"go.uber.org/zap"
)

type Server struct {
	Config     config.Config
	Log        *zap.Logger
	Router     *gin.Engine
	Store      services.DatabaseService
	Redis      *redis.Client
	JWTManager *auth.JWTManager
	Hub        *ws.Hub

	Rooms         *services.RoomRegistry
	Messages      *services.MessageLog
	Receipts      *services.ReadTracker
	Notifications *services.NotificationFeed

	closeStore func() error
}

// NewServer connects the store and Redis and builds the services and router.
func NewServer(cfg config.Config, log *zap.Logger) (*Server, error) {
	s := &Server{Config: cfg, Log: log, closeStore: func() error { return nil }}

	switch cfg.Store {
	case config.StoreMemory:
		log.Warn("using in-memory store, data is lost on restart")
		s.Store = database.NewMemoryDatabase()
	default:
		db := &database.Database{}
		if err := db.Connect(cfg.DatabaseURL); err != nil {
			return nil, fmt.Errorf("postgres connect: %w", err)
		}
		s.Store = db
		s.closeStore = db.Close
	}

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		rdb := redis.NewClient(opts)
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			return nil, fmt.Errorf("redis connect: %w", err)
		}
		s.Redis = rdb
	} else {
		log.Warn("REDIS_URL not set: token revocation and cross-instance delivery disabled")
	}

	s.JWTManager = auth.NewJWTManager(cfg.JWTSecret, cfg.TokenDuration)
	s.buildServices()
	s.Hub = ws.NewHub(log)
	s.Router = s.buildRouter()
	return s, nil
}

func (s *Server) buildServices() {
	clock := services.NewClock()
	retry := services.RetryPolicy{Attempts: s.Config.StoreRetryAttempts, Backoff: s.Config.StoreRetryBackoff}

	s.Rooms = services.NewRoomRegistry(s.Store, s.Store, clock, retry, s.Log)
	s.Messages = services.NewMessageLog(s.Store, s.Store, clock, retry, s.Config.MaxMessageLength, s.Log)
	s.Receipts = services.NewReadTracker(s.Store, s.Messages, clock, retry, s.Log)
	s.Notifications = services.NewNotificationFeed(s.Store, clock, retry, s.Config.FeedPageSize, s.Log)
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Bridged before the listener starts, so no local publish misses its announcement.
	if s.Redis != nil {
		if err := delivery.Bridge(ctx, s.Messages.Engine(), delivery.NewRedisNotifier(s.Redis, "rooms", s.Log)); err != nil {
			return fmt.Errorf("bridge room stream: %w", err)
		}
		if err := delivery.Bridge(ctx, s.Notifications.Engine(), delivery.NewRedisNotifier(s.Redis, "feeds", s.Log)); err != nil {
			return fmt.Errorf("bridge feed stream: %w", err)
		}
	}

	go s.Hub.Run()

	srv := &http.Server{Addr: s.Config.Addr(), Handler: s.Router}
	errCh := make(chan error, 1)
	go func() {
		s.Log.Info("server starting", zap.String("addr", srv.Addr), zap.String("store", s.Config.Store))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		s.close()
		return err
	case <-ctx.Done():
	}

	s.Log.Info("shutting down")
	shutdownCtx, stop := context.WithTimeout(context.Background(), s.Config.ShutdownTimeout)
	defer stop()

	// Websockets are hijacked and not tracked by Shutdown.
	s.Hub.Stop()
	err := srv.Shutdown(shutdownCtx)
	s.close()
	return err
}

func (s *Server) close() {
	s.Messages.Engine().Close()
	s.Notifications.Engine().Close()
	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			s.Log.Warn("close redis", zap.Error(err))
		}
	}
	if err := s.closeStore(); err != nil {
		s.Log.Warn("close store", zap.Error(err))
	}
}

func (s *Server) routes() routeHandlers {
	session := handlers.NewSessionHandler(s.Rooms, s.Messages, s.Receipts, s.Notifications, s.Log)
	return routeHandlers{
		auth:          handlers.NewAuthHandler(s.JWTManager, s.Redis, s.Log),
		rooms:         handlers.NewRoomHandler(s.Rooms),
		messages:      handlers.NewMessageHandler(s.Rooms, s.Messages, s.Receipts),
		notifications: handlers.NewNotificationHandler(s.Notifications),
		websocket:     handlers.NewWebSocketHandler(s.Hub, session, s.Config.Origins(), s.Log),
	}
}
