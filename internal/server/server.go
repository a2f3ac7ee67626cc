package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Priyanka-Singh27/Ripple-CIA/internal/auth"
	"github.com/Priyanka-Singh27/Ripple-CIA/internal/config"
	"github.com/Priyanka-Singh27/Ripple-CIA/internal/events"
	"github.com/Priyanka-Singh27/Ripple-CIA/internal/review"
	"github.com/Priyanka-Singh27/Ripple-CIA/internal/storage"
)

// Server binds the review service to the /api/v1 HTTP surface and the
// websocket relay.
type Server struct {
	cfg    *config.Config
	store  storage.Store
	svc    *review.Service
	tokens *auth.Manager
	hub    *Hub
	sink   *events.RedisSink // nil when events are disabled
	logger *slog.Logger

	httpServer *http.Server
}

func New(cfg *config.Config, store storage.Store, svc *review.Service, tokens *auth.Manager, sink *events.RedisSink) *Server {
	s := &Server{
		cfg:    cfg,
		store:  store,
		svc:    svc,
		tokens: tokens,
		sink:   sink,
		hub:    NewHub(),
		logger: slog.Default().With("component", "server"),
	}
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Router builds the gin engine. Exposed so tests can drive handlers
// without binding a port.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger())

	router.GET("/health", s.handleHealth)

	api := router.Group("/api/v1")
	{
		api.POST("/auth/register", s.handleRegister)
		api.POST("/auth/login", s.handleLogin)
		api.GET("/ws", s.handleWebsocket)

		authed := api.Group("", s.authRequired())
		{
			authed.GET("/me", s.handleMe)

			authed.POST("/projects", s.handleCreateProject)
			authed.GET("/projects", s.handleListProjects)
			authed.GET("/projects/:id", s.handleGetProject)
			authed.PATCH("/projects/:id/policy", s.handleUpdatePolicy)
			authed.POST("/projects/:id/components", s.handleCreateComponent)
			authed.GET("/projects/:id/components", s.handleListComponents)
			authed.POST("/projects/:id/changes", s.handleSubmitChange)
			authed.GET("/projects/:id/changes", s.handleListChanges)

			authed.POST("/components/:id/contributors", s.handleAddContributor)

			authed.GET("/changes/:id/impact", s.handleGetImpactSet)
			authed.POST("/changes/:id/impacts", s.handleDeliverDetection)
			authed.GET("/changes/:id/gate", s.handleGate)
			authed.POST("/changes/:id/ci", s.handleSetCIStatus)
			authed.POST("/changes/:id/acknowledge", s.handleAcknowledge)
			authed.POST("/changes/:id/adjust", s.handleAdjust)
			authed.POST("/changes/:id/adjust/cancel", s.handleAdjustCancel)
			authed.POST("/changes/:id/dismiss", s.handleDismiss)
			authed.POST("/changes/:id/approve", s.handleApprove)
			authed.POST("/changes/:id/reject", s.handleReject)
			authed.POST("/changes/:id/request-revisions", s.handleRequestRevisions)
			authed.POST("/changes/:id/nudge", s.handleNudge)

			authed.GET("/notifications", s.handleListNotifications)
			authed.POST("/notifications/read", s.handleMarkNotificationsRead)
		}
	}
	return router
}

// Run serves HTTP and, when a redis sink is configured, relays
// published events to websocket sessions. Blocks until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	if s.sink != nil {
		go s.relayEvents(ctx)
	}

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.hub.CloseAll()
	return s.httpServer.Shutdown(shutdownCtx)
}

// relayEvents pipes redis pub/sub messages into the websocket hub.
func (s *Server) relayEvents(ctx context.Context) {
	sub := s.sink.Subscribe(ctx)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			userID := events.UserFromChannel(msg.Channel)
			if userID == "" {
				continue
			}
			s.hub.Send(userID, []byte(msg.Payload))
		}
	}
}
