// Package server exposes summaries over HTTP: projections of stored
// summaries, stateless rendering, sharing, chat and Readwise settings.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"bookdigest/internal/chat"
	"bookdigest/internal/domain"
	"bookdigest/internal/library"
	"bookdigest/internal/registry"
	"bookdigest/internal/render"

	"github.com/gin-gonic/gin"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 10 * time.Second
	maxBodyBytes      = 2 << 20
)

type Store interface {
	Ping(ctx context.Context) error
	AddSummary(ctx context.Context, s domain.Summary) (domain.Summary, error)
	ListUserSummaries(ctx context.Context, userID string) ([]domain.Summary, error)
	DeleteBook(ctx context.Context, userID, fileName string) (int64, error)
	GetProfile(ctx context.Context, userID string) (domain.UserProfile, error)
	SetReadwiseToken(ctx context.Context, userID, token string) error
	ClearReadwiseToken(ctx context.Context, userID string) error
	SetAutoSync(ctx context.Context, userID string, enabled bool) error
	CreateShare(ctx context.Context, userID, summaryID string) (domain.Share, error)
	GetShare(ctx context.Context, token string) (domain.Share, error)
}

type TokenValidator interface {
	Validate(ctx context.Context, token string) error
}

// Deps are the services behind the routes. Assistant is optional; chat
// answers 503 without it.
type Deps struct {
	Store     Store
	Library   *library.Library
	Readwise  TokenValidator
	Assistant chat.Answerer
}

type Server struct {
	db        Store
	library   *library.Library
	renderer  *render.Renderer
	reg       *registry.Registry
	readwise  TokenValidator
	assistant chat.Answerer
	baseURL   string
	router    *gin.Engine
	log       *slog.Logger
}

func New(deps Deps, publicBaseURL string, log *slog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	renderer := deps.Library.Renderer()

	s := &Server{
		db:        deps.Store,
		library:   deps.Library,
		renderer:  renderer,
		reg:       renderer.Registry(),
		readwise:  deps.Readwise,
		assistant: deps.Assistant,
		baseURL:   strings.TrimRight(publicBaseURL, "/"),
		log:       log,
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(log))
	router.Use(limitBody(maxBodyBytes))

	s.registerRoutes(router)
	s.router = router

	return s
}

func (s *Server) registerRoutes(router *gin.Engine) {
	router.GET("/healthz", s.health)
	router.GET("/s/:token", s.sharedSummary)

	api := router.Group("/api")
	api.POST("/render/:format", s.renderContent)

	authed := api.Group("", requireUser())

	summaries := authed.Group("/summaries")
	summaries.GET("", s.listSummaries)
	summaries.POST("", s.createSummary)
	summaries.GET("/:id", s.getSummary)
	summaries.GET("/:id/:format", s.renderSummary)

	authed.DELETE("/books/:fileName", s.deleteBook)

	authed.POST("/export/readwise", s.exportReadwise)
	authed.GET("/settings/readwise", s.readwiseSettings)
	authed.PUT("/settings/readwise", s.saveReadwiseSettings)
	authed.DELETE("/settings/readwise", s.clearReadwiseSettings)

	authed.POST("/share", s.share)
	authed.POST("/chat/summary", s.chat)
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.InfoContext(ctx, "HTTP server is listening",
			"addr", addr)

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen and serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	return nil
}
