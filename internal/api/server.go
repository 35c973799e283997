// Package api exposes the knowledge graph core over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/clinigraph-server/internal/domain"
	"github.com/clinigraph-server/internal/middleware"
	"github.com/clinigraph-server/internal/service"
)

// Server represents the HTTP server
type Server struct {
	log     *logrus.Logger
	cfg     *domain.Config
	svc     *service.KnowledgeService
	router  *gin.Engine
	server  *http.Server
	version string
}

// NewServer creates a new HTTP server instance
func NewServer(logger *logrus.Logger, cfg *domain.Config, svc *service.KnowledgeService, version string) *Server {
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.CORS())
	router.Use(middleware.RateLimit(cfg.Server.RateLimit, cfg.Server.RateBurst))

	s := &Server{
		log:     logger,
		cfg:     cfg,
		svc:     svc,
		router:  router,
		version: version,
	}
	s.setupRoutes()
	return s
}

// Start runs the HTTP server until the context is cancelled, then shuts
// down gracefully.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", addr).Info("HTTP server listening")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/ingest", s.handleIngest)
		v1.POST("/query", s.handleQuery)
		v1.GET("/nodes", s.handleListNodes)
		v1.GET("/nodes/:id", s.handleGetNode)
		v1.DELETE("/nodes/:id", s.handleDeleteNode)
		v1.GET("/concepts/pending", s.handlePendingConcepts)
		v1.POST("/concepts/promote", s.handlePromote)
		v1.POST("/links", s.handleUpsertLink)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"version":   s.version,
	})
}

func (s *Server) handleIngest(c *gin.Context) {
	var extraction domain.ExtractionResult
	if err := c.ShouldBindJSON(&extraction); err != nil {
		s.badRequest(c, err)
		return
	}

	report, err := s.svc.IngestExtraction(c.Request.Context(), &extraction)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) handleQuery(c *gin.Context) {
	var obs domain.Observation
	if err := c.ShouldBindJSON(&obs); err != nil {
		s.badRequest(c, err)
		return
	}

	results, err := s.svc.Query(c.Request.Context(), obs)
	if err != nil {
		s.fail(c, err)
		return
	}

	// Zero-score results are diagnostics, not answers.
	filtered := make([]domain.InferenceResult, 0, len(results))
	for _, r := range results {
		if r.Score > 0 {
			filtered = append(filtered, r)
		}
	}
	c.JSON(http.StatusOK, gin.H{"results": filtered, "evaluated": len(results)})
}

func (s *Server) handleListNodes(c *gin.Context) {
	nodes, err := s.svc.ListNodes(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"nodes": nodes})
}

func (s *Server) handleGetNode(c *gin.Context) {
	node, err := s.svc.GetNode(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, node)
}

func (s *Server) handleDeleteNode(c *gin.Context) {
	if err := s.svc.DeleteNode(c.Request.Context(), c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": c.Param("id")})
}

func (s *Server) handlePendingConcepts(c *gin.Context) {
	pending, err := s.svc.PendingConcepts(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"pending": pending})
}

func (s *Server) handlePromote(c *gin.Context) {
	promoted, err := s.svc.PromotePending(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"promoted": promoted})
}

func (s *Server) handleUpsertLink(c *gin.Context) {
	var link domain.SemanticLink
	if err := c.ShouldBindJSON(&link); err != nil {
		s.badRequest(c, err)
		return
	}

	if err := s.svc.UpsertLink(c.Request.Context(), link); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":          err.Error(),
		"correlation_id": c.GetString("correlation_id"),
	})
}

func (s *Server) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	var keyErr *domain.KeyError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.As(err, &keyErr), errors.Is(err, domain.ErrEmptyKey):
		status = http.StatusBadRequest
	}

	s.log.WithError(err).WithField("path", c.FullPath()).Error("Request failed")
	c.JSON(status, gin.H{
		"error":          err.Error(),
		"correlation_id": c.GetString("correlation_id"),
	})
}
