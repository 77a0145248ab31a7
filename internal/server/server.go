// Package server exposes the transformation pipeline to the dashboard over
// HTTP. Submissions run synchronously; concurrency is bounded by a weighted
// semaphore and a disconnected caller cancels its in-flight submission.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	json "github.com/json-iterator/go"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/scanforge/scanforge/api/schemas"
	"github.com/scanforge/scanforge/internal/config"
	"github.com/scanforge/scanforge/internal/orchestrator"
)

// Transformer is the narrow contract the server needs from the orchestrator.
type Transformer interface {
	Transform(ctx context.Context, req orchestrator.SubmissionRequest) (*schemas.TransformationResult, error)
}

// Server hosts the dashboard-facing HTTP API.
type Server struct {
	cfg         config.ServerConfig
	logger      *zap.Logger
	transformer Transformer
	history     schemas.HistoryStore // nil disables the history endpoint
	sem         *semaphore.Weighted
	httpSrv     *http.Server
}

// New creates the server.
func New(cfg config.ServerConfig, logger *zap.Logger, transformer Transformer, history schemas.HistoryStore) *Server {
	s := &Server{
		cfg:         cfg,
		logger:      logger.Named("server"),
		transformer: transformer,
		history:     history,
		sem:         semaphore.NewWeighted(cfg.MaxConcurrent),
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger())

	api := router.Group("/api/v1")
	api.POST("/transforms", s.handleTransform)
	api.GET("/transforms/:fingerprint", s.handleHistory)
	router.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	s.httpSrv = &http.Server{
		Addr:    cfg.Listen,
		Handler: router,
	}
	return s
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.httpSrv.Handler }

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening.", zap.String("addr", s.cfg.Listen))
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
			return
		}
		errChan <- nil
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errChan
}

type transformRequest struct {
	Source           string   `json:"source"`
	DetectionAliases []string `json:"detection_aliases,omitempty"`
	HelperNames      []string `json:"helper_names,omitempty"`
}

func (s *Server) handleTransform(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}
	if int64(len(body)) > s.cfg.MaxSourceBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "source exceeds configured size limit"})
		return
	}

	var req transformRequest
	if err := json.Unmarshal(body, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed JSON body"})
		return
	}
	if req.Source == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "source must not be empty"})
		return
	}

	// The request context tracks caller disconnects, so an abandoned
	// submission cancels the in-flight generation attempt.
	ctx := c.Request.Context()
	if err := s.sem.Acquire(ctx, 1); err != nil {
		c.Status(statusClientClosedRequest)
		return
	}
	defer s.sem.Release(1)

	result, err := s.transformer.Transform(ctx, orchestrator.SubmissionRequest{
		Source:           req.Source,
		DetectionAliases: req.DetectionAliases,
		HelperNames:      req.HelperNames,
	})
	switch {
	case err == nil:
		c.JSON(http.StatusOK, result)
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		// Cancelled submissions produce no TransformationResult; nothing to
		// report to a caller that already left.
		c.Status(statusClientClosedRequest)
	case errors.Is(err, schemas.ErrInputUnusable):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, schemas.ErrSynthesisInvariant):
		s.logger.Error("Synthesis invariant violated.", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal synthesis error"})
	default:
		s.logger.Error("Transform failed.", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func (s *Server) handleHistory(c *gin.Context) {
	if s.history == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "history persistence is not configured"})
		return
	}

	fingerprint := c.Param("fingerprint")
	records, err := s.history.GetByFingerprint(c.Request.Context(), fingerprint)
	if err != nil {
		s.logger.Error("History lookup failed.", zap.String("fingerprint", fingerprint), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "history lookup failed"})
		return
	}
	if len(records) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "no transforms recorded for fingerprint"})
		return
	}
	c.JSON(http.StatusOK, records)
}

// statusClientClosedRequest mirrors nginx's non-standard 499 for abandoned
// requests.
const statusClientClosedRequest = 499

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("Request handled.",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)))
	}
}
