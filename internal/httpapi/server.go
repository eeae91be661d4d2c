// Package httpapi serves the local archive over HTTP for viewers.
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/suinrdeveloper-dev/vault"
)

// Archive is the narrow client contract required by the HTTP API.
type Archive interface {
	Records(ctx context.Context) ([]vault.SyncedRecord, error)
	Search(ctx context.Context, q string) ([]vault.SyncedRecord, error)
	Get(ctx context.Context, remoteID string) (*vault.SyncedRecord, error)
	Subscribe(q string) (*vault.Subscription, error)
	Notifications(buffer int) (<-chan string, func())
	Stats(ctx context.Context) (*vault.StoreStats, error)
	Sync(ctx context.Context) (*vault.CycleResult, error)
	HealthCheck(ctx context.Context) vault.HealthStatus
}

// Server provides the archive HTTP API.
type Server struct {
	addr      string
	archive   Archive
	logger    zerolog.Logger
	server    *http.Server
	ctx       context.Context
	cancel    context.CancelFunc
	startTime time.Time
}

// NewServer creates a new HTTP API server.
func NewServer(addr string, archive Archive, logger zerolog.Logger) *Server {
	if addr == "" {
		addr = "127.0.0.1:8787"
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		addr:      addr,
		archive:   archive,
		logger:    logger.With().Str("component", "httpapi").Logger(),
		ctx:       ctx,
		cancel:    cancel,
		startTime: time.Now(),
	}
}

// Handler returns the API router.
func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), s.accessLog())

	api := r.Group("/api")
	api.GET("/health", s.handleHealth)
	api.GET("/stats", s.handleStats)
	api.GET("/records", s.handleRecords)
	api.GET("/records/stream", s.handleRecordStream)
	api.GET("/records/:remote_id", s.handleRecord)
	api.GET("/events", s.handleEvents)
	api.POST("/sync", s.handleSync)

	return r
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	gin.SetMode(gin.ReleaseMode)

	s.server = &http.Server{
		Handler:           s.Handler(),
		BaseContext:       func(_ net.Listener) context.Context { return s.ctx },
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.addr = listener.Addr().String()
	s.startTime = time.Now()

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("http server stopped")
		}
	}()
	s.logger.Info().Str("addr", s.addr).Msg("http api listening")
	return nil
}

// Addr returns the listen address, resolved after Start.
func (s *Server) Addr() string {
	return s.addr
}

// Stop gracefully shuts down the HTTP server. Open event streams end when
// the base context is cancelled.
func (s *Server) Stop() error {
	s.cancel()
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	status := s.archive.HealthCheck(c.Request.Context())

	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status":           healthWord(status.Healthy),
		"uptime":           time.Since(s.startTime).String(),
		"store_ok":         status.StoreOK,
		"remote_reachable": status.RemoteReachable,
		"error":            status.Error,
	})
}

func healthWord(ok bool) string {
	if ok {
		return "ok"
	}
	return "degraded"
}

func (s *Server) handleStats(c *gin.Context) {
	stats, err := s.archive.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read store stats"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) handleRecords(c *gin.Context) {
	records, err := s.archive.Search(c.Request.Context(), c.Query("q"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query records"})
		return
	}

	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		if limit > 0 && limit < len(records) {
			records = records[:limit]
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"records": records,
		"count":   len(records),
	})
}

func (s *Server) handleRecord(c *gin.Context) {
	rec, err := s.archive.Get(c.Request.Context(), c.Param("remote_id"))
	if errors.Is(err, vault.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "record not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read record"})
		return
	}
	c.JSON(http.StatusOK, rec)
}

// handleRecordStream sends a "snapshot" event with the full result of the
// search whenever it changes.
func (s *Server) handleRecordStream(c *gin.Context) {
	sub, err := s.archive.Subscribe(c.Query("q"))
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "store unavailable"})
		return
	}
	defer sub.Close()

	setEventStreamHeaders(c)
	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-sub.C:
			if !ok {
				return
			}
			c.SSEvent("snapshot", gin.H{"records": snap, "count": len(snap)})
			c.Writer.Flush()
		}
	}
}

// handleEvents relays notifier messages as "message" events.
func (s *Server) handleEvents(c *gin.Context) {
	msgs, cancel := s.archive.Notifications(16)
	defer cancel()

	setEventStreamHeaders(c)
	c.Writer.Flush()
	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			c.SSEvent("message", msg)
			c.Writer.Flush()
		}
	}
}

// eventStreamContentType matches what c.SSEvent writes, so the header does
// not change between the initial flush and the first event.
const eventStreamContentType = "text/event-stream;charset=utf-8"

func setEventStreamHeaders(c *gin.Context) {
	c.Header("Content-Type", eventStreamContentType)
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)
}

func (s *Server) handleSync(c *gin.Context) {
	result, err := s.archive.Sync(c.Request.Context())
	switch {
	case errors.Is(err, vault.ErrOffline):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no remote queue configured"})
		return
	case errors.Is(err, vault.ErrCycleInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": "sync cycle already in progress"})
		return
	case errors.Is(err, vault.ErrStoreClosed):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "store closed"})
		return
	case err != nil:
		c.JSON(http.StatusBadGateway, gin.H{
			"error":  err.Error(),
			"kind":   vault.KindOf(err).String(),
			"result": result,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"result":  result,
		"summary": result.Summary(),
	})
}
