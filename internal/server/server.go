// Package server exposes a read-only HTTP status API for a running monitor.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/railwatch/crtm/internal/cache"
	"github.com/railwatch/crtm/internal/monitor"
	"github.com/railwatch/crtm/internal/store"
)

// maxHistoryLimit caps /api/v1/history?limit=
const maxHistoryLimit = 500

// ReportSource provides the latest cycle report. *monitor.Monitor implements it.
type ReportSource interface {
	LastReport() monitor.Report
}

// HistoryReader reads stored findings. *store.Store implements it.
type HistoryReader interface {
	Recent(ctx context.Context, limit int) ([]store.Entry, error)
}

// CacheSource reports cache statistics. *api.Client implements it.
type CacheSource interface {
	CacheStats() map[string]cache.Stats
}

// Options wires the API to its data sources. Nil sources answer 404.
type Options struct {
	Reports ReportSource
	History HistoryReader
	Caches  CacheSource
	Logger  *slog.Logger
	Version string
}

type handler struct {
	opts    Options
	started time.Time
}

// New builds the gin engine
func New(opts Options) *gin.Engine {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	gin.SetMode(gin.ReleaseMode)

	h := &handler{opts: opts, started: time.Now()}

	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(opts.Logger))

	r.GET("/health", h.health)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/report", h.report)
		v1.GET("/findings", h.findings)
		v1.GET("/history", h.history)
		v1.GET("/cache", h.cacheStats)
	}

	return r
}

// Serve runs the API on addr until ctx is done, then shuts down gracefully
func Serve(ctx context.Context, addr string, engine *gin.Engine, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           otelhttp.NewHandler(engine, "status-api"),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("status API listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}

func (h *handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": h.opts.Version,
		"uptime":  time.Since(h.started).Round(time.Second).String(),
	})
}

// report handles GET /api/v1/report
func (h *handler) report(c *gin.Context) {
	if h.opts.Reports == nil {
		fail(c, http.StatusNotFound, "monitor not running")
		return
	}
	success(c, h.opts.Reports.LastReport())
}

// findings handles GET /api/v1/findings
func (h *handler) findings(c *gin.Context) {
	if h.opts.Reports == nil {
		fail(c, http.StatusNotFound, "monitor not running")
		return
	}
	r := h.opts.Reports.LastReport()
	success(c, gin.H{
		"cycle":    r.Cycle,
		"finished": r.Finished,
		"total":    r.Total(),
		"routes":   r.Routes,
	})
}

// history handles GET /api/v1/history?limit=N
func (h *handler) history(c *gin.Context) {
	if h.opts.History == nil {
		fail(c, http.StatusNotFound, "history disabled")
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 {
		fail(c, http.StatusBadRequest, "invalid limit parameter")
		return
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	entries, err := h.opts.History.Recent(c.Request.Context(), limit)
	if err != nil {
		_ = c.Error(err)
		fail(c, http.StatusInternalServerError, "failed to read history")
		return
	}
	if entries == nil {
		entries = []store.Entry{}
	}
	success(c, entries)
}

type cacheView struct {
	Name    string `json:"name"`
	Total   int    `json:"total"`
	Valid   int    `json:"valid"`
	Expired int    `json:"expired"`
	MaxSize int    `json:"maxSize"`
	TTL     string `json:"ttl"`
}

// cacheStats handles GET /api/v1/cache
func (h *handler) cacheStats(c *gin.Context) {
	if h.opts.Caches == nil {
		fail(c, http.StatusNotFound, "no caches")
		return
	}

	stats := h.opts.Caches.CacheStats()
	names := make([]string, 0, len(stats))
	for name := range stats {
		names = append(names, name)
	}
	sort.Strings(names)

	views := make([]cacheView, 0, len(names))
	for _, name := range names {
		s := stats[name]
		views = append(views, cacheView{
			Name:    name,
			Total:   s.Total,
			Valid:   s.Valid,
			Expired: s.Expired,
			MaxSize: s.MaxSize,
			TTL:     s.TTL.String(),
		})
	}
	success(c, views)
}
