// Package web serves the event index over HTTP: a read-only JSON API,
// per-event HTML reports and the prometheus scrape endpoint.
package web

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hpungsan/venueindex/internal/index"
)

// NewServer creates and configures the HTTP server. A nil gatherer leaves
// /metrics unregistered.
func NewServer(idx *index.Index, gatherer prometheus.Gatherer, logger *slog.Logger, version, bind string, port int) *http.Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	h := &Handlers{
		idx:     idx,
		version: version,
		log:     logger,
	}

	return &http.Server{
		Addr:              fmt.Sprintf("%s:%d", bind, port),
		Handler:           securityHeaders(routes(h, gatherer)),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func routes(h *Handlers, gatherer prometheus.Gatherer) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/events", http.StatusFound)
	})
	mux.HandleFunc("GET /events", h.HandleSearch)
	mux.HandleFunc("GET /events/{id}", h.HandleSummary)
	mux.HandleFunc("GET /events/{id}/communications", h.HandleCommunications)
	mux.HandleFunc("GET /events/{id}/report", h.HandleReport)
	mux.HandleFunc("GET /stats", h.HandleStatistics)
	mux.HandleFunc("GET /decisions", h.HandleDecisions)

	if gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	return mux
}

// securityHeaders adds security-related HTTP headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", "default-src 'self'")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		next.ServeHTTP(w, r)
	})
}

// Run starts the HTTP server and handles graceful shutdown on SIGINT/SIGTERM.
func Run(srv *http.Server, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	logger.Info("venueindex http listening", "addr", "http://"+srv.Addr)

	if strings.Contains(srv.Addr, "0.0.0.0") || strings.Contains(srv.Addr, "::") {
		logger.Warn("server is binding to all interfaces and may be accessible from the network")
	}

	select {
	case err := <-errCh:
		return err
	case <-sigCh:
		logger.Info("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	}
}
