// Package web serves the dashboard, a JSON API and an SSE stream of
// portfolio records.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/vadiminshakov/chainguardian/internal/domain"
	"github.com/vadiminshakov/chainguardian/internal/metrics"
	"go.uber.org/zap"
)

const (
	recordPollInterval = 2 * time.Second
	heartbeatInterval  = 30 * time.Second
)

type recordReader interface {
	RecordsAfter(index uint64, account string) ([]domain.PortfolioRecordEntry, error)
}

type portfolioSource interface {
	Latest() *domain.PortfolioRecord
	Trigger()
}

// Server exposes HTTP endpoints serving the HTML UI, the JSON API and an SSE stream.
type Server struct {
	Addr      string
	Account   string
	Store     recordReader
	Portfolio portfolioSource

	l            *zap.Logger
	pollInterval time.Duration
}

// NewServer creates a new web server instance. store and portfolio may be
// nil, their endpoints then answer 503.
func NewServer(addr, account string, store recordReader, portfolio portfolioSource, l *zap.Logger) *Server {
	return &Server{
		Addr:         addr,
		Account:      account,
		Store:        store,
		Portfolio:    portfolio,
		l:            l,
		pollInterval: recordPollInterval,
	}
}

// Handler returns the router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)

	r.Get("/", s.handleIndex)
	r.Route("/api", func(r chi.Router) {
		r.Get("/portfolio", s.handlePortfolio)
		r.Post("/refresh", s.handleRefresh)
		r.Get("/stream", s.handleStream)
	})
	r.Handle("/metrics", metrics.Handler())

	return r
}

// Start runs the HTTP server (blocking) and shuts it down when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.l.Info("web dashboard listening", zap.String("addr", s.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, indexHTML)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	if s.Portfolio == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "refresher not available"})
		return
	}
	record := s.Portfolio.Latest()
	if record == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "no refresh completed yet"})
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if s.Portfolio == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "refresher not available"})
		return
	}
	s.Portfolio.Trigger()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "refresh requested"})
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if s.Store == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, "record store not available")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	lastIndex := uint64(0)
	if after := r.URL.Query().Get("after"); after != "" {
		v, err := strconv.ParseUint(after, 10, 64)
		if err != nil {
			http.Error(w, "invalid after parameter", http.StatusBadRequest)
			return
		}
		lastIndex = v
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	metrics.StreamClients.Inc()
	defer metrics.StreamClients.Dec()

	// comment heartbeat keeps proxies from closing idle connections
	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	pollTicker := time.NewTicker(s.pollInterval)
	defer pollTicker.Stop()

	sendRecords := func() error {
		entries, err := s.Store.RecordsAfter(lastIndex, s.Account)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			payload, err := json.Marshal(entry.Record)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "id: %d\n", entry.Index)
			fmt.Fprintf(w, "event: portfolio\n")
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
			lastIndex = entry.Index
		}
		return nil
	}

	if err := sendRecords(); err != nil {
		http.Error(w, "failed to load records", http.StatusInternalServerError)
		s.l.Error("portfolio stream initial load", zap.Error(err))
		return
	}
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprintf(w, ": ping\n\n")
			flusher.Flush()
		case <-pollTicker.C:
			if err := sendRecords(); err != nil {
				s.l.Warn("portfolio stream poll", zap.Error(err))
			}
		}
	}
}
