package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/finscrape/finscrape/internal/fetch"
	"github.com/finscrape/finscrape/internal/logger"
	"github.com/finscrape/finscrape/internal/scraper"
	"github.com/finscrape/finscrape/internal/site"
)

const (
	RequestIDHeader = "X-Request-ID"
	ShutdownTimeout = 10 * time.Second

	// tickerPattern covers exchange symbols such as BRK.B, ^GSPC and EURUSD=X.
	tickerPattern = `[A-Za-z0-9.^=-]+`
)

// Server serves scrape results as JSON.
type Server struct {
	catalogue *site.Catalogue
	fetcher   fetch.Fetcher
	site      string
	ticker    string
	router    *mux.Router
}

// New creates a Server whose root route scrapes defaultSite for defaultTicker.
func New(cat *site.Catalogue, f fetch.Fetcher, defaultSite, defaultTicker string) (*Server, error) {
	if _, err := cat.Lookup(defaultSite); err != nil {
		return nil, fmt.Errorf("default site: %w", err)
	}

	s := &Server{
		catalogue: cat,
		fetcher:   f,
		site:      defaultSite,
		ticker:    defaultTicker,
		router:    mux.NewRouter(),
	}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.router.Use(requestID)
	s.router.HandleFunc("/", s.handleDefault).Methods(http.MethodGet)
	s.router.HandleFunc("/sites/{site}", s.handleSite).Methods(http.MethodGet)
	s.router.HandleFunc("/sites/{site}/{ticker:"+tickerPattern+"}", s.handleSite).Methods(http.MethodGet)
	s.router.HandleFunc("/metrics", s.handleMetrics).Methods(http.MethodGet)
	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
}

// Handler returns the router wrapped with access logging and panic recovery.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.router
	h = handlers.RecoveryHandler(
		handlers.RecoveryLogger(recoveryLogger{}),
		handlers.PrintRecoveryStack(false),
	)(h)
	h = handlers.CombinedLoggingHandler(logger.Default().Writer("http request"), h)
	return h
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", logger.Fields{
			"addr":   addr,
			"site":   s.site,
			"ticker": s.ticker,
		})
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving: %w", err)
	case <-ctx.Done():
	}

	logger.Info("server shutting down", nil)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	return nil
}

func (s *Server) handleDefault(w http.ResponseWriter, r *http.Request) {
	s.scrape(w, r, s.site, s.ticker)
}

func (s *Server) handleSite(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	ticker := vars["ticker"]
	if ticker == "" {
		ticker = s.ticker
	}
	s.scrape(w, r, vars["site"], ticker)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, logger.GetMetricsSnapshot())
}

func (s *Server) scrape(w http.ResponseWriter, r *http.Request, siteName, ticker string) {
	st, err := s.catalogue.Lookup(siteName)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	sh, err := scraper.New(s.fetcher, st).Scrape(r.Context(), ticker)
	if err != nil {
		status := statusFor(err)
		logger.Error("scrape failed", logger.Fields{
			"site":       siteName,
			"ticker":     ticker,
			"status":     status,
			"request_id": w.Header().Get(RequestIDHeader),
		}, err)
		writeError(w, status, err.Error())
		return
	}

	if st.Rule == site.RuleList {
		writeJSON(w, http.StatusOK, sh.Items())
		return
	}
	writeJSON(w, http.StatusOK, sh.Map())
}

// statusFor maps scrape errors onto response codes: timeouts are 504,
// other upstream problems 502, anything else 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, fetch.ErrTransport),
		errors.Is(err, fetch.ErrStatus),
		errors.Is(err, fetch.ErrDecode):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "Error marshaling to JSON", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

type recoveryLogger struct{}

func (recoveryLogger) Println(v ...interface{}) {
	logger.Error("panic serving request", logger.Fields{"panic": fmt.Sprint(v...)}, nil)
}
