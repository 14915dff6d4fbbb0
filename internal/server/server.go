// Package server exposes statistic runs over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sells-group/blsgeo/internal/apperr"
	"github.com/sells-group/blsgeo/internal/geo"
	"github.com/sells-group/blsgeo/internal/laborstat"
)

// maxBodyBytes bounds request bodies; boundaries are inline GeoJSON.
const maxBodyBytes = 16 << 20

// Runner runs a named statistic.
type Runner interface {
	Run(ctx context.Context, name string, req laborstat.Request, params map[string][]string) (*laborstat.Result, error)
}

// Options configures a Server.
type Options struct {
	Runner Runner
	// Gatherer backs /metrics; nil means the default registry.
	Gatherer prometheus.Gatherer
	// APIKey is used when a request carries none.
	APIKey string
	// Predicate and Buffer are request defaults.
	Predicate string
	Buffer    float64
	// AllowedOrigins for CORS; empty allows any origin.
	AllowedOrigins []string
}

// Server handles statistic requests.
type Server struct {
	opts       Options
	handler    http.Handler
	httpServer *http.Server
}

// New creates a Server with its routes mounted.
func New(opts Options) *Server {
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}

	s := &Server{opts: opts}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	r.Route("/v1", func(r chi.Router) {
		r.Get("/statistics", s.handleStatistics)
		r.Post("/{statistic}", s.handleRun)
	})

	s.handler = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is canceled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zap.L().Info("starting server", zap.String("addr", addr))
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		zap.L().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatistics(w http.ResponseWriter, _ *http.Request) {
	type statistic struct {
		Name     string              `json:"name"`
		Title    string              `json:"title"`
		Regions  string              `json:"regions"`
		Defaults map[string][]string `json:"defaults"`
	}
	var out []statistic
	for _, name := range laborstat.Names() {
		stat, _ := laborstat.Lookup(name)
		out = append(out, statistic{
			Name:     stat.Name,
			Title:    stat.Title,
			Regions:  stat.Product.Name,
			Defaults: stat.Defaults,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// runRequest is the body of POST /v1/{statistic}. Boundaries are inline only;
// the server never reads boundary files from its own disk.
type runRequest struct {
	Boundary   json.RawMessage     `json:"boundary"`
	APIKey     string              `json:"api_key"`
	Predicate  string              `json:"predicate"`
	Buffer     *float64            `json:"buffer"`
	FullSeries bool                `json:"full_series"`
	StartYear  int                 `json:"start_year"`
	EndYear    int                 `json:"end_year"`
	Params     map[string][]string `json:"params"`
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "statistic")
	log := zap.L().With(
		zap.String("component", "server"),
		zap.String("statistic", name),
		zap.String("request_id", middleware.GetReqID(r.Context())),
	)

	var body runRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if len(body.Boundary) == 0 {
		writeError(w, http.StatusBadRequest, "boundary is required")
		return
	}
	boundary, err := geo.ParseBoundaryGeoJSON(body.Boundary)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	req := laborstat.Request{
		Boundary:   &boundary,
		APIKey:     body.APIKey,
		Predicate:  body.Predicate,
		Buffer:     body.Buffer,
		FullSeries: body.FullSeries,
		StartYear:  body.StartYear,
		EndYear:    body.EndYear,
	}
	if req.APIKey == "" {
		req.APIKey = s.opts.APIKey
	}
	if req.Predicate == "" {
		req.Predicate = s.opts.Predicate
	}
	if req.Buffer == nil {
		buffer := s.opts.Buffer
		req.Buffer = &buffer
	}

	res, err := s.opts.Runner.Run(r.Context(), name, req, body.Params)
	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			log.Error("statistic run failed", zap.Error(err))
		} else {
			log.Info("statistic request rejected", zap.Error(err))
		}
		writeError(w, status, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// statusFor maps error kinds to HTTP status codes.
func statusFor(err error) int {
	switch {
	case apperr.IsInvalidArgument(err):
		return http.StatusBadRequest
	case apperr.IsExternalService(err), apperr.IsDataFormat(err):
		return http.StatusBadGateway
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
