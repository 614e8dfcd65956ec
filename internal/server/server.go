// Package server exposes the workspace and the analytics core over HTTP.
package server

import (
	"net/http"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/KaramelBytes/instadash-cli/internal/analysis"
	"github.com/KaramelBytes/instadash-cli/internal/dataset"
	"github.com/KaramelBytes/instadash-cli/internal/metrics"
	"github.com/KaramelBytes/instadash-cli/internal/query"
	"github.com/KaramelBytes/instadash-cli/internal/workspace"
)

const defaultMaxUploadBytes = 64 << 20

// Options configure the HTTP server.
type Options struct {
	Analysis       analysis.Options
	Query          query.Options
	Load           dataset.LoadOptions
	AllowedOrigins []string
	// MaxUploadBytes caps multipart uploads; 0 means 64 MiB.
	MaxUploadBytes int64
}

// Server serves the dataset API. Snapshots of analysed datasets are cached
// in memory and dropped on delete.
type Server struct {
	store    *workspace.Store
	fallback query.Fallback
	opt      Options
	validate *validator.Validate

	mu        sync.RWMutex
	snapshots map[string]*query.Snapshot
}

// New returns a server over store. fb may be nil, in which case chat answers
// come from the deterministic engine and heuristics only.
func New(store *workspace.Store, fb query.Fallback, opt Options) *Server {
	if opt.MaxUploadBytes <= 0 {
		opt.MaxUploadBytes = defaultMaxUploadBytes
	}
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &Server{
		store:     store,
		fallback:  fb,
		opt:       opt,
		validate:  v,
		snapshots: map[string]*query.Snapshot{},
	}
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	if len(s.opt.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.opt.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
			ExposedHeaders:   []string{"X-Request-Id"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/datasets", func(r chi.Router) {
		r.Post("/", s.handleUpload)
		r.Get("/", s.handleList)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGet)
			r.Delete("/", s.handleDelete)
			r.Get("/analysis", s.handleAnalysis)
			r.Post("/chat", s.handleChat)
			r.Post("/pivot", s.handlePivot)
			r.Post("/explain-spike", s.handleExplainSpike)
		})
	})
	return r
}

// snapshot returns the cached snapshot of id, loading the table and the
// stored analysis (or analysing afresh when none is stored).
func (s *Server) snapshot(id string) (*query.Snapshot, error) {
	s.mu.RLock()
	snap, ok := s.snapshots[id]
	s.mu.RUnlock()
	if ok {
		return snap, nil
	}

	t, err := s.store.Table(id)
	if err != nil {
		return nil, err
	}
	a, err := s.store.LoadAnalysis(id)
	if err != nil {
		a = s.analyze(t)
		if err := s.store.SaveAnalysis(id, a); err != nil {
			return nil, err
		}
	}
	snap = query.NewSnapshot(t, a)
	s.mu.Lock()
	s.snapshots[id] = snap
	s.mu.Unlock()
	return snap, nil
}

func (s *Server) analyze(t *dataset.Table) *analysis.Analysis {
	start := time.Now()
	a := analysis.Analyze(t, s.opt.Analysis)
	metrics.ObserveAnalysis(t.Len(), time.Since(start))
	return a
}

func (s *Server) forget(id string) {
	s.mu.Lock()
	delete(s.snapshots, id)
	s.mu.Unlock()
}
