// Package server exposes the prediction service and the assignment analyzer
// over HTTP.
package server

import (
	"context"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"smartscholar/internal/feedback"
	"smartscholar/internal/features"
	"smartscholar/internal/ml"
)

// Route paths.
const (
	RootPath      = "/"
	HealthPath    = "/health"
	PredictPath   = "/api/predictions/predict"
	AnalyzePath   = "/api/predictions/analyze-assignment"
	ModelInfoPath = "/api/predictions/model/info"

	RequestIDHeader = "X-Request-ID"

	// unmatchedRoute labels requests that matched no route.
	unmatchedRoute = "unmatched"

	// predictBodyLimit bounds prediction request bodies.
	predictBodyLimit = 16 << 10
	// envelopeSlack is the allowance for JSON framing around text.
	envelopeSlack = 1 << 10
	// maxJSONBytesPerChar is the longest JSON encoding of one character,
	// an escaped surrogate pair.
	maxJSONBytesPerChar = 12
)

// Predictor is the prediction service the server fronts.
type Predictor interface {
	Predict(f features.StudentFeatures) (*ml.PredictionResult, error)
	Info() (map[features.ModelID]ml.ArtifactInfo, error)
	Available() bool
}

// Analyzer scores assignment text.
type Analyzer interface {
	Analyze(ctx context.Context, text string) feedback.Analysis
}

// MetricsInterface records served requests.
type MetricsInterface interface {
	HTTPRequestObserve(route string, code int, seconds float64)
}

// Config carries the listener settings.
type Config struct {
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	MaxTextChars int
}

// Server is the HTTP API.
type Server struct {
	predictor Predictor
	analyzer  Analyzer
	metrics   MetricsInterface

	validate     *validator.Validate
	translator   ut.Translator
	maxTextChars int

	router *mux.Router
	server *http.Server
}

// New wires the routes. metrics may be nil.
func New(cfg Config, predictor Predictor, analyzer Analyzer, metrics MetricsInterface) *Server {
	if cfg.MaxTextChars <= 0 {
		cfg.MaxTextChars = 64 << 10
	}

	s := &Server{
		predictor:    predictor,
		analyzer:     analyzer,
		metrics:      metrics,
		maxTextChars: cfg.MaxTextChars,
	}
	s.initValidator()

	r := mux.NewRouter()
	r.HandleFunc(RootPath, s.handleRoot).Methods(http.MethodGet)
	r.HandleFunc(HealthPath, s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc(PredictPath, s.handlePredict).Methods(http.MethodPost)
	r.HandleFunc(AnalyzePath, s.handleAnalyze).Methods(http.MethodPost)
	r.HandleFunc(ModelInfoPath, s.handleModelInfo).Methods(http.MethodGet)
	// mux skips Use middleware when no route matches, so the fallback
	// handlers are wrapped explicitly.
	r.NotFoundHandler = s.requestMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Not Found")
	}))
	r.MethodNotAllowedHandler = s.requestMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	}))
	r.Use(s.requestMiddleware)
	s.router = r

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
	return s
}

func (s *Server) initValidator() {
	s.validate = validator.New()

	// Use JSON tag names for errors instead of Go struct names.
	s.validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	english := en.New()
	s.translator, _ = ut.New(english, english).GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(s.validate, s.translator)
}

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start begins serving HTTP requests
func (s *Server) Start() error {
	log.Info().Str("addr", s.server.Addr).Msg("starting API server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
