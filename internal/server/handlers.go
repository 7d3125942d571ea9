package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"reflect"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"smartscholar/internal/features"
	"smartscholar/internal/ml"
)

// PredictionResponse is the body of a successful prediction.
type PredictionResponse struct {
	DropoutRisk        int          `json:"dropout_risk"`
	DropoutProbability float64      `json:"dropout_probability"`
	PredictedGPA       float64      `json:"predicted_gpa"`
	RiskLevel          ml.RiskLevel `json:"risk_level"`
	Recommendations    []string     `json:"recommendations"`
}

// AnalyzeRequest is the body of an analysis request. Text may be empty but
// must be present.
type AnalyzeRequest struct {
	Text *string `json:"text" validate:"required"`
}

// HealthResponse reports process liveness and whether models are loaded.
type HealthResponse struct {
	Status       string `json:"status"`
	ModelsLoaded bool   `json:"models_loaded"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "SmartScholar API is running!"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:       "healthy",
		ModelsLoaded: s.predictor != nil && s.predictor.Available(),
	})
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	var in features.Input
	if status, err := decodeJSON(w, r, predictBodyLimit, &in); err != nil {
		writeError(w, status, err.Error())
		return
	}

	f, err := in.Resolve()
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	if s.predictor == nil {
		writeError(w, http.StatusServiceUnavailable, ml.ErrServiceUnavailable.Error())
		return
	}
	res, err := s.predictor.Predict(f)
	switch {
	case errors.Is(err, ml.ErrServiceUnavailable):
		writeError(w, http.StatusServiceUnavailable, ml.ErrServiceUnavailable.Error())
		return
	case errors.Is(err, features.ErrValidation):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	case err != nil:
		log.Error().Err(err).Str("request_id", requestID(r)).Msg("prediction failed")
		writeError(w, http.StatusInternalServerError, "prediction failed")
		return
	}

	writeJSON(w, http.StatusOK, PredictionResponse{
		DropoutRisk:        int(res.DropoutRiskPercent),
		DropoutProbability: math.Round(res.DropoutProbability*1000) / 1000,
		PredictedGPA:       res.PredictedGPA,
		RiskLevel:          res.RiskLevel,
		Recommendations:    res.Recommendations,
	})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if status, err := decodeJSON(w, r, int64(s.maxTextChars)*maxJSONBytesPerChar+envelopeSlack, &req); err != nil {
		writeError(w, status, err.Error())
		return
	}

	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, s.describe(err))
		return
	}
	if err := s.validate.Var(*req.Text, fmt.Sprintf("max=%d", s.maxTextChars)); err != nil {
		writeError(w, http.StatusUnprocessableEntity, fmt.Sprintf("text must be at most %d characters", s.maxTextChars))
		return
	}

	writeJSON(w, http.StatusOK, s.analyzer.Analyze(r.Context(), *req.Text))
}

func (s *Server) handleModelInfo(w http.ResponseWriter, r *http.Request) {
	if s.predictor == nil {
		writeError(w, http.StatusServiceUnavailable, ml.ErrServiceUnavailable.Error())
		return
	}
	info, err := s.predictor.Info()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, ml.ErrServiceUnavailable.Error())
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// describe turns validator errors into one readable line.
func (s *Server) describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	return verrs[0].Translate(s.translator)
}

// decodeJSON reads a bounded JSON body into v. The returned status is the
// one to answer with when err is non-nil.
func decodeJSON(w http.ResponseWriter, r *http.Request, limit int64, v any) (int, error) {
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil {
		return 0, nil
	}

	var tooLarge *http.MaxBytesError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge, fmt.Errorf("request body exceeds %d bytes", tooLarge.Limit)
	case errors.Is(err, io.EOF):
		return http.StatusBadRequest, errors.New("request body is required")
	case errors.As(err, &typeErr):
		return http.StatusBadRequest, fmt.Errorf("%s must be a %s", typeErr.Field, jsonType(typeErr.Type))
	default:
		return http.StatusBadRequest, fmt.Errorf("invalid request: %v", err)
	}
}

// jsonType names the JSON type a Go type decodes from.
func jsonType(t reflect.Type) string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Float32, reflect.Float64, reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "number"
	case reflect.Bool:
		return "boolean"
	case reflect.Slice, reflect.Array:
		return "list"
	case reflect.Map, reflect.Struct:
		return "object"
	default:
		return t.Kind().String()
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Detail: detail})
}
