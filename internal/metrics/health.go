package metrics

import (
	"encoding/json"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
)

// HealthResponse is the metrics port's liveness body.
type HealthResponse struct {
	Status    string  `json:"status"`
	ErrorRate float64 `json:"error_rate"`
}

// HealthHandler answers 200 with the prediction error rate gathered from g.
func HealthHandler(g prometheus.Gatherer) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(HealthResponse{Status: "ok", ErrorRate: ErrorRate(g)})
	})
}
