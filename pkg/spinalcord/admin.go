package spinalcord

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/randalmurphal/spinalcord/pkg/spinalcord/eventlog"
	"github.com/randalmurphal/spinalcord/pkg/spinalcord/security"
)

// AdminHandler serves the operator endpoints:
//
//	GET  /metrics          Prometheus metrics from gatherer (omitted if nil)
//	GET  /health           liveness
//	GET  /safe-mode        current safe-mode status
//	POST /safe-mode/reset  reset request: {"operator", "reason", "token"}
//	GET  /events           up to 100 event log entries, filtered by ?kind= and ?name=
func (r *Runtime) AdminHandler(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()

	if gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{
			EnableOpenMetrics: true,
		}))
	}

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	mux.HandleFunc("GET /safe-mode", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, r.safety.Status())
	})

	mux.HandleFunc("POST /safe-mode/reset", func(w http.ResponseWriter, req *http.Request) {
		var body resetBody
		if err := json.NewDecoder(http.MaxBytesReader(w, req.Body, 1<<16)).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
			return
		}

		err := r.Reset(req.Context(), security.ResetRequest{
			Operator: body.Operator,
			Reason:   body.Reason,
			Token:    body.Token,
		})
		switch {
		case errors.Is(err, security.ErrResetDenied):
			writeJSON(w, http.StatusForbidden, errorBody{Error: err.Error()})
		case err != nil:
			writeJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error()})
		default:
			writeJSON(w, http.StatusOK, r.safety.Status())
		}
	})

	mux.HandleFunc("GET /events", func(w http.ResponseWriter, req *http.Request) {
		f := eventlog.Filter{
			Kind:  req.URL.Query().Get("kind"),
			Name:  req.URL.Query().Get("name"),
			Limit: 100,
		}
		entries, err := r.store.List(req.Context(), f)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, entries)
	})

	return mux
}

// resetBody is the JSON body accepted by POST /safe-mode/reset.
type resetBody struct {
	Operator string `json:"operator"`
	Reason   string `json:"reason"`
	Token    string `json:"token"`
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
