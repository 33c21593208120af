package httpserver

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/ruteri/commit-reveal-driver/runner"
)

// StatusSource reports the progress of a run. Implemented by *runner.Runner.
type StatusSource interface {
	Status() runner.Status
	Ready() bool
}

// Handler serves the run status.
type Handler struct {
	source StatusSource
	log    *slog.Logger
}

func NewHandler(source StatusSource, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{source: source, log: log}
}

// Ready reports whether the run has registered its identity.
func (h *Handler) Ready() bool {
	return h.source.Ready()
}

// HandleStatus writes the current phase, driver state and last report as JSON.
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	body, err := json.Marshal(h.source.Status())
	if err != nil {
		h.log.Error("Failed to encode status", "err", err)
		http.Error(w, "failed to encode status", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func writeStatus(w http.ResponseWriter, code int, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": status})
}
