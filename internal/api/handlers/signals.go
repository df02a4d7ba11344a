package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/Ziarant/StarPupil/internal/contracts"
	"github.com/Ziarant/StarPupil/pkg/logger"
)

// SignalHandler serves signal queries.
type SignalHandler struct {
	signals contracts.SignalRepository
	logger  *logger.Logger
}

// NewSignalHandler creates a signal handler.
func NewSignalHandler(signals contracts.SignalRepository, log *logger.Logger) *SignalHandler {
	return &SignalHandler{signals: signals, logger: log}
}

// ListByDate returns all signals for one trading date.
// GET /api/signals?date=2026-08-21 (default: today)
func (h *SignalHandler) ListByDate(w http.ResponseWriter, r *http.Request) {
	date := time.Now()
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		date = parsed
	}
	year, month, day := date.Date()
	date = time.Date(year, month, day, 0, 0, 0, 0, time.UTC)

	signals, err := h.signals.ListByDate(r.Context(), date)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list signals by date")
		respondError(w, http.StatusInternalServerError, "failed to list signals")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"date":    date.Format("2006-01-02"),
		"count":   len(signals),
		"signals": signals,
	})
}

// ListByInstrument returns signals for one instrument in a date range.
// GET /api/instruments/{id}/signals?from=2026-08-01&to=2026-08-21
func (h *SignalHandler) ListByInstrument(w http.ResponseWriter, r *http.Request) {
	instrumentID, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid instrument id")
		return
	}

	to := time.Now()
	from := to.AddDate(0, -1, 0)
	if raw := r.URL.Query().Get("from"); raw != "" {
		if from, err = time.Parse("2006-01-02", raw); err != nil {
			respondError(w, http.StatusBadRequest, "from must be YYYY-MM-DD")
			return
		}
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		if to, err = time.Parse("2006-01-02", raw); err != nil {
			respondError(w, http.StatusBadRequest, "to must be YYYY-MM-DD")
			return
		}
	}

	signals, err := h.signals.ListByInstrument(r.Context(), instrumentID, from, to)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list signals by instrument")
		respondError(w, http.StatusInternalServerError, "failed to list signals")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"instrument_id": instrumentID,
		"count":         len(signals),
		"signals":       signals,
	})
}
