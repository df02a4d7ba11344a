package handlers

import (
	"net/http"

	"github.com/Ziarant/StarPupil/internal/contracts"
	"github.com/Ziarant/StarPupil/pkg/logger"
)

// InstrumentHandler serves instrument reference data.
type InstrumentHandler struct {
	instruments contracts.InstrumentRepository
	logger      *logger.Logger
}

// NewInstrumentHandler creates an instrument handler.
func NewInstrumentHandler(instruments contracts.InstrumentRepository, log *logger.Logger) *InstrumentHandler {
	return &InstrumentHandler{instruments: instruments, logger: log}
}

// ListActive returns the active instrument universe.
// GET /api/instruments
func (h *InstrumentHandler) ListActive(w http.ResponseWriter, r *http.Request) {
	instruments, err := h.instruments.ListActive(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to list instruments")
		respondError(w, http.StatusInternalServerError, "failed to list instruments")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":       len(instruments),
		"instruments": instruments,
	})
}
