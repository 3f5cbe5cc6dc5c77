package handler

import (
	"context"
	"net/http"
	"time"

	"go-office-trash/internal/datastore"
	"go-office-trash/internal/model"
)

type StatusChecker interface {
	Status(ctx context.Context) (datastore.Status, error)
}

type SystemHandler struct {
	store    StatusChecker
	settings model.TrashSettings
	started  time.Time
}

func NewSystemHandler(store StatusChecker, settings model.TrashSettings) *SystemHandler {
	return &SystemHandler{store: store, settings: settings, started: time.Now().UTC()}
}

func (h *SystemHandler) Health(w http.ResponseWriter, r *http.Request) {
	status, err := h.store.Status(r.Context())
	if err != nil || !status.Connected {
		writeError(w, model.ErrStorageUnavailable)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"datastore": status,
		"uptime":    time.Since(h.started).Round(time.Second).String(),
	}, nil)
}

// Settings exposes the trash settings the process was started with.
func (h *SystemHandler) Settings(w http.ResponseWriter, _ *http.Request) {
	writeSuccess(w, http.StatusOK, h.settings, nil)
}
