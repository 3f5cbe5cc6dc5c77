package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"go-office-trash/internal/model"
	"go-office-trash/internal/service"
)

type JobsHandler struct {
	service  *service.JobService
	settings model.TrashSettings
}

func NewJobsHandler(service *service.JobService, settings model.TrashSettings) *JobsHandler {
	return &JobsHandler{service: service, settings: settings}
}

func (h *JobsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var payload model.JobRequest
	if err := decodeJSON(r, &payload, false); err != nil {
		writeError(w, err)
		return
	}

	actor := actorFromRequest(r)
	// Purge jobs need the same roles as DELETE /trash/{id}.
	if strings.EqualFold(strings.TrimSpace(payload.Operation), service.JobOperationDelete) &&
		actor.Role != model.RoleAdmin && actor.Role != model.RoleManager {
		writeError(w, model.ErrForbidden)
		return
	}

	job, err := h.service.CreateJob(r.Context(), payload, actor, h.settings)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusAccepted, job, nil)
}

func (h *JobsHandler) Get(w http.ResponseWriter, r *http.Request) {
	job, err := h.service.GetJob(r.Context(), chi.URLParam(r, "job_id"), actorFromRequest(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, job, nil)
}
