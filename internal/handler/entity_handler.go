package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"go-office-trash/internal/model"
	"go-office-trash/internal/service"
)

type EntityHandler struct {
	service  *service.EntityService
	settings model.TrashSettings
}

func NewEntityHandler(service *service.EntityService, settings model.TrashSettings) *EntityHandler {
	return &EntityHandler{service: service, settings: settings}
}

func entityTypeParam(r *http.Request) model.EntityType {
	return model.EntityType(chi.URLParam(r, "type"))
}

func (h *EntityHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.List(r.Context(), entityTypeParam(r))
	if err != nil {
		writeError(w, err)
		return
	}

	meta := model.NewMeta(1, len(items), len(items))
	writeSuccess(w, http.StatusOK, model.EntityListData{Items: items}, &meta)
}

func (h *EntityHandler) Create(w http.ResponseWriter, r *http.Request) {
	var payload json.RawMessage
	if err := decodeJSON(r, &payload, false); err != nil {
		writeError(w, err)
		return
	}

	created, err := h.service.Create(r.Context(), entityTypeParam(r), payload, actorFromRequest(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, created, nil)
}

func (h *EntityHandler) Get(w http.ResponseWriter, r *http.Request) {
	record, err := h.service.Get(r.Context(), entityTypeParam(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, record, nil)
}

func (h *EntityHandler) Update(w http.ResponseWriter, r *http.Request) {
	var patch map[string]any
	if err := decodeJSON(r, &patch, false); err != nil {
		writeError(w, err)
		return
	}

	updated, err := h.service.Update(r.Context(), entityTypeParam(r), chi.URLParam(r, "id"), patch, actorFromRequest(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, updated, nil)
}

func (h *EntityHandler) Delete(w http.ResponseWriter, r *http.Request) {
	var payload model.DeleteEntityRequest
	if err := decodeJSON(r, &payload, true); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.service.Delete(r.Context(), entityTypeParam(r), chi.URLParam(r, "id"), payload.Reason, payload.Hard, actorFromRequest(r), h.settings)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, result, nil)
}
