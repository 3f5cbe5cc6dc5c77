package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"go-office-trash/internal/model"
	"go-office-trash/internal/retention"
	"go-office-trash/internal/service"
	"go-office-trash/pkg/apierror"
)

type TrashHandler struct {
	service  *service.TrashService
	settings model.TrashSettings
	now      func() time.Time
}

func NewTrashHandler(service *service.TrashService, settings model.TrashSettings) *TrashHandler {
	return &TrashHandler{
		service:  service,
		settings: settings,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (h *TrashHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, err := h.parseFilter(r)
	if err != nil {
		writeError(w, err)
		return
	}

	items, meta, err := h.service.List(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, model.TrashListData{Items: items}, &meta)
}

func (h *TrashHandler) parseFilter(r *http.Request) (service.TrashFilter, error) {
	query := r.URL.Query()

	filter := service.TrashFilter{
		DeletedBy:       strings.TrimSpace(query.Get("deleted_by")),
		NameGlob:        strings.TrimSpace(query.Get("name")),
		Search:          strings.TrimSpace(query.Get("q")),
		ExpiryState:     retention.State(strings.TrimSpace(query.Get("state"))),
		IncludeRestored: query.Get("include_restored") == "true",
		Now:             h.now(),
		NearExpiryDays:  retention.NearExpiryDays(h.settings),
		Page:            parseIntOrDefault(query.Get("page"), 1),
		Limit:           parseIntOrDefault(query.Get("limit"), 50),
	}

	for _, raw := range splitQueryList(query["type"]) {
		entityType := model.EntityType(raw)
		if !entityType.Valid() {
			return filter, apierror.BadRequest("unknown entity type", raw)
		}
		filter.EntityTypes = append(filter.EntityTypes, entityType)
	}

	var err error
	if filter.DeletedFrom, err = parseQueryTime(query.Get("from"), "from"); err != nil {
		return filter, err
	}
	if filter.DeletedTo, err = parseQueryTime(query.Get("to"), "to"); err != nil {
		return filter, err
	}

	if raw := strings.TrimSpace(query.Get("can_restore")); raw != "" {
		value, parseErr := strconv.ParseBool(raw)
		if parseErr != nil {
			return filter, apierror.BadRequest("can_restore must be true or false", "can_restore")
		}
		filter.CanRestore = &value
	}

	return filter, nil
}

func (h *TrashHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.GetStats(r.Context(), h.now(), h.settings)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, stats, nil)
}

func (h *TrashHandler) Export(w http.ResponseWriter, r *http.Request) {
	format := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format")))

	body, contentType, err := h.service.Export(r.Context(), format)
	if err != nil {
		writeError(w, err)
		return
	}

	extension := "json"
	if format == "csv" {
		extension = "csv"
	}
	filename := fmt.Sprintf("trash-%s.%s", h.now().Format("20060102-150405"), extension)

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (h *TrashHandler) Get(w http.ResponseWriter, r *http.Request) {
	entry, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, entry, nil)
}

func (h *TrashHandler) Related(w http.ResponseWriter, r *http.Request) {
	related, err := h.service.RefreshRelated(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{"related_items": related}, nil)
}

func (h *TrashHandler) Restore(w http.ResponseWriter, r *http.Request) {
	var payload model.RestoreRequest
	if err := decodeJSON(r, &payload, true); err != nil {
		writeError(w, err)
		return
	}

	ref, err := h.service.Restore(r.Context(), chi.URLParam(r, "id"), actorFromRequest(r), payload.Reason, h.settings)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, ref, nil)
}

func (h *TrashHandler) Delete(w http.ResponseWriter, r *http.Request) {
	entryID := chi.URLParam(r, "id")
	if err := h.service.PermanentDelete(r.Context(), entryID, actorFromRequest(r)); err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{"id": entryID, "deleted": true}, nil)
}

func (h *TrashHandler) BulkRestore(w http.ResponseWriter, r *http.Request) {
	var payload model.BulkRequest
	if err := decodeJSON(r, &payload, false); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.service.BulkRestore(r.Context(), payload.IDs, actorFromRequest(r), payload.Reason, h.settings)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, bulkResponse(result), nil)
}

func (h *TrashHandler) BulkDelete(w http.ResponseWriter, r *http.Request) {
	var payload model.BulkRequest
	if err := decodeJSON(r, &payload, false); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.service.BulkPermanentDelete(r.Context(), payload.IDs, actorFromRequest(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, bulkResponse(result), nil)
}

// Expire runs the auto-expiry sweep on demand. An explicit "now" lets
// operators preview a future sweep in staging.
func (h *TrashHandler) Expire(w http.ResponseWriter, r *http.Request) {
	var payload model.ExpireRequest
	if err := decodeJSON(r, &payload, true); err != nil {
		writeError(w, err)
		return
	}

	now := h.now()
	if raw := strings.TrimSpace(payload.Now); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, apierror.BadRequest("now must be RFC3339", "now"))
			return
		}
		now = parsed.UTC()
	}

	result, err := h.service.RunAutoExpiry(r.Context(), now)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, bulkResponse(result), nil)
}

func bulkResponse(result model.BulkResult) model.BulkResponse {
	if result.Succeeded == nil {
		result.Succeeded = []string{}
	}
	if result.Failed == nil {
		result.Failed = []model.BulkFailure{}
	}
	return model.BulkResponse{
		Requested:  len(result.Succeeded) + len(result.Failed),
		Succeeded:  len(result.Succeeded),
		Failed:     len(result.Failed),
		BulkResult: result,
	}
}

func splitQueryList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// parseQueryTime accepts RFC3339 or a bare date. A bare "to" date covers the
// whole day.
func parseQueryTime(raw string, field string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}

	if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
		return parsed.UTC(), nil
	}

	parsed, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, apierror.BadRequest(field+" must be RFC3339 or YYYY-MM-DD", field)
	}
	if field == "to" {
		parsed = parsed.Add(24*time.Hour - time.Nanosecond)
	}
	return parsed, nil
}
