package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"go-office-trash/internal/datastore"
	"go-office-trash/internal/entity"
	"go-office-trash/internal/event"
	"go-office-trash/internal/metrics"
	"go-office-trash/internal/model"
	"go-office-trash/internal/repository"
	"go-office-trash/internal/retention"
)

// SystemActor is recorded for purges performed by the expiry sweep.
var SystemActor = model.AuditActor{UserID: "system", Username: "system", Role: model.RoleAdmin}

// TrashService is the only way entities enter or leave the trash ledger.
// It keeps no entry cache; every call re-reads the store.
type TrashService struct {
	trash    *repository.TrashRepository
	store    datastore.Datastore
	registry *entity.Registry
	audit    *AuditService
	bus      event.Bus
	metrics  *metrics.Metrics
	now      func() time.Time
}

func NewTrashService(trash *repository.TrashRepository, store datastore.Datastore, registry *entity.Registry, audit *AuditService, bus event.Bus) *TrashService {
	if bus == nil {
		bus = event.Nop{}
	}
	return &TrashService{
		trash:    trash,
		store:    store,
		registry: registry,
		audit:    audit,
		bus:      bus,
		now:      time.Now,
	}
}

func (s *TrashService) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

func (s *TrashService) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
}

func (s *TrashService) observe(operation string, err error) {
	s.metrics.ObserveOperation(operation, err, func(err error) string {
		return strings.ToLower(ErrorCode(err))
	})
}

// CaptureOnDelete snapshots an entity that is about to be deleted. The caller
// removes the live record only after this returns successfully.
func (s *TrashService) CaptureOnDelete(ctx context.Context, req model.CaptureRequest, settings model.TrashSettings) (entry model.TrashEntry, err error) {
	defer func() { s.observe("capture", err) }()

	if !settings.Enabled {
		return model.TrashEntry{}, model.ErrTrashDisabled
	}

	handler, err := s.registry.Lookup(req.EntityType)
	if err != nil {
		return model.TrashEntry{}, err
	}

	originalID := strings.TrimSpace(req.OriginalID)
	if originalID == "" {
		return model.TrashEntry{}, fmt.Errorf("%w: original id is required", model.ErrInvalidInput)
	}

	data, err := decodeSnapshot(req.EntityData)
	if err != nil {
		return model.TrashEntry{}, err
	}

	active, err := s.trash.ListActive(ctx)
	if err != nil {
		return model.TrashEntry{}, err
	}

	if lo.ContainsBy(active, func(e model.TrashEntry) bool {
		return e.EntityType == req.EntityType && e.OriginalID == originalID
	}) {
		return model.TrashEntry{}, fmt.Errorf("%w: %s %s", model.ErrDuplicateEntry, req.EntityType, originalID)
	}

	size := int64(len(req.EntityData))
	if settings.MaxItemsInTrash > 0 && len(active) >= settings.MaxItemsInTrash {
		return model.TrashEntry{}, fmt.Errorf("%w: %d items", model.ErrTrashFull, len(active))
	}
	if limit := settings.MaxTotalSizeBytes(); limit > 0 {
		used := lo.SumBy(active, func(e model.TrashEntry) int64 { return e.Size })
		if used+size > limit {
			return model.TrashEntry{}, fmt.Errorf("%w: %d of %d bytes used", model.ErrTrashFull, used, limit)
		}
	}

	related := req.RelatedItems
	if related == nil {
		related, err = s.referencingItems(ctx, handler, originalID)
		if err != nil {
			return model.TrashEntry{}, err
		}
	}

	collection := strings.TrimSpace(req.Collection)
	if collection == "" || !handler.OwnsCollection(collection) {
		collection = handler.CollectionFor(data)
	}

	deletedAt := s.now().UTC()
	days := retention.DaysFor(req.EntityType, settings)
	entryID := uuid.NewString()

	entry = model.TrashEntry{
		ID:                entryID,
		OriginalID:        originalID,
		EntityType:        req.EntityType,
		EntityData:        req.EntityData,
		EntityName:        handler.Name(data),
		EntityDescription: handler.Description(data),
		DeletedBy:         req.DeletedBy.UserID,
		DeletedByName:     displayName(req.DeletedBy),
		DeletedAt:         deletedAt,
		DeleteReason:      strings.TrimSpace(req.DeleteReason),
		DeleteType:        model.DeleteSoft,
		CanRestore:        true,
		RestoreComplexity: complexityFor(related),
		RelatedItems:      related,
		RetentionDays:     days,
		AutoDeleteAt:      retention.AutoDeleteAt(deletedAt, days),
		Size:              size,
		AttachmentsCount: lo.CountBy(related, func(item model.RelatedItem) bool {
			return item.Type == model.EntityAttachment
		}),
		DependenciesCount: len(related),
		Metadata: model.TrashMetadata{
			OriginalModule: collection,
			OriginalPath:   "/" + collection + "/" + originalID,
			BackupLocation: datastore.CollectionTrash + "/" + entryID,
			ChecksumHash:   checksum(req.EntityData),
		},
	}

	if req.Destructive {
		entry.DeleteType = model.DeleteHard
		entry.CanRestore = false
		entry.RestoreComplexity = model.RestoreImpossible
	}

	entry, err = s.trash.Insert(ctx, entry)
	if err != nil {
		return model.TrashEntry{}, err
	}

	_ = s.audit.Log(ctx, AuditActionCapture, req.DeletedBy, AuditStatusSuccess, entry.Metadata.OriginalPath, nil, entrySummary(entry), "")
	s.bus.Publish(event.New(event.TypeTrashCaptured, entrySummary(entry), req.DeletedBy.UserID))
	slog.Info("entity moved to trash", "entry_id", entry.ID, "entity_type", entry.EntityType, "original_id", entry.OriginalID, "auto_delete_at", entry.AutoDeleteAt)

	return entry, nil
}

// Restore puts the snapshot back into its live collection and marks the entry
// restored. A live record with the same id is never overwritten.
func (s *TrashService) Restore(ctx context.Context, entryID string, actor model.AuditActor, reason string, settings model.TrashSettings) (ref model.RestoredEntityRef, err error) {
	defer func() { s.observe("restore", err) }()

	if !CanRestoreRole(settings, actor.Role) {
		return model.RestoredEntityRef{}, fmt.Errorf("%w: role %q may not restore", model.ErrForbidden, actor.Role)
	}

	entry, err := s.trash.FindByID(ctx, entryID)
	if err != nil {
		return model.RestoredEntityRef{}, err
	}
	if entry.IsRestored() {
		return model.RestoredEntityRef{}, model.ErrItemAlreadyRestored
	}
	if !entry.CanRestore {
		return model.RestoredEntityRef{}, model.ErrNotRestorable
	}

	collection, err := s.restoreCollection(entry)
	if err != nil {
		return model.RestoredEntityRef{}, err
	}

	if _, err := s.store.Add(ctx, collection, entry.OriginalID, entry.EntityData); err != nil {
		if errors.Is(err, datastore.ErrExists) {
			err = fmt.Errorf("%w: %s/%s", model.ErrRestoreConflict, collection, entry.OriginalID)
		} else {
			err = liveStoreErr(err)
		}
		s.auditFailure(ctx, AuditActionRestore, actor, entry, err)
		return model.RestoredEntityRef{}, err
	}

	restoredAt := s.now().UTC()
	restored, err := s.trash.MarkRestored(ctx, entry.ID, actor.UserID, restoredAt, strings.TrimSpace(reason))
	if err != nil {
		// Undo the re-insert so the entry stays active and the operator can retry.
		if rollbackErr := s.store.Delete(ctx, collection, entry.OriginalID); rollbackErr != nil {
			slog.Error("restore rollback failed", "entry_id", entry.ID, "collection", collection, "original_id", entry.OriginalID, "error", rollbackErr)
		}
		s.auditFailure(ctx, AuditActionRestore, actor, entry, err)
		return model.RestoredEntityRef{}, err
	}

	ref = model.RestoredEntityRef{
		EntryID:    restored.ID,
		EntityType: restored.EntityType,
		Collection: collection,
		ID:         restored.OriginalID,
		RestoredAt: restoredAt,
	}

	_ = s.audit.Log(ctx, AuditActionRestore, actor, AuditStatusSuccess, entry.Metadata.OriginalPath, entrySummary(entry), ref, "")
	s.bus.Publish(event.New(event.TypeTrashRestored, ref, actor.UserID))
	slog.Info("trash entry restored", "entry_id", entry.ID, "collection", collection, "original_id", entry.OriginalID)

	return ref, nil
}

// PermanentDelete purges an active entry. Restored entries are history and
// cannot be purged; a second purge of the same id is NotFound.
func (s *TrashService) PermanentDelete(ctx context.Context, entryID string, actor model.AuditActor) error {
	return s.purge(ctx, entryID, actor, event.TypeTrashPurged)
}

func (s *TrashService) purge(ctx context.Context, entryID string, actor model.AuditActor, eventType event.Type) (err error) {
	defer func() { s.observe("purge", err) }()

	entry, err := s.trash.FindByID(ctx, entryID)
	if err != nil {
		return err
	}

	if err := s.trash.Purge(ctx, entryID); err != nil {
		s.auditFailure(ctx, AuditActionPurge, actor, entry, err)
		return err
	}

	// The purge is irreversible; a lost audit write is reported but does not
	// turn a completed purge into a failure.
	_ = s.audit.Log(ctx, AuditActionPurge, actor, AuditStatusSuccess, entry.Metadata.OriginalPath, entrySummary(entry), nil, "")
	s.bus.Publish(event.New(eventType, entrySummary(entry), actor.UserID))
	slog.Info("trash entry purged", "entry_id", entry.ID, "entity_type", entry.EntityType, "actor", actor.UserID)

	return nil
}

func (s *TrashService) BulkRestore(ctx context.Context, entryIDs []string, actor model.AuditActor, reason string, settings model.TrashSettings) (model.BulkResult, error) {
	ids, err := normalizeIDs(entryIDs)
	if err != nil {
		return model.BulkResult{}, err
	}
	if !CanRestoreRole(settings, actor.Role) {
		return model.BulkResult{}, fmt.Errorf("%w: role %q may not restore", model.ErrForbidden, actor.Role)
	}

	return runBulk(ids, func(id string) error {
		_, err := s.Restore(ctx, id, actor, reason, settings)
		return err
	}), nil
}

func (s *TrashService) BulkPermanentDelete(ctx context.Context, entryIDs []string, actor model.AuditActor) (model.BulkResult, error) {
	ids, err := normalizeIDs(entryIDs)
	if err != nil {
		return model.BulkResult{}, err
	}

	return runBulk(ids, func(id string) error {
		return s.PermanentDelete(ctx, id, actor)
	}), nil
}

// RunAutoExpiry purges every active entry whose autoDeleteAt is at or before
// now, oldest deadline first, through the same path as a manual purge.
func (s *TrashService) RunAutoExpiry(ctx context.Context, now time.Time) (model.BulkResult, error) {
	active, err := s.trash.ListActive(ctx)
	if err != nil {
		return model.BulkResult{}, err
	}

	due := lo.Filter(active, func(e model.TrashEntry, _ int) bool {
		return retention.IsOverdue(e.AutoDeleteAt, now)
	})
	sort.SliceStable(due, func(i int, j int) bool {
		return due[i].AutoDeleteAt.Before(due[j].AutoDeleteAt)
	})

	result := runBulk(lo.Map(due, func(e model.TrashEntry, _ int) string { return e.ID }), func(id string) error {
		return s.purge(ctx, id, SystemActor, event.TypeTrashExpired)
	})
	s.metrics.SetActiveEntries(len(active) - len(result.Succeeded))

	if len(due) > 0 {
		slog.Info("trash expiry sweep finished", "due", len(due), "purged", len(result.Succeeded), "failed", len(result.Failed))
	}
	return result, nil
}

// GetStats aggregates the active entry set fresh on every call.
func (s *TrashService) GetStats(ctx context.Context, now time.Time, settings model.TrashSettings) (model.TrashStats, error) {
	active, err := s.trash.ListActive(ctx)
	if err != nil {
		return model.TrashStats{}, err
	}

	threshold := retention.NearExpiryDays(settings)
	stats := model.TrashStats{
		TotalItems:  len(active),
		ItemsByType: map[model.EntityType]int{},
	}

	for _, e := range active {
		stats.ItemsByType[e.EntityType]++
		stats.TotalSize += e.Size

		switch retention.Classify(e.AutoDeleteAt, now, threshold) {
		case retention.StateNearExpiry:
			stats.ItemsNearExpiry++
		case retention.StateOverdue:
			stats.ItemsOverdue++
		}
		if e.CanRestore {
			stats.RestorableItems++
		}

		deletedAt := e.DeletedAt
		if stats.OldestItem == nil || deletedAt.Before(*stats.OldestItem) {
			stats.OldestItem = &deletedAt
		}
		if stats.NewestItem == nil || deletedAt.After(*stats.NewestItem) {
			stats.NewestItem = &deletedAt
		}
	}
	stats.TotalSizeHuman = humanBytes(stats.TotalSize)

	purged, err := s.audit.PurgesOnDay(ctx, now)
	if err != nil {
		return model.TrashStats{}, err
	}
	stats.PermanentlyDeletedToday = purged

	s.metrics.SetActiveEntries(stats.TotalItems)
	return stats, nil
}

// Get returns an entry by id, restored entries included.
func (s *TrashService) Get(ctx context.Context, entryID string) (model.TrashEntry, error) {
	return s.trash.FindByID(ctx, entryID)
}

func (s *TrashService) ListActive(ctx context.Context) ([]model.TrashEntry, error) {
	return s.trash.ListActive(ctx)
}

// RefreshRelated re-resolves the status of each related item against the
// live collections and the trash, so an operator sees dangling references
// before restoring. The stored entry is not modified.
func (s *TrashService) RefreshRelated(ctx context.Context, entryID string) ([]model.RelatedItem, error) {
	entry, err := s.trash.FindByID(ctx, entryID)
	if err != nil {
		return nil, err
	}

	active, err := s.trash.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	inTrash := lo.SliceToMap(active, func(e model.TrashEntry) (string, bool) {
		return trashKey(e.EntityType, e.OriginalID), true
	})

	items := make([]model.RelatedItem, 0, len(entry.RelatedItems))
	for _, item := range entry.RelatedItems {
		status, err := s.relatedStatus(ctx, item, inTrash)
		if err != nil {
			return nil, err
		}
		item.Status = status
		items = append(items, item)
	}
	return items, nil
}

func (s *TrashService) relatedStatus(ctx context.Context, item model.RelatedItem, inTrash map[string]bool) (model.RelatedStatus, error) {
	handler, err := s.registry.Lookup(item.Type)
	if err != nil {
		return model.RelatedMissing, nil
	}

	for _, collection := range handler.Collections {
		_, err := s.store.GetByID(ctx, collection, item.ID)
		if err == nil {
			return model.RelatedExists, nil
		}
		if !errors.Is(err, datastore.ErrNotFound) {
			return "", liveStoreErr(err)
		}
	}

	if inTrash[trashKey(item.Type, item.ID)] {
		return model.RelatedDeleted, nil
	}
	return model.RelatedMissing, nil
}

// referencingItems lists live records that point at the entity being deleted.
func (s *TrashService) referencingItems(ctx context.Context, handler entity.Handler, originalID string) ([]model.RelatedItem, error) {
	items := make([]model.RelatedItem, 0)
	for _, ref := range handler.References {
		refHandler, err := s.registry.Lookup(ref.Type)
		if err != nil {
			return nil, err
		}

		for _, collection := range refHandler.Collections {
			raws, err := s.store.GetAll(ctx, collection)
			if err != nil {
				return nil, liveStoreErr(err)
			}

			for _, raw := range raws {
				var doc map[string]any
				if err := json.Unmarshal(raw, &doc); err != nil {
					continue
				}
				value, ok := doc[ref.Field]
				if !ok || value == nil || fmt.Sprint(value) != originalID {
					continue
				}
				id, _ := doc["id"].(string)
				items = append(items, model.RelatedItem{
					Type:   ref.Type,
					ID:     id,
					Name:   refHandler.Name(doc),
					Status: model.RelatedExists,
				})
			}
		}
	}
	return items, nil
}

func (s *TrashService) restoreCollection(entry model.TrashEntry) (string, error) {
	handler, err := s.registry.Lookup(entry.EntityType)
	if err != nil {
		return "", err
	}
	if handler.OwnsCollection(entry.Metadata.OriginalModule) {
		return entry.Metadata.OriginalModule, nil
	}

	data, err := decodeSnapshot(entry.EntityData)
	if err != nil {
		return "", err
	}
	return handler.CollectionFor(data), nil
}

func (s *TrashService) auditFailure(ctx context.Context, action string, actor model.AuditActor, entry model.TrashEntry, cause error) {
	_ = s.audit.Log(ctx, action, actor, AuditStatusFailed, entry.Metadata.OriginalPath, entrySummary(entry), nil, cause.Error())
}

// CanRestoreRole reports whether role may restore. An unset permission map
// allows everyone; otherwise a role missing from the map is denied.
func CanRestoreRole(settings model.TrashSettings, role string) bool {
	if len(settings.RestorePermissions) == 0 {
		return true
	}
	return settings.RestorePermissions[strings.ToLower(strings.TrimSpace(role))]
}

func runBulk(ids []string, apply func(id string) error) model.BulkResult {
	result := model.BulkResult{Succeeded: []string{}, Failed: []model.BulkFailure{}}
	for _, id := range ids {
		if err := apply(id); err != nil {
			result.Failed = append(result.Failed, model.BulkFailure{ID: id, Code: ErrorCode(err), Error: err.Error()})
			continue
		}
		result.Succeeded = append(result.Succeeded, id)
	}
	return result
}

// normalizeIDs trims, drops blanks and de-duplicates while keeping order.
func normalizeIDs(ids []string) ([]string, error) {
	cleaned := lo.Uniq(lo.FilterMap(ids, func(id string, _ int) (string, bool) {
		trimmed := strings.TrimSpace(id)
		return trimmed, trimmed != ""
	}))
	if len(cleaned) == 0 {
		return nil, fmt.Errorf("%w: at least one id is required", model.ErrInvalidInput)
	}
	return cleaned, nil
}

func decodeSnapshot(raw json.RawMessage) (map[string]any, error) {
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil || data == nil {
		return nil, fmt.Errorf("%w: entity data must be a JSON object", model.ErrInvalidInput)
	}
	return data, nil
}

func complexityFor(related []model.RelatedItem) model.RestoreComplexity {
	if lo.ContainsBy(related, func(item model.RelatedItem) bool { return item.Status == model.RelatedExists }) {
		return model.RestoreComplex
	}
	return model.RestoreSimple
}

func checksum(data []byte) string {
	return fmt.Sprintf("xxh64:%016x", xxhash.Sum64(data))
}

func displayName(actor model.AuditActor) string {
	if strings.TrimSpace(actor.Username) != "" {
		return actor.Username
	}
	return actor.UserID
}

func trashKey(entityType model.EntityType, id string) string {
	return string(entityType) + "/" + id
}

func entrySummary(entry model.TrashEntry) map[string]any {
	return map[string]any{
		"id":           entry.ID,
		"original_id":  entry.OriginalID,
		"entity_type":  entry.EntityType,
		"entity_name":  entry.EntityName,
		"deleted_by":   entry.DeletedBy,
		"delete_type":  entry.DeleteType,
		"auto_delete":  entry.AutoDeleteAt,
		"checksum":     entry.Metadata.ChecksumHash,
		"dependencies": entry.DependenciesCount,
	}
}

// liveStoreErr maps datastore failures on entity collections.
func liveStoreErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, datastore.ErrNotFound):
		return model.ErrEntityNotFound
	case errors.Is(err, datastore.ErrExists):
		return model.ErrEntityExists
	case errors.Is(err, datastore.ErrUnavailable):
		return fmt.Errorf("%w: %v", model.ErrStorageUnavailable, err)
	case errors.Is(err, datastore.ErrInvalidRecord):
		return fmt.Errorf("%w: %v", model.ErrInvalidInput, err)
	default:
		return err
	}
}
