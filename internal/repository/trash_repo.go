package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/samber/lo"

	"go-office-trash/internal/datastore"
	"go-office-trash/internal/model"
)

// TrashRepository is the trash ledger over the "trash" collection. Restored
// entries stay in the collection as history; purged entries are removed.
type TrashRepository struct {
	store datastore.Datastore
	// mu serializes the duplicate check in Insert against concurrent inserts.
	mu sync.Mutex
}

func NewTrashRepository(store datastore.Datastore) *TrashRepository {
	return &TrashRepository{store: store}
}

func (r *TrashRepository) List(ctx context.Context, includeRestored bool) ([]model.TrashEntry, error) {
	raws, err := r.store.GetAll(ctx, datastore.CollectionTrash)
	if err != nil {
		return nil, storeErr(fmt.Errorf("list trash: %w", err), model.ErrTrashItemNotFound)
	}

	entries := make([]model.TrashEntry, 0, len(raws))
	for _, raw := range raws {
		var entry model.TrashEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			return nil, fmt.Errorf("decode trash entry: %w", err)
		}
		if !includeRestored && entry.IsRestored() {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// ListActive returns entries that are neither restored nor purged, in no
// particular order.
func (r *TrashRepository) ListActive(ctx context.Context) ([]model.TrashEntry, error) {
	return r.List(ctx, false)
}

func (r *TrashRepository) FindByID(ctx context.Context, id string) (model.TrashEntry, error) {
	raw, err := r.store.GetByID(ctx, datastore.CollectionTrash, id)
	if err != nil {
		return model.TrashEntry{}, storeErr(err, model.ErrTrashItemNotFound)
	}

	var entry model.TrashEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return model.TrashEntry{}, fmt.Errorf("decode trash entry %q: %w", id, err)
	}
	return entry, nil
}

// FindActiveByOriginal returns the active entry for an entity, if any.
func (r *TrashRepository) FindActiveByOriginal(ctx context.Context, entityType model.EntityType, originalID string) (model.TrashEntry, bool, error) {
	active, err := r.ListActive(ctx)
	if err != nil {
		return model.TrashEntry{}, false, err
	}

	entry, found := lo.Find(active, func(e model.TrashEntry) bool {
		return e.EntityType == entityType && e.OriginalID == originalID
	})
	return entry, found, nil
}

func (r *TrashRepository) Insert(ctx context.Context, entry model.TrashEntry) (model.TrashEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, found, err := r.FindActiveByOriginal(ctx, entry.EntityType, entry.OriginalID); err != nil {
		return model.TrashEntry{}, err
	} else if found {
		return model.TrashEntry{}, fmt.Errorf("%w: %s %s", model.ErrDuplicateEntry, entry.EntityType, entry.OriginalID)
	}

	entry.Version = 1
	raw, err := json.Marshal(entry)
	if err != nil {
		return model.TrashEntry{}, fmt.Errorf("encode trash entry: %w", err)
	}

	if _, err := r.store.Add(ctx, datastore.CollectionTrash, entry.ID, raw); err != nil {
		if errors.Is(err, datastore.ErrExists) {
			return model.TrashEntry{}, fmt.Errorf("%w: entry id %s", model.ErrDuplicateEntry, entry.ID)
		}
		return model.TrashEntry{}, storeErr(fmt.Errorf("insert trash entry: %w", err), model.ErrTrashItemNotFound)
	}
	return entry, nil
}

// MarkRestored moves an active entry to the terminal restored state. The
// update is conditional on the version read, so a concurrent change surfaces
// as ErrRestoreConflict instead of being overwritten.
func (r *TrashRepository) MarkRestored(ctx context.Context, id string, restoredBy string, restoredAt time.Time, reason string) (model.TrashEntry, error) {
	entry, err := r.FindByID(ctx, id)
	if err != nil {
		return model.TrashEntry{}, err
	}
	if entry.IsRestored() {
		return model.TrashEntry{}, model.ErrItemAlreadyRestored
	}
	if !entry.CanRestore {
		return model.TrashEntry{}, model.ErrNotRestorable
	}

	patch := map[string]any{
		"restored_at": restoredAt,
		"restored_by": restoredBy,
		"version":     entry.Version + 1,
	}
	if reason != "" {
		patch["restore_reason"] = reason
	}

	err = r.store.Update(ctx, datastore.CollectionTrash, id, patch,
		datastore.IfMatch("version", entry.Version), datastore.IfAbsent("restored_at"))
	if err != nil {
		return model.TrashEntry{}, r.classifyRace(ctx, id, err, model.ErrItemAlreadyRestored)
	}

	entry.RestoredAt = &restoredAt
	entry.RestoredBy = restoredBy
	entry.RestoreReason = reason
	entry.Version++
	return entry, nil
}

// Purge removes an active entry. Purging twice is an error, as is purging a
// restored entry.
func (r *TrashRepository) Purge(ctx context.Context, id string) error {
	entry, err := r.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if entry.IsRestored() {
		return model.ErrPurgeRejected
	}

	err = r.store.Delete(ctx, datastore.CollectionTrash, id,
		datastore.IfMatch("version", entry.Version), datastore.IfAbsent("restored_at"))
	if err != nil {
		return r.classifyRace(ctx, id, err, model.ErrPurgeRejected)
	}
	return nil
}

func (r *TrashRepository) classifyRace(ctx context.Context, id string, err error, whenRestored error) error {
	if !errors.Is(err, datastore.ErrPreconditionFailed) {
		return storeErr(err, model.ErrTrashItemNotFound)
	}

	current, findErr := r.FindByID(ctx, id)
	if findErr != nil {
		return findErr
	}
	if current.IsRestored() {
		return whenRestored
	}
	return fmt.Errorf("%w: trash entry %s changed concurrently", model.ErrRestoreConflict, id)
}
