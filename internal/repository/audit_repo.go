package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"go-office-trash/internal/datastore"
	"go-office-trash/internal/model"
)

type AuditRepository struct {
	store datastore.Datastore
}

func NewAuditRepository(store datastore.Datastore) *AuditRepository {
	return &AuditRepository{store: store}
}

func (r *AuditRepository) Log(ctx context.Context, entry model.AuditEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}

	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal audit entry: %w", err)
	}

	if _, err := r.store.Add(ctx, datastore.CollectionAudit, entry.ID, raw); err != nil {
		return storeErr(fmt.Errorf("log audit entry: %w", err), model.ErrInvalidInput)
	}
	return nil
}

func (r *AuditRepository) all(ctx context.Context) ([]model.AuditEntry, error) {
	raws, err := r.store.GetAll(ctx, datastore.CollectionAudit)
	if err != nil {
		return nil, storeErr(fmt.Errorf("list audit entries: %w", err), model.ErrInvalidInput)
	}

	entries := make([]model.AuditEntry, 0, len(raws))
	for _, raw := range raws {
		var e model.AuditEntry
		if err := json.Unmarshal(raw, &e); err != nil {
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (r *AuditRepository) Query(ctx context.Context, query model.AuditQuery, from time.Time, to time.Time) ([]model.AuditEntry, model.Meta, error) {
	if query.Page < 1 {
		query.Page = 1
	}
	if query.Limit <= 0 {
		query.Limit = 50
	}
	if query.Limit > 200 {
		query.Limit = 200
	}

	entries, err := r.all(ctx)
	if err != nil {
		return nil, model.Meta{}, err
	}

	action := strings.ToLower(strings.TrimSpace(query.Action))
	status := strings.ToLower(strings.TrimSpace(query.Status))
	actorID := strings.TrimSpace(query.ActorID)
	resource := strings.ToLower(strings.TrimSpace(query.Resource))

	items := make([]model.AuditEntry, 0, len(entries))
	for _, entry := range entries {
		if action != "" && strings.ToLower(entry.Action) != action {
			continue
		}
		if status != "" && strings.ToLower(entry.Status) != status {
			continue
		}
		if actorID != "" && entry.Actor.UserID != actorID {
			continue
		}
		if resource != "" && !strings.Contains(strings.ToLower(entry.Resource), resource) {
			continue
		}

		at, timeErr := time.Parse(time.RFC3339Nano, entry.OccurredAt)
		if timeErr != nil {
			continue
		}
		if !from.IsZero() && at.Before(from) {
			continue
		}
		if !to.IsZero() && at.After(to) {
			continue
		}

		items = append(items, entry)
	}

	sort.SliceStable(items, func(i int, j int) bool {
		return items[i].OccurredAt > items[j].OccurredAt
	})

	total := len(items)
	start := min((query.Page-1)*query.Limit, total)
	end := min(start+query.Limit, total)

	return items[start:end], model.NewMeta(query.Page, query.Limit, total), nil
}

// Count returns how many entries with action and status occurred in [from, to).
func (r *AuditRepository) Count(ctx context.Context, action string, status string, from time.Time, to time.Time) (int, error) {
	entries, err := r.all(ctx)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, entry := range entries {
		if entry.Action != action || entry.Status != status {
			continue
		}
		at, timeErr := time.Parse(time.RFC3339Nano, entry.OccurredAt)
		if timeErr != nil {
			continue
		}
		if at.Before(from) || !at.Before(to) {
			continue
		}
		count++
	}
	return count, nil
}
