package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go-office-trash/internal/datastore"
	"go-office-trash/internal/entity"
	"go-office-trash/internal/event"
	"go-office-trash/internal/model"
	"go-office-trash/internal/repository"
	"go-office-trash/internal/util"
)

// EntityService owns the live collections. Its Delete is the application's
// delete path and always goes through the trash first.
type EntityService struct {
	store     datastore.Datastore
	registry  *entity.Registry
	trash     *TrashService
	trashRepo *repository.TrashRepository
	audit     *AuditService
	bus       event.Bus
}

func NewEntityService(store datastore.Datastore, registry *entity.Registry, trash *TrashService, trashRepo *repository.TrashRepository, audit *AuditService, bus event.Bus) *EntityService {
	if bus == nil {
		bus = event.Nop{}
	}
	return &EntityService{
		store:     store,
		registry:  registry,
		trash:     trash,
		trashRepo: trashRepo,
		audit:     audit,
		bus:       bus,
	}
}

func (s *EntityService) Create(ctx context.Context, entityType model.EntityType, record json.RawMessage, actor model.AuditActor) (json.RawMessage, error) {
	handler, err := s.registry.Lookup(entityType)
	if err != nil {
		return nil, err
	}

	data, err := decodeSnapshot(record)
	if err != nil {
		return nil, err
	}
	for _, field := range handler.NameFields {
		if value, ok := data[field].(string); ok {
			data[field] = util.SanitizeText(value, 255)
		}
	}

	id, _ := data["id"].(string)

	encoded, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", entityType, err)
	}

	collection := handler.CollectionFor(data)
	newID, err := s.store.Add(ctx, collection, strings.TrimSpace(id), encoded)
	if err != nil {
		return nil, liveStoreErr(err)
	}

	created, err := s.store.GetByID(ctx, collection, newID)
	if err != nil {
		return nil, liveStoreErr(err)
	}

	_ = s.audit.Log(ctx, AuditActionCreate, actor, AuditStatusSuccess, "/"+collection+"/"+newID, nil, nil, "")
	s.bus.Publish(event.New(event.TypeEntityCreated, map[string]string{"entity_type": string(entityType), "id": newID}, actor.UserID))
	return created, nil
}

// Get finds a live record in any of the type's collections.
func (s *EntityService) Get(ctx context.Context, entityType model.EntityType, id string) (json.RawMessage, error) {
	raw, _, err := s.locate(ctx, entityType, id)
	return raw, err
}

func (s *EntityService) List(ctx context.Context, entityType model.EntityType) ([]json.RawMessage, error) {
	handler, err := s.registry.Lookup(entityType)
	if err != nil {
		return nil, err
	}

	items := make([]json.RawMessage, 0)
	for _, collection := range handler.Collections {
		raws, err := s.store.GetAll(ctx, collection)
		if err != nil {
			return nil, liveStoreErr(err)
		}
		items = append(items, raws...)
	}
	return items, nil
}

func (s *EntityService) Update(ctx context.Context, entityType model.EntityType, id string, patch map[string]any, actor model.AuditActor) (json.RawMessage, error) {
	if len(patch) == 0 {
		return nil, fmt.Errorf("%w: empty patch", model.ErrInvalidInput)
	}

	_, collection, err := s.locate(ctx, entityType, id)
	if err != nil {
		return nil, err
	}

	if err := s.store.Update(ctx, collection, id, patch); err != nil {
		return nil, liveStoreErr(err)
	}

	updated, err := s.store.GetByID(ctx, collection, id)
	if err != nil {
		return nil, liveStoreErr(err)
	}

	_ = s.audit.Log(ctx, AuditActionUpdate, actor, AuditStatusSuccess, "/"+collection+"/"+id, nil, patch, "")
	s.bus.Publish(event.New(event.TypeEntityUpdated, map[string]string{"entity_type": string(entityType), "id": id}, actor.UserID))
	return updated, nil
}

// Delete captures the record into the trash and only then removes it. With
// the trash disabled the record is hard-deleted and the delete is audited.
// destructive marks the capture as unrecoverable.
func (s *EntityService) Delete(ctx context.Context, entityType model.EntityType, id string, reason string, destructive bool, actor model.AuditActor, settings model.TrashSettings) (model.DeleteResult, error) {
	raw, collection, err := s.locate(ctx, entityType, id)
	if err != nil {
		return model.DeleteResult{}, err
	}

	result := model.DeleteResult{EntityType: entityType, ID: id}

	entry, err := s.trash.CaptureOnDelete(ctx, model.CaptureRequest{
		EntityType:   entityType,
		OriginalID:   id,
		EntityData:   raw,
		Collection:   collection,
		DeletedBy:    actor,
		DeleteReason: util.SanitizeText(reason, 500),
		Destructive:  destructive,
	}, settings)

	switch {
	case errors.Is(err, model.ErrTrashDisabled):
		if err := s.store.Delete(ctx, collection, id); err != nil {
			return model.DeleteResult{}, liveStoreErr(err)
		}
		result.HardDeleted = true
		_ = s.audit.Log(ctx, AuditActionHardDelete, actor, AuditStatusSuccess, "/"+collection+"/"+id, json.RawMessage(raw), nil, "")
		slog.Warn("trash disabled; entity hard-deleted", "entity_type", entityType, "id", id)
	case err != nil:
		return model.DeleteResult{}, err
	default:
		if err := s.store.Delete(ctx, collection, id); err != nil {
			// The live record is still there; drop the capture so the entity
			// is not both live and in the trash.
			if discardErr := s.trashRepo.Purge(ctx, entry.ID); discardErr != nil {
				slog.Error("discard capture after failed delete", "entry_id", entry.ID, "error", discardErr)
			}
			_ = s.audit.Log(ctx, AuditActionDiscard, actor, AuditStatusFailed, entry.Metadata.OriginalPath, entrySummary(entry), nil, err.Error())
			return model.DeleteResult{}, liveStoreErr(err)
		}
		result.TrashEntryID = entry.ID
	}

	s.bus.Publish(event.New(event.TypeEntityDeleted, result, actor.UserID))
	return result, nil
}

func (s *EntityService) locate(ctx context.Context, entityType model.EntityType, id string) (json.RawMessage, string, error) {
	handler, err := s.registry.Lookup(entityType)
	if err != nil {
		return nil, "", err
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return nil, "", fmt.Errorf("%w: id is required", model.ErrInvalidInput)
	}

	for _, collection := range handler.Collections {
		raw, err := s.store.GetByID(ctx, collection, id)
		if err == nil {
			return raw, collection, nil
		}
		if !errors.Is(err, datastore.ErrNotFound) {
			return nil, "", liveStoreErr(err)
		}
	}
	return nil, "", fmt.Errorf("%w: %s %s", model.ErrEntityNotFound, entityType, id)
}
