// Package entity holds the per-type handler table: which collection an entity
// lives in, how it is labelled in the trash, and which other records point at
// it.
package entity

import (
	"fmt"
	"slices"
	"strings"

	"go-office-trash/internal/datastore"
	"go-office-trash/internal/model"
)

// Reference says that records of Type hold the referenced entity's id in Field.
type Reference struct {
	Type  model.EntityType
	Field string
}

type Handler struct {
	Type              model.EntityType
	Collections       []string
	Icon              string
	NameFields        []string
	DescriptionFields []string
	References        []Reference
}

// CollectionFor picks the live collection for a snapshot. Correspondence is
// split by direction; everything else has a single collection.
func (h Handler) CollectionFor(data map[string]any) string {
	if h.Type == model.EntityCorrespondence {
		if direction, _ := data["direction"].(string); strings.EqualFold(direction, "outgoing") {
			return datastore.CollectionCorrespondenceOutgoing
		}
	}
	return h.Collections[0]
}

func (h Handler) OwnsCollection(collection string) bool {
	return slices.Contains(h.Collections, collection)
}

func (h Handler) Name(data map[string]any) string {
	if name := firstString(data, h.NameFields); name != "" {
		return name
	}
	if id, _ := data["id"].(string); id != "" {
		return fmt.Sprintf("%s %s", h.Type, id)
	}
	return string(h.Type)
}

func (h Handler) Description(data map[string]any) string {
	return firstString(data, h.DescriptionFields)
}

func firstString(data map[string]any, fields []string) string {
	for _, field := range fields {
		if value, ok := data[field].(string); ok && strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

type Registry struct {
	handlers map[model.EntityType]Handler
}

func NewRegistry(handlers ...Handler) *Registry {
	r := &Registry{handlers: make(map[model.EntityType]Handler, len(handlers))}
	for _, h := range handlers {
		r.handlers[h.Type] = h
	}
	return r
}

func Default() *Registry {
	return NewRegistry(
		Handler{
			Type:              model.EntityEmployee,
			Collections:       []string{datastore.CollectionEmployees},
			Icon:              "user",
			NameFields:        []string{"name", "fullName"},
			DescriptionFields: []string{"position", "email"},
			References: []Reference{
				{Type: model.EntityTask, Field: "assignedTo"},
			},
		},
		Handler{
			Type:              model.EntityTask,
			Collections:       []string{datastore.CollectionTasks},
			Icon:              "check-square",
			NameFields:        []string{"title", "name"},
			DescriptionFields: []string{"description"},
			References: []Reference{
				{Type: model.EntityAttachment, Field: "taskId"},
			},
		},
		Handler{
			Type: model.EntityCorrespondence,
			Collections: []string{
				datastore.CollectionCorrespondenceIncoming,
				datastore.CollectionCorrespondenceOutgoing,
			},
			Icon:              "mail",
			NameFields:        []string{"subject", "referenceNumber"},
			DescriptionFields: []string{"summary", "sender", "recipient"},
			References: []Reference{
				{Type: model.EntityAttachment, Field: "correspondenceId"},
			},
		},
		Handler{
			Type:              model.EntityDepartment,
			Collections:       []string{datastore.CollectionDepartments},
			Icon:              "building",
			NameFields:        []string{"name"},
			DescriptionFields: []string{"description"},
			References: []Reference{
				{Type: model.EntityEmployee, Field: "departmentId"},
				{Type: model.EntityDivision, Field: "departmentId"},
			},
		},
		Handler{
			Type:              model.EntityDivision,
			Collections:       []string{datastore.CollectionDivisions},
			Icon:              "layers",
			NameFields:        []string{"name"},
			DescriptionFields: []string{"description"},
			References: []Reference{
				{Type: model.EntityEmployee, Field: "divisionId"},
			},
		},
		Handler{
			Type:              model.EntityAttachment,
			Collections:       []string{datastore.CollectionAttachments},
			Icon:              "paperclip",
			NameFields:        []string{"fileName", "name"},
			DescriptionFields: []string{"mimeType"},
		},
		Handler{
			Type:              model.EntityCategory,
			Collections:       []string{datastore.CollectionCategories},
			Icon:              "tag",
			NameFields:        []string{"name"},
			DescriptionFields: []string{"description"},
			References: []Reference{
				{Type: model.EntityTask, Field: "categoryId"},
				{Type: model.EntityCorrespondence, Field: "categoryId"},
			},
		},
	)
}

func (r *Registry) Lookup(entityType model.EntityType) (Handler, error) {
	h, ok := r.handlers[entityType]
	if !ok {
		return Handler{}, fmt.Errorf("%w: %q", model.ErrUnknownEntityType, entityType)
	}
	return h, nil
}

func (r *Registry) Types() []model.EntityType {
	types := make([]model.EntityType, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	slices.Sort(types)
	return types
}
