// Package datastore is the collection-keyed document store every repository
// sits on. Records are JSON objects addressed by (collection, id).
package datastore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const (
	CollectionTrash                  = "trash"
	CollectionAudit                  = "audit_log"
	CollectionUsers                  = "users"
	CollectionEmployees              = "employees"
	CollectionTasks                  = "tasks"
	CollectionCorrespondenceIncoming = "correspondence_incoming"
	CollectionCorrespondenceOutgoing = "correspondence_outgoing"
	CollectionDepartments            = "departments"
	CollectionDivisions              = "divisions"
	CollectionAttachments            = "attachments"
	CollectionCategories             = "categories"
	CollectionJobs                   = "jobs"
)

var (
	ErrNotFound           = errors.New("record not found")
	ErrExists             = errors.New("record already exists")
	ErrPreconditionFailed = errors.New("record precondition failed")
	ErrUnavailable        = errors.New("datastore unavailable")
	ErrInvalidRecord      = errors.New("invalid record")
)

type Status struct {
	Connected bool     `json:"connected"`
	Stores    []string `json:"stores"`
}

// Condition guards Update and Delete. A record that does not satisfy every
// condition is left untouched and ErrPreconditionFailed is returned.
type Condition struct {
	Field  string
	Value  string
	Absent bool
}

// IfMatch requires the top-level field to equal value, compared in its JSON
// text form.
func IfMatch(field string, value any) Condition {
	return Condition{Field: field, Value: fmt.Sprint(value)}
}

// IfAbsent requires the top-level field to be missing or null.
func IfAbsent(field string) Condition {
	return Condition{Field: field, Absent: true}
}

type Datastore interface {
	GetAll(ctx context.Context, collection string) ([]json.RawMessage, error)
	GetByID(ctx context.Context, collection string, id string) (json.RawMessage, error)
	// Add stores record under id. An empty id falls back to the record's own
	// "id" field, then to a generated one; the stored "id" field always holds
	// the effective id.
	Add(ctx context.Context, collection string, id string, record json.RawMessage) (string, error)
	// Update shallow-merges patch into the stored record.
	Update(ctx context.Context, collection string, id string, patch map[string]any, conds ...Condition) error
	Delete(ctx context.Context, collection string, id string, conds ...Condition) error
	Status(ctx context.Context) (Status, error)
}

func withID(record json.RawMessage, id string) (string, json.RawMessage, error) {
	doc, err := decodeObject(record)
	if err != nil {
		return "", nil, err
	}

	if strings.TrimSpace(id) == "" {
		if own, ok := doc["id"].(string); ok && strings.TrimSpace(own) != "" {
			id = strings.TrimSpace(own)
		} else {
			id = uuid.NewString()
		}
	}
	doc["id"] = id

	encoded, err := json.Marshal(doc)
	if err != nil {
		return "", nil, fmt.Errorf("encode record: %w", err)
	}
	return id, encoded, nil
}

func decodeObject(raw []byte) (map[string]any, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return map[string]any{}, nil
	}

	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()

	var doc map[string]any
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: record must be a JSON object", ErrInvalidRecord)
	}
	return doc, nil
}

func matches(doc map[string]any, conds []Condition) bool {
	for _, cond := range conds {
		value, present := doc[cond.Field]
		if cond.Absent {
			if present && value != nil {
				return false
			}
			continue
		}
		if !present || value == nil || fmt.Sprint(value) != cond.Value {
			return false
		}
	}
	return true
}
