package datastore

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"

	"github.com/samber/lo"
)

type memoryRecord struct {
	seq  int64
	data json.RawMessage
}

// Memory keeps every collection in process. It backs tests and local runs
// without DATABASE_URL.
type Memory struct {
	mu          sync.RWMutex
	seq         int64
	collections map[string]map[string]memoryRecord
	unavailable bool
}

func NewMemory() *Memory {
	return &Memory{collections: map[string]map[string]memoryRecord{}}
}

// SetAvailable toggles a simulated outage.
func (m *Memory) SetAvailable(available bool) {
	m.mu.Lock()
	m.unavailable = !available
	m.mu.Unlock()
}

func (m *Memory) GetAll(_ context.Context, collection string) ([]json.RawMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.unavailable {
		return nil, ErrUnavailable
	}

	records := lo.Values(m.collections[collection])
	slices.SortFunc(records, func(a, b memoryRecord) int {
		return cmp.Compare(a.seq, b.seq)
	})

	return lo.Map(records, func(r memoryRecord, _ int) json.RawMessage {
		return cloneRaw(r.data)
	}), nil
}

func (m *Memory) GetByID(_ context.Context, collection string, id string) (json.RawMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.unavailable {
		return nil, ErrUnavailable
	}

	record, ok := m.collections[collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneRaw(record.data), nil
}

func (m *Memory) Add(_ context.Context, collection string, id string, record json.RawMessage) (string, error) {
	id, encoded, err := withID(record, id)
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.unavailable {
		return "", ErrUnavailable
	}

	records, ok := m.collections[collection]
	if !ok {
		records = map[string]memoryRecord{}
		m.collections[collection] = records
	}
	if _, exists := records[id]; exists {
		return "", fmt.Errorf("%s/%s: %w", collection, id, ErrExists)
	}

	m.seq++
	records[id] = memoryRecord{seq: m.seq, data: encoded}
	return id, nil
}

func (m *Memory) Update(_ context.Context, collection string, id string, patch map[string]any, conds ...Condition) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.unavailable {
		return ErrUnavailable
	}

	record, ok := m.collections[collection][id]
	if !ok {
		return ErrNotFound
	}

	doc, err := decodeObject(record.data)
	if err != nil {
		return err
	}
	if !matches(doc, conds) {
		return ErrPreconditionFailed
	}

	for key, value := range patch {
		if key == "id" {
			continue
		}
		doc[key] = value
	}

	encoded, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	record.data = encoded
	m.collections[collection][id] = record
	return nil
}

func (m *Memory) Delete(_ context.Context, collection string, id string, conds ...Condition) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.unavailable {
		return ErrUnavailable
	}

	record, ok := m.collections[collection][id]
	if !ok {
		return ErrNotFound
	}

	if len(conds) > 0 {
		doc, err := decodeObject(record.data)
		if err != nil {
			return err
		}
		if !matches(doc, conds) {
			return ErrPreconditionFailed
		}
	}

	delete(m.collections[collection], id)
	return nil
}

func (m *Memory) Status(_ context.Context) (Status, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.unavailable {
		return Status{Connected: false, Stores: []string{}}, nil
	}

	stores := lo.Keys(m.collections)
	slices.Sort(stores)
	return Status{Connected: true, Stores: stores}, nil
}

func cloneRaw(raw json.RawMessage) json.RawMessage {
	return append(json.RawMessage(nil), raw...)
}
