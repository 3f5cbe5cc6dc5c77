package datastore

import (
	"context"
	"encoding/json"

	"github.com/stretchr/testify/mock"
)

type MockDatastore struct {
	mock.Mock
}

func (m *MockDatastore) GetAll(ctx context.Context, collection string) ([]json.RawMessage, error) {
	args := m.Called(ctx, collection)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]json.RawMessage), args.Error(1)
}

func (m *MockDatastore) GetByID(ctx context.Context, collection string, id string) (json.RawMessage, error) {
	args := m.Called(ctx, collection, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(json.RawMessage), args.Error(1)
}

func (m *MockDatastore) Add(ctx context.Context, collection string, id string, record json.RawMessage) (string, error) {
	args := m.Called(ctx, collection, id, record)
	return args.String(0), args.Error(1)
}

func (m *MockDatastore) Update(ctx context.Context, collection string, id string, patch map[string]any, conds ...Condition) error {
	args := m.Called(ctx, collection, id, patch, conds)
	return args.Error(0)
}

func (m *MockDatastore) Delete(ctx context.Context, collection string, id string, conds ...Condition) error {
	args := m.Called(ctx, collection, id, conds)
	return args.Error(0)
}

func (m *MockDatastore) Status(ctx context.Context) (Status, error) {
	args := m.Called(ctx)
	return args.Get(0).(Status), args.Error(1)
}
