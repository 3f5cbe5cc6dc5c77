package datastore

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_AddAndGet(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemory()

	id, err := store.Add(ctx, CollectionEmployees, "emp-1", json.RawMessage(`{"name":"Test"}`))
	require.NoError(t, err)
	assert.Equal(t, "emp-1", id)

	raw, err := store.GetByID(ctx, CollectionEmployees, "emp-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"emp-1","name":"Test"}`, string(raw))

	_, err = store.Add(ctx, CollectionEmployees, "emp-1", json.RawMessage(`{"name":"Other"}`))
	assert.ErrorIs(t, err, ErrExists)

	generated, err := store.Add(ctx, CollectionEmployees, "", json.RawMessage(`{"name":"Anon"}`))
	require.NoError(t, err)
	assert.NotEmpty(t, generated)

	own, err := store.Add(ctx, CollectionTasks, "", json.RawMessage(`{"id":"task-7"}`))
	require.NoError(t, err)
	assert.Equal(t, "task-7", own)

	all, err := store.GetAll(ctx, CollectionEmployees)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.JSONEq(t, `{"id":"emp-1","name":"Test"}`, string(all[0]))
}

func TestMemory_RejectsNonObjects(t *testing.T) {
	t.Parallel()

	_, err := NewMemory().Add(context.Background(), CollectionTasks, "t-1", json.RawMessage(`[1,2]`))
	assert.ErrorIs(t, err, ErrInvalidRecord)
}

func TestMemory_UpdateConditions(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemory()
	_, err := store.Add(ctx, CollectionTrash, "entry-1", json.RawMessage(`{"version":1}`))
	require.NoError(t, err)

	err = store.Update(ctx, CollectionTrash, "entry-1", map[string]any{"version": 2}, IfMatch("version", 3))
	assert.ErrorIs(t, err, ErrPreconditionFailed)

	err = store.Update(ctx, CollectionTrash, "entry-1", map[string]any{"version": 2, "restored_at": "now"},
		IfMatch("version", 1), IfAbsent("restored_at"))
	require.NoError(t, err)

	err = store.Update(ctx, CollectionTrash, "entry-1", map[string]any{"version": 3}, IfAbsent("restored_at"))
	assert.ErrorIs(t, err, ErrPreconditionFailed)

	err = store.Update(ctx, CollectionTrash, "missing", map[string]any{"version": 3})
	assert.ErrorIs(t, err, ErrNotFound)

	raw, err := store.GetByID(ctx, CollectionTrash, "entry-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"entry-1","version":2,"restored_at":"now"}`, string(raw))
}

func TestMemory_Delete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemory()
	_, err := store.Add(ctx, CollectionTrash, "entry-1", json.RawMessage(`{"restored_at":"yesterday"}`))
	require.NoError(t, err)

	assert.ErrorIs(t, store.Delete(ctx, CollectionTrash, "entry-1", IfAbsent("restored_at")), ErrPreconditionFailed)
	require.NoError(t, store.Delete(ctx, CollectionTrash, "entry-1"))
	assert.ErrorIs(t, store.Delete(ctx, CollectionTrash, "entry-1"), ErrNotFound)
}

func TestMemory_Status(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemory()
	_, err := store.Add(ctx, CollectionTasks, "t-1", json.RawMessage(`{}`))
	require.NoError(t, err)
	_, err = store.Add(ctx, CollectionEmployees, "e-1", json.RawMessage(`{}`))
	require.NoError(t, err)

	status, err := store.Status(ctx)
	require.NoError(t, err)
	assert.True(t, status.Connected)
	assert.Equal(t, []string{CollectionEmployees, CollectionTasks}, status.Stores)

	store.SetAvailable(false)
	status, err = store.Status(ctx)
	require.NoError(t, err)
	assert.False(t, status.Connected)

	_, err = store.GetAll(ctx, CollectionTasks)
	assert.ErrorIs(t, err, ErrUnavailable)
}
