package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-office-trash/internal/datastore"
	"go-office-trash/internal/entity"
	"go-office-trash/internal/event"
	"go-office-trash/internal/metrics"
	"go-office-trash/internal/model"
	"go-office-trash/internal/repository"
	"go-office-trash/internal/retention"
)

type fixedClock struct {
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	return c.now
}

type trashFixture struct {
	store    *datastore.Memory
	repo     *repository.TrashRepository
	audit    *AuditService
	trash    *TrashService
	entities *EntityService
	bus      *event.InMemoryBus
	metrics  *metrics.Metrics
	clock    *fixedClock
	settings model.TrashSettings
}

var (
	manager = model.AuditActor{UserID: "user-2", Username: "maria", Role: model.RoleManager}
	clerk   = model.AuditActor{UserID: "user-3", Username: "tom", Role: model.RoleClerk}
)

func newTrashFixture(t *testing.T) *trashFixture {
	t.Helper()

	store := datastore.NewMemory()
	repo := repository.NewTrashRepository(store)
	clock := &fixedClock{now: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)}
	bus := event.NewBus()
	registry := entity.Default()

	audit := NewAuditService(repository.NewAuditRepository(store))
	audit.SetClock(clock.Now)

	trash := NewTrashService(repo, store, registry, audit, bus)
	trash.SetClock(clock.Now)
	m := metrics.New()
	trash.SetMetrics(m)

	return &trashFixture{
		store:    store,
		repo:     repo,
		audit:    audit,
		trash:    trash,
		entities: NewEntityService(store, registry, trash, repo, audit, bus),
		bus:      bus,
		metrics:  m,
		clock:    clock,
		settings: model.DefaultTrashSettings(),
	}
}

func (f *trashFixture) seed(t *testing.T, collection string, record string) {
	t.Helper()
	_, err := f.store.Add(context.Background(), collection, "", json.RawMessage(record))
	require.NoError(t, err)
}

func (f *trashFixture) capture(t *testing.T, entityType model.EntityType, id string, data string) model.TrashEntry {
	t.Helper()
	entry, err := f.trash.CaptureOnDelete(context.Background(), model.CaptureRequest{
		EntityType: entityType,
		OriginalID: id,
		EntityData: json.RawMessage(data),
		DeletedBy:  manager,
	}, f.settings)
	require.NoError(t, err)
	return entry
}

func TestCaptureOnDeleteBuildsEntry(t *testing.T) {
	f := newTrashFixture(t)
	f.seed(t, datastore.CollectionTasks, `{"id":"task-1","title":"Onboarding","assignedTo":"emp-1"}`)
	f.seed(t, datastore.CollectionTasks, `{"id":"task-2","title":"Other","assignedTo":"emp-9"}`)

	entry := f.capture(t, model.EntityEmployee, "emp-1", `{"id":"emp-1","name":"Test","position":"Clerk"}`)

	assert.NotEmpty(t, entry.ID)
	assert.Equal(t, "Test", entry.EntityName)
	assert.Equal(t, "Clerk", entry.EntityDescription)
	assert.Equal(t, "user-2", entry.DeletedBy)
	assert.Equal(t, "maria", entry.DeletedByName)
	assert.Equal(t, model.DeleteSoft, entry.DeleteType)
	assert.True(t, entry.CanRestore)
	assert.Equal(t, 90, entry.RetentionDays)
	assert.Equal(t, f.clock.now.AddDate(0, 0, 90), entry.AutoDeleteAt)
	assert.Equal(t, model.RestoreComplex, entry.RestoreComplexity)
	require.Len(t, entry.RelatedItems, 1)
	assert.Equal(t, model.RelatedItem{Type: model.EntityTask, ID: "task-1", Name: "Onboarding", Status: model.RelatedExists}, entry.RelatedItems[0])
	assert.Equal(t, 1, entry.DependenciesCount)
	assert.Equal(t, datastore.CollectionEmployees, entry.Metadata.OriginalModule)
	assert.Equal(t, "/employees/emp-1", entry.Metadata.OriginalPath)
	assert.Regexp(t, `^xxh64:[0-9a-f]{16}$`, entry.Metadata.ChecksumHash)
	assert.Equal(t, int64(len(`{"id":"emp-1","name":"Test","position":"Clerk"}`)), entry.Size)
}

func TestCaptureInvariantListsExactlyOneEntry(t *testing.T) {
	f := newTrashFixture(t)
	before := f.clock.now

	f.capture(t, model.EntityTask, "task-1", `{"id":"task-1","title":"A"}`)

	active, err := f.trash.ListActive(context.Background())
	require.NoError(t, err)
	matches := 0
	for _, e := range active {
		if e.OriginalID == "task-1" {
			matches++
			assert.False(t, e.DeletedAt.Before(before))
			assert.False(t, e.DeletedAt.After(f.clock.now))
		}
	}
	assert.Equal(t, 1, matches)
}

func TestCaptureTwiceIsDuplicate(t *testing.T) {
	f := newTrashFixture(t)
	f.capture(t, model.EntityTask, "task-1", `{"id":"task-1"}`)

	_, err := f.trash.CaptureOnDelete(context.Background(), model.CaptureRequest{
		EntityType: model.EntityTask,
		OriginalID: "task-1",
		EntityData: json.RawMessage(`{"id":"task-1"}`),
		DeletedBy:  manager,
	}, f.settings)
	require.ErrorIs(t, err, model.ErrDuplicateEntry)

	// same id under another type is a different entity
	f.capture(t, model.EntityCategory, "task-1", `{"id":"task-1"}`)
}

func TestCaptureRejections(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*model.TrashSettings, *model.CaptureRequest)
		wantErr error
	}{
		{
			name:    "disabled",
			mutate:  func(s *model.TrashSettings, _ *model.CaptureRequest) { s.Enabled = false },
			wantErr: model.ErrTrashDisabled,
		},
		{
			name:    "unknown type",
			mutate:  func(_ *model.TrashSettings, r *model.CaptureRequest) { r.EntityType = "spaceship" },
			wantErr: model.ErrUnknownEntityType,
		},
		{
			name:    "not an object",
			mutate:  func(_ *model.TrashSettings, r *model.CaptureRequest) { r.EntityData = json.RawMessage(`[1,2]`) },
			wantErr: model.ErrInvalidInput,
		},
		{
			name:    "missing id",
			mutate:  func(_ *model.TrashSettings, r *model.CaptureRequest) { r.OriginalID = " " },
			wantErr: model.ErrInvalidInput,
		},
		{
			name:    "item limit",
			mutate:  func(s *model.TrashSettings, _ *model.CaptureRequest) { s.MaxItemsInTrash = 1 },
			wantErr: model.ErrTrashFull,
		},
		{
			name:    "size limit",
			mutate:  func(s *model.TrashSettings, _ *model.CaptureRequest) { s.MaxTotalSize = "40B" },
			wantErr: model.ErrTrashFull,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newTrashFixture(t)
			f.capture(t, model.EntityTask, "task-0", `{"id":"task-0","title":"already here"}`)

			settings := model.DefaultTrashSettings()
			req := model.CaptureRequest{
				EntityType: model.EntityTask,
				OriginalID: "task-1",
				EntityData: json.RawMessage(`{"id":"task-1","title":"x"}`),
				DeletedBy:  manager,
			}
			tc.mutate(&settings, &req)

			_, err := f.trash.CaptureOnDelete(context.Background(), req, settings)
			require.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestDestructiveCaptureIsNotRestorable(t *testing.T) {
	f := newTrashFixture(t)
	entry, err := f.trash.CaptureOnDelete(context.Background(), model.CaptureRequest{
		EntityType:  model.EntityDepartment,
		OriginalID:  "dep-1",
		EntityData:  json.RawMessage(`{"id":"dep-1","name":"Finance"}`),
		DeletedBy:   manager,
		Destructive: true,
	}, f.settings)
	require.NoError(t, err)
	assert.Equal(t, model.DeleteHard, entry.DeleteType)
	assert.False(t, entry.CanRestore)
	assert.Equal(t, model.RestoreImpossible, entry.RestoreComplexity)

	_, err = f.trash.Restore(context.Background(), entry.ID, manager, "", f.settings)
	require.ErrorIs(t, err, model.ErrNotRestorable)

	active, err := f.trash.ListActive(context.Background())
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestExampleScenario(t *testing.T) {
	f := newTrashFixture(t)
	f.settings.RetentionByType[model.EntityEmployee] = 30
	ctx := context.Background()

	entry := f.capture(t, model.EntityEmployee, "emp-1", `{"id":"emp-1","name":"Test"}`)
	assert.Equal(t, time.Date(2024, 1, 31, 9, 0, 0, 0, time.UTC), entry.AutoDeleteAt)

	f.clock.now = time.Date(2024, 1, 25, 9, 0, 0, 0, time.UTC)
	assert.True(t, retention.IsNearExpiry(entry.AutoDeleteAt, f.clock.now, 7))

	ref, err := f.trash.Restore(ctx, entry.ID, manager, "mistake", f.settings)
	require.NoError(t, err)
	assert.Equal(t, datastore.CollectionEmployees, ref.Collection)
	assert.Equal(t, "emp-1", ref.ID)

	live, err := f.store.GetByID(ctx, datastore.CollectionEmployees, "emp-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"emp-1","name":"Test"}`, string(live))

	restored, err := f.trash.Get(ctx, entry.ID)
	require.NoError(t, err)
	require.NotNil(t, restored.RestoredAt)
	assert.Equal(t, f.clock.now, *restored.RestoredAt)
	assert.Equal(t, "user-2", restored.RestoredBy)
	assert.Equal(t, "mistake", restored.RestoreReason)

	_, err = f.trash.Restore(ctx, entry.ID, manager, "again", f.settings)
	require.ErrorIs(t, err, model.ErrItemAlreadyRestored)
}

func TestRestoreTerminality(t *testing.T) {
	f := newTrashFixture(t)
	ctx := context.Background()
	entry := f.capture(t, model.EntityTask, "task-1", `{"id":"task-1","title":"A"}`)

	_, err := f.trash.Restore(ctx, entry.ID, manager, "", f.settings)
	require.NoError(t, err)

	_, err = f.trash.Restore(ctx, entry.ID, manager, "", f.settings)
	require.ErrorIs(t, err, model.ErrItemAlreadyRestored)

	err = f.trash.PermanentDelete(ctx, entry.ID, manager)
	require.ErrorIs(t, err, model.ErrPurgeRejected)
}

func TestRestoreRejectsLiveConflict(t *testing.T) {
	f := newTrashFixture(t)
	ctx := context.Background()
	entry := f.capture(t, model.EntityTask, "task-1", `{"id":"task-1","title":"Old"}`)
	f.seed(t, datastore.CollectionTasks, `{"id":"task-1","title":"New"}`)

	_, err := f.trash.Restore(ctx, entry.ID, manager, "", f.settings)
	require.ErrorIs(t, err, model.ErrRestoreConflict)

	live, err := f.store.GetByID(ctx, datastore.CollectionTasks, "task-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"task-1","title":"New"}`, string(live))

	still, err := f.trash.Get(ctx, entry.ID)
	require.NoError(t, err)
	assert.False(t, still.IsRestored())
}

func TestRestoreUsesOutgoingCorrespondenceCollection(t *testing.T) {
	f := newTrashFixture(t)
	ctx := context.Background()
	entry := f.capture(t, model.EntityCorrespondence, "c-1", `{"id":"c-1","subject":"Invoice","direction":"outgoing"}`)

	ref, err := f.trash.Restore(ctx, entry.ID, manager, "", f.settings)
	require.NoError(t, err)
	assert.Equal(t, datastore.CollectionCorrespondenceOutgoing, ref.Collection)

	_, err = f.store.GetByID(ctx, datastore.CollectionCorrespondenceOutgoing, "c-1")
	require.NoError(t, err)
}

func TestRestorePermission(t *testing.T) {
	f := newTrashFixture(t)
	entry := f.capture(t, model.EntityTask, "task-1", `{"id":"task-1"}`)

	_, err := f.trash.Restore(context.Background(), entry.ID, clerk, "", f.settings)
	require.ErrorIs(t, err, model.ErrForbidden)

	open := f.settings
	open.RestorePermissions = nil
	_, err = f.trash.Restore(context.Background(), entry.ID, clerk, "", open)
	require.NoError(t, err)
}

func TestRestoreUnknownEntry(t *testing.T) {
	f := newTrashFixture(t)
	_, err := f.trash.Restore(context.Background(), "missing", manager, "", f.settings)
	require.ErrorIs(t, err, model.ErrTrashItemNotFound)
}

func TestRestoreKeepsEntryActiveWhenReinsertFails(t *testing.T) {
	f := newTrashFixture(t)
	ctx := context.Background()
	entry := f.capture(t, model.EntityTask, "task-1", `{"id":"task-1"}`)

	store := &datastore.MockDatastore{}
	raw, err := json.Marshal(entry)
	require.NoError(t, err)
	store.On("GetByID", ctx, datastore.CollectionTrash, entry.ID).Return(json.RawMessage(raw), nil)
	store.On("Add", ctx, datastore.CollectionTasks, "task-1", entry.EntityData).Return("", datastore.ErrUnavailable)

	trash := NewTrashService(repository.NewTrashRepository(store), store, entity.Default(), f.audit, nil)
	_, err = trash.Restore(ctx, entry.ID, manager, "", f.settings)
	require.ErrorIs(t, err, model.ErrStorageUnavailable)
	store.AssertNotCalled(t, "Update")

	still, err := f.trash.Get(ctx, entry.ID)
	require.NoError(t, err)
	assert.False(t, still.IsRestored())
}

func TestPermanentDeleteAuditsAndRejectsSecondCall(t *testing.T) {
	f := newTrashFixture(t)
	ctx := context.Background()
	entry := f.capture(t, model.EntityTask, "task-1", `{"id":"task-1"}`)

	events, unsubscribe := f.bus.Subscribe()
	defer unsubscribe()

	require.NoError(t, f.trash.PermanentDelete(ctx, entry.ID, manager))
	require.ErrorIs(t, f.trash.PermanentDelete(ctx, entry.ID, manager), model.ErrTrashItemNotFound)

	got := <-events
	assert.Equal(t, event.TypeTrashPurged, got.Type)

	records, _, err := f.audit.Query(ctx, model.AuditQuery{Action: AuditActionPurge})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "user-2", records[0].Actor.UserID)
	assert.Equal(t, AuditStatusSuccess, records[0].Status)
	assert.Equal(t, "/tasks/task-1", records[0].Resource)
}

func TestBulkRestorePartialFailure(t *testing.T) {
	f := newTrashFixture(t)
	ctx := context.Background()

	ids := make([]string, 0, 5)
	for _, id := range []string{"t1", "t2", "t3", "t4", "t5"} {
		ids = append(ids, f.capture(t, model.EntityTask, id, `{"id":"`+id+`"}`).ID)
	}
	_, err := f.trash.Restore(ctx, ids[2], manager, "", f.settings)
	require.NoError(t, err)

	result, err := f.trash.BulkRestore(ctx, ids, manager, "bulk", f.settings)
	require.NoError(t, err)
	assert.Len(t, result.Succeeded, 4)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, ids[2], result.Failed[0].ID)
	assert.Equal(t, "ALREADY_RESTORED", result.Failed[0].Code)

	for _, id := range result.Succeeded {
		_, err := f.trash.Restore(ctx, id, manager, "", f.settings)
		require.ErrorIs(t, err, model.ErrItemAlreadyRestored)
	}
}

func TestBulkInputValidation(t *testing.T) {
	f := newTrashFixture(t)
	ctx := context.Background()

	_, err := f.trash.BulkRestore(ctx, nil, manager, "", f.settings)
	require.ErrorIs(t, err, model.ErrInvalidInput)

	_, err = f.trash.BulkPermanentDelete(ctx, []string{" ", ""}, manager)
	require.ErrorIs(t, err, model.ErrInvalidInput)

	_, err = f.trash.BulkRestore(ctx, []string{"x"}, clerk, "", f.settings)
	require.ErrorIs(t, err, model.ErrForbidden)
}

func TestBulkPermanentDeleteProcessesDuplicatesOnce(t *testing.T) {
	f := newTrashFixture(t)
	ctx := context.Background()
	a := f.capture(t, model.EntityTask, "t1", `{"id":"t1"}`)
	b := f.capture(t, model.EntityTask, "t2", `{"id":"t2"}`)

	result, err := f.trash.BulkPermanentDelete(ctx, []string{a.ID, a.ID, "missing", b.ID}, manager)
	require.NoError(t, err)
	assert.Equal(t, []string{a.ID, b.ID}, result.Succeeded)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, "missing", result.Failed[0].ID)
	assert.Equal(t, "NOT_FOUND", result.Failed[0].Code)
}

func TestRunAutoExpiryBoundary(t *testing.T) {
	f := newTrashFixture(t)
	ctx := context.Background()
	entry := f.capture(t, model.EntityTask, "task-1", `{"id":"task-1"}`)

	result, err := f.trash.RunAutoExpiry(ctx, entry.AutoDeleteAt.Add(-time.Second))
	require.NoError(t, err)
	assert.Empty(t, result.Succeeded)

	unchanged, err := f.trash.Get(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, entry, unchanged)

	result, err = f.trash.RunAutoExpiry(ctx, entry.AutoDeleteAt)
	require.NoError(t, err)
	assert.Equal(t, []string{entry.ID}, result.Succeeded)

	_, err = f.trash.Get(ctx, entry.ID)
	require.ErrorIs(t, err, model.ErrTrashItemNotFound)

	records, _, err := f.audit.Query(ctx, model.AuditQuery{Action: AuditActionPurge})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, SystemActor.UserID, records[0].Actor.UserID)
}

func TestRunAutoExpirySkipsRestoredEntries(t *testing.T) {
	f := newTrashFixture(t)
	ctx := context.Background()
	entry := f.capture(t, model.EntityTask, "task-1", `{"id":"task-1"}`)
	_, err := f.trash.Restore(ctx, entry.ID, manager, "", f.settings)
	require.NoError(t, err)

	result, err := f.trash.RunAutoExpiry(ctx, entry.AutoDeleteAt.AddDate(1, 0, 0))
	require.NoError(t, err)
	assert.Empty(t, result.Succeeded)
	assert.Empty(t, result.Failed)
}

func TestRetentionFreeze(t *testing.T) {
	f := newTrashFixture(t)
	ctx := context.Background()
	entry := f.capture(t, model.EntityEmployee, "emp-1", `{"id":"emp-1"}`)

	f.settings.RetentionByType[model.EntityEmployee] = 1
	f.settings.DefaultRetentionDays = 2
	_, err := f.trash.GetStats(ctx, f.clock.now, f.settings)
	require.NoError(t, err)

	stored, err := f.trash.Get(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, entry.AutoDeleteAt, stored.AutoDeleteAt)
	assert.Equal(t, 90, stored.RetentionDays)
}

func TestGetStatsConsistency(t *testing.T) {
	f := newTrashFixture(t)
	ctx := context.Background()

	f.capture(t, model.EntityTask, "t1", `{"id":"t1"}`)
	f.clock.now = f.clock.now.Add(time.Hour)
	f.capture(t, model.EntityEmployee, "e1", `{"id":"e1","name":"Ann"}`)
	f.clock.now = f.clock.now.Add(time.Hour)
	purged := f.capture(t, model.EntityCategory, "c1", `{"id":"c1"}`)
	restored := f.capture(t, model.EntityCategory, "c2", `{"id":"c2"}`)
	_, err := f.trash.CaptureOnDelete(ctx, model.CaptureRequest{
		EntityType:  model.EntityDivision,
		OriginalID:  "d1",
		EntityData:  json.RawMessage(`{"id":"d1"}`),
		DeletedBy:   manager,
		Destructive: true,
	}, f.settings)
	require.NoError(t, err)

	require.NoError(t, f.trash.PermanentDelete(ctx, purged.ID, manager))
	_, err = f.trash.Restore(ctx, restored.ID, manager, "", f.settings)
	require.NoError(t, err)

	// task (30 days) is near expiry 25 days later, nothing overdue yet
	now := time.Date(2024, 1, 26, 12, 0, 0, 0, time.UTC)
	stats, err := f.trash.GetStats(ctx, now, f.settings)
	require.NoError(t, err)

	active, err := f.trash.ListActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(active), stats.TotalItems)
	assert.Equal(t, 3, stats.TotalItems)

	sum := 0
	for _, n := range stats.ItemsByType {
		sum += n
	}
	assert.Equal(t, stats.TotalItems, sum)
	assert.Equal(t, 1, stats.ItemsByType[model.EntityTask])
	assert.Equal(t, 1, stats.ItemsNearExpiry)
	assert.Equal(t, 0, stats.ItemsOverdue)
	assert.Equal(t, 2, stats.RestorableItems)
	require.NotNil(t, stats.OldestItem)
	require.NotNil(t, stats.NewestItem)
	assert.True(t, stats.OldestItem.Before(*stats.NewestItem))
	assert.NotEmpty(t, stats.TotalSizeHuman)
	// the purge happened on 2024-01-01, not on the stats day
	assert.Equal(t, 0, stats.PermanentlyDeletedToday)

	sameDay, err := f.trash.GetStats(ctx, f.clock.now, f.settings)
	require.NoError(t, err)
	assert.Equal(t, 1, sameDay.PermanentlyDeletedToday)

	later, err := f.trash.GetStats(ctx, now.AddDate(0, 0, 10), f.settings)
	require.NoError(t, err)
	assert.Equal(t, 1, later.ItemsOverdue)

	values, err := f.metrics.Gather()
	require.NoError(t, err)
	assert.Equal(t, 3.0, values["office_trash_active_entries"])
}

func TestRefreshRelatedReportsCurrentStatus(t *testing.T) {
	f := newTrashFixture(t)
	ctx := context.Background()
	f.seed(t, datastore.CollectionEmployees, `{"id":"emp-1","name":"Ann","departmentId":"dep-1"}`)
	f.seed(t, datastore.CollectionEmployees, `{"id":"emp-2","name":"Bob","departmentId":"dep-1"}`)
	f.seed(t, datastore.CollectionDivisions, `{"id":"div-1","name":"North","departmentId":"dep-1"}`)

	dept := f.capture(t, model.EntityDepartment, "dep-1", `{"id":"dep-1","name":"Finance"}`)
	require.Len(t, dept.RelatedItems, 3)

	_, err := f.entities.Delete(ctx, model.EntityEmployee, "emp-1", "", false, manager, f.settings)
	require.NoError(t, err)
	require.NoError(t, f.store.Delete(ctx, datastore.CollectionDivisions, "div-1"))

	items, err := f.trash.RefreshRelated(ctx, dept.ID)
	require.NoError(t, err)

	statuses := map[string]model.RelatedStatus{}
	for _, item := range items {
		statuses[item.ID] = item.Status
	}
	assert.Equal(t, model.RelatedDeleted, statuses["emp-1"])
	assert.Equal(t, model.RelatedExists, statuses["emp-2"])
	assert.Equal(t, model.RelatedMissing, statuses["div-1"])
}

func TestStorageUnavailablePropagates(t *testing.T) {
	f := newTrashFixture(t)
	f.store.SetAvailable(false)

	_, err := f.trash.GetStats(context.Background(), f.clock.now, f.settings)
	require.ErrorIs(t, err, model.ErrStorageUnavailable)

	_, err = f.trash.BulkPermanentDelete(context.Background(), []string{"a"}, manager)
	require.NoError(t, err)
}
