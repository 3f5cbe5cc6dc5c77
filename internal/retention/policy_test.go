package retention

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-office-trash/internal/model"
)

func TestDaysFor(t *testing.T) {
	t.Parallel()

	settings := model.TrashSettings{
		DefaultRetentionDays: 30,
		RetentionByType: map[model.EntityType]int{
			model.EntityEmployee: 90,
			model.EntityTask:     0,
			model.EntityCategory: -5,
		},
	}

	tests := []struct {
		name       string
		entityType model.EntityType
		settings   model.TrashSettings
		want       int
	}{
		{name: "per type override", entityType: model.EntityEmployee, settings: settings, want: 90},
		{name: "zero override falls back", entityType: model.EntityTask, settings: settings, want: 30},
		{name: "negative override falls back", entityType: model.EntityCategory, settings: settings, want: 30},
		{name: "missing override falls back", entityType: model.EntityDivision, settings: settings, want: 30},
		{name: "invalid default uses fallback", entityType: model.EntityTask, settings: model.TrashSettings{}, want: fallbackRetentionDays},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DaysFor(tt.entityType, tt.settings))
		})
	}
}

func TestAutoDeleteAt(t *testing.T) {
	t.Parallel()

	deletedAt := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC), AutoDeleteAt(deletedAt, 30))
	assert.True(t, AutoDeleteAt(deletedAt, 0).After(deletedAt))

	t.Run("calendar days across daylight saving", func(t *testing.T) {
		loc, err := time.LoadLocation("Europe/Berlin")
		if err != nil {
			t.Skip("tzdata not available")
		}
		start := time.Date(2024, 3, 30, 12, 0, 0, 0, loc)
		got := AutoDeleteAt(start, 1)
		require.Equal(t, 12, got.Hour())
		require.Equal(t, 31, got.Day())
	})
}

func TestIsNearExpiry(t *testing.T) {
	t.Parallel()

	autoDeleteAt := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)

	assert.True(t, IsNearExpiry(autoDeleteAt, time.Date(2024, 1, 25, 0, 0, 0, 0, time.UTC), 7))
	assert.True(t, IsNearExpiry(autoDeleteAt, time.Date(2024, 1, 24, 0, 0, 0, 0, time.UTC), 7))
	assert.False(t, IsNearExpiry(autoDeleteAt, time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), 7))
	assert.False(t, IsNearExpiry(autoDeleteAt, autoDeleteAt, 7), "expired entries are overdue, not near expiry")
	assert.False(t, IsNearExpiry(autoDeleteAt, autoDeleteAt.Add(time.Hour), 7))
}

func TestClassify(t *testing.T) {
	t.Parallel()

	autoDeleteAt := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, StateActive, Classify(autoDeleteAt, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 7))
	assert.Equal(t, StateNearExpiry, Classify(autoDeleteAt, time.Date(2024, 1, 28, 0, 0, 0, 0, time.UTC), 7))
	assert.Equal(t, StateOverdue, Classify(autoDeleteAt, autoDeleteAt, 7))
	assert.True(t, IsOverdue(autoDeleteAt, autoDeleteAt.Add(time.Second)))
}

func TestNearExpiryDays(t *testing.T) {
	t.Parallel()

	assert.Equal(t, DefaultNearExpiryDays, NearExpiryDays(model.TrashSettings{}))
	assert.Equal(t, 3, NearExpiryDays(model.TrashSettings{NearExpiryDays: 3}))
}
