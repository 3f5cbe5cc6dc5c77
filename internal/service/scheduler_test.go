package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-office-trash/internal/model"
)

func TestSchedulerSweepsOnStart(t *testing.T) {
	f := newTrashFixture(t)
	entry := f.capture(t, model.EntityTask, "t1", `{"id":"t1"}`)

	scheduler := NewExpiryScheduler(f.trash, f.settings)
	scheduler.now = func() time.Time { return entry.AutoDeleteAt.Add(time.Minute) }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- scheduler.Run(ctx) }()

	require.Eventually(t, func() bool {
		_, err := f.trash.Get(context.Background(), entry.ID)
		return err != nil
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}

func TestSchedulerDisabled(t *testing.T) {
	f := newTrashFixture(t)
	settings := f.settings
	settings.AutoCleanupEnabled = false

	scheduler := NewExpiryScheduler(f.trash, settings)
	assert.NoError(t, scheduler.Run(context.Background()))
	assert.Equal(t, 24*time.Hour, scheduler.Interval())
}
