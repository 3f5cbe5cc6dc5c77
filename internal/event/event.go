package event

import (
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypeTrashCaptured  Type = "trash.captured"
	TypeTrashRestored  Type = "trash.restored"
	TypeTrashPurged    Type = "trash.purged"
	TypeTrashExpired   Type = "trash.expired"
	TypeEntityCreated  Type = "entity.created"
	TypeEntityUpdated  Type = "entity.updated"
	TypeEntityDeleted  Type = "entity.deleted"
	TypeJobStarted     Type = "job.started"
	TypeJobCompleted   Type = "job.completed"
	TypeSettingsLoaded Type = "settings.loaded"
)

type Event struct {
	ID        string      `json:"id"`
	Type      Type        `json:"type"`
	Payload   interface{} `json:"payload"`
	Timestamp string      `json:"timestamp"`
	ActorID   string      `json:"actor_id,omitempty"` // Who triggered the event
}

func New(t Type, payload interface{}, actorID string) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      t,
		Payload:   payload,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		ActorID:   actorID,
	}
}

type Bus interface {
	Publish(e Event)
	Subscribe() (<-chan Event, func()) // Returns channel and unsubscribe function
}

// Nop discards everything. Used where no subscriber is wired.
type Nop struct{}

func (Nop) Publish(Event) {}

func (Nop) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event)
	return ch, func() {}
}
