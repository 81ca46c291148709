// Package activity builds, stores and fans out audit events for scheduling mutations.
package activity

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type Action string

const (
	ProjectCreated      Action = "PROJECT_CREATED"
	ProjectUpdated      Action = "PROJECT_UPDATED"
	ProjectDeleted      Action = "PROJECT_DELETED"
	AssignmentCreated   Action = "ASSIGNMENT_CREATED"
	AssignmentCompleted Action = "ASSIGNMENT_COMPLETED"
	AssignmentDeleted   Action = "ASSIGNMENT_DELETED"
	ResourceCreated     Action = "RESOURCE_CREATED"
	ResourceUpdated     Action = "RESOURCE_UPDATED"
	ResourceDeleted     Action = "RESOURCE_DELETED"
)

var actions = []Action{
	ProjectCreated, ProjectUpdated, ProjectDeleted,
	AssignmentCreated, AssignmentCompleted, AssignmentDeleted,
	ResourceCreated, ResourceUpdated, ResourceDeleted,
}

func Actions() []Action {
	out := make([]Action, len(actions))
	copy(out, actions)
	return out
}

func (a Action) Valid() bool {
	for _, known := range actions {
		if a == known {
			return true
		}
	}
	return false
}

// Details is the structured payload of an event.
type Details map[string]any

// Event is one audit record. It is stored in activity_logs and published as JSON.
// ActorID zero means the change was not attributed to a user.
type Event struct {
	bun.BaseModel `bun:"table:activity_logs,alias:al"`

	ID        int64     `bun:"id,pk,autoincrement" json:"id,omitempty"`
	EventID   uuid.UUID `bun:"event_id,type:uuid,notnull,unique" json:"eventId"`
	ActorID   int       `bun:"actor_id,nullzero" json:"actorId,omitempty"`
	Action    Action    `bun:"action,notnull" json:"action"`
	Details   Details   `bun:"details,type:jsonb" json:"details"`
	Timestamp time.Time `bun:"timestamp,notnull,default:current_timestamp" json:"timestamp"`
}

// New stamps a fresh event id and timestamp.
func New(actorID int, action Action, details Details, now time.Time) Event {
	return Event{
		EventID:   uuid.New(),
		ActorID:   actorID,
		Action:    action,
		Details:   details,
		Timestamp: now.UTC(),
	}
}

// EntityKey identifies the entity an event is about, used as a partition key.
func (e Event) EntityKey() string {
	for _, key := range []string{"assignment_id", "project_id", "resource_id"} {
		if v, ok := e.Details[key]; ok {
			return key + ":" + toString(v)
		}
	}
	return e.EventID.String()
}
