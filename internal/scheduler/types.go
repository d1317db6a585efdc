package scheduler

import (
	"time"

	"hotelcore/internal/room"
)

// ServiceObject is an entry in the service queue: a room currently being
// actively cooled/heated by the shared unit. Replaces the teacher's
// int-keyed, speed-string ServiceItem with the spec's string room ids
// and the room package's typed Speed.
type ServiceObject struct {
	RoomID         string
	Speed          room.Speed
	ServiceTimerID string
	DetailTimerID  string
	StartedAt      time.Time
}

// WaitObject is an entry in the wait queue: a room requesting service
// that could not be admitted immediately. Replaces the teacher's
// WaitItem/PriorityItem heap entry; ordering among waiters is computed
// on demand in strategy.go rather than maintained by a live heap, since
// the wait queue is expected to stay small (bounded by room count).
type WaitObject struct {
	RoomID        string
	Speed         room.Speed
	WaitTimerID   string
	EnqueuedAt    time.Time
	PriorityToken int
}

// Snapshot is a point-in-time view of both queues, for monitoring.
type Snapshot struct {
	Serving []ServiceObject
	Waiting []WaitObject
}
