// Package scheduler implements the preemptive priority scheduler of
// spec §4 and §5: admission, victim selection and preemption, same-
// priority round-robin time-slicing, and the event-reaction handlers
// for timer-driven transitions (time slice expiry, temperature reached,
// auto-restart). Grounded in the teacher's internal/service/scheduler.go
// (HandleRequest/schedule/selectVictim/checkWaitQueue/
// handleTemperatureRecovery) and the teacher's CompositeStrategy victim
// rules (now in this package's strategy.go), unified into a single implementation
// driven by internal/timer.Registry instead of two competing wall-clock
// tickers.
package scheduler

import (
	"sync"
	"time"

	"hotelcore/internal/billing"
	"hotelcore/internal/config"
	"hotelcore/internal/corerr"
	"hotelcore/internal/events"
	"hotelcore/internal/room"
	"hotelcore/internal/timer"
)

// Core is the scheduler. Its mutex is the scheduler-wide single-writer
// lock of spec §5: every external request and every timer-event handler
// acquires it before mutating queue or room state.
type Core struct {
	mu sync.Mutex

	q *queues

	registry *timer.Registry
	billing  *billing.Engine
	rooms    RoomStore
	bus      *events.Bus
	cfg      config.Config
}

func NewCore(registry *timer.Registry, billingEngine *billing.Engine, rooms RoomStore, bus *events.Bus, cfg config.Config) *Core {
	c := &Core{
		q:        newQueues(),
		registry: registry,
		billing:  billingEngine,
		rooms:    rooms,
		bus:      bus,
		cfg:      cfg,
	}
	bus.Subscribe(events.TimeSliceExpired, c.onTimeSliceExpired)
	bus.Subscribe(events.TemperatureReached, c.onTemperatureReached)
	bus.Subscribe(events.AutoRestartNeeded, c.onAutoRestartNeeded)
	return c
}

// accommodationLogicSeconds returns the room's accommodation timer
// elapsed_seconds, or 0 if the room has no accommodation timer bound
// (spec §4.2 start_new_detail_record/close_current_detail_record).
func (c *Core) accommodationLogicSeconds(roomID string) int64 {
	st, ok := c.registry.GetByRoom(roomID, timer.KindAccommodation)
	if !ok {
		return 0
	}
	return st.ElapsedSeconds
}

// ServingSpeeds returns the set of speeds currently in the service queue,
// for the timer registry's WAIT time-slice enforcement.
func (c *Core) ServingSpeeds() map[room.Speed]bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.q.servingSpeeds()
}

// RoomsInQueue returns the set of room ids in either queue, for the
// timer registry's auto-restart suppression.
func (c *Core) RoomsInQueue() map[string]bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.q.roomsInQueue()
}

// Snapshot returns a point-in-time view of both queues, for monitoring.
func (c *Core) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.q.snapshot()
}

// RequestService is the on_new_request operation (spec §4.1/§4.2):
// already-serving rooms update in place, already-waiting rooms update
// their requested speed, otherwise the room is admitted directly,
// preempts a lower-priority victim, or joins the wait queue.
func (c *Core) RequestService(roomID string, speed room.Speed, now time.Time) error {
	if !speed.Valid() {
		return corerr.InvalidArgument("scheduler.RequestService", "invalid speed")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	r, ok, err := c.rooms.GetRoom(roomID)
	if err != nil {
		return corerr.Internal("scheduler.RequestService", err)
	}
	if !ok {
		return corerr.NotFound("scheduler.RequestService", "room "+roomID+" not found")
	}
	if r.Status != room.StatusOccupied {
		return corerr.PreconditionFailed("scheduler.RequestService", "room "+roomID+" is not occupied")
	}

	if so, ok := c.q.service.Get(roomID); ok {
		return c.updateServingSpeedLocked(r, so, speed, now)
	}
	if wo, ok := c.q.wait.Get(roomID); ok {
		wo.Speed = speed
		c.q.wait.Update(roomID, func(*WaitObject) *WaitObject { return wo })
		r.Speed = speed
		return c.rooms.SaveRoom(r)
	}

	if c.q.service.Size() < c.cfg.Scheduling.MaxConcurrent {
		return c.admitLocked(r, speed, now)
	}

	if victim, ok := selectVictim(c.q.service.List(), speed.Priority()); ok {
		if err := c.preemptLocked(victim, now, false, 0); err != nil {
			return err
		}
		c.boostSameSpeedWaitersLocked(speed)
		return c.admitLocked(r, speed, now)
	}

	// spec §4.2 step 5: time_slice_enforced=true iff some serving object
	// already shares this request's speed.
	enforced := c.q.servingSpeeds()[speed]
	remaining := int64(0)
	if enforced {
		remaining = c.cfg.Scheduling.TimeSliceSeconds
	}
	return c.enqueueWaitLocked(r, speed, now, enforced, remaining)
}

// updateServingSpeedLocked handles an in-place speed change on an
// already-serving room. The DETAIL timer is bound to a single speed
// (timer.go's tick loop bills at t.Speed), so a speed change must cancel
// the old DETAIL timer and create a fresh one at the new speed rather
// than reuse the stale one — otherwise the new segment would accrue fees
// at the prior speed's rate.
func (c *Core) updateServingSpeedLocked(r *room.Room, so *ServiceObject, speed room.Speed, now time.Time) error {
	if so.Speed == speed {
		return nil
	}
	c.registry.CancelTimer(so.DetailTimerID)
	detID := c.registry.CreateDetailTimer(r.RoomID, speed)

	so.Speed = speed
	so.DetailTimerID = detID
	c.q.service.Update(r.RoomID, func(*ServiceObject) *ServiceObject { return so })
	r.Speed = speed
	if err := c.rooms.SaveRoom(r); err != nil {
		return corerr.Internal("scheduler.updateServingSpeedLocked", err)
	}
	if _, err := c.billing.StartNewDetailRecord(r.RoomID, speed, r.CurrentTemp, now, detID, c.accommodationLogicSeconds(r.RoomID)); err != nil {
		return err
	}
	return nil
}

func (c *Core) admitLocked(r *room.Room, speed room.Speed, now time.Time) error {
	r.Speed = speed
	r.IsServing = true
	if err := c.rooms.SaveRoom(r); err != nil {
		return corerr.Internal("scheduler.admitLocked", err)
	}

	svcID := c.registry.CreateServiceTimer(r.RoomID, speed)
	detID := c.registry.CreateDetailTimer(r.RoomID, speed)
	so := &ServiceObject{RoomID: r.RoomID, Speed: speed, ServiceTimerID: svcID, DetailTimerID: detID, StartedAt: now}
	c.q.service.Add(r.RoomID, so)

	_, err := c.billing.StartNewDetailRecord(r.RoomID, speed, r.CurrentTemp, now, detID, c.accommodationLogicSeconds(r.RoomID))
	return err
}

func (c *Core) enqueueWaitLocked(r *room.Room, speed room.Speed, now time.Time, enforced bool, remaining int64) error {
	r.Speed = speed
	r.IsServing = false
	if err := c.rooms.SaveRoom(r); err != nil {
		return corerr.Internal("scheduler.enqueueWaitLocked", err)
	}
	wtID := c.registry.CreateWaitTimer(r.RoomID, speed, enforced, remaining)
	c.q.wait.Add(r.RoomID, &WaitObject{RoomID: r.RoomID, Speed: speed, WaitTimerID: wtID, EnqueuedAt: now})
	return nil
}

// preemptLocked moves a serving room to the wait queue. enforced/remaining
// shape the fresh WAIT timer: the on_new_request displacement path (spec
// §4.2 step 4) starts the victim unenforced (enforced=false, remaining=0),
// while time-slice rotation (spec §4.4 step 2) must start the rotated-out
// room already enforced with a full time slice (enforced=true,
// remaining=Q) — callers pass the values their spec step requires.
func (c *Core) preemptLocked(victim *ServiceObject, now time.Time, enforced bool, remaining int64) error {
	c.q.service.Remove(victim.RoomID)
	c.registry.CancelTimer(victim.ServiceTimerID)
	if err := c.billing.CloseCurrentDetailRecord(victim.RoomID, now, c.accommodationLogicSeconds(victim.RoomID)); err != nil {
		return err
	}

	r, ok, err := c.rooms.GetRoom(victim.RoomID)
	if err != nil {
		return corerr.Internal("scheduler.preemptLocked", err)
	}
	if !ok {
		return nil
	}
	return c.enqueueWaitLocked(r, victim.Speed, now, enforced, remaining)
}

// boostSameSpeedWaitersLocked bumps the priority token of every waiting
// room whose requested speed matches the admitted request (spec §4.1
// "on_new_request" step 4: "boost any waiting objects whose speed equals
// s.speed"), so that same-speed waiters queued before a higher-priority
// admission move ahead of waiters queued after it once capacity frees up.
func (c *Core) boostSameSpeedWaitersLocked(speed room.Speed) {
	for _, wo := range c.q.wait.List() {
		if wo.Speed != speed {
			continue
		}
		wo.PriorityToken++
		c.q.wait.Update(wo.RoomID, func(*WaitObject) *WaitObject { return wo })
	}
}

// StopService is the explicit stop/cancel operation: removes the room
// from whichever queue holds it, closes billing, and promotes the next
// eligible waiting room into the freed capacity.
func (c *Core) StopService(roomID string, now time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	r, ok, err := c.rooms.GetRoom(roomID)
	if err != nil {
		return corerr.Internal("scheduler.StopService", err)
	}
	if !ok {
		return corerr.NotFound("scheduler.StopService", "room "+roomID+" not found")
	}

	if so, ok := c.q.service.Remove(roomID); ok {
		c.registry.CancelTimer(so.ServiceTimerID)
		c.registry.CancelTimer(so.DetailTimerID)
		if err := c.billing.CloseCurrentDetailRecord(roomID, now, c.accommodationLogicSeconds(roomID)); err != nil {
			return err
		}
		r.IsServing = false
		if err := c.rooms.SaveRoom(r); err != nil {
			return corerr.Internal("scheduler.StopService", err)
		}
		return c.fillCapacityLocked(now)
	}

	if wo, ok := c.q.wait.Remove(roomID); ok {
		c.registry.CancelTimer(wo.WaitTimerID)
		r.IsServing = false
		return c.rooms.SaveRoom(r)
	}

	return nil
}

// fillCapacityLocked admits the next eligible waiting room into newly
// freed service capacity, if any room is waiting (spec §4.1 "fill
// capacity on release").
func (c *Core) fillCapacityLocked(now time.Time) error {
	if c.q.service.Size() >= c.cfg.Scheduling.MaxConcurrent {
		return nil
	}
	next, ok := nextFromWaitQueue(c.q.wait.List())
	if !ok {
		return nil
	}

	r, ok, err := c.rooms.GetRoom(next.RoomID)
	if err != nil {
		return corerr.Internal("scheduler.fillCapacityLocked", err)
	}
	if !ok {
		return nil
	}
	c.q.wait.Remove(next.RoomID)
	c.registry.CancelTimer(next.WaitTimerID)
	return c.admitLocked(r, next.Speed, now)
}

// onTimeSliceExpired implements same-priority round-robin rotation: the
// room whose WAIT timer expired is swapped in for the longest-serving
// room at the same speed tier (spec §4.4 "time slice").
func (c *Core) onTimeSliceExpired(ev events.Event) {
	payload, ok := ev.Payload.(timer.TimeSliceExpiredPayload)
	if !ok {
		return
	}
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	wo, ok := c.q.wait.Get(payload.RoomID)
	if !ok || wo.WaitTimerID != payload.TimerID {
		return
	}

	victim, ok := sameSpeedVictim(c.q.service.List(), payload.Speed)
	if !ok {
		return
	}
	if err := c.preemptLocked(victim, now, true, c.cfg.Scheduling.TimeSliceSeconds); err != nil {
		return
	}

	c.q.wait.Remove(payload.RoomID)
	c.registry.CancelTimer(payload.TimerID)

	r, ok, err := c.rooms.GetRoom(payload.RoomID)
	if err != nil || !ok {
		return
	}
	_ = c.admitLocked(r, payload.Speed, now)
}

// onTemperatureReached releases the reported room (spec §4.2
// "TEMPERATURE_REACHED: release(room_id)"): the room stops serving,
// its detail record closes, and the freed capacity is handed to the
// next waiting room.
func (c *Core) onTemperatureReached(ev events.Event) {
	payload, ok := ev.Payload.(timer.TemperatureReachedPayload)
	if !ok {
		return
	}
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	so, ok := c.q.service.Remove(payload.RoomID)
	if !ok {
		return
	}
	c.registry.CancelTimer(so.ServiceTimerID)
	c.registry.CancelTimer(so.DetailTimerID)
	if err := c.billing.CloseCurrentDetailRecord(payload.RoomID, now, c.accommodationLogicSeconds(payload.RoomID)); err != nil {
		return
	}
	r, ok, err := c.rooms.GetRoom(payload.RoomID)
	if err != nil || !ok {
		return
	}
	r.IsServing = false
	if err := c.rooms.SaveRoom(r); err != nil {
		return
	}
	_ = c.fillCapacityLocked(now)
}

// onAutoRestartNeeded re-issues the room's last known speed as a fresh
// request once the drift threshold is crossed while idle and unqueued
// (spec §4.1 "auto-restart"), grounded in the teacher's
// handleTemperatureRecovery.
func (c *Core) onAutoRestartNeeded(ev events.Event) {
	payload, ok := ev.Payload.(timer.AutoRestartNeededPayload)
	if !ok {
		return
	}
	speed := payload.Speed
	if !speed.Valid() {
		speed = room.SpeedMid
	}
	_ = c.RequestService(payload.RoomID, speed, time.Now())
}
