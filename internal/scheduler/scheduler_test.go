package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hotelcore/internal/billing"
	"hotelcore/internal/config"
	"hotelcore/internal/events"
	"hotelcore/internal/room"
	"hotelcore/internal/timer"
)

type fakeDetailStore struct {
	byRoom map[string][]billing.DetailRecord
}

func newFakeDetailStore() *fakeDetailStore {
	return &fakeDetailStore{byRoom: make(map[string][]billing.DetailRecord)}
}

func (s *fakeDetailStore) AppendDetail(rec billing.DetailRecord) error {
	s.byRoom[rec.RoomID] = append(s.byRoom[rec.RoomID], rec)
	return nil
}

func (s *fakeDetailStore) UpdateDetail(rec billing.DetailRecord) error {
	for i, r := range s.byRoom[rec.RoomID] {
		if r.ID == rec.ID {
			s.byRoom[rec.RoomID][i] = rec
			return nil
		}
	}
	return nil
}

func (s *fakeDetailStore) ListDetails(roomID string) ([]billing.DetailRecord, error) {
	return s.byRoom[roomID], nil
}

func (s *fakeDetailStore) ListOpenDetail(roomID string) (billing.DetailRecord, bool, error) {
	for _, r := range s.byRoom[roomID] {
		if r.Open {
			return r, true, nil
		}
	}
	return billing.DetailRecord{}, false, nil
}

func (s *fakeDetailStore) ClearDetails(roomID string) error {
	delete(s.byRoom, roomID)
	return nil
}

type fakeRoomStore struct {
	rooms map[string]*room.Room
}

func newFakeRoomStore(ids ...string) *fakeRoomStore {
	rs := &fakeRoomStore{rooms: make(map[string]*room.Room)}
	cfg := config.Default().Temperature
	for _, id := range ids {
		r := room.New(id, cfg, 100)
		_ = r.CheckIn()
		rs.rooms[id] = r
	}
	return rs
}

func (s *fakeRoomStore) GetRoom(roomID string) (*room.Room, bool, error) {
	r, ok := s.rooms[roomID]
	return r, ok, nil
}

func (s *fakeRoomStore) SaveRoom(r *room.Room) error {
	s.rooms[r.RoomID] = r
	return nil
}

func (s *fakeRoomStore) ListRooms() ([]*room.Room, error) {
	out := make([]*room.Room, 0, len(s.rooms))
	for _, r := range s.rooms {
		out = append(out, r)
	}
	return out, nil
}

func newTestCoreWithRegistry(t *testing.T, ids ...string) *Core {
	t.Helper()
	core, _, _ := newTestCoreFull(t, ids...)
	return core
}

// newTestCoreFull exposes the registry and detail store alongside the core
// for tests that need to inspect timer state or billing segments directly,
// not just queue membership.
func newTestCoreFull(t *testing.T, ids ...string) (*Core, *timer.Registry, *fakeDetailStore) {
	t.Helper()
	cfg := config.Default()
	rooms := newFakeRoomStore(ids...)
	bus := events.NewBus(64)
	bus.Start()
	registry := timer.NewRegistry(bus, rooms, cfg)
	store := newFakeDetailStore()
	eng := billing.NewEngine(store, cfg.Billing, cfg.Accommodation)
	registry.BindFeeCallback(eng.TickFee)
	return NewCore(registry, eng, rooms, bus, cfg), registry, store
}

func TestDirectAssignment(t *testing.T) {
	core := newTestCoreWithRegistry(t, "101", "102", "103", "104")

	assert.NoError(t, core.RequestService("101", room.SpeedLow, time.Now()))
	assert.NoError(t, core.RequestService("102", room.SpeedHigh, time.Now()))
	assert.NoError(t, core.RequestService("103", room.SpeedMid, time.Now()))
	assert.NoError(t, core.RequestService("104", room.SpeedLow, time.Now()))

	snap := core.Snapshot()
	assert.Len(t, snap.Serving, 3)
	assert.Len(t, snap.Waiting, 1)
	assert.Equal(t, "104", snap.Waiting[0].RoomID)
}

func TestPriorityPreemption(t *testing.T) {
	core := newTestCoreWithRegistry(t, "201", "202", "203", "204")

	for _, id := range []string{"201", "202", "203"} {
		require.NoError(t, core.RequestService(id, room.SpeedLow, time.Now()))
	}

	require.NoError(t, core.RequestService("204", room.SpeedHigh, time.Now()))

	snap := core.Snapshot()
	assert.Len(t, snap.Serving, 3)
	assert.Len(t, snap.Waiting, 1)

	var servingIDs []string
	for _, s := range snap.Serving {
		servingIDs = append(servingIDs, s.RoomID)
	}
	assert.Contains(t, servingIDs, "204")
	assert.Equal(t, "201", snap.Waiting[0].RoomID)
}

func TestStopServiceFillsCapacity(t *testing.T) {
	core := newTestCoreWithRegistry(t, "301", "302", "303", "304")

	for _, id := range []string{"301", "302", "303"} {
		require.NoError(t, core.RequestService(id, room.SpeedMid, time.Now()))
	}
	require.NoError(t, core.RequestService("304", room.SpeedMid, time.Now()))

	require.NoError(t, core.StopService("301", time.Now()))

	snap := core.Snapshot()
	assert.Len(t, snap.Serving, 3)
	assert.Len(t, snap.Waiting, 0)

	var servingIDs []string
	for _, s := range snap.Serving {
		servingIDs = append(servingIDs, s.RoomID)
	}
	assert.Contains(t, servingIDs, "304")
	assert.NotContains(t, servingIDs, "301")
}

func TestInvalidSpeedRejected(t *testing.T) {
	core := newTestCoreWithRegistry(t, "601")
	err := core.RequestService("601", room.Speed("invalid"), time.Now())
	assert.Error(t, err)
}

func TestDuplicateRequestUpdatesInPlace(t *testing.T) {
	core := newTestCoreWithRegistry(t, "602")
	require.NoError(t, core.RequestService("602", room.SpeedLow, time.Now()))
	require.NoError(t, core.RequestService("602", room.SpeedHigh, time.Now()))

	snap := core.Snapshot()
	require.Len(t, snap.Serving, 1)
	assert.Equal(t, room.SpeedHigh, snap.Serving[0].Speed)
}

// TestTemperatureReachedReleasesAndFillsCapacity exercises spec §4.2
// "TEMPERATURE_REACHED: release(room_id)": reaching target frees the
// serving slot and hands it to the next waiting room.
func TestTemperatureReachedReleasesAndFillsCapacity(t *testing.T) {
	core := newTestCoreWithRegistry(t, "701", "702", "703", "704")

	for _, id := range []string{"701", "702", "703"} {
		require.NoError(t, core.RequestService(id, room.SpeedMid, time.Now()))
	}
	require.NoError(t, core.RequestService("704", room.SpeedMid, time.Now()))

	snap := core.Snapshot()
	require.Len(t, snap.Serving, 3)
	require.Len(t, snap.Waiting, 1)

	core.onTemperatureReached(events.Event{
		EventType: events.TemperatureReached,
		RoomID:    "701",
		Payload:   timer.TemperatureReachedPayload{RoomID: "701"},
	})

	snap = core.Snapshot()
	assert.Len(t, snap.Serving, 3)
	assert.Len(t, snap.Waiting, 0)

	var servingIDs []string
	for _, s := range snap.Serving {
		servingIDs = append(servingIDs, s.RoomID)
	}
	assert.NotContains(t, servingIDs, "701")
	assert.Contains(t, servingIDs, "704")
}

// TestPreemptionBoostsSameSpeedWaiters covers spec §4.2 step 4: a
// preempting admission boosts the priority token of every already-waiting
// room requesting the same speed as the new request, so it is promoted
// ahead of a same-priority-tier waiter that was never boosted.
func TestPreemptionBoostsSameSpeedWaiters(t *testing.T) {
	core := newTestCoreWithRegistry(t, "801", "802", "803", "804", "805")

	for _, id := range []string{"801", "802", "803"} {
		require.NoError(t, core.RequestService(id, room.SpeedHigh, time.Now()))
	}
	// Queue is full of HIGH servers with no lower-priority victim, so 804
	// waits at HIGH with no boost yet.
	require.NoError(t, core.RequestService("804", room.SpeedHigh, time.Now().Add(time.Millisecond)))

	// 803 drops to LOW in place (no preemption: it is already serving).
	require.NoError(t, core.RequestService("803", room.SpeedLow, time.Now().Add(2*time.Millisecond)))

	// 805 requests HIGH: 803 (LOW) is now a victim. Preempting it must
	// boost 804's token, since 804 is waiting at the same speed as 805.
	require.NoError(t, core.RequestService("805", room.SpeedHigh, time.Now().Add(3*time.Millisecond)))

	snap := core.Snapshot()
	require.Len(t, snap.Waiting, 2)

	var boosted *WaitObject
	for i := range snap.Waiting {
		if snap.Waiting[i].RoomID == "804" {
			boosted = &snap.Waiting[i]
		}
	}
	require.NotNil(t, boosted)
	assert.Equal(t, 1, boosted.PriorityToken)

	// Freeing one serving slot must promote 804 ahead of 803 (LOW, never
	// boosted, lower priority tier besides) via the (priority,
	// priority_token, elapsed_wait) fill-capacity key.
	require.NoError(t, core.StopService("805", time.Now().Add(4*time.Millisecond)))

	snap = core.Snapshot()
	var servingIDs []string
	for _, s := range snap.Serving {
		servingIDs = append(servingIDs, s.RoomID)
	}
	assert.Contains(t, servingIDs, "804")
	assert.NotContains(t, servingIDs, "803")
}

// TestSpeedChangeOpensDetailTimerAtNewSpeed covers the bug where an
// in-place speed change reused the old DETAIL timer, so the tick loop
// kept billing the new segment at the prior speed's rate (breaking spec
// scenario 5 and invariant Q4). The DETAIL timer bound to the
// ServiceObject after a speed change must report the new speed, not the
// speed it was created with.
func TestSpeedChangeOpensDetailTimerAtNewSpeed(t *testing.T) {
	core, registry, store := newTestCoreFull(t, "901")

	now := time.Now()
	require.NoError(t, core.RequestService("901", room.SpeedMid, now))

	snap := core.Snapshot()
	require.Len(t, snap.Serving, 1)
	oldDetailID := snap.Serving[0].DetailTimerID

	require.NoError(t, core.RequestService("901", room.SpeedHigh, now.Add(time.Second)))

	snap = core.Snapshot()
	require.Len(t, snap.Serving, 1)
	newDetailID := snap.Serving[0].DetailTimerID
	assert.NotEqual(t, oldDetailID, newDetailID, "speed change must open a fresh DETAIL timer")

	_, ok := registry.GetState(oldDetailID)
	assert.False(t, ok, "old DETAIL timer must be cancelled")

	st, ok := registry.GetState(newDetailID)
	require.True(t, ok)
	assert.Equal(t, room.SpeedHigh, st.Speed, "new DETAIL timer must bill at the new speed")

	records, err := store.ListDetails("901")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.False(t, records[0].Open)
	assert.Equal(t, room.SpeedMid, records[0].Speed)
	assert.True(t, records[1].Open)
	assert.Equal(t, room.SpeedHigh, records[1].Speed)
}

// TestTimeSliceRotationVictimWaitTimerEnforced covers spec §4.4 time-slice
// rotation step 2 and testable property Q6: immediately after handling
// TIME_SLICE_EXPIRED, the rotated-out victim's fresh WAIT timer must
// already have time_slice_enforced=true and remaining=Q, not just after
// the next WAIT tick re-enforces it.
func TestTimeSliceRotationVictimWaitTimerEnforced(t *testing.T) {
	core, registry, _ := newTestCoreFull(t, "911", "912", "913", "914")
	cfg := config.Default()

	base := time.Now()
	for i, id := range []string{"911", "912", "913"} {
		require.NoError(t, core.RequestService(id, room.SpeedMid, base.Add(time.Duration(i)*time.Millisecond)))
	}
	require.NoError(t, core.RequestService("914", room.SpeedMid, base.Add(3*time.Millisecond)))

	snap := core.Snapshot()
	require.Len(t, snap.Waiting, 1)
	waitTimerID := snap.Waiting[0].WaitTimerID

	core.onTimeSliceExpired(events.Event{
		EventType: events.TimeSliceExpired,
		RoomID:    "914",
		Payload: timer.TimeSliceExpiredPayload{
			RoomID:  "914",
			Speed:   room.SpeedMid,
			TimerID: waitTimerID,
		},
	})

	snap = core.Snapshot()
	require.Len(t, snap.Serving, 3)
	require.Len(t, snap.Waiting, 1)

	var servingIDs []string
	for _, s := range snap.Serving {
		servingIDs = append(servingIDs, s.RoomID)
	}
	assert.Contains(t, servingIDs, "914")
	assert.Equal(t, "911", snap.Waiting[0].RoomID)

	st, ok := registry.GetState(snap.Waiting[0].WaitTimerID)
	require.True(t, ok)
	assert.True(t, st.TimeSliceEnforced)
	assert.Equal(t, cfg.Scheduling.TimeSliceSeconds, st.RemainingSeconds)
}
