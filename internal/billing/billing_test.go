package billing_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"hotelcore/internal/billing"
	"hotelcore/internal/config"
	"hotelcore/internal/room"
)

type fakeStore struct {
	mu      sync.Mutex
	records map[string][]billing.DetailRecord
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: make(map[string][]billing.DetailRecord)}
}

func (s *fakeStore) AppendDetail(rec billing.DetailRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.RoomID] = append(s.records[rec.RoomID], rec)
	return nil
}

func (s *fakeStore) UpdateDetail(rec billing.DetailRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.records[rec.RoomID]
	for i, r := range list {
		if r.ID == rec.ID {
			list[i] = rec
			return nil
		}
	}
	return nil
}

func (s *fakeStore) ListDetails(roomID string) ([]billing.DetailRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]billing.DetailRecord, len(s.records[roomID]))
	copy(out, s.records[roomID])
	return out, nil
}

func (s *fakeStore) ListOpenDetail(roomID string) (billing.DetailRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.records[roomID] {
		if r.Open {
			return r, true, nil
		}
	}
	return billing.DetailRecord{}, false, nil
}

func (s *fakeStore) ClearDetails(roomID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, roomID)
	return nil
}

func testCfg() (config.Billing, config.Accommodation) {
	return config.Billing{
		PricePerUnit:       1.0,
		RateHighUnitPerMin: 60.0,
		RateMidUnitPerMin:  30.0,
		RateLowUnitPerMin:  15.0,
	}, config.Accommodation{RatePerNight: 100.0}
}

func TestStartNewDetailRecordClosesPrior(t *testing.T) {
	billingCfg, accCfg := testCfg()
	store := newFakeStore()
	eng := billing.NewEngine(store, billingCfg, accCfg)

	now := time.Now()
	_, err := eng.StartNewDetailRecord("101", room.SpeedMid, 26.0, now, "det-1", 0)
	require.NoError(t, err)

	later := now.Add(time.Minute)
	_, err = eng.StartNewDetailRecord("101", room.SpeedHigh, 25.0, later, "det-2", 60)
	require.NoError(t, err)

	records, err := store.ListDetails("101")
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.False(t, records[0].Open)
	require.Equal(t, later, records[0].EndTime)
	require.Equal(t, int64(0), records[0].LogicStartSeconds)
	require.Equal(t, int64(60), records[0].LogicEndSeconds)
	require.InDelta(t, 30.0, records[0].RatePerMin, 1e-9)
	require.True(t, records[1].Open)
	require.Equal(t, int64(60), records[1].LogicStartSeconds)
	require.InDelta(t, 60.0, records[1].RatePerMin, 1e-9)
}

func TestTickFeeMirrorsIntoOpenRecord(t *testing.T) {
	billingCfg, accCfg := testCfg()
	store := newFakeStore()
	eng := billing.NewEngine(store, billingCfg, accCfg)

	now := time.Now()
	_, err := eng.StartNewDetailRecord("101", room.SpeedMid, 26.0, now, "det-1", 0)
	require.NoError(t, err)

	inc := eng.TickFee("101", room.SpeedMid)
	require.InDelta(t, 0.5, inc, 1e-9)

	open, ok := eng.GetOpenDetail("101")
	require.True(t, ok)
	require.InDelta(t, 0.5, open.Fee, 1e-9)
}

func TestCloseCurrentDetailRecordIsIdempotent(t *testing.T) {
	billingCfg, accCfg := testCfg()
	store := newFakeStore()
	eng := billing.NewEngine(store, billingCfg, accCfg)

	now := time.Now()
	require.NoError(t, eng.CloseCurrentDetailRecord("101", now, 0))

	_, err := eng.StartNewDetailRecord("101", room.SpeedMid, 26.0, now, "det-1", 0)
	require.NoError(t, err)
	require.NoError(t, eng.CloseCurrentDetailRecord("101", now.Add(time.Second), 1))
	require.NoError(t, eng.CloseCurrentDetailRecord("101", now.Add(2*time.Second), 2))

	_, ok := eng.GetOpenDetail("101")
	require.False(t, ok)
}

func TestAggregateBillSumsServiceAccommodationAndMeals(t *testing.T) {
	billingCfg, accCfg := testCfg()
	store := newFakeStore()
	eng := billing.NewEngine(store, billingCfg, accCfg)

	now := time.Now()
	_, err := eng.StartNewDetailRecord("101", room.SpeedHigh, 26.0, now, "det-1", 0)
	require.NoError(t, err)
	eng.TickFee("101", room.SpeedHigh)
	eng.TickFee("101", room.SpeedHigh)
	require.NoError(t, eng.CloseCurrentDetailRecord("101", now.Add(2*time.Second), 2))

	bill, err := eng.AggregateBill("101", 2, 15.0, now.Add(2*time.Second))
	require.NoError(t, err)
	require.InDelta(t, 2.0, bill.ServiceFeeTotal, 1e-9)
	require.InDelta(t, 200.0, bill.AccommodationFee, 1e-9)
	require.InDelta(t, 15.0, bill.MealFeeTotal, 1e-9)
	require.InDelta(t, 217.0, bill.GrandTotal, 1e-9)
}

func TestResetStayClearsDetailsAndOpenRecord(t *testing.T) {
	billingCfg, accCfg := testCfg()
	store := newFakeStore()
	eng := billing.NewEngine(store, billingCfg, accCfg)

	now := time.Now()
	_, err := eng.StartNewDetailRecord("101", room.SpeedMid, 26.0, now, "det-1", 0)
	require.NoError(t, err)

	require.NoError(t, eng.ResetStay("101"))

	_, ok := eng.GetOpenDetail("101")
	require.False(t, ok)
	records, err := store.ListDetails("101")
	require.NoError(t, err)
	require.Empty(t, records)
}
