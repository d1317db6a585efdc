// Package memrepo is the in-memory Repository implementation: one of
// the "at least two implementations" spec §6 requires,
// suitable for tests and the scripted demo. Grounded in the teacher's
// map-backed QueueManager pattern (internal/scheduler/queue.go),
// generalized to the full repository contract.
package memrepo

import (
	"sync"
	"time"

	"hotelcore/internal/billing"
	"hotelcore/internal/corerr"
	"hotelcore/internal/repository"
	"hotelcore/internal/room"
	"hotelcore/internal/timer"
)

type Store struct {
	mu sync.RWMutex

	rooms     map[string]*room.Room
	details   map[string][]billing.DetailRecord
	bills     map[string][]billing.Bill
	accom     map[string]repository.AccommodationOrder
	meals     map[string][]repository.MealOrder
	timerSt   map[string]timer.State
}

func New() *Store {
	return &Store{
		rooms:   make(map[string]*room.Room),
		details: make(map[string][]billing.DetailRecord),
		bills:   make(map[string][]billing.Bill),
		accom:   make(map[string]repository.AccommodationOrder),
		meals:   make(map[string][]repository.MealOrder),
		timerSt: make(map[string]timer.State),
	}
}

var _ repository.Repository = (*Store)(nil)

func (s *Store) GetRoom(roomID string) (*room.Room, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rooms[roomID]
	return r, ok, nil
}

func (s *Store) SaveRoom(r *room.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[r.RoomID] = r
	return nil
}

func (s *Store) ListRooms() ([]*room.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*room.Room, 0, len(s.rooms))
	for _, r := range s.rooms {
		out = append(out, r)
	}
	return out, nil
}

func (s *Store) AppendDetail(rec billing.DetailRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.details[rec.RoomID] = append(s.details[rec.RoomID], rec)
	return nil
}

func (s *Store) UpdateDetail(rec billing.DetailRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.details[rec.RoomID]
	for i, r := range list {
		if r.ID == rec.ID {
			list[i] = rec
			return nil
		}
	}
	return corerr.NotFound("memrepo.UpdateDetail", "detail record "+rec.ID+" not found")
}

func (s *Store) ListDetails(roomID string) ([]billing.DetailRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]billing.DetailRecord, len(s.details[roomID]))
	copy(out, s.details[roomID])
	return out, nil
}

func (s *Store) ListOpenDetail(roomID string) (billing.DetailRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.details[roomID] {
		if r.Open {
			return r, true, nil
		}
	}
	return billing.DetailRecord{}, false, nil
}

func (s *Store) ClearDetails(roomID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.details, roomID)
	return nil
}

func (s *Store) SaveBill(b billing.Bill) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bills[b.RoomID] = append(s.bills[b.RoomID], b)
	return nil
}

func (s *Store) GetLatestBill(roomID string) (billing.Bill, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.bills[roomID]
	if len(list) == 0 {
		return billing.Bill{}, false, nil
	}
	return list[len(list)-1], true, nil
}

func (s *Store) ListBills(roomID string) ([]billing.Bill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]billing.Bill, len(s.bills[roomID]))
	copy(out, s.bills[roomID])
	return out, nil
}

func (s *Store) OpenOrder(o repository.AccommodationOrder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o.Open = true
	s.accom[o.RoomID] = o
	return nil
}

func (s *Store) GetOpenOrder(roomID string) (repository.AccommodationOrder, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.accom[roomID]
	if !ok || !o.Open {
		return repository.AccommodationOrder{}, false, nil
	}
	return o, true, nil
}

func (s *Store) CloseOrder(roomID string, checkOut time.Time) (repository.AccommodationOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.accom[roomID]
	if !ok {
		return repository.AccommodationOrder{}, corerr.NotFound("memrepo.CloseOrder", "no open order for "+roomID)
	}
	o.Open = false
	o.CheckOut = checkOut
	s.accom[roomID] = o
	return o, nil
}

func (s *Store) AddMealOrder(o repository.MealOrder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.meals[o.RoomID] = append(s.meals[o.RoomID], o)
	return nil
}

func (s *Store) ListMealOrders(roomID string) ([]repository.MealOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]repository.MealOrder, len(s.meals[roomID]))
	copy(out, s.meals[roomID])
	return out, nil
}

func (s *Store) ClearMealOrders(roomID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.meals, roomID)
	return nil
}

func (s *Store) SaveTimerState(st timer.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timerSt[st.ID] = st
	return nil
}

func (s *Store) ListTimerStates() ([]timer.State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]timer.State, 0, len(s.timerSt))
	for _, st := range s.timerSt {
		out = append(out, st)
	}
	return out, nil
}

func (s *Store) DeleteTimerState(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.timerSt, id)
	return nil
}
