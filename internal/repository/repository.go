// Package repository defines the persistence contract of spec §6: rooms,
// detail records, bills, accommodation orders and meal orders, plus
// timer-state scaffolding for restart recovery. Two implementations are
// provided: memrepo (in-memory, for tests and the demo) and gormrepo
// (GORM + SQLite, grounded in the teacher's internal/db package).
package repository

import (
	"time"

	"hotelcore/internal/billing"
	"hotelcore/internal/room"
	"hotelcore/internal/timer"
)

// RoomRepository persists room state.
type RoomRepository interface {
	GetRoom(roomID string) (*room.Room, bool, error)
	SaveRoom(r *room.Room) error
	ListRooms() ([]*room.Room, error)
}

// DetailRepository persists billing detail records; satisfies
// billing.DetailStore directly.
type DetailRepository interface {
	AppendDetail(rec billing.DetailRecord) error
	UpdateDetail(rec billing.DetailRecord) error
	ListDetails(roomID string) ([]billing.DetailRecord, error)
	ListOpenDetail(roomID string) (billing.DetailRecord, bool, error)
	ClearDetails(roomID string) error
}

// BillRepository persists generated bills (spec §4.3), one per checkout.
type BillRepository interface {
	SaveBill(b billing.Bill) error
	GetLatestBill(roomID string) (billing.Bill, bool, error)
	ListBills(roomID string) ([]billing.Bill, error)
}

// AccommodationOrder is the room-rate charge accrued over a stay,
// independent of AC service usage.
type AccommodationOrder struct {
	RoomID       string
	CheckIn      time.Time
	CheckOut     time.Time
	RatePerNight float64
	TimerID      string
	Open         bool
}

// AccommodationRepository persists accommodation orders.
type AccommodationRepository interface {
	OpenOrder(o AccommodationOrder) error
	GetOpenOrder(roomID string) (AccommodationOrder, bool, error)
	CloseOrder(roomID string, checkOut time.Time) (AccommodationOrder, error)
}

// MealOrder is a supplemental room-service charge (spec §6 "meal
// orders"); it folds into the bill alongside AC service fees.
type MealOrder struct {
	ID        string
	RoomID    string
	Item      string
	Price     float64
	OrderedAt time.Time
}

// MealOrderRepository persists meal orders.
type MealOrderRepository interface {
	AddMealOrder(o MealOrder) error
	ListMealOrders(roomID string) ([]MealOrder, error)
	ClearMealOrders(roomID string) error
}

// TimerStateRepository persists the scaffolding needed to reconstruct
// live timers after a process restart (spec §6 "Persisted state"): the
// live handle itself is never serialized, only these fields.
type TimerStateRepository interface {
	SaveTimerState(s timer.State) error
	ListTimerStates() ([]timer.State, error)
	DeleteTimerState(id string) error
}

// Repository aggregates every persistence concern the core depends on.
type Repository interface {
	RoomRepository
	DetailRepository
	BillRepository
	AccommodationRepository
	MealOrderRepository
	TimerStateRepository
}
