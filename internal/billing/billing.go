// Package billing implements the detail-record billing engine of spec
// §4.2 and §4.3: opening and closing detail records as service segments
// start and stop, per-tick fee accrual mirrored between a room's DETAIL
// and SERVICE timers, and bill aggregation scoped to the current stay.
// Grounded in the teacher's internal/service.BillingService
// (CreateDetail/AddDetail/GenerateBill) and internal/db.Detail model,
// generalized from the teacher's fixed low/medium/high rate table into
// the configurable per-unit rates of config.Billing.
package billing

import (
	"sort"
	"sync"
	"time"

	"hotelcore/internal/config"
	"hotelcore/internal/corerr"
	"hotelcore/internal/room"
	"hotelcore/internal/timer"
)

// DetailRecord is one open or closed billing segment (spec §4.2, §3
// ACDetailRecord). LogicStartSeconds/LogicEndSeconds capture the room's
// accommodation timer elapsed_seconds at segment open/close, when an
// accommodation timer exists for the room (spec §4.2
// start_new_detail_record/close_current_detail_record); both are zero for
// a stay with no accommodation timer bound.
type DetailRecord struct {
	ID                string
	RoomID            string
	Speed             room.Speed
	RatePerMin        float64
	StartTemp         float64
	StartTime         time.Time
	EndTime           time.Time
	LogicStartSeconds int64
	LogicEndSeconds   int64
	Open              bool
	Fee               float64
	TimerID           string
}

// Bill aggregates every detail record of the current stay plus the
// accommodation charge (spec §4.3).
type Bill struct {
	RoomID           string
	Records          []DetailRecord
	ServiceFeeTotal  float64
	AccommodationFee float64
	MealFeeTotal     float64
	GrandTotal       float64
	GeneratedAt      time.Time
}

// DetailStore is the repository slice this package depends on.
type DetailStore interface {
	AppendDetail(rec DetailRecord) error
	UpdateDetail(rec DetailRecord) error
	ListDetails(roomID string) ([]DetailRecord, error)
	ListOpenDetail(roomID string) (DetailRecord, bool, error)
	ClearDetails(roomID string) error
}

// Engine is the billing sub-engine. It is constructed before the
// scheduler and registered with the timer.Registry via BindFeeCallback
// during wiring, breaking the Registry<->Billing construction cycle
// without a mutable setter used after startup (see DESIGN.md).
type Engine struct {
	mu    sync.Mutex
	store DetailStore
	cfg   config.Billing
	acc   config.Accommodation

	open map[string]*DetailRecord
	seq  uint64
}

func NewEngine(store DetailStore, cfg config.Billing, acc config.Accommodation) *Engine {
	return &Engine{store: store, cfg: cfg, acc: acc, open: make(map[string]*DetailRecord)}
}

func (e *Engine) newID(roomID string) string {
	e.seq++
	return roomID + "-detail-" + time.Now().UTC().Format("150405") + "-" + itoa(e.seq)
}

func itoa(n uint64) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

// RatePerMin returns the configured rate_per_min for a speed, prior to the
// price_per_unit scaling RatePerSecond applies (spec §3 ACDetailRecord.rate_per_min).
func (e *Engine) RatePerMin(speed room.Speed) float64 {
	switch speed {
	case room.SpeedHigh:
		return e.cfg.RateHighUnitPerMin
	case room.SpeedMid:
		return e.cfg.RateMidUnitPerMin
	case room.SpeedLow:
		return e.cfg.RateLowUnitPerMin
	default:
		return 0
	}
}

// RatePerSecond returns the configured per-second billing rate for a speed.
func (e *Engine) RatePerSecond(speed room.Speed) float64 {
	return e.RatePerMin(speed) * e.cfg.PricePerUnit / 60.0
}

// TickFee is the timer.FeeCallback bound into the Registry: it computes
// this tick's fee increment and, as a side effect, mirrors it into the
// open in-memory DetailRecord so GetOpenDetail reflects current spend
// without waiting for CloseCurrentDetailRecord.
func (e *Engine) TickFee(roomID string, speed room.Speed) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	inc := e.RatePerSecond(speed)
	if rec, ok := e.open[roomID]; ok {
		rec.Fee += inc
	}
	return inc
}

// StartNewDetailRecord opens a new billing segment for a room, closing
// any still-open segment first (spec §4.2 "Starting a new detail record
// implicitly closes the previous one"). logicSeconds is the room's
// accommodation timer elapsed_seconds at this instant (0 if the room has
// no accommodation timer); it becomes both the closed predecessor's
// LogicEndSeconds and the new record's LogicStartSeconds.
func (e *Engine) StartNewDetailRecord(roomID string, speed room.Speed, startTemp float64, now time.Time, detailTimerID string, logicSeconds int64) (DetailRecord, error) {
	e.mu.Lock()
	if prev, ok := e.open[roomID]; ok {
		prev.Open = false
		prev.EndTime = now
		prev.LogicEndSeconds = logicSeconds
		if err := e.store.UpdateDetail(*prev); err != nil {
			e.mu.Unlock()
			return DetailRecord{}, corerr.Internal("billing.StartNewDetailRecord", err)
		}
		delete(e.open, roomID)
	}

	rec := DetailRecord{
		ID: e.newID(roomID), RoomID: roomID, Speed: speed, RatePerMin: e.RatePerMin(speed),
		StartTemp: startTemp, StartTime: now, LogicStartSeconds: logicSeconds, Open: true, TimerID: detailTimerID,
	}
	e.open[roomID] = &rec
	e.mu.Unlock()

	if err := e.store.AppendDetail(rec); err != nil {
		return DetailRecord{}, corerr.Internal("billing.StartNewDetailRecord", err)
	}
	return rec, nil
}

// CloseCurrentDetailRecord closes the open segment, if any. Idempotent:
// closing an already-closed or absent segment is a no-op (spec §4.2).
// logicSeconds is the room's accommodation timer elapsed_seconds at this
// instant (0 if the room has no accommodation timer).
func (e *Engine) CloseCurrentDetailRecord(roomID string, now time.Time, logicSeconds int64) error {
	e.mu.Lock()
	rec, ok := e.open[roomID]
	if !ok {
		e.mu.Unlock()
		return nil
	}
	rec.Open = false
	rec.EndTime = now
	rec.LogicEndSeconds = logicSeconds
	snapshot := *rec
	delete(e.open, roomID)
	e.mu.Unlock()

	if err := e.store.UpdateDetail(snapshot); err != nil {
		return corerr.Internal("billing.CloseCurrentDetailRecord", err)
	}
	return nil
}

// GetOpenDetail returns the in-flight detail record for a room, if any.
func (e *Engine) GetOpenDetail(roomID string) (DetailRecord, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	rec, ok := e.open[roomID]
	if !ok {
		return DetailRecord{}, false
	}
	return *rec, true
}

// AggregateBill sums every detail record of the current stay plus the
// accommodation charge (spec §4.3). Scoping to "current stay" is the
// caller's responsibility: ClearDetails is invoked at check-in so stale
// records from a prior stay never leak into a new bill.
func (e *Engine) AggregateBill(roomID string, nights float64, mealFeeTotal float64, now time.Time) (Bill, error) {
	records, err := e.store.ListDetails(roomID)
	if err != nil {
		return Bill{}, corerr.Internal("billing.AggregateBill", err)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].StartTime.Before(records[j].StartTime) })

	var serviceTotal float64
	for _, r := range records {
		serviceTotal += r.Fee
	}
	accommodation := nights * e.acc.RatePerNight

	return Bill{
		RoomID:           roomID,
		Records:          records,
		ServiceFeeTotal:  serviceTotal,
		AccommodationFee: accommodation,
		MealFeeTotal:     mealFeeTotal,
		GrandTotal:       serviceTotal + accommodation + mealFeeTotal,
		GeneratedAt:      now,
	}, nil
}

// ResetStay clears all detail records for a room, called at check-in so a
// new stay starts with an empty bill (spec §4.3 "scoped to the current
// check-in stay").
func (e *Engine) ResetStay(roomID string) error {
	e.mu.Lock()
	delete(e.open, roomID)
	e.mu.Unlock()
	if err := e.store.ClearDetails(roomID); err != nil {
		return corerr.Internal("billing.ResetStay", err)
	}
	return nil
}

var _ timer.FeeCallback = (*Engine)(nil).TickFee
