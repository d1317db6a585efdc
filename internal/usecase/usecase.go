// Package usecase composes room, queue, timer, billing, scheduler and
// repository into the operations an external caller actually invokes:
// check-in/checkout, power, target-temperature and fan-speed requests,
// and meal-order attachment to the running bill. Grounded in the
// teacher's internal/ac.ACService (PowerOn/PowerOff/SetTemperature/
// SetFanSpeed/SetMode, main-unit gating, mode-range validation) and
// internal/app.App wiring (explicit construction order, no post-hoc
// setters).
package usecase

import (
	"math"
	"sync"
	"time"

	"hotelcore/internal/billing"
	"hotelcore/internal/config"
	"hotelcore/internal/corerr"
	"hotelcore/internal/repository"
	"hotelcore/internal/room"
	"hotelcore/internal/scheduler"
	"hotelcore/internal/timer"
)

// Service is the use-case layer. Constructed last in the wiring order:
// Registry -> Billing -> Scheduler -> Service (spec §9 design notes).
type Service struct {
	repo     repository.Repository
	sched    *scheduler.Core
	registry *timer.Registry
	billing  *billing.Engine
	cfg      config.Config

	facilityMu sync.RWMutex
	facilityOn bool
}

func NewService(repo repository.Repository, sched *scheduler.Core, registry *timer.Registry, billingEngine *billing.Engine, cfg config.Config) *Service {
	return &Service{repo: repo, sched: sched, registry: registry, billing: billingEngine, cfg: cfg, facilityOn: true}
}

// PowerOnFacility / PowerOffFacility gate the central chiller unit,
// independent of any individual room (spec's supplemented feature
// grounded in the teacher's PowerOnMainUnit/PowerOffMainUnit). While
// off, no room-level speed request is admitted.
func (s *Service) PowerOnFacility() {
	s.facilityMu.Lock()
	defer s.facilityMu.Unlock()
	s.facilityOn = true
}

// PowerOffFacility shuts down the central unit and, mirroring the
// teacher's PowerOffMainUnit loop, powers off every room still drawing
// service so none is left serving against a facility that is now off.
func (s *Service) PowerOffFacility(now time.Time) error {
	s.facilityMu.Lock()
	s.facilityOn = false
	s.facilityMu.Unlock()

	rooms, err := s.repo.ListRooms()
	if err != nil {
		return corerr.Internal("usecase.PowerOffFacility", err)
	}
	for _, r := range rooms {
		if !r.PoweredOn {
			continue
		}
		if err := s.PowerOff(r.RoomID, now); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) FacilityOn() bool {
	s.facilityMu.RLock()
	defer s.facilityMu.RUnlock()
	return s.facilityOn
}

// accommodationLogicSeconds returns the room's accommodation timer
// elapsed_seconds, or 0 if none is bound.
func (s *Service) accommodationLogicSeconds(roomID string) int64 {
	st, ok := s.registry.GetByRoom(roomID, timer.KindAccommodation)
	if !ok {
		return 0
	}
	return st.ElapsedSeconds
}

func (s *Service) getOrCreateRoom(roomID string, ratePerNight float64) (*room.Room, error) {
	r, ok, err := s.repo.GetRoom(roomID)
	if err != nil {
		return nil, corerr.Internal("usecase.getOrCreateRoom", err)
	}
	if ok {
		return r, nil
	}
	r = room.New(roomID, s.cfg.Temperature, ratePerNight)
	if err := s.repo.SaveRoom(r); err != nil {
		return nil, corerr.Internal("usecase.getOrCreateRoom", err)
	}
	return r, nil
}

// CheckIn starts a stay: the room transitions VACANT->OCCUPIED, any
// stale billing from a prior stay is cleared, and an ACCOMMODATION
// timer starts counting the stay's logical seconds. The timer accrues no
// fee; the nightly charge is computed at checkout from the check-in time.
func (s *Service) CheckIn(roomID string, ratePerNight float64, now time.Time) error {
	r, err := s.getOrCreateRoom(roomID, ratePerNight)
	if err != nil {
		return err
	}
	if err := r.CheckIn(); err != nil {
		return err
	}
	r.RatePerNight = ratePerNight
	if err := s.repo.SaveRoom(r); err != nil {
		return corerr.Internal("usecase.CheckIn", err)
	}
	if err := s.billing.ResetStay(roomID); err != nil {
		return err
	}

	timerID := s.registry.CreateAccommodationTimer(roomID)
	if err := s.repo.OpenOrder(repository.AccommodationOrder{
		RoomID: roomID, CheckIn: now, RatePerNight: ratePerNight, TimerID: timerID, Open: true,
	}); err != nil {
		return corerr.Internal("usecase.CheckIn", err)
	}
	return nil
}

// CheckOut ends a stay: stops any active service, closes the
// accommodation order, aggregates detail records, meal orders and the
// nightly rate into a final bill, and resets the room to VACANT.
func (s *Service) CheckOut(roomID string, now time.Time) (billing.Bill, error) {
	r, ok, err := s.repo.GetRoom(roomID)
	if err != nil {
		return billing.Bill{}, corerr.Internal("usecase.CheckOut", err)
	}
	if !ok {
		return billing.Bill{}, corerr.NotFound("usecase.CheckOut", "room "+roomID+" not found")
	}
	if r.Status != room.StatusOccupied {
		return billing.Bill{}, corerr.PreconditionFailed("usecase.CheckOut", "room "+roomID+" has no active stay")
	}

	if err := s.sched.StopService(roomID, now); err != nil {
		return billing.Bill{}, err
	}
	if err := s.billing.CloseCurrentDetailRecord(roomID, now, s.accommodationLogicSeconds(roomID)); err != nil {
		return billing.Bill{}, err
	}

	order, ok, err := s.repo.GetOpenOrder(roomID)
	if err != nil {
		return billing.Bill{}, corerr.Internal("usecase.CheckOut", err)
	}
	nights := 1.0
	if ok {
		closed, err := s.repo.CloseOrder(roomID, now)
		if err != nil {
			return billing.Bill{}, err
		}
		s.registry.CancelTimer(order.TimerID)
		nights = math.Max(1, math.Ceil(now.Sub(closed.CheckIn).Hours()/24))
	}

	meals, err := s.repo.ListMealOrders(roomID)
	if err != nil {
		return billing.Bill{}, corerr.Internal("usecase.CheckOut", err)
	}
	var mealTotal float64
	for _, m := range meals {
		mealTotal += m.Price
	}

	bill, err := s.billing.AggregateBill(roomID, nights, mealTotal, now)
	if err != nil {
		return billing.Bill{}, err
	}
	if err := s.repo.SaveBill(bill); err != nil {
		return billing.Bill{}, corerr.Internal("usecase.CheckOut", err)
	}
	if err := s.repo.ClearMealOrders(roomID); err != nil {
		return billing.Bill{}, corerr.Internal("usecase.CheckOut", err)
	}

	if err := r.CheckOut(); err != nil {
		return billing.Bill{}, err
	}
	if err := s.repo.SaveRoom(r); err != nil {
		return billing.Bill{}, corerr.Internal("usecase.CheckOut", err)
	}
	return bill, nil
}

// PowerOn turns a room's unit on; the room remains idle until a speed
// request is made.
func (s *Service) PowerOn(roomID string) error {
	r, ok, err := s.repo.GetRoom(roomID)
	if err != nil {
		return corerr.Internal("usecase.PowerOn", err)
	}
	if !ok {
		return corerr.NotFound("usecase.PowerOn", "room "+roomID+" not found")
	}
	r.PoweredOn = true
	r.ManualPoweredOff = false
	return s.repo.SaveRoom(r)
}

// PowerOff turns a room's unit off, stopping any active service and
// suppressing auto-restart until powered back on.
func (s *Service) PowerOff(roomID string, now time.Time) error {
	r, ok, err := s.repo.GetRoom(roomID)
	if err != nil {
		return corerr.Internal("usecase.PowerOff", err)
	}
	if !ok {
		return corerr.NotFound("usecase.PowerOff", "room "+roomID+" not found")
	}
	if err := s.sched.StopService(roomID, now); err != nil {
		return err
	}
	if err := s.billing.CloseCurrentDetailRecord(roomID, now, s.accommodationLogicSeconds(roomID)); err != nil {
		return err
	}
	r, ok, err = s.repo.GetRoom(roomID)
	if err != nil || !ok {
		return corerr.Internal("usecase.PowerOff", err)
	}
	r.PoweredOn = false
	r.ManualPoweredOff = true
	return s.repo.SaveRoom(r)
}

// SetTargetTemp requests a new target temperature, subject to the
// room's mode range and the throttle rule (spec §4.1/§7).
func (s *Service) SetTargetTemp(roomID string, temp float64, now time.Time) error {
	r, ok, err := s.repo.GetRoom(roomID)
	if err != nil {
		return corerr.Internal("usecase.SetTargetTemp", err)
	}
	if !ok {
		return corerr.NotFound("usecase.SetTargetTemp", "room "+roomID+" not found")
	}
	if err := r.ValidateTargetTemp(temp, s.cfg.Temperature); err != nil {
		return err
	}
	r.RequestTargetTemp(temp, now, s.cfg.Throttle.ChangeTempMS)
	return s.repo.SaveRoom(r)
}

// SetMode switches cool/heat mode, validating the current target
// temperature still falls inside the new mode's configured range.
func (s *Service) SetMode(roomID string, mode room.Mode) error {
	if mode != room.ModeCool && mode != room.ModeHeat {
		return corerr.InvalidArgument("usecase.SetMode", "mode must be cool or heat")
	}
	r, ok, err := s.repo.GetRoom(roomID)
	if err != nil {
		return corerr.Internal("usecase.SetMode", err)
	}
	if !ok {
		return corerr.NotFound("usecase.SetMode", "room "+roomID+" not found")
	}
	prevMode := r.Mode
	r.Mode = mode
	if err := r.ValidateTargetTemp(r.TargetTemp, s.cfg.Temperature); err != nil {
		r.Mode = prevMode
		return err
	}
	return s.repo.SaveRoom(r)
}

// SetSpeed requests a fan speed, subject to facility and room power
// gating, then delegates to the scheduler for admission/preemption.
func (s *Service) SetSpeed(roomID string, speed room.Speed, now time.Time) error {
	if !s.FacilityOn() {
		return corerr.PreconditionFailed("usecase.SetSpeed", "central unit is powered off")
	}
	r, ok, err := s.repo.GetRoom(roomID)
	if err != nil {
		return corerr.Internal("usecase.SetSpeed", err)
	}
	if !ok {
		return corerr.NotFound("usecase.SetSpeed", "room "+roomID+" not found")
	}
	if !r.PoweredOn {
		return corerr.PreconditionFailed("usecase.SetSpeed", "room "+roomID+" unit is powered off")
	}
	return s.sched.RequestService(roomID, speed, now)
}

// AddMealOrder attaches a room-service charge to the current stay.
func (s *Service) AddMealOrder(roomID, id, item string, price float64, now time.Time) error {
	if price < 0 {
		return corerr.InvalidArgument("usecase.AddMealOrder", "price must not be negative")
	}
	return s.repo.AddMealOrder(repository.MealOrder{ID: id, RoomID: roomID, Item: item, Price: price, OrderedAt: now})
}
