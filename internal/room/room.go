// Package room implements the per-room state machine: status, thermal
// response to service, and the target-temperature throttle. Grounded in
// the teacher's internal/db.RoomInfo (fields) and internal/service.Scheduler
// temperature-stepping logic (internal/service/scheduler.go
// updateServiceStatus/handleTemperatureRecovery), generalized to the
// three-speed, throttled, auto-restart model in the spec.
package room

import (
	"math"
	"time"

	"hotelcore/internal/config"
	"hotelcore/internal/corerr"
)

type Status string

const (
	StatusVacant   Status = "VACANT"
	StatusOccupied Status = "OCCUPIED"
)

type Mode string

const (
	ModeCool Mode = "cool"
	ModeHeat Mode = "heat"
)

type Speed string

const (
	SpeedHigh Speed = "HIGH"
	SpeedMid  Speed = "MID"
	SpeedLow  Speed = "LOW"
)

// Priority returns the scheduling priority of a speed: HIGH=3, MID=2, LOW=1.
func (s Speed) Priority() int {
	switch s {
	case SpeedHigh:
		return 3
	case SpeedMid:
		return 2
	case SpeedLow:
		return 1
	default:
		return 0
	}
}

func (s Speed) Valid() bool {
	return s == SpeedHigh || s == SpeedMid || s == SpeedLow
}

// Room is the per-room state described in spec §3.
type Room struct {
	RoomID string

	Status Status
	Mode   Mode
	Speed  Speed

	CurrentTemp float64
	TargetTemp  float64
	InitialTemp float64

	IsServing        bool
	PoweredOn        bool
	ManualPoweredOff bool

	LastTempChangeTS  time.Time
	PendingTargetTemp *float64

	RatePerNight float64
}

// New creates a room with configured defaults, as it would be on first
// reference (spec §3 lifecycle: "created on first reference").
func New(roomID string, cfg config.Temperature, ratePerNight float64) *Room {
	return &Room{
		RoomID:       roomID,
		Status:       StatusVacant,
		Mode:         ModeCool,
		Speed:        SpeedMid,
		CurrentTemp:  cfg.DefaultTarget,
		TargetTemp:   cfg.DefaultTarget,
		InitialTemp:  cfg.DefaultTarget,
		RatePerNight: ratePerNight,
	}
}

// CheckIn transitions VACANT->OCCUPIED, preserving CurrentTemp as InitialTemp.
func (r *Room) CheckIn() error {
	if r.Status == StatusOccupied {
		return corerr.PreconditionFailed("room.CheckIn", "room "+r.RoomID+" already occupied")
	}
	r.Status = StatusOccupied
	r.InitialTemp = r.CurrentTemp
	r.ManualPoweredOff = false
	return nil
}

// CheckOut transitions OCCUPIED->VACANT and resets service fields.
func (r *Room) CheckOut() error {
	if r.Status != StatusOccupied {
		return corerr.PreconditionFailed("room.CheckOut", "room "+r.RoomID+" has no active stay")
	}
	r.Status = StatusVacant
	r.IsServing = false
	r.PoweredOn = false
	r.ManualPoweredOff = false
	r.PendingTargetTemp = nil
	return nil
}

// RequestTargetTemp applies the throttle rule (spec §4.1): if the change
// arrives within changeTempMS of the last accepted change it is buffered
// as pending (overwriting any prior pending value) and applied=false;
// otherwise it is accepted immediately.
func (r *Room) RequestTargetTemp(temp float64, now time.Time, changeTempMS int64) (applied bool) {
	if r.LastTempChangeTS.IsZero() || now.Sub(r.LastTempChangeTS) >= throttleWindow(changeTempMS) {
		r.TargetTemp = temp
		r.LastTempChangeTS = now
		r.PendingTargetTemp = nil
		return true
	}
	r.PendingTargetTemp = &temp
	return false
}

// ApplyPendingIfDue applies a coalesced pending target-temp change once
// the throttle window since the last accepted change has elapsed. Called
// once per tick by the timer registry.
func (r *Room) ApplyPendingIfDue(now time.Time, changeTempMS int64) bool {
	if r.PendingTargetTemp == nil {
		return false
	}
	if now.Sub(r.LastTempChangeTS) >= throttleWindow(changeTempMS) {
		r.TargetTemp = *r.PendingTargetTemp
		r.LastTempChangeTS = now
		r.PendingTargetTemp = nil
		return true
	}
	return false
}

func throttleWindow(ms int64) time.Duration { return time.Duration(ms) * time.Millisecond }

// Evolve advances CurrentTemp by one logical second per spec §4.1, and
// reports reached=true if a serving room just snapped onto TargetTemp.
func (r *Room) Evolve(cfg config.Temperature) (reached bool) {
	if r.IsServing {
		multiplier := 1.0
		switch r.Speed {
		case SpeedHigh:
			multiplier = cfg.HighMultiplier
		case SpeedLow:
			multiplier = cfg.LowMultiplier
		}
		step := cfg.MidDeltaPerMin * multiplier / 60.0
		gap := r.TargetTemp - r.CurrentTemp
		if math.Abs(gap) <= step {
			r.CurrentTemp = r.TargetTemp
			return true
		}
		if gap > 0 {
			r.CurrentTemp += step
		} else {
			r.CurrentTemp -= step
		}
		return false
	}

	step := cfg.IdleDriftPerMin / 60.0
	gap := r.InitialTemp - r.CurrentTemp
	if math.Abs(gap) <= step {
		r.CurrentTemp = r.InitialTemp
	} else if gap > 0 {
		r.CurrentTemp += step
	} else {
		r.CurrentTemp -= step
	}
	return false
}

// NeedsAutoRestart reports whether the room qualifies for auto-restart
// (spec §4.1): occupied, not manually powered off, not queued, and the
// temperature gap is at or beyond the configured threshold.
func (r *Room) NeedsAutoRestart(cfg config.Temperature, inAnyQueue bool) bool {
	if r.Status != StatusOccupied || r.ManualPoweredOff || inAnyQueue {
		return false
	}
	return math.Abs(r.CurrentTemp-r.TargetTemp) >= cfg.AutoRestartThreshold
}

// ValidateTargetTemp rejects an out-of-range target for the room's mode;
// silently tolerant if no range is configured for the mode (spec §7).
func (r *Room) ValidateTargetTemp(temp float64, cfg config.Temperature) error {
	rng, ok := cfg.RangeForMode(string(r.Mode))
	if !ok {
		return nil
	}
	if !rng.Contains(temp) {
		return corerr.InvalidArgument("room.ValidateTargetTemp", "target temperature out of range for mode")
	}
	return nil
}
