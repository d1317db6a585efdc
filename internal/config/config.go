// Package config holds the core's configuration schema. All groups are
// optional with defaults, matching the schema in spec §6; the file-format
// loader (YAML/env) is an external collaborator and out of scope here.
package config

// Range is an inclusive [Min, Max] bound, used for cool_range/heat_range.
type Range struct {
	Min float64
	Max float64
}

func (r Range) Contains(v float64) bool { return v >= r.Min && v <= r.Max }

type Temperature struct {
	DefaultTarget        float64
	MidDeltaPerMin       float64
	HighMultiplier       float64
	LowMultiplier        float64
	IdleDriftPerMin      float64
	AutoRestartThreshold float64
	CoolRange            Range
	HeatRange            Range
}

type Scheduling struct {
	MaxConcurrent    int
	TimeSliceSeconds int64
}

type Throttle struct {
	ChangeTempMS int64
}

type Billing struct {
	PricePerUnit       float64
	RateHighUnitPerMin float64
	RateMidUnitPerMin  float64
	RateLowUnitPerMin  float64
}

type Accommodation struct {
	RatePerNight float64
}

type Clock struct {
	// Ratio is logical-seconds-per-wall-second; a tick interval of
	// 1/Ratio seconds yields exactly one logical second of progress.
	Ratio float64
}

type Config struct {
	Temperature   Temperature
	Scheduling    Scheduling
	Throttle      Throttle
	Billing       Billing
	Accommodation Accommodation
	Clock         Clock
}

// Default returns the core's tolerant defaults, mirroring the constants
// the teacher hardcodes in NewScheduler/db.Init_DB.
func Default() Config {
	return Config{
		Temperature: Temperature{
			DefaultTarget:        24.0,
			MidDeltaPerMin:       1.0,
			HighMultiplier:       2.0,
			LowMultiplier:        0.5,
			IdleDriftPerMin:      0.5,
			AutoRestartThreshold: 1.0,
			CoolRange:            Range{Min: 18, Max: 28},
			HeatRange:            Range{Min: 18, Max: 28},
		},
		Scheduling: Scheduling{
			MaxConcurrent:    3,
			TimeSliceSeconds: 60,
		},
		Throttle: Throttle{
			ChangeTempMS: 1000,
		},
		Billing: Billing{
			PricePerUnit:       1.0,
			RateHighUnitPerMin: 1.0,
			RateMidUnitPerMin:  0.5,
			RateLowUnitPerMin:  1.0 / 3.0,
		},
		Accommodation: Accommodation{
			RatePerNight: 100.0,
		},
		Clock: Clock{
			Ratio: 1.0,
		},
	}
}

// RangeForMode returns the configured temperature range for a mode string
// ("cool" or "heat"); ok is false for an unrecognized mode.
func (t Temperature) RangeForMode(mode string) (Range, bool) {
	switch mode {
	case "cool":
		return t.CoolRange, true
	case "heat":
		return t.HeatRange, true
	default:
		return Range{}, false
	}
}
