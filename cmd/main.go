// Command main drives a scripted demo of the hotel air-conditioning
// core: it wires a repository, timer registry, billing engine and
// scheduler together in the order the package documentation requires,
// then checks a handful of rooms in, requests service at varying
// priorities to show preemption, lets the logical clock tick, and
// checks out with a rendered receipt. Grounded in the teacher's
// internal/app.App wiring order and cmd/main.go entrypoint shape, with
// the HTTP server dropped (out of scope) in favor of driving the
// logical clock directly.
package main

import (
	"fmt"
	"os"
	"time"

	"hotelcore/internal/billing"
	"hotelcore/internal/config"
	"hotelcore/internal/events"
	"hotelcore/internal/logger"
	"hotelcore/internal/receipt"
	"hotelcore/internal/repository/memrepo"
	"hotelcore/internal/room"
	"hotelcore/internal/scheduler"
	"hotelcore/internal/timer"
	"hotelcore/internal/usecase"
)

func main() {
	logger.SetLevel(logger.InfoLevel)

	cfg := config.Default()
	repo := memrepo.New()

	bus := events.NewBus(256)
	bus.Start()

	registry := timer.NewRegistry(bus, repo, cfg)
	billingEngine := billing.NewEngine(repo, cfg.Billing, cfg.Accommodation)
	registry.BindFeeCallback(billingEngine.TickFee)

	sched := scheduler.NewCore(registry, billingEngine, repo, bus, cfg)
	svc := usecase.NewService(repo, sched, registry, billingEngine, cfg)

	now := time.Now()
	rooms := []string{"101", "102", "103", "104"}
	for _, id := range rooms {
		if err := svc.CheckIn(id, cfg.Accommodation.RatePerNight, now); err != nil {
			logger.Error("check-in %s: %v", id, err)
			os.Exit(1)
		}
		if err := svc.PowerOn(id); err != nil {
			logger.Error("power-on %s: %v", id, err)
			os.Exit(1)
		}
	}

	if err := svc.SetSpeed("101", room.SpeedMid, now); err != nil {
		logger.Error("set-speed 101: %v", err)
	}
	if err := svc.SetSpeed("102", room.SpeedMid, now); err != nil {
		logger.Error("set-speed 102: %v", err)
	}
	if err := svc.SetSpeed("103", room.SpeedHigh, now); err != nil {
		logger.Error("set-speed 103: %v", err)
	}
	if err := svc.SetSpeed("104", room.SpeedHigh, now); err != nil {
		logger.Error("set-speed 104: %v", err)
	}

	for i := 0; i < 30; i++ {
		tickTime := now.Add(time.Duration(i+1) * time.Second)
		serving := sched.ServingSpeeds()
		queued := sched.RoomsInQueue()
		registry.Tick(tickTime, serving, queued)
	}

	snap := sched.Snapshot()
	logger.Info("serving: %d, waiting: %d", len(snap.Serving), len(snap.Waiting))

	checkoutTime := now.Add(31 * time.Second)
	for _, id := range rooms {
		bill, err := svc.CheckOut(id, checkoutTime)
		if err != nil {
			logger.Error("check-out %s: %v", id, err)
			continue
		}
		fmt.Printf("room %s grand total: %.2f\n", id, bill.GrandTotal)

		f, err := os.Create(fmt.Sprintf("receipt-%s.pdf", id))
		if err != nil {
			logger.Error("create receipt file for %s: %v", id, err)
			continue
		}
		info := receipt.StayInfo{RoomID: id, GuestName: "Guest " + id, CheckIn: now, CheckOut: checkoutTime}
		if err := receipt.Render(f, info, bill); err != nil {
			logger.Error("render receipt for %s: %v", id, err)
		}
		f.Close()
	}

	bus.Stop()
}
