package scheduler

import (
	"sort"

	"hotelcore/internal/room"
)

// selectVictim implements the victim rule (spec §4.1 "preemption"):
// prefer the lowest priority tier among currently-served rooms; within
// the lowest tier, the longest-continuously-served room; ties break on
// the lexicographically smallest room id (an open question in the
// original design, decided this way since it gives a deterministic,
// easily-tested order). A victim is only returned if its priority is
// strictly lower than the requester's. Grounded in the teacher's
// CompositeStrategy.selectVictim (internal/scheduler/strategy.go),
// generalized from "lowest priority present" to a full deterministic
// ordering since concurrent requests can otherwise race on tie-breaks.
func selectVictim(serving []*ServiceObject, requestedPriority int) (*ServiceObject, bool) {
	if len(serving) == 0 {
		return nil, false
	}
	ordered := append([]*ServiceObject(nil), serving...)
	sort.Slice(ordered, func(i, j int) bool {
		pi, pj := ordered[i].Speed.Priority(), ordered[j].Speed.Priority()
		if pi != pj {
			return pi < pj
		}
		if !ordered[i].StartedAt.Equal(ordered[j].StartedAt) {
			return ordered[i].StartedAt.Before(ordered[j].StartedAt)
		}
		return ordered[i].RoomID < ordered[j].RoomID
	})
	lowest := ordered[0]
	if lowest.Speed.Priority() >= requestedPriority {
		return nil, false
	}
	return lowest, true
}

// nextFromWaitQueue picks the room to admit into freed service capacity by
// the key (priority(speed), priority_token, elapsed_wait) of spec §4.1
// "fill-capacity": highest priority tier first, then the most-boosted
// priority token, then longest-waiting, then lexicographic room id.
// Grounded in the teacher's CompositeStrategy.GetNextFromWaitQueue.
func nextFromWaitQueue(waiting []*WaitObject) (*WaitObject, bool) {
	if len(waiting) == 0 {
		return nil, false
	}
	ordered := append([]*WaitObject(nil), waiting...)
	sort.Slice(ordered, func(i, j int) bool {
		pi, pj := ordered[i].Speed.Priority(), ordered[j].Speed.Priority()
		if pi != pj {
			return pi > pj
		}
		if ordered[i].PriorityToken != ordered[j].PriorityToken {
			return ordered[i].PriorityToken > ordered[j].PriorityToken
		}
		if !ordered[i].EnqueuedAt.Equal(ordered[j].EnqueuedAt) {
			return ordered[i].EnqueuedAt.Before(ordered[j].EnqueuedAt)
		}
		return ordered[i].RoomID < ordered[j].RoomID
	})
	return ordered[0], true
}

// sameSpeedVictim finds the longest-continuously-served room at a given
// speed tier, used by the time-slice rotation handler. Grounded in the
// teacher's CompositeStrategy.findLongestRunning.
func sameSpeedVictim(serving []*ServiceObject, speed room.Speed) (*ServiceObject, bool) {
	var victim *ServiceObject
	for _, so := range serving {
		if so.Speed != speed {
			continue
		}
		if victim == nil || so.StartedAt.Before(victim.StartedAt) ||
			(so.StartedAt.Equal(victim.StartedAt) && so.RoomID < victim.RoomID) {
			victim = so
		}
	}
	return victim, victim != nil
}
