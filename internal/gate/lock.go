package gate

import (
	gosync "sync"
	"time"

	"github.com/nhle/tempinbox/internal/clock"
)

// State is the position of a cooldown lock.
type State int

const (
	// Idle means the lock can be acquired.
	Idle State = iota

	// InFlight means the guarded operation is running.
	InFlight

	// CoolingDown means the operation finished and the lock is waiting
	// out its cooldown before returning to Idle.
	CoolingDown
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case InFlight:
		return "in flight"
	case CoolingDown:
		return "cooling down"
	default:
		return "unknown"
	}
}

// cooldownLock is a single-flight guard that stays held for a fixed
// cooldown after release. Acquire attempts outside Idle fail.
type cooldownLock struct {
	sched    clock.Scheduler
	cooldown time.Duration

	mu     gosync.Mutex
	state  State
	epoch  uint64
	cancel clock.CancelFunc
}

func newCooldownLock(sched clock.Scheduler, cooldown time.Duration) *cooldownLock {
	return &cooldownLock{sched: sched, cooldown: cooldown}
}

func (l *cooldownLock) tryAcquire() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != Idle {
		return false
	}
	l.state = InFlight
	return true
}

// release moves InFlight to CoolingDown and schedules the return to Idle.
func (l *cooldownLock) release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != InFlight {
		return
	}
	if l.cooldown <= 0 {
		l.state = Idle
		return
	}

	l.state = CoolingDown
	l.epoch++
	epoch := l.epoch
	l.cancel = l.sched.AfterFunc(l.cooldown, func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if l.epoch == epoch && l.state == CoolingDown {
			l.state = Idle
			l.cancel = nil
		}
	})
}

func (l *cooldownLock) current() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// stop cancels a pending cooldown and returns the lock to Idle.
func (l *cooldownLock) stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
	l.epoch++
	l.state = Idle
}
