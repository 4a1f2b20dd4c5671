package reconcile

import (
	"time"

	"github.com/xatophi/remote-backup-pds-project/errors"
	"github.com/xatophi/remote-backup-pds-project/log"
)

// retrySleep is how long the supervisor waits before re-running
// initialization after a failure.
const retrySleep = 30 * time.Second

// Supervisor drives the client's full lifecycle: initialization,
// steady-state, and restart-on-failure, bounded by a retry budget. Only
// HTTP-class failures consume the budget; transport errors (resolve,
// connect, write, read, shutdown) are retried indefinitely, since they
// are assumed to be recoverable outages rather than protocol problems.
type Supervisor struct {
	engine *Engine
	delay  time.Duration
	budget int

	// sleep overrides retrySleep; zero means use the default. Tests set
	// this to avoid a real 30-second wait.
	sleep time.Duration
}

// NewSupervisor returns a Supervisor that scans every delay and allows
// up to budget HTTP-class failures before giving up.
func NewSupervisor(engine *Engine, delay time.Duration, budget int) *Supervisor {
	return &Supervisor{engine: engine, delay: delay, budget: budget}
}

// SetRetrySleep overrides the pause between a failure and the next
// initialization attempt. It exists for tests; production callers
// leave it at the default.
func (s *Supervisor) SetRetrySleep(d time.Duration) {
	s.sleep = d
}

func (s *Supervisor) retrySleep() time.Duration {
	if s.sleep > 0 {
		return s.sleep
	}
	return retrySleep
}

// Run executes idle -> initializing -> steady-state, restarting from
// initializing after any failure, until stop is closed (clean exit, nil
// error) or the retry budget is exhausted (non-nil error).
func (s *Supervisor) Run(stop <-chan struct{}) error {
	const op = "reconcile.Supervisor.Run"

	for {
		err := s.engine.Init()
		if err == nil {
			err = s.engine.RunSteadyState(s.delay, stop)
			if err == nil {
				return nil
			}
		}

		log.Error.Printf("reconcile: %v", err)

		if errors.Is(errors.HTTP, err) {
			s.budget--
			if s.budget <= 0 {
				return errors.E(op, errors.Other, errors.Str("retry budget exhausted"))
			}
		}

		select {
		case <-stop:
			return nil
		case <-time.After(s.retrySleep()):
		}
	}
}
