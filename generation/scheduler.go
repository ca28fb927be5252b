package generation

import (
	"context"
	"log"
	"time"
)

// Scheduler dispatches fire-and-forget jobs. Callers must not assume
// completion, ordering, or even that the job ran; failures are reported
// through the job's own status record.
type Scheduler interface {
	Schedule(name string, delay time.Duration, fn func(ctx context.Context))
}

// GoScheduler runs each job on its own goroutine with a per-job timeout and
// panic recovery.
type GoScheduler struct {
	// Timeout bounds one job run. Zero means 5 minutes, matching the
	// image provider's worst observed latency.
	Timeout time.Duration
}

func (s *GoScheduler) Schedule(name string, delay time.Duration, fn func(ctx context.Context)) {
	timeout := s.Timeout
	if timeout == 0 {
		timeout = 5 * time.Minute
	}
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("Scheduled job %s panicked: %v", name, r)
			}
		}()
		if delay > 0 {
			time.Sleep(delay)
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		fn(ctx)
	}()
}
