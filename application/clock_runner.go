package application

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	log "github.com/sirupsen/logrus"
)

const tickInterval = time.Second

// ClockRunner drives the countdown clocks of active matches. Each watched
// match gets one goroutine ticking on a fixed cadence; the charged time is
// the measured elapsed wall time between ticks, not the nominal interval, so
// a delayed tick never loses time.
type ClockRunner struct {
	lifecycle *MatchLifecycle
	clk       clock.Clock

	mu   sync.Mutex
	done chan struct{}
	wg   sync.WaitGroup
}

// NewClockRunner creates a new clock runner
func NewClockRunner(lifecycle *MatchLifecycle, clk clock.Clock) *ClockRunner {
	return &ClockRunner{
		lifecycle: lifecycle,
		clk:       clk,
		done:      make(chan struct{}),
	}
}

// Watch starts ticking the clocks of a match until it completes.
func (r *ClockRunner) Watch(matchID string) {
	r.mu.Lock()
	select {
	case <-r.done:
		r.mu.Unlock()
		return
	default:
	}
	r.wg.Add(1)
	r.mu.Unlock()

	go r.run(matchID)
}

// Stop shuts down all clock goroutines and waits for them to exit.
func (r *ClockRunner) Stop() {
	r.mu.Lock()
	select {
	case <-r.done:
	default:
		close(r.done)
	}
	r.mu.Unlock()
	r.wg.Wait()
}

func (r *ClockRunner) run(matchID string) {
	defer r.wg.Done()

	ticker := r.clk.Ticker(tickInterval)
	defer ticker.Stop()

	last := r.clk.Now()
	for {
		select {
		case <-r.done:
			return
		case <-ticker.C:
			now := r.clk.Now()
			elapsed := now.Sub(last)
			last = now

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			active := r.lifecycle.TickClocks(ctx, matchID, elapsed)
			cancel()
			if !active {
				log.WithField("matchID", matchID).Debug("clock runner released match")
				return
			}
		}
	}
}
