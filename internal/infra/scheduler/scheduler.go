package scheduler

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// CycleRunner is the monitor service as the scheduler sees it.
type CycleRunner interface {
	RunCycle(ctx context.Context)
}

// minDelaySeconds is the floor applied to the computed wait between cycles,
// regardless of configuration.
const minDelaySeconds = 5

// MonitorScheduler runs monitor cycles on a jittered fixed interval. Cycles
// never overlap: the loop waits for a cycle to fully complete before
// computing the next delay. Stop interrupts the wait, not a running cycle.
type MonitorScheduler struct {
	runner          CycleRunner
	logger          *logrus.Logger
	intervalSeconds int
	jitterSeconds   int

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewMonitorScheduler(runner CycleRunner, logger *logrus.Logger, intervalSeconds, jitterSeconds int) *MonitorScheduler {
	return &MonitorScheduler{
		runner:          runner,
		logger:          logger,
		intervalSeconds: intervalSeconds,
		jitterSeconds:   jitterSeconds,
	}
}

// Start launches the background loop. Starting an already-running scheduler
// is a no-op.
func (s *MonitorScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.logger.Info("Monitor scheduler started")
	go s.loop(s.stopCh, s.doneCh)
}

// Stop signals the loop to exit and joins it. An in-flight cycle runs to
// completion. Stopping a stopped scheduler is a no-op.
func (s *MonitorScheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	done := s.doneCh
	s.mu.Unlock()

	<-done
	s.logger.Info("Monitor scheduler stopped")
}

func (s *MonitorScheduler) loop(stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	for {
		s.runCycleSafely()

		delay := s.nextDelay()
		select {
		case <-time.After(delay):
		case <-stopCh:
			return
		}
	}
}

// runCycleSafely contains any panic from a cycle: a failing cycle is logged
// and the loop proceeds to the next interval.
func (s *MonitorScheduler) runCycleSafely() {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Errorf("Monitor cycle panicked: %v", r)
		}
	}()
	s.runner.RunCycle(context.Background())
}

// nextDelay computes max(5, base + uniform(-jitter, +jitter)) seconds.
func (s *MonitorScheduler) nextDelay() time.Duration {
	base := s.intervalSeconds
	if base < minDelaySeconds {
		base = minDelaySeconds
	}
	jitter := s.jitterSeconds
	if jitter < 0 {
		jitter = 0
	}

	seconds := base
	if jitter > 0 {
		seconds = base + rand.Intn(2*jitter+1) - jitter
	}
	if seconds < minDelaySeconds {
		seconds = minDelaySeconds
	}
	return time.Duration(seconds) * time.Second
}
