// internal/scheduler/expiry.go
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Expirer fails campaigns whose deadline passed below the funding threshold.
type Expirer interface {
	ExpireDue(ctx context.Context) (int, error)
}

// ExpirySweeper runs Expirer.ExpireDue on a cron schedule. Sweeps never
// overlap: a run that is still going when the next tick fires is skipped.
type ExpirySweeper struct {
	cron    *cron.Cron
	expirer Expirer
	spec    string
	timeout time.Duration
	log     logrus.FieldLogger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
}

func NewExpirySweeper(expirer Expirer, spec string, timeout time.Duration, log logrus.FieldLogger) *ExpirySweeper {
	return &ExpirySweeper{
		cron:    newCron(log),
		expirer: expirer,
		spec:    spec,
		timeout: timeout,
		log:     log,
	}
}

// Start registers the sweep and starts the cron loop. ctx bounds every sweep.
func (s *ExpirySweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("expiry sweeper already running")
	}

	ctx, cancel := context.WithCancel(ctx)
	if _, err := s.cron.AddFunc(s.spec, func() { s.RunOnce(ctx) }); err != nil {
		cancel()
		return fmt.Errorf("invalid expiry schedule %q: %w", s.spec, err)
	}

	s.cancel = cancel
	s.running = true
	s.cron.Start()
	s.log.WithField("schedule", s.spec).Info("expiry sweeper started")
	return nil
}

// Stop halts the schedule and waits for an in-flight sweep to finish.
func (s *ExpirySweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	<-s.cron.Stop().Done()
	s.cancel()
	s.running = false
	s.log.Info("expiry sweeper stopped")
}

// RunOnce performs a single sweep. The scheduler is the boundary for
// background work, so failures are logged here rather than returned.
func (s *ExpirySweeper) RunOnce(ctx context.Context) int {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	failed, err := s.expirer.ExpireDue(ctx)
	entry := s.log.WithFields(logrus.Fields{
		"failed_campaigns": failed,
		"duration_ms":      time.Since(start).Milliseconds(),
	})
	if err != nil {
		entry.WithError(err).Error("expiry sweep finished with errors")
		return failed
	}
	if failed > 0 {
		entry.Info("expiry sweep failed campaigns")
	} else {
		entry.Debug("expiry sweep found nothing due")
	}
	return failed
}

// newCron builds a seconds-resolution scheduler whose jobs never overlap and
// whose panics are logged instead of crashing the process.
func newCron(log logrus.FieldLogger) *cron.Cron {
	return cron.New(
		cron.WithSeconds(),
		cron.WithChain(cron.Recover(cronLogger{log}), cron.SkipIfStillRunning(cronLogger{log})),
	)
}

// cronLogger adapts logrus to cron.Logger.
type cronLogger struct {
	log logrus.FieldLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.WithFields(fields(keysAndValues)).Debug(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.WithFields(fields(keysAndValues)).WithError(err).Error(msg)
}

func fields(keysAndValues []interface{}) logrus.Fields {
	f := logrus.Fields{}
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		f[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return f
}
