// internal/scheduler/index_sync.go
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// IndexSyncer pulls vendors written by other instances into the local geo
// index.
type IndexSyncer interface {
	SyncIndex(ctx context.Context) (int, error)
}

// IndexRefresher runs IndexSyncer.SyncIndex on a cron schedule so that radius
// queries on this instance see vendors onboarded elsewhere.
type IndexRefresher struct {
	cron    *cron.Cron
	syncer  IndexSyncer
	spec    string
	timeout time.Duration
	log     logrus.FieldLogger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
}

func NewIndexRefresher(syncer IndexSyncer, spec string, timeout time.Duration, log logrus.FieldLogger) *IndexRefresher {
	return &IndexRefresher{
		cron:    newCron(log),
		syncer:  syncer,
		spec:    spec,
		timeout: timeout,
		log:     log,
	}
}

func (r *IndexRefresher) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return fmt.Errorf("index refresher already running")
	}

	ctx, cancel := context.WithCancel(ctx)
	if _, err := r.cron.AddFunc(r.spec, func() { r.RunOnce(ctx) }); err != nil {
		cancel()
		return fmt.Errorf("invalid index sync schedule %q: %w", r.spec, err)
	}

	r.cancel = cancel
	r.running = true
	r.cron.Start()
	r.log.WithField("schedule", r.spec).Info("index refresher started")
	return nil
}

func (r *IndexRefresher) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running {
		return
	}
	<-r.cron.Stop().Done()
	r.cancel()
	r.running = false
	r.log.Info("index refresher stopped")
}

// RunOnce performs a single sync and returns how many vendors were added.
func (r *IndexRefresher) RunOnce(ctx context.Context) int {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	added, err := r.syncer.SyncIndex(ctx)
	if err != nil {
		r.log.WithError(err).Warn("geo index sync failed")
		return added
	}
	r.log.WithField("added_vendors", added).Debug("geo index sync finished")
	return added
}
