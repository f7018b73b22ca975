package geometry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/info3g/hikstar-celery/internal/telemetry"
)

// DefaultRefreshTimeout bounds a single refresh
const DefaultRefreshTimeout = 30 * time.Second

// Refresher runs refreshes on a bounded worker pool after the caller's
// transaction has committed. Requests for a trail already waiting in the queue
// are coalesced.
type Refresher struct {
	service Service
	pool    *ants.Pool
	logger  *zap.SugaredLogger
	timeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	pending map[int64]struct{}
	wg      sync.WaitGroup
}

// NewRefresher creates a refresher running at most workers refreshes at once
func NewRefresher(service Service, workers int, logger *zap.SugaredLogger) (*Refresher, error) {
	if workers <= 0 {
		workers = 1
	}

	r := &Refresher{
		service: service,
		logger:  logger,
		timeout: DefaultRefreshTimeout,
		pending: make(map[int64]struct{}),
	}

	pool, err := ants.NewPool(workers,
		ants.WithNonblocking(true),
		ants.WithPanicHandler(func(p interface{}) {
			logger.Errorf("geometry refresh panicked: %v", p)
			telemetry.ObserveGeometryRefresh(telemetry.RefreshError)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("creating geometry worker pool: %w", err)
	}

	r.pool = pool
	r.ctx, r.cancel = context.WithCancel(context.Background())
	return r, nil
}

// Schedule queues a refresh of trailID. It never blocks; when every worker is
// busy the request is dropped and logged.
func (r *Refresher) Schedule(trailID int64) {
	r.mu.Lock()
	if _, queued := r.pending[trailID]; queued {
		r.mu.Unlock()
		return
	}
	r.pending[trailID] = struct{}{}
	r.mu.Unlock()

	r.wg.Add(1)
	err := r.pool.Submit(func() {
		defer r.wg.Done()

		r.mu.Lock()
		delete(r.pending, trailID)
		r.mu.Unlock()

		r.run(trailID)
	})
	if err == nil {
		return
	}

	r.wg.Done()
	r.mu.Lock()
	delete(r.pending, trailID)
	r.mu.Unlock()

	if errors.Is(err, ants.ErrPoolOverload) {
		r.logger.Warnf("geometry refresh of trail %d dropped: all %d workers busy", trailID, r.pool.Cap())
	} else {
		r.logger.Errorf("geometry refresh of trail %d not scheduled: %v", trailID, err)
	}
	telemetry.ObserveGeometryRefresh(telemetry.RefreshDropped)
}

func (r *Refresher) run(trailID int64) {
	ctx, cancel := context.WithTimeout(r.ctx, r.timeout)
	defer cancel()

	if err := r.service.Refresh(ctx, trailID); err != nil {
		r.logger.Errorf("geometry refresh of trail %d failed: %v", trailID, err)
		telemetry.ObserveGeometryRefresh(telemetry.RefreshError)
		return
	}
	r.logger.Debugf("geometry of trail %d refreshed", trailID)
	telemetry.ObserveGeometryRefresh(telemetry.RefreshOK)
}

// Wait blocks until every scheduled refresh has finished
func (r *Refresher) Wait() {
	r.wg.Wait()
}

// Close waits up to timeout for running refreshes, then cancels the rest and
// releases the pool
func (r *Refresher) Close(timeout time.Duration) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		r.logger.Warn("geometry refreshes still running at shutdown; cancelling")
	}

	r.cancel()
	r.pool.Release()
	return nil
}
