package artifacts

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// Sweeper runs ReclaimExpired on a fixed interval, complementing the
// opportunistic sweeps on the request paths. Without it an artifact can
// outlive its TTL indefinitely on an idle service.
type Sweeper struct {
	store    Store
	interval time.Duration
	logger   *slog.Logger

	reclaimed       metric.Int64Counter
	reclaimFailures metric.Int64Counter

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewSweeper creates a sweeper for the given store. A nil logger falls
// back to slog.Default.
func NewSweeper(store Store, interval time.Duration, logger *slog.Logger) (*Sweeper, error) {
	if logger == nil {
		logger = slog.Default()
	}
	meter := otel.Meter("auditgen.artifacts")
	reclaimed, err := meter.Int64Counter("auditgen.artifacts.reclaimed",
		metric.WithDescription("Artifacts removed by expiry sweeps"))
	if err != nil {
		return nil, fmt.Errorf("create reclaimed counter: %w", err)
	}
	failures, err := meter.Int64Counter("auditgen.artifacts.reclaim_failures",
		metric.WithDescription("Per-artifact deletion failures during sweeps"))
	if err != nil {
		return nil, fmt.Errorf("create reclaim failure counter: %w", err)
	}
	return &Sweeper{
		store:           store,
		interval:        interval,
		logger:          logger,
		reclaimed:       reclaimed,
		reclaimFailures: failures,
		done:            make(chan struct{}),
	}, nil
}

// Start launches the background loop. A non-positive interval disables
// the sweeper; the opportunistic request-path sweeps still run.
func (sw *Sweeper) Start() {
	if sw.interval <= 0 {
		sw.logger.Info("periodic artifact sweep disabled")
		return
	}
	sw.logger.Info("periodic artifact sweep enabled", "interval", sw.interval)
	sw.wg.Add(1)
	go sw.loop()
}

// Stop terminates the loop and waits for the goroutine to exit. Safe to
// call more than once.
func (sw *Sweeper) Stop() {
	sw.stopOnce.Do(func() { close(sw.done) })
	sw.wg.Wait()
}

func (sw *Sweeper) loop() {
	defer sw.wg.Done()
	ticker := time.NewTicker(sw.interval)
	defer ticker.Stop()
	for {
		select {
		case <-sw.done:
			return
		case <-ticker.C:
			sw.sweep()
		}
	}
}

func (sw *Sweeper) sweep() {
	ctx := context.Background()
	res, err := sw.store.ReclaimExpired(ctx)
	if err != nil {
		sw.logger.Error("artifact sweep failed", "error", err)
		return
	}
	sw.reclaimed.Add(ctx, int64(res.Removed))
	sw.reclaimFailures.Add(ctx, int64(len(res.Failures)))
	for _, f := range res.Failures {
		sw.logger.Warn("sweep could not remove artifact", "token", f.Token, "error", f.Err)
	}
	if res.Removed > 0 || len(res.Failures) > 0 {
		sw.logger.Info("artifact sweep completed",
			"scanned", res.Scanned,
			"removed", res.Removed,
			"failures", len(res.Failures))
	}
}
