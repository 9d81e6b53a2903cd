package rag

import (
	"context"
	"sync"
	"time"

	"github.com/koopa0/localrag/internal/log"
)

// jobRunner drives the optional periodic maintenance jobs: the expiry sweep
// and store optimization. Each job catches and logs its own failures so a
// bad cycle never stops future cycles. Intervals <= 0 disable a job.
type jobRunner struct {
	sys              *System
	cleanupInterval  time.Duration
	optimizeInterval time.Duration
	logger           log.Logger

	done    chan struct{}
	stopped sync.Once
	wg      sync.WaitGroup
}

func newJobRunner(sys *System, cleanupInterval, optimizeInterval time.Duration, logger log.Logger) *jobRunner {
	return &jobRunner{
		sys:              sys,
		cleanupInterval:  cleanupInterval,
		optimizeInterval: optimizeInterval,
		logger:           logger,
		done:             make(chan struct{}),
	}
}

func (j *jobRunner) start() {
	if j.cleanupInterval > 0 {
		j.wg.Add(1)
		go j.run("cleanup", j.cleanupInterval, func(ctx context.Context) error {
			removed, err := j.sys.store.CleanupExpired(ctx)
			if err == nil && removed > 0 {
				j.logger.Info("expiry sweep removed documents", "count", removed)
			}
			return err
		})
	}
	if j.optimizeInterval > 0 {
		j.wg.Add(1)
		go j.run("optimize", j.optimizeInterval, func(ctx context.Context) error {
			return j.sys.store.Optimize(ctx)
		})
	}
}

func (j *jobRunner) run(name string, interval time.Duration, fn func(context.Context) error) {
	defer j.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			if err := fn(context.Background()); err != nil {
				j.logger.Error("periodic job failed", "job", name, "error", err)
			}
		}
	}
}

func (j *jobRunner) stop() {
	j.stopped.Do(func() {
		close(j.done)
		j.wg.Wait()
	})
}
