package fetch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/Sriram-PR/mdimg/pkg/utils"
)

// HostSemaphorePool caps concurrent downloads per host. One pool is shared by
// every document in a run so the cap holds across the whole run.
type HostSemaphorePool struct {
	sems  map[string]*semaphore.Weighted
	mu    sync.Mutex
	limit int64
	log   *logrus.Entry
}

// NewHostSemaphorePool creates a new pool with the given per-host concurrency limit.
func NewHostSemaphorePool(maxPerHost int, log *logrus.Entry) *HostSemaphorePool {
	limit := int64(maxPerHost)
	if limit <= 0 {
		limit = 2
		log.Warnf("max_requests_per_host invalid or zero, defaulting to %d", limit)
	}
	return &HostSemaphorePool{
		sems:  make(map[string]*semaphore.Weighted),
		limit: limit,
		log:   log,
	}
}

func (p *HostSemaphorePool) get(host string) *semaphore.Weighted {
	p.mu.Lock()
	defer p.mu.Unlock()
	sem, ok := p.sems[host]
	if !ok {
		sem = semaphore.NewWeighted(p.limit)
		p.sems[host] = sem
		p.log.WithFields(logrus.Fields{"host": host, "limit": p.limit}).Debug("Created new host semaphore")
	}
	return sem
}

// Acquire blocks until a permit for host is available or ctx is done.
// A timeout > 0 bounds the wait and yields utils.ErrSemaphoreTimeout.
func (p *HostSemaphorePool) Acquire(ctx context.Context, host string, timeout time.Duration) error {
	sem := p.get(host)

	acquireCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		acquireCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if err := sem.Acquire(acquireCtx, 1); err != nil {
		// Only our own deadline counts as a semaphore timeout
		if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: host '%s' after %v", utils.ErrSemaphoreTimeout, host, timeout)
		}
		return err
	}
	return nil
}

// Release releases one permit for the given host.
func (p *HostSemaphorePool) Release(host string) {
	p.mu.Lock()
	sem, ok := p.sems[host]
	p.mu.Unlock()
	if !ok {
		p.log.Errorf("hostsemaphore: Release called for unknown host: %s", host)
		return
	}
	sem.Release(1)
}

// Len returns the current number of tracked hosts.
func (p *HostSemaphorePool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sems)
}
