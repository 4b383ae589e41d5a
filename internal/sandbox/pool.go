package sandbox

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/riptide-dev/riptide/internal/apperr"
	"github.com/riptide-dev/riptide/internal/logger"
	"github.com/riptide-dev/riptide/internal/ports"
	"golang.org/x/sync/errgroup"
)

// maxUseCount bounds how many checkouts a single instance serves before
// the pool recycles it, mirroring the teacher's per-entry reuse ceiling.
const maxUseCount = 500

// Pool is a pool of sandboxed extractor instances, pre-warmed at startup,
// grown on demand up to maxSize, and recycled on Release once an instance
// reaches maxUseCount uses; the channel-based shape of
// internal/utils.PythonPool generalized with pre-warm, health checks, and
// instance recycling from flaresolverr-go's browser.Pool.
type Pool struct {
	mu        sync.Mutex
	available chan *Instance
	maxSize   int

	memoryLimitPages int
	fuelUnits        int64
	epochDeadline    time.Duration
	acquireTimeout   time.Duration

	closed atomic.Bool
	stopCh chan struct{}
	wg     sync.WaitGroup

	acquired atomic.Int64
	released atomic.Int64
	recycled atomic.Int64
	live     atomic.Int64
}

// NewPool pre-warms initialSize instances in parallel via errgroup, the
// same fan-out pattern the teacher uses to prewarm its python helper pool
// one at a time, generalized to concurrent spawns; initialSize may not
// exceed maxSize.
func NewPool(ctx context.Context, maxSize, initialSize, memoryLimitPages int, fuelUnits int64, epochDeadline, acquireTimeout time.Duration) (*Pool, error) {
	if maxSize <= 0 {
		return nil, fmt.Errorf("sandbox pool size must be positive")
	}
	if initialSize > maxSize {
		initialSize = maxSize
	}

	p := &Pool{
		available:        make(chan *Instance, maxSize),
		maxSize:          maxSize,
		memoryLimitPages: memoryLimitPages,
		fuelUnits:        fuelUnits,
		epochDeadline:    epochDeadline,
		acquireTimeout:   acquireTimeout,
		stopCh:           make(chan struct{}),
	}

	eg, egCtx := errgroup.WithContext(ctx)
	instances := make([]*Instance, initialSize)
	for i := 0; i < initialSize; i++ {
		i := i
		eg.Go(func() error {
			inst, err := p.spawn(egCtx)
			if err != nil {
				return err
			}
			instances[i] = inst
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("sandbox pool prewarm: %w", err)
	}
	p.live.Add(int64(initialSize))
	for _, inst := range instances {
		p.available <- inst
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.healthLoop(30 * time.Second)
	}()

	return p, nil
}

func (p *Pool) spawn(_ context.Context) (*Instance, error) {
	g := NewGovernor(p.memoryLimitPages, p.fuelUnits, p.epochDeadline)
	return newInstance(uuid.NewString(), g), nil
}

// Acquire blocks up to acquireTimeout for a free instance, spawning a
// fresh one on demand if the pool has room below maxSize and none is
// idle, and failing with apperr.ResourceLimit if neither path succeeds in
// time.
func (p *Pool) Acquire(ctx context.Context) (ports.Resource[*Instance], error) {
	if p.closed.Load() {
		return nil, apperr.New(apperr.KindInternal, "sandbox pool is closed")
	}

	select {
	case inst := <-p.available:
		inst.MarkUsed()
		p.acquired.Add(1)
		return &instanceResource{pool: p, instance: inst}, nil
	default:
	}

	if p.reserveSlot() {
		inst, err := p.spawn(ctx)
		if err != nil {
			p.live.Add(-1)
			logger.Warn("sandbox: on-demand spawn failed, falling back to wait", "error", err)
		} else {
			inst.MarkUsed()
			p.acquired.Add(1)
			return &instanceResource{pool: p, instance: inst}, nil
		}
	}

	acquireCtx, cancel := context.WithTimeout(ctx, p.acquireTimeout)
	defer cancel()

	select {
	case inst := <-p.available:
		inst.MarkUsed()
		p.acquired.Add(1)
		return &instanceResource{pool: p, instance: inst}, nil
	case <-acquireCtx.Done():
		return nil, apperr.ResourceLimit("sandbox_pool")
	}
}

// reserveSlot atomically claims one unit of live-instance capacity below
// maxSize, the gate that lets Acquire spawn on demand instead of only ever
// pulling from the pre-warmed channel (C1's "create one if below the
// configured capacity").
func (p *Pool) reserveSlot() bool {
	for {
		cur := p.live.Load()
		if cur >= int64(p.maxSize) {
			return false
		}
		if p.live.CompareAndSwap(cur, cur+1) {
			return true
		}
	}
}

// Release returns an instance to the pool, recycling it (dropping it and
// spawning a replacement) once it has served maxUseCount checkouts.
func (p *Pool) Release(inst *Instance) {
	p.released.Add(1)

	if inst.useCount.Load() >= maxUseCount {
		p.recycled.Add(1)
		p.live.Add(-1) // the retiring instance's slot, reclaimed below on success
		fresh, err := p.spawn(context.Background())
		if err != nil {
			logger.Warn("sandbox: failed to spawn replacement instance", "error", err)
			return
		}
		p.live.Add(1)
		inst = fresh
	} else {
		inst.Reset()
	}

	select {
	case p.available <- inst:
	default:
		// Pool channel is full (shouldn't happen under normal operation);
		// drop the instance rather than block the releasing goroutine.
		p.live.Add(-1)
	}
}

func (p *Pool) healthLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			// A health probe here would round-trip a no-op extraction
			// through each idle instance; omitted because nothing in this
			// pool holds an external connection to go stale.
		case <-p.stopCh:
			return
		}
	}
}

// Stats reports pool-level counters for the memory-profile endpoint.
type Stats struct {
	Acquired int64
	Released int64
	Recycled int64
	Idle     int
	Live     int64
	MaxSize  int
}

func (p *Pool) Stats() Stats {
	return Stats{
		Acquired: p.acquired.Load(),
		Released: p.released.Load(),
		Recycled: p.recycled.Load(),
		Idle:     len(p.available),
		Live:     p.live.Load(),
		MaxSize:  p.maxSize,
	}
}

// Close stops the health-check goroutine and drains the pool.
func (p *Pool) Close() {
	if !p.closed.CompareAndSwap(false, true) {
		return
	}
	close(p.stopCh)
	p.wg.Wait()
	close(p.available)
}

// instanceResource is the RAII handle returned by Acquire; exactly one
// live handle exists per checked-out instance.
type instanceResource struct {
	pool     *Pool
	instance *Instance
	once     sync.Once
}

func (r *instanceResource) Item() *Instance { return r.instance }

func (r *instanceResource) Release() {
	r.once.Do(func() { r.pool.Release(r.instance) })
}

func (r *instanceResource) Into() *Instance {
	r.once.Do(func() {}) // marks released without returning to the pool
	return r.instance
}

var _ ports.Pool[*Instance] = (*Pool)(nil)
