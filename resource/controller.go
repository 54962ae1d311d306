// Package resource bounds the memory, concurrency and IO used by table
// builds, searches and snapshot transfers.
package resource

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// ErrMemoryLimitExceeded is returned when a reservation would exceed the
// memory budget.
var ErrMemoryLimitExceeded = errors.New("memory limit exceeded")

// Config holds resource limits.
type Config struct {
	// MemoryLimitBytes bounds the working memory of in-flight builds and
	// searches (table arrays, histograms, neighbor buffers).
	// If 0, usage is only tracked.
	MemoryLimitBytes int64

	// MaxConcurrentCalls bounds how many builds and searches run at once.
	// If 0, calls are not limited.
	MaxConcurrentCalls int64

	// IOLimitBytesPerSec is the maximum snapshot transfer throughput.
	// If 0, unlimited.
	IOLimitBytesPerSec int64
}

// Controller enforces a Config. A nil *Controller imposes no limits.
type Controller struct {
	cfg Config

	memSem  *semaphore.Weighted // nil if unlimited
	memUsed atomic.Int64

	callSem *semaphore.Weighted // nil if unlimited

	ioLimiter *rate.Limiter
}

// NewController creates a new resource controller.
func NewController(cfg Config) *Controller {
	c := &Controller{cfg: cfg}

	if cfg.MemoryLimitBytes > 0 {
		c.memSem = semaphore.NewWeighted(cfg.MemoryLimitBytes)
	}
	if cfg.MaxConcurrentCalls > 0 {
		c.callSem = semaphore.NewWeighted(cfg.MaxConcurrentCalls)
	}
	if cfg.IOLimitBytesPerSec > 0 {
		c.ioLimiter = rate.NewLimiter(rate.Limit(cfg.IOLimitBytesPerSec), int(cfg.IOLimitBytesPerSec))
	}

	return c
}

// Config returns the limits c enforces.
func (c *Controller) Config() Config {
	if c == nil {
		return Config{}
	}
	return c.cfg
}

// ReserveMemory reserves bytes of working memory without blocking.
// It fails with ErrMemoryLimitExceeded when the budget cannot cover the
// request right now.
func (c *Controller) ReserveMemory(bytes int64) error {
	if c == nil || bytes <= 0 {
		return nil
	}

	if c.memSem != nil && !c.memSem.TryAcquire(bytes) {
		return fmt.Errorf("%w: need %d bytes, %d of %d in use",
			ErrMemoryLimitExceeded, bytes, c.memUsed.Load(), c.cfg.MemoryLimitBytes)
	}

	c.memUsed.Add(bytes)
	return nil
}

// ReleaseMemory releases memory reserved by ReserveMemory.
func (c *Controller) ReleaseMemory(bytes int64) {
	if c == nil || bytes <= 0 {
		return
	}

	if c.memSem != nil {
		c.memSem.Release(bytes)
	}
	c.memUsed.Add(-bytes)
}

// MemoryUsage returns the currently reserved memory in bytes.
func (c *Controller) MemoryUsage() int64 {
	if c == nil {
		return 0
	}
	return c.memUsed.Load()
}

// Reservation tracks the memory reserved by one call so it can be released
// in one step.
type Reservation struct {
	c     *Controller
	bytes int64
}

// Reservation returns an empty Reservation against c.
func (c *Controller) Reservation() *Reservation {
	return &Reservation{c: c}
}

// Add reserves bytes more.
func (r *Reservation) Add(bytes int64) error {
	if err := r.c.ReserveMemory(bytes); err != nil {
		return err
	}
	if bytes > 0 {
		r.bytes += bytes
	}
	return nil
}

// Bytes returns the amount currently held.
func (r *Reservation) Bytes() int64 { return r.bytes }

// Release returns everything held to the controller.
func (r *Reservation) Release() {
	r.c.ReleaseMemory(r.bytes)
	r.bytes = 0
}

// AcquireCall reserves a call slot, blocking until one is free or ctx is
// done.
func (c *Controller) AcquireCall(ctx context.Context) error {
	if c == nil || c.callSem == nil {
		return nil
	}
	return c.callSem.Acquire(ctx, 1)
}

// TryAcquireCall reserves a call slot without blocking.
func (c *Controller) TryAcquireCall() bool {
	if c == nil || c.callSem == nil {
		return true
	}
	return c.callSem.TryAcquire(1)
}

// ReleaseCall releases a slot reserved by AcquireCall or TryAcquireCall.
func (c *Controller) ReleaseCall() {
	if c == nil || c.callSem == nil {
		return
	}
	c.callSem.Release(1)
}

// AcquireIO waits until the IO limit allows the specified number of bytes.
// Requests larger than one second of throughput are split.
func (c *Controller) AcquireIO(ctx context.Context, bytes int) error {
	if c == nil || c.ioLimiter == nil {
		return nil
	}
	burst := c.ioLimiter.Burst()
	for bytes > 0 {
		n := min(bytes, burst)
		if err := c.ioLimiter.WaitN(ctx, n); err != nil {
			return err
		}
		bytes -= n
	}
	return nil
}
