// Package ownership is the single-writer coordinator (C6): DB-row based
// owner election, heartbeat/health-check timers and stale-owner takeover,
// grounded on the teacher's internal/watcher/coordinator.go start/stop
// and cleanup shape.
package ownership

import (
	"context"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/zipbul/gildash/internal/gildashlog"
	"github.com/zipbul/gildash/internal/store"
)

// Role is the outcome of an acquire attempt.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleReader Role = "reader"
)

// Defaults matching spec.md §4.6 / §9's Open Question decision.
const (
	DefaultStaleThreshold      = 90 * time.Second
	DefaultHeartbeatInterval   = 30 * time.Second
	DefaultHealthCheckInterval = 60 * time.Second
	DefaultMaxHealthCheckRetry = 10
)

// Options configures AcquireWatcherRole's timing and liveness probe.
type Options struct {
	StaleThreshold time.Duration
	Now            func() time.Time
	IsAlive        func(pid int) bool
}

func (o Options) withDefaults() Options {
	if o.StaleThreshold <= 0 {
		o.StaleThreshold = DefaultStaleThreshold
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.IsAlive == nil {
		o.IsAlive = processAlive
	}
	return o
}

// processAlive is the OS-specific liveness probe for spec.md §4.6 step 4:
// signal 0 checks for process existence without affecting it.
func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}

// AcquireWatcherRole implements spec.md §4.6's five-branch election
// algorithm. Callers must run it inside db.ImmediateTransaction.
func AcquireWatcherRole(tx store.Execer, pid int, opts Options) (Role, error) {
	opts = opts.withDefaults()
	now := opts.Now().UTC().Format(time.RFC3339)

	row, err := store.SelectOwner(tx)
	if err != nil {
		return "", err
	}

	if row == nil {
		if err := store.InsertOwner(tx, pid, now); err != nil {
			return "", err
		}
		return RoleOwner, nil
	}

	if row.PID == pid {
		if err := store.TouchOwner(tx, pid, now); err != nil {
			return "", err
		}
		return RoleOwner, nil
	}

	stale := isStale(row.HeartbeatAt, opts.Now(), opts.StaleThreshold) || !opts.IsAlive(row.PID)
	if stale {
		if err := store.ReplaceOwner(tx, pid, now); err != nil {
			return "", err
		}
		return RoleOwner, nil
	}

	return RoleReader, nil
}

func isStale(heartbeatAt string, now time.Time, threshold time.Duration) bool {
	t, err := time.Parse(time.RFC3339, heartbeatAt)
	if err != nil {
		return true
	}
	return now.Sub(t) > threshold
}

// ReleaseWatcherRole implements close-time release (spec.md §4.8 step 7):
// delete the owner row, but only if it still belongs to pid.
func ReleaseWatcherRole(tx store.Execer, pid int) error {
	return store.DeleteOwner(tx, pid)
}

// Coordinator owns the heartbeat and health-check timers for one process,
// and the failure counter that triggers a self-close after
// MAX_HEALTHCHECK_RETRIES consecutive acquire failures (spec.md §4.6).
type Coordinator struct {
	db     *store.DB
	pid    int
	logger gildashlog.Logger
	opts   Options

	heartbeatInterval   time.Duration
	healthCheckInterval time.Duration
	maxRetries          int

	mu           sync.Mutex
	role         Role
	failures     int
	heartbeatT   *time.Timer
	healthCheckT *time.Timer
	stopped      bool

	// OnPromoted is invoked (best-effort, synchronously from the
	// health-check goroutine) when a reader transitions to owner.
	// Returning an error rolls the promotion back: the health-check timer
	// is re-armed and the role stays reader.
	OnPromoted func() error

	// OnSelfClose is invoked once MAX_HEALTHCHECK_RETRIES consecutive
	// acquire failures have accumulated.
	OnSelfClose func()
}

// New builds a Coordinator for pid with the given initial role. Callers
// must have already run AcquireWatcherRole once to learn that role.
func New(db *store.DB, pid int, role Role, logger gildashlog.Logger) *Coordinator {
	if logger == nil {
		logger = gildashlog.Nop()
	}
	return &Coordinator{
		db:                  db,
		pid:                 pid,
		role:                role,
		logger:              logger,
		opts:                Options{}.withDefaults(),
		heartbeatInterval:   DefaultHeartbeatInterval,
		healthCheckInterval: DefaultHealthCheckInterval,
		maxRetries:          DefaultMaxHealthCheckRetry,
	}
}

// Role reports the coordinator's current role.
func (c *Coordinator) Role() Role {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.role
}

// StartHeartbeat arms the owner heartbeat timer (spec.md §4.6's "every 30s
// call updateHeartbeat"). Only meaningful while role == owner.
func (c *Coordinator) StartHeartbeat() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}
	c.heartbeatT = time.AfterFunc(c.heartbeatInterval, c.onHeartbeatTick)
}

func (c *Coordinator) onHeartbeatTick() {
	c.mu.Lock()
	if c.stopped || c.role != RoleOwner {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	now := time.Now().UTC().Format(time.RFC3339)
	if err := c.db.ImmediateTransaction(context.Background(), func(tx store.Execer) error {
		return store.TouchOwner(tx, c.pid, now)
	}); err != nil {
		c.logger.Warnf("heartbeat touch failed: %v", err)
	}

	c.mu.Lock()
	stopped := c.stopped
	c.mu.Unlock()
	if !stopped {
		c.StartHeartbeat()
	}
}

// StartHealthCheck arms the reader health-check/promotion timer (spec.md
// §4.6's "every 60s, a reader retries acquireWatcherRole").
func (c *Coordinator) StartHealthCheck() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}
	c.healthCheckT = time.AfterFunc(c.healthCheckInterval, c.onHealthCheckTick)
}

func (c *Coordinator) onHealthCheckTick() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	var role Role
	err := c.db.ImmediateTransaction(context.Background(), func(tx store.Execer) error {
		r, aerr := AcquireWatcherRole(tx, c.pid, c.opts)
		role = r
		return aerr
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}

	if err != nil {
		c.failures++
		c.logger.Warnf("acquireWatcherRole failed (%d/%d): %v", c.failures, c.maxRetries, err)
		if c.failures >= c.maxRetries {
			cb := c.OnSelfClose
			c.mu.Unlock()
			if cb != nil {
				cb()
			}
			c.mu.Lock()
			return
		}
		c.healthCheckT = time.AfterFunc(c.healthCheckInterval, c.onHealthCheckTick)
		return
	}

	c.failures = 0

	if role == RoleReader {
		c.healthCheckT = time.AfterFunc(c.healthCheckInterval, c.onHealthCheckTick)
		return
	}

	// Promotion: role transitioned reader -> owner.
	cb := c.OnPromoted
	c.mu.Unlock()
	var promoteErr error
	if cb != nil {
		promoteErr = cb()
	}
	c.mu.Lock()
	if promoteErr != nil {
		c.logger.Warnf("owner promotion setup failed, staying reader: %v", promoteErr)
		c.healthCheckT = time.AfterFunc(c.healthCheckInterval, c.onHealthCheckTick)
		return
	}
	c.role = RoleOwner
}

// Stop cancels both timers; it does not release the owner row (that is
// the Context's job at close, via ReleaseWatcherRole).
func (c *Coordinator) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopped = true
	if c.heartbeatT != nil {
		c.heartbeatT.Stop()
	}
	if c.healthCheckT != nil {
		c.healthCheckT.Stop()
	}
}
