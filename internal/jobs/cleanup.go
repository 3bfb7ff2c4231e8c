package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/devansh728/BYVS/internal/logger"
	"github.com/devansh728/BYVS/internal/services"
	"github.com/devansh728/BYVS/internal/storage"
)

// CleanupJob periodically removes expired OTP records and idle rate limit
// windows.
type CleanupJob struct {
	store    storage.CredentialStore
	limiter  *services.RateLimiter
	interval time.Duration
	timeout  time.Duration
	now      func() time.Time
	log      *slog.Logger

	mu        sync.Mutex
	isRunning bool
	stop      chan struct{}
	done      chan struct{}
}

// NewCleanupJob creates a new cleanup job scheduler
func NewCleanupJob(store storage.CredentialStore, limiter *services.RateLimiter, interval, timeout time.Duration, log *slog.Logger) *CleanupJob {
	return &CleanupJob{
		store:    store,
		limiter:  limiter,
		interval: interval,
		timeout:  timeout,
		now:      time.Now,
		log:      log.With(logger.Module("jobs.cleanup")),
	}
}

// Start begins the cleanup loop
func (c *CleanupJob) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.isRunning {
		c.log.Warn("cleanup job already running")
		return
	}
	c.isRunning = true
	c.stop = make(chan struct{})
	c.done = make(chan struct{})

	go c.loop(c.stop, c.done)
	c.log.Info("cleanup job started", slog.Duration("interval", c.interval))
}

// Stop halts the loop and waits for an in-flight run to finish
func (c *CleanupJob) Stop() {
	c.mu.Lock()
	if !c.isRunning {
		c.mu.Unlock()
		return
	}
	c.isRunning = false
	close(c.stop)
	done := c.done
	c.mu.Unlock()

	<-done
	c.log.Info("cleanup job stopped")
}

// RunOnce performs a single cleanup pass.
func (c *CleanupJob) RunOnce(ctx context.Context) (otps int64, windows int) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	otps, err := c.store.DeleteExpiredOTPs(ctx, c.now())
	if err != nil {
		c.log.Error("delete expired otps", logger.Err(err))
	}
	if c.limiter != nil {
		windows = c.limiter.Prune()
	}

	if otps > 0 || windows > 0 {
		c.log.Debug("cleanup pass",
			slog.Int64("otps_removed", otps),
			slog.Int("windows_pruned", windows),
		)
	}
	return otps, windows
}

func (c *CleanupJob) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.RunOnce(context.Background())
		}
	}
}
