/**
 * @description
 * Ingestion supervisor: runs one goroutine per vault task and restarts
 * crashed tasks with exponential backoff. A task that ran stably for the
 * configured window gets its failure counter reset; a task that exhausts its
 * restart budget is marked permanently dead. A periodic health check compares
 * the dead fraction against the configured threshold and brings the whole
 * supervisor down when it is exceeded, so the process can exit loudly instead
 * of limping along with most vaults stale.
 *
 * @dependencies
 * - internal/config (SupervisorConfig)
 */

package indexer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/halcyon-vaults/backend/internal/config"
	"github.com/halcyon-vaults/backend/internal/logger"
)

// SupervisedTask is a long-running unit of work the supervisor keeps alive.
type SupervisedTask interface {
	Name() string
	Run(ctx context.Context) error
}

// Supervisor owns the lifecycle of all vault ingestion tasks.
type Supervisor struct {
	cfg   config.SupervisorConfig
	tasks []SupervisedTask

	mu   sync.Mutex
	dead map[string]bool
}

func NewSupervisor(cfg config.SupervisorConfig, tasks ...SupervisedTask) *Supervisor {
	return &Supervisor{
		cfg:   cfg,
		tasks: tasks,
		dead:  make(map[string]bool),
	}
}

// Run blocks until the context is cancelled or the dead-task threshold is
// exceeded. In the latter case it cancels all remaining tasks, waits for them
// to stop, and returns an error describing the failure.
func (s *Supervisor) Run(ctx context.Context) error {
	if len(s.tasks) == 0 {
		logger.Info("[Supervisor] 🤷 No tasks to supervise")
		<-ctx.Done()
		return ctx.Err()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	for _, task := range s.tasks {
		wg.Add(1)
		go func(task SupervisedTask) {
			defer wg.Done()
			s.supervise(ctx, task)
		}(task)
	}

	logger.Info("[Supervisor] 🚀 Supervising %d ingestion tasks", len(s.tasks))

	ticker := time.NewTicker(s.cfg.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			return ctx.Err()
		case <-ticker.C:
			deadCount, fraction := s.deadFraction()
			if deadCount > 0 && fraction > s.cfg.DeadTasksThreshold {
				cancel()
				wg.Wait()
				return fmt.Errorf("%d/%d ingestion tasks permanently dead (threshold %.2f exceeded)",
					deadCount, len(s.tasks), s.cfg.DeadTasksThreshold)
			}
		}
	}
}

// supervise restarts one task until it exhausts its restart budget or the
// context ends.
func (s *Supervisor) supervise(ctx context.Context, task SupervisedTask) {
	attempts := 0

	for {
		started := time.Now()
		err := task.Run(ctx)
		if ctx.Err() != nil {
			return
		}

		// A run that survived the stability window earns a clean slate.
		if time.Since(started) >= s.cfg.StableAfter {
			attempts = 0
		}
		attempts++

		if err == nil {
			err = errors.New("task returned without error before shutdown")
		}

		if attempts > s.cfg.MaxRestartAttempts {
			s.markDead(task.Name())
			logger.Error("[Supervisor] 💀 Task %s exhausted %d restart attempts, giving up (last error: %v)",
				task.Name(), s.cfg.MaxRestartAttempts, err)
			return
		}

		delay := s.backoff(attempts)
		logger.Error("[Supervisor] 🔄 Task %s failed (attempt %d/%d), restarting in %s: %v",
			task.Name(), attempts, s.cfg.MaxRestartAttempts, delay, err)

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

// backoff doubles the base delay per consecutive failure, capped at a minute.
func (s *Supervisor) backoff(attempt int) time.Duration {
	delay := s.cfg.BaseRestartDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= time.Minute {
			return time.Minute
		}
	}
	return delay
}

func (s *Supervisor) markDead(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dead[name] = true
}

func (s *Supervisor) deadFraction() (int, float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.tasks) == 0 {
		return 0, 0
	}
	return len(s.dead), float64(len(s.dead)) / float64(len(s.tasks))
}
