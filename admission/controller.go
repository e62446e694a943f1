package admission

import (
	"fmt"
	"sync"

	"golang.org/x/time/rate"

	recovery "github.com/fvgm-spec/disaster-recovery-agent"
)

// Limits bounds execution admission across the whole engine.
type Limits struct {
	// MaxConcurrent limits simultaneously running executions across all
	// workflows. Zero means no engine-wide limit.
	MaxConcurrent int

	// RateLimit is the maximum sustained triggers per second accepted by
	// the engine. Zero disables rate limiting.
	RateLimit float64

	// RateBurst is the burst size for the token-bucket rate limiter.
	// Defaults to 1 if RateLimit is set but RateBurst is zero.
	RateBurst int
}

// Config defines per-workflow admission behaviour. Workflows without a
// Config are bounded only by the engine-wide Limits.
type Config struct {
	// Workflow is the workflow name this config applies to.
	Workflow string

	// MaxConcurrent limits simultaneously running executions of this
	// workflow. Zero means no workflow-specific limit.
	MaxConcurrent int

	// RateLimit is the maximum sustained triggers per second for this
	// workflow. Zero disables rate limiting.
	RateLimit float64

	// RateBurst is the burst size for the workflow's rate limiter.
	// Defaults to 1 if RateLimit is set but RateBurst is zero.
	RateBurst int
}

// state tracks runtime admission state for one tier (engine-wide or a
// single workflow).
type state struct {
	maxConcurrent int
	limiter       *rate.Limiter
	active        int
}

func newState(maxConcurrent int, rateLimit float64, burst int) *state {
	s := &state{maxConcurrent: maxConcurrent}
	if rateLimit > 0 {
		if burst <= 0 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(rateLimit), burst)
	}
	return s
}

// Controller enforces engine-wide and per-workflow concurrency caps and
// trigger rate limits. It is safe for concurrent use.
type Controller struct {
	mu        sync.Mutex
	global    *state
	workflows map[string]*state
}

// NewController creates a Controller with engine-wide limits and optional
// per-workflow configurations.
func NewController(limits Limits, configs ...Config) *Controller {
	c := &Controller{
		workflows: make(map[string]*state, len(configs)),
	}
	if limits.MaxConcurrent > 0 || limits.RateLimit > 0 {
		c.global = newState(limits.MaxConcurrent, limits.RateLimit, limits.RateBurst)
	}
	for _, cfg := range configs {
		c.workflows[cfg.Workflow] = newState(cfg.MaxConcurrent, cfg.RateLimit, cfg.RateBurst)
	}
	return c
}

// Admit checks rate limits and concurrency for the given workflow. On nil
// return the execution slot is held and the caller MUST call Release when
// the execution reaches a terminal status. Rejections report
// [recovery.ErrRateLimited] or [recovery.ErrLimitExceeded].
func (c *Controller) Admit(workflow string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Engine-wide constraints apply before per-workflow ones.
	if c.global != nil {
		if c.global.limiter != nil && !c.global.limiter.Allow() {
			return fmt.Errorf("admission: %w", recovery.ErrRateLimited)
		}
		if c.global.maxConcurrent > 0 && c.global.active >= c.global.maxConcurrent {
			return fmt.Errorf("admission: %d executions running: %w",
				c.global.active, recovery.ErrLimitExceeded)
		}
	}

	ws := c.workflows[workflow]
	if ws != nil {
		if ws.limiter != nil && !ws.limiter.Allow() {
			return fmt.Errorf("admission: workflow %q: %w", workflow, recovery.ErrRateLimited)
		}
		if ws.maxConcurrent > 0 && ws.active >= ws.maxConcurrent {
			return fmt.Errorf("admission: workflow %q: %d executions running: %w",
				workflow, ws.active, recovery.ErrLimitExceeded)
		}
		ws.active++
	}

	if c.global != nil {
		c.global.active++
	}
	return nil
}

// Release frees the execution slot for the given workflow.
func (c *Controller) Release(workflow string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ws := c.workflows[workflow]; ws != nil && ws.active > 0 {
		ws.active--
	}
	if c.global != nil && c.global.active > 0 {
		c.global.active--
	}
}

// SetConfig dynamically updates (or creates) a workflow configuration.
func (c *Controller) SetConfig(cfg Config) {
	c.mu.Lock()
	defer c.mu.Unlock()

	existing := c.workflows[cfg.Workflow]
	ws := newState(cfg.MaxConcurrent, cfg.RateLimit, cfg.RateBurst)

	// Preserve current active count if reconfiguring.
	if existing != nil {
		ws.active = existing.active
	}
	c.workflows[cfg.Workflow] = ws
}

// Active returns the current number of running executions for a workflow.
// Only workflows with a Config are tracked individually.
func (c *Controller) Active(workflow string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ws := c.workflows[workflow]; ws != nil {
		return ws.active
	}
	return 0
}

// TotalActive returns the number of running executions across all
// workflows. It reports zero when no engine-wide limits are set.
func (c *Controller) TotalActive() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.global != nil {
		return c.global.active
	}
	return 0
}
