package billingsync

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// ManagerOption is a function that configures a Manager during creation.
type ManagerOption func(*Manager) error

// WithCooldown replaces the default cooldown tracker. Inject a tracker with
// its own store to isolate instances in tests.
func WithCooldown(tracker *CooldownTracker) ManagerOption {
	return func(m *Manager) error {
		if tracker == nil {
			return fmt.Errorf("cooldown tracker cannot be nil")
		}
		m.cooldown = tracker
		return nil
	}
}

// WithPendingQueue replaces the default in-memory pending-confirmation queue.
func WithPendingQueue(queue PendingQueue) ManagerOption {
	return func(m *Manager) error {
		if queue == nil {
			return fmt.Errorf("pending queue cannot be nil")
		}
		m.pending = queue
		return nil
	}
}

// WithMetrics is a ManagerOption that configures metrics collection.
func WithMetrics(metrics Metrics) ManagerOption {
	return func(m *Manager) error {
		if metrics == nil {
			return fmt.Errorf("metrics cannot be nil")
		}
		m.metrics = metrics
		return nil
	}
}

// WithLogger replaces the global zerolog logger.
func WithLogger(logger zerolog.Logger) ManagerOption {
	return func(m *Manager) error {
		m.logger = logger
		return nil
	}
}

// WithPollConfig sets the confirmation polling tuning. Production defaults
// are a 2s interval inside a 60s budget; tests inject fast intervals.
func WithPollConfig(cfg PollConfig) ManagerOption {
	return func(m *Manager) error {
		if cfg.Interval < 0 || cfg.Timeout < 0 {
			return fmt.Errorf("poll interval and timeout must not be negative")
		}
		m.poll = cfg
		return nil
	}
}

// WithPollInterval sets only the pause between confirmation polls.
func WithPollInterval(interval time.Duration) ManagerOption {
	return func(m *Manager) error {
		if interval <= 0 {
			return fmt.Errorf("poll interval must be greater than 0")
		}
		m.poll.Interval = interval
		return nil
	}
}

// WithPollTimeout sets only the total confirmation polling budget.
func WithPollTimeout(timeout time.Duration) ManagerOption {
	return func(m *Manager) error {
		if timeout <= 0 {
			return fmt.Errorf("poll timeout must be greater than 0")
		}
		m.poll.Timeout = timeout
		return nil
	}
}

// WithNowTime sets the now time function (primarily for testing).
func WithNowTime(now func() time.Time) ManagerOption {
	return func(m *Manager) error {
		if now == nil {
			return fmt.Errorf("now function cannot be nil")
		}
		m.nowTime = now
		return nil
	}
}
