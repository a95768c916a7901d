package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
)

// Shutdownable is an interface for components that hold resources until exit
type Shutdownable interface {
	Close() error
}

// Coordinator cancels the run on SIGINT/SIGTERM and closes registered
// components in priority order when the run ends
type Coordinator struct {
	timeout time.Duration
	logger  zerolog.Logger

	mu         sync.Mutex
	components []namedComponent

	shutdownOnce sync.Once
}

type namedComponent struct {
	name      string
	component Shutdownable
	priority  int // Lower = closed first
}

// New creates a new shutdown coordinator
func New(timeout time.Duration, logger zerolog.Logger) *Coordinator {
	return &Coordinator{
		timeout: timeout,
		logger:  logger.With().Str("component", "shutdown").Logger(),
	}
}

// Register registers a component to close at shutdown.
// Priority determines shutdown order (lower = shutdown first).
func (c *Coordinator) Register(name string, component Shutdownable, priority int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.components = append(c.components, namedComponent{
		name:      name,
		component: component,
		priority:  priority,
	})

	c.logger.Debug().
		Str("name", name).
		Int("priority", priority).
		Msg("Registered component for shutdown")
}

// NotifyContext returns a context cancelled on the first SIGINT or SIGTERM.
// The returned stop function releases the signal handler.
func (c *Coordinator) NotifyContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-quit:
			c.logger.Warn().
				Str("signal", sig.String()).
				Msg("Received signal, cancelling run")
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(quit)
		cancel()
	}
}

// Shutdown closes all registered components. It runs once; later calls
// return nil.
func (c *Coordinator) Shutdown() error {
	var shutdownErr error

	c.shutdownOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
		defer cancel()

		start := time.Now()

		c.mu.Lock()
		components := make([]namedComponent, len(c.components))
		copy(components, c.components)
		c.mu.Unlock()

		sort.SliceStable(components, func(i, j int) bool {
			return components[i].priority < components[j].priority
		})

		for _, comp := range components {
			select {
			case <-ctx.Done():
				c.logger.Warn().
					Str("component", comp.name).
					Msg("Shutdown timeout reached, skipping remaining components")
				shutdownErr = ctx.Err()
				return
			default:
			}

			if err := comp.component.Close(); err != nil {
				c.logger.Error().
					Err(err).
					Str("component", comp.name).
					Msg("Component shutdown failed")
				if shutdownErr == nil {
					shutdownErr = err
				}
			} else {
				c.logger.Debug().
					Str("component", comp.name).
					Msg("Component closed")
			}
		}

		c.logger.Debug().
			Dur("duration", time.Since(start)).
			Int("components", len(components)).
			Msg("Shutdown complete")
	})

	return shutdownErr
}

// Shutdown priorities of the conversion run
const (
	PriorityDatabase = 10 // DuckDB read-back connection
	PriorityOutput   = 20 // Output storage backend
	PriorityInput    = 30 // Input storage backend
)
