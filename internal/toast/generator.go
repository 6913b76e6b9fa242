// Package toast produces the decorative "someone just withdrew" notices
// shown on the survey pages.
package toast

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/DukeRupert/surveypro/internal/events"
	"github.com/DukeRupert/surveypro/internal/metrics"
)

// Publisher receives generated toasts.
type Publisher interface {
	Publish(ev events.Event)
}

// Generator pushes a Withdrawal to its publisher once on Start and then on
// every interval until Stop. It is owned by whoever constructs it.
type Generator struct {
	config    Config
	publisher Publisher
	logger    *slog.Logger

	// lifecycle serializes Start and Stop.
	lifecycle sync.Mutex

	mu     sync.Mutex
	rand   *rand.Rand
	now    func() time.Time
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewGenerator creates a Generator. The generator must be started with
// Start and stopped with Stop.
func NewGenerator(config Config, publisher Publisher, logger *slog.Logger) (*Generator, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	seed := uint64(time.Now().UnixNano())
	return &Generator{
		config:    config,
		publisher: publisher,
		logger:    logger,
		rand:      rand.New(rand.NewPCG(seed, seed>>1|1)),
		now:       time.Now,
	}, nil
}

// Start pushes one toast immediately and then one per interval. Calling
// Start on a running generator restarts its timer.
func (g *Generator) Start(ctx context.Context) {
	g.lifecycle.Lock()
	defer g.lifecycle.Unlock()

	g.stop()

	g.mu.Lock()
	stopCh := make(chan struct{})
	g.stopCh = stopCh
	g.mu.Unlock()

	g.Push()

	g.wg.Add(1)
	go g.run(ctx, stopCh)
	g.logger.Info("withdrawal toasts started", "interval", g.config.Interval)
}

// Stop halts the generator. It is a no-op when not running.
func (g *Generator) Stop() {
	g.lifecycle.Lock()
	defer g.lifecycle.Unlock()
	g.stop()
}

// stop closes the running loop and waits for it. g.lifecycle must be held.
func (g *Generator) stop() {
	g.mu.Lock()
	stopCh := g.stopCh
	g.stopCh = nil
	g.mu.Unlock()
	if stopCh == nil {
		return
	}
	close(stopCh)

	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		g.logger.Info("withdrawal toasts stopped")
	case <-time.After(g.config.ShutdownTimeout):
		g.logger.Warn("withdrawal toast shutdown timeout exceeded")
	}
}

// Running reports whether the loop is live: started, not stopped, and its
// context not yet done.
func (g *Generator) Running() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.stopCh != nil
}

// Push generates and publishes one toast right away.
func (g *Generator) Push() Withdrawal {
	g.mu.Lock()
	w := NewWithdrawal(g.rand, g.now())
	g.mu.Unlock()

	g.publisher.Publish(events.Event{Type: events.TypeWithdrawal, Data: w})
	metrics.ToastsEmitted.Inc()
	g.logger.Debug("withdrawal toast pushed", "ref", w.Ref, "amount", w.Amount)
	return w
}

func (g *Generator) run(ctx context.Context, stopCh chan struct{}) {
	defer g.wg.Done()

	ticker := time.NewTicker(g.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			g.mu.Lock()
			if g.stopCh == stopCh {
				g.stopCh = nil
			}
			g.mu.Unlock()
			return
		case <-ticker.C:
			g.Push()
		}
	}
}
