package toast

import (
	"context"
	"io"
	"log/slog"
	"math/rand/v2"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DukeRupert/surveypro/internal/events"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(ev events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
	assert.Equal(t, 45*time.Second, DefaultConfig().Interval)

	cfg := DefaultConfig()
	cfg.Interval = time.Millisecond
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.ShutdownTimeout = 0
	assert.Error(t, cfg.Validate())
}

func TestFormatKES(t *testing.T) {
	assert.Equal(t, "Ksh 2,500", FormatKES(2500))
	assert.Equal(t, "Ksh 0", FormatKES(0))
	assert.Equal(t, "Ksh 50", FormatKES(50))
}

var (
	msisdnPattern = regexp.MustCompile(`^2547(XX|YY|ZZ)\*\*\*\*\d{3}$`)
	refPattern    = regexp.MustCompile(`^TX\d{4}[A-Z]{2}$`)
)

func TestNewWithdrawal_Shape(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	at := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 500; i++ {
		w := NewWithdrawal(r, at)

		assert.Regexp(t, msisdnPattern, w.MSISDN)
		assert.Regexp(t, refPattern, w.Ref)
		assert.GreaterOrEqual(t, w.Balance, 0)
		assert.LessOrEqual(t, w.Balance, 100)

		switch w.Amount {
		case 1000, 2500, 3000:
		default:
			assert.Zero(t, w.Amount%50, "base amounts are multiples of 50")
			assert.GreaterOrEqual(t, w.Amount, 500)
			assert.LessOrEqual(t, w.Amount, 5000)
		}

		assert.Contains(t, w.Text, w.MSISDN+" has withdrawn "+FormatKES(w.Amount))
		assert.Equal(t, at, w.At)
	}
}

func TestNewWithdrawal_Deterministic(t *testing.T) {
	a := NewWithdrawal(rand.New(rand.NewPCG(7, 7)), time.Time{})
	b := NewWithdrawal(rand.New(rand.NewPCG(7, 7)), time.Time{})
	assert.Equal(t, a, b)
}

func TestGenerator_StartPushesImmediatelyAndOnInterval(t *testing.T) {
	pub := &recordingPublisher{}
	cfg := Config{Interval: 100 * time.Millisecond, ShutdownTimeout: time.Second}
	g, err := NewGenerator(cfg, pub, testLogger())
	require.NoError(t, err)

	g.Start(context.Background())
	assert.Equal(t, 1, pub.count(), "first toast is pushed on start")
	assert.True(t, g.Running())

	assert.Eventually(t, func() bool { return pub.count() >= 3 }, 2*time.Second, 10*time.Millisecond)

	g.Stop()
	assert.False(t, g.Running())
	stopped := pub.count()
	time.Sleep(250 * time.Millisecond)
	assert.Equal(t, stopped, pub.count(), "no toasts after stop")

	pub.mu.Lock()
	ev := pub.events[0]
	pub.mu.Unlock()
	assert.Equal(t, events.TypeWithdrawal, ev.Type)
	assert.Empty(t, ev.Origin, "toasts are broadcast")
	assert.IsType(t, Withdrawal{}, ev.Data)
}

func TestGenerator_RestartAndStopAreSafe(t *testing.T) {
	pub := &recordingPublisher{}
	g, err := NewGenerator(Config{Interval: time.Hour, ShutdownTimeout: time.Second}, pub, testLogger())
	require.NoError(t, err)

	g.Stop()
	g.Start(context.Background())
	g.Start(context.Background())
	assert.Equal(t, 2, pub.count())

	g.Stop()
	g.Stop()
	assert.False(t, g.Running())
}

func TestGenerator_ConcurrentStartsLeaveOneLoop(t *testing.T) {
	pub := &recordingPublisher{}
	g, err := NewGenerator(Config{Interval: 10 * time.Millisecond, ShutdownTimeout: time.Second}, pub, testLogger())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g.Start(context.Background())
		}()
	}
	wg.Wait()
	assert.True(t, g.Running())

	g.Stop()
	assert.False(t, g.Running())
	stopped := pub.count()
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, stopped, pub.count(), "every loop stopped")
}

func TestGenerator_ContextCancelStopsRunning(t *testing.T) {
	pub := &recordingPublisher{}
	g, err := NewGenerator(Config{Interval: time.Hour, ShutdownTimeout: time.Second}, pub, testLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	g.Start(ctx)
	require.True(t, g.Running())

	cancel()
	assert.Eventually(t, func() bool { return !g.Running() }, 2*time.Second, 10*time.Millisecond)

	g.Start(context.Background())
	assert.True(t, g.Running(), "a cancelled generator can be started again")
	g.Stop()
}

func TestNewGenerator_RejectsInvalidConfig(t *testing.T) {
	_, err := NewGenerator(Config{}, &recordingPublisher{}, testLogger())
	assert.Error(t, err)
}
