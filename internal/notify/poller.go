package notify

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/reggosong/freebies-go/pkg/config"
	"github.com/reggosong/freebies-go/pkg/logging"
)

// CountFunc fetches the viewer's unread notification count
type CountFunc func(ctx context.Context) (int, error)

// Poller refreshes the unread-notification count on a fixed timer.
// Each tick is best-effort: failures are logged, never surfaced, and
// never stop subsequent ticks. The poller follows the owning view's
// lifecycle (Start on focus, Stop on blur) so no orphaned refresh
// loop survives navigation away. Both are idempotent.
type Poller struct {
	interval time.Duration
	fetch    CountFunc
	logger   *zap.Logger

	count atomic.Int64

	mu      sync.Mutex
	cancel  context.CancelFunc
	stopped chan struct{}
}

// NewPoller creates a poller; it does not start ticking until Start
func NewPoller(cfg *config.NotifyConfig, fetch CountFunc) *Poller {
	return &Poller{
		interval: cfg.PollInterval,
		fetch:    fetch,
		logger:   logging.GetLogger().With(zap.String("component", "notify-poller")),
	}
}

// Count returns the most recently fetched unread count
func (p *Poller) Count() int {
	return int(p.count.Load())
}

// Start begins polling: an immediate tick, then one per interval.
// Calling Start while running is a no-op.
func (p *Poller) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.stopped = make(chan struct{})

	go p.run(ctx, p.stopped)
}

// Stop cancels the polling loop and waits for it to exit. Calling
// Stop while stopped is a no-op.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	stopped := p.stopped
	p.cancel = nil
	p.stopped = nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-stopped
}

func (p *Poller) run(ctx context.Context, stopped chan struct{}) {
	defer close(stopped)

	p.tick(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

func (p *Poller) tick(ctx context.Context) {
	count, err := p.fetch(ctx)
	if err != nil {
		p.logger.Warn("Unread count refresh failed", zap.Error(err))
		return
	}
	p.count.Store(int64(count))
}
