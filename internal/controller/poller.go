package controller

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sejgit/shadesync/internal/overkiz"
)

const (
	defaultPollInterval = time.Second
	pollBackoffBase     = time.Second
	maxPollRetries      = 5
)

// poller drives the gateway's event listener. It registers a listener
// on entry, fetches in a fixed cadence, and hands each batch to the
// controller. Transient failures retry with doubling backoff up to
// maxPollRetries; exhausting the budget or losing authentication
// raises a fatal error exactly once through the controller.
type poller struct {
	gw       Gateway
	interval time.Duration
	backoff  time.Duration
	handle   func(ctx context.Context, evts []overkiz.Event)
	fatal    func(err error)
	logger   Logger

	running atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func newPoller(gw Gateway, interval time.Duration, handle func(context.Context, []overkiz.Event), fatal func(error), logger Logger) *poller {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &poller{
		gw:       gw,
		interval: interval,
		backoff:  pollBackoffBase,
		handle:   handle,
		fatal:    fatal,
		logger:   logger,
	}
}

// Start moves the poller from idle to listening. Starting a poller
// that is already listening is a no-op.
func (p *poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running.Load() {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	p.cancel = cancel
	p.done = done
	p.running.Store(true)
	go p.run(runCtx, done)
}

// Stop returns the poller to idle and waits for the fetch loop to
// exit. Safe to call on an idle poller.
func (p *poller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Running reports whether the fetch loop is alive.
func (p *poller) Running() bool {
	return p.running.Load()
}

func (p *poller) run(ctx context.Context, done chan struct{}) {
	defer func() {
		p.running.Store(false)
		close(done)
	}()

	if err := p.register(ctx); err != nil {
		return
	}

	retries := 0
	backoff := p.backoff
	for {
		if !sleepCtx(ctx, p.interval) {
			return
		}

		evts, err := p.gw.FetchEvents(ctx)
		switch {
		case err == nil:
			retries = 0
			backoff = p.backoff
			if len(evts) > 0 {
				p.handle(ctx, evts)
			}

		case ctx.Err() != nil:
			return

		case errors.Is(err, overkiz.ErrNotAuthenticated):
			p.logger.Error("event poll rejected, token invalid", "error", err)
			p.fatal(err)
			return

		case errors.Is(err, overkiz.ErrListenerExpired) || errors.Is(err, overkiz.ErrNoListener):
			p.logger.Warn("event listener expired, re-registering")
			retries++
			if retries > maxPollRetries {
				p.fatal(err)
				return
			}
			if !sleepCtx(ctx, backoff) {
				return
			}
			backoff *= 2
			if regErr := p.register(ctx); regErr != nil {
				return
			}

		default:
			retries++
			p.logger.Warn("event poll failed",
				"error", err,
				"attempt", retries,
				"max", maxPollRetries)
			if retries > maxPollRetries {
				p.fatal(err)
				return
			}
			if !sleepCtx(ctx, backoff) {
				return
			}
			backoff *= 2
		}
	}
}

// register obtains an event listener, retrying transient failures
// within the same budget as the fetch loop.
func (p *poller) register(ctx context.Context) error {
	backoff := p.backoff
	for attempt := 0; ; attempt++ {
		err := p.gw.RegisterListener(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, overkiz.ErrNotAuthenticated) {
			p.logger.Error("listener registration rejected, token invalid", "error", err)
			p.fatal(err)
			return err
		}
		if attempt >= maxPollRetries {
			p.fatal(err)
			return err
		}
		p.logger.Warn("listener registration failed",
			"error", err,
			"attempt", attempt+1,
			"max", maxPollRetries)
		if !sleepCtx(ctx, backoff) {
			return ctx.Err()
		}
		backoff *= 2
	}
}

// sleepCtx waits for d unless the context ends first. Returns false
// when the context ended.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
