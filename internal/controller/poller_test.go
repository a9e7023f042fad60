package controller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sejgit/shadesync/internal/overkiz"
)

func newTestPoller(gw *fakeGateway, handle func(context.Context, []overkiz.Event), fatal func(error)) *poller {
	if handle == nil {
		handle = func(context.Context, []overkiz.Event) {}
	}
	if fatal == nil {
		fatal = func(error) {}
	}
	p := newPoller(gw, time.Millisecond, handle, fatal, nil)
	p.backoff = time.Millisecond
	return p
}

func TestPoller_DeliversBatches(t *testing.T) {
	var mu sync.Mutex
	var delivered []overkiz.Event
	gw := &fakeGateway{}
	gw.fetchFn = func() ([]overkiz.Event, error) {
		return []overkiz.Event{{Name: "GatewayAliveEvent"}}, nil
	}

	p := newTestPoller(gw, func(_ context.Context, evts []overkiz.Event) {
		mu.Lock()
		delivered = append(delivered, evts...)
		mu.Unlock()
	}, nil)

	p.Start(context.Background())
	defer p.Stop()

	waitFor(t, "event delivery", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(delivered) > 0
	})
	if gw.registrations() != 1 {
		t.Errorf("registrations = %d, want 1", gw.registrations())
	}
}

func TestPoller_StartIdempotent(t *testing.T) {
	gw := &fakeGateway{}
	p := newTestPoller(gw, nil, nil)

	p.Start(context.Background())
	p.Start(context.Background())
	defer p.Stop()

	waitFor(t, "single registration", func() bool { return gw.registrations() == 1 })
	time.Sleep(20 * time.Millisecond)
	if gw.registrations() != 1 {
		t.Errorf("registrations = %d, want 1 for double Start", gw.registrations())
	}
}

func TestPoller_StopIsIdempotentAndWaits(t *testing.T) {
	gw := &fakeGateway{}
	p := newTestPoller(gw, nil, nil)

	p.Stop() // idle poller

	p.Start(context.Background())
	waitFor(t, "poller running", p.Running)
	p.Stop()
	if p.Running() {
		t.Error("Running() = true after Stop")
	}
	p.Stop()
}

func TestPoller_ReregistersExpiredListener(t *testing.T) {
	gw := &fakeGateway{}
	var mu sync.Mutex
	expired := true
	gw.fetchFn = func() ([]overkiz.Event, error) {
		mu.Lock()
		defer mu.Unlock()
		if expired {
			expired = false
			return nil, overkiz.ErrListenerExpired
		}
		return nil, nil
	}

	p := newTestPoller(gw, nil, nil)
	p.Start(context.Background())
	defer p.Stop()

	waitFor(t, "re-registration", func() bool { return gw.registrations() >= 2 })
	if p.Running() != true {
		t.Error("poller stopped after recoverable listener expiry")
	}
}

func TestPoller_FatalAfterRetryBudget(t *testing.T) {
	gw := &fakeGateway{}
	gw.fetchFn = func() ([]overkiz.Event, error) {
		return nil, errors.New("connection refused")
	}

	var mu sync.Mutex
	var fatals []error
	p := newTestPoller(gw, nil, func(err error) {
		mu.Lock()
		fatals = append(fatals, err)
		mu.Unlock()
	})

	p.Start(context.Background())
	waitFor(t, "fatal error", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(fatals) == 1
	})
	waitFor(t, "poller exit", func() bool { return !p.Running() })
}

func TestPoller_SuccessResetsRetryBudget(t *testing.T) {
	gw := &fakeGateway{}
	var mu sync.Mutex
	fetches := 0
	gw.fetchFn = func() ([]overkiz.Event, error) {
		mu.Lock()
		defer mu.Unlock()
		fetches++
		// Every other fetch fails. Far more total failures than the
		// retry budget allows, but never two in a row.
		if fetches%2 == 1 {
			return nil, errors.New("connection refused")
		}
		return nil, nil
	}

	var fatalMu sync.Mutex
	var fatals []error
	p := newTestPoller(gw, nil, func(err error) {
		fatalMu.Lock()
		fatals = append(fatals, err)
		fatalMu.Unlock()
	})

	p.Start(context.Background())
	defer p.Stop()

	waitFor(t, "sustained polling", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return fetches > 4*maxPollRetries
	})
	fatalMu.Lock()
	defer fatalMu.Unlock()
	if len(fatals) != 0 {
		t.Errorf("fatals = %v, want none while failures stay intermittent", fatals)
	}
	if !p.Running() {
		t.Error("poller stopped despite recovering between failures")
	}
}

func TestPoller_AuthFailureIsImmediatelyFatal(t *testing.T) {
	gw := &fakeGateway{}
	gw.fetchFn = func() ([]overkiz.Event, error) {
		return nil, overkiz.ErrNotAuthenticated
	}

	var mu sync.Mutex
	var fatal error
	p := newTestPoller(gw, nil, func(err error) {
		mu.Lock()
		fatal = err
		mu.Unlock()
	})

	p.Start(context.Background())
	waitFor(t, "fatal auth error", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return errors.Is(fatal, overkiz.ErrNotAuthenticated)
	})
	waitFor(t, "poller exit", func() bool { return !p.Running() })
}

func TestPoller_RegistrationAuthFailureIsFatal(t *testing.T) {
	gw := &fakeGateway{registerErr: overkiz.ErrNotAuthenticated}

	var mu sync.Mutex
	var fatal error
	p := newTestPoller(gw, nil, func(err error) {
		mu.Lock()
		fatal = err
		mu.Unlock()
	})

	p.Start(context.Background())
	waitFor(t, "fatal registration error", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return errors.Is(fatal, overkiz.ErrNotAuthenticated)
	})
	waitFor(t, "poller exit", func() bool { return !p.Running() })
}

func TestPoller_ContextCancelStopsLoop(t *testing.T) {
	gw := &fakeGateway{}
	p := newTestPoller(gw, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	p.Start(ctx)
	waitFor(t, "poller running", p.Running)
	cancel()
	waitFor(t, "poller exit", func() bool { return !p.Running() })
}
