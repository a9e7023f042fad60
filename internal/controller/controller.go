package controller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sejgit/shadesync/internal/device"
	"github.com/sejgit/shadesync/internal/events"
	"github.com/sejgit/shadesync/internal/overkiz"
)

const (
	defaultCommandTimeout = 10 * time.Second
	healthInterval        = 30 * time.Second
)

// Options tunes controller timing. Zero values fall back to defaults.
type Options struct {
	// CommandTimeout bounds each gateway command round trip.
	CommandTimeout time.Duration

	// PollInterval is the cadence of the event fetch loop.
	PollInterval time.Duration
}

// Controller is the sync core. It owns discovery, the event poller,
// the per-entity consumer loops and the command surface. One
// controller serves one gateway.
type Controller struct {
	gw       Gateway
	registry *device.Registry
	queue    *events.Queue
	entities EntityManager
	status   StatusSink
	recorder Recorder
	logger   Logger

	cmdTimeout time.Duration
	poller     *poller

	// reconciling guards against overlapping discovery passes.
	reconciling atomic.Bool

	mu      sync.Mutex
	running bool
	runCtx  context.Context
	cancel  context.CancelFunc
	loops   map[string]context.CancelFunc
	wg      sync.WaitGroup

	fatalOnce   sync.Once
	fatalRaised atomic.Bool
	fatalCh     chan error
}

// New wires a controller around an already-connected gateway client.
// Entity manager, status sink, recorder and logger attach through the
// setters before Start; all are optional.
func New(gw Gateway, registry *device.Registry, queue *events.Queue, opts Options) *Controller {
	cmdTimeout := opts.CommandTimeout
	if cmdTimeout <= 0 {
		cmdTimeout = defaultCommandTimeout
	}
	c := &Controller{
		gw:         gw,
		registry:   registry,
		queue:      queue,
		entities:   noopEntities{},
		status:     noopSink{},
		recorder:   noopRecorder{},
		logger:     noopLogger{},
		cmdTimeout: cmdTimeout,
		loops:      make(map[string]context.CancelFunc),
		fatalCh:    make(chan error, 1),
	}
	c.poller = newPoller(gw, opts.PollInterval, c.handleEvents, c.raiseFatal, c.logger)
	return c
}

// SetLogger replaces the no-op logger. Call before Start.
func (c *Controller) SetLogger(logger Logger) {
	if logger != nil {
		c.logger = logger
		c.poller.logger = logger
	}
}

// SetEntityManager attaches the host integration that materializes
// entities. Call before Start.
func (c *Controller) SetEntityManager(em EntityManager) {
	if em != nil {
		c.entities = em
	}
}

// SetStatusSink attaches the outbound state publisher. Call before
// Start.
func (c *Controller) SetStatusSink(sink StatusSink) {
	if sink != nil {
		c.status = sink
	}
}

// SetRecorder attaches the time-series recorder. Call before Start.
func (c *Controller) SetRecorder(rec Recorder) {
	if rec != nil {
		c.recorder = rec
	}
}

// Start runs the initial discovery pass and brings up the event
// poller. The passed context bounds startup only; the controller's
// own lifetime ends at Stop.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(context.Background())
	c.runCtx = runCtx
	c.cancel = cancel
	c.running = true
	c.mu.Unlock()

	if err := c.Reconcile(ctx); err != nil {
		c.Stop()
		return fmt.Errorf("%w: %v", ErrStartupFailed, err)
	}

	c.poller.Start(runCtx)

	c.wg.Add(1)
	go c.healthLoop(runCtx)

	c.logger.Info("controller started",
		"shades", len(c.registry.ListShades()),
		"scenes", len(c.registry.ListScenes()))
	return nil
}

// Stop shuts the poller, closes the queue so every consumer loop
// wakes and exits, and waits for them. Safe to call twice.
func (c *Controller) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	cancel := c.cancel
	c.mu.Unlock()

	cancel()
	c.poller.Stop()
	c.queue.Shutdown()
	c.wg.Wait()

	c.mu.Lock()
	c.loops = make(map[string]context.CancelFunc)
	c.mu.Unlock()

	c.logger.Info("controller stopped")
}

// Fatal delivers the first unrecoverable error, if one ever occurs.
// The channel never closes and carries at most one value.
func (c *Controller) Fatal() <-chan error {
	return c.fatalCh
}

func (c *Controller) raiseFatal(err error) {
	c.fatalOnce.Do(func() {
		c.fatalRaised.Store(true)
		c.logger.Error("unrecoverable gateway failure", "error", err)
		c.fatalCh <- err
	})
}

// handleEvents is the poller's sink. Records addressed to entities we
// do not track are dropped; a consumer for them does not exist yet
// and discovery will replay their state anyway.
func (c *Controller) handleEvents(ctx context.Context, evts []overkiz.Event) {
	tr := translate(evts)

	for _, rec := range tr.records {
		if rec.DeviceURL != "" {
			if _, err := c.registry.GetShadeByURL(rec.DeviceURL); err != nil {
				c.logger.Debug("dropping event for untracked device",
					"kind", rec.Kind, "device_url", rec.DeviceURL)
				continue
			}
		}
		if rec.SceneOID != "" {
			if _, err := c.registry.GetSceneByOID(rec.SceneOID); err != nil {
				c.logger.Debug("dropping event for untracked scene",
					"kind", rec.Kind, "scene_oid", rec.SceneOID)
				continue
			}
		}
		c.queue.Publish(rec)
		c.mirrorEvent(rec)
	}

	if tr.reconcile {
		runCtx := c.runContext()
		go func() {
			if err := c.Reconcile(runCtx); err != nil {
				c.logger.Error("reconcile after inventory change failed", "error", err)
			}
		}()
	}
	if tr.alive {
		c.logger.Debug("gateway heartbeat")
	}
}

// mirrorEvent forwards a canonical event to the status sink when it
// doubles as an event publisher.
func (c *Controller) mirrorEvent(rec *events.Record) {
	pub, ok := c.status.(EventPublisher)
	if !ok {
		return
	}
	payload, err := json.Marshal(struct {
		DeviceURL string    `json:"device_url,omitempty"`
		SceneOID  string    `json:"scene_oid,omitempty"`
		Timestamp time.Time `json:"timestamp"`
	}{rec.DeviceURL, rec.SceneOID, rec.Timestamp})
	if err != nil {
		return
	}
	if err := pub.PublishEvent(string(rec.Kind), payload); err != nil {
		c.logger.Warn("event mirror publish failed", "kind", rec.Kind, "error", err)
	}
}

func (c *Controller) runContext() context.Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.runCtx != nil {
		return c.runCtx
	}
	return context.Background()
}

// healthLoop restarts a poller that died to a transient condition the
// run loop could not absorb, as long as no fatal error was raised.
func (c *Controller) healthLoop(ctx context.Context) {
	defer c.wg.Done()
	ticker := time.NewTicker(healthInterval)
	defer ticker.Stop()
	beat := false
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			beat = !beat
			c.setStatus("system", "heartbeat", beat)
			if !c.poller.Running() {
				if c.fatalRaised.Load() {
					return
				}
				c.logger.Warn("event poller idle, restarting")
				c.poller.Start(ctx)
			}
			stats := c.registry.GetStats()
			c.logger.Debug("health tick",
				"shades", stats.Shades,
				"online", stats.ShadesOnline,
				"scenes", stats.Scenes,
				"active_scenes", stats.ActiveScenes,
				"queued", c.queue.Len())
		}
	}
}

// --- consumer loop bookkeeping ---------------------------------------

// claimLoop registers a consumer loop for the address and returns its
// context. ok is false when a loop already runs there.
func (c *Controller) claimLoop(address string) (ctx context.Context, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.loops[address]; exists {
		return nil, false
	}
	parent := c.runCtx
	if parent == nil {
		parent = context.Background()
	}
	loopCtx, cancel := context.WithCancel(parent)
	c.loops[address] = cancel
	return loopCtx, true
}

// releaseLoop drops the bookkeeping entry after a loop exits on its
// own, as on retirement through a snapshot.
func (c *Controller) releaseLoop(address string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cancel, exists := c.loops[address]; exists {
		delete(c.loops, address)
		cancel()
	}
}

// stopLoop cancels a running loop. The loop itself wakes on the next
// queue publish and exits through its context check.
func (c *Controller) stopLoop(address string) {
	c.releaseLoop(address)
}

// --- command surface -------------------------------------------------

// OpenShade raises the shade fully.
func (c *Controller) OpenShade(ctx context.Context, address string) error {
	return c.sendShadeCommand(ctx, address, overkiz.Command{Name: "open"})
}

// CloseShade lowers the shade fully.
func (c *Controller) CloseShade(ctx context.Context, address string) error {
	return c.sendShadeCommand(ctx, address, overkiz.Command{Name: "close"})
}

// StopShade halts movement in place.
func (c *Controller) StopShade(ctx context.Context, address string) error {
	return c.sendShadeCommand(ctx, address, overkiz.Command{Name: "stop"})
}

// MyPosition moves the shade to its stored favourite position.
func (c *Controller) MyPosition(ctx context.Context, address string) error {
	return c.sendShadeCommand(ctx, address, overkiz.Command{Name: "my"})
}

// TiltOpen levels the slats.
func (c *Controller) TiltOpen(ctx context.Context, address string) error {
	return c.sendShadeCommand(ctx, address, overkiz.Command{
		Name:       "setOrientation",
		Parameters: []any{50},
	})
}

// TiltClose closes the slats.
func (c *Controller) TiltClose(ctx context.Context, address string) error {
	return c.sendShadeCommand(ctx, address, overkiz.Command{
		Name:       "setOrientation",
		Parameters: []any{0},
	})
}

// SetPositions drives each axis carried in p. Axes left nil are not
// touched. Values are percent, 0 open through 100 closed.
func (c *Controller) SetPositions(ctx context.Context, address string, p device.Positions) error {
	sh, err := c.registry.GetShade(address)
	if err != nil {
		return fmt.Errorf("%w: shade %q", ErrEntityNotFound, address)
	}
	axes := sh.Capability.Axes()
	var cmds []overkiz.Command
	if p.Primary != nil && axes.Primary {
		cmds = append(cmds, overkiz.Command{Name: "setClosure", Parameters: []any{clampPercent(*p.Primary)}})
	}
	if p.Secondary != nil && axes.Secondary {
		cmds = append(cmds, overkiz.Command{Name: "setDeployment", Parameters: []any{clampPercent(*p.Secondary)}})
	}
	if p.Tilt != nil && axes.Tilt {
		cmds = append(cmds, overkiz.Command{Name: "setOrientation", Parameters: []any{clampPercent(*p.Tilt)}})
	}
	if len(cmds) == 0 {
		return nil
	}
	for _, cmd := range cmds {
		if err := c.execute(ctx, sh.DeviceURL, cmd); err != nil {
			return err
		}
	}
	return nil
}

// ActivateScene runs the scene's action group on the gateway.
func (c *Controller) ActivateScene(ctx context.Context, address string) error {
	sc, err := c.registry.GetScene(address)
	if err != nil {
		return fmt.Errorf("%w: scene %q", ErrEntityNotFound, address)
	}
	cmdCtx, cancel := context.WithTimeout(ctx, c.cmdTimeout)
	defer cancel()
	execID, err := c.gw.ExecuteScenario(cmdCtx, sc.OID)
	if err != nil || execID == "" {
		c.logger.Error("scene activation failed",
			"address", address, "oid", sc.OID, "error", err)
		return fmt.Errorf("%w: scene %q", ErrCommandDropped, address)
	}
	c.logger.Info("scene activated", "address", address, "exec_id", execID)
	return nil
}

// RefreshEntity republishes the full known state of one entity to the
// status sink.
func (c *Controller) RefreshEntity(ctx context.Context, address string) error {
	if sh, err := c.registry.GetShade(address); err == nil {
		c.pushShadeStatus(sh)
		return nil
	}
	if sc, err := c.registry.GetScene(address); err == nil {
		c.pushSceneStatus(sc)
		return nil
	}
	return fmt.Errorf("%w: %q", ErrEntityNotFound, address)
}

func (c *Controller) sendShadeCommand(ctx context.Context, address string, cmd overkiz.Command) error {
	sh, err := c.registry.GetShade(address)
	if err != nil {
		return fmt.Errorf("%w: shade %q", ErrEntityNotFound, address)
	}
	return c.execute(ctx, sh.DeviceURL, cmd)
}

func (c *Controller) execute(ctx context.Context, deviceURL string, cmd overkiz.Command) error {
	cmdCtx, cancel := context.WithTimeout(ctx, c.cmdTimeout)
	defer cancel()
	execID, err := c.gw.ExecuteCommand(cmdCtx, deviceURL, cmd)
	if err != nil || execID == "" {
		c.logger.Error("command dropped",
			"device_url", deviceURL, "command", cmd.Name, "error", err)
		if errors.Is(err, overkiz.ErrExecutionQueueFull) {
			c.logger.Warn("gateway execution queue full, command not retried")
		}
		return fmt.Errorf("%w: %s", ErrCommandDropped, cmd.Name)
	}
	c.logger.Debug("command accepted",
		"device_url", deviceURL, "command", cmd.Name, "exec_id", execID)
	return nil
}

// --- status fan-out --------------------------------------------------

func (c *Controller) pushShadeStatus(sh *device.Shade) {
	c.setStatus(sh.Address, "label", sh.Label)
	c.setStatus(sh.Address, "online", sh.Online)
	c.setStatus(sh.Address, "moving", sh.Moving)
	axes := sh.Capability.Axes()
	if axes.Primary && sh.Positions.Primary != nil {
		c.setStatus(sh.Address, "primary", *sh.Positions.Primary)
		c.recorder.WritePosition(sh.Address, "primary", float64(*sh.Positions.Primary))
	}
	if axes.Secondary && sh.Positions.Secondary != nil {
		c.setStatus(sh.Address, "secondary", *sh.Positions.Secondary)
		c.recorder.WritePosition(sh.Address, "secondary", float64(*sh.Positions.Secondary))
	}
	if axes.Tilt && sh.Positions.Tilt != nil {
		c.setStatus(sh.Address, "tilt", *sh.Positions.Tilt)
		c.recorder.WritePosition(sh.Address, "tilt", float64(*sh.Positions.Tilt))
	}
	if sh.Battery != nil {
		c.setStatus(sh.Address, "battery", *sh.Battery)
		c.recorder.WriteBattery(sh.Address, float64(*sh.Battery))
	}
	if sh.RSSI != nil {
		c.setStatus(sh.Address, "rssi", *sh.RSSI)
		c.recorder.WriteSignal(sh.Address, float64(*sh.RSSI))
	}
}

func (c *Controller) pushSceneStatus(sc *device.Scene) {
	c.setStatus(sc.Address, "label", sc.Label)
	c.setStatus(sc.Address, "active", sc.Active)
}

func (c *Controller) setStatus(address, field string, value any) {
	if err := c.status.SetStatus(address, field, value); err != nil {
		c.logger.Warn("status publish failed",
			"address", address, "field", field, "error", err)
	}
}

func clampPercent(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// --- nil-safe collaborators ------------------------------------------

type noopEntities struct{}

func (noopEntities) CreateEntity(context.Context, string, string, string) error { return nil }
func (noopEntities) RetireEntity(context.Context, string) error                 { return nil }
func (noopEntities) Rename(context.Context, string, string) error               { return nil }

type noopSink struct{}

func (noopSink) SetStatus(string, string, any) error { return nil }

type noopRecorder struct{}

func (noopRecorder) WritePosition(string, string, float64) {}
func (noopRecorder) WriteBattery(string, float64)          {}
func (noopRecorder) WriteSignal(string, float64)           {}
func (noopRecorder) WriteSceneActivity(string, bool)       {}
