package controller

import (
	"context"

	"github.com/sejgit/shadesync/internal/events"
	"github.com/sejgit/shadesync/internal/scene"
)

// startSceneLoop launches the consumer loop for one scene. Starting a
// loop that is already running is a no-op.
func (c *Controller) startSceneLoop(address, oid string) {
	ctx, ok := c.claimLoop(address)
	if !ok {
		return
	}
	c.wg.Add(1)
	go c.sceneLoop(ctx, address, oid)
}

// sceneLoop is one scene's consumer. Snapshots and recompute
// broadcasts re-derive activity from member positions; gateway
// execution records track what the gateway believes, which the
// derived state is checked against but never overridden by.
func (c *Controller) sceneLoop(ctx context.Context, address, oid string) {
	defer c.wg.Done()
	defer c.releaseLoop(address)

	var lastSeen uint64
	for {
		recs, version, ok := c.queue.Wait(lastSeen)
		if !ok {
			return
		}
		lastSeen = version
		if ctx.Err() != nil {
			return
		}

		for _, rec := range recs {
			switch rec.Kind {
			case events.KindHomeSnapshot:
				if !rec.HasScene(oid) {
					continue
				}
				c.recomputeScene(ctx, address, oid)
				if sc, err := c.registry.GetSceneByOID(oid); err == nil {
					c.pushSceneStatus(sc)
				}
				if rec.RemoveScene(oid) {
					c.queue.Remove(rec)
				}

			case events.KindSceneRecompute:
				if !rec.HasScene(oid) {
					continue
				}
				c.recomputeScene(ctx, address, oid)
				if rec.RemoveScene(oid) {
					c.queue.Remove(rec)
				}
			}
		}

		oldest := oldestEntityRecord(recs)
		if oldest == nil || oldest.SceneOID != oid {
			continue
		}
		c.applySceneRecord(ctx, address, oid, oldest)
		c.queue.Remove(oldest)
	}
}

func (c *Controller) applySceneRecord(ctx context.Context, address, oid string, rec *events.Record) {
	switch rec.Kind {
	case events.KindSceneActivated:
		c.registry.SetGatewayActive(oid, true)
		c.logger.Info("gateway executed scene", "address", address, "exec_id", rec.ExecID)
		c.checkSceneAgreement(address, oid)

	case events.KindSceneDeactivated:
		c.registry.SetGatewayActive(oid, false)
		c.checkSceneAgreement(address, oid)
	}
}

// recomputeScene re-derives activity from current member positions
// and publishes the result. The status field goes out on every
// evaluation, not just on change, so a consumer that missed the
// retained value or subscribed mid-move still converges; the topic
// is retained and idempotent, so repeats are cheap.
func (c *Controller) recomputeScene(ctx context.Context, address, oid string) {
	sc, err := c.registry.GetSceneByOID(oid)
	if err != nil {
		return
	}
	active := scene.Active(sc, c.registry)
	wasActive, err := c.registry.SetSceneActive(ctx, oid, active)
	if err != nil {
		c.logger.Warn("scene activity update failed", "address", address, "error", err)
		return
	}
	c.setStatus(address, "active", active)
	if wasActive != active {
		c.logger.Info("scene activity changed",
			"address", address, "active", active)
		c.recorder.WriteSceneActivity(address, active)
	}
	c.checkSceneAgreement(address, oid)
}

// checkSceneAgreement logs when the position-derived activity and the
// gateway's execution bookkeeping disagree. The derived state wins;
// the gateway forgets executions across restarts and manual moves.
func (c *Controller) checkSceneAgreement(address, oid string) {
	sc, err := c.registry.GetSceneByOID(oid)
	if err != nil {
		return
	}
	if gw := c.registry.GatewayActive(oid); gw != sc.Active {
		c.logger.Debug("scene activity disagrees with gateway",
			"address", address, "derived", sc.Active, "gateway", gw)
	}
}
