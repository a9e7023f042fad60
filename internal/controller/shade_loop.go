package controller

import (
	"context"

	"github.com/sejgit/shadesync/internal/device"
	"github.com/sejgit/shadesync/internal/events"
)

// startShadeLoop launches the consumer loop for one shade. Starting a
// loop that is already running is a no-op.
func (c *Controller) startShadeLoop(address, deviceURL string) {
	ctx, ok := c.claimLoop(address)
	if !ok {
		return
	}
	c.wg.Add(1)
	go c.shadeLoop(ctx, address, deviceURL)
}

// shadeLoop is one shade's consumer. Each wake handles broadcast
// snapshots addressed to this shade first, then at most one
// entity-addressed record, and only when that record is the oldest on
// the queue. Younger records wait their turn so state applies in
// gateway order across all entities.
func (c *Controller) shadeLoop(ctx context.Context, address, deviceURL string) {
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
			if rec.Kind != events.KindHomeSnapshot || !rec.HasShade(address) {
				continue
			}
			if sh, err := c.registry.GetShade(address); err == nil {
				c.pushShadeStatus(sh)
			}
			if rec.RemoveShade(address) {
				c.queue.Remove(rec)
			}
		}

		oldest := oldestEntityRecord(recs)
		if oldest == nil || oldest.DeviceURL != deviceURL || oldest.SceneOID != "" {
			continue
		}
		c.applyShadeRecord(ctx, address, deviceURL, oldest)
		c.queue.Remove(oldest)
	}
}

// oldestEntityRecord picks the entity-addressed record with the
// smallest timestamp. Broadcast records are consumed separately and
// carry no ordering.
func oldestEntityRecord(recs []*events.Record) *events.Record {
	var oldest *events.Record
	for _, r := range recs {
		if r.Broadcast() {
			continue
		}
		if oldest == nil || r.Timestamp.Before(oldest.Timestamp) {
			oldest = r
		}
	}
	return oldest
}

// applyShadeRecord folds one canonical event into the registry and
// fans the change out to the status sink and recorder.
func (c *Controller) applyShadeRecord(ctx context.Context, address, deviceURL string, rec *events.Record) {
	switch rec.Kind {
	case events.KindDeviceStateChanged:
		c.applyStateChange(ctx, address, deviceURL, rec)

	case events.KindMotionStarted:
		if err := c.registry.SetMoving(deviceURL, true); err != nil {
			c.logger.Warn("motion update failed", "address", address, "error", err)
			return
		}
		c.setStatus(address, "moving", true)

	case events.KindMotionStopped:
		if err := c.registry.SetMoving(deviceURL, false); err != nil {
			c.logger.Warn("motion update failed", "address", address, "error", err)
			return
		}
		c.setStatus(address, "moving", false)
		c.requestSceneRecompute(deviceURL, rec)

	case events.KindDeviceOnline, events.KindDeviceOffline:
		online := rec.Kind == events.KindDeviceOnline
		if err := c.registry.SetOnline(ctx, deviceURL, online); err != nil {
			c.logger.Warn("reachability update failed", "address", address, "error", err)
			return
		}
		c.setStatus(address, "online", online)
		if !online {
			c.logger.Warn("shade unreachable", "address", address)
		}

	case events.KindBatteryAlert:
		c.logger.Warn("shade battery low", "address", address)
		c.setStatus(address, "battery_alert", true)
	}
}

func (c *Controller) applyStateChange(ctx context.Context, address, deviceURL string, rec *events.Record) {
	var p device.Positions
	if v, ok := rec.States[keyPrimary]; ok {
		p.Primary = &v
	}
	if v, ok := rec.States[keySecondary]; ok {
		p.Secondary = &v
	}
	if v, ok := rec.States[keyTilt]; ok {
		p.Tilt = &v
	}
	if p.Primary != nil || p.Secondary != nil || p.Tilt != nil {
		if err := c.registry.UpdatePositions(ctx, deviceURL, p); err != nil {
			c.logger.Warn("position update failed", "address", address, "error", err)
			return
		}
		if p.Primary != nil {
			c.setStatus(address, "primary", *p.Primary)
			c.recorder.WritePosition(address, "primary", float64(*p.Primary))
		}
		if p.Secondary != nil {
			c.setStatus(address, "secondary", *p.Secondary)
			c.recorder.WritePosition(address, "secondary", float64(*p.Secondary))
		}
		if p.Tilt != nil {
			c.setStatus(address, "tilt", *p.Tilt)
			c.recorder.WritePosition(address, "tilt", float64(*p.Tilt))
		}
	}

	if v, ok := rec.States[keyBattery]; ok {
		if err := c.registry.SetBattery(ctx, deviceURL, v); err != nil {
			c.logger.Warn("battery update failed", "address", address, "error", err)
		} else {
			c.setStatus(address, "battery", v)
			c.recorder.WriteBattery(address, float64(v))
		}
	}
	if v, ok := rec.States[keyRSSI]; ok {
		if err := c.registry.SetSignal(ctx, deviceURL, v); err != nil {
			c.logger.Warn("signal update failed", "address", address, "error", err)
		} else {
			c.setStatus(address, "rssi", v)
			c.recorder.WriteSignal(address, float64(v))
		}
	}
}

// requestSceneRecompute publishes a recompute broadcast for every
// scene whose membership includes the shade that just stopped. Scenes
// re-derive their activity from settled positions.
func (c *Controller) requestSceneRecompute(deviceURL string, rec *events.Record) {
	scenes := c.registry.ScenesForDevice(deviceURL)
	if len(scenes) == 0 {
		return
	}
	oids := make([]string, 0, len(scenes))
	for _, sc := range scenes {
		oids = append(oids, sc.OID)
	}
	c.queue.Publish(events.NewSceneRecompute(deviceURL, oids, rec.Timestamp))
}
