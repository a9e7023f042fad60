package controller

import (
	"context"
	"fmt"
	"time"

	"github.com/sejgit/shadesync/internal/device"
	"github.com/sejgit/shadesync/internal/events"
	"github.com/sejgit/shadesync/internal/overkiz"
)

const entityConfirmTimeout = 30 * time.Second

// Reconcile aligns the local registry and entity set with the
// gateway's inventory: new devices and scenarios become entities with
// consumer loops, renamed ones propagate their label, vanished ones
// are retired. The pass ends with a home-snapshot broadcast so every
// surviving consumer refreshes itself.
//
// At most one pass runs at a time. A pass requested while another is
// in flight coalesces into it and returns nil.
func (c *Controller) Reconcile(ctx context.Context) error {
	if !c.reconciling.CompareAndSwap(false, true) {
		c.logger.Info("discovery already running, request coalesced")
		return nil
	}
	defer c.reconciling.Store(false)

	devices, err := c.gw.ListDevices(ctx)
	if err != nil {
		return fmt.Errorf("list devices: %w", err)
	}
	groups, err := c.gw.ListScenarios(ctx)
	if err != nil {
		return fmt.Errorf("list action groups: %w", err)
	}

	seenShades := make(map[string]bool)
	seenScenes := make(map[string]bool)
	var shadeAddrs, sceneOIDs []string

	for i := range devices {
		d := &devices[i]
		if !d.Enabled || !coveringDevice(d.ControllableName) {
			continue
		}
		addr := ShadeAddress(d.DeviceURL)
		if err := c.reconcileShade(ctx, d, addr); err != nil {
			c.logger.Warn("shade discovery skipped",
				"address", addr, "device_url", d.DeviceURL, "error", err)
			continue
		}
		seenShades[addr] = true
		shadeAddrs = append(shadeAddrs, addr)
	}

	for i := range groups {
		g := &groups[i]
		addr := SceneAddress(g.OID)
		if err := c.reconcileScene(ctx, g, addr); err != nil {
			c.logger.Warn("scene discovery skipped",
				"address", addr, "oid", g.OID, "error", err)
			continue
		}
		seenScenes[g.OID] = true
		sceneOIDs = append(sceneOIDs, g.OID)
	}

	c.retireVanished(ctx, seenShades, seenScenes)

	if len(shadeAddrs)+len(sceneOIDs) > 0 {
		c.queue.Publish(events.NewHomeSnapshot(shadeAddrs, sceneOIDs))
	}
	c.logger.Info("discovery complete",
		"shades", len(shadeAddrs), "scenes", len(sceneOIDs))
	return nil
}

// reconcileShade creates or refreshes one shade. New shades block on
// host entity confirmation before they enter the registry.
func (c *Controller) reconcileShade(ctx context.Context, d *overkiz.Device, addr string) error {
	fresh := shadeFromDevice(d, addr)

	existing, err := c.registry.GetShadeByURL(d.DeviceURL)
	if err != nil {
		// New device. Materialize the host entity first so the loop
		// never publishes into a topic nobody prepared.
		confirmCtx, cancel := context.WithTimeout(ctx, entityConfirmTimeout)
		defer cancel()
		if err := c.entities.CreateEntity(confirmCtx, KindShade, addr, d.Label); err != nil {
			return fmt.Errorf("create entity: %w", err)
		}
		if err := c.registry.UpsertShade(ctx, fresh); err != nil {
			return fmt.Errorf("register shade: %w", err)
		}
		c.startShadeLoop(addr, d.DeviceURL)
		c.logger.Info("shade discovered",
			"address", addr, "label", d.Label, "capability", fresh.Capability.String())
		return nil
	}

	// Known device. Keep locally accumulated state where the setup
	// listing carries nothing fresher. The registry hands back a
	// private copy, so mutating it here is safe.
	prevLabel := existing.Label
	merged := existing
	merged.Label = d.Label
	merged.ControllableName = d.ControllableName
	merged.RoomID = d.PlaceOID
	merged.Capability = fresh.Capability
	merged.Online = d.Available
	mergePositions(&merged.Positions, fresh.Positions)
	if fresh.Battery != nil {
		merged.Battery = fresh.Battery
	}
	if fresh.RSSI != nil {
		merged.RSSI = fresh.RSSI
	}
	if prevLabel != d.Label {
		if err := c.entities.Rename(ctx, addr, d.Label); err != nil {
			c.logger.Warn("entity rename failed", "address", addr, "error", err)
		}
	}
	if err := c.registry.UpsertShade(ctx, merged); err != nil {
		return fmt.Errorf("refresh shade: %w", err)
	}
	c.startShadeLoop(addr, d.DeviceURL)
	return nil
}

// reconcileScene creates or refreshes one scene from its action group.
func (c *Controller) reconcileScene(ctx context.Context, g *overkiz.ActionGroup, addr string) error {
	fresh := &device.Scene{
		OID:     g.OID,
		Address: addr,
		Label:   g.Label,
		Members: sceneMembers(g),
	}

	existing, err := c.registry.GetSceneByOID(g.OID)
	if err != nil {
		confirmCtx, cancel := context.WithTimeout(ctx, entityConfirmTimeout)
		defer cancel()
		if err := c.entities.CreateEntity(confirmCtx, KindScene, addr, g.Label); err != nil {
			return fmt.Errorf("create entity: %w", err)
		}
		if err := c.registry.UpsertScene(ctx, fresh); err != nil {
			return fmt.Errorf("register scene: %w", err)
		}
		c.startSceneLoop(addr, g.OID)
		c.logger.Info("scene discovered",
			"address", addr, "label", g.Label, "members", len(fresh.Members))
		return nil
	}

	fresh.Active = existing.Active
	if existing.Label != g.Label {
		if err := c.entities.Rename(ctx, addr, g.Label); err != nil {
			c.logger.Warn("entity rename failed", "address", addr, "error", err)
		}
	}
	if err := c.registry.UpsertScene(ctx, fresh); err != nil {
		return fmt.Errorf("refresh scene: %w", err)
	}
	c.startSceneLoop(addr, g.OID)
	return nil
}

// retireVanished removes entities the gateway no longer reports.
func (c *Controller) retireVanished(ctx context.Context, seenShades, seenScenes map[string]bool) {
	for _, sh := range c.registry.ListShades() {
		if seenShades[sh.Address] {
			continue
		}
		c.logger.Info("shade vanished from gateway", "address", sh.Address)
		if err := c.entities.RetireEntity(ctx, sh.Address); err != nil {
			c.logger.Warn("entity retire failed", "address", sh.Address, "error", err)
		}
		c.stopLoop(sh.Address)
		if err := c.registry.RemoveShade(ctx, sh.Address); err != nil {
			c.logger.Warn("shade removal failed", "address", sh.Address, "error", err)
		}
	}
	for _, sc := range c.registry.ListScenes() {
		if seenScenes[sc.OID] {
			continue
		}
		c.logger.Info("scene vanished from gateway", "address", sc.Address)
		if err := c.entities.RetireEntity(ctx, sc.Address); err != nil {
			c.logger.Warn("entity retire failed", "address", sc.Address, "error", err)
		}
		c.stopLoop(sc.Address)
		if err := c.registry.RemoveScene(ctx, sc.Address); err != nil {
			c.logger.Warn("scene removal failed", "address", sc.Address, "error", err)
		}
	}
}

// shadeFromDevice builds a registry record from a setup listing entry.
func shadeFromDevice(d *overkiz.Device, addr string) *device.Shade {
	sh := &device.Shade{
		DeviceURL:        d.DeviceURL,
		Address:          addr,
		Label:            d.Label,
		ControllableName: d.ControllableName,
		RoomID:           d.PlaceOID,
		Capability:       Classify(d.ControllableName),
		Online:           d.Available,
	}
	if v, ok := asInt(d.State(stateClosure)); ok {
		sh.Positions.Primary = &v
	}
	if v, ok := asInt(d.State(stateDeployment)); ok {
		sh.Positions.Secondary = &v
	}
	if v, ok := asInt(d.State(stateOrientation)); ok {
		sh.Positions.Tilt = &v
	}
	if v, ok := asInt(d.State(stateBatteryPct)); ok {
		sh.Battery = &v
	}
	if v, ok := asInt(d.State(stateRSSI)); ok {
		sh.RSSI = &v
	}
	return sh
}

// sceneMembers flattens an action group into per-axis position
// targets. Position targets are scaled so consumers comparing against
// percent positions divide by 100; tilt targets stay in degrees of
// percent as reported.
func sceneMembers(g *overkiz.ActionGroup) []device.SceneMember {
	var members []device.SceneMember
	for _, action := range g.Actions {
		for _, cmd := range action.Commands {
			var stateName string
			var target int
			switch cmd.Name {
			case "open":
				stateName, target = "pos1", 0
			case "close":
				stateName, target = "pos1", 100*100
			case "setClosure":
				v, ok := firstParam(&cmd)
				if !ok {
					continue
				}
				stateName, target = "pos1", v*100
			case "setDeployment":
				v, ok := firstParam(&cmd)
				if !ok {
					continue
				}
				stateName, target = "pos2", v*100
			case "setOrientation":
				v, ok := firstParam(&cmd)
				if !ok {
					continue
				}
				stateName, target = "tilt", v
			default:
				continue
			}
			members = append(members, device.SceneMember{
				DeviceURL: action.DeviceURL,
				StateName: stateName,
				Target:    target,
			})
		}
	}
	return members
}

func firstParam(cmd *overkiz.Command) (int, bool) {
	if len(cmd.Parameters) == 0 {
		return 0, false
	}
	return asInt(cmd.Parameters[0])
}

func mergePositions(dst *device.Positions, src device.Positions) {
	if src.Primary != nil {
		dst.Primary = src.Primary
	}
	if src.Secondary != nil {
		dst.Secondary = src.Secondary
	}
	if src.Tilt != nil {
		dst.Tilt = src.Tilt
	}
}
