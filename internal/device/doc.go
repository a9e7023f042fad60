// Package device provides the entity registry for shadesync.
//
// The registry is the single source of truth for the last-known state
// of every shade and scene the gateway has reported. Event consumers
// read from it, the discovery pass reconciles it against the remote
// lists, and the scene calculator evaluates activity over it.
//
// # Architecture
//
//	┌──────────────────────────────────────────────────────────────┐
//	│                       Entity Registry                        │
//	│                                                              │
//	│  ┌──────────────────┐        ┌──────────────────┐            │
//	│  │     Registry     │        │    Repository    │            │
//	│  │   (registry.go)  │───────▶│  (repository.go) │            │
//	│  │                  │        │                  │            │
//	│  │ • shade records  │        │ • SQLite queries │            │
//	│  │ • scene records  │        │ • wholesale save │            │
//	│  │ • activity sets  │        │ • member rows    │            │
//	│  │ • single mutex   │        └──────────────────┘            │
//	│  └──────────────────┘                 │                      │
//	└───────────│───────────────────────────│──────────────────────┘
//	            │                           ▼
//	            ▼                  ┌──────────────────────┐
//	   consumer loops, scene       │   SQLite Database    │
//	   calculator, discovery       │ (shades, scenes,     │
//	                               │  scene_members)      │
//	                               └──────────────────────┘
//
// # Key Types
//
//   - Shade: last-known record for one motorized shade
//   - Scene: last-known record for one gateway scenario, with members
//   - CapabilityClass: which position axes a shade supports
//   - Positions: optional primary/secondary/tilt readings
//
// # Usage
//
//	repo := device.NewSQLiteRepository(db)
//	registry := device.NewRegistry(repo)
//	registry.SetLogger(log)
//
//	// Load persisted records on startup, before the first reconcile.
//	if err := registry.Load(ctx); err != nil {
//	    return err
//	}
//
//	// Reconcile writes records wholesale.
//	registry.UpsertShade(ctx, &device.Shade{
//	    DeviceURL:  "io://1234-5678-9012/12345678",
//	    Address:    "sh12345678",
//	    Label:      "Living Room",
//	    Capability: device.ClassBottomUp,
//	})
//
//	// Event consumers merge partial position reports.
//	registry.UpdatePositions(ctx, deviceURL, device.Positions{Primary: &pos})
//
// # Thread Safety
//
// The Registry is safe for concurrent use. A single mutex guards the
// shade and scene maps together with the activity sets, so a scene
// evaluation never interleaves with a member position update. Records
// handed out are deep copies.
package device
