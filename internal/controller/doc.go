// Package controller is the sync core: it wires the gateway client,
// event queue, entity registry and scene calculator into the
// eventually-consistent loop that keeps local entities matching the
// remote shade population.
//
// # Architecture
//
//	                 ┌────────────┐
//	   gateway ◀────▶│   Poller   │ fetch → translate → publish
//	                 └─────┬──────┘
//	                       ▼
//	                 ┌────────────┐
//	                 │ EventQueue │ one shared, versioned sequence
//	                 └─────┬──────┘
//	          wake all     │
//	        ┌──────────────┼──────────────┐
//	        ▼              ▼              ▼
//	  shade loop     shade loop      scene loop     (one per entity)
//	        │              │              │
//	        ▼              ▼              ▼
//	  ┌─────────────────────────────────────────┐
//	  │             Entity Registry             │
//	  └─────────────────────────────────────────┘
//	                       │
//	                       ▼
//	            StatusSink (MQTT topics)
//
// Discovery / reconciliation diffs the remote device and scenario
// lists against the registry, creates or retires entities through the
// EntityManager, and finishes by broadcasting a home snapshot so every
// consumer refreshes itself.
//
// # Delivery semantics
//
// Per entity, at-least-once in timestamp order; across entities, no
// order at all. Each consumer loop picks the oldest timestamped record
// per wakeup and only acts when the record targets it. Broadcast
// records (home snapshot, scene recompute) are consumed incrementally:
// each named entity removes itself from the record's membership list
// and the last one out removes the record.
//
// Per-record failures are logged and skipped; a consumer loop only
// exits on shutdown.
package controller
