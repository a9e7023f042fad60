// Package events provides the shared event queue at the heart of shadesync.
//
// Gateway events fetched by the poller are translated into canonical Records
// and published onto a single Queue. Every entity consumer loop (one per
// shade, one per scene) blocks on the same queue and picks out the records
// addressed to it. Broadcast records (home snapshots, scene recomputes)
// carry a membership list that consumers remove themselves from; the last
// consumer out removes the record itself.
//
//	          ┌──────────┐
//	 gateway  │  Poller  │
//	 events ─▶│ translate│
//	          └────┬─────┘
//	               │ Publish
//	               ▼
//	          ┌──────────┐   Wait/Remove   ┌───────────────┐
//	          │  Queue   │◀───────────────▶│ shade loop ×N │
//	          │ (Records)│◀───────────────▶│ scene loop ×M │
//	          └──────────┘                 └───────────────┘
//
// # Delivery Semantics
//
// Delivery is at-least-once per entity with no ordering guarantee across
// entities. A consumer that wakes and finds nothing addressed to it goes
// back to sleep until the queue changes again; the version counter passed
// to Wait prevents busy-spinning on records that linger for other
// consumers.
//
// # Thread Safety
//
// Queue and Record are safe for concurrent use. Records are shared by
// pointer between consumers; membership mutation goes through Record
// methods which hold the record's own lock.
//
// # Limitations
//
// The queue is unbounded. A stalled consumer lets broadcast records
// accumulate; this mirrors the gateway's own event listener semantics and
// is acceptable at residential scale (tens of entities).
package events
