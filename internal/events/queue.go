package events

import "sync"

// Queue is the shared event list all entity consumers block on.
//
// Publish appends and wakes every waiter. Wait blocks until the queue is
// non-empty and has changed since the caller's last look, then returns the
// live records. Remove deletes by pointer identity and is idempotent, so
// two consumers racing to remove the same record is harmless.
type Queue struct {
	mu      sync.Mutex
	nonZero sync.Cond

	records []*Record

	// version increments on every publish and remove. Wait callers pass
	// the version they last saw so they sleep instead of re-scanning a
	// queue that holds only records destined for other consumers.
	version uint64

	closed bool
}

// NewQueue returns an empty, open queue.
func NewQueue() *Queue {
	q := &Queue{}
	q.nonZero.L = &q.mu
	return q
}

// Publish appends a record and wakes all waiting consumers.
// Publishing on a closed queue is a silent no-op.
func (q *Queue) Publish(rec *Record) {
	if rec == nil {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.records = append(q.records, rec)
	q.version++
	q.nonZero.Broadcast()
}

// Wait blocks until the queue holds at least one record and its version
// differs from lastSeen, then returns a snapshot of the current records,
// the current version, and true. The returned slice is a copy; the records
// themselves are shared.
//
// When the queue is shut down Wait returns immediately with ok=false.
// Pass 0 as lastSeen on the first call.
func (q *Queue) Wait(lastSeen uint64) (recs []*Record, version uint64, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for !q.closed && (len(q.records) == 0 || q.version == lastSeen) {
		q.nonZero.Wait()
	}
	if q.closed {
		return nil, q.version, false
	}
	out := make([]*Record, len(q.records))
	copy(out, q.records)
	return out, q.version, true
}

// Remove deletes the record from the queue, matching by pointer identity.
// Removing a record that is already gone is a no-op, so consumers racing
// on a drained broadcast record need no extra coordination.
func (q *Queue) Remove(rec *Record) {
	if rec == nil {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, r := range q.records {
		if r == rec {
			q.records = append(q.records[:i], q.records[i+1:]...)
			q.version++
			q.nonZero.Broadcast()
			return
		}
	}
}

// Len returns the current number of queued records.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.records)
}

// Shutdown closes the queue and wakes every waiter with ok=false.
// Pending records are discarded; event history is never persisted.
func (q *Queue) Shutdown() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.records = nil
	q.nonZero.Broadcast()
}

// Closed reports whether Shutdown has been called.
func (q *Queue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}
