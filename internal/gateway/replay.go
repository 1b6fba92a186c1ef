package gateway

import "sync"

type replayEntry struct {
	seq  int64
	data []byte
}

// ReplayBuffer is a fixed-size ring of recently broadcast envelopes for
// one channel. Clients that detect a channel_seq gap request the missed
// range instead of reloading the whole dashboard.
type ReplayBuffer struct {
	mu   sync.RWMutex
	ring []replayEntry
	next int
	full bool
}

// NewReplayBuffer creates a buffer holding up to capacity envelopes.
func NewReplayBuffer(capacity int) *ReplayBuffer {
	if capacity <= 0 {
		capacity = replayBufferCap
	}
	return &ReplayBuffer{ring: make([]replayEntry, capacity)}
}

// Push stores an envelope, overwriting the oldest once full. The data
// is copied; the caller's slice is reused by the broadcast path.
func (rb *ReplayBuffer) Push(seq int64, data []byte) {
	cp := make([]byte, len(data))
	copy(cp, data)

	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.ring[rb.next] = replayEntry{seq: seq, data: cp}
	rb.next = (rb.next + 1) % len(rb.ring)
	if rb.next == 0 {
		rb.full = true
	}
}

// Range returns envelopes with seq in [from, to], oldest first.
func (rb *ReplayBuffer) Range(from, to int64) [][]byte {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	var out [][]byte
	for i := 0; i < rb.len(); i++ {
		e := rb.ring[rb.index(i)]
		if e.seq >= from && e.seq <= to {
			out = append(out, e.data)
		}
	}
	return out
}

// Len returns the number of stored envelopes.
func (rb *ReplayBuffer) Len() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.len()
}

func (rb *ReplayBuffer) len() int {
	if rb.full {
		return len(rb.ring)
	}
	return rb.next
}

func (rb *ReplayBuffer) index(logical int) int {
	if rb.full {
		return (rb.next + logical) % len(rb.ring)
	}
	return logical
}
