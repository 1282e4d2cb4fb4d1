package frame

import (
	"sort"
	"sync"
)

// Cursor tracks per-SID state while frames are processed. It is safe
// for concurrent use.
type Cursor struct {
	mu      sync.RWMutex
	streams map[uint64]*StreamState
}

// StreamState holds state for a single stream ID.
type StreamState struct {
	SID        uint64
	LastSeq    uint64  // Last sequence number seen
	LastAcked  uint64  // Last sequence number acknowledged
	Frames     int     // Frames accepted
	LastDigest *Digest // Most recent digest passed to RecordDigest
	Final      bool    // Whether the stream has ended
}

// NewCursor creates a new cursor.
func NewCursor() *Cursor {
	return &Cursor{streams: make(map[uint64]*StreamState)}
}

// Get returns the state for a SID, creating it if needed.
func (c *Cursor) Get(sid uint64) *StreamState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.getLocked(sid)
}

func (c *Cursor) getLocked(sid uint64) *StreamState {
	state, ok := c.streams[sid]
	if !ok {
		state = &StreamState{SID: sid}
		c.streams[sid] = state
	}
	return state
}

// Lookup returns a copy of the state for a SID without creating it.
func (c *Cursor) Lookup(sid uint64) (StreamState, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	state, ok := c.streams[sid]
	if !ok {
		return StreamState{}, false
	}
	return *state, true
}

// Delete removes state for a SID.
func (c *Cursor) Delete(sid uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.streams, sid)
}

// SIDs returns all tracked SIDs in ascending order.
func (c *Cursor) SIDs() []uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	sids := make([]uint64, 0, len(c.streams))
	for sid := range c.streams {
		sids = append(sids, sid)
	}
	sort.Slice(sids, func(i, j int) bool { return sids[i] < sids[j] })
	return sids
}

// Process checks a frame's sequence number against its stream and
// records it. Sequence numbers start anywhere and must then increase by
// exactly one. Frames after a final frame are rejected as out of
// sequence. Everything before the first frame counts as acknowledged.
func (c *Cursor) Process(f *Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	state := c.getLocked(f.SID)
	if state.Frames > 0 {
		expected := state.LastSeq + 1
		if state.Final || f.Seq != expected {
			return &SequenceError{SID: f.SID, Expected: expected, Got: f.Seq}
		}
	} else if f.Seq > 0 && state.LastAcked < f.Seq-1 {
		state.LastAcked = f.Seq - 1
	}

	state.LastSeq = f.Seq
	state.Frames++
	if f.Final {
		state.Final = true
	}
	return nil
}

// RecordDigest stores the digest of a doc frame that has been checked.
func (c *Cursor) RecordDigest(sid uint64, d Digest) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.getLocked(sid).LastDigest = &d
}

// Ack marks a sequence as acknowledged.
func (c *Cursor) Ack(sid, seq uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	state := c.getLocked(sid)
	if seq > state.LastAcked {
		state.LastAcked = seq
	}
}

// PendingAcks returns sequences that have been seen but not acked.
func (c *Cursor) PendingAcks(sid uint64) []uint64 {
	state, ok := c.Lookup(sid)
	if !ok || state.LastSeq <= state.LastAcked {
		return nil
	}
	pending := make([]uint64, 0, state.LastSeq-state.LastAcked)
	for seq := state.LastAcked + 1; seq <= state.LastSeq; seq++ {
		pending = append(pending, seq)
	}
	return pending
}
