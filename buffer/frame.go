package buffer

import (
	"sync"

	"github.com/malzahar/jindb/config"
	"github.com/malzahar/jindb/page"
)

// frame is one slot of the buffer pool: a page-sized byte buffer plus
// the book-keeping the pool needs to decide when it can be reused.
//
// latch guards the frame's contents (data, dirty) for crab-latched
// page access. It also gives the pool a place to perform disk I/O
// (the initial read on a cache miss, a dirty write-back on eviction)
// without holding Pool.mu: the pool reserves the frame slot and
// registers it in pageTable under a short mu-guarded section, then
// does the actual read/write under this latch after releasing mu. Any
// caller that acquires the returned FrameHandle's latch before the
// load finishes simply blocks on it, same as it would for an ordinary
// page mutation.
type frame struct {
	latch    sync.RWMutex
	id       config.PageId
	data     []byte
	pinCount int
	dirty    bool
}

// FrameHandle is the caller-facing view of a pinned frame. It exposes
// the page's identity and LSN directly, and leaves byte-level contents
// to whichever package (page, relation) interprets them, while letting
// callers participate in crab-latching via Lock/Unlock/RLock/RUnlock.
type FrameHandle struct {
	pool *Pool
	f    *frame
}

// GetID returns the page id held by this frame.
func (h *FrameHandle) GetID() config.PageId {
	return h.f.id
}

// Bytes returns the frame's raw page buffer. Callers must hold the
// frame's latch (via Lock/RLock) before reading or writing it.
func (h *FrameHandle) Bytes() []byte {
	return h.f.data
}

// GetLSN reads the page's log sequence number out of its header.
func (h *FrameHandle) GetLSN() uint32 {
	return page.LSN(h.f.data)
}

// SetLSN writes the page's log sequence number into its header and
// marks the frame dirty.
func (h *FrameHandle) SetLSN(lsn uint32) {
	page.SetLSN(h.f.data, lsn)
	h.f.dirty = true
}

// SetDirty marks (or clears) the frame's dirty flag directly, for
// callers that mutate Bytes() without going through SetLSN.
func (h *FrameHandle) SetDirty(dirty bool) {
	h.f.dirty = dirty
}

// Lock acquires the frame's write latch, for exclusive access during a
// crab-latched page mutation.
func (h *FrameHandle) Lock() { h.f.latch.Lock() }

// Unlock releases the frame's write latch.
func (h *FrameHandle) Unlock() { h.f.latch.Unlock() }

// RLock acquires the frame's read latch.
func (h *FrameHandle) RLock() { h.f.latch.RLock() }

// RUnlock releases the frame's read latch.
func (h *FrameHandle) RUnlock() { h.f.latch.RUnlock() }

// Unpin releases this handle's pin on the underlying frame via the
// owning pool, optionally marking it dirty.
func (h *FrameHandle) Unpin(dirty bool) error {
	return h.pool.Unpin(h.f.id, dirty)
}
