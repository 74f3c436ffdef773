// Package buffer implements the fixed-size buffer pool that mediates
// every access to on-disk pages: callers fetch a pinned FrameHandle,
// mutate or read through it, and unpin it when done. The pool evicts
// unpinned frames through a pluggable Replacer when it needs space for a
// page that isn't already resident.
package buffer

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/malzahar/jindb/apperr"
	"github.com/malzahar/jindb/config"
	"github.com/malzahar/jindb/disk"
)

// Pool is the fixed-size buffer pool. It is safe for concurrent use.
type Pool struct {
	dm  *disk.Manager
	log zerolog.Logger

	mu        sync.Mutex
	frames    []*frame
	pageTable map[config.PageId]int
	freeList  []int
	replacer  Replacer
	metrics   *poolMetrics
}

// NewPool constructs a pool of bufferSize frames backed by dm. policy
// selects the eviction strategy ("LRU", "Clock", or "FIFO"; defaults to
// LRU for any other value). reg may be nil to disable metrics.
func NewPool(dm *disk.Manager, bufferSize int, policy string, logger zerolog.Logger, reg prometheus.Registerer) *Pool {
	p := &Pool{
		dm:        dm,
		log:       logger,
		frames:    make([]*frame, bufferSize),
		pageTable: make(map[config.PageId]int, bufferSize),
		freeList:  make([]int, bufferSize),
		metrics:   newPoolMetrics(reg),
	}
	for i := 0; i < bufferSize; i++ {
		p.frames[i] = &frame{data: make([]byte, dm.PageSize())}
		p.freeList[i] = i
	}
	switch policy {
	case "Clock":
		p.replacer = NewClockReplacer(bufferSize)
	case "FIFO":
		p.replacer = NewFIFOReplacer(bufferSize)
	default:
		p.replacer = NewLRUReplacer(bufferSize)
	}
	return p
}

// Size returns the number of frames in the pool.
func (p *Pool) Size() int { return len(p.frames) }

// PageSize returns the size in bytes of every page the pool manages.
func (p *Pool) PageSize() int { return p.dm.PageSize() }

// acquireFrame reserves an index into p.frames ready to hold a page,
// evicting an unpinned victim when the free list is empty. It performs
// no I/O: if the victim is dirty, it reports that via evictedDirty/
// evictedID so the caller can write it back after releasing p.mu.
// Caller must hold p.mu.
func (p *Pool) acquireFrame() (idx int, evictedID config.PageId, evictedDirty bool, err error) {
	if n := len(p.freeList); n > 0 {
		idx = p.freeList[n-1]
		p.freeList = p.freeList[:n-1]
		return idx, config.InvalidPageID, false, nil
	}

	idx, ok := p.replacer.Victim()
	if !ok {
		return 0, config.InvalidPageID, false, apperr.ErrBufferFull
	}
	victim := p.frames[idx]
	evictedID, evictedDirty = victim.id, victim.dirty
	delete(p.pageTable, victim.id)
	p.metrics.eviction()
	p.log.Debug().Uint32("page_id", uint32(victim.id)).Msg("evicted frame")
	return idx, evictedID, evictedDirty, nil
}

// abortLoad undoes the pageTable/pin bookkeeping FetchPage or CreatePage
// made for pid before the disk I/O that followed it failed, returning
// the frame to the free list.
func (p *Pool) abortLoad(idx int, pid config.PageId) {
	p.mu.Lock()
	defer p.mu.Unlock()
	f := p.frames[idx]
	delete(p.pageTable, pid)
	f.id = config.InvalidPageID
	f.pinCount = 0
	f.dirty = false
	p.freeList = append(p.freeList, idx)
	p.metrics.pinDelta(-1)
}

// CreatePage allocates a brand-new page on disk and returns it pinned,
// zero-filled, and marked dirty (nothing has been written to disk for
// its id yet). p.mu is only held long enough to reserve the frame; any
// write-back of a dirty victim happens under the frame's own latch
// after p.mu is released, so it never blocks unrelated fetches.
func (p *Pool) CreatePage() (*FrameHandle, error) {
	id, err := p.dm.AllocatePage()
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	idx, evictedID, evictedDirty, err := p.acquireFrame()
	if err != nil {
		p.mu.Unlock()
		return nil, err
	}
	f := p.frames[idx]
	f.latch.Lock()
	f.id = id
	f.pinCount = 1
	f.dirty = true
	p.pageTable[id] = idx
	p.replacer.Pin(idx)
	p.metrics.pinDelta(1)
	p.mu.Unlock()

	if evictedDirty {
		if err := p.dm.WritePage(evictedID, f.data); err != nil {
			f.latch.Unlock()
			p.abortLoad(idx, id)
			return nil, err
		}
	}
	for i := range f.data {
		f.data[i] = 0
	}
	f.latch.Unlock()

	return &FrameHandle{pool: p, f: f}, nil
}

// FetchPage pins and returns the frame holding pid, reading it from disk
// if it isn't already resident. Returns ErrBufferFull if the page isn't
// resident and every frame is pinned.
//
// On a cache miss, p.mu is held only long enough to reserve the frame
// and register pid in pageTable; the victim write-back (if dirty) and
// the page read both happen under the frame's own write latch, which is
// taken before p.mu is released and held across both. A second caller
// fetching the same pid concurrently will see the pageTable entry and
// return immediately pinned, and will correctly block in Lock/RLock
// until the load finishes.
func (p *Pool) FetchPage(pid config.PageId) (*FrameHandle, error) {
	p.mu.Lock()
	if idx, ok := p.pageTable[pid]; ok {
		f := p.frames[idx]
		f.pinCount++
		p.replacer.Pin(idx)
		p.metrics.hit()
		p.metrics.pinDelta(1)
		p.mu.Unlock()
		return &FrameHandle{pool: p, f: f}, nil
	}

	idx, evictedID, evictedDirty, err := p.acquireFrame()
	if err != nil {
		p.mu.Unlock()
		return nil, err
	}
	f := p.frames[idx]
	f.latch.Lock()
	f.id = pid
	f.pinCount = 1
	f.dirty = false
	p.pageTable[pid] = idx
	p.replacer.Pin(idx)
	p.metrics.miss()
	p.metrics.pinDelta(1)
	p.mu.Unlock()

	if evictedDirty {
		if err := p.dm.WritePage(evictedID, f.data); err != nil {
			f.latch.Unlock()
			p.abortLoad(idx, pid)
			return nil, err
		}
	}
	data, err := p.dm.ReadPage(pid)
	if err != nil {
		f.latch.Unlock()
		p.abortLoad(idx, pid)
		return nil, err
	}
	copy(f.data, data)
	f.latch.Unlock()

	return &FrameHandle{pool: p, f: f}, nil
}

// Unpin releases one pin on pid, marking the frame dirty if dirty is
// true. Unpinning a page with a zero pin count is a programming error:
// it is fatal per apperr.Fatal's policy.
func (p *Pool) Unpin(pid config.PageId, dirty bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx, ok := p.pageTable[pid]
	if !ok {
		return apperr.Wrapf(apperr.ErrPageNotFound, "unpin: page %d not resident", pid)
	}
	f := p.frames[idx]
	if f.pinCount == 0 {
		return apperr.Fatal(apperr.ErrUnpinOfUnpinned)
	}
	f.pinCount--
	if dirty {
		f.dirty = true
	}
	if f.pinCount == 0 {
		p.replacer.Unpin(idx)
	}
	p.metrics.pinDelta(-1)
	return nil
}

// FlushPage writes pid's frame back to disk if it is resident and dirty.
// It does nothing for a page that is not resident.
func (p *Pool) FlushPage(pid config.PageId) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	idx, ok := p.pageTable[pid]
	if !ok {
		return nil
	}
	f := p.frames[idx]
	if !f.dirty {
		return nil
	}
	if err := p.dm.WritePage(f.id, f.data); err != nil {
		return err
	}
	f.dirty = false
	return nil
}

// FlushAll writes every resident dirty frame back to disk.
func (p *Pool) FlushAll() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for pid, idx := range p.pageTable {
		f := p.frames[idx]
		if !f.dirty {
			continue
		}
		if err := p.dm.WritePage(pid, f.data); err != nil {
			return err
		}
		f.dirty = false
	}
	return nil
}

// DeletePage evicts pid from the pool and deallocates it on disk.
// Returns ErrPagePinned if the page is currently pinned.
func (p *Pool) DeletePage(pid config.PageId) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	idx, ok := p.pageTable[pid]
	if !ok {
		return p.dm.DeallocatePage(pid)
	}
	f := p.frames[idx]
	if f.pinCount > 0 {
		return apperr.Wrapf(apperr.ErrPagePinned, "delete: page %d is pinned", pid)
	}
	delete(p.pageTable, pid)
	p.replacer.Pin(idx)
	for i := range f.data {
		f.data[i] = 0
	}
	f.id = config.InvalidPageID
	f.dirty = false
	p.freeList = append(p.freeList, idx)
	return p.dm.DeallocatePage(pid)
}
