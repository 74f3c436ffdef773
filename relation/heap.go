package relation

import (
	"github.com/malzahar/jindb/apperr"
	"github.com/malzahar/jindb/buffer"
	"github.com/malzahar/jindb/config"
	"github.com/malzahar/jindb/page"
)

// Heap is a relation's storage: a doubly linked list of slotted pages
// reachable from a fixed head page id. Records are addressed by
// RecordID and survive page-internal compaction because RecordID
// never encodes a byte offset, only a page id and slot index.
//
// There is no heap-wide lock. Insert crab-latches down the page list:
// it holds only the current page's latch, fetches and latches the
// next page, then releases the current one, so inserts landing on
// different pages never block each other.
type Heap struct {
	pool     *buffer.Pool
	headPage config.PageId
}

// NewHeap allocates the head page of a brand-new, empty heap.
func NewHeap(pool *buffer.Pool) (*Heap, error) {
	fh, err := pool.CreatePage()
	if err != nil {
		return nil, err
	}
	id := fh.GetID()
	fh.Lock()
	page.Init(fh.Bytes(), id, pool.PageSize())
	fh.Unlock()
	if err := fh.Unpin(true); err != nil {
		return nil, err
	}
	return &Heap{pool: pool, headPage: id}, nil
}

// OpenHeap wraps an existing heap whose head page is already on disk,
// for example one looked up from the system catalog.
func OpenHeap(pool *buffer.Pool, headPage config.PageId) *Heap {
	return &Heap{pool: pool, headPage: headPage}
}

// HeadPageID returns the heap's first page, the id a catalog entry
// should persist to reopen this heap later.
func (h *Heap) HeadPageID() config.PageId {
	return h.headPage
}

// Insert appends record to the first page in the list with enough free
// space, allocating and linking a new tail page if none has room.
//
// The walk crab-latches: it fetches and locks pid, and only once that
// latch is held does it look at the next page, acquiring that page's
// latch before releasing the current one's. A page is only ever
// unlocked once its successor (or the fresh tail page it grows) is
// reachable, so no heap-wide lock is needed to keep the walk safe.
func (h *Heap) Insert(record []byte) (RecordID, error) {
	pid := h.headPage
	fh, err := h.pool.FetchPage(pid)
	if err != nil {
		return RecordID{}, err
	}
	fh.Lock()

	for {
		if page.FreeSpace(fh.Bytes()) >= requiredSpace(record) {
			slot, err := page.Insert(fh.Bytes(), record)
			fh.Unlock()
			if err != nil {
				_ = fh.Unpin(false)
				return RecordID{}, err
			}
			if err := fh.Unpin(true); err != nil {
				return RecordID{}, err
			}
			return RecordID{PageID: pid, Slot: slot}, nil
		}

		next := page.NextPageID(fh.Bytes())
		if next == config.InvalidPageID {
			return h.appendPageAndInsert(fh, pid, record)
		}

		nextFh, err := h.pool.FetchPage(next)
		if err != nil {
			fh.Unlock()
			_ = fh.Unpin(false)
			return RecordID{}, err
		}
		nextFh.Lock()

		fh.Unlock()
		if err := fh.Unpin(false); err != nil {
			nextFh.Unlock()
			_ = nextFh.Unpin(false)
			return RecordID{}, err
		}

		pid, fh = next, nextFh
	}
}

// appendPageAndInsert links a fresh tail page after tailID and inserts
// record into it. tailFh must already be locked (and pinned) by the
// caller; it is unlocked and unpinned here before returning, once the
// new page is linked in, so no other inserter can observe a tail with
// a dangling NextPageID.
func (h *Heap) appendPageAndInsert(tailFh *buffer.FrameHandle, tailID config.PageId, record []byte) (RecordID, error) {
	newFh, err := h.pool.CreatePage()
	if err != nil {
		tailFh.Unlock()
		_ = tailFh.Unpin(false)
		return RecordID{}, err
	}
	newID := newFh.GetID()

	newFh.Lock()
	page.Init(newFh.Bytes(), newID, h.pool.PageSize())
	page.SetPrevPageID(newFh.Bytes(), tailID)

	page.SetNextPageID(tailFh.Bytes(), newID)
	tailFh.Unlock()
	if err := tailFh.Unpin(true); err != nil {
		newFh.Unlock()
		_ = newFh.Unpin(false)
		return RecordID{}, err
	}

	slot, err := page.Insert(newFh.Bytes(), record)
	newFh.Unlock()
	if err != nil {
		_ = newFh.Unpin(true)
		return RecordID{}, err
	}
	if err := newFh.Unpin(true); err != nil {
		return RecordID{}, err
	}
	return RecordID{PageID: newID, Slot: slot}, nil
}

func requiredSpace(record []byte) uint32 {
	const slotEntrySize = 8
	return uint32(len(record)) + slotEntrySize
}

// Read fetches the record at rid.
func (h *Heap) Read(rid RecordID) ([]byte, error) {
	fh, err := h.pool.FetchPage(rid.PageID)
	if err != nil {
		return nil, err
	}
	fh.RLock()
	rec, readErr := page.Read(fh.Bytes(), rid.Slot)
	fh.RUnlock()
	if err := fh.Unpin(false); err != nil {
		return nil, err
	}
	return rec, readErr
}

// Update replaces the record at rid with newRecord, in place when it
// fits the slot's page. If the page overflows, rid's slot is
// flag-deleted and committed and newRecord is inserted fresh
// elsewhere in the heap; the caller must use the returned RecordID
// from that point on, since rid no longer identifies a live record.
func (h *Heap) Update(rid RecordID, newRecord []byte) (RecordID, error) {
	fh, err := h.pool.FetchPage(rid.PageID)
	if err != nil {
		return RecordID{}, err
	}
	fh.Lock()
	updateErr := page.Update(fh.Bytes(), rid.Slot, newRecord)
	fh.Unlock()
	if err := fh.Unpin(updateErr == nil); err != nil {
		return RecordID{}, err
	}
	if updateErr == nil {
		return rid, nil
	}
	if kind, ok := apperr.Of(updateErr); !ok || kind != apperr.KindPageOverflow {
		return RecordID{}, updateErr
	}

	if err := h.FlagDelete(rid); err != nil {
		return RecordID{}, err
	}
	if err := h.CommitDelete(rid); err != nil {
		return RecordID{}, err
	}
	return h.Insert(newRecord)
}

// FlagDelete marks rid's record as deleted without reclaiming its
// space. The delete only becomes permanent once CommitDelete runs; an
// in-flight transaction can still call RollbackDelete to undo it.
func (h *Heap) FlagDelete(rid RecordID) error {
	fh, err := h.pool.FetchPage(rid.PageID)
	if err != nil {
		return err
	}
	fh.Lock()
	flagErr := page.FlagDelete(fh.Bytes(), rid.Slot)
	fh.Unlock()
	if err := fh.Unpin(flagErr == nil); err != nil {
		return err
	}
	return flagErr
}

// CommitDelete physically reclaims rid's record space. rid must have
// been flagged first.
func (h *Heap) CommitDelete(rid RecordID) error {
	fh, err := h.pool.FetchPage(rid.PageID)
	if err != nil {
		return err
	}
	fh.Lock()
	flagged, flagErr := page.IsFlaggedDeleted(fh.Bytes(), rid.Slot)
	if flagErr == nil && !flagged {
		flagErr = apperr.New(apperr.KindIoDecode, "heap: record %+v is not flagged deleted", rid)
	}
	if flagErr == nil {
		flagErr = page.CommitDelete(fh.Bytes(), rid.Slot)
	}
	fh.Unlock()
	if err := fh.Unpin(flagErr == nil); err != nil {
		return err
	}
	return flagErr
}

// RollbackDelete undoes an uncommitted FlagDelete, restoring rid's
// record to visibility.
func (h *Heap) RollbackDelete(rid RecordID) error {
	fh, err := h.pool.FetchPage(rid.PageID)
	if err != nil {
		return err
	}
	fh.Lock()
	unflagErr := page.UnflagDelete(fh.Bytes(), rid.Slot)
	fh.Unlock()
	if err := fh.Unpin(unflagErr == nil); err != nil {
		return err
	}
	return unflagErr
}

// errStopScan is returned internally by ScanIter's callback adapter to
// end a Scan early without surfacing an error to the caller.
var errStopScan = apperr.New(apperr.KindIoDecode, "heap: scan stopped early")

// ScanIter is a cursor-style variant of Scan: fn returns false to stop
// the walk early instead of returning an error.
func (h *Heap) ScanIter(fn func(RecordID, []byte) bool) error {
	err := h.Scan(func(rid RecordID, data []byte) error {
		if !fn(rid, data) {
			return errStopScan
		}
		return nil
	})
	if err == errStopScan {
		return nil
	}
	return err
}

// Scan walks every page in the heap's list in order and invokes fn once
// per live (non-deleted) record. Returning an error from fn stops the
// scan and propagates the error.
func (h *Heap) Scan(fn func(RecordID, []byte) error) error {
	pid := h.headPage
	for pid != config.InvalidPageID {
		fh, err := h.pool.FetchPage(pid)
		if err != nil {
			return err
		}

		fh.RLock()
		numSlots := page.NumSlots(fh.Bytes())
		records := make([][]byte, numSlots)
		for slot := uint32(0); slot < numSlots; slot++ {
			rec, err := page.Read(fh.Bytes(), slot)
			if err != nil {
				continue
			}
			records[slot] = rec
		}
		next := page.NextPageID(fh.Bytes())
		fh.RUnlock()

		if err := fh.Unpin(false); err != nil {
			return err
		}

		for slot, rec := range records {
			if rec == nil {
				continue
			}
			if err := fn(RecordID{PageID: pid, Slot: uint32(slot)}, rec); err != nil {
				return err
			}
		}
		pid = next
	}
	return nil
}
