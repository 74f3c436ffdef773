// Package page implements the slotted-page byte layout shared by every
// relation page: a header that grows forward from offset 0 and variable
// length records that grow backward from the end of the page.
//
// Header layout (bytes):
//
//	+--------------+-----------------------+------------------+
//	|  PAGE ID (4) |  PREVIOUS PAGE ID (4) | NEXT PAGE ID (4)  |
//	+--------------+-----------------------+------------------+
//	+------------------------+-----------------+--------------+
//	| FREE SPACE POINTER (4) | NUM SLOTS (4)   |    LSN (4)    |
//	+------------------------+-----------------+--------------+
//	| SLOT 0 OFFSET (4) | SLOT 0 SIZE (4) | ...                |
//	+--------------------------------------------------------+
//
// Records grow from the end of the page toward the free pointer:
//
//	+------------------------+----------+----------+----------+
//	|           ...          | RECORD 3 | RECORD 2 | RECORD 1 |
//	+------------------------+----------+----------+----------+
//	                         ^ free pointer
package page

import (
	"github.com/malzahar/jindb/apperr"
	"github.com/malzahar/jindb/codec"
	"github.com/malzahar/jindb/config"
)

const (
	idOffset         = 0
	prevPageIDOffset = 4
	nextPageIDOffset = 8
	freePtrOffset    = 12
	numSlotsOffset   = 16
	lsnOffset        = 20
	slotsOffset      = 24
	slotEntrySize    = 8

	// deleteMask flags a slot's size entry as belonging to a deleted (or
	// rolled-back) record. No real record size ever sets this bit.
	deleteMask uint32 = 1 << 31
)

// Size returns the number of header bytes a page with zero slots uses.
func Size() int { return slotsOffset }

// Init prepares a freshly allocated, zero-filled page of length
// pageSize as an empty slotted page with the given id.
func Init(bytes []byte, id config.PageId, pageSize int) {
	_ = codec.WriteUint32(bytes, idOffset, uint32(id))
	_ = codec.WriteUint32(bytes, prevPageIDOffset, uint32(config.InvalidPageID))
	_ = codec.WriteUint32(bytes, nextPageIDOffset, uint32(config.InvalidPageID))
	_ = codec.WriteUint32(bytes, numSlotsOffset, 0)
	_ = codec.WriteUint32(bytes, lsnOffset, 0)
	setFreePointer(bytes, uint32(pageSize-1))
}

// ID returns the page's own id.
func ID(bytes []byte) config.PageId {
	v, _ := codec.ReadUint32(bytes, idOffset)
	return config.PageId(v)
}

// PrevPageID returns the previous page in the relation's page list, or
// InvalidPageID if this is the head page.
func PrevPageID(bytes []byte) config.PageId {
	v, _ := codec.ReadUint32(bytes, prevPageIDOffset)
	return config.PageId(v)
}

// SetPrevPageID sets the previous page pointer.
func SetPrevPageID(bytes []byte, id config.PageId) {
	_ = codec.WriteUint32(bytes, prevPageIDOffset, uint32(id))
}

// NextPageID returns the next page in the relation's page list, or
// InvalidPageID if this is the tail page.
func NextPageID(bytes []byte) config.PageId {
	v, _ := codec.ReadUint32(bytes, nextPageIDOffset)
	return config.PageId(v)
}

// SetNextPageID sets the next page pointer.
func SetNextPageID(bytes []byte, id config.PageId) {
	_ = codec.WriteUint32(bytes, nextPageIDOffset, uint32(id))
}

func freePointer(bytes []byte) uint32 {
	v, _ := codec.ReadUint32(bytes, freePtrOffset)
	return v
}

func setFreePointer(bytes []byte, ptr uint32) {
	_ = codec.WriteUint32(bytes, freePtrOffset, ptr)
}

// NumSlots returns the number of slot entries in the header, including
// slots whose record has been deleted.
func NumSlots(bytes []byte) uint32 {
	v, _ := codec.ReadUint32(bytes, numSlotsOffset)
	return v
}

func setNumSlots(bytes []byte, n uint32) {
	_ = codec.WriteUint32(bytes, numSlotsOffset, n)
}

// LSN returns the page's log sequence number slot.
func LSN(bytes []byte) uint32 {
	v, _ := codec.ReadUint32(bytes, lsnOffset)
	return v
}

// SetLSN sets the page's log sequence number slot.
func SetLSN(bytes []byte, lsn uint32) {
	_ = codec.WriteUint32(bytes, lsnOffset, lsn)
}

// FreeSpace returns the number of bytes available for a new slot entry
// plus its record payload.
func FreeSpace(bytes []byte) uint32 {
	freePtr := freePointer(bytes) + 1
	header := uint32(slotsOffset) + NumSlots(bytes)*slotEntrySize
	if header >= freePtr {
		return 0
	}
	return freePtr - header
}

func slotAddrs(bytes []byte, slot uint32) (offsetAddr, sizeAddr int, err error) {
	if slot >= NumSlots(bytes) {
		return 0, 0, apperr.Wrapf(apperr.ErrSlotOutOfBounds, "slot %d, num_slots %d", slot, NumSlots(bytes))
	}
	offsetAddr = slotsOffset + int(slot)*slotEntrySize
	sizeAddr = offsetAddr + 4
	return offsetAddr, sizeAddr, nil
}

func isDeleted(size uint32) bool {
	return size&deleteMask != 0 || size == 0
}

// Read returns the raw bytes of the record at slot. Returns
// ErrRecordDeleted if the slot's record has been deleted, and
// ErrSlotOutOfBounds if slot is out of range.
func Read(bytes []byte, slot uint32) ([]byte, error) {
	offsetAddr, sizeAddr, err := slotAddrs(bytes, slot)
	if err != nil {
		return nil, err
	}
	offset, _ := codec.ReadUint32(bytes, offsetAddr)
	size, _ := codec.ReadUint32(bytes, sizeAddr)
	if isDeleted(size) {
		return nil, apperr.ErrRecordDeleted
	}
	out := make([]byte, size)
	copy(out, bytes[offset:offset+size])
	return out, nil
}

// Insert appends record to the page's record area and allocates a new
// slot for it, returning the new slot index. Returns ErrPageOverflow if
// there isn't enough free space for the record plus its slot entry.
func Insert(bytes []byte, record []byte) (uint32, error) {
	recLen := uint32(len(record))
	if recLen+slotEntrySize > FreeSpace(bytes) {
		return 0, apperr.Wrapf(apperr.ErrPageOverflow, "record of %d bytes does not fit in %d free bytes", recLen, FreeSpace(bytes))
	}

	numSlots := NumSlots(bytes)
	offsetAddr := slotsOffset + int(numSlots)*slotEntrySize
	sizeAddr := offsetAddr + 4

	freePtr := freePointer(bytes)
	newFreePtr := freePtr - recLen

	start := newFreePtr + 1
	copy(bytes[start:start+recLen], record)

	setFreePointer(bytes, newFreePtr)
	setNumSlots(bytes, numSlots+1)
	_ = codec.WriteUint32(bytes, offsetAddr, newFreePtr+1)
	_ = codec.WriteUint32(bytes, sizeAddr, recLen)

	return numSlots, nil
}

// Update replaces the record at slot with newRecord, shifting every
// record packed before it in the backward-growing record area and
// fixing up their slot offsets. Returns ErrPageOverflow if the page
// cannot accommodate the size difference; the caller should fall back
// to flag-delete-then-insert in that case.
func Update(bytes []byte, slot uint32, newRecord []byte) error {
	offsetAddr, sizeAddr, err := slotAddrs(bytes, slot)
	if err != nil {
		return err
	}
	offset, _ := codec.ReadUint32(bytes, offsetAddr)
	oldSize, _ := codec.ReadUint32(bytes, sizeAddr)
	newSize := uint32(len(newRecord))

	if isDeleted(oldSize) {
		return apperr.ErrRecordDeleted
	}
	if FreeSpace(bytes)+oldSize < newSize {
		return apperr.Wrapf(apperr.ErrPageOverflow, "update needs %d bytes, has %d", newSize, FreeSpace(bytes)+oldSize)
	}

	freePtr := freePointer(bytes)
	src := freePtr
	dst := freePtr + oldSize - newSize
	cnt := offset - freePtr

	buf := make([]byte, cnt)
	copy(buf, bytes[src:src+cnt])
	copy(bytes[dst:dst+cnt], buf)

	newOffset := offset + oldSize - newSize
	copy(bytes[newOffset:newOffset+newSize], newRecord)

	setFreePointer(bytes, dst)
	_ = codec.WriteUint32(bytes, sizeAddr, newSize)

	// oldSize-newSize wraps around when the record grew; every other
	// offset arithmetic operation here is performed mod 2^32 the same
	// way, so the wraparound cancels out and offsets stay consistent.
	fixupOffsets(bytes, offset+oldSize, oldSize-newSize)

	return nil
}

// FlagDelete marks the record at slot as deleted without reclaiming its
// space. CommitDelete performs the actual reclamation, and UnflagDelete
// undoes the flag before it is committed.
func FlagDelete(bytes []byte, slot uint32) error {
	_, sizeAddr, err := slotAddrs(bytes, slot)
	if err != nil {
		return err
	}
	size, _ := codec.ReadUint32(bytes, sizeAddr)
	if isDeleted(size) {
		return apperr.ErrRecordDeleted
	}
	_ = codec.WriteUint32(bytes, sizeAddr, size|deleteMask)
	return nil
}

// UnflagDelete clears a prior FlagDelete, restoring the slot to visible
// without having touched the record area.
func UnflagDelete(bytes []byte, slot uint32) error {
	_, sizeAddr, err := slotAddrs(bytes, slot)
	if err != nil {
		return err
	}
	size, _ := codec.ReadUint32(bytes, sizeAddr)
	if size&deleteMask == 0 {
		return apperr.New(apperr.KindIoDecode, "page: slot %d is not flagged deleted", slot)
	}
	_ = codec.WriteUint32(bytes, sizeAddr, size&^deleteMask)
	return nil
}

// IsFlaggedDeleted reports whether the record at slot is flagged for
// deletion (but not yet committed).
func IsFlaggedDeleted(bytes []byte, slot uint32) (bool, error) {
	_, sizeAddr, err := slotAddrs(bytes, slot)
	if err != nil {
		return false, err
	}
	size, _ := codec.ReadUint32(bytes, sizeAddr)
	return size&deleteMask != 0, nil
}

// CommitDelete physically removes the record at slot from the page,
// shifting the record area and fixing up every other slot's offset.
// Works whether or not the slot was previously flagged, which lets it
// double as the rollback-of-insert primitive.
func CommitDelete(bytes []byte, slot uint32) error {
	offsetAddr, sizeAddr, err := slotAddrs(bytes, slot)
	if err != nil {
		return err
	}
	offset, _ := codec.ReadUint32(bytes, offsetAddr)
	size, _ := codec.ReadUint32(bytes, sizeAddr)
	if size&deleteMask != 0 {
		size &^= deleteMask
	}

	freePtr := freePointer(bytes)
	src := freePtr
	dst := freePtr + size
	cnt := offset - freePtr

	buf := make([]byte, cnt)
	copy(buf, bytes[src:src+cnt])
	copy(bytes[dst:dst+cnt], buf)

	setFreePointer(bytes, dst)
	_ = codec.WriteUint32(bytes, offsetAddr, 0)
	_ = codec.WriteUint32(bytes, sizeAddr, 0)

	fixupOffsets(bytes, offset, size)

	return nil
}

// fixupOffsets walks every slot and adds delta to the offset of any
// record packed before (at a lower offset than) threshold, skipping
// slots whose record has already been physically removed (size == 0).
func fixupOffsets(bytes []byte, threshold, delta uint32) {
	for i := uint32(0); i < NumSlots(bytes); i++ {
		offsetAddr := slotsOffset + int(i)*slotEntrySize
		sizeAddr := offsetAddr + 4
		tOffset, _ := codec.ReadUint32(bytes, offsetAddr)
		tSize, _ := codec.ReadUint32(bytes, sizeAddr)
		if tSize == 0 {
			continue
		}
		if tOffset < threshold {
			_ = codec.WriteUint32(bytes, offsetAddr, tOffset+delta)
		}
	}
}
