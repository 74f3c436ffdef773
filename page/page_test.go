package page_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/malzahar/jindb/apperr"
	"github.com/malzahar/jindb/config"
	"github.com/malzahar/jindb/page"
)

const testPageSize = 512

func newTestPage(id config.PageId) []byte {
	bytes := make([]byte, testPageSize)
	page.Init(bytes, id, testPageSize)
	return bytes
}

func TestInitEmptyPage(t *testing.T) {
	bytes := newTestPage(5)
	require.Equal(t, config.PageId(5), page.ID(bytes))
	require.Equal(t, config.InvalidPageID, page.PrevPageID(bytes))
	require.Equal(t, config.InvalidPageID, page.NextPageID(bytes))
	require.Equal(t, uint32(0), page.NumSlots(bytes))
	require.Equal(t, uint32(testPageSize-page.Size()), page.FreeSpace(bytes))
}

func TestInsertAndRead(t *testing.T) {
	bytes := newTestPage(1)
	record := []byte("hello, world!")

	slot, err := page.Insert(bytes, record)
	require.NoError(t, err)
	require.Equal(t, uint32(0), slot)
	require.Equal(t, uint32(1), page.NumSlots(bytes))

	got, err := page.Read(bytes, slot)
	require.NoError(t, err)
	require.Equal(t, record, got)

	expectedFree := uint32(testPageSize-page.Size()) - uint32(len(record)) - 8
	require.Equal(t, expectedFree, page.FreeSpace(bytes))
}

func TestInsertMultiplePreservesOrder(t *testing.T) {
	bytes := newTestPage(1)

	s0, err := page.Insert(bytes, []byte("first"))
	require.NoError(t, err)
	s1, err := page.Insert(bytes, []byte("second-record"))
	require.NoError(t, err)

	got0, err := page.Read(bytes, s0)
	require.NoError(t, err)
	require.Equal(t, "first", string(got0))

	got1, err := page.Read(bytes, s1)
	require.NoError(t, err)
	require.Equal(t, "second-record", string(got1))
}

func TestInsertOverflow(t *testing.T) {
	bytes := newTestPage(1)
	big := make([]byte, testPageSize)

	_, err := page.Insert(bytes, big)
	require.ErrorIs(t, err, apperr.ErrPageOverflow)
}

func TestReadOutOfBoundsSlot(t *testing.T) {
	bytes := newTestPage(1)
	_, err := page.Read(bytes, 0)
	require.Error(t, err)
}

func TestFlagDeleteThenRead(t *testing.T) {
	bytes := newTestPage(1)
	slot, err := page.Insert(bytes, []byte("to be deleted"))
	require.NoError(t, err)

	require.NoError(t, page.FlagDelete(bytes, slot))

	flagged, err := page.IsFlaggedDeleted(bytes, slot)
	require.NoError(t, err)
	require.True(t, flagged)

	_, err = page.Read(bytes, slot)
	require.Error(t, err)

	require.Error(t, page.FlagDelete(bytes, slot))
}

func TestCommitDeleteReclaimsSpaceAndFixesUpOffsets(t *testing.T) {
	bytes := newTestPage(1)
	s0, err := page.Insert(bytes, []byte("aaaa"))
	require.NoError(t, err)
	s1, err := page.Insert(bytes, []byte("bbbbbbbb"))
	require.NoError(t, err)

	freeBefore := page.FreeSpace(bytes)

	require.NoError(t, page.FlagDelete(bytes, s0))
	require.NoError(t, page.CommitDelete(bytes, s0))

	require.Equal(t, freeBefore+4, page.FreeSpace(bytes))

	got1, err := page.Read(bytes, s1)
	require.NoError(t, err)
	require.Equal(t, "bbbbbbbb", string(got1))
}

func TestUpdateGrowAndShrink(t *testing.T) {
	bytes := newTestPage(1)
	s0, err := page.Insert(bytes, []byte("short"))
	require.NoError(t, err)
	s1, err := page.Insert(bytes, []byte("neighbor-record"))
	require.NoError(t, err)

	require.NoError(t, page.Update(bytes, s0, []byte("a much longer replacement value")))
	got, err := page.Read(bytes, s0)
	require.NoError(t, err)
	require.Equal(t, "a much longer replacement value", string(got))

	neighbor, err := page.Read(bytes, s1)
	require.NoError(t, err)
	require.Equal(t, "neighbor-record", string(neighbor))

	require.NoError(t, page.Update(bytes, s0, []byte("tiny")))
	got, err = page.Read(bytes, s0)
	require.NoError(t, err)
	require.Equal(t, "tiny", string(got))

	neighbor, err = page.Read(bytes, s1)
	require.NoError(t, err)
	require.Equal(t, "neighbor-record", string(neighbor))
}
