package relation_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/malzahar/jindb/buffer"
	"github.com/malzahar/jindb/config"
	"github.com/malzahar/jindb/disk"
	"github.com/malzahar/jindb/relation"
)

func newTestHeap(t *testing.T, pageSize, bufferSize int) (*relation.Heap, *buffer.Pool) {
	t.Helper()
	cfg := config.NewDBConfigWithParams(t.TempDir(), pageSize, bufferSize)
	dm, err := disk.NewManager(cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = dm.Close() })

	pool := buffer.NewPool(dm, bufferSize, "LRU", zerolog.Nop(), nil)
	h, err := relation.NewHeap(pool)
	require.NoError(t, err)
	return h, pool
}

func TestHeapInsertAndRead(t *testing.T) {
	h, _ := newTestHeap(t, 256, 8)
	schema := testSchema()

	data, err := relation.EncodeRecord(schema, []interface{}{int32(7), true, float32(1.5), "x"})
	require.NoError(t, err)

	rid, err := h.Insert(data)
	require.NoError(t, err)

	got, err := h.Read(rid)
	require.NoError(t, err)
	require.Equal(t, data, got)
}

func TestHeapInsertAllocatesNewPageWhenFull(t *testing.T) {
	h, _ := newTestHeap(t, 128, 8)

	record := make([]byte, 40)
	var rids []relation.RecordID
	for i := 0; i < 10; i++ {
		rid, err := h.Insert(record)
		require.NoError(t, err)
		rids = append(rids, rid)
	}

	pages := map[config.PageId]bool{}
	for _, rid := range rids {
		pages[rid.PageID] = true
	}
	require.Greater(t, len(pages), 1)

	for _, rid := range rids {
		got, err := h.Read(rid)
		require.NoError(t, err)
		require.Equal(t, record, got)
	}
}

func TestHeapUpdateInPlace(t *testing.T) {
	h, _ := newTestHeap(t, 256, 8)
	rid, err := h.Insert([]byte("short"))
	require.NoError(t, err)

	newRid, err := h.Update(rid, []byte("a-longer-value"))
	require.NoError(t, err)
	require.Equal(t, rid, newRid)

	got, err := h.Read(newRid)
	require.NoError(t, err)
	require.Equal(t, "a-longer-value", string(got))
}

func TestHeapUpdateOverflowFallsBackToInsert(t *testing.T) {
	h, _ := newTestHeap(t, 256, 8)

	filler := make([]byte, 100)
	_, err := h.Insert(filler)
	require.NoError(t, err)
	rid, err := h.Insert(filler)
	require.NoError(t, err)

	big := make([]byte, 200)
	for i := range big {
		big[i] = 'x'
	}

	newRid, err := h.Update(rid, big)
	require.NoError(t, err)
	require.NotEqual(t, rid, newRid)

	_, err = h.Read(rid)
	require.Error(t, err)

	got, err := h.Read(newRid)
	require.NoError(t, err)
	require.Equal(t, big, got)
}

func TestHeapFlagAndCommitDelete(t *testing.T) {
	h, _ := newTestHeap(t, 256, 8)
	rid, err := h.Insert([]byte("to-delete"))
	require.NoError(t, err)

	require.NoError(t, h.FlagDelete(rid))
	_, err = h.Read(rid)
	require.Error(t, err)

	require.NoError(t, h.CommitDelete(rid))
	_, err = h.Read(rid)
	require.Error(t, err)
}

func TestHeapRollbackDeleteRestoresRecord(t *testing.T) {
	h, _ := newTestHeap(t, 256, 8)
	rid, err := h.Insert([]byte("keep-me"))
	require.NoError(t, err)

	require.NoError(t, h.FlagDelete(rid))
	require.NoError(t, h.RollbackDelete(rid))

	got, err := h.Read(rid)
	require.NoError(t, err)
	require.Equal(t, "keep-me", string(got))
}

func TestHeapScanVisitsAllLiveRecordsAcrossPages(t *testing.T) {
	h, _ := newTestHeap(t, 128, 8)

	var inserted []relation.RecordID
	for i := 0; i < 12; i++ {
		rid, err := h.Insert([]byte(fmt.Sprintf("row-%02d", i)))
		require.NoError(t, err)
		inserted = append(inserted, rid)
	}

	require.NoError(t, h.FlagDelete(inserted[3]))
	require.NoError(t, h.CommitDelete(inserted[3]))

	seen := map[relation.RecordID]string{}
	require.NoError(t, h.Scan(func(rid relation.RecordID, data []byte) error {
		seen[rid] = string(data)
		return nil
	}))

	require.Len(t, seen, 11)
	for i, rid := range inserted {
		if i == 3 {
			require.NotContains(t, seen, rid)
			continue
		}
		require.Equal(t, fmt.Sprintf("row-%02d", i), seen[rid])
	}
}

func TestHeapConcurrentInsertsDoNotCollide(t *testing.T) {
	const goroutines = 8
	const recordsPerGoroutine = 20

	h, _ := newTestHeap(t, 256, 16)

	var wg sync.WaitGroup
	ridsCh := make(chan relation.RecordID, goroutines*recordsPerGoroutine)
	errCh := make(chan error, goroutines*recordsPerGoroutine)

	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < recordsPerGoroutine; i++ {
				rid, err := h.Insert([]byte(fmt.Sprintf("g%02d-r%02d", g, i)))
				if err != nil {
					errCh <- err
					continue
				}
				ridsCh <- rid
			}
		}(g)
	}
	wg.Wait()
	close(ridsCh)
	close(errCh)

	for err := range errCh {
		require.NoError(t, err)
	}

	seen := make(map[relation.RecordID]bool, goroutines*recordsPerGoroutine)
	for rid := range ridsCh {
		require.False(t, seen[rid], "duplicate RecordID %+v", rid)
		seen[rid] = true
	}
	require.Len(t, seen, goroutines*recordsPerGoroutine)

	live := 0
	require.NoError(t, h.Scan(func(relation.RecordID, []byte) error {
		live++
		return nil
	}))
	require.Equal(t, goroutines*recordsPerGoroutine, live)
}

func TestOpenHeapReopensExistingHeadPage(t *testing.T) {
	h, pool := newTestHeap(t, 256, 8)
	rid, err := h.Insert([]byte("persisted"))
	require.NoError(t, err)
	require.NoError(t, pool.FlushAll())

	reopened := relation.OpenHeap(pool, h.HeadPageID())
	got, err := reopened.Read(rid)
	require.NoError(t, err)
	require.Equal(t, "persisted", string(got))
}
