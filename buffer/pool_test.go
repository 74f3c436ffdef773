package buffer_test

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/malzahar/jindb/buffer"
	"github.com/malzahar/jindb/config"
	"github.com/malzahar/jindb/disk"
)

func newTestPool(t *testing.T, bufferSize int) *buffer.Pool {
	t.Helper()
	cfg := config.NewDBConfigWithParams(t.TempDir(), 256, bufferSize)
	dm, err := disk.NewManager(cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = dm.Close() })
	return buffer.NewPool(dm, bufferSize, "LRU", zerolog.Nop(), nil)
}

func TestCreatePagePinsAndFillsPoolThenFails(t *testing.T) {
	p := newTestPool(t, 3)

	h, err := p.CreatePage()
	require.NoError(t, err)
	require.Equal(t, uint32(2), uint32(h.GetID()))

	var handles []*buffer.FrameHandle
	for i := 0; i < 2; i++ {
		hh, err := p.CreatePage()
		require.NoError(t, err)
		handles = append(handles, hh)
	}

	_, err = p.CreatePage()
	require.Error(t, err)

	require.NoError(t, h.Unpin(false))
	for _, hh := range handles {
		require.NoError(t, hh.Unpin(false))
	}
}

func TestFetchPageRoundTrip(t *testing.T) {
	p := newTestPool(t, 4)

	h, err := p.CreatePage()
	require.NoError(t, err)
	id := h.GetID()
	copy(h.Bytes(), []byte("payload"))
	h.SetDirty(true)
	require.NoError(t, h.Unpin(true))
	require.NoError(t, p.FlushPage(id))

	h2, err := p.FetchPage(id)
	require.NoError(t, err)
	require.Equal(t, "payload", string(h2.Bytes()[:7]))
	require.NoError(t, h2.Unpin(false))
}

func TestUnpinOfUnpinnedIsFatal(t *testing.T) {
	p := newTestPool(t, 2)
	h, err := p.CreatePage()
	require.NoError(t, err)
	require.NoError(t, h.Unpin(false))

	require.Panics(t, func() {
		_ = p.Unpin(h.GetID(), false)
	})
}

func TestDeletePageRejectsPinned(t *testing.T) {
	p := newTestPool(t, 2)
	h, err := p.CreatePage()
	require.NoError(t, err)

	err = p.DeletePage(h.GetID())
	require.Error(t, err)

	require.NoError(t, h.Unpin(false))
	require.NoError(t, p.DeletePage(h.GetID()))
}

func TestEvictionWritesBackDirtyVictim(t *testing.T) {
	p := newTestPool(t, 1)

	h1, err := p.CreatePage()
	require.NoError(t, err)
	id1 := h1.GetID()
	copy(h1.Bytes(), []byte("dirty-data"))
	require.NoError(t, h1.Unpin(true))

	h2, err := p.CreatePage()
	require.NoError(t, err)
	require.NoError(t, h2.Unpin(false))

	h1Again, err := p.FetchPage(id1)
	require.NoError(t, err)
	require.Equal(t, "dirty-data", string(h1Again.Bytes()[:10]))
	require.NoError(t, h1Again.Unpin(false))
}
