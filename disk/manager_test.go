package disk_test

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/malzahar/jindb/config"
	"github.com/malzahar/jindb/disk"
)

func newTestManager(t *testing.T) *disk.Manager {
	t.Helper()
	cfg := config.NewDBConfigWithParams(t.TempDir(), 1024, 4)
	m, err := disk.NewManager(cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestDiskManagerLifecycle(t *testing.T) {
	dm := newTestManager(t)

	pid, err := dm.AllocatePage()
	require.NoError(t, err)
	require.True(t, dm.IsAllocated(pid))

	data := make([]byte, dm.PageSize())
	copy(data, "hello")
	require.NoError(t, dm.WritePage(pid, data))

	got, err := dm.ReadPage(pid)
	require.NoError(t, err)
	require.Equal(t, "hello", string(got[:5]))

	require.NoError(t, dm.DeallocatePage(pid))
}

func TestDiskManagerAllocatesSequentially(t *testing.T) {
	dm := newTestManager(t)

	first, err := dm.AllocatePage()
	require.NoError(t, err)
	second, err := dm.AllocatePage()
	require.NoError(t, err)

	require.Equal(t, first+1, second)
}

func TestDiskManagerRejectsUnallocatedPage(t *testing.T) {
	dm := newTestManager(t)

	_, err := dm.ReadPage(config.PageId(999))
	require.Error(t, err)

	err = dm.WritePage(config.PageId(999), make([]byte, dm.PageSize()))
	require.Error(t, err)
}

func TestDiskManagerRejectsWrongSizedWrite(t *testing.T) {
	dm := newTestManager(t)
	pid, err := dm.AllocatePage()
	require.NoError(t, err)

	err = dm.WritePage(pid, make([]byte, dm.PageSize()-1))
	require.Error(t, err)
}
