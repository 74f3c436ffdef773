// Package disk manages page-level allocation and I/O against a single
// growing database file.
package disk

import (
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/malzahar/jindb/apperr"
	"github.com/malzahar/jindb/config"
)

// Manager handles page-level allocation and raw I/O. Page 0 is never
// allocated; CatalogPageID (1) is reserved for the system catalog's head
// page. AllocatePage hands out every PageID after that in order.
type Manager struct {
	path       string
	pageSize   int
	log        zerolog.Logger
	mu         sync.Mutex
	f          *os.File
	nextPageID uint32
}

// NewManager opens (creating if necessary) the database file described by
// cfg and returns a Manager ready to allocate pages starting right after
// the catalog's head page.
func NewManager(cfg *config.DBConfig, logger zerolog.Logger) (*Manager, error) {
	if err := os.MkdirAll(cfg.DBPath, 0o755); err != nil {
		return nil, apperr.Wrapf(err, "disk: create db directory %q", cfg.DBPath)
	}
	path := filepath.Join(cfg.DBPath, cfg.DBFilename)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, apperr.Wrapf(err, "disk: open db file %q", path)
	}
	m := &Manager{
		path:     path,
		pageSize: cfg.PageSize,
		log:      logger,
		f:        f,
	}
	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, apperr.Wrap(err, "disk: stat db file")
	}
	// Page 0 (reserved) and page 1 (system catalog) must always be
	// readable, even on a brand-new file, since the catalog reads page 1
	// unconditionally at startup.
	minSize := int64(config.CatalogPageID+1) * int64(cfg.PageSize)
	if stat.Size() < minSize {
		if err := f.Truncate(minSize); err != nil {
			f.Close()
			return nil, apperr.Wrap(err, "disk: reserve catalog page")
		}
	}
	allocated := uint32(stat.Size() / int64(cfg.PageSize))
	next := uint32(config.CatalogPageID) + 1
	if allocated > next {
		next = allocated
	}
	m.nextPageID = next
	return m, nil
}

// PageSize returns the configured page size in bytes.
func (m *Manager) PageSize() int { return m.pageSize }

// AllocatePage reserves the next PageID and grows the file to cover it,
// returning the newly allocated id. The id bump and the Truncate call
// share one critical section: Truncate sets the file to exactly the
// given size, not "at least", so bumping the id outside the lock would
// let two concurrent calls' Truncate calls race out of id order and
// transiently shrink the file under an id already considered allocated.
func (m *Manager) AllocatePage() (config.PageId, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := config.PageId(m.nextPageID)
	off := int64(id) * int64(m.pageSize)
	if err := m.f.Truncate(off + int64(m.pageSize)); err != nil {
		return config.InvalidPageID, apperr.Wrapf(err, "disk: grow file for page %d", id)
	}
	atomic.StoreUint32(&m.nextPageID, uint32(id)+1)
	m.log.Debug().Uint32("page_id", uint32(id)).Msg("allocated page")
	return id, nil
}

// DeallocatePage is a no-op placeholder: reclaiming on-disk space for a
// freed page is outside this storage core's scope.
func (m *Manager) DeallocatePage(_ config.PageId) error {
	return nil
}

// IsAllocated reports whether pid refers to a page that has been
// allocated (i.e. is within the current bounds of the file).
func (m *Manager) IsAllocated(pid config.PageId) bool {
	return pid != config.InvalidPageID && uint32(pid) < atomic.LoadUint32(&m.nextPageID)
}

// WritePage writes exactly PageSize() bytes to pid's offset in the
// database file. pid must already be allocated.
func (m *Manager) WritePage(pid config.PageId, data []byte) error {
	if !m.IsAllocated(pid) {
		return apperr.Wrapf(apperr.ErrPageNotFound, "disk: page %d not allocated", pid)
	}
	if len(data) != m.pageSize {
		return apperr.New(apperr.KindIoOverflow, "disk: page buffer is %d bytes, want %d", len(data), m.pageSize)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	off := int64(pid) * int64(m.pageSize)
	if _, err := m.f.WriteAt(data, off); err != nil {
		m.log.Warn().Err(err).Uint32("page_id", uint32(pid)).Msg("write page failed")
		return apperr.Wrapf(apperr.ErrDiskIO, "disk: write page %d: %v", pid, err)
	}
	if err := m.f.Sync(); err != nil {
		return apperr.Wrapf(apperr.ErrDiskIO, "disk: fsync page %d: %v", pid, err)
	}
	return nil
}

// ReadPage reads exactly PageSize() bytes from pid's offset. pid must
// already be allocated.
func (m *Manager) ReadPage(pid config.PageId) ([]byte, error) {
	if !m.IsAllocated(pid) {
		return nil, apperr.Wrapf(apperr.ErrPageNotFound, "disk: page %d not allocated", pid)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	buf := make([]byte, m.pageSize)
	off := int64(pid) * int64(m.pageSize)
	if _, err := m.f.ReadAt(buf, off); err != nil {
		m.log.Warn().Err(err).Uint32("page_id", uint32(pid)).Msg("read page failed")
		return nil, apperr.Wrapf(apperr.ErrDiskIO, "disk: read page %d: %v", pid, err)
	}
	return buf, nil
}

// Close closes the underlying database file. WritePage already syncs
// every write, so there is nothing left to flush here.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.f.Close()
}

// NewManagerDefault wires up the package-level zerolog logger, for callers
// that don't need a distinct logger per instance.
func NewManagerDefault(cfg *config.DBConfig) (*Manager, error) {
	return NewManager(cfg, log.Logger)
}
