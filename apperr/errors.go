// Package apperr defines the structured error kinds surfaced by the storage
// core, so that callers (the relation heap, the catalog, and eventually a
// query executor) can branch with errors.Is instead of parsing message
// strings.
package apperr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind identifies one of the error categories a storage-core operation can
// fail with.
type Kind int

const (
	// KindIoOverflow: a codec read/write would exceed slice bounds.
	KindIoOverflow Kind = iota
	// KindIoDecode: invalid encoding (non-0/1 bool byte, invalid UTF-8, ...).
	KindIoDecode
	// KindPageOverflow: not enough free space for an insert/update.
	KindPageOverflow
	// KindSlotOutOfBounds: slot index >= num_slots.
	KindSlotOutOfBounds
	// KindRecordDeleted: slot is flagged deleted or zeroed.
	KindRecordDeleted
	// KindBufferFull: no free or evictable frame.
	KindBufferFull
	// KindPagePinned: delete attempted against a pinned frame.
	KindPagePinned
	// KindPageNotFound: page id not resident and not allocated.
	KindPageNotFound
	// KindDiskIO: underlying OS I/O error.
	KindDiskIO
	// KindUnpinOfUnpinned: programming error, unpin called on pin_count==0.
	KindUnpinOfUnpinned
)

func (k Kind) String() string {
	switch k {
	case KindIoOverflow:
		return "IoOverflow"
	case KindIoDecode:
		return "IoDecode"
	case KindPageOverflow:
		return "PageOverflow"
	case KindSlotOutOfBounds:
		return "SlotOutOfBounds"
	case KindRecordDeleted:
		return "RecordDeleted"
	case KindBufferFull:
		return "BufferFull"
	case KindPagePinned:
		return "PagePinned"
	case KindPageNotFound:
		return "PageNotFound"
	case KindDiskIO:
		return "DiskIO"
	case KindUnpinOfUnpinned:
		return "UnpinOfUnpinned"
	default:
		return "Unknown"
	}
}

// kindError carries a Kind alongside the sentinel's message so errors.Is
// comparisons keep working through pkg/errors.Wrap.
type kindError struct {
	kind Kind
	msg  string
}

func (e *kindError) Error() string { return e.msg }

// Is makes every kindError of the same Kind compare equal under errors.Is,
// so a freshly constructed sentinel still matches the package-level vars
// below.
func (e *kindError) Is(target error) bool {
	other, ok := target.(*kindError)
	if !ok {
		return false
	}
	return other.kind == e.kind
}

var (
	ErrIoOverflow       = &kindError{KindIoOverflow, "io: offset/length exceeds buffer bounds"}
	ErrIoDecode         = &kindError{KindIoDecode, "io: invalid encoding"}
	ErrPageOverflow     = &kindError{KindPageOverflow, "page: not enough free space"}
	ErrSlotOutOfBounds  = &kindError{KindSlotOutOfBounds, "page: slot index out of bounds"}
	ErrRecordDeleted    = &kindError{KindRecordDeleted, "page: record has been deleted"}
	ErrBufferFull       = &kindError{KindBufferFull, "buffer: no free or evictable frame"}
	ErrPagePinned       = &kindError{KindPagePinned, "buffer: page is pinned"}
	ErrPageNotFound     = &kindError{KindPageNotFound, "disk: page not allocated"}
	ErrDiskIO           = &kindError{KindDiskIO, "disk: i/o error"}
	ErrUnpinOfUnpinned  = &kindError{KindUnpinOfUnpinned, "buffer: unpin of a page with pin_count == 0"}
)

// Wrap annotates err with msg while preserving errors.Is matching against
// the apperr sentinels.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return errors.Wrap(err, msg)
}

// Wrapf is Wrap with format arguments.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return errors.Wrapf(err, format, args...)
}

// New constructs a fresh error of the given kind with a formatted message,
// matching Is(ErrXxx) for the corresponding sentinel.
func New(kind Kind, format string, args ...interface{}) error {
	return &kindError{kind, fmt.Sprintf(format, args...)}
}

// Of reports the Kind of err, unwrapping pkg/errors wrapping, and whether
// err matches one of the sentinels declared in this package.
func Of(err error) (Kind, bool) {
	sentinels := []*kindError{
		ErrIoOverflow, ErrIoDecode, ErrPageOverflow, ErrSlotOutOfBounds,
		ErrRecordDeleted, ErrBufferFull, ErrPagePinned, ErrPageNotFound,
		ErrDiskIO, ErrUnpinOfUnpinned,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.kind, true
		}
	}
	return 0, false
}

// PanicOnUnpinOfUnpinned controls whether UnpinOfUnpinned aborts the
// process in test/debug builds, per spec: "UnpinOfUnpinned is fatal to the
// calling operation and should abort the process in test builds."
// Production callers that would rather propagate the error can disable it.
var PanicOnUnpinOfUnpinned = true

// Fatal panics if PanicOnUnpinOfUnpinned is set and err wraps
// ErrUnpinOfUnpinned; otherwise it returns err unchanged.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	if PanicOnUnpinOfUnpinned && errors.Is(err, ErrUnpinOfUnpinned) {
		panic(err)
	}
	return err
}
