package relation

import "github.com/malzahar/jindb/apperr"

// nullBitmapSize is the width, in bytes, of a record's null bitmap. It
// supports up to 32 attributes per schema.
const nullBitmapSize = 4

// Bitmap is a fixed 32-bit set used to mark which attributes of a
// record are null.
type Bitmap uint32

// Get returns the n-th bit (0 or 1, read as a bool).
func (b Bitmap) Get(n int) (bool, error) {
	if n < 0 || n >= 32 {
		return false, apperr.New(apperr.KindIoOverflow, "bitmap: bit index %d out of range", n)
	}
	return (b>>uint(n))&1 != 0, nil
}

// Set sets the n-th bit to 1.
func (b *Bitmap) Set(n int) error {
	if n < 0 || n >= 32 {
		return apperr.New(apperr.KindIoOverflow, "bitmap: bit index %d out of range", n)
	}
	*b |= 1 << uint(n)
	return nil
}

// Clear sets the n-th bit to 0.
func (b *Bitmap) Clear(n int) error {
	if n < 0 || n >= 32 {
		return apperr.New(apperr.KindIoOverflow, "bitmap: bit index %d out of range", n)
	}
	*b &^= 1 << uint(n)
	return nil
}
