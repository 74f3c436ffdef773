// Package relation implements the record codec and heap operations
// layered on top of the slotted page format: attribute/schema metadata,
// a null-bitmap + fixed/variable record encoding, and a doubly linked
// list of pages addressed by RecordID.
package relation

import (
	"github.com/malzahar/jindb/apperr"
	"github.com/malzahar/jindb/codec"
	"github.com/malzahar/jindb/config"
)

// RecordID addresses a single record by the page that holds it and its
// slot index within that page.
type RecordID struct {
	PageID config.PageId
	Slot   uint32
}

// EncodeRecord packs values (one per attribute in schema, in order) into
// the on-disk record format:
//
//	+------------------+----------------------+------------------------+
//	| NULL BITMAP (4)  | FIXED-LENGTH VALUES  | VARIABLE-LENGTH VALUES |
//	+------------------+----------------------+------------------------+
//
// A nil entry in values marks that attribute null; EncodeRecord rejects
// nil for a non-nullable attribute.
func EncodeRecord(schema *Schema, values []interface{}) ([]byte, error) {
	if len(values) != len(schema.Attributes) {
		return nil, apperr.New(apperr.KindIoDecode, "relation: expected %d values, got %d", len(schema.Attributes), len(values))
	}

	fixedLen := nullBitmapSize + schema.FixedByteLen()
	varLen := 0
	for i, a := range schema.Attributes {
		if a.DataType != Varchar || values[i] == nil {
			continue
		}
		s, ok := values[i].(string)
		if !ok {
			return nil, apperr.New(apperr.KindIoDecode, "relation: attribute %q expects a string", a.Name)
		}
		varLen += len(s)
	}

	out := make([]byte, fixedLen+varLen)
	var bitmap Bitmap
	fixedOff := nullBitmapSize
	varOff := fixedLen

	for i, a := range schema.Attributes {
		v := values[i]
		if v == nil {
			if !a.Nullable {
				return nil, apperr.New(apperr.KindIoDecode, "relation: attribute %q is not nullable", a.Name)
			}
			if err := bitmap.Set(i); err != nil {
				return nil, err
			}
			fixedOff += a.DataType.FixedSize()
			continue
		}

		switch a.DataType {
		case Boolean:
			b, ok := v.(bool)
			if !ok {
				return nil, apperr.New(apperr.KindIoDecode, "relation: attribute %q expects a bool", a.Name)
			}
			if err := codec.WriteBool(out, fixedOff, b); err != nil {
				return nil, err
			}
		case TinyInt:
			n, ok := v.(int8)
			if !ok {
				return nil, apperr.New(apperr.KindIoDecode, "relation: attribute %q expects an int8", a.Name)
			}
			if err := codec.WriteInt8(out, fixedOff, n); err != nil {
				return nil, err
			}
		case SmallInt:
			n, ok := v.(int16)
			if !ok {
				return nil, apperr.New(apperr.KindIoDecode, "relation: attribute %q expects an int16", a.Name)
			}
			if err := codec.WriteInt16(out, fixedOff, n); err != nil {
				return nil, err
			}
		case Int:
			n, ok := v.(int32)
			if !ok {
				return nil, apperr.New(apperr.KindIoDecode, "relation: attribute %q expects an int32", a.Name)
			}
			if err := codec.WriteInt32(out, fixedOff, n); err != nil {
				return nil, err
			}
		case BigInt:
			n, ok := v.(int64)
			if !ok {
				return nil, apperr.New(apperr.KindIoDecode, "relation: attribute %q expects an int64", a.Name)
			}
			if err := codec.WriteInt64(out, fixedOff, n); err != nil {
				return nil, err
			}
		case Decimal:
			f, ok := v.(float32)
			if !ok {
				return nil, apperr.New(apperr.KindIoDecode, "relation: attribute %q expects a float32", a.Name)
			}
			if err := codec.WriteFloat32(out, fixedOff, f); err != nil {
				return nil, err
			}
		case Varchar:
			s, ok := v.(string)
			if !ok {
				return nil, apperr.New(apperr.KindIoDecode, "relation: attribute %q expects a string", a.Name)
			}
			if err := codec.WriteUint32(out, fixedOff, uint32(varOff)); err != nil {
				return nil, err
			}
			if err := codec.WriteUint32(out, fixedOff+4, uint32(len(s))); err != nil {
				return nil, err
			}
			if err := codec.WriteString(out, varOff, s); err != nil {
				return nil, err
			}
			varOff += len(s)
		}
		fixedOff += a.DataType.FixedSize()
	}

	_ = codec.WriteUint32(out, 0, uint32(bitmap))
	return out, nil
}

// DecodeRecord unpacks a record previously produced by EncodeRecord back
// into one value per attribute in schema order, with nil marking a null
// attribute.
func DecodeRecord(schema *Schema, data []byte) ([]interface{}, error) {
	bitmapRaw, err := codec.ReadUint32(data, 0)
	if err != nil {
		return nil, err
	}
	bitmap := Bitmap(bitmapRaw)

	values := make([]interface{}, len(schema.Attributes))
	fixedOff := nullBitmapSize

	for i, a := range schema.Attributes {
		isNull, err := bitmap.Get(i)
		if err != nil {
			return nil, err
		}
		if isNull {
			values[i] = nil
			fixedOff += a.DataType.FixedSize()
			continue
		}

		switch a.DataType {
		case Boolean:
			v, err := codec.ReadBool(data, fixedOff)
			if err != nil {
				return nil, err
			}
			values[i] = v
		case TinyInt:
			v, err := codec.ReadInt8(data, fixedOff)
			if err != nil {
				return nil, err
			}
			values[i] = v
		case SmallInt:
			v, err := codec.ReadInt16(data, fixedOff)
			if err != nil {
				return nil, err
			}
			values[i] = v
		case Int:
			v, err := codec.ReadInt32(data, fixedOff)
			if err != nil {
				return nil, err
			}
			values[i] = v
		case BigInt:
			v, err := codec.ReadInt64(data, fixedOff)
			if err != nil {
				return nil, err
			}
			values[i] = v
		case Decimal:
			v, err := codec.ReadFloat32(data, fixedOff)
			if err != nil {
				return nil, err
			}
			values[i] = v
		case Varchar:
			off, err := codec.ReadUint32(data, fixedOff)
			if err != nil {
				return nil, err
			}
			length, err := codec.ReadUint32(data, fixedOff+4)
			if err != nil {
				return nil, err
			}
			v, err := codec.ReadString(data, int(off), int(length))
			if err != nil {
				return nil, err
			}
			values[i] = v
		}
		fixedOff += a.DataType.FixedSize()
	}

	return values, nil
}
