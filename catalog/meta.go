package catalog

import (
	"github.com/google/uuid"

	"github.com/malzahar/jindb/apperr"
	"github.com/malzahar/jindb/codec"
	"github.com/malzahar/jindb/config"
	"github.com/malzahar/jindb/relation"
)

// relationMeta is the catalog page's on-disk record for one relation:
//
//	uuid (16) | head page id (4) | name length (4) | name |
//	attr count (4) | per attribute: type (1) | nullable (1) | name length (4) | name
type relationMeta struct {
	id         uuid.UUID
	headPageID config.PageId
	name       string
	schema     *relation.Schema
}

func encodeRelationMeta(m relationMeta) []byte {
	size := 16 + 4 + 4 + len(m.name) + 4
	for _, a := range m.schema.Attributes {
		size += 1 + 1 + 4 + len(a.Name)
	}

	out := make([]byte, size)
	off := 0
	copy(out[off:off+16], m.id[:])
	off += 16
	_ = codec.WriteUint32(out, off, uint32(m.headPageID))
	off += 4
	_ = codec.WriteUint32(out, off, uint32(len(m.name)))
	off += 4
	_ = codec.WriteString(out, off, m.name)
	off += len(m.name)
	_ = codec.WriteUint32(out, off, uint32(len(m.schema.Attributes)))
	off += 4
	for _, a := range m.schema.Attributes {
		_ = codec.WriteInt8(out, off, int8(a.DataType))
		off++
		_ = codec.WriteBool(out, off, a.Nullable)
		off++
		_ = codec.WriteUint32(out, off, uint32(len(a.Name)))
		off += 4
		_ = codec.WriteString(out, off, a.Name)
		off += len(a.Name)
	}
	return out
}

func decodeRelationMeta(data []byte) (relationMeta, error) {
	var m relationMeta
	if len(data) < 16+4+4 {
		return m, apperr.New(apperr.KindIoDecode, "catalog: truncated relation record")
	}
	off := 0
	copy(m.id[:], data[off:off+16])
	off += 16

	headPageID, err := codec.ReadUint32(data, off)
	if err != nil {
		return m, err
	}
	m.headPageID = config.PageId(headPageID)
	off += 4

	nameLen, err := codec.ReadUint32(data, off)
	if err != nil {
		return m, err
	}
	off += 4
	name, err := codec.ReadString(data, off, int(nameLen))
	if err != nil {
		return m, err
	}
	m.name = name
	off += int(nameLen)

	attrCount, err := codec.ReadUint32(data, off)
	if err != nil {
		return m, err
	}
	off += 4

	attrs := make([]relation.Attribute, attrCount)
	for i := range attrs {
		dt, err := codec.ReadInt8(data, off)
		if err != nil {
			return m, err
		}
		off++
		nullable, err := codec.ReadBool(data, off)
		if err != nil {
			return m, err
		}
		off++
		attrNameLen, err := codec.ReadUint32(data, off)
		if err != nil {
			return m, err
		}
		off += 4
		attrName, err := codec.ReadString(data, off, int(attrNameLen))
		if err != nil {
			return m, err
		}
		off += int(attrNameLen)
		attrs[i] = relation.NewAttribute(attrName, relation.DataType(dt), nullable)
	}
	m.schema = relation.NewSchema(attrs)
	return m, nil
}
