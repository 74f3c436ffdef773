package relation

import "github.com/malzahar/jindb/apperr"

// DataType is one of the internal value types a record's attributes can
// hold.
type DataType int

const (
	Boolean DataType = iota
	TinyInt
	SmallInt
	Int
	BigInt
	Decimal
	Varchar
)

func (d DataType) String() string {
	switch d {
	case Boolean:
		return "BOOLEAN"
	case TinyInt:
		return "TINYINT"
	case SmallInt:
		return "SMALLINT"
	case Int:
		return "INT"
	case BigInt:
		return "BIGINT"
	case Decimal:
		return "DECIMAL"
	case Varchar:
		return "VARCHAR"
	default:
		return "UNKNOWN"
	}
}

// FixedSize returns the number of bytes a value of this type occupies in
// a record's fixed-length section. Varchar values store an 8-byte
// offset/length pair here; the actual bytes live in the record's
// variable-length section.
func (d DataType) FixedSize() int {
	switch d {
	case Boolean, TinyInt:
		return 1
	case SmallInt:
		return 2
	case Int, Decimal:
		return 4
	case BigInt:
		return 8
	case Varchar:
		return 8
	default:
		return 0
	}
}

// ParseDataType maps a catalog-facing name (as used by CREATE TABLE
// statements) to a DataType.
func ParseDataType(name string) (DataType, error) {
	switch name {
	case "BOOLEAN", "BOOL":
		return Boolean, nil
	case "TINYINT":
		return TinyInt, nil
	case "SMALLINT":
		return SmallInt, nil
	case "INT", "INTEGER":
		return Int, nil
	case "BIGINT":
		return BigInt, nil
	case "DECIMAL", "FLOAT":
		return Decimal, nil
	case "VARCHAR", "TEXT", "CHAR":
		return Varchar, nil
	default:
		return 0, apperr.New(apperr.KindIoDecode, "relation: unknown data type %q", name)
	}
}
