package relation

// Attribute is a single named, typed column in a relation.
type Attribute struct {
	Name     string
	DataType DataType
	Nullable bool
}

// NewAttribute constructs an Attribute.
func NewAttribute(name string, dataType DataType, nullable bool) Attribute {
	return Attribute{Name: name, DataType: dataType, Nullable: nullable}
}

// Schema is the ordered collection of attributes that defines a
// relation's record layout.
type Schema struct {
	Attributes []Attribute
}

// NewSchema builds a schema from attributes, parsed left to right; field
// order is significant and matches on-disk record layout.
func NewSchema(attributes []Attribute) *Schema {
	return &Schema{Attributes: attributes}
}

// Len returns the number of attributes in the schema.
func (s *Schema) Len() int {
	return len(s.Attributes)
}

// FixedByteLen returns the number of bytes occupied by the fixed-length
// section of a record with this schema (Varchar attributes counted as
// their 8-byte offset/length pair, not their actual contents).
func (s *Schema) FixedByteLen() int {
	n := 0
	for _, a := range s.Attributes {
		n += a.DataType.FixedSize()
	}
	return n
}

// ColumnIndex returns the position of the named attribute.
func (s *Schema) ColumnIndex(name string) (int, bool) {
	for i, a := range s.Attributes {
		if a.Name == name {
			return i, true
		}
	}
	return 0, false
}
