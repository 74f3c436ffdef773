// Package db wires together the disk manager, buffer pool, and system
// catalog into a single handle a CLI or embedding application opens
// once per database.
package db

import (
	"bufio"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/malzahar/jindb/apperr"
	"github.com/malzahar/jindb/buffer"
	"github.com/malzahar/jindb/catalog"
	"github.com/malzahar/jindb/config"
	"github.com/malzahar/jindb/disk"
	"github.com/malzahar/jindb/relation"
)

// Manager is a single open database: its disk file, buffer pool, and
// system catalog.
type Manager struct {
	cfg *config.DBConfig
	dm  *disk.Manager
	bm  *buffer.Pool
	cat *catalog.SystemCatalog
}

// Open opens (creating if necessary) the database file at cfg.DBPath
// and loads its system catalog.
func Open(cfg *config.DBConfig, logger zerolog.Logger) (*Manager, error) {
	dm, err := disk.NewManager(cfg, logger)
	if err != nil {
		return nil, err
	}
	bm := buffer.NewPool(dm, cfg.BufferSize, cfg.BMPolicy, logger, nil)
	cat, err := catalog.Open(bm, logger)
	if err != nil {
		_ = dm.Close()
		return nil, err
	}
	return &Manager{cfg: cfg, dm: dm, bm: bm, cat: cat}, nil
}

// Close flushes every dirty page and closes the database file.
func (m *Manager) Close() error {
	if err := m.bm.FlushAll(); err != nil {
		return err
	}
	return m.dm.Close()
}

// CreateTable registers a new relation.
func (m *Manager) CreateTable(name string, schema *relation.Schema) (*catalog.Relation, error) {
	return m.cat.CreateRelation(name, schema)
}

// GetTable looks up a relation by name.
func (m *Manager) GetTable(name string) (*catalog.Relation, bool) {
	return m.cat.GetRelation(name)
}

// DropTable removes a relation from the catalog.
func (m *Manager) DropTable(name string) error {
	return m.cat.DropRelation(name)
}

// DropAllTables removes every relation currently registered.
func (m *Manager) DropAllTables() error {
	for _, name := range m.cat.RelationNames() {
		if err := m.cat.DropRelation(name); err != nil {
			return err
		}
	}
	return nil
}

// TableNames lists every registered relation's name.
func (m *Manager) TableNames() []string {
	return m.cat.RelationNames()
}

// InsertValues encodes values against table's schema and inserts the
// resulting record, returning its RecordID.
func (m *Manager) InsertValues(table string, values []interface{}) (relation.RecordID, error) {
	rel, ok := m.cat.GetRelation(table)
	if !ok {
		return relation.RecordID{}, apperr.New(apperr.KindIoDecode, "db: table %q not found", table)
	}
	data, err := relation.EncodeRecord(rel.Schema, values)
	if err != nil {
		return relation.RecordID{}, err
	}
	return rel.Heap.Insert(data)
}

// ScanTable decodes and passes every live record in table to cb along
// with its RecordID.
func (m *Manager) ScanTable(table string, cb func(relation.RecordID, []interface{}) error) error {
	rel, ok := m.cat.GetRelation(table)
	if !ok {
		return apperr.New(apperr.KindIoDecode, "db: table %q not found", table)
	}
	return rel.Heap.Scan(func(rid relation.RecordID, raw []byte) error {
		values, err := relation.DecodeRecord(rel.Schema, raw)
		if err != nil {
			return err
		}
		return cb(rid, values)
	})
}

// DeleteWhere deletes every record in table for which match returns
// true, and reports how many were deleted.
func (m *Manager) DeleteWhere(table string, match func([]interface{}) bool) (int, error) {
	rel, ok := m.cat.GetRelation(table)
	if !ok {
		return 0, apperr.New(apperr.KindIoDecode, "db: table %q not found", table)
	}

	var toDelete []relation.RecordID
	err := rel.Heap.Scan(func(rid relation.RecordID, raw []byte) error {
		values, err := relation.DecodeRecord(rel.Schema, raw)
		if err != nil {
			return err
		}
		if match(values) {
			toDelete = append(toDelete, rid)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	for _, rid := range toDelete {
		if err := rel.Heap.FlagDelete(rid); err != nil {
			return 0, err
		}
		if err := rel.Heap.CommitDelete(rid); err != nil {
			return 0, err
		}
	}
	return len(toDelete), nil
}

// UpdateWhere replaces every record in table for which match returns
// true with updater's output, and reports how many were updated.
// Updates are implemented as delete-then-insert, since the new values
// may not fit the old record's slot.
func (m *Manager) UpdateWhere(table string, match func([]interface{}) bool, updater func([]interface{}) []interface{}) (int, error) {
	rel, ok := m.cat.GetRelation(table)
	if !ok {
		return 0, apperr.New(apperr.KindIoDecode, "db: table %q not found", table)
	}

	var toUpdate []relation.RecordID
	var replacements [][]interface{}
	err := rel.Heap.Scan(func(rid relation.RecordID, raw []byte) error {
		values, err := relation.DecodeRecord(rel.Schema, raw)
		if err != nil {
			return err
		}
		if match(values) {
			toUpdate = append(toUpdate, rid)
			replacements = append(replacements, updater(values))
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	for i, rid := range toUpdate {
		data, err := relation.EncodeRecord(rel.Schema, replacements[i])
		if err != nil {
			return 0, err
		}
		if err := rel.Heap.FlagDelete(rid); err != nil {
			return 0, err
		}
		if err := rel.Heap.CommitDelete(rid); err != nil {
			return 0, err
		}
		if _, err := rel.Heap.Insert(data); err != nil {
			return 0, err
		}
	}
	return len(toUpdate), nil
}

// AppendFromCSV reads csvPath, parses one record per non-empty line
// (comma-separated; surrounding " quotes are stripped from a field
// before it is parsed) according to table's schema, and inserts each.
// Returns the number of rows inserted.
func (m *Manager) AppendFromCSV(table string, csvPath string) (int, error) {
	rel, ok := m.cat.GetRelation(table)
	if !ok {
		return 0, apperr.New(apperr.KindIoDecode, "db: table %q not found", table)
	}

	f, err := os.Open(csvPath)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	inserted := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := splitCSVLine(line)
		values, err := parseRowValues(rel.Schema, fields)
		if err != nil {
			return inserted, err
		}
		if _, err := m.InsertValues(table, values); err != nil {
			return inserted, err
		}
		inserted++
	}
	if err := scanner.Err(); err != nil {
		return inserted, err
	}
	return inserted, nil
}

func splitCSVLine(line string) []string {
	parts := strings.Split(line, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		s := strings.TrimSpace(p)
		if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
			s = s[1 : len(s)-1]
		}
		out = append(out, s)
	}
	return out
}

func parseRowValues(schema *relation.Schema, fields []string) ([]interface{}, error) {
	if len(fields) != len(schema.Attributes) {
		return nil, apperr.New(apperr.KindIoDecode, "db: row has %d fields, table has %d columns", len(fields), len(schema.Attributes))
	}
	values := make([]interface{}, len(fields))
	for i, a := range schema.Attributes {
		f := fields[i]
		if f == "" && a.Nullable {
			values[i] = nil
			continue
		}
		var err error
		switch a.DataType {
		case relation.Boolean:
			values[i], err = strconv.ParseBool(f)
		case relation.TinyInt:
			var n int64
			n, err = strconv.ParseInt(f, 10, 8)
			values[i] = int8(n)
		case relation.SmallInt:
			var n int64
			n, err = strconv.ParseInt(f, 10, 16)
			values[i] = int16(n)
		case relation.Int:
			var n int64
			n, err = strconv.ParseInt(f, 10, 32)
			values[i] = int32(n)
		case relation.BigInt:
			values[i], err = strconv.ParseInt(f, 10, 64)
		case relation.Decimal:
			var n float64
			n, err = strconv.ParseFloat(f, 32)
			values[i] = float32(n)
		case relation.Varchar:
			values[i] = f
		}
		if err != nil {
			return nil, apperr.Wrapf(err, "db: parsing column %q", a.Name)
		}
	}
	return values, nil
}
