package db

import (
	"testing"

	"github.com/rs/zerolog"

	"github.com/malzahar/jindb/config"
	"github.com/malzahar/jindb/relation"
)

func testSchema() *relation.Schema {
	return relation.NewSchema([]relation.Attribute{
		relation.NewAttribute("C1", relation.Decimal, false),
		relation.NewAttribute("C2", relation.Int, false),
	})
}

func TestManagerPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	cfg := config.NewDBConfig(dir)

	m, err := Open(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := m.CreateTable("Tab1", testSchema()); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	if _, err := m.InsertValues("Tab1", []interface{}{float32(1.5), int32(7)}); err != nil {
		t.Fatalf("InsertValues: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	m2, err := Open(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("Open after close: %v", err)
	}
	t.Cleanup(func() { _ = m2.Close() })

	rel, ok := m2.GetTable("Tab1")
	if !ok {
		t.Fatalf("Tab1 not found after reopen")
	}
	if rel.Name != "Tab1" {
		t.Fatalf("unexpected relation name %q", rel.Name)
	}

	count := 0
	err = m2.ScanTable("Tab1", func(_ relation.RecordID, values []interface{}) error {
		count++
		return nil
	})
	if err != nil {
		t.Fatalf("ScanTable: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 record after reopen, got %d", count)
	}
}

func TestDropTables(t *testing.T) {
	dir := t.TempDir()
	cfg := config.NewDBConfig(dir)
	m, err := Open(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = m.Close() })

	schema := relation.NewSchema([]relation.Attribute{relation.NewAttribute("A", relation.Int, false)})
	if _, err := m.CreateTable("T1", schema); err != nil {
		t.Fatalf("CreateTable T1: %v", err)
	}
	if _, err := m.CreateTable("T2", schema); err != nil {
		t.Fatalf("CreateTable T2: %v", err)
	}
	if err := m.DropTable("T1"); err != nil {
		t.Fatalf("DropTable T1: %v", err)
	}
	if _, ok := m.GetTable("T1"); ok {
		t.Fatalf("expected T1 to be removed")
	}
	if err := m.DropAllTables(); err != nil {
		t.Fatalf("DropAllTables: %v", err)
	}
	if len(m.TableNames()) != 0 {
		t.Fatalf("expected no tables remaining")
	}
}
