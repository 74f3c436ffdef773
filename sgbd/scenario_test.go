package sgbd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/malzahar/jindb/config"
)

// TestScenario drives a typical session through ProcessCommand end to end.
func TestScenario(t *testing.T) {
	dir := t.TempDir()
	cfg := config.NewDBConfig(dir)
	s, err := NewSGBD(cfg)
	if err != nil {
		t.Fatalf("NewSGBD: %v", err)
	}
	t.Cleanup(func() { _ = s.dbm.Close() })

	var out bytes.Buffer

	cmds := []string{
		"CREATE TABLE Tab1 (C1:DECIMAL,C2:INT)",
		"CREATE TABLE Tab2 (C7:VARCHAR,AA:VARCHAR)",
		"CREATE TABLE Tab3 (Toto:VARCHAR)",
		"DESCRIBE TABLE Tab1",
		"DESCRIBE TABLES",
		"DROP TABLE Tab1",
		"DESCRIBE TABLES",
	}

	for _, c := range cmds {
		out.Reset()
		if err := s.ProcessCommand(c, &out); err != nil {
			t.Fatalf("ProcessCommand(%q) failed: %v", c, err)
		}
		up := strings.ToUpper(c)
		if strings.HasPrefix(up, "CREATE TABLE") || strings.HasPrefix(up, "DROP TABLE") || strings.HasPrefix(up, "DROP TABLES") {
			got := strings.TrimSpace(out.String())
			if got != "OK" && got != "" {
				t.Fatalf("expected OK for %s, got %q", c, got)
			}
		}
		if strings.HasPrefix(up, "DESCRIBE TABLE ") {
			got := strings.TrimSpace(out.String())
			if !strings.HasPrefix(got, "Tab1 (") {
				t.Fatalf("DESCRIBE TABLE Tab1 unexpected output: %q", got)
			}
		}
	}

	var allOut bytes.Buffer
	if err := s.ProcessCommand("DESCRIBE TABLES", &allOut); err != nil {
		t.Fatalf("ProcessCommand(DESCRIBE TABLES): %v", err)
	}
	if strings.Contains(allOut.String(), "Tab1 (") {
		t.Fatalf("Tab1 still present after DROP TABLE: output=%q", allOut.String())
	}
}

// TestDropTables exercises DROP TABLES and confirms the emptied catalog
// survives a close/reopen of the same database.
func TestDropTables(t *testing.T) {
	dir := t.TempDir()
	cfg := config.NewDBConfig(dir)
	s, err := NewSGBD(cfg)
	if err != nil {
		t.Fatalf("NewSGBD: %v", err)
	}

	var out bytes.Buffer
	cmds := []string{
		"CREATE TABLE Tab1 (C1:DECIMAL,C2:INT)",
		"CREATE TABLE Tab2 (C7:VARCHAR,AA:VARCHAR)",
		"CREATE TABLE Tab3 (Toto:VARCHAR)",
	}
	for _, c := range cmds {
		out.Reset()
		if err := s.ProcessCommand(c, &out); err != nil {
			t.Fatalf("ProcessCommand(%q) failed: %v", c, err)
		}
	}

	out.Reset()
	if err := s.ProcessCommand("DESCRIBE TABLES", &out); err != nil {
		t.Fatalf("ProcessCommand(DESCRIBE TABLES): %v", err)
	}
	txt := out.String()
	if !strings.Contains(txt, "Tab1 (") || !strings.Contains(txt, "Tab2 (") || !strings.Contains(txt, "Tab3 (") {
		t.Fatalf("Tables not created properly: output=%q", txt)
	}

	out.Reset()
	if err := s.ProcessCommand("DROP TABLES", &out); err != nil {
		t.Fatalf("ProcessCommand(DROP TABLES) failed: %v", err)
	}
	if got := strings.TrimSpace(out.String()); got != "OK" {
		t.Fatalf("expected OK for DROP TABLES, got %q", got)
	}

	out.Reset()
	if err := s.ProcessCommand("DESCRIBE TABLES", &out); err != nil {
		t.Fatalf("ProcessCommand(DESCRIBE TABLES): %v", err)
	}
	txt = out.String()
	if strings.Contains(txt, "Tab1 (") || strings.Contains(txt, "Tab2 (") || strings.Contains(txt, "Tab3 (") {
		t.Fatalf("Tables still present after DROP TABLES: output=%q", txt)
	}

	if err := s.dbm.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s2, err := NewSGBD(cfg)
	if err != nil {
		t.Fatalf("NewSGBD after close: %v", err)
	}
	t.Cleanup(func() { _ = s2.dbm.Close() })

	out.Reset()
	if err := s2.ProcessCommand("DESCRIBE TABLES", &out); err != nil {
		t.Fatalf("ProcessCommand(DESCRIBE TABLES) after reload: %v", err)
	}
	txt = out.String()
	if strings.Contains(txt, "Tab1 (") || strings.Contains(txt, "Tab2 (") || strings.Contains(txt, "Tab3 (") {
		t.Fatalf("Tables still present after reload: output=%q", txt)
	}
}
