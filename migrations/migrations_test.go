package migrations

import (
	"io/fs"
	"strings"
	"testing"
)

func TestLedgerMigrationUsesBlockingTriggers(t *testing.T) {
	sqlBytes, err := fs.ReadFile(FS, "00001_ledgers.sql")
	if err != nil {
		t.Fatalf("read migration: %v", err)
	}
	sqlText := string(sqlBytes)

	expected := []string{
		"ledger_append_only_guard",
		"RAISE EXCEPTION",
		"ERRCODE = '55000'",
		"CREATE TRIGGER trg_changesets_block_update",
		"CREATE TRIGGER trg_changesets_block_delete",
		"CREATE TRIGGER trg_decision_edges_block_update",
		"CREATE TRIGGER trg_decision_edges_block_delete",
	}
	for _, snippet := range expected {
		if !strings.Contains(sqlText, snippet) {
			t.Fatalf("expected migration to contain %q", snippet)
		}
	}
	if strings.Contains(sqlText, "DO INSTEAD NOTHING") {
		t.Fatal("expected hard-fail guard, found silent DO INSTEAD NOTHING rule")
	}
}

func TestMigrationsAreOrdered(t *testing.T) {
	entries, err := fs.Glob(FS, "*.sql")
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(entries) < 2 {
		t.Fatalf("expected at least 2 migrations, got %v", entries)
	}
	for i := 1; i < len(entries); i++ {
		if entries[i-1] >= entries[i] {
			t.Fatalf("migrations out of order: %s >= %s", entries[i-1], entries[i])
		}
	}
	for _, e := range entries {
		data, _ := fs.ReadFile(FS, e)
		if !strings.Contains(string(data), "-- +goose Up") || !strings.Contains(string(data), "-- +goose Down") {
			t.Errorf("%s is missing goose annotations", e)
		}
	}
}
