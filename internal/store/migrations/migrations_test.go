package migrations

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

func TestSQLiteUpDownUp(t *testing.T) {
	db, err := sql.Open("sqlite", "file:"+filepath.Join(t.TempDir(), "m.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := UpSQLite(db); err != nil {
		t.Fatalf("first up: %v", err)
	}
	if err := UpSQLite(db); err != nil {
		t.Fatalf("second up should be a no-op: %v", err)
	}

	m, err := SQLite(db)
	if err != nil {
		t.Fatalf("migrator: %v", err)
	}
	version, dirty, err := m.Version()
	if err != nil || dirty || version != 1 {
		t.Fatalf("unexpected version %d dirty=%v err=%v", version, dirty, err)
	}

	if err := Down(m, 0); err != nil {
		t.Fatalf("down: %v", err)
	}
	var n int
	if err := db.QueryRow(`SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = 'accounts'`).Scan(&n); err != nil {
		t.Fatalf("inspect schema: %v", err)
	}
	if n != 0 {
		t.Fatalf("accounts table survived down migration")
	}
	if err := Up(m); err != nil {
		t.Fatalf("up after down: %v", err)
	}
}
