package migrate

import (
	"database/sql"
	"testing"
	"testing/fstest"

	_ "modernc.org/sqlite"
)

func testFS() fstest.MapFS {
	return fstest.MapFS{
		"m/001_create_widgets.up.sql":   {Data: []byte("CREATE TABLE widgets (id INTEGER PRIMARY KEY);")},
		"m/001_create_widgets.down.sql": {Data: []byte("DROP TABLE widgets;")},
		"m/002_add_name.up.sql":         {Data: []byte("ALTER TABLE widgets ADD COLUMN name TEXT;")},
		"m/002_add_name.down.sql":       {Data: []byte("ALTER TABLE widgets DROP COLUMN name;")},
		"m/README.md":                   {Data: []byte("ignored")},
	}
}

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestGetMigrations(t *testing.T) {
	p := NewFSProvider(testFS(), "m", "", DriverSQLite)

	migrations, err := p.GetMigrations()
	if err != nil {
		t.Fatalf("GetMigrations: %v", err)
	}

	if len(migrations) != 2 {
		t.Fatalf("got %d migrations, expected 2", len(migrations))
	}
	if migrations[0].Version != 1 || migrations[0].Name != "create widgets" {
		t.Errorf("first migration = %d %q, expected 1 \"create widgets\"", migrations[0].Version, migrations[0].Name)
	}
	if migrations[1].Down == "" {
		t.Errorf("migration 2 has no down SQL")
	}
}

func TestMigrateUpAndDown(t *testing.T) {
	db := openDB(t)
	m := NewMigrator(db, NewFSProvider(testFS(), "m", "", DriverSQLite), nil)

	if err := m.MigrateUp(); err != nil {
		t.Fatalf("MigrateUp: %v", err)
	}

	status, err := m.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.Current != 2 || status.Latest != 2 || len(status.Pending) != 0 {
		t.Errorf("status = %+v, expected current 2, latest 2, nothing pending", status)
	}

	if _, err := db.Exec("INSERT INTO widgets (name) VALUES ('a')"); err != nil {
		t.Fatalf("insert after migrate: %v", err)
	}

	if err := m.MigrateTo(1); err != nil {
		t.Fatalf("MigrateTo(1): %v", err)
	}
	status, _ = m.Status()
	if status.Current != 1 {
		t.Errorf("current = %d, expected 1", status.Current)
	}

	if err := m.MigrateDown(1); err == nil {
		t.Errorf("MigrateDown to the current version should fail")
	}
}

func TestMigrationWithoutDown(t *testing.T) {
	fsys := fstest.MapFS{
		"m/001_only_up.up.sql": {Data: []byte("CREATE TABLE t (id INTEGER);")},
	}
	db := openDB(t)
	m := NewMigrator(db, NewFSProvider(fsys, "m", "", DriverSQLite), nil)

	if err := m.MigrateUp(); err != nil {
		t.Fatalf("MigrateUp: %v", err)
	}
	if err := m.MigrateDown(0); err == nil {
		t.Errorf("expected an error rolling back a migration without down SQL")
	}
}
