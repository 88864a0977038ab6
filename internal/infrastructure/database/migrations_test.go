package database

import (
	"context"
	"testing"
	"testing/fstest"
)

const commandLogUp = `
CREATE TABLE command_log (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	status TEXT NOT NULL
);
`

const commandLogDown = `DROP TABLE command_log;`

const commandLogIndexUp = `
CREATE INDEX idx_command_log_user ON command_log (user_id);
`

const commandLogIndexDown = `DROP INDEX idx_command_log_user;`

// withMigrations swaps in a fixture filesystem for the duration of the test.
func withMigrations(t *testing.T, files map[string]string) {
	t.Helper()

	mapFS := fstest.MapFS{}
	for name, sql := range files {
		mapFS[name] = &fstest.MapFile{Data: []byte(sql)}
	}

	prevFS, prevDir := MigrationsFS, MigrationsDir
	MigrationsFS = mapFS
	MigrationsDir = "."
	t.Cleanup(func() {
		MigrationsFS, MigrationsDir = prevFS, prevDir
	})
}

func tableExists(t *testing.T, db *DB, name string) bool {
	t.Helper()

	var n int
	err := db.QueryRowContext(context.Background(),
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", name,
	).Scan(&n)
	if err != nil {
		t.Fatalf("checking for table %s: %v", name, err)
	}
	return n == 1
}

func TestMigrate_AppliesInOrder(t *testing.T) {
	withMigrations(t, map[string]string{
		"20260210_120000_create_command_log.up.sql":   commandLogUp,
		"20260210_120000_create_command_log.down.sql": commandLogDown,
		"20260211_090000_add_user_index.up.sql":       commandLogIndexUp,
		"20260211_090000_add_user_index.down.sql":     commandLogIndexDown,
	})
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if !tableExists(t, db, "command_log") {
		t.Error("command_log table was not created")
	}

	applied, pending, err := db.GetMigrationStatus(ctx)
	if err != nil {
		t.Fatalf("GetMigrationStatus() error = %v", err)
	}
	if len(applied) != 2 || len(pending) != 0 {
		t.Fatalf("applied=%d pending=%d, want 2/0", len(applied), len(pending))
	}
	if applied[0].Version != "20260210_120000" || applied[1].Version != "20260211_090000" {
		t.Errorf("unexpected order: %s, %s", applied[0].Version, applied[1].Version)
	}
	if applied[0].AppliedAt.IsZero() {
		t.Error("applied_at not recorded")
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	withMigrations(t, map[string]string{
		"20260210_120000_create_command_log.up.sql": commandLogUp,
	})
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("first Migrate() error = %v", err)
	}
	// A second run sees nothing pending and must not re-execute the SQL.
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}

	applied, _, err := db.GetMigrationStatus(ctx)
	if err != nil {
		t.Fatalf("GetMigrationStatus() error = %v", err)
	}
	if len(applied) != 1 {
		t.Errorf("applied = %d, want 1", len(applied))
	}
}

func TestMigrate_FailureRollsBackAlone(t *testing.T) {
	withMigrations(t, map[string]string{
		"20260210_120000_create_command_log.up.sql": commandLogUp,
		"20260211_090000_broken.up.sql":             "THIS IS NOT SQL;",
	})
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx); err == nil {
		t.Fatal("Migrate() should fail on the broken migration")
	}

	// The first migration stays committed, the broken one is unrecorded.
	if !tableExists(t, db, "command_log") {
		t.Error("earlier migration should remain applied")
	}
	applied, pending, err := db.GetMigrationStatus(ctx)
	if err != nil {
		t.Fatalf("GetMigrationStatus() error = %v", err)
	}
	if len(applied) != 1 || len(pending) != 1 {
		t.Errorf("applied=%d pending=%d, want 1/1", len(applied), len(pending))
	}
}

func TestMigrateDown(t *testing.T) {
	withMigrations(t, map[string]string{
		"20260210_120000_create_command_log.up.sql":   commandLogUp,
		"20260210_120000_create_command_log.down.sql": commandLogDown,
	})
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if err := db.MigrateDown(ctx); err != nil {
		t.Fatalf("MigrateDown() error = %v", err)
	}

	if tableExists(t, db, "command_log") {
		t.Error("command_log should be dropped after rollback")
	}
	applied, pending, err := db.GetMigrationStatus(ctx)
	if err != nil {
		t.Fatalf("GetMigrationStatus() error = %v", err)
	}
	if len(applied) != 0 || len(pending) != 1 {
		t.Errorf("applied=%d pending=%d, want 0/1", len(applied), len(pending))
	}

	// Rolling back an empty ledger is a no-op.
	if err := db.MigrateDown(ctx); err != nil {
		t.Errorf("MigrateDown() on empty ledger error = %v", err)
	}
}

func TestMigrateDown_NoDownSQL(t *testing.T) {
	withMigrations(t, map[string]string{
		"20260210_120000_create_command_log.up.sql": commandLogUp,
	})
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if err := db.MigrateDown(ctx); err == nil {
		t.Fatal("MigrateDown() should fail without down SQL")
	}
}

func TestSplitMigrationFilename(t *testing.T) {
	tests := []struct {
		filename string
		version  string
		name     string
		up       bool
		ok       bool
	}{
		{"20260210_120000_create_command_log.up.sql", "20260210_120000", "create_command_log", true, true},
		{"20260210_120000_create_command_log.down.sql", "20260210_120000", "create_command_log", false, true},
		{"20260210_120000.up.sql", "20260210_120000", "20260210_120000", true, true},
		{"badname.up.sql", "", "", false, false},
		{"notes.txt", "", "", false, false},
		{"schema.sql", "", "", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			version, name, up, ok := splitMigrationFilename(tt.filename)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if !ok {
				return
			}
			if version != tt.version || name != tt.name || up != tt.up {
				t.Errorf("got (%q, %q, %v), want (%q, %q, %v)",
					version, name, up, tt.version, tt.name, tt.up)
			}
		})
	}
}

// loadMigrations tolerates an unset filesystem and a missing directory.
func TestLoadMigrations_Unset(t *testing.T) {
	prevFS, prevDir := MigrationsFS, MigrationsDir
	MigrationsFS = nil
	t.Cleanup(func() {
		MigrationsFS, MigrationsDir = prevFS, prevDir
	})

	migrations, err := loadMigrations()
	if err != nil || migrations != nil {
		t.Errorf("loadMigrations() = %v, %v; want nil, nil", migrations, err)
	}

	MigrationsFS = fstest.MapFS{}
	MigrationsDir = "missing"
	migrations, err = loadMigrations()
	if err != nil || migrations != nil {
		t.Errorf("loadMigrations() with missing dir = %v, %v; want nil, nil", migrations, err)
	}
}
