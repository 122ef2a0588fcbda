package migrations

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/nerrad567/gray-logic-hub/internal/infrastructure/database"
)

func TestEmbeddedMigrationsApply(t *testing.T) {
	ctx := context.Background()
	db, err := database.Open(ctx, database.Config{Path: filepath.Join(t.TempDir(), "hub.db"), WALMode: true})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close() //nolint:errcheck // test cleanup

	loaded, err := database.LoadMigrations(FS)
	if err != nil || len(loaded) == 0 {
		t.Fatalf("LoadMigrations() = %d migrations, %v", len(loaded), err)
	}
	for _, m := range loaded {
		if m.Down == "" {
			t.Errorf("migration %s has no down script", m.Version)
		}
	}

	if err := db.Migrate(ctx, FS); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if _, err := db.ExecContext(ctx,
		`INSERT INTO telemetry_history (device_id, sensor_type, value, unit, sample_ts, created_at)
		 VALUES ('temperature_sensor_10.0.0.7_41000', 'temperature', 21.5, '°C', 1700000000, '2026-10-17T09:00:00Z')`,
	); err != nil {
		t.Fatalf("insert into telemetry_history: %v", err)
	}

	for range loaded {
		if err := db.MigrateDown(ctx, FS); err != nil {
			t.Fatalf("MigrateDown() error = %v", err)
		}
	}
	var n int
	if err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE name = 'telemetry_history'",
	).Scan(&n); err != nil || n != 0 {
		t.Errorf("telemetry_history still present after rollback (n=%d, err=%v)", n, err)
	}
}
