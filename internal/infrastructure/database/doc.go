// Package database opens the optional SQLite file behind the telemetry
// history store and applies its schema migrations.
//
// The device registry never touches it; the registry lives in memory.
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
package database
