// Package database provides SQLite connectivity for the Eufy bridge.
//
// This package manages:
//   - Database connection with WAL mode for concurrent access
//   - Schema migrations loaded from an embedded filesystem
//   - Connection lifecycle and health checks
//
// The database holds the command audit trail. Device state is never
// persisted; it is reloaded from the devices on connect.
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{
//	    Path:        cfg.Database.Path,
//	    WALMode:     cfg.Database.WALMode,
//	    BusyTimeout: cfg.Database.BusyTimeout,
//	})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migrations are additive: each version ships an .up.sql and a .down.sql
// file named YYYYMMDD_HHMMSS_description.
package database
