// Package database owns the SQLite cache that backs shadesync's
// registry. It lets the service answer shade and scene status from
// the last known state before the gateway has been reached after a
// restart, and records every accepted state change as it happens.
//
// The database opens in WAL mode with a single-connection pool,
// which matches SQLite's one-writer model and keeps the busy
// timeout from ever firing in practice. The file is created with
// 0600 permissions and all queries use parameterised statements.
//
// Usage:
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Schema changes ship as embedded forward-only migrations and are
// additive: new columns arrive nullable or with defaults, and
// nothing is dropped or renamed, so an older binary can still open
// a file written by a newer one.
package database
