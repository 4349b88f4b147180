package database

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver

	"weathergen/internal/platform/config"
)

func Connect(cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open("pgx", cfg.DBConnStr)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	// Verify connection
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	return db, nil
}

// EnsureJobSchema creates the job record table used by the postgres store
// backend. The version column is what conditional writes key on.
func EnsureJobSchema(db *sql.DB) error {
	schema := `CREATE TABLE IF NOT EXISTS weather_jobs (
	    id      TEXT PRIMARY KEY,
	    record  JSONB NOT NULL,
	    version BIGINT NOT NULL
	)`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("creating weather_jobs table: %w", err)
	}
	return nil
}
