package database

import (
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq"

	"watchnext-suggestion-service/internal/config"
)

// NewPostgres creates a new PostgreSQL connection and runs migrations.
func NewPostgres(cfg config.DBConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)

	slog.Info("connected to PostgreSQL", "db", cfg.DBName)

	if err := runMigrations(db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}

func runMigrations(db *sql.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS titles (
			id BIGINT PRIMARY KEY,
			title VARCHAR(500) NOT NULL,
			type VARCHAR(16) NOT NULL,
			genres TEXT[] NOT NULL DEFAULT '{}',
			rating DOUBLE PRECISION,
			votes INTEGER,
			start_year INTEGER,
			end_year INTEGER,
			updated_at TIMESTAMP NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS filter_profiles (
			user_id BIGINT PRIMARY KEY,
			genres TEXT[] NOT NULL DEFAULT '{}',
			require_all_genres BOOLEAN NOT NULL DEFAULT FALSE,
			types TEXT[] NOT NULL DEFAULT '{}',
			min_rating DOUBLE PRECISION,
			min_votes INTEGER,
			year_from INTEGER,
			year_to INTEGER,
			updated_at TIMESTAMP NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS decisions (
			user_id BIGINT NOT NULL,
			title_id BIGINT NOT NULL,
			kind VARCHAR(20) NOT NULL,
			decided_at TIMESTAMP NOT NULL DEFAULT NOW(),
			PRIMARY KEY (user_id, title_id)
		)`,
		// Indexes for the selector's predicate columns
		`CREATE INDEX IF NOT EXISTS idx_titles_type ON titles(type)`,
		`CREATE INDEX IF NOT EXISTS idx_titles_rating ON titles(rating)`,
		`CREATE INDEX IF NOT EXISTS idx_titles_votes ON titles(votes)`,
		`CREATE INDEX IF NOT EXISTS idx_titles_start_year ON titles(start_year)`,
		`CREATE INDEX IF NOT EXISTS idx_titles_genres ON titles USING GIN(genres)`,
		`CREATE INDEX IF NOT EXISTS idx_decisions_user ON decisions(user_id)`,
	}

	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}

	slog.Info("database migrations completed")
	return nil
}
