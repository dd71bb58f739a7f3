package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"watchnext-suggestion-service/internal/models"
)

// PostgresTitleRepository implements TitleRepository on PostgreSQL.
type PostgresTitleRepository struct {
	db *sql.DB
}

// NewPostgresTitleRepository creates a new PostgresTitleRepository.
func NewPostgresTitleRepository(db *sql.DB) *PostgresTitleRepository {
	return &PostgresTitleRepository{db: db}
}

const titleColumns = "t.id, t.title, t.type, t.genres, t.rating, t.votes, t.start_year, t.end_year"

// CountEligible returns how many titles match the profile for this user.
func (r *PostgresTitleRepository) CountEligible(ctx context.Context, userID int64, p models.FilterProfile) (int, error) {
	clauses, args := eligibleConditions(userID, p)
	query := fmt.Sprintf("SELECT COUNT(*) FROM titles t WHERE %s", strings.Join(clauses, " AND "))

	var count int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, &models.StoreError{Op: "count eligible titles", Err: err}
	}
	return count, nil
}

// EligibleAt returns the eligible title at the given offset of the id
// ordering.
func (r *PostgresTitleRepository) EligibleAt(ctx context.Context, userID int64, p models.FilterProfile, offset int) (*models.Title, error) {
	clauses, args := eligibleConditions(userID, p)
	query := fmt.Sprintf(`
		SELECT %s FROM titles t
		WHERE %s
		ORDER BY t.id
		LIMIT 1 OFFSET $%d
	`, titleColumns, strings.Join(clauses, " AND "), len(args)+1)
	args = append(args, offset)

	return r.scanOne(r.db.QueryRowContext(ctx, query, args...), "select eligible title")
}

// GetByID returns one title by its id.
func (r *PostgresTitleRepository) GetByID(ctx context.Context, id int64) (*models.Title, error) {
	query := fmt.Sprintf("SELECT %s FROM titles t WHERE t.id = $1", titleColumns)
	return r.scanOne(r.db.QueryRowContext(ctx, query, id), "get title")
}

func (r *PostgresTitleRepository) scanOne(row *sql.Row, op string) (*models.Title, error) {
	var t models.Title
	var rating sql.NullFloat64
	var votes, startYear, endYear sql.NullInt64

	err := row.Scan(&t.ID, &t.Title, &t.Type, pq.Array(&t.Genres), &rating, &votes, &startYear, &endYear)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, &models.StoreError{Op: op, Err: err}
	}

	if rating.Valid {
		v := rating.Float64
		t.Rating = &v
	}
	if votes.Valid {
		v := int(votes.Int64)
		t.Votes = &v
	}
	if startYear.Valid {
		v := int(startYear.Int64)
		t.StartYear = &v
	}
	if endYear.Valid {
		v := int(endYear.Int64)
		t.EndYear = &v
	}
	return &t, nil
}

// UpsertBatch inserts or replaces a batch of titles in one transaction.
func (r *PostgresTitleRepository) UpsertBatch(ctx context.Context, titles []models.Title) error {
	if len(titles) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return &models.StoreError{Op: "begin title batch", Err: err}
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO titles (id, title, type, genres, rating, votes, start_year, end_year, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			type = EXCLUDED.type,
			genres = EXCLUDED.genres,
			rating = EXCLUDED.rating,
			votes = EXCLUDED.votes,
			start_year = EXCLUDED.start_year,
			end_year = EXCLUDED.end_year,
			updated_at = EXCLUDED.updated_at
	`)
	if err != nil {
		return &models.StoreError{Op: "prepare title upsert", Err: err}
	}
	defer stmt.Close()

	now := time.Now()
	for _, t := range titles {
		_, err := stmt.ExecContext(ctx, t.ID, t.Title, string(t.Type), pq.Array(t.Genres),
			nullFloat(t.Rating), nullInt(t.Votes), nullInt(t.StartYear), nullInt(t.EndYear), now)
		if err != nil {
			return &models.StoreError{Op: fmt.Sprintf("upsert title %d", t.ID), Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return &models.StoreError{Op: "commit title batch", Err: err}
	}
	return nil
}

// AllGenres returns every genre present in the catalog, sorted.
func (r *PostgresTitleRepository) AllGenres(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT unnest(genres) AS genre FROM titles ORDER BY genre
	`)
	if err != nil {
		return nil, &models.StoreError{Op: "list genres", Err: err}
	}
	defer rows.Close()

	genres := make([]string, 0)
	for rows.Next() {
		var g string
		if err := rows.Scan(&g); err != nil {
			return nil, &models.StoreError{Op: "scan genre", Err: err}
		}
		genres = append(genres, g)
	}
	if err := rows.Err(); err != nil {
		return nil, &models.StoreError{Op: "list genres", Err: err}
	}
	return genres, nil
}

func nullFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}
