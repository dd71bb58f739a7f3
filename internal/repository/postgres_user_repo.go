package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"watchnext-suggestion-service/internal/models"
)

// PostgresUserRepository implements ProfileRepository and DecisionRepository
// on PostgreSQL. Writes for the same user are serialized by the conversation
// state machine, so single-row upserts are sufficient for linearizability.
type PostgresUserRepository struct {
	db *sql.DB
}

// NewPostgresUserRepository creates a new PostgresUserRepository.
func NewPostgresUserRepository(db *sql.DB) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

// Get returns the user's filter profile, or the default profile if the user
// has never committed one.
func (r *PostgresUserRepository) Get(ctx context.Context, userID int64) (models.FilterProfile, error) {
	var p models.FilterProfile
	var types []string
	var minRating sql.NullFloat64
	var minVotes, yearFrom, yearTo sql.NullInt64

	err := r.db.QueryRowContext(ctx, `
		SELECT genres, require_all_genres, types, min_rating, min_votes, year_from, year_to
		FROM filter_profiles WHERE user_id = $1
	`, userID).Scan(pq.Array(&p.Genres), &p.RequireAllGenres, pq.Array(&types),
		&minRating, &minVotes, &yearFrom, &yearTo)
	if errors.Is(err, sql.ErrNoRows) {
		return models.DefaultFilterProfile(), nil
	}
	if err != nil {
		return models.FilterProfile{}, &models.StoreError{Op: "get filter profile", Err: err}
	}

	p.Types = make([]models.TitleType, len(types))
	for i, t := range types {
		p.Types[i] = models.TitleType(t)
	}
	if minRating.Valid {
		v := minRating.Float64
		p.MinRating = &v
	}
	if minVotes.Valid {
		v := int(minVotes.Int64)
		p.MinVotes = &v
	}
	if yearFrom.Valid {
		v := int(yearFrom.Int64)
		p.YearFrom = &v
	}
	if yearTo.Valid {
		v := int(yearTo.Int64)
		p.YearTo = &v
	}
	return p, nil
}

// Replace stores the profile wholesale, overwriting any previous one.
func (r *PostgresUserRepository) Replace(ctx context.Context, userID int64, p models.FilterProfile) error {
	types := make([]string, len(p.Types))
	for i, t := range p.Types {
		types[i] = string(t)
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO filter_profiles (user_id, genres, require_all_genres, types,
			min_rating, min_votes, year_from, year_to, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			genres = EXCLUDED.genres,
			require_all_genres = EXCLUDED.require_all_genres,
			types = EXCLUDED.types,
			min_rating = EXCLUDED.min_rating,
			min_votes = EXCLUDED.min_votes,
			year_from = EXCLUDED.year_from,
			year_to = EXCLUDED.year_to,
			updated_at = NOW()
	`, userID, pq.Array(p.Genres), p.RequireAllGenres, pq.Array(types),
		nullFloat(p.MinRating), nullInt(p.MinVotes), nullInt(p.YearFrom), nullInt(p.YearTo))
	if err != nil {
		return &models.StoreError{Op: "replace filter profile", Err: err}
	}
	return nil
}

// Upsert records a decision, overwriting an earlier decision on the same
// title.
func (r *PostgresUserRepository) Upsert(ctx context.Context, d models.Decision) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO decisions (user_id, title_id, kind, decided_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, title_id) DO UPDATE SET
			kind = EXCLUDED.kind,
			decided_at = EXCLUDED.decided_at
	`, d.UserID, d.TitleID, string(d.Kind), d.DecidedAt)
	if err != nil {
		return &models.StoreError{Op: "upsert decision", Err: err}
	}
	return nil
}

// CountForUser returns the size of the user's exclusion set.
func (r *PostgresUserRepository) CountForUser(ctx context.Context, userID int64) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM decisions WHERE user_id = $1
	`, userID).Scan(&count)
	if err != nil {
		return 0, &models.StoreError{Op: "count decisions", Err: err}
	}
	return count, nil
}
