// Package repository defines persistence interfaces and their PostgreSQL
// implementations.
package repository

import (
	"context"

	"watchnext-suggestion-service/internal/models"
)

// TitleRepository is the read-mostly catalog store. The interaction engine
// never mutates it; only the import collaborator writes through UpsertBatch.
type TitleRepository interface {
	// CountEligible returns how many titles match the profile and carry no
	// decision from the user.
	CountEligible(ctx context.Context, userID int64, p models.FilterProfile) (int, error)

	// EligibleAt returns the eligible title at the given offset of the
	// deterministic id ordering. Returns models.ErrNotFound when the
	// eligible set has shrunk below the offset.
	EligibleAt(ctx context.Context, userID int64, p models.FilterProfile, offset int) (*models.Title, error)

	// GetByID returns one title. Returns models.ErrNotFound if absent.
	GetByID(ctx context.Context, id int64) (*models.Title, error)

	// UpsertBatch inserts or replaces a batch of titles atomically.
	UpsertBatch(ctx context.Context, titles []models.Title) error

	// AllGenres returns every genre present in the catalog, sorted.
	AllGenres(ctx context.Context) ([]string, error)
}

// ProfileRepository is the durable per-user filter profile store.
type ProfileRepository interface {
	// Get returns the user's current profile, or the default profile if the
	// user has never committed one.
	Get(ctx context.Context, userID int64) (models.FilterProfile, error)

	// Replace stores the profile wholesale, overwriting any previous one.
	Replace(ctx context.Context, userID int64, p models.FilterProfile) error
}

// DecisionRepository is the durable per-user judgment store. Exclusion from
// suggestions is pushed down into the catalog query, so reads here are only
// needed for diagnostics.
type DecisionRepository interface {
	// Upsert records a decision, overwriting an earlier decision on the
	// same title.
	Upsert(ctx context.Context, d models.Decision) error

	// CountForUser returns the size of the user's exclusion set.
	CountForUser(ctx context.Context, userID int64) (int, error)
}
