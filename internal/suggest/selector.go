// Package suggest picks one unseen catalog entry matching a user's filter
// profile.
package suggest

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"

	"watchnext-suggestion-service/internal/models"
	"watchnext-suggestion-service/internal/repository"
)

// DefaultMaxRetries bounds how often a selection is retried after a
// concurrent decision shrinks the eligible set between count and fetch.
const DefaultMaxRetries = 3

// Selector returns one eligible title for a user or models.ErrExhausted.
// It is read-only and safe for concurrent use across users; calls for the
// same user are serialized by the conversation state machine.
type Selector struct {
	titles     repository.TitleRepository
	profiles   repository.ProfileRepository
	maxRetries int

	// intn is swapped out in tests for deterministic offsets.
	intn func(n int) int
}

// NewSelector creates a new Selector.
func NewSelector(titles repository.TitleRepository, profiles repository.ProfileRepository, maxRetries int) *Selector {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	return &Selector{
		titles:     titles,
		profiles:   profiles,
		maxRetries: maxRetries,
		intn:       rand.IntN,
	}
}

// Select picks one title the user has not decided on that satisfies every
// bound of their filter profile, near-uniformly over the eligible set.
// Rather than materializing the set, it counts the eligible rows and fetches
// a random offset of the id ordering, retrying when the set shrank
// concurrently. Returns models.ErrExhausted when nothing remains.
func (s *Selector) Select(ctx context.Context, userID int64) (*models.Title, error) {
	profile, err := s.profiles.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	for attempt := 0; attempt < s.maxRetries; attempt++ {
		count, err := s.titles.CountEligible(ctx, userID, profile)
		if err != nil {
			return nil, err
		}
		if count == 0 {
			return nil, models.ErrExhausted
		}

		title, err := s.titles.EligibleAt(ctx, userID, profile, s.intn(count))
		if errors.Is(err, models.ErrNotFound) {
			// The eligible set shrank under the sampled offset; re-query.
			slog.Debug("eligible set shrank during selection", "user_id", userID, "attempt", attempt)
			continue
		}
		if err != nil {
			return nil, err
		}
		return title, nil
	}

	// All retries raced with concurrent decisions; fall back to the first
	// eligible title, which is still guaranteed undecided.
	title, err := s.titles.EligibleAt(ctx, userID, profile, 0)
	if errors.Is(err, models.ErrNotFound) {
		return nil, models.ErrExhausted
	}
	if err != nil {
		return nil, err
	}
	return title, nil
}
