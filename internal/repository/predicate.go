package repository

import (
	"fmt"

	"github.com/lib/pq"

	"watchnext-suggestion-service/internal/models"
)

// eligibleConditions translates a filter profile into parameterized WHERE
// clauses over the titles table, excluding every title the user has decided
// on. Clauses are conjunctive. Columns with NULL values fail any range bound
// on them: an unknown rating or year is never good enough.
//
// The decision exclusion is an id anti-join only, so a decision referencing
// a title that has since vanished from the catalog degrades gracefully.
func eligibleConditions(userID int64, p models.FilterProfile) (clauses []string, args []any) {
	args = append(args, userID)
	clauses = append(clauses, fmt.Sprintf(
		"NOT EXISTS (SELECT 1 FROM decisions d WHERE d.user_id = $%d AND d.title_id = t.id)", len(args)))

	if len(p.Types) > 0 {
		types := make([]string, len(p.Types))
		for i, tt := range p.Types {
			types[i] = string(tt)
		}
		args = append(args, pq.Array(types))
		clauses = append(clauses, fmt.Sprintf("t.type = ANY($%d)", len(args)))
	}

	if len(p.Genres) > 0 {
		args = append(args, pq.Array(p.Genres))
		if p.RequireAllGenres {
			clauses = append(clauses, fmt.Sprintf("t.genres @> $%d", len(args)))
		} else {
			clauses = append(clauses, fmt.Sprintf("t.genres && $%d", len(args)))
		}
	}

	if p.MinRating != nil {
		args = append(args, *p.MinRating)
		clauses = append(clauses, fmt.Sprintf("t.rating >= $%d", len(args)))
	}

	if p.MinVotes != nil {
		args = append(args, *p.MinVotes)
		clauses = append(clauses, fmt.Sprintf("t.votes >= $%d", len(args)))
	}

	if p.YearFrom != nil {
		args = append(args, *p.YearFrom)
		clauses = append(clauses, fmt.Sprintf("t.start_year >= $%d", len(args)))
	}

	if p.YearTo != nil {
		args = append(args, *p.YearTo)
		clauses = append(clauses, fmt.Sprintf("t.start_year <= $%d", len(args)))
	}

	return clauses, args
}
