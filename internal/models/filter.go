package models

// Rating bounds accepted when setting a minimum rating filter.
const (
	MinRatingFloor = 0.0
	MinRatingCeil  = 10.0
)

// Year bounds accepted when setting a release-year filter. IMDb's earliest
// entries date to the 1870s.
const (
	YearFloor = 1870
	YearCeil  = 2100
)

// FilterProfile is a user's persisted set of filter constraints. A zero
// value means "no restriction". Optional bounds are pointers; nil = unset.
type FilterProfile struct {
	Genres           []string    `json:"genres"`
	RequireAllGenres bool        `json:"require_all_genres"`
	Types            []TitleType `json:"types"`
	MinRating        *float64    `json:"min_rating,omitempty"`
	MinVotes         *int        `json:"min_votes,omitempty"`
	YearFrom         *int        `json:"year_from,omitempty"`
	YearTo           *int        `json:"year_to,omitempty"`
}

// DefaultFilterProfile returns the profile used before a user has committed
// any filter edits: no restriction at all.
func DefaultFilterProfile() FilterProfile {
	return FilterProfile{
		Genres: []string{},
		Types:  []TitleType{},
	}
}

// Validate checks the profile's internal consistency.
func (p *FilterProfile) Validate() error {
	if p.MinRating != nil && (*p.MinRating < MinRatingFloor || *p.MinRating > MinRatingCeil) {
		return &ValidationError{Field: FilterFieldMinRating, Reason: "minimum rating must be between 0 and 10"}
	}
	if p.MinVotes != nil && *p.MinVotes < 0 {
		return &ValidationError{Field: FilterFieldMinVotes, Reason: "minimum votes must not be negative"}
	}
	if p.YearFrom != nil && (*p.YearFrom < YearFloor || *p.YearFrom > YearCeil) {
		return &ValidationError{Field: FilterFieldYearFrom, Reason: "year is out of range"}
	}
	if p.YearTo != nil && (*p.YearTo < YearFloor || *p.YearTo > YearCeil) {
		return &ValidationError{Field: FilterFieldYearTo, Reason: "year is out of range"}
	}
	if p.YearFrom != nil && p.YearTo != nil && *p.YearFrom > *p.YearTo {
		return &ValidationError{Field: FilterFieldYearFrom, Reason: "year range start is after its end"}
	}
	for _, t := range p.Types {
		if _, ok := ParseTitleType(string(t)); !ok {
			return &ValidationError{Field: FilterFieldTypes, Reason: "unknown title type: " + string(t)}
		}
	}
	return nil
}

// Clone returns a deep copy, used for draft edits that must not alias the
// persisted profile.
func (p FilterProfile) Clone() FilterProfile {
	out := p
	out.Genres = append([]string(nil), p.Genres...)
	out.Types = append([]TitleType(nil), p.Types...)
	if p.MinRating != nil {
		v := *p.MinRating
		out.MinRating = &v
	}
	if p.MinVotes != nil {
		v := *p.MinVotes
		out.MinVotes = &v
	}
	if p.YearFrom != nil {
		v := *p.YearFrom
		out.YearFrom = &v
	}
	if p.YearTo != nil {
		v := *p.YearTo
		out.YearTo = &v
	}
	return out
}

// Matches reports whether a title satisfies every bound in the profile.
// Titles missing a field that a bound requires never match. This mirrors
// the SQL predicate used by the title repository and exists for in-memory
// checks and tests.
func (p *FilterProfile) Matches(t *Title) bool {
	if len(p.Types) > 0 {
		found := false
		for _, tt := range p.Types {
			if t.Type == tt {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if p.MinRating != nil && (t.Rating == nil || *t.Rating < *p.MinRating) {
		return false
	}
	if p.MinVotes != nil && (t.Votes == nil || *t.Votes < *p.MinVotes) {
		return false
	}
	if p.YearFrom != nil && (t.StartYear == nil || *t.StartYear < *p.YearFrom) {
		return false
	}
	if p.YearTo != nil && (t.StartYear == nil || *t.StartYear > *p.YearTo) {
		return false
	}
	if len(p.Genres) > 0 {
		titleGenres := make(map[string]bool, len(t.Genres))
		for _, g := range t.Genres {
			titleGenres[g] = true
		}
		if p.RequireAllGenres {
			for _, g := range p.Genres {
				if !titleGenres[g] {
					return false
				}
			}
		} else {
			found := false
			for _, g := range p.Genres {
				if titleGenres[g] {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
	}
	return true
}
