package conversation

import (
	"encoding/json"

	"watchnext-suggestion-service/internal/models"
)

// applyFilterField interprets a raw event value for one filter field and
// applies it to the draft. A JSON null clears an optional bound. The draft
// is only mutated when the value is valid; on violation the returned
// ValidationError is surfaced in place and the draft stays as it was.
func applyFilterField(draft *models.FilterProfile, field models.FilterField, raw json.RawMessage) *models.ValidationError {
	if len(raw) == 0 {
		return &models.ValidationError{Field: field, Reason: "missing value"}
	}

	switch field {
	case models.FilterFieldGenres:
		var genres []string
		if err := json.Unmarshal(raw, &genres); err != nil {
			return &models.ValidationError{Field: field, Reason: "expected a list of genre names"}
		}
		if genres == nil {
			genres = []string{}
		}
		draft.Genres = genres

	case models.FilterFieldRequireAllGenres:
		var all bool
		if err := json.Unmarshal(raw, &all); err != nil {
			return &models.ValidationError{Field: field, Reason: "expected true or false"}
		}
		draft.RequireAllGenres = all

	case models.FilterFieldTypes:
		var names []string
		if err := json.Unmarshal(raw, &names); err != nil {
			return &models.ValidationError{Field: field, Reason: "expected a list of title types"}
		}
		types := make([]models.TitleType, 0, len(names))
		for _, n := range names {
			tt, ok := models.ParseTitleType(n)
			if !ok {
				return &models.ValidationError{Field: field, Reason: "unknown title type: " + n}
			}
			types = append(types, tt)
		}
		draft.Types = types

	case models.FilterFieldMinRating:
		var rating *float64
		if err := json.Unmarshal(raw, &rating); err != nil {
			return &models.ValidationError{Field: field, Reason: "expected a number or null"}
		}
		if rating != nil && (*rating < models.MinRatingFloor || *rating > models.MinRatingCeil) {
			return &models.ValidationError{Field: field, Reason: "minimum rating must be between 0 and 10"}
		}
		draft.MinRating = rating

	case models.FilterFieldMinVotes:
		var votes *int
		if err := json.Unmarshal(raw, &votes); err != nil {
			return &models.ValidationError{Field: field, Reason: "expected an integer or null"}
		}
		if votes != nil && *votes < 0 {
			return &models.ValidationError{Field: field, Reason: "minimum votes must not be negative"}
		}
		draft.MinVotes = votes

	case models.FilterFieldYearFrom, models.FilterFieldYearTo:
		var year *int
		if err := json.Unmarshal(raw, &year); err != nil {
			return &models.ValidationError{Field: field, Reason: "expected a year or null"}
		}
		if year != nil && (*year < models.YearFloor || *year > models.YearCeil) {
			return &models.ValidationError{Field: field, Reason: "year is out of range"}
		}
		// The bound under edit may temporarily cross the other one only if
		// the combined range stays consistent; reject straight away so the
		// user gets feedback on the field they touched.
		next := draft.Clone()
		if field == models.FilterFieldYearFrom {
			next.YearFrom = year
		} else {
			next.YearTo = year
		}
		if next.YearFrom != nil && next.YearTo != nil && *next.YearFrom > *next.YearTo {
			return &models.ValidationError{Field: field, Reason: "year range start is after its end"}
		}
		*draft = next

	default:
		return &models.ValidationError{Field: field, Reason: "unknown filter field"}
	}

	return nil
}
