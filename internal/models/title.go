package models

import "fmt"

// TitleType classifies a catalog entry.
type TitleType string

const (
	TitleTypeMovie      TitleType = "movie"
	TitleTypeSeries     TitleType = "series"
	TitleTypeMiniSeries TitleType = "miniseries"
)

// AllTitleTypes lists every supported title type.
var AllTitleTypes = []TitleType{TitleTypeMovie, TitleTypeSeries, TitleTypeMiniSeries}

// ParseTitleType converts a string into a TitleType.
func ParseTitleType(s string) (TitleType, bool) {
	switch TitleType(s) {
	case TitleTypeMovie, TitleTypeSeries, TitleTypeMiniSeries:
		return TitleType(s), true
	}
	return "", false
}

// Title represents one immutable catalog entry. Rating, Votes, StartYear and
// EndYear may be absent in the source dataset; absent values are excluded
// from range filters.
type Title struct {
	ID        int64      `json:"id"`
	Title     string     `json:"title"`
	Type      TitleType  `json:"type"`
	Genres    []string   `json:"genres"`
	Rating    *float64   `json:"rating,omitempty"`
	Votes     *int       `json:"votes,omitempty"`
	StartYear *int       `json:"start_year,omitempty"`
	EndYear   *int       `json:"end_year,omitempty"`
}

// IMDBID returns the canonical IMDb identifier, e.g. "tt0111161".
func (t *Title) IMDBID() string {
	return fmt.Sprintf("tt%07d", t.ID)
}

// IMDBURL returns the IMDb page URL for the title.
func (t *Title) IMDBURL() string {
	return "https://www.imdb.com/title/" + t.IMDBID()
}
