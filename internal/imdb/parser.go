// Package imdb imports the IMDb reference datasets into the catalog store.
// It is the only writer of catalog data; the interaction engine treats the
// catalog as read-only.
package imdb

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"watchnext-suggestion-service/internal/models"
)

// noValue marks an absent field in the IMDb TSV dumps.
const noValue = `\N`

// titleTypeMapping maps IMDb title types to catalog types. Types absent
// from the map (shorts, episodes, video games, ...) are skipped entirely.
var titleTypeMapping = map[string]models.TitleType{
	"movie":        models.TitleTypeMovie,
	"tvMovie":      models.TitleTypeMovie,
	"tvSeries":     models.TitleTypeSeries,
	"tvMiniSeries": models.TitleTypeMiniSeries,
}

// basicsRecord is one parsed row of title.basics.tsv.
type basicsRecord struct {
	ID        int64
	Type      models.TitleType
	Title     string
	StartYear *int
	EndYear   *int
	Genres    []string
}

// ratingsRecord is one parsed row of title.ratings.tsv.
type ratingsRecord struct {
	ID     int64
	Rating float64
	Votes  int
}

// parseTconst extracts the numeric id from an IMDb identifier like
// "tt0111161".
func parseTconst(s string) (int64, error) {
	trimmed := strings.TrimLeft(s, "t")
	id, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed tconst %q: %w", s, err)
	}
	return id, nil
}

// basicsReader streams title.basics.tsv rows in file order. Rows of
// unsupported types or with missing essential fields are skipped.
type basicsReader struct {
	scanner *bufio.Scanner
	skipped int
}

func newBasicsReader(r io.Reader) *basicsReader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	sc.Scan() // header
	return &basicsReader{scanner: sc}
}

// next returns the next usable row, or io.EOF.
func (r *basicsReader) next() (basicsRecord, error) {
	for r.scanner.Scan() {
		fields := strings.Split(r.scanner.Text(), "\t")
		// tconst, titleType, primaryTitle, originalTitle, isAdult,
		// startYear, endYear, runtimeMinutes, genres
		if len(fields) < 9 {
			r.skipped++
			continue
		}

		titleType, ok := titleTypeMapping[fields[1]]
		if !ok {
			r.skipped++
			continue
		}
		if fields[2] == noValue || fields[5] == noValue || fields[8] == noValue {
			r.skipped++
			continue
		}

		id, err := parseTconst(fields[0])
		if err != nil {
			r.skipped++
			continue
		}
		startYear, err := strconv.Atoi(fields[5])
		if err != nil {
			r.skipped++
			continue
		}

		rec := basicsRecord{
			ID:        id,
			Type:      titleType,
			Title:     fields[2],
			StartYear: &startYear,
			Genres:    strings.Split(strings.TrimSpace(fields[8]), ","),
		}
		if fields[6] != noValue {
			if endYear, err := strconv.Atoi(fields[6]); err == nil {
				rec.EndYear = &endYear
			}
		}
		return rec, nil
	}
	if err := r.scanner.Err(); err != nil {
		return basicsRecord{}, fmt.Errorf("failed to read title basics: %w", err)
	}
	return basicsRecord{}, io.EOF
}

// ratingsReader streams title.ratings.tsv rows in file order.
type ratingsReader struct {
	scanner *bufio.Scanner
	skipped int
}

func newRatingsReader(r io.Reader) *ratingsReader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	sc.Scan() // header
	return &ratingsReader{scanner: sc}
}

// next returns the next usable row, or io.EOF.
func (r *ratingsReader) next() (ratingsRecord, error) {
	for r.scanner.Scan() {
		fields := strings.Split(r.scanner.Text(), "\t")
		// tconst, averageRating, numVotes
		if len(fields) < 3 {
			r.skipped++
			continue
		}

		id, err := parseTconst(fields[0])
		if err != nil {
			r.skipped++
			continue
		}
		rating, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			r.skipped++
			continue
		}
		votes, err := strconv.Atoi(fields[2])
		if err != nil {
			r.skipped++
			continue
		}

		return ratingsRecord{ID: id, Rating: rating, Votes: votes}, nil
	}
	if err := r.scanner.Err(); err != nil {
		return ratingsRecord{}, fmt.Errorf("failed to read title ratings: %w", err)
	}
	return ratingsRecord{}, io.EOF
}
