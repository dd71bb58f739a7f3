package imdb

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"watchnext-suggestion-service/internal/models"
)

const basicsHeader = "tconst\ttitleType\tprimaryTitle\toriginalTitle\tisAdult\tstartYear\tendYear\truntimeMinutes\tgenres\n"
const ratingsHeader = "tconst\taverageRating\tnumVotes\n"

func TestParseTconst(t *testing.T) {
	id, err := parseTconst("tt0111161")
	require.NoError(t, err)
	assert.Equal(t, int64(111161), id)

	_, err = parseTconst("nm0000001")
	assert.Error(t, err)
}

func TestBasicsReaderParsesSupportedRows(t *testing.T) {
	input := basicsHeader +
		"tt0000001\tmovie\tThe Example\tThe Example\t0\t1994\t\\N\t142\tDrama,Crime\n" +
		"tt0000002\ttvSeries\tSome Show\tSome Show\t0\t2005\t2013\t22\tComedy\n" +
		"tt0000003\ttvMiniSeries\tShort Run\tShort Run\t0\t2019\t2019\t60\tDrama\n" +
		"tt0000004\ttvMovie\tTV Film\tTV Film\t0\t2001\t\\N\t90\tRomance\n"

	r := newBasicsReader(strings.NewReader(input))

	rec, err := r.next()
	require.NoError(t, err)
	assert.Equal(t, int64(1), rec.ID)
	assert.Equal(t, models.TitleTypeMovie, rec.Type)
	assert.Equal(t, "The Example", rec.Title)
	require.NotNil(t, rec.StartYear)
	assert.Equal(t, 1994, *rec.StartYear)
	assert.Nil(t, rec.EndYear)
	assert.Equal(t, []string{"Drama", "Crime"}, rec.Genres)

	rec, err = r.next()
	require.NoError(t, err)
	assert.Equal(t, models.TitleTypeSeries, rec.Type)
	require.NotNil(t, rec.EndYear)
	assert.Equal(t, 2013, *rec.EndYear)

	rec, err = r.next()
	require.NoError(t, err)
	assert.Equal(t, models.TitleTypeMiniSeries, rec.Type)

	rec, err = r.next()
	require.NoError(t, err)
	assert.Equal(t, models.TitleTypeMovie, rec.Type)

	_, err = r.next()
	assert.ErrorIs(t, err, io.EOF)
	assert.Zero(t, r.skipped)
}

func TestBasicsReaderSkipsUnusableRows(t *testing.T) {
	input := basicsHeader +
		"tt0000001\tshort\tA Short\tA Short\t0\t1900\t\\N\t5\tComedy\n" + // unsupported type
		"tt0000002\tvideoGame\tA Game\tA Game\t0\t1998\t\\N\t\\N\tAction\n" + // unsupported type
		"tt0000003\tmovie\tNo Year\tNo Year\t0\t\\N\t\\N\t100\tDrama\n" + // missing start year
		"tt0000004\tmovie\tNo Genres\tNo Genres\t0\t1990\t\\N\t100\t\\N\n" + // missing genres
		"tt0000005\tmovie\n" + // truncated row
		"tt0000006\tmovie\tKept\tKept\t0\t1990\t\\N\t100\tDrama\n"

	r := newBasicsReader(strings.NewReader(input))

	rec, err := r.next()
	require.NoError(t, err)
	assert.Equal(t, int64(6), rec.ID)

	_, err = r.next()
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, 5, r.skipped)
}

func TestRatingsReader(t *testing.T) {
	input := ratingsHeader +
		"tt0000001\t9.3\t2500000\n" +
		"tt0000002\tbad\t10\n" +
		"tt0000003\t7.1\t300\n"

	r := newRatingsReader(strings.NewReader(input))

	rec, err := r.next()
	require.NoError(t, err)
	assert.Equal(t, int64(1), rec.ID)
	assert.Equal(t, 9.3, rec.Rating)
	assert.Equal(t, 2500000, rec.Votes)

	rec, err = r.next()
	require.NoError(t, err)
	assert.Equal(t, int64(3), rec.ID)

	_, err = r.next()
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, 1, r.skipped)
}
