package metadata

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/torrescalazans/popularmovies/types"
)

func readFixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return data
}

func TestParseMovies(t *testing.T) {
	movies, err := ParseMovies(readFixture(t, "popular.json"), DefaultImageBaseURL, DefaultPosterSize)
	require.NoError(t, err)
	require.Len(t, movies, 2)

	assert.Equal(t, types.Movie{
		ID:               "346364",
		Title:            "It",
		OriginalTitle:    "It",
		Overview:         "In a small town in Maine, seven children known as The Losers Club come face to face with life problems, bullies and a monster that takes the shape of a clown called Pennywise.",
		ReleaseDate:      "2017-09-05",
		OriginalLanguage: "en",
		PosterPath:       "/9E2y5Q7WlCVNEhP5GiVTjhEhx1o.jpg",
		BackdropPath:     "/tcheoA2nPATCm2vvXw2hVQoaEFD.jpg",
		PosterURL:        "https://image.tmdb.org/t/p/w185/9E2y5Q7WlCVNEhP5GiVTjhEhx1o.jpg",
		Adult:            false,
		Video:            false,
		GenreIDs:         []int{18, 27, 53},
		Popularity:       485.574679,
		VoteAverage:      7.1,
		VoteCount:        6124,
	}, movies[0])

	// string id, null paths, empty genres
	assert.Equal(t, "335984", movies[1].ID)
	assert.Equal(t, "Blade Runner 2049", movies[1].Title)
	assert.Empty(t, movies[1].PosterPath)
	assert.Empty(t, movies[1].PosterURL)
	assert.Empty(t, movies[1].BackdropPath)
	assert.NotNil(t, movies[1].GenreIDs)
	assert.Empty(t, movies[1].GenreIDs)
}

func TestParseMoviePage(t *testing.T) {
	page, err := ParseMoviePage(readFixture(t, "popular.json"), "https://img.example/", "w342")
	require.NoError(t, err)

	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 981, page.TotalPages)
	assert.Equal(t, 19613, page.TotalResults)
	require.Len(t, page.Movies, 2)
	assert.Equal(t, "https://img.example/w342/9E2y5Q7WlCVNEhP5GiVTjhEhx1o.jpg", page.Movies[0].PosterURL)
}

func TestParseMoviesEmptyResults(t *testing.T) {
	movies, err := ParseMovies([]byte(`{"page":1,"results":[]}`), "", "")
	require.NoError(t, err)
	assert.Empty(t, movies)
}

func TestParseTrailers(t *testing.T) {
	trailers, err := ParseTrailers(readFixture(t, "videos.json"))
	require.NoError(t, err)
	require.Len(t, trailers, 2)

	assert.Equal(t, types.Trailer{
		ID:       "5a52578a0e0a260263022366",
		Iso6391:  "en",
		Iso31661: "US",
		Key:      "FnCdOQsX5kc",
		Name:     "Official Trailer 1",
		Site:     "YouTube",
		Size:     1080,
		Type:     "Trailer",
	}, trailers[0])
	assert.Equal(t, "Teaser", trailers[1].Type)
}

func TestParseReviews(t *testing.T) {
	reviews, err := ParseReviews(readFixture(t, "reviews.json"))
	require.NoError(t, err)
	require.Len(t, reviews, 1)

	assert.Equal(t, types.Review{
		ID:      "59cc634fc3a3682aa30065a3",
		Author:  "Gimly",
		Content: "Some of the direction was strange, but the kids were great.",
		URL:     "https://www.themoviedb.org/review/59cc634fc3a3682aa30065a3",
	}, reviews[0])
}

const validMovie = `"id":1,"title":"t","original_title":"t","overview":"o","release_date":"2017-01-01",` +
	`"original_language":"en","poster_path":"/p.jpg","backdrop_path":"/b.jpg","adult":false,"video":false,` +
	`"genre_ids":[1],"popularity":1.5,"vote_average":7.0`

func TestParseMoviesRejectsMalformedInput(t *testing.T) {
	tests := []struct {
		name  string
		input string
		index int
		field string
	}{
		{
			name:  "not json",
			input: `<html>`,
			index: -1,
			field: "response",
		},
		{
			name:  "missing results",
			input: `{"page":1}`,
			index: -1,
			field: "results",
		},
		{
			name:  "null results",
			input: `{"results":null}`,
			index: -1,
			field: "results",
		},
		{
			name:  "results is an object",
			input: `{"results":{}}`,
			index: -1,
			field: "results",
		},
		{
			name:  "element is not an object",
			input: `{"results":[42]}`,
			index: 0,
			field: "(object)",
		},
		{
			name:  "missing vote_count",
			input: `{"results":[{` + validMovie + `}]}`,
			index: 0,
			field: "vote_count",
		},
		{
			name:  "second element broken",
			input: `{"results":[{` + validMovie + `,"vote_count":3},{` + validMovie + `,"vote_count":"many"}]}`,
			index: 1,
			field: "vote_count",
		},
		{
			name:  "title has wrong type",
			input: `{"results":[{` + validMovie + `,"vote_count":3,"title":5}]}`,
			index: 0,
			field: "title",
		},
		{
			name:  "adult is null",
			input: `{"results":[{` + validMovie + `,"vote_count":3,"adult":null}]}`,
			index: 0,
			field: "adult",
		},
		{
			name:  "id is a bool",
			input: `{"results":[{` + validMovie + `,"vote_count":3,"id":true}]}`,
			index: 0,
			field: "id",
		},
		{
			name:  "genre ids are strings",
			input: `{"results":[{` + validMovie + `,"vote_count":3,"genre_ids":["18"]}]}`,
			index: 0,
			field: "genre_ids",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			movies, err := ParseMovies([]byte(tt.input), "", "")
			require.Error(t, err)
			assert.Nil(t, movies)

			var pe *ParseError
			require.True(t, errors.As(err, &pe), "got %T: %v", err, err)
			assert.Equal(t, tt.index, pe.Index)
			assert.Equal(t, tt.field, pe.Field)
		})
	}
}

func TestParseTrailersRejectsMissingField(t *testing.T) {
	_, err := ParseTrailers([]byte(`{"results":[{"id":"a","iso_639_1":"en","iso_3166_1":"US","key":"k","name":"n","site":"YouTube","type":"Trailer"}]}`))

	var pe *ParseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "size", pe.Field)
	assert.ErrorIs(t, err, errMissing)
	assert.Equal(t, "parse results[0].size: missing field", err.Error())
}

func TestParseReviewsRejectsWrongType(t *testing.T) {
	_, err := ParseReviews([]byte(`{"results":[{"id":"a","author":["x"],"content":"c","url":"u"}]}`))

	var pe *ParseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "author", pe.Field)
	assert.ErrorIs(t, err, errWrongType)
}

func TestPosterURL(t *testing.T) {
	assert.Equal(t, "https://image.tmdb.org/t/p/w185/a.jpg", PosterURL("", "", "/a.jpg"))
	assert.Equal(t, "https://x/w500/a.jpg", PosterURL("https://x/", "w500", "/a.jpg"))
	assert.Empty(t, PosterURL("https://x/", "w500", ""))
}
