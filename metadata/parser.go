package metadata

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/torrescalazans/popularmovies/types"
)

// ParseError reports the first field that could not be mapped. Index is the
// position in the results array, or -1 for the response envelope.
type ParseError struct {
	Index int
	Field string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("parse %s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("parse results[%d].%s: %v", e.Index, e.Field, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

var (
	errMissing   = errors.New("missing field")
	errWrongType = errors.New("wrong type")
)

// ParseMovies maps a movie list response to movies, in response order
func ParseMovies(data []byte, imageBaseURL, posterSize string) ([]types.Movie, error) {
	page, err := ParseMoviePage(data, imageBaseURL, posterSize)
	if err != nil {
		return nil, err
	}
	return page.Movies, nil
}

// ParseMoviePage is ParseMovies plus the paging envelope. Paging fields are
// optional; results is not.
func ParseMoviePage(data []byte, imageBaseURL, posterSize string) (*MoviePage, error) {
	top, items, err := decodeResults(data)
	if err != nil {
		return nil, err
	}

	page := &MoviePage{Movies: make([]types.Movie, 0, len(items))}
	env := object{index: -1, fields: top}
	if page.Page, err = env.optionalInt(keyPage); err != nil {
		return nil, err
	}
	if page.TotalPages, err = env.optionalInt(keyTotalPages); err != nil {
		return nil, err
	}
	if page.TotalResults, err = env.optionalInt(keyTotalResults); err != nil {
		return nil, err
	}

	for i, fields := range items {
		m, err := parseMovie(object{index: i, fields: fields}, imageBaseURL, posterSize)
		if err != nil {
			return nil, err
		}
		page.Movies = append(page.Movies, m)
	}
	return page, nil
}

func parseMovie(o object, imageBaseURL, posterSize string) (types.Movie, error) {
	var m types.Movie
	var err error

	if m.ID, err = o.id("id"); err != nil {
		return m, err
	}
	strs := []struct {
		name string
		dst  *string
	}{
		{"title", &m.Title},
		{"original_title", &m.OriginalTitle},
		{"overview", &m.Overview},
		{"release_date", &m.ReleaseDate},
		{"original_language", &m.OriginalLanguage},
		{"poster_path", &m.PosterPath},
		{"backdrop_path", &m.BackdropPath},
	}
	for _, s := range strs {
		if *s.dst, err = o.str(s.name); err != nil {
			return m, err
		}
	}
	if m.Adult, err = o.boolean("adult"); err != nil {
		return m, err
	}
	if m.Video, err = o.boolean("video"); err != nil {
		return m, err
	}
	if m.GenreIDs, err = o.ints("genre_ids"); err != nil {
		return m, err
	}
	if m.Popularity, err = o.float("popularity"); err != nil {
		return m, err
	}
	if m.VoteAverage, err = o.float("vote_average"); err != nil {
		return m, err
	}
	if m.VoteCount, err = o.int64("vote_count"); err != nil {
		return m, err
	}

	m.PosterURL = PosterURL(imageBaseURL, posterSize, m.PosterPath)
	return m, nil
}

// ParseTrailers maps a /movie/{id}/videos response to trailers
func ParseTrailers(data []byte) ([]types.Trailer, error) {
	_, items, err := decodeResults(data)
	if err != nil {
		return nil, err
	}

	trailers := make([]types.Trailer, 0, len(items))
	for i, fields := range items {
		o := object{index: i, fields: fields}
		var t types.Trailer
		strs := []struct {
			name string
			dst  *string
		}{
			{"id", &t.ID},
			{"iso_639_1", &t.Iso6391},
			{"iso_3166_1", &t.Iso31661},
			{"key", &t.Key},
			{"name", &t.Name},
			{"site", &t.Site},
			{"type", &t.Type},
		}
		for _, s := range strs {
			if *s.dst, err = o.str(s.name); err != nil {
				return nil, err
			}
		}
		size, err := o.int64("size")
		if err != nil {
			return nil, err
		}
		t.Size = int(size)
		trailers = append(trailers, t)
	}
	return trailers, nil
}

// ParseReviews maps a /movie/{id}/reviews response to reviews
func ParseReviews(data []byte) ([]types.Review, error) {
	_, items, err := decodeResults(data)
	if err != nil {
		return nil, err
	}

	reviews := make([]types.Review, 0, len(items))
	for i, fields := range items {
		o := object{index: i, fields: fields}
		var r types.Review
		strs := []struct {
			name string
			dst  *string
		}{
			{"id", &r.ID},
			{"author", &r.Author},
			{"content", &r.Content},
			{"url", &r.URL},
		}
		for _, s := range strs {
			if *s.dst, err = o.str(s.name); err != nil {
				return nil, err
			}
		}
		reviews = append(reviews, r)
	}
	return reviews, nil
}

// decodeResults splits a response into its envelope and the raw results objects
func decodeResults(data []byte) (map[string]json.RawMessage, []map[string]json.RawMessage, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, nil, &ParseError{Index: -1, Field: "response", Err: err}
	}

	raw, ok := top[keyResults]
	if !ok || isNull(raw) {
		return nil, nil, &ParseError{Index: -1, Field: keyResults, Err: errMissing}
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil, nil, &ParseError{Index: -1, Field: keyResults, Err: errWrongType}
	}

	items := make([]map[string]json.RawMessage, len(elems))
	for i, e := range elems {
		if isNull(e) || bytes.TrimSpace(e)[0] != '{' {
			return nil, nil, &ParseError{Index: i, Field: "(object)", Err: errWrongType}
		}
		if err := json.Unmarshal(e, &items[i]); err != nil {
			return nil, nil, &ParseError{Index: i, Field: "(object)", Err: err}
		}
	}
	return top, items, nil
}

func isNull(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) == 0 || bytes.Equal(t, []byte("null"))
}

// object reads required fields out of one decoded JSON object
type object struct {
	index  int
	fields map[string]json.RawMessage
}

func (o object) fail(field string, err error) error {
	return &ParseError{Index: o.index, Field: field, Err: err}
}

func (o object) raw(name string) (json.RawMessage, error) {
	v, ok := o.fields[name]
	if !ok {
		return nil, o.fail(name, errMissing)
	}
	return v, nil
}

func (o object) decode(name string, dst interface{}) error {
	v, err := o.raw(name)
	if err != nil {
		return err
	}
	if isNull(v) {
		return o.fail(name, errWrongType)
	}
	if err := json.Unmarshal(v, dst); err != nil {
		return o.fail(name, errWrongType)
	}
	return nil
}

// str accepts null as ""
func (o object) str(name string) (string, error) {
	v, err := o.raw(name)
	if err != nil {
		return "", err
	}
	if isNull(v) {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return "", o.fail(name, errWrongType)
	}
	return s, nil
}

// id accepts a JSON number or string and returns the decimal string form
func (o object) id(name string) (string, error) {
	v, err := o.raw(name)
	if err != nil {
		return "", err
	}
	if isNull(v) {
		return "", o.fail(name, errWrongType)
	}
	t := bytes.TrimSpace(v)
	if t[0] == '"' {
		return o.str(name)
	}
	var n json.Number
	if err := json.Unmarshal(t, &n); err != nil {
		return "", o.fail(name, errWrongType)
	}
	if i, err := n.Int64(); err == nil {
		return strconv.FormatInt(i, 10), nil
	}
	return n.String(), nil
}

func (o object) boolean(name string) (bool, error) {
	var b bool
	err := o.decode(name, &b)
	return b, err
}

func (o object) float(name string) (float64, error) {
	var f float64
	err := o.decode(name, &f)
	return f, err
}

func (o object) int64(name string) (int64, error) {
	var i int64
	err := o.decode(name, &i)
	return i, err
}

func (o object) ints(name string) ([]int, error) {
	var ids []int
	if err := o.decode(name, &ids); err != nil {
		return nil, err
	}
	if ids == nil {
		ids = []int{}
	}
	return ids, nil
}

func (o object) optionalInt(name string) (int, error) {
	v, ok := o.fields[name]
	if !ok || isNull(v) {
		return 0, nil
	}
	var i int
	if err := json.Unmarshal(v, &i); err != nil {
		return 0, o.fail(name, errWrongType)
	}
	return i, nil
}
