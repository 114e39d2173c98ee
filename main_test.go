package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/torrescalazans/popularmovies/caching"
	"github.com/torrescalazans/popularmovies/config"
	"github.com/torrescalazans/popularmovies/types"
)

const popularBody = `{"page":1,"total_pages":1,"total_results":1,"results":[{
	"id":346364,"title":"It","original_title":"It",
	"overview":"Seven children known as The Losers Club face Pennywise.",
	"release_date":"2017-09-05","original_language":"en",
	"poster_path":"/9E2y5Q7WlCVNEhP5GiVTjhEhx1o.jpg","backdrop_path":"/tcheoA2nPATCm2vvXw2hVQoaEFD.jpg",
	"adult":false,"video":false,"genre_ids":[18,27,53],
	"popularity":485.574679,"vote_average":7.1,"vote_count":6124}]}`

const videosBody = `{"id":346364,"results":[{"id":"5a52578a0e0a260263022366","iso_639_1":"en","iso_3166_1":"US",
	"key":"FnCdOQsX5kc","name":"Official Trailer 1","site":"YouTube","size":1080,"type":"Trailer"}]}`

const reviewsBody = `{"id":346364,"page":1,"results":[{"id":"59cc634fc3a3682aa30065a3","author":"Gimly",
	"content":"Some of the direction was strange, but the kids were great.",
	"url":"https://www.themoviedb.org/review/59cc634fc3a3682aa30065a3"}]}`

func newFakeTMDB(t *testing.T, status int) *httptest.Server {
	t.Helper()
	routes := map[string]string{
		"/3/movie/popular":        popularBody,
		"/3/movie/top_rated":      popularBody,
		"/3/movie/346364/videos":  videosBody,
		"/3/movie/346364/reviews": reviewsBody,
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		body, ok := routes[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func setupEnv(t *testing.T, tmdbURL string) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv(config.ConfigPathEnvVar, filepath.Join(dir, "missing.yaml"))
	t.Setenv("TMDB_API_KEY", "test-key")
	t.Setenv("TMDB_BASE_URL", tmdbURL+"/3")
	t.Setenv("DATABASE_DRIVER", "sqlite")
	t.Setenv("DATABASE_DSN", filepath.Join(dir, "favorites.db"))
	t.Setenv("CACHE_DIR", filepath.Join(dir, "cache"))
	t.Setenv("WORKER_REFRESH_INTERVAL", "0")
	t.Setenv("LOG_LEVEL", "error")
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestMoviesCommand(t *testing.T) {
	setupEnv(t, newFakeTMDB(t, http.StatusOK).URL)

	out, err := run(t, "movies")
	require.NoError(t, err)
	assert.Contains(t, out, "TITLE")
	assert.Contains(t, out, "346364")
	assert.Contains(t, out, "2017")
	assert.Contains(t, out, "7.1/10 (6124 votes)")

	out, err = run(t, "movies", "top-rated", "--json")
	require.NoError(t, err)
	var movies []types.Movie
	require.NoError(t, json.Unmarshal([]byte(out), &movies))
	require.Len(t, movies, 1)
	assert.Equal(t, "It", movies[0].Title)
	assert.Equal(t, "https://image.tmdb.org/t/p/w185/9E2y5Q7WlCVNEhP5GiVTjhEhx1o.jpg", movies[0].PosterURL)

	_, err = run(t, "movies", "videos")
	assert.Error(t, err)
}

func TestTrailersAndReviewsCommands(t *testing.T) {
	setupEnv(t, newFakeTMDB(t, http.StatusOK).URL)

	out, err := run(t, "trailers", "346364")
	require.NoError(t, err)
	assert.Contains(t, out, "Official Trailer 1")
	assert.Contains(t, out, "1080p")
	assert.Contains(t, out, "https://www.youtube.com/watch?v=FnCdOQsX5kc")

	out, err = run(t, "reviews", "346364")
	require.NoError(t, err)
	assert.Contains(t, out, "Gimly wrote:")

	_, err = run(t, "trailers", "abc")
	assert.Error(t, err)
}

func TestFetchFailureIsGeneric(t *testing.T) {
	setupEnv(t, newFakeTMDB(t, http.StatusInternalServerError).URL)

	_, err := run(t, "movies")
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrFetchFailed))
	assert.Equal(t, "network error", err.Error())
}

func TestMissingAPIKey(t *testing.T) {
	setupEnv(t, newFakeTMDB(t, http.StatusOK).URL)
	t.Setenv("TMDB_API_KEY", "")

	_, err := run(t, "movies")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TMDB_API_KEY")

	// local commands run without a key
	out, err := run(t, "favorites", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "TITLE")
}

func TestFavoritesCommands(t *testing.T) {
	setupEnv(t, newFakeTMDB(t, http.StatusOK).URL)

	out, err := run(t, "favorites", "add", "346364")
	require.NoError(t, err)
	assert.Contains(t, out, `Added "It"`)

	_, err = run(t, "favorites", "add", "999", "--from", "top-rated")
	assert.Error(t, err)

	out, err = run(t, "favorites", "list", "--search", "it")
	require.NoError(t, err)
	assert.Contains(t, out, "346364")

	out, err = run(t, "favorites", "show", "346364")
	require.NoError(t, err)
	assert.Contains(t, out, "It (2017)")
	assert.Contains(t, out, "Genres: Drama, Horror, Thriller")

	out, err = run(t, "favorites", "remove", "346364")
	require.NoError(t, err)
	assert.Contains(t, out, "Removed 1 row(s)")

	_, err = run(t, "favorites", "show", "346364")
	assert.Error(t, err)
}

func TestCacheClearCommand(t *testing.T) {
	setupEnv(t, newFakeTMDB(t, http.StatusOK).URL)

	_, err := run(t, "movies")
	require.NoError(t, err)

	// cache commands need no API key
	t.Setenv("TMDB_API_KEY", "")

	out, err := run(t, "cache", "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Tiers: 2")
	assert.Contains(t, out, "Total entries: 1")

	out, err = run(t, "cache", "stats", "--json")
	require.NoError(t, err)
	var stats map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.EqualValues(t, 1, stats["total_entries"])

	out, err = run(t, "cache", "clear")
	require.NoError(t, err)
	assert.Contains(t, out, "Cleared 1 cached response(s)")

	out, err = run(t, "cache", "clear")
	require.NoError(t, err)
	assert.Contains(t, out, "Cleared 0 cached response(s)")
}

func TestServeShutsDownOnCancel(t *testing.T) {
	setupEnv(t, newFakeTMDB(t, http.StatusOK).URL)

	cfg, err := config.Load()
	require.NoError(t, err)
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0

	app, err := newApp(cfg, appParts{catalog: true, store: true})
	require.NoError(t, err)

	stats := app.Stats()
	assert.Equal(t, map[string]int{"size": 0, "capacity": cfg.Worker.QueueSize}, stats["queue"])
	assert.Contains(t, stats, "cache")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, app) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not return after cancel")
	}

	_, err = app.worker.Do(context.Background(), caching.FetchTask{Kind: types.RequestMostPopular})
	assert.Error(t, err, "worker is stopped after shutdown")
}

func TestParseListKind(t *testing.T) {
	tests := []struct {
		input    string
		expected types.RequestType
		wantErr  bool
	}{
		{"popular", types.RequestMostPopular, false},
		{"", types.RequestMostPopular, false},
		{"top-rated", types.RequestTopRated, false},
		{"top_rated", types.RequestTopRated, false},
		{"reviews", 0, true},
		{"newest", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			kind, err := parseListKind(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, kind)
		})
	}
}
