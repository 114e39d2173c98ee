package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/torrescalazans/popularmovies/caching"
	"github.com/torrescalazans/popularmovies/favorites"
	"github.com/torrescalazans/popularmovies/logging"
	"github.com/torrescalazans/popularmovies/types"
	"github.com/torrescalazans/popularmovies/utils"
)

const sortFavorites = "favorites"

// maxBodyBytes caps favorites payloads
const maxBodyBytes = 1 << 20

// MovieItem is a movie plus the fields the detail screen derives from it
type MovieItem struct {
	types.Movie
	Year   string   `json:"year,omitempty"`
	Rating string   `json:"rating"`
	Genres []string `json:"genres"`
}

type MoviesResponse struct {
	Sort   string      `json:"sort"`
	Movies []MovieItem `json:"movies"`
}

// TrailerItem is a trailer with playable links
type TrailerItem struct {
	types.Trailer
	URL     string `json:"url,omitempty"`
	AppURI  string `json:"app_uri,omitempty"`
	Quality string `json:"quality"`
}

type TrailersResponse struct {
	MovieID  int           `json:"movie_id"`
	Trailers []TrailerItem `json:"trailers"`
}

type ReviewsResponse struct {
	MovieID int            `json:"movie_id"`
	Reviews []types.Review `json:"reviews"`
}

type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

func newMovieItems(movies []types.Movie) []MovieItem {
	items := make([]MovieItem, 0, len(movies))
	for _, m := range movies {
		items = append(items, MovieItem{
			Movie:  m,
			Year:   utils.ReleaseYear(m.ReleaseDate),
			Rating: utils.FormatRating(m.VoteAverage, m.VoteCount),
			Genres: utils.GenreNames(m.GenreIDs),
		})
	}
	return items
}

func newTrailerItems(trailers []types.Trailer) []TrailerItem {
	items := make([]TrailerItem, 0, len(trailers))
	for _, t := range trailers {
		item := TrailerItem{
			Trailer: t,
			URL:     utils.TrailerURL(t.Site, t.Key),
			Quality: utils.TrailerQuality(t.Size),
		}
		if strings.EqualFold(t.Site, "youtube") && t.Key != "" {
			item.AppURI = utils.TrailerAppURI(t.Key)
		}
		items = append(items, item)
	}
	return items
}

func (s *Server) handleManifest(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.manifest)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

// handleMovies serves GET /movies?sort=popular|top_rated|favorites
func (s *Server) handleMovies(w http.ResponseWriter, r *http.Request) {
	sortBy := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("sort")))

	if sortBy == sortFavorites {
		movies, err := s.favorites.List(r.Context())
		if err != nil {
			s.storeError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, MoviesResponse{Sort: sortFavorites, Movies: newMovieItems(movies)})
		return
	}

	kind, err := types.ParseRequestType(sortBy)
	if err != nil || !kind.IsMovieList() {
		writeError(w, r, http.StatusBadRequest, "sort must be popular, top_rated or favorites")
		return
	}
	if kind == types.RequestDefault {
		kind = types.RequestMostPopular
	}

	res, err := s.catalog.Do(r.Context(), caching.FetchTask{Kind: kind})
	if err != nil {
		s.fetchError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, MoviesResponse{Sort: kind.String(), Movies: newMovieItems(res.Movies)})
}

func (s *Server) handleTrailers(w http.ResponseWriter, r *http.Request) {
	movieID, ok := movieIDParam(w, r)
	if !ok {
		return
	}

	res, err := s.catalog.Do(r.Context(), caching.FetchTask{Kind: types.RequestVideos, MovieID: movieID})
	if err != nil {
		s.fetchError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, TrailersResponse{MovieID: movieID, Trailers: newTrailerItems(res.Trailers)})
}

func (s *Server) handleReviews(w http.ResponseWriter, r *http.Request) {
	movieID, ok := movieIDParam(w, r)
	if !ok {
		return
	}

	res, err := s.catalog.Do(r.Context(), caching.FetchTask{Kind: types.RequestReviews, MovieID: movieID})
	if err != nil {
		s.fetchError(w, r, err)
		return
	}
	reviews := res.Reviews
	if reviews == nil {
		reviews = []types.Review{}
	}
	writeJSON(w, r, http.StatusOK, ReviewsResponse{MovieID: movieID, Reviews: reviews})
}

func (s *Server) handleListFavorites(w http.ResponseWriter, r *http.Request) {
	movies, err := s.favorites.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		s.storeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, MoviesResponse{Sort: sortFavorites, Movies: newMovieItems(movies)})
}

func (s *Server) handleShowFavorite(w http.ResponseWriter, r *http.Request) {
	movieID := chi.URLParam(r, "movieID")

	movies, err := s.favorites.QueryByMovieID(r.Context(), movieID)
	if err != nil {
		s.storeError(w, r, err)
		return
	}
	if len(movies) == 0 {
		writeError(w, r, http.StatusNotFound, "favorite not found")
		return
	}
	writeJSON(w, r, http.StatusOK, MoviesResponse{Sort: sortFavorites, Movies: newMovieItems(movies)})
}

func (s *Server) handleAddFavorite(w http.ResponseWriter, r *http.Request) {
	movie, ok := decodeMovie(w, r)
	if !ok {
		return
	}

	rowID, err := s.favorites.Insert(r.Context(), movie)
	if err != nil {
		s.storeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, map[string]interface{}{
		"id":  rowID,
		"uri": favorites.FavoriteURI(rowID),
	})
}

func (s *Server) handleDeleteFavorite(w http.ResponseWriter, r *http.Request) {
	n, err := s.favorites.Delete(r.Context(), chi.URLParam(r, "movieID"))
	if err != nil {
		s.storeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]int64{"deleted": n})
}

// handleToggleFavorite flips the favorite state. The body may omit the id;
// when present it must match the path.
func (s *Server) handleToggleFavorite(w http.ResponseWriter, r *http.Request) {
	movieID := chi.URLParam(r, "movieID")
	movie, ok := decodeMovie(w, r)
	if !ok {
		return
	}
	if movie.ID == "" {
		movie.ID = movieID
	}
	if movie.ID != movieID {
		writeError(w, r, http.StatusBadRequest, "movie id does not match path")
		return
	}

	now, err := s.favorites.Toggle(r.Context(), movie)
	if err != nil {
		s.storeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]bool{"favorite": now})
}

func movieIDParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		writeError(w, r, http.StatusBadRequest, "movie id must be a positive integer")
		return 0, false
	}
	return id, true
}

func decodeMovie(w http.ResponseWriter, r *http.Request) (types.Movie, bool) {
	var movie types.Movie
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&movie); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid movie JSON")
		return movie, false
	}
	movie.ID = strings.TrimSpace(movie.ID)
	return movie, true
}

// fetchError reports catalog failures. Every fetch or parse failure is the
// same "network error" to clients; the detail goes to the log.
func (s *Server) fetchError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, caching.ErrQueueFull), errors.Is(err, caching.ErrStopped):
		logging.Ctx(r.Context()).Warn().Err(err).Msg("Fetch not queued")
		writeError(w, r, http.StatusServiceUnavailable, "service busy")
	default:
		logging.Ctx(r.Context()).Error().Err(err).Msg("Fetch failed")
		writeError(w, r, http.StatusBadGateway, types.ErrFetchFailed.Error())
	}
}

func (s *Server) storeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, favorites.ErrInvalidMovie) {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	logging.Ctx(r.Context()).Error().Err(err).Msg("Favorites store failed")
	writeError(w, r, http.StatusInternalServerError, "favorites store error")
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).Msg("Failed to write response")
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	writeJSON(w, r, status, ErrorResponse{
		Error:     message,
		RequestID: w.Header().Get("X-Request-ID"),
	})
}
