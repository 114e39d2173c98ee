package types

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrFetchFailed is the single failure signal for remote catalog calls.
// Timeouts, HTTP errors and malformed payloads all satisfy errors.Is(err, ErrFetchFailed).
var ErrFetchFailed = errors.New("network error")

// Movie is a catalog entry as returned by TMDB or read back from favorites
type Movie struct {
	ID               string  `json:"id"`                // external TMDB id
	Title            string  `json:"title"`             // localized title
	OriginalTitle    string  `json:"original_title"`    // title in the original language
	Overview         string  `json:"overview"`          // plot synopsis
	ReleaseDate      string  `json:"release_date"`      // YYYY-MM-DD as sent by TMDB
	OriginalLanguage string  `json:"original_language"` // ISO 639-1
	PosterPath       string  `json:"poster_path"`
	BackdropPath     string  `json:"backdrop_path"`
	PosterURL        string  `json:"poster_url"` // image base + size + poster path
	Adult            bool    `json:"adult"`
	Video            bool    `json:"video"`
	GenreIDs         []int   `json:"genre_ids"`
	Popularity       float64 `json:"popularity"`
	VoteAverage      float64 `json:"vote_average"`
	VoteCount        int64   `json:"vote_count"`
}

func (m Movie) String() string {
	return fmt.Sprintf("Movie{id=%s title=%q released=%s votes=%.1f/%d}",
		m.ID, m.Title, m.ReleaseDate, m.VoteAverage, m.VoteCount)
}

// Trailer is a video attached to a movie
type Trailer struct {
	ID       string `json:"id"`         // "5a52578a0e0a260263022366"
	Iso6391  string `json:"iso_639_1"`  // "en"
	Iso31661 string `json:"iso_3166_1"` // "US"
	Key      string `json:"key"`        // site specific video key
	Name     string `json:"name"`       // "Official Trailer 1"
	Site     string `json:"site"`       // "YouTube"
	Size     int    `json:"size"`       // 360, 480, 720, 1080
	Type     string `json:"type"`       // "Trailer", "Teaser", "Clip"
}

// Review is a user review attached to a movie
type Review struct {
	ID      string `json:"id"`
	Author  string `json:"author"`
	Content string `json:"content"`
	URL     string `json:"url"`
}

// RequestType selects which remote endpoint to call
type RequestType int

const (
	RequestDefault RequestType = iota
	RequestMostPopular
	RequestTopRated
	RequestVideos
	RequestReviews
)

func (rt RequestType) String() string {
	switch rt {
	case RequestDefault:
		return "default"
	case RequestMostPopular:
		return "popular"
	case RequestTopRated:
		return "top_rated"
	case RequestVideos:
		return "videos"
	case RequestReviews:
		return "reviews"
	}
	return fmt.Sprintf("RequestType(%d)", int(rt))
}

// IsMovieList reports whether the request returns a movie list rather than per-movie data
func (rt RequestType) IsMovieList() bool {
	return rt == RequestDefault || rt == RequestMostPopular || rt == RequestTopRated
}

// NeedsMovieID reports whether the request is scoped to a single movie
func (rt RequestType) NeedsMovieID() bool {
	return rt == RequestVideos || rt == RequestReviews
}

// ParseRequestType maps user input (CLI args, query strings) to a RequestType
func ParseRequestType(s string) (RequestType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "default":
		return RequestDefault, nil
	case "popular", "most_popular", "most-popular":
		return RequestMostPopular, nil
	case "top_rated", "top-rated", "toprated":
		return RequestTopRated, nil
	case "videos", "trailers":
		return RequestVideos, nil
	case "reviews":
		return RequestReviews, nil
	}
	return RequestDefault, fmt.Errorf("unknown request type: %q", s)
}

// Status is reported by the background worker while a request is processed
type Status int

const (
	StatusRunning Status = iota
	StatusMostPopularFinished
	StatusTopRatedFinished
	StatusTrailersFinished
	StatusReviewsFinished
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusMostPopularFinished:
		return "most_popular_finished"
	case StatusTopRatedFinished:
		return "top_rated_finished"
	case StatusTrailersFinished:
		return "trailers_finished"
	case StatusReviewsFinished:
		return "reviews_finished"
	case StatusError:
		return "error"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// Terminal reports whether no further status follows for the same request
func (s Status) Terminal() bool {
	return s != StatusRunning
}

// FinishedStatus returns the success status for a request type
func FinishedStatus(rt RequestType) Status {
	switch rt {
	case RequestTopRated:
		return StatusTopRatedFinished
	case RequestVideos:
		return StatusTrailersFinished
	case RequestReviews:
		return StatusReviewsFinished
	}
	return StatusMostPopularFinished
}

// Cache interface for raw response caching tiers
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration)
	SetPermanent(key string, value []byte)
	Delete(key string)
	Clear()
	Size() int
}
