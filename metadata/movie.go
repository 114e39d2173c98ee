package metadata

import "github.com/torrescalazans/popularmovies/types"

// TMDB list response fields, as sent by /movie/popular and /movie/top_rated
const (
	keyResults      = "results"
	keyPage         = "page"
	keyTotalPages   = "total_pages"
	keyTotalResults = "total_results"
)

// MoviePage is a parsed movie list with TMDB paging metadata
type MoviePage struct {
	Page         int           `json:"page"`
	TotalPages   int           `json:"total_pages"`
	TotalResults int           `json:"total_results"`
	Movies       []types.Movie `json:"results"`
}

// Default image settings for poster URLs
const (
	DefaultImageBaseURL = "https://image.tmdb.org/t/p/"
	DefaultPosterSize   = "w185"
)

// PosterURL joins image base, size and path. An empty path yields "".
func PosterURL(imageBaseURL, posterSize, posterPath string) string {
	if posterPath == "" {
		return ""
	}
	if imageBaseURL == "" {
		imageBaseURL = DefaultImageBaseURL
	}
	if posterSize == "" {
		posterSize = DefaultPosterSize
	}
	return imageBaseURL + posterSize + posterPath
}
