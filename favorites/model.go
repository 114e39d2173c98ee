package favorites

import (
	"time"

	"github.com/torrescalazans/popularmovies/types"
	"github.com/torrescalazans/popularmovies/utils"
)

// Favorite is one row of the favorites table. movie_id is the TMDB id and
// is indexed but not unique.
type Favorite struct {
	ID                     int64     `gorm:"column:id;primaryKey;autoIncrement"`
	MovieID                string    `gorm:"column:movie_id;type:text;not null;index"`
	MovieTitle             string    `gorm:"column:movie_title"`
	MovieOriginalTitle     string    `gorm:"column:movie_original_title"`
	MovieOverview          string    `gorm:"column:movie_overview"`
	MovieReleaseDate       string    `gorm:"column:movie_release_date"`
	MovieOriginalLanguage  string    `gorm:"column:movie_original_language"`
	MoviePosterPath        string    `gorm:"column:movie_poster_path"`
	MovieBackdropPath      string    `gorm:"column:movie_backdrop_path"`
	MoviePosterPathFullURL string    `gorm:"column:movie_poster_path_full_url"`
	MovieAdult             bool      `gorm:"column:movie_adult"`
	MovieVideo             bool      `gorm:"column:movie_video"`
	MovieGenreIDs          *string   `gorm:"column:movie_genre_ids"`
	MoviePopularity        float64   `gorm:"column:movie_popularity"`
	MovieVoteAverage       float64   `gorm:"column:movie_vote_average"`
	MovieVoteCount         int64     `gorm:"column:movie_vote_count"`
	CreatedAt              time.Time `gorm:"column:created_at"`
}

func (Favorite) TableName() string {
	return "favorites"
}

// FromMovie maps a catalog movie to a new row. A nil genre list is stored as NULL.
func FromMovie(m types.Movie) Favorite {
	f := Favorite{
		MovieID:                m.ID,
		MovieTitle:             m.Title,
		MovieOriginalTitle:     m.OriginalTitle,
		MovieOverview:          m.Overview,
		MovieReleaseDate:       m.ReleaseDate,
		MovieOriginalLanguage:  m.OriginalLanguage,
		MoviePosterPath:        m.PosterPath,
		MovieBackdropPath:      m.BackdropPath,
		MoviePosterPathFullURL: m.PosterURL,
		MovieAdult:             m.Adult,
		MovieVideo:             m.Video,
		MoviePopularity:        m.Popularity,
		MovieVoteAverage:       m.VoteAverage,
		MovieVoteCount:         m.VoteCount,
	}
	if m.GenreIDs != nil {
		genres := utils.JoinGenreIDs(m.GenreIDs)
		f.MovieGenreIDs = &genres
	}
	return f
}

func (f Favorite) Movie() types.Movie {
	m := types.Movie{
		ID:               f.MovieID,
		Title:            f.MovieTitle,
		OriginalTitle:    f.MovieOriginalTitle,
		Overview:         f.MovieOverview,
		ReleaseDate:      f.MovieReleaseDate,
		OriginalLanguage: f.MovieOriginalLanguage,
		PosterPath:       f.MoviePosterPath,
		BackdropPath:     f.MovieBackdropPath,
		PosterURL:        f.MoviePosterPathFullURL,
		Adult:            f.MovieAdult,
		Video:            f.MovieVideo,
		GenreIDs:         []int{},
		Popularity:       f.MoviePopularity,
		VoteAverage:      f.MovieVoteAverage,
		VoteCount:        f.MovieVoteCount,
	}
	if f.MovieGenreIDs != nil {
		m.GenreIDs = utils.SplitGenreIDs(*f.MovieGenreIDs)
	}
	return m
}

func toMovies(rows []Favorite) []types.Movie {
	movies := make([]types.Movie, 0, len(rows))
	for _, r := range rows {
		movies = append(movies, r.Movie())
	}
	return movies
}
