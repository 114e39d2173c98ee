package utils

import (
	"fmt"
	"strconv"
	"strings"
)

var trailerSites = []struct {
	keywords []string
	base     string
}{
	{[]string{"youtube"}, "https://www.youtube.com/watch?v="},
	{[]string{"vimeo"}, "https://vimeo.com/"},
}

// TrailerURL returns the web link for a trailer, or "" for unknown sites
func TrailerURL(site, key string) string {
	if key == "" {
		return ""
	}
	siteLower := strings.ToLower(strings.TrimSpace(site))

	for _, s := range trailerSites {
		for _, kw := range s.keywords {
			if siteLower == kw {
				return s.base + key
			}
		}
	}

	return ""
}

// TrailerAppURI is the deep link that opens a YouTube trailer in the app
func TrailerAppURI(key string) string {
	return "vnd.youtube:" + key
}

func TrailerQuality(size int) string {
	qualities := []struct {
		sizes []int
		label string
	}{
		{[]int{2160}, "4K"},
		{[]int{1080}, "1080p"},
		{[]int{720}, "720p"},
		{[]int{480, 360}, "SD"},
	}

	for _, q := range qualities {
		for _, s := range q.sizes {
			if size == s {
				return q.label
			}
		}
	}

	return "Unknown"
}

// JoinGenreIDs encodes genre ids for the favorites table: [18 27 53] -> "18,27,53"
func JoinGenreIDs(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ",")
}

// SplitGenreIDs decodes JoinGenreIDs output, skipping blank or non-numeric parts.
// It never returns nil.
func SplitGenreIDs(s string) []int {
	ids := []int{}
	for _, part := range strings.Split(s, ",") {
		id, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

var genreNames = map[int]string{
	28:    "Action",
	12:    "Adventure",
	16:    "Animation",
	35:    "Comedy",
	80:    "Crime",
	99:    "Documentary",
	18:    "Drama",
	10751: "Family",
	14:    "Fantasy",
	36:    "History",
	27:    "Horror",
	10402: "Music",
	9648:  "Mystery",
	10749: "Romance",
	878:   "Science Fiction",
	10770: "TV Movie",
	53:    "Thriller",
	10752: "War",
	37:    "Western",
}

// GenreNames maps TMDB movie genre ids to names, dropping unknown ids
func GenreNames(ids []int) []string {
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		if name, ok := genreNames[id]; ok {
			names = append(names, name)
		}
	}
	return names
}

// ReleaseYear extracts the year from a YYYY-MM-DD release date
func ReleaseYear(date string) string {
	if date != "" && len(date) >= 4 {
		return date[:4]
	}
	return ""
}

// FormatRating renders a vote average the way the detail screen shows it
func FormatRating(average float64, count int64) string {
	switch count {
	case 0:
		return "no votes"
	case 1:
		return fmt.Sprintf("%.1f/10 (1 vote)", average)
	}
	return fmt.Sprintf("%.1f/10 (%d votes)", average, count)
}
