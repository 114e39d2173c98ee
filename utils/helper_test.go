package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrailerURL(t *testing.T) {
	tests := []struct {
		name     string
		site     string
		key      string
		expected string
	}{
		{
			name:     "YouTube",
			site:     "YouTube",
			key:      "FnCdOQsX5kc",
			expected: "https://www.youtube.com/watch?v=FnCdOQsX5kc",
		},
		{
			name:     "Vimeo lowercase with spaces",
			site:     " vimeo ",
			key:      "123",
			expected: "https://vimeo.com/123",
		},
		{
			name:     "unknown site",
			site:     "Dailymotion",
			key:      "x",
			expected: "",
		},
		{
			name:     "empty key",
			site:     "YouTube",
			key:      "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, TrailerURL(tt.site, tt.key))
		})
	}
}

func TestTrailerAppURI(t *testing.T) {
	assert.Equal(t, "vnd.youtube:FnCdOQsX5kc", TrailerAppURI("FnCdOQsX5kc"))
}

func TestTrailerQuality(t *testing.T) {
	tests := []struct {
		size     int
		expected string
	}{
		{2160, "4K"},
		{1080, "1080p"},
		{720, "720p"},
		{480, "SD"},
		{360, "SD"},
		{0, "Unknown"},
		{1440, "Unknown"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, TrailerQuality(tt.size), "size %d", tt.size)
	}
}

func TestGenreIDs(t *testing.T) {
	assert.Equal(t, "18,27,53", JoinGenreIDs([]int{18, 27, 53}))
	assert.Equal(t, "", JoinGenreIDs(nil))

	tests := []struct {
		name     string
		input    string
		expected []int
	}{
		{"round trip", "18,27,53", []int{18, 27, 53}},
		{"empty", "", []int{}},
		{"spaces", " 18 , 27 ", []int{18, 27}},
		{"garbage skipped", "18,,abc,53,", []int{18, 53}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SplitGenreIDs(tt.input))
		})
	}
}

func TestGenreNames(t *testing.T) {
	assert.Equal(t, []string{"Drama", "Horror", "Thriller"}, GenreNames([]int{18, 27, 53}))
	assert.Equal(t, []string{"Science Fiction"}, GenreNames([]int{878, 1}))
	assert.Equal(t, []string{}, GenreNames(nil))
}

func TestReleaseYear(t *testing.T) {
	assert.Equal(t, "2017", ReleaseYear("2017-09-05"))
	assert.Equal(t, "2017", ReleaseYear("2017"))
	assert.Equal(t, "", ReleaseYear("17"))
	assert.Equal(t, "", ReleaseYear(""))
}

func TestFormatRating(t *testing.T) {
	assert.Equal(t, "7.1/10 (6124 votes)", FormatRating(7.1, 6124))
	assert.Equal(t, "8.0/10 (1 vote)", FormatRating(8, 1))
	assert.Equal(t, "no votes", FormatRating(0, 0))
}
