package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRequestType(t *testing.T) {
	tests := []struct {
		input    string
		expected RequestType
		wantErr  bool
	}{
		{input: "", expected: RequestDefault},
		{input: "default", expected: RequestDefault},
		{input: "popular", expected: RequestMostPopular},
		{input: "Most-Popular", expected: RequestMostPopular},
		{input: "top_rated", expected: RequestTopRated},
		{input: "top-rated", expected: RequestTopRated},
		{input: "trailers", expected: RequestVideos},
		{input: "videos", expected: RequestVideos},
		{input: " reviews ", expected: RequestReviews},
		{input: "upcoming", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseRequestType(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestRequestTypeClassification(t *testing.T) {
	assert.True(t, RequestDefault.IsMovieList())
	assert.True(t, RequestMostPopular.IsMovieList())
	assert.True(t, RequestTopRated.IsMovieList())
	assert.False(t, RequestVideos.IsMovieList())

	assert.True(t, RequestVideos.NeedsMovieID())
	assert.True(t, RequestReviews.NeedsMovieID())
	assert.False(t, RequestTopRated.NeedsMovieID())

	assert.Equal(t, "top_rated", RequestTopRated.String())
	assert.Equal(t, "RequestType(42)", RequestType(42).String())
}

func TestFinishedStatus(t *testing.T) {
	assert.Equal(t, StatusMostPopularFinished, FinishedStatus(RequestDefault))
	assert.Equal(t, StatusMostPopularFinished, FinishedStatus(RequestMostPopular))
	assert.Equal(t, StatusTopRatedFinished, FinishedStatus(RequestTopRated))
	assert.Equal(t, StatusTrailersFinished, FinishedStatus(RequestVideos))
	assert.Equal(t, StatusReviewsFinished, FinishedStatus(RequestReviews))

	assert.False(t, StatusRunning.Terminal())
	assert.True(t, StatusError.Terminal())
}
