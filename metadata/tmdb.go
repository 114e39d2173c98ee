package metadata

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/torrescalazans/popularmovies/cache"
	"github.com/torrescalazans/popularmovies/logging"
	"github.com/torrescalazans/popularmovies/metrics"
	"github.com/torrescalazans/popularmovies/types"
)

const (
	DefaultBaseURL = "https://api.themoviedb.org/3"
	userAgent      = "PopularMovies/1.0"
	maxBodyBytes   = 10 << 20
)

var (
	// ErrMissingMovieID is returned for per-movie requests without a positive id.
	ErrMissingMovieID = errors.New("movie id required")
	// ErrUnknownRequestType is returned for request kinds with no endpoint.
	ErrUnknownRequestType = errors.New("unknown request type")
)

// StatusError is a non-200 answer from TMDB
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	switch e.Code {
	case http.StatusUnauthorized:
		return "TMDB API key is invalid"
	case http.StatusTooManyRequests:
		return "TMDB rate limit exceeded"
	}
	return fmt.Sprintf("TMDB API error: status %d", e.Code)
}

// Config configures the TMDB provider. Zero values fall back to defaults.
type Config struct {
	APIKey       string
	BaseURL      string
	ImageBaseURL string
	PosterSize   string

	ConnectTimeout time.Duration // default 3s
	ReadTimeout    time.Duration // time to response headers, default 5s
	Timeout        time.Duration // whole request, default 10s
	CacheTTL       time.Duration // default 24h

	RateLimit float64 // requests per second, default 4
	RateBurst int     // default 8

	BreakerFailures uint32        // default 5
	BreakerTimeout  time.Duration // default 30s

	HTTPClient *http.Client // replaces the built-in client when set
}

// Provider fetches and parses TMDB catalog data through the cache tiers
type Provider struct {
	cfg     Config
	client  *http.Client
	caches  []types.Cache
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[[]byte]
	log     zerolog.Logger
}

// NewMetadataProvider builds a provider. Caches are consulted in the order given.
func NewMetadataProvider(cfg Config, caches ...types.Cache) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.ImageBaseURL == "" {
		cfg.ImageBaseURL = DefaultImageBaseURL
	}
	if cfg.PosterSize == "" {
		cfg.PosterSize = DefaultPosterSize
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 3 * time.Second
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 5 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 24 * time.Hour
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 4
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = 8
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:  cfg.ConnectTimeout,
					Resolver: &net.Resolver{PreferGo: true},
				}).DialContext,
				TLSHandshakeTimeout:   cfg.ConnectTimeout,
				ResponseHeaderTimeout: cfg.ReadTimeout,
				MaxIdleConnsPerHost:   4,
				IdleConnTimeout:       90 * time.Second,
			},
		}
	}

	var tiers []types.Cache
	for _, c := range caches {
		if c != nil {
			tiers = append(tiers, c)
		}
	}

	return &Provider{
		cfg:     cfg,
		client:  client,
		caches:  tiers,
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
		breaker: newBreaker(cfg.BreakerFailures, cfg.BreakerTimeout),
		log:     logging.With("tmdb"),
	}
}

// BuildURL returns the endpoint URL for kind. movieID is only used, and then
// required, for videos and reviews.
func BuildURL(baseURL, apiKey string, kind types.RequestType, movieID int) (string, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	var path string
	switch kind {
	case types.RequestDefault, types.RequestMostPopular:
		path = "movie/popular"
	case types.RequestTopRated:
		path = "movie/top_rated"
	case types.RequestVideos, types.RequestReviews:
		if movieID <= 0 {
			return "", fmt.Errorf("%w: %s for movie %d", ErrMissingMovieID, kind, movieID)
		}
		path = fmt.Sprintf("movie/%d/%s", movieID, kind)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownRequestType, kind)
	}

	params := url.Values{}
	params.Set("api_key", apiKey)

	return strings.TrimRight(baseURL, "/") + "/" + path + "?" + params.Encode(), nil
}

// Fetch returns the raw response body for kind, from cache when possible.
// Network, HTTP and breaker failures satisfy errors.Is(err, types.ErrFetchFailed).
func (mp *Provider) Fetch(ctx context.Context, kind types.RequestType, movieID int) ([]byte, error) {
	fullURL, err := BuildURL(mp.cfg.BaseURL, mp.cfg.APIKey, kind, movieID)
	if err != nil {
		return nil, err
	}
	key := cache.Key(fullURL)

	for i, c := range mp.caches {
		if body, ok := c.Get(key); ok {
			mp.log.Debug().Str("url", key).Int("tier", i).Msg("Cache hit")
			for _, upper := range mp.caches[:i] {
				upper.Set(key, body, mp.cfg.CacheTTL)
			}
			return body, nil
		}
	}

	body, err := mp.get(ctx, kind, fullURL, key)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrFetchFailed, err)
	}

	for _, c := range mp.caches {
		c.Set(key, body, mp.cfg.CacheTTL)
	}
	return body, nil
}

func (mp *Provider) get(ctx context.Context, kind types.RequestType, fullURL, logURL string) ([]byte, error) {
	if err := mp.limiter.Wait(ctx); err != nil {
		metrics.TMDBRequests.WithLabelValues(kind.String(), "rejected").Inc()
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	mp.log.Info().Str("url", logURL).Msg("Fetching from TMDB")

	body, err := mp.breaker.Execute(func() ([]byte, error) {
		return mp.do(ctx, kind, fullURL)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.TMDBRequests.WithLabelValues(kind.String(), "rejected").Inc()
		}
		mp.log.Warn().Err(err).Str("url", logURL).Msg("TMDB request failed")
		return nil, err
	}
	return body, nil
}

func (mp *Provider) do(ctx context.Context, kind types.RequestType, fullURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := mp.client.Do(req)
	metrics.TMDBRequestDuration.WithLabelValues(kind.String()).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.TMDBRequests.WithLabelValues(kind.String(), "transport_error").Inc()
		return nil, fmt.Errorf("request failed: %w", redact(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		metrics.TMDBRequests.WithLabelValues(kind.String(), "http_error").Inc()
		return nil, &StatusError{Code: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		metrics.TMDBRequests.WithLabelValues(kind.String(), "transport_error").Inc()
		return nil, fmt.Errorf("read body: %w", err)
	}

	metrics.TMDBRequests.WithLabelValues(kind.String(), "success").Inc()
	return body, nil
}

// redact drops the request URL, which carries the API key, from client errors
func redact(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		return fmt.Errorf("%s: %w", strings.ToLower(ue.Op), ue.Err)
	}
	return err
}

// Movies fetches and parses a movie list. RequestDefault behaves as most popular.
func (mp *Provider) Movies(ctx context.Context, kind types.RequestType) ([]types.Movie, error) {
	page, err := mp.MoviePage(ctx, kind)
	if err != nil {
		return nil, err
	}
	return page.Movies, nil
}

// MoviePage is Movies with TMDB paging metadata
func (mp *Provider) MoviePage(ctx context.Context, kind types.RequestType) (*MoviePage, error) {
	if !kind.IsMovieList() {
		return nil, fmt.Errorf("%w: %s is not a movie list", ErrUnknownRequestType, kind)
	}
	body, err := mp.Fetch(ctx, kind, 0)
	if err != nil {
		return nil, err
	}
	page, err := ParseMoviePage(body, mp.cfg.ImageBaseURL, mp.cfg.PosterSize)
	if err != nil {
		return nil, mp.parseFailed(kind, 0, err)
	}
	mp.log.Debug().Str("kind", kind.String()).Int("count", len(page.Movies)).Msg("Movies fetched")
	return page, nil
}

func (mp *Provider) PopularMovies(ctx context.Context) ([]types.Movie, error) {
	return mp.Movies(ctx, types.RequestMostPopular)
}

func (mp *Provider) TopRatedMovies(ctx context.Context) ([]types.Movie, error) {
	return mp.Movies(ctx, types.RequestTopRated)
}

// Trailers fetches the videos attached to a movie
func (mp *Provider) Trailers(ctx context.Context, movieID int) ([]types.Trailer, error) {
	body, err := mp.Fetch(ctx, types.RequestVideos, movieID)
	if err != nil {
		return nil, err
	}
	trailers, err := ParseTrailers(body)
	if err != nil {
		return nil, mp.parseFailed(types.RequestVideos, movieID, err)
	}
	return trailers, nil
}

// Reviews fetches the user reviews attached to a movie
func (mp *Provider) Reviews(ctx context.Context, movieID int) ([]types.Review, error) {
	body, err := mp.Fetch(ctx, types.RequestReviews, movieID)
	if err != nil {
		return nil, err
	}
	reviews, err := ParseReviews(body)
	if err != nil {
		return nil, mp.parseFailed(types.RequestReviews, movieID, err)
	}
	return reviews, nil
}

// parseFailed evicts the unparseable body so the next call goes to the network
func (mp *Provider) parseFailed(kind types.RequestType, movieID int, err error) error {
	metrics.ParseErrors.WithLabelValues(kind.String()).Inc()
	if fullURL, buildErr := BuildURL(mp.cfg.BaseURL, mp.cfg.APIKey, kind, movieID); buildErr == nil {
		key := cache.Key(fullURL)
		for _, c := range mp.caches {
			c.Delete(key)
		}
	}
	mp.log.Warn().Err(err).Str("kind", kind.String()).Int("movie_id", movieID).Msg("Failed to parse TMDB response")
	return fmt.Errorf("%w: %w", types.ErrFetchFailed, err)
}

// ClearCache empties every cache tier
func (mp *Provider) ClearCache() {
	for _, c := range mp.caches {
		c.Clear()
	}
	mp.log.Info().Int("tiers", len(mp.caches)).Msg("Response caches cleared")
}

// statsReporter is implemented by tiers with more detail than Size
type statsReporter interface {
	GetStats() map[string]interface{}
}

// GetCacheStats returns the entry count of each tier, plus the detailed
// stats of tiers that report them
func (mp *Provider) GetCacheStats() map[string]interface{} {
	sizes := make([]int, len(mp.caches))
	details := make([]map[string]interface{}, len(mp.caches))
	total := 0
	for i, c := range mp.caches {
		sizes[i] = c.Size()
		total += sizes[i]
		if r, ok := c.(statsReporter); ok {
			details[i] = r.GetStats()
		}
	}
	return map[string]interface{}{
		"tiers":         len(mp.caches),
		"tier_entries":  sizes,
		"tier_stats":    details,
		"total_entries": total,
	}
}
