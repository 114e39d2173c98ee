package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/torrescalazans/popularmovies/caching"
	"github.com/torrescalazans/popularmovies/config"
	"github.com/torrescalazans/popularmovies/logging"
	"github.com/torrescalazans/popularmovies/server"
	"github.com/torrescalazans/popularmovies/types"
	"github.com/torrescalazans/popularmovies/utils"
)

// cli carries state shared by the commands of one invocation
type cli struct {
	configPath string
	logLevel   string
	jsonOutput bool
	cfg        *config.Config
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:           "popularmovies",
		Short:         "Browse popular and top rated movies from TMDB and keep local favorites",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.loadConfig()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&c.configPath, "config", "", "path to a YAML config file (overrides "+config.ConfigPathEnvVar+")")
	flags.StringVar(&c.logLevel, "log-level", "", "log level: trace, debug, info, warn, error")
	flags.BoolVar(&c.jsonOutput, "json", false, "print JSON instead of tables")

	root.AddCommand(
		c.serveCmd(),
		c.moviesCmd(),
		c.trailersCmd(),
		c.reviewsCmd(),
		c.favoritesCmd(),
		c.cacheCmd(),
	)

	return root
}

func (c *cli) loadConfig() error {
	if c.configPath != "" {
		if err := os.Setenv(config.ConfigPathEnvVar, c.configPath); err != nil {
			return err
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if c.logLevel != "" {
		cfg.Logging.Level = c.logLevel
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	c.cfg = cfg
	return nil
}

func (c *cli) serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(c.cfg, appParts{catalog: true, store: true, refresh: true})
			if err != nil {
				return err
			}
			return serve(cmd.Context(), app)
		},
	}
}

func serve(ctx context.Context, app *App) error {
	cfg := app.cfg
	handler := server.New(server.DefaultManifest, app.worker, app.store, server.Options{
		RateLimit:      cfg.Server.RateLimit,
		RequestTimeout: cfg.Server.WriteTimeout,
		Stats:          app.Stats,
	})

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", httpServer.Addr).Msg("Server started")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logging.Info().Msg("Starting graceful shutdown")
	case err := <-serverErr:
		runErr = fmt.Errorf("server failed: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logging.Warn().Err(err).Msg("Server shutdown error")
	} else {
		logging.Info().Msg("HTTP server stopped")
	}

	if err := app.Close(); err != nil {
		logging.Warn().Err(err).Msg("Shutdown cleanup failed")
	}
	logging.Info().Msg("Graceful shutdown complete")

	return runErr
}

func (c *cli) moviesCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "movies [popular|top-rated]",
		Short:     "List popular or top rated movies",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"popular", "top-rated"},
		RunE: func(cmd *cobra.Command, args []string) error {
			kind := types.RequestMostPopular
			if len(args) == 1 {
				k, err := parseListKind(args[0])
				if err != nil {
					return err
				}
				kind = k
			}

			return c.withApp(appParts{catalog: true}, func(app *App) error {
				res, err := fetch(cmd.Context(), app, caching.FetchTask{Kind: kind})
				if err != nil {
					return err
				}
				return c.printMovies(cmd.OutOrStdout(), res.Movies)
			})
		},
	}
}

func (c *cli) trailersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "trailers <movie-id>",
		Short: "List the trailers of a movie",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			movieID, err := parseMovieID(args[0])
			if err != nil {
				return err
			}

			return c.withApp(appParts{catalog: true}, func(app *App) error {
				res, err := fetch(cmd.Context(), app, caching.FetchTask{Kind: types.RequestVideos, MovieID: movieID})
				if err != nil {
					return err
				}
				return c.printTrailers(cmd.OutOrStdout(), res.Trailers)
			})
		},
	}
}

func (c *cli) reviewsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reviews <movie-id>",
		Short: "List the reviews of a movie",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			movieID, err := parseMovieID(args[0])
			if err != nil {
				return err
			}

			return c.withApp(appParts{catalog: true}, func(app *App) error {
				res, err := fetch(cmd.Context(), app, caching.FetchTask{Kind: types.RequestReviews, MovieID: movieID})
				if err != nil {
					return err
				}
				return c.printReviews(cmd.OutOrStdout(), res.Reviews)
			})
		},
	}
}

func (c *cli) favoritesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "favorites",
		Short: "Manage local favorites",
	}

	var search string
	list := &cobra.Command{
		Use:   "list",
		Short: "List favorites ordered by title",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(appParts{store: true}, func(app *App) error {
				movies, err := app.store.Search(cmd.Context(), search)
				if err != nil {
					return err
				}
				return c.printMovies(cmd.OutOrStdout(), movies)
			})
		},
	}
	list.Flags().StringVar(&search, "search", "", "only show titles matching this text")

	show := &cobra.Command{
		Use:   "show <movie-id>",
		Short: "Show the stored rows of a movie",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(appParts{store: true}, func(app *App) error {
				movies, err := app.store.QueryByMovieID(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if len(movies) == 0 {
					return fmt.Errorf("movie %s is not a favorite", args[0])
				}
				return c.printMovieDetail(cmd.OutOrStdout(), movies)
			})
		},
	}

	var from string
	add := &cobra.Command{
		Use:   "add <movie-id>",
		Short: "Add a movie from the popular or top rated list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := parseListKind(from)
			if err != nil {
				return err
			}

			return c.withApp(appParts{catalog: true, store: true}, func(app *App) error {
				res, err := fetch(cmd.Context(), app, caching.FetchTask{Kind: kind})
				if err != nil {
					return err
				}

				for _, m := range res.Movies {
					if m.ID != args[0] {
						continue
					}
					rowID, err := app.store.Insert(cmd.Context(), m)
					if err != nil {
						return err
					}
					_, err = fmt.Fprintf(cmd.OutOrStdout(), "Added %q (row %d)\n", m.Title, rowID)
					return err
				}
				return fmt.Errorf("movie %s is not in the %s list", args[0], kind)
			})
		},
	}
	add.Flags().StringVar(&from, "from", "popular", "list to look the movie up in: popular or top-rated")

	remove := &cobra.Command{
		Use:   "remove <movie-id>",
		Short: "Remove every stored row of a movie",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(appParts{store: true}, func(app *App) error {
				n, err := app.store.Delete(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "Removed %d row(s)\n", n)
				return err
			})
		},
	}

	clearAll := &cobra.Command{
		Use:   "clear",
		Short: "Remove all favorites",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(appParts{store: true}, func(app *App) error {
				n, err := app.store.Clear(cmd.Context())
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "Removed %d row(s)\n", n)
				return err
			})
		},
	}

	cmd.AddCommand(list, show, add, remove, clearAll)
	return cmd
}

func (c *cli) cacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the response cache",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "clear",
			Short: "Drop every cached TMDB response",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.withApp(appParts{caches: true}, func(app *App) error {
					n := app.provider.GetCacheStats()["total_entries"]
					app.provider.ClearCache()
					_, err := fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d cached response(s)\n", n)
					return err
				})
			},
		},
		&cobra.Command{
			Use:   "stats",
			Short: "Show how many responses each cache tier holds",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.withApp(appParts{caches: true}, func(app *App) error {
					stats := app.provider.GetCacheStats()
					if c.jsonOutput {
						return c.printJSON(cmd.OutOrStdout(), stats)
					}
					_, err := fmt.Fprintf(cmd.OutOrStdout(), "Tiers: %v\nEntries per tier: %v\nTotal entries: %v\n",
						stats["tiers"], stats["tier_entries"], stats["total_entries"])
					return err
				})
			},
		},
	)

	return cmd
}

func (c *cli) withApp(parts appParts, fn func(app *App) error) error {
	app, err := newApp(c.cfg, parts)
	if err != nil {
		return err
	}
	runErr := fn(app)
	if err := app.Close(); err != nil {
		logging.Warn().Err(err).Msg("Cleanup failed")
	}
	return runErr
}

// fetch runs a task on the worker. Fetch failures surface as the single
// generic network error; the detail is logged.
func fetch(ctx context.Context, app *App, task caching.FetchTask) (caching.Result, error) {
	res, err := app.worker.Do(ctx, task)
	if err != nil {
		logging.Error().Err(err).Str("kind", task.Kind.String()).Int("movie_id", task.MovieID).Msg("Fetch failed")
		if errors.Is(err, types.ErrFetchFailed) || errors.Is(err, context.DeadlineExceeded) {
			return res, types.ErrFetchFailed
		}
		return res, err
	}
	return res, nil
}

func parseListKind(s string) (types.RequestType, error) {
	kind, err := types.ParseRequestType(s)
	if err != nil || !kind.IsMovieList() {
		return 0, fmt.Errorf("unknown movie list %q: use popular or top-rated", s)
	}
	if kind == types.RequestDefault {
		kind = types.RequestMostPopular
	}
	return kind, nil
}

func parseMovieID(s string) (int, error) {
	id, err := strconv.Atoi(s)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid movie id %q", s)
	}
	return id, nil
}

func (c *cli) printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (c *cli) printMovies(w io.Writer, movies []types.Movie) error {
	if c.jsonOutput {
		if movies == nil {
			movies = []types.Movie{}
		}
		return c.printJSON(w, movies)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tYEAR\tRATING")
	for _, m := range movies {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", m.ID, m.Title, utils.ReleaseYear(m.ReleaseDate), utils.FormatRating(m.VoteAverage, m.VoteCount))
	}
	return tw.Flush()
}

func (c *cli) printMovieDetail(w io.Writer, movies []types.Movie) error {
	if c.jsonOutput {
		return c.printJSON(w, movies)
	}

	for i, m := range movies {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "%s (%s)\n", m.Title, utils.ReleaseYear(m.ReleaseDate))
		if m.OriginalTitle != "" && m.OriginalTitle != m.Title {
			fmt.Fprintf(w, "Original title: %s\n", m.OriginalTitle)
		}
		fmt.Fprintf(w, "Rating: %s\n", utils.FormatRating(m.VoteAverage, m.VoteCount))
		if genres := utils.GenreNames(m.GenreIDs); len(genres) > 0 {
			fmt.Fprintf(w, "Genres: %s\n", strings.Join(genres, ", "))
		}
		if m.PosterURL != "" {
			fmt.Fprintf(w, "Poster: %s\n", m.PosterURL)
		}
		if m.Overview != "" {
			fmt.Fprintf(w, "\n%s\n", m.Overview)
		}
	}
	return nil
}

func (c *cli) printTrailers(w io.Writer, trailers []types.Trailer) error {
	if c.jsonOutput {
		if trailers == nil {
			trailers = []types.Trailer{}
		}
		return c.printJSON(w, trailers)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tTYPE\tQUALITY\tURL")
	for _, t := range trailers {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", t.Name, t.Type, utils.TrailerQuality(t.Size), utils.TrailerURL(t.Site, t.Key))
	}
	return tw.Flush()
}

func (c *cli) printReviews(w io.Writer, reviews []types.Review) error {
	if c.jsonOutput {
		if reviews == nil {
			reviews = []types.Review{}
		}
		return c.printJSON(w, reviews)
	}

	if len(reviews) == 0 {
		_, err := fmt.Fprintln(w, "No reviews")
		return err
	}
	for i, r := range reviews {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "%s wrote:\n%s\n", r.Author, strings.TrimSpace(r.Content))
		if r.URL != "" {
			fmt.Fprintf(w, "%s\n", r.URL)
		}
	}
	return nil
}
