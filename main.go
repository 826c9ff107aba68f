package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/robalobadob/crossword/apps/go-server/assets"
	"github.com/robalobadob/crossword/apps/go-server/internal/catalog"
	"github.com/robalobadob/crossword/apps/go-server/internal/config"
	"github.com/robalobadob/crossword/apps/go-server/internal/fetch"
	"github.com/robalobadob/crossword/apps/go-server/internal/httpserver"
	"github.com/robalobadob/crossword/apps/go-server/internal/store"
)

func main() {
	cfg, err := config.Load(os.Getenv("CROSSWORD_CONFIG"))
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}
	if !cfg.Production() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}

	db, err := store.Open(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("db", cfg.DBPath).Msg("open database")
	}
	defer db.Close()

	fetcher, cat, err := puzzleSource(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("puzzle source")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := httpserver.New(ctx, httpserver.Deps{
		Config:   cfg,
		DB:       db,
		Progress: db,
		Fetcher:  fetcher,
		Catalog:  cat,
	})
	hs := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		log.Info().Str("port", cfg.Port).Msg("starting go-server")
		if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error { return srv.Run(gctx) })
	group.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return hs.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		log.Error().Err(err).Msg("server exited")
		os.Exit(1)
	}
	log.Info().Msg("server stopped")
}

// puzzleSource picks where puzzles come from: a remote host, a directory,
// or the puzzles embedded in the binary.
func puzzleSource(cfg config.Config) (fetch.Fetcher, *catalog.Catalog, error) {
	switch {
	case cfg.PuzzleBaseURL != "":
		log.Info().Str("url", cfg.PuzzleBaseURL).Msg("puzzles from remote host")
		return fetch.NewHTTPFetcher(cfg.PuzzleBaseURL, cfg.FetchTimeout), nil, nil
	case cfg.PuzzleDir != "":
		dir := os.DirFS(cfg.PuzzleDir)
		cat, err := catalog.New(dir)
		if err != nil {
			return nil, nil, err
		}
		log.Info().Str("dir", cfg.PuzzleDir).Int("puzzles", cat.Len()).Msg("puzzles from directory")
		return fetch.FSFetcher{FS: dir}, cat, nil
	default:
		cat, err := catalog.New(assets.Puzzles())
		if err != nil {
			return nil, nil, err
		}
		log.Info().Int("puzzles", cat.Len()).Msg("puzzles from embedded assets")
		return fetch.FSFetcher{FS: assets.Puzzles()}, cat, nil
	}
}
