package main

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/justestif/go-mood-playlist-builder/internal/auth"
	"github.com/justestif/go-mood-playlist-builder/internal/cache"
	"github.com/justestif/go-mood-playlist-builder/internal/catalog"
	"github.com/justestif/go-mood-playlist-builder/internal/config"
	"github.com/justestif/go-mood-playlist-builder/internal/db"
	"github.com/justestif/go-mood-playlist-builder/internal/explain"
	"github.com/justestif/go-mood-playlist-builder/internal/history"
	"github.com/justestif/go-mood-playlist-builder/internal/lastfm"
	"github.com/justestif/go-mood-playlist-builder/internal/logger"
	"github.com/justestif/go-mood-playlist-builder/internal/playlist"
	"github.com/justestif/go-mood-playlist-builder/internal/scoring"
	"github.com/justestif/go-mood-playlist-builder/internal/spotify"
	"github.com/justestif/go-mood-playlist-builder/internal/store"
	"github.com/justestif/go-mood-playlist-builder/internal/store/filestore"
	"github.com/justestif/go-mood-playlist-builder/internal/store/sqlite"
	"github.com/justestif/go-mood-playlist-builder/internal/tags"
)

// app holds the process-wide configuration and the resources opened for
// the running command.
type app struct {
	cfg *config.Config
	log *zap.Logger
	out io.Writer

	db      *db.DB // set when STORAGE_DRIVER=postgres
	closers []func()
}

func (a *app) init() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log, err := logger.New(cfg.Logger())
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	a.cfg, a.log = cfg, log
	return nil
}

// close releases resources in reverse order of acquisition.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
	if a.log != nil {
		_ = a.log.Sync()
	}
}

func (a *app) scorer() (*scoring.Scorer, error) {
	sc, err := config.LoadScoring(a.cfg.ScoringFile)
	if err != nil {
		return nil, err
	}
	return scoring.NewScorer(sc)
}

// openStore opens the configured playlist store.
func (a *app) openStore(ctx context.Context) (store.Store, error) {
	switch a.cfg.StorageDriver {
	case config.StorageSQLite:
		st, err := sqlite.Open(a.cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = st.Close() })
		return st, nil

	case config.StoragePostgres:
		database, err := db.New(ctx, a.cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, database.Close)
		if err := database.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("migrating database: %w", err)
		}
		a.db = database
		return database.Playlists(), nil

	default:
		return filestore.New(a.cfg.DataDir, filestore.WithLogger(a.log))
	}
}

// openCatalog connects the app-level Spotify client and its optional
// helpers: the Redis candidate cache, Last.fm genres and the PostgreSQL
// feature and tag caches. Optional helpers that fail to connect are skipped.
func (a *app) openCatalog(ctx context.Context) (*catalog.Service, error) {
	if err := a.cfg.RequireSpotify(); err != nil {
		return nil, err
	}
	client, err := spotify.NewAppClient(ctx, a.cfg.SpotifyID, a.cfg.SpotifySecret, spotify.WithLogger(a.log))
	if err != nil {
		return nil, err
	}

	opts := []catalog.Option{catalog.WithLogger(a.log)}
	if a.db != nil {
		opts = append(opts, catalog.WithFeatureStore(a.db.Tracks(), catalog.DefaultFeatureTTL))
	}

	if a.cfg.RedisAddr != "" {
		rdb, err := cache.Connect(ctx, a.cfg.RedisAddr, a.cfg.RedisPassword, a.cfg.RedisDB)
		if err != nil {
			a.log.Warn("candidate cache disabled", zap.Error(err))
		} else {
			a.closers = append(a.closers, func() { _ = rdb.Close() })
			opts = append(opts, catalog.WithCache(cache.New(rdb, a.cfg.CandidateCacheTTL, cache.WithLogger(a.log))))
		}
	}

	if a.cfg.LastFMAPIKey != "" {
		lfCfg, err := lastfm.LoadConfig()
		if err != nil {
			return nil, err
		}
		tagOpts := []tags.Option{tags.WithLogger(a.log), tags.WithMinTagCount(lfCfg.MinTagCount)}
		if a.db != nil {
			tagOpts = append(tagOpts, tags.WithCache(a.db.Tags()))
		}
		opts = append(opts, catalog.WithGenreEnricher(tags.NewService(lastfm.NewClient(lfCfg), tagOpts...)))
	}

	return catalog.New(client, opts...), nil
}

// service wires the playlist service. Without withCatalog only stored
// playlists can be read, listed, deleted and published.
func (a *app) service(ctx context.Context, withCatalog bool) (*playlist.Service, error) {
	scorer, err := a.scorer()
	if err != nil {
		return nil, err
	}
	st, err := a.openStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("opening playlist store: %w", err)
	}

	var cat playlist.Catalog
	if withCatalog {
		c, err := a.openCatalog(ctx)
		if err != nil {
			return nil, err
		}
		cat = c
	}

	var describer explain.Describer = explain.Template{}
	if a.cfg.OllamaHost != "" {
		describer = explain.NewOllama(a.cfg.OllamaHost, a.cfg.OllamaModel, explain.WithLogger(a.log))
	}

	return playlist.New(scorer, cat,
		playlist.WithStore(st),
		playlist.WithHistory(history.New(st, history.WithLogger(a.log))),
		playlist.WithDescriber(describer),
		playlist.WithCatalogTimeout(a.cfg.CatalogTimeout),
		playlist.WithMarket(a.cfg.Market),
		playlist.WithLogger(a.log),
	), nil
}

func (a *app) authenticator() (*auth.Authenticator, error) {
	return auth.New(auth.Config{
		ClientID:     a.cfg.SpotifyID,
		ClientSecret: a.cfg.SpotifySecret,
		RedirectURI:  a.cfg.RedirectURI,
	}, auth.WithLogger(a.log), auth.WithOutput(a.out))
}

// userClient returns a client for the logged-in user. With interactive set
// it runs the browser flow when no usable token is cached.
func (a *app) userClient(ctx context.Context, interactive bool) (*spotify.Client, error) {
	authenticator, err := a.authenticator()
	if err != nil {
		return nil, err
	}
	if interactive {
		api, err := authenticator.Authenticate(ctx)
		if err != nil {
			return nil, err
		}
		return spotify.New(api, spotify.WithLogger(a.log)), nil
	}
	api, err := authenticator.Cached(ctx)
	if err != nil {
		return nil, err
	}
	return spotify.New(api, spotify.WithLogger(a.log)), nil
}
