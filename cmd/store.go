package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/visit-planner/internal/config"
	"github.com/sells-group/visit-planner/internal/db"
	"github.com/sells-group/visit-planner/internal/planner"
	"github.com/sells-group/visit-planner/internal/store"
	"github.com/sells-group/visit-planner/pkg/geocode"
)

const defaultSQLitePath = "planner.db"

func initStore(ctx context.Context, c config.StoreConfig) (store.Store, error) {
	switch c.Driver {
	case "sqlite":
		dsn := c.DatabaseURL
		if dsn == "" {
			dsn = defaultSQLitePath
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, c.DatabaseURL, &store.PoolConfig{
			MaxConns: c.MaxConns,
			MinConns: c.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", c.Driver)
	}
}

// initEngine opens the store, migrates it and wires the planner with the
// configured geocoder and travel timer. The caller closes the store.
func initEngine(ctx context.Context) (*planner.Engine, store.Store, error) {
	if err := cfg.Validate("planner"); err != nil {
		return nil, nil, err
	}
	st, err := initStore(ctx, cfg.Store)
	if err != nil {
		return nil, nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, nil, eris.Wrap(err, "migrate store")
	}
	return planner.New(st, engineOptions(st)...), st, nil
}

func engineOptions(st store.Store) []planner.Option {
	opts := []planner.Option{
		planner.WithOptions(planner.OptionsFromConfig(cfg.Planner)),
	}

	var pool db.Pool
	if pg, ok := st.(*store.PostgresStore); ok {
		pool = pg.Pool()
	}
	if gc := geocode.FromConfig(cfg.Geocode, pool); gc != nil {
		opts = append(opts, planner.WithGeocoder(geocode.NewLocator(gc)))
	} else {
		zap.L().Info("geocoding disabled; candidates without coordinates stay unlocated")
	}
	if tt := geocode.TravelTimerFromConfig(cfg.Geocode); tt != nil {
		opts = append(opts, planner.WithTravelTimer(tt))
	}
	return opts
}
