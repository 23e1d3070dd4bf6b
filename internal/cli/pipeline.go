package cli

import (
	"context"
	"fmt"
	"os"

	"ilfeat/config"
	"ilfeat/internal/adapter/cache"
	"ilfeat/internal/adapter/descriptor"
	"ilfeat/internal/adapter/geometry"
	"ilfeat/internal/adapter/memstore"
	"ilfeat/internal/adapter/propertydb"
	"ilfeat/internal/adapter/store"
	"ilfeat/internal/logging"
	"ilfeat/internal/port"
	"ilfeat/internal/usecase"
)

// pipeline bundles the collaborators a command needs and closes them.
type pipeline struct {
	extractor *usecase.Extractor
	registry  *descriptor.Registry
	builder   *geometry.Builder
	cache     *cache.DescriptorCache
	closers   []func() error
}

func (p *pipeline) Close() {
	for i := len(p.closers) - 1; i >= 0; i-- {
		if err := p.closers[i](); err != nil {
			logger.Warn("close failed", logging.Err(err))
		}
	}
}

// openStore opens the persistent descriptor store, clearing or migrating it
// when its schema is out of date.
func openStore() (*store.BoltStore, error) {
	dir := cfg.CacheDir(GetRootDir())
	if err := config.EnsureCacheDir(dir); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	path := config.CacheDBPath(dir)
	st, result, err := store.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open descriptor cache: %w", err)
	}
	switch {
	case result.NeedsRebuild:
		logger.Warn("descriptor cache cleared", logging.String("path", path), logging.String("reason", result.Reason))
	case result.NeedsMigration:
		logger.Info("descriptor cache migrated", logging.String("path", path), logging.String("reason", result.Reason))
	}
	return st, nil
}

func openPropertyDB(ctx context.Context) (port.PropertyDB, func() error, error) {
	noop := func() error { return nil }
	switch cfg.PropertyDB.Driver {
	case "file":
		db, err := propertydb.LoadFile(cfg.PropertyDB.Path)
		return db, noop, err
	case "postgres":
		dsn := os.Getenv(cfg.PropertyDB.DSNEnv)
		if dsn == "" {
			return nil, nil, fmt.Errorf("property database DSN not set in $%s", cfg.PropertyDB.DSNEnv)
		}
		db, err := propertydb.OpenSQL(ctx, dsn)
		if err != nil {
			return nil, nil, err
		}
		return db, db.Close, nil
	default:
		return propertydb.None{}, noop, nil
	}
}

func newRegistry() (*descriptor.Registry, error) {
	external := make([]descriptor.ExternalConfig, len(cfg.External))
	for i, t := range cfg.External {
		external[i] = descriptor.ExternalConfig{
			Name:    t.Name,
			Version: t.Version,
			Command: t.Command,
			Names:   t.Names,
			Timeout: t.Timeout,
			Retries: t.Retries,
			Backoff: t.Backoff,
		}
	}
	return descriptor.NewRegistry(descriptor.RegistryConfig{
		SurfacePoints: cfg.Generators.SurfacePoints,
		GridSpacing:   cfg.Generators.GridSpacing,
		External:      external,
		Metrics:       appMetrics,
		Logger:        logger,
	})
}

func newBuilder() *geometry.Builder {
	return geometry.NewBuilder(geometry.NewDistanceGeometry(),
		geometry.WithTolerance(cfg.Geometry.BondTolerance),
		geometry.WithMetrics(appMetrics),
		geometry.WithLogger(logger.Named("geometry")))
}

func openPipeline(ctx context.Context, workers int) (*pipeline, error) {
	p := &pipeline{}

	var st port.DescriptorStore
	if noCache {
		st = memstore.NewMemoryStore()
	} else {
		bolt, err := openStore()
		if err != nil {
			return nil, err
		}
		st = bolt
	}
	p.closers = append(p.closers, st.Close)

	props, closeProps, err := openPropertyDB(ctx)
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("failed to open property database: %w", err)
	}
	p.closers = append(p.closers, closeProps)

	p.registry, err = newRegistry()
	if err != nil {
		p.Close()
		return nil, err
	}
	p.builder = newBuilder()
	p.cache = cache.NewDescriptorCache(st,
		cache.WithL1(cache.NewL1(cfg.Cache.MemorySize, cfg.Cache.MemoryTTL)),
		cache.WithMetrics(appMetrics),
		cache.WithLogger(logger.Named("cache")))

	opts := usecase.Options{
		Seed:            cfg.Geometry.Seed,
		AttemptLimit:    cfg.Geometry.AttemptLimit,
		Combine:         cfg.Pipeline.Combine,
		ValidateCharges: cfg.Pipeline.ValidateCharges,
		AllowedElements: cfg.Pipeline.AllowedElements,
		Workers:         workers,
	}
	if cfg.Pipeline.AmbientLabels {
		cond := usecase.AmbientConditions
		opts.LabelConditions = &cond
	}
	p.extractor, err = usecase.NewExtractor(p.registry, p.cache, p.builder, props, opts,
		usecase.WithMetrics(appMetrics),
		usecase.WithLogger(logger.Named("extract")))
	if err != nil {
		p.Close()
		return nil, err
	}
	return p, nil
}

// selections returns the generator selection for ids, or the configured
// generators when ids is empty.
func selections(ids []string) []usecase.Selection {
	if len(ids) == 0 {
		ids = cfg.Pipeline.Generators
	}
	out := make([]usecase.Selection, len(ids))
	for i, id := range ids {
		out[i] = usecase.Selection{Generator: id, Required: cfg.IsRequired(id)}
	}
	return out
}
