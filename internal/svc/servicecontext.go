package svc

import (
	"log"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx driver
	"github.com/zeromicro/go-zero/core/stores/redis"
	"github.com/zeromicro/go-zero/core/stores/sqlx"

	"pricefeed-api/internal/aggregator"
	cachekeys "pricefeed-api/internal/cache"
	"pricefeed-api/internal/config"
	"pricefeed-api/internal/model"
	"pricefeed-api/internal/pipeline"
	"pricefeed-api/internal/query"
	"pricefeed-api/internal/store"
	sourcepkg "pricefeed-api/pkg/source"
	_ "pricefeed-api/pkg/source/coingecko" // registers the coingecko provider
)

// ServiceContext wires configuration into the concrete collaborators the
// binaries run: source provider, aggregator, snapshot store, pipeline and
// query service.
type ServiceContext struct {
	Config config.Config

	SourceConfig    *sourcepkg.Config
	SourceProviders map[string]sourcepkg.Provider
	DefaultSource   sourcepkg.Provider

	DBConn         sqlx.SqlConn
	SnapshotsModel model.PriceSnapshotsModel
	SnapshotStore  *store.SnapshotStore

	Aggregator   *aggregator.Aggregator
	Pipeline     *pipeline.Pipeline
	QueryService *query.Service
}

func NewServiceContext(c config.Config) *ServiceContext {
	svc := &ServiceContext{Config: c}

	sourceCfg := c.Source.Value
	if sourceCfg == nil {
		log.Fatal("source config is required (set Source.File in the main config)")
	}
	providers, err := sourceCfg.BuildProviders()
	if err != nil {
		log.Fatalf("failed to build source providers: %v", err)
	}
	svc.SourceConfig = sourceCfg
	svc.SourceProviders = providers
	if sourceCfg.Default != "" {
		svc.DefaultSource = providers[sourceCfg.Default]
	}
	if svc.DefaultSource == nil {
		log.Fatalf("default source provider %q not found", sourceCfg.Default)
	}

	if c.Postgres.DSN == "" {
		log.Fatal("postgres DSN is required")
	}
	svc.DBConn = sqlx.NewSqlConn("pgx", c.Postgres.DSN)
	svc.SnapshotsModel = model.NewPriceSnapshotsModel(svc.DBConn)

	storeOpts := []store.Option{}
	if c.Redis.Host != "" {
		ttl := cachekeys.NewTTLSet(c.TTL)
		storeOpts = append(storeOpts, store.WithLatestCache(
			redis.MustNewRedis(c.Redis),
			cachekeys.SnapshotLatestTTL(ttl),
		))
	}
	svc.SnapshotStore = store.New(svc.SnapshotsModel, storeOpts...)

	svc.Aggregator = aggregator.New(svc.DefaultSource,
		aggregator.WithTopAssets(c.Pipeline.TopAssets),
		aggregator.WithTopExchanges(c.Pipeline.TopExchanges),
		aggregator.WithQuoteSymbol(c.Pipeline.QuoteSymbol),
		aggregator.WithStableAssetID(c.Pipeline.StableAssetID),
	)
	svc.Pipeline = pipeline.New(svc.Aggregator, svc.SnapshotStore)
	svc.QueryService = query.NewService(svc.SnapshotStore)
	return svc
}
