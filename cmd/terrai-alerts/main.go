package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mohammed-shakir/terrai-alerts/internal/cache/redisstore"
	"github.com/mohammed-shakir/terrai-alerts/internal/core/config"
	"github.com/mohammed-shakir/terrai-alerts/internal/core/health"
	"github.com/mohammed-shakir/terrai-alerts/internal/core/httpclient"
	"github.com/mohammed-shakir/terrai-alerts/internal/core/observability"
	"github.com/mohammed-shakir/terrai-alerts/internal/core/router"
	"github.com/mohammed-shakir/terrai-alerts/internal/core/server"
	"github.com/mohammed-shakir/terrai-alerts/internal/dataset"
	"github.com/mohammed-shakir/terrai-alerts/internal/events"
	"github.com/mohammed-shakir/terrai-alerts/internal/geostore"
	"github.com/mohammed-shakir/terrai-alerts/internal/imageserver"
	"github.com/mohammed-shakir/terrai-alerts/internal/logger"
	h3mapper "github.com/mohammed-shakir/terrai-alerts/internal/mapper/h3"
	"github.com/mohammed-shakir/terrai-alerts/internal/metrics"
	"github.com/mohammed-shakir/terrai-alerts/internal/resolver"
	_ "github.com/mohammed-shakir/terrai-alerts/internal/resolver/histogram"
	_ "github.com/mohammed-shakir/terrai-alerts/internal/resolver/pointcount"
	"github.com/mohammed-shakir/terrai-alerts/internal/spatialstore"
)

var Version = "dev"

func main() {
	os.Exit(run())
}

func envInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func run() int {
	// overriding resolver via flag
	resolverFlag := flag.String("resolver", "", "region resolver ("+strings.Join(resolver.Names(), ", ")+")")
	flag.Parse()

	cfg := config.FromEnv()
	if *resolverFlag != "" {
		cfg.Resolver = strings.ToLower(strings.TrimSpace(*resolverFlag))
	}

	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   strings.ToLower(os.Getenv("LOG_CONSOLE")) == "true",
		SampleN:   envInt("LOG_SAMPLE_N", 0),
		Strategy:  cfg.Resolver,
		Component: "terrai-alerts",
	}, os.Stdout)
	appLog := logger.NewSlog(&zl)

	appLog.Info("starting terrai-alerts",
		"addr", cfg.Addr,
		"version", Version,
		"resolver", cfg.Resolver,
		"spatial_driver", cfg.Spatial.Driver,
		"geostore_cache", cfg.Geostore.Cache)

	var routes server.Routes
	if cfg.MetricsEnabled {
		p := metrics.New(metrics.BuildInfo{
			Version:   firstNonEmpty(os.Getenv("BUILD_VERSION"), Version),
			Revision:  os.Getenv("BUILD_REVISION"),
			Branch:    os.Getenv("BUILD_BRANCH"),
			BuildDate: os.Getenv("BUILD_DATE"),
		})
		if err := observability.Init(p.Registerer()); err != nil {
			appLog.Error("metrics registration failed", "err", err)
			return 1
		}
		routes.Metrics = p.Handler()
	}
	observability.SetStrategy(cfg.Resolver)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	outbound := httpclient.NewOutbound(cfg.UpstreamTimeout)
	upstream := func(name string) httpclient.Doer {
		return httpclient.NewBreaker(name, outbound, cfg.Breaker, appLog)
	}
	ready := map[string]health.Pinger{}

	store, closeStore, err := openSpatialStore(cfg, appLog, upstream("spatial"))
	if err != nil {
		appLog.Error("spatial store setup failed", "err", err)
		return 1
	}
	defer closeStore()
	ready["spatial"] = store

	geo, closeGeo, err := openGeostore(ctx, cfg, appLog, upstream("geostore"), ready)
	if err != nil {
		appLog.Error("geostore setup failed", "err", err)
		return 1
	}
	defer closeGeo()

	images, err := imageserver.New(appLog, upstream("imageserver"), cfg.ImageServer.URL, cfg.ImageServer.LockRasterID)
	if err != nil {
		appLog.Error("image server setup failed", "err", err)
		return 1
	}

	var counter resolver.DatasetCounter
	if cfg.Dataset.ID != "" {
		ds, err := dataset.New(appLog, upstream("dataset"), cfg.Dataset.URL, cfg.Dataset.ID)
		if err != nil {
			appLog.Error("dataset client setup failed", "err", err)
			return 1
		}
		counter = ds
	}

	res, err := resolver.New(cfg.Resolver, resolver.Deps{
		Config:       cfg,
		Logger:       appLog,
		Store:        store,
		Geostore:     geo,
		Images:       images,
		Dataset:      counter,
		Guard:        h3mapper.Guard{Res: cfg.AreaGuard.H3Res, MaxCells: cfg.AreaGuard.MaxCells},
		DownloadBase: cfg.Spatial.SQLAPIURL,
	})
	if err != nil {
		appLog.Error("resolver setup failed", "err", err)
		return 1
	}
	if cfg.Resolver == config.ResolverHistogram {
		ready["imageserver"] = images
	}

	sink, closeSink, err := openEvents(cfg, appLog)
	if err != nil {
		appLog.Error("events setup failed", "err", err)
		return 1
	}
	defer closeSink()

	routes.API = router.New(appLog, res, cfg.Resolver, router.WithEvents(sink)).Routes()
	routes.Ready = health.Readiness(ready, 2*time.Second)

	if err := server.Run(ctx, cfg, appLog, routes); err != nil {
		appLog.Error("server exited with error", "err", err)
		return 1
	}
	appLog.Info("server stopped")
	return 0
}

func openSpatialStore(cfg config.Config, log *slog.Logger, doer httpclient.Doer) (spatialstore.Store, func(), error) {
	switch cfg.Spatial.Driver {
	case config.SpatialPostgres:
		pg, err := spatialstore.OpenPostgres(log, cfg.Spatial.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		return pg, func() { _ = pg.Close() }, nil
	case config.SpatialSQLAPI, "":
		api, err := spatialstore.NewSQLAPI(log, doer, cfg.Spatial.SQLAPIURL, cfg.Spatial.APIKey)
		if err != nil {
			return nil, nil, err
		}
		return api, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown spatial driver %q", cfg.Spatial.Driver)
	}
}

func openGeostore(ctx context.Context, cfg config.Config, log *slog.Logger, doer httpclient.Doer, ready map[string]health.Pinger) (geostore.Lookup, func(), error) {
	client, err := geostore.New(log, doer, cfg.Geostore.URL)
	if err != nil {
		return nil, nil, err
	}

	switch cfg.Geostore.Cache {
	case config.GeostoreCacheNone:
		return client, func() {}, nil
	case config.GeostoreCacheRedis:
		rc, err := redisstore.New(ctx, cfg.Geostore.RedisAddr)
		if err != nil {
			return nil, nil, fmt.Errorf("redis %s: %w", cfg.Geostore.RedisAddr, err)
		}
		ready["redis"] = rc
		cached := geostore.NewCached(log, client, cfg.Geostore.CacheSize, cfg.Geostore.CacheTTL, rc)
		return cached, func() { _ = rc.Close() }, nil
	default:
		if cfg.Geostore.Cache != config.GeostoreCacheLRU {
			log.Warn("unknown geostore cache; using lru", "cache", cfg.Geostore.Cache)
		}
		return geostore.NewCached(log, client, cfg.Geostore.CacheSize, cfg.Geostore.CacheTTL, nil), func() {}, nil
	}
}

func openEvents(cfg config.Config, log *slog.Logger) (events.Sink, func(), error) {
	if !cfg.Events.Enabled {
		return events.Discard{}, func() {}, nil
	}
	pub, err := events.NewPublisher(log, cfg.Events.Brokers, cfg.Events.Topic, cfg.Events.QueueSize)
	if err != nil {
		return nil, nil, err
	}
	log.Info("analysis events enabled", "brokers", cfg.Events.Brokers, "topic", cfg.Events.Topic)
	return pub, func() {
		if err := pub.Close(); err != nil {
			log.Warn("events close", "err", err)
		}
	}, nil
}

func firstNonEmpty(vs ...string) string {
	for _, v := range vs {
		if v != "" {
			return v
		}
	}
	return ""
}
