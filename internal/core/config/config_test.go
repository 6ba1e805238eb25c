package config

import (
	"testing"
	"time"
)

func TestFromEnv_Defaults(t *testing.T) {
	cfg := FromEnv()
	if cfg.Resolver != ResolverPointCount {
		t.Fatalf("resolver got %q", cfg.Resolver)
	}
	if cfg.Spatial.Driver != SpatialSQLAPI {
		t.Fatalf("spatial driver got %q", cfg.Spatial.Driver)
	}
	if cfg.APIPrefix != "/api/v1/terrai-alerts" {
		t.Fatalf("prefix got %q", cfg.APIPrefix)
	}
	if cfg.ImageServer.LockRasterID != 5 {
		t.Fatalf("raster id got %d", cfg.ImageServer.LockRasterID)
	}
	if cfg.Events.Enabled {
		t.Fatalf("events must be disabled by default")
	}
	if cfg.AreaGuard.MaxCells != 0 {
		t.Fatalf("area guard must be off by default, got %d", cfg.AreaGuard.MaxCells)
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("RESOLVER", "Histogram")
	t.Setenv("API_PREFIX", "/terrai-alerts/")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("GEOSTORE_CACHE_TTL", "5m")
	t.Setenv("AREA_GUARD_H3_RES", "99")
	t.Setenv("EVENTS_ENABLED", "yes")
	t.Setenv("BREAKER_FAILURE_RATIO", "0.25")

	cfg := FromEnv()
	if cfg.Resolver != ResolverHistogram {
		t.Fatalf("resolver got %q", cfg.Resolver)
	}
	if cfg.APIPrefix != "/terrai-alerts" {
		t.Fatalf("prefix got %q", cfg.APIPrefix)
	}
	if len(cfg.Events.Brokers) != 2 || cfg.Events.Brokers[1] != "k2:9092" {
		t.Fatalf("brokers got %v", cfg.Events.Brokers)
	}
	if cfg.Geostore.CacheTTL != 5*time.Minute {
		t.Fatalf("ttl got %v", cfg.Geostore.CacheTTL)
	}
	if cfg.AreaGuard.H3Res != 3 {
		t.Fatalf("invalid resolution must fall back to 3, got %d", cfg.AreaGuard.H3Res)
	}
	if !cfg.Events.Enabled {
		t.Fatalf("events should be enabled")
	}
	if cfg.Breaker.FailureRatio != 0.25 {
		t.Fatalf("failure ratio got %v", cfg.Breaker.FailureRatio)
	}
}
