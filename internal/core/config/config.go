package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	ResolverPointCount = "pointcount"
	ResolverHistogram  = "histogram"

	SpatialSQLAPI   = "sqlapi"
	SpatialPostgres = "postgres"

	GeostoreCacheNone  = "none"
	GeostoreCacheLRU   = "lru"
	GeostoreCacheRedis = "redis"
)

type SpatialCfg struct {
	Driver      string
	SQLAPIURL   string
	APIKey      string
	PostgresDSN string
}

type ImageServerCfg struct {
	URL          string
	LockRasterID int
}

type DatasetCfg struct {
	URL string
	ID  string
}

type GeostoreCfg struct {
	URL       string
	Cache     string
	CacheSize int
	CacheTTL  time.Duration
	RedisAddr string
}

type AreaGuardCfg struct {
	H3Res    int
	MaxCells int
}

type EventsCfg struct {
	Enabled   bool
	Brokers   []string
	Topic     string
	QueueSize int
}

type BreakerCfg struct {
	MaxRequests  uint32
	Interval     time.Duration
	Timeout      time.Duration
	MinRequests  uint32
	FailureRatio float64
}

type Config struct {
	Addr            string
	APIPrefix       string
	LogLevel        string
	Resolver        string
	UpstreamTimeout time.Duration
	CORSOrigins     []string
	MetricsEnabled  bool
	Spatial         SpatialCfg
	ImageServer     ImageServerCfg
	Dataset         DatasetCfg
	Geostore        GeostoreCfg
	AreaGuard       AreaGuardCfg
	Events          EventsCfg
	Breaker         BreakerCfg
}

func FromEnv() Config {
	res := getint("AREA_GUARD_H3_RES", 3)
	if res < 0 || res > 15 {
		res = 3
	}

	return Config{
		Addr:            getenv("ADDR", ":3600"),
		APIPrefix:       strings.TrimRight(getenv("API_PREFIX", "/api/v1/terrai-alerts"), "/"),
		LogLevel:        getenv("LOG_LEVEL", "info"),
		Resolver:        strings.ToLower(getenv("RESOLVER", ResolverPointCount)),
		UpstreamTimeout: getduration("UPSTREAM_TIMEOUT", 30*time.Second),
		CORSOrigins:     getlist("CORS_ORIGINS", []string{"*"}),
		MetricsEnabled:  getbool("METRICS_ENABLED", true),
		Spatial: SpatialCfg{
			Driver:      strings.ToLower(getenv("SPATIAL_DRIVER", SpatialSQLAPI)),
			SQLAPIURL:   getenv("CARTO_SQL_URL", "https://wri-01.carto.com/api/v2/sql"),
			APIKey:      getenv("CARTO_API_KEY", ""),
			PostgresDSN: getenv("POSTGRES_DSN", ""),
		},
		ImageServer: ImageServerCfg{
			URL:          getenv("IMAGE_SERVER_URL", "http://gis-gfw.wri.org/arcgis/rest/services/image_services/terrai_analysis/ImageServer"),
			LockRasterID: getint("IMAGE_SERVER_RASTER_ID", 5),
		},
		Dataset: DatasetCfg{
			URL: getenv("DATASET_URL", "http://localhost:9000/v1"),
			ID:  getenv("DATASET_ID", ""),
		},
		Geostore: GeostoreCfg{
			URL:       getenv("GEOSTORE_URL", "http://localhost:9000/v1"),
			Cache:     strings.ToLower(getenv("GEOSTORE_CACHE", GeostoreCacheLRU)),
			CacheSize: getint("GEOSTORE_CACHE_SIZE", 512),
			CacheTTL:  getduration("GEOSTORE_CACHE_TTL", 24*time.Hour),
			RedisAddr: getenv("REDIS_ADDR", "localhost:6379"),
		},
		AreaGuard: AreaGuardCfg{
			H3Res:    res,
			MaxCells: getint("AREA_GUARD_MAX_CELLS", 0),
		},
		Events: EventsCfg{
			Enabled:   getbool("EVENTS_ENABLED", false),
			Brokers:   getlist("KAFKA_BROKERS", []string{"localhost:9092"}),
			Topic:     getenv("KAFKA_TOPIC", "terrai-analysis"),
			QueueSize: getint("EVENTS_QUEUE", 1024),
		},
		Breaker: BreakerCfg{
			MaxRequests:  getuint32("BREAKER_MAX_REQUESTS", 3),
			Interval:     getduration("BREAKER_INTERVAL", time.Minute),
			Timeout:      getduration("BREAKER_TIMEOUT", 30*time.Second),
			MinRequests:  getuint32("BREAKER_MIN_REQUESTS", 10),
			FailureRatio: getfloat("BREAKER_FAILURE_RATIO", 0.6),
		},
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getuint32(k string, def uint32) uint32 {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			return uint32(n)
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v := os.Getenv(k); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

// parse "a, b,c" into a list, dropping empty entries
func getlist(k string, def []string) []string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	var out []string
	for p := range strings.SplitSeq(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
