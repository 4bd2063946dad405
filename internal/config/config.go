package config

import (
	"time"
)

// Config is the root application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	CORS       CORSConfig       `yaml:"cors"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Search     SearchConfig     `yaml:"search"`
	Projection ProjectionConfig `yaml:"projection"`
	Resolver   ResolverConfig   `yaml:"resolver"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
	Log        LogConfig        `yaml:"log"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `yaml:"host"             env:"SERVER_HOST"             env-default:"0.0.0.0"`
	Port            int           `yaml:"port"             env:"SERVER_PORT"             env-default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout"     env:"SERVER_READ_TIMEOUT"     env-default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout"    env:"SERVER_WRITE_TIMEOUT"    env-default:"30s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"     env:"SERVER_IDLE_TIMEOUT"     env-default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT" env-default:"10s"`
	// WriteRateLimit caps changeset and decision submissions per client per minute. 0 disables it.
	WriteRateLimit int `yaml:"write_rate_limit" env:"SERVER_WRITE_RATE_LIMIT" env-default:"120"`
	// AdminToken guards /admin endpoints. Empty disables them.
	AdminToken string `yaml:"admin_token" env:"SERVER_ADMIN_TOKEN"`
}

// CORSConfig holds Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins   string `yaml:"allowed_origins"   env:"CORS_ALLOWED_ORIGINS"   env-default:"*"`
	AllowedMethods   string `yaml:"allowed_methods"   env:"CORS_ALLOWED_METHODS"   env-default:"GET,POST,OPTIONS"`
	AllowedHeaders   string `yaml:"allowed_headers"   env:"CORS_ALLOWED_HEADERS"   env-default:"Content-Type,X-Actor,X-Request-Id,X-Admin-Token"`
	AllowCredentials bool   `yaml:"allow_credentials" env:"CORS_ALLOW_CREDENTIALS" env-default:"false"`
	MaxAge           int    `yaml:"max_age"           env:"CORS_MAX_AGE"           env-default:"86400"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	DSN             string        `yaml:"dsn"                env:"DATABASE_DSN"                env-required:"true"`
	MaxConns        int32         `yaml:"max_conns"          env:"DATABASE_MAX_CONNS"          env-default:"25"`
	MinConns        int32         `yaml:"min_conns"          env:"DATABASE_MIN_CONNS"          env-default:"5"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"  env:"DATABASE_MAX_CONN_LIFETIME"  env-default:"1h"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time" env:"DATABASE_MAX_CONN_IDLE_TIME" env-default:"30m"`
	AutoMigrate     bool          `yaml:"auto_migrate"       env:"DATABASE_AUTO_MIGRATE"       env-default:"true"`
	// Session settings applied to every pooled connection. LockTimeout bounds
	// the wait on per-entity advisory locks during recompute.
	ApplicationName  string        `yaml:"application_name"  env:"DATABASE_APPLICATION_NAME"  env-default:"gazetteer"`
	LockTimeout      time.Duration `yaml:"lock_timeout"      env:"DATABASE_LOCK_TIMEOUT"      env-default:"5s"`
	StatementTimeout time.Duration `yaml:"statement_timeout" env:"DATABASE_STATEMENT_TIMEOUT" env-default:"30s"`
}

// RedisConfig holds snapshot cache settings. An empty URL disables the cache.
type RedisConfig struct {
	URL string        `yaml:"url" env:"REDIS_URL"`
	TTL time.Duration `yaml:"ttl" env:"REDIS_TTL" env-default:"10m"`
}

// SearchConfig holds Meilisearch settings. An empty URL disables indexing.
type SearchConfig struct {
	URL    string `yaml:"url"     env:"MEILI_URL"`
	APIKey string `yaml:"api_key" env:"MEILI_API_KEY"`
	Index  string `yaml:"index"   env:"MEILI_INDEX"   env-default:"places"`
}

// ProjectionConfig tunes the recompute engine and its scheduler.
type ProjectionConfig struct {
	Workers       int           `yaml:"workers"        env:"PROJECTION_WORKERS"        env-default:"8"`
	EntityTimeout time.Duration `yaml:"entity_timeout" env:"PROJECTION_ENTITY_TIMEOUT" env-default:"15s"`
	Debounce      time.Duration `yaml:"debounce"       env:"PROJECTION_DEBOUNCE"       env-default:"500ms"`
	QueueSize     int           `yaml:"queue_size"     env:"PROJECTION_QUEUE_SIZE"     env-default:"1024"`
	PageSize      int           `yaml:"page_size"      env:"PROJECTION_PAGE_SIZE"      env-default:"500"`
}

// ResolverConfig holds entity resolution weights and limits.
type ResolverConfig struct {
	ExternalIDWeight int     `yaml:"external_id_weight" env:"RESOLVER_EXTERNAL_ID_WEIGHT" env-default:"1000"`
	ReferenceWeight  int     `yaml:"reference_weight"   env:"RESOLVER_REFERENCE_WEIGHT"   env-default:"6"`
	GeoWeight        int     `yaml:"geo_weight"         env:"RESOLVER_GEO_WEIGHT"         env-default:"5"`
	AddressWeight    int     `yaml:"address_weight"     env:"RESOLVER_ADDRESS_WEIGHT"     env-default:"5"`
	WikipediaWeight  int     `yaml:"wikipedia_weight"   env:"RESOLVER_WIKIPEDIA_WEIGHT"   env-default:"4"`
	ContactWeight    int     `yaml:"contact_weight"     env:"RESOLVER_CONTACT_WEIGHT"     env-default:"4"`
	NameWeight       int     `yaml:"name_weight"        env:"RESOLVER_NAME_WEIGHT"        env-default:"3"`
	MatchFloor       int     `yaml:"match_floor"        env:"RESOLVER_MATCH_FLOOR"        env-default:"6"`
	GeoTolerance     float64 `yaml:"geo_tolerance"      env:"RESOLVER_GEO_TOLERANCE"      env-default:"0.00001"`
	CandidateLimit   int     `yaml:"candidate_limit"    env:"RESOLVER_CANDIDATE_LIMIT"    env-default:"200"`
}

// TelemetryConfig holds OpenTelemetry settings. An empty endpoint disables export.
type TelemetryConfig struct {
	ServiceName  string `yaml:"service_name"  env:"OTEL_SERVICE_NAME"           env-default:"gazetteer"`
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"  env:"LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"json"`
}
