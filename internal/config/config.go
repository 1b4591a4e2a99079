package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	State     StateConfig     `mapstructure:"state"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Etsy      EtsyConfig      `mapstructure:"etsy"`
	Sync      SyncConfig      `mapstructure:"sync"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
	CORS      CORSConfig      `mapstructure:"cors"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Host                    string        `mapstructure:"host"`
	Port                    int           `mapstructure:"port"`
	Mode                    string        `mapstructure:"mode"`
	ReadTimeout             time.Duration `mapstructure:"read_timeout"`
	WriteTimeout            time.Duration `mapstructure:"write_timeout"`
	GracefulShutdownTimeout time.Duration `mapstructure:"graceful_shutdown_timeout"`
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	DB              string        `mapstructure:"db"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

type StateConfig struct {
	Backend string `mapstructure:"backend"` // "redis" | "memory"

	// PropagationDelay is waited after writing handshake state before the
	// authorize redirect, tolerating eventual consistency in the store.
	PropagationDelay time.Duration `mapstructure:"propagation_delay"`
}

type StorageConfig struct {
	Minio MinioConfig `mapstructure:"minio"`
}

type MinioConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	UseSSL    bool   `mapstructure:"use_ssl"`

	// PublicBaseURL is the externally reachable prefix for uploaded objects
	// (CDN or reverse-proxied bucket). Falls back to endpoint+bucket.
	PublicBaseURL string `mapstructure:"public_base_url"`
}

type EtsyConfig struct {
	// APIKey is the Etsy "keystring": sent as the x-api-key header and used
	// as the OAuth client_id.
	APIKey      string   `mapstructure:"api_key"`
	RedirectURL string   `mapstructure:"redirect_url"`
	Scopes      []string `mapstructure:"scopes"`

	// At least one of ShopID / ShopName must be set, with ShopID taking
	// precedence. A bare name is resolved through the search-by-name
	// endpoint once, then cached on the token record.
	ShopID   string `mapstructure:"shop_id"`
	ShopName string `mapstructure:"shop_name"`

	BaseURL      string `mapstructure:"base_url"`
	TokenURL     string `mapstructure:"token_url"`
	AuthorizeURL string `mapstructure:"authorize_url"`

	QPSLimit int `mapstructure:"qps_limit"`
	QPDLimit int `mapstructure:"qpd_limit"`
}

type SyncConfig struct {
	// Secret gates the cron/manual trigger endpoint (X-Sync-Secret header).
	Secret string `mapstructure:"secret"`

	// FeedObject is the blob name the generated CSV is uploaded under.
	FeedObject string `mapstructure:"feed_object"`
}

type DashboardConfig struct {
	// URL receives the OAuth callback outcome as query parameters.
	URL string `mapstructure:"url"`
}

type CORSConfig struct {
	AllowedOrigins   []string      `mapstructure:"allowed_origins"`
	AllowedMethods   []string      `mapstructure:"allowed_methods"`
	AllowedHeaders   []string      `mapstructure:"allowed_headers"`
	AllowCredentials bool          `mapstructure:"allow_credentials"`
	MaxAge           time.Duration `mapstructure:"max_age"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads config.yaml, overlays environment variables, and returns Config.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Environment variable override: ETSY_API_KEY -> etsy.api_key
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.graceful_shutdown_timeout", "10s")

	v.SetDefault("state.backend", "redis")
	v.SetDefault("state.propagation_delay", "500ms")

	v.SetDefault("etsy.base_url", "https://openapi.etsy.com/v3/application")
	v.SetDefault("etsy.token_url", "https://api.etsy.com/v3/public/oauth/token")
	v.SetDefault("etsy.authorize_url", "https://www.etsy.com/oauth/connect")
	v.SetDefault("etsy.scopes", []string{"listings_r", "shops_r"})
	v.SetDefault("etsy.qps_limit", 5)
	v.SetDefault("etsy.qpd_limit", 5000)

	v.SetDefault("sync.feed_object", "catalog.csv")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Validate reports every missing required key at once so a bad deployment
// fails fast with the full list instead of one key per restart.
func Validate(cfg *Config) error {
	var missing []string
	if cfg.Etsy.APIKey == "" {
		missing = append(missing, "etsy.api_key")
	}
	if cfg.Etsy.RedirectURL == "" {
		missing = append(missing, "etsy.redirect_url")
	}
	if cfg.Etsy.ShopID == "" && cfg.Etsy.ShopName == "" {
		missing = append(missing, "etsy.shop_id or etsy.shop_name")
	}
	if cfg.Sync.Secret == "" {
		missing = append(missing, "sync.secret")
	}
	if cfg.Dashboard.URL == "" {
		missing = append(missing, "dashboard.url")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}
