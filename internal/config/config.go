package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
	AWS      AWSConfig      `yaml:"aws" mapstructure:"aws"`
	Blob     BlobConfig     `yaml:"blob" mapstructure:"blob"`
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Geocode  GeocodeConfig  `yaml:"geocode" mapstructure:"geocode"`
	Pipeline PipelineConfig `yaml:"pipeline" mapstructure:"pipeline"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port        int `yaml:"port" mapstructure:"port"`
	TimeoutSecs int `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// AWSConfig configures the shared AWS client settings.
type AWSConfig struct {
	Region string `yaml:"region" mapstructure:"region"`
}

// BlobConfig names the asset bucket and the objects fetched from it.
type BlobConfig struct {
	Bucket      string `yaml:"bucket" mapstructure:"bucket"`
	NeighborKey string `yaml:"neighbor_key" mapstructure:"neighbor_key"`
	LandingKey  string `yaml:"landing_key" mapstructure:"landing_key"`
	LogoKey     string `yaml:"logo_key" mapstructure:"logo_key"`
	AssetDir    string `yaml:"asset_dir" mapstructure:"asset_dir"`
}

// StoreConfig names the region table and its county index.
type StoreConfig struct {
	Table string `yaml:"table" mapstructure:"table"`
	Index string `yaml:"index" mapstructure:"index"`
}

// GeocodeConfig holds geocoding provider settings.
type GeocodeConfig struct {
	GoogleKey string  `yaml:"google_key" mapstructure:"google_key"`
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// PipelineConfig configures aggregation behavior.
type PipelineConfig struct {
	FanOutLimit int `yaml:"fan_out_limit" mapstructure:"fan_out_limit"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("TXCRIMEMAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.timeout_secs", 15)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("aws.region", "us-west-1")
	v.SetDefault("blob.bucket", "txcrimemap-assets")
	v.SetDefault("blob.neighbor_key", "texas_county_neighbors.json")
	v.SetDefault("blob.landing_key", "landing_page.html")
	v.SetDefault("blob.logo_key", "logo.png")
	v.SetDefault("blob.asset_dir", "assets")
	v.SetDefault("store.table", "CrimeData")
	v.SetDefault("store.index", "CountyIndex")
	v.SetDefault("geocode.rate_limit", 50)
	v.SetDefault("pipeline.fan_out_limit", 8)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
