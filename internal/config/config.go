package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Connectors ConnectorsConfig `yaml:"connectors" mapstructure:"connectors"`
	Channels   ChannelsConfig   `yaml:"channels" mapstructure:"channels"`
	Funnel     FunnelConfig     `yaml:"funnel" mapstructure:"funnel"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures report persistence.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ConnectorsConfig groups the per-provider connector settings.
type ConnectorsConfig struct {
	TimeoutSecs int             `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	GA4         ConnectorConfig `yaml:"ga4" mapstructure:"ga4"`
	HubSpot     ConnectorConfig `yaml:"hubspot" mapstructure:"hubspot"`
	LinkedIn    ConnectorConfig `yaml:"linkedin" mapstructure:"linkedin"`
	Reddit      ConnectorConfig `yaml:"reddit" mapstructure:"reddit"`
}

// Timeout returns the per-connector fetch timeout.
func (c ConnectorsConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// ConnectorConfig holds one provider's API settings. A provider with an
// empty key is not registered.
type ConnectorConfig struct {
	Key     string  `yaml:"key" mapstructure:"key"`
	BaseURL string  `yaml:"base_url" mapstructure:"base_url"`
	RPS     float64 `yaml:"rps" mapstructure:"rps"`
}

// Enabled reports whether the provider is configured.
func (c ConnectorConfig) Enabled() bool {
	return c.Key != "" && c.BaseURL != ""
}

// ChannelsConfig configures channel classification.
type ChannelsConfig struct {
	// RulesPath points at a YAML rules file; empty uses the compiled-in
	// rule list.
	RulesPath string `yaml:"rules_path" mapstructure:"rules_path"`
}

// FunnelConfig configures funnel aggregation.
type FunnelConfig struct {
	LeadEvent string `yaml:"lead_event" mapstructure:"lead_event"`
}

// AnthropicConfig holds Anthropic API settings for insight generation.
type AnthropicConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ATLAS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "memory")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("connectors.timeout_secs", 30)
	v.SetDefault("connectors.ga4.base_url", "https://analyticsdata.googleapis.com/v1beta")
	v.SetDefault("connectors.ga4.rps", 5)
	v.SetDefault("connectors.hubspot.base_url", "https://api.hubapi.com")
	v.SetDefault("connectors.hubspot.rps", 5)
	v.SetDefault("connectors.linkedin.base_url", "https://api.linkedin.com/rest")
	v.SetDefault("connectors.linkedin.rps", 2)
	v.SetDefault("connectors.reddit.base_url", "https://ads-api.reddit.com/api/v3")
	v.SetDefault("connectors.reddit.rps", 2)
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")

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

// Validate checks the settings a run mode needs. Modes: "serve", "funnel",
// "report".
func (c *Config) Validate(mode string) error {
	var problems []string

	checkCommon := func() {
		if !c.Connectors.GA4.Enabled() && !c.Connectors.HubSpot.Enabled() {
			problems = append(problems, "at least one of connectors.ga4 or connectors.hubspot must be configured")
		}
		if c.Connectors.TimeoutSecs <= 0 {
			problems = append(problems, "connectors.timeout_secs must be > 0")
		}
	}

	switch mode {
	case "serve":
		checkCommon()
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
	case "funnel":
		checkCommon()
	case "report":
		checkCommon()
		if c.Store.Driver == "postgres" && c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required for driver postgres")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
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
