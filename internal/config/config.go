package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/david/casematch/internal/ai"
	"github.com/david/casematch/internal/db"
	"github.com/david/casematch/internal/pipeline"
	"github.com/david/casematch/internal/research"
)

// Config holds the full application configuration.
type Config struct {
	Server   ServerConfig    `yaml:"server" mapstructure:"server"`
	Database DatabaseConfig  `yaml:"database" mapstructure:"database"`
	Oracle   OracleConfig    `yaml:"oracle" mapstructure:"oracle"`
	Research ResearchConfig  `yaml:"research" mapstructure:"research"`
	Pipeline pipeline.Config `yaml:"pipeline" mapstructure:"pipeline"`
	Auth     AuthConfig      `yaml:"auth" mapstructure:"auth"`
	Log      LogConfig       `yaml:"log" mapstructure:"log"`
}

type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

type DatabaseConfig struct {
	URL string `yaml:"url" mapstructure:"url"`
	// Memory runs the service on the in-process record store.
	Memory bool `yaml:"memory" mapstructure:"memory"`
}

// OracleConfig selects the text model backend.
type OracleConfig struct {
	Provider       string `yaml:"provider" mapstructure:"provider"`
	OllamaURL      string `yaml:"ollama_url" mapstructure:"ollama_url"`
	GenModel       string `yaml:"gen_model" mapstructure:"gen_model"`
	EmbedModel     string `yaml:"embed_model" mapstructure:"embed_model"`
	AnthropicKey   string `yaml:"anthropic_key" mapstructure:"anthropic_key"`
	AnthropicModel string `yaml:"anthropic_model" mapstructure:"anthropic_model"`
	TimeoutSecs    int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// AIConfig converts to the ai package's backend config.
func (o OracleConfig) AIConfig() ai.Config {
	return ai.Config{
		Provider:       o.Provider,
		OllamaURL:      o.OllamaURL,
		GenModel:       o.GenModel,
		EmbedModel:     o.EmbedModel,
		AnthropicKey:   o.AnthropicKey,
		AnthropicModel: o.AnthropicModel,
	}
}

// Timeout bounds each scoring call to the oracle.
func (o OracleConfig) Timeout() time.Duration {
	return time.Duration(o.TimeoutSecs) * time.Second
}

type ResearchConfig struct {
	ExaKey       string  `yaml:"exa_key" mapstructure:"exa_key"`
	BaseURL      string  `yaml:"base_url" mapstructure:"base_url"`
	NumResults   int     `yaml:"num_results" mapstructure:"num_results"`
	RateLimitRPS float64 `yaml:"rate_limit_rps" mapstructure:"rate_limit_rps"`
	MaxResults   int     `yaml:"max_results" mapstructure:"max_results"`
	// QueriesFile overrides the embedded query registry.
	QueriesFile string `yaml:"queries_file" mapstructure:"queries_file"`
	// FetchPages fills documents returned without text by fetching the page.
	FetchPages bool `yaml:"fetch_pages" mapstructure:"fetch_pages"`
}

// ServiceConfig converts to the research package's service config.
func (r ResearchConfig) ServiceConfig() research.Config {
	return research.Config{RateLimitRPS: r.RateLimitRPS, MaxResults: r.MaxResults}
}

type AuthConfig struct {
	JWTSecret       string `yaml:"jwt_secret" mapstructure:"jwt_secret"`
	AdminSecretHash string `yaml:"admin_secret_hash" mapstructure:"admin_secret_hash"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from .env, config.yaml and CASEMATCH_* environment
// variables, in increasing order of precedence.
func Load() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("CASEMATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Conventional variable names are accepted as well.
	aliases := map[string][]string{
		"server.port":          {"CASEMATCH_SERVER_PORT", "PORT"},
		"database.url":         {"CASEMATCH_DATABASE_URL", "DATABASE_URL"},
		"oracle.anthropic_key": {"CASEMATCH_ORACLE_ANTHROPIC_KEY", "ANTHROPIC_API_KEY"},
		"oracle.ollama_url":    {"CASEMATCH_ORACLE_OLLAMA_URL", "OLLAMA_URL"},
		"research.exa_key":     {"CASEMATCH_RESEARCH_EXA_KEY", "EXA_API_KEY"},
		"auth.jwt_secret":      {"CASEMATCH_AUTH_JWT_SECRET", "JWT_SECRET"},
	}
	for key, envs := range aliases {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, eris.Wrapf(err, "config: bind env %s", key)
		}
	}

	v.SetDefault("server.port", 8081)
	v.SetDefault("server.cors_origins", []string{"http://localhost:3000", "http://localhost:5173"})
	v.SetDefault("database.url", db.DefaultURL)
	v.SetDefault("database.memory", false)
	v.SetDefault("oracle.provider", "ollama")
	v.SetDefault("oracle.ollama_url", ai.DefaultOllamaURL)
	v.SetDefault("oracle.gen_model", ai.DefaultGenModel)
	v.SetDefault("oracle.embed_model", ai.DefaultEmbedModel)
	v.SetDefault("oracle.anthropic_key", "")
	v.SetDefault("oracle.anthropic_model", ai.DefaultAnthropicModel)
	v.SetDefault("oracle.timeout_secs", 30)
	v.SetDefault("research.exa_key", "")
	v.SetDefault("research.base_url", research.DefaultExaURL)
	v.SetDefault("research.num_results", research.DefaultNumResults)
	v.SetDefault("research.rate_limit_rps", 1.0)
	v.SetDefault("research.max_results", research.DefaultMaxResults)
	v.SetDefault("research.queries_file", "")
	v.SetDefault("research.fetch_pages", true)
	v.SetDefault("pipeline.max_candidates", pipeline.DefaultMaxCandidates)
	v.SetDefault("pipeline.concurrency", pipeline.DefaultConcurrency)
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.admin_secret_hash", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return eris.Errorf("config: invalid server.port %d", c.Server.Port)
	}
	switch c.Oracle.Provider {
	case "ollama":
	case "anthropic":
		if c.Oracle.AnthropicKey == "" {
			return eris.New("config: oracle.anthropic_key is required for the anthropic provider")
		}
	default:
		return eris.Errorf("config: unknown oracle.provider %q", c.Oracle.Provider)
	}
	if c.Oracle.TimeoutSecs <= 0 {
		return eris.New("config: oracle.timeout_secs must be positive")
	}
	if c.Pipeline.Concurrency <= 0 || c.Pipeline.MaxCandidates <= 0 {
		return eris.New("config: pipeline.concurrency and pipeline.max_candidates must be positive")
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
