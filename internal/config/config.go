package config

import (
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port  string `envconfig:"PORT" default:"8080"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	OpenAIAPIKey string `envconfig:"OPENAI_API_KEY"`

	// Decay thresholds: the weight applied once an item's last recall
	// is older than the named window. Reals in (0, 1].
	DecayD90  float64 `envconfig:"DECAY_D90" default:"0.5"`
	DecayD180 float64 `envconfig:"DECAY_D180" default:"0.2"`
	DecayD365 float64 `envconfig:"DECAY_D365" default:"0.1"`

	// Keyword search results scoring below this fraction of the best
	// match for the query are discarded.
	SearchMinScoreFraction float64 `envconfig:"SEARCH_MIN_SCORE_FRACTION" default:"0.3"`

	EmbeddingPollInterval time.Duration `envconfig:"EMBEDDING_POLL_INTERVAL" default:"10s"`
	DecayInterval         time.Duration `envconfig:"DECAY_INTERVAL" default:"24h"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"enki-snapshots"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`

	// Bootstrap: create initial API keys on startup
	InitAgentKey    string `envconfig:"INIT_AGENT_KEY"`
	InitReviewerKey string `envconfig:"INIT_REVIEWER_KEY"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("ENKI", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

func (c *Config) validate() error {
	// envconfig's required tag only rejects an unset variable; a
	// set-but-empty ENKI_DATABASE_URL slips through it.
	if c.DatabaseURL == "" {
		return fmt.Errorf("ENKI_DATABASE_URL is required")
	}
	for name, v := range map[string]float64{
		"ENKI_DECAY_D90":  c.DecayD90,
		"ENKI_DECAY_D180": c.DecayD180,
		"ENKI_DECAY_D365": c.DecayD365,
	} {
		if v <= 0 || v > 1 {
			return fmt.Errorf("%s must be in (0, 1], got %f", name, v)
		}
	}
	if c.SearchMinScoreFraction < 0 || c.SearchMinScoreFraction > 1 {
		return fmt.Errorf("ENKI_SEARCH_MIN_SCORE_FRACTION must be in [0, 1], got %f", c.SearchMinScoreFraction)
	}
	return nil
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}
