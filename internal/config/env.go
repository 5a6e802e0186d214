package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	env "github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// ServerEnv holds the tool server's process environment configuration.
// Warehouse credentials are optional at startup; an executor reports a
// configuration error at call time when its variables are missing.
type ServerEnv struct {
	DatabricksHost        string `env:"DATABRICKS_HOST"`
	DatabricksToken       string `env:"DATABRICKS_TOKEN"`
	DatabricksWarehouseID string `env:"DATABRICKS_SQL_WAREHOUSE_ID"`

	SnowflakeAccount   string `env:"SNOWFLAKE_ACCOUNT"`
	SnowflakeUser      string `env:"SNOWFLAKE_USER"`
	SnowflakePassword  string `env:"SNOWFLAKE_PASSWORD"`
	SnowflakeDatabase  string `env:"SNOWFLAKE_DATABASE"`
	SnowflakeSchema    string `env:"SNOWFLAKE_SCHEMA"`
	SnowflakeWarehouse string `env:"SNOWFLAKE_WAREHOUSE"`

	// PostgresDSN, when set, enables the run_postgres_query tool.
	PostgresDSN string `env:"POSTGRES_DSN"`

	// QueryTimeout bounds a single warehouse query end to end.
	QueryTimeout time.Duration `env:"TOLLGATE_QUERY_TIMEOUT" envDefault:"5m"`

	// PollInterval is the delay between Databricks statement status polls.
	PollInterval time.Duration `env:"TOLLGATE_POLL_INTERVAL" envDefault:"2s"`
}

// ParseServerEnv reads ServerEnv from the process environment.
func ParseServerEnv() (*ServerEnv, error) {
	cfg := &ServerEnv{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: parse environment: %w", err)
	}
	return cfg, nil
}

// NLPEnv holds translation backend settings read from the environment.
// It mirrors the nlp block of [Config] for setups that configure the chat
// client entirely through variables.
type NLPEnv struct {
	GatewayURL string `env:"NLP_GATEWAY_URL"`
	ModelName  string `env:"NLP_MODEL_NAME"`
	APIKey     string `env:"NLP_API_KEY"`
}

// ParseNLPEnv reads NLPEnv from the process environment.
func ParseNLPEnv() (*NLPEnv, error) {
	cfg := &NLPEnv{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: parse environment: %w", err)
	}
	return cfg, nil
}

// ApplyNLPEnv fills empty nlp fields from the environment values. A set
// NLP_GATEWAY_URL selects the gateway provider when none is configured;
// it never redirects an explicitly chosen non-gateway provider.
func (c *Config) ApplyNLPEnv(e *NLPEnv) {
	if c.NLP.Provider == "" && e.GatewayURL != "" {
		c.NLP.Provider = "gateway"
	}
	if c.NLP.Provider == "gateway" && c.NLP.BaseURL == "" {
		c.NLP.BaseURL = e.GatewayURL
	}
	if c.NLP.Model == "" {
		c.NLP.Model = e.ModelName
	}
	if c.NLP.APIKey == "" {
		c.NLP.APIKey = e.APIKey
	}
}

// LoadDotenv loads variables from the given file into the process
// environment. A missing file is not an error, so a plain environment works
// without any .env on disk. Variables already set in the environment win.
func LoadDotenv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: load %q: %w", path, err)
	}
	return nil
}
