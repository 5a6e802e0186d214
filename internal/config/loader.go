package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidNLPProviders lists the provider names the registry knows how to
// build. Used by [Validate] to warn about unrecognised names.
var ValidNLPProviders = []string{
	"gateway", "openai", "anthropic", "gemini", "ollama", "deepseek",
	"mistral", "groq", "llamacpp", "llamafile",
}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r on top of [Default] and
// validates the result. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cfg for missing or contradictory values. Failures are
// collected and returned as a single joined error.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.LogLevel != "" && !cfg.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("log_level %q is invalid; valid values: debug, info, warn, error", cfg.LogLevel))
	}

	// Server connection
	if cfg.Server.Transport != "" && !cfg.Server.Transport.IsValid() {
		errs = append(errs, fmt.Errorf("server.transport %q is invalid; valid values: stdio, streamable-http", cfg.Server.Transport))
	}
	if cfg.Server.Transport == TransportStdio && cfg.Server.Command == "" {
		errs = append(errs, errors.New("server.command is required when transport is stdio"))
	}
	if cfg.Server.Transport == TransportStreamableHTTP && cfg.Server.URL == "" {
		errs = append(errs, errors.New("server.url is required when transport is streamable-http"))
	}

	// NLP backend
	validateNLPProviderName(cfg.NLP.Provider)
	if cfg.NLP.Provider == "" {
		slog.Warn("no NLP provider configured; natural language requests cannot be translated to SQL")
	}
	if cfg.NLP.Provider != "" && cfg.NLP.Model == "" {
		errs = append(errs, errors.New("nlp.model is required when nlp.provider is set"))
	}
	if cfg.NLP.Provider == "gateway" && cfg.NLP.BaseURL == "" {
		errs = append(errs, errors.New("nlp.base_url is required when nlp.provider is gateway"))
	}
	if cfg.NLP.MaxTokens < 0 {
		errs = append(errs, fmt.Errorf("nlp.max_tokens %d must not be negative", cfg.NLP.MaxTokens))
	}

	// History store
	if cfg.History.RetentionDays < 0 {
		errs = append(errs, fmt.Errorf("history.retention_days %d must not be negative", cfg.History.RetentionDays))
	}
	if cfg.History.Path == "" {
		slog.Warn("history.path is empty; chat transcripts will not be persisted")
	}

	return errors.Join(errs...)
}

// validateNLPProviderName logs a warning if name is non-empty and not found
// in [ValidNLPProviders].
func validateNLPProviderName(name string) {
	if name == "" {
		return
	}
	if slices.Contains(ValidNLPProviders, name) {
		return
	}
	slog.Warn("unknown NLP provider name; may be a typo",
		"name", name,
		"known", ValidNLPProviders,
	)
}
