package config_test

import (
	"slices"
	"strings"
	"testing"

	"github.com/heravelli/tollgate/internal/config"
)

func TestValidate_InvalidLogLevel(t *testing.T) {
	t.Parallel()
	yaml := `
log_level: verbose
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for invalid log_level, got nil")
	}
	if !strings.Contains(err.Error(), "log_level") {
		t.Errorf("error should mention log_level, got: %v", err)
	}
}

func TestValidate_InvalidTransport(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  transport: grpc
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for invalid transport, got nil")
	}
	if !strings.Contains(err.Error(), "server.transport") {
		t.Errorf("error should mention server.transport, got: %v", err)
	}
}

func TestValidate_StreamableHTTPRequiresURL(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  transport: streamable-http
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for streamable-http without url, got nil")
	}
	if !strings.Contains(err.Error(), "server.url") {
		t.Errorf("error should mention server.url, got: %v", err)
	}
}

func TestValidate_StdioRequiresCommand(t *testing.T) {
	t.Parallel()
	// The default command is "tollgate"; blanking it explicitly is an error.
	yaml := `
server:
  transport: stdio
  command: ""
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for stdio without command, got nil")
	}
	if !strings.Contains(err.Error(), "server.command") {
		t.Errorf("error should mention server.command, got: %v", err)
	}
}

func TestValidate_GatewayRequiresBaseURL(t *testing.T) {
	t.Parallel()
	yaml := `
nlp:
  provider: gateway
  model: sqlcoder-7b
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for gateway provider without base_url, got nil")
	}
	if !strings.Contains(err.Error(), "nlp.base_url") {
		t.Errorf("error should mention nlp.base_url, got: %v", err)
	}
}

func TestValidate_ProviderRequiresModel(t *testing.T) {
	t.Parallel()
	yaml := `
nlp:
  provider: ollama
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for provider without model, got nil")
	}
	if !strings.Contains(err.Error(), "nlp.model") {
		t.Errorf("error should mention nlp.model, got: %v", err)
	}
}

func TestValidate_NegativeMaxTokens(t *testing.T) {
	t.Parallel()
	yaml := `
nlp:
  max_tokens: -5
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for negative max_tokens, got nil")
	}
	if !strings.Contains(err.Error(), "max_tokens") {
		t.Errorf("error should mention max_tokens, got: %v", err)
	}
}

func TestValidate_NegativeRetention(t *testing.T) {
	t.Parallel()
	yaml := `
history:
  retention_days: -1
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for negative retention_days, got nil")
	}
	if !strings.Contains(err.Error(), "retention_days") {
		t.Errorf("error should mention retention_days, got: %v", err)
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	t.Parallel()
	yaml := `
log_level: bananas
server:
  transport: carrier-pigeon
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected errors, got nil")
	}
	errStr := err.Error()
	if !strings.Contains(errStr, "log_level") {
		t.Errorf("error should mention log_level, got: %v", err)
	}
	if !strings.Contains(errStr, "server.transport") {
		t.Errorf("error should mention server.transport, got: %v", err)
	}
}

func TestValidNLPProviders(t *testing.T) {
	t.Parallel()
	if len(config.ValidNLPProviders) == 0 {
		t.Fatal("ValidNLPProviders should not be empty")
	}
	for _, want := range []string{"gateway", "openai", "ollama"} {
		if !slices.Contains(config.ValidNLPProviders, want) {
			t.Errorf("ValidNLPProviders should contain %q", want)
		}
	}
}
