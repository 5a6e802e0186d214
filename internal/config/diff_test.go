package config_test

import (
	"testing"

	"github.com/heravelli/tollgate/internal/config"
)

// diffBase returns a fully populated config for diffing against.
func diffBase() *config.Config {
	cfg := config.Default()
	cfg.NLP = config.NLPConfig{
		Provider:  "gateway",
		Model:     "sqlcoder-7b",
		BaseURL:   "http://nlp.internal:8000/v1/completions",
		MaxTokens: 200,
	}
	cfg.Server.Env = map[string]string{"DATABRICKS_HOST": "https://dbc-1.cloud.databricks.com"}
	return cfg
}

func TestDiff_NoChanges(t *testing.T) {
	t.Parallel()
	old := diffBase()
	new := diffBase()

	d := config.Diff(old, new)
	if d.LogLevelChanged || d.NLPChanged || d.ServerChanged || d.HistoryChanged || d.ListenAddrChanged {
		t.Errorf("expected empty diff, got %+v", d)
	}
	if !d.HotReloadable() {
		t.Error("empty diff should be hot reloadable")
	}
}

func TestDiff_LogLevelChanged(t *testing.T) {
	t.Parallel()
	old := diffBase()
	new := diffBase()
	new.LogLevel = config.LogDebug

	d := config.Diff(old, new)
	if !d.LogLevelChanged {
		t.Error("expected LogLevelChanged")
	}
	if d.NewLogLevel != config.LogDebug {
		t.Errorf("NewLogLevel: got %q, want %q", d.NewLogLevel, config.LogDebug)
	}
	if !d.HotReloadable() {
		t.Error("log level change should be hot reloadable")
	}
}

func TestDiff_NLPChanged(t *testing.T) {
	t.Parallel()
	old := diffBase()
	new := diffBase()
	new.NLP.Model = "sqlcoder-70b"

	d := config.Diff(old, new)
	if !d.NLPChanged {
		t.Error("expected NLPChanged")
	}
	if !d.HotReloadable() {
		t.Error("nlp change should be hot reloadable")
	}
}

func TestDiff_ServerURLChanged(t *testing.T) {
	t.Parallel()
	old := diffBase()
	new := diffBase()
	new.Server.Transport = config.TransportStreamableHTTP
	new.Server.URL = "http://localhost:8080/mcp"

	d := config.Diff(old, new)
	if !d.ServerChanged {
		t.Error("expected ServerChanged")
	}
	if d.HotReloadable() {
		t.Error("server change should not be hot reloadable")
	}
}

func TestDiff_ServerEnvChanged(t *testing.T) {
	t.Parallel()
	old := diffBase()
	new := diffBase()
	new.Server.Env = map[string]string{"DATABRICKS_HOST": "https://dbc-2.cloud.databricks.com"}

	d := config.Diff(old, new)
	if !d.ServerChanged {
		t.Error("expected ServerChanged for env map change")
	}
}

func TestDiff_ServerEnvEqualMapsAreNoChange(t *testing.T) {
	t.Parallel()
	old := diffBase()
	new := diffBase()
	// Same contents in a freshly allocated map.
	new.Server.Env = map[string]string{"DATABRICKS_HOST": "https://dbc-1.cloud.databricks.com"}

	d := config.Diff(old, new)
	if d.ServerChanged {
		t.Error("equal env maps should not count as a server change")
	}
}

func TestDiff_HistoryChanged(t *testing.T) {
	t.Parallel()
	old := diffBase()
	new := diffBase()
	new.History.RetentionDays = 90

	d := config.Diff(old, new)
	if !d.HistoryChanged {
		t.Error("expected HistoryChanged")
	}
	if d.HotReloadable() {
		t.Error("history change should not be hot reloadable")
	}
}

func TestDiff_ListenAddrChanged(t *testing.T) {
	t.Parallel()
	old := diffBase()
	new := diffBase()
	new.ListenAddr = ":9999"

	d := config.Diff(old, new)
	if !d.ListenAddrChanged {
		t.Error("expected ListenAddrChanged")
	}
	if d.HotReloadable() {
		t.Error("listen addr change should not be hot reloadable")
	}
}

func TestDiff_MultipleChanges(t *testing.T) {
	t.Parallel()
	old := diffBase()
	new := diffBase()
	new.LogLevel = config.LogWarn
	new.NLP.Provider = "ollama"
	new.History.Path = "elsewhere.db"

	d := config.Diff(old, new)
	if !d.LogLevelChanged || !d.NLPChanged || !d.HistoryChanged {
		t.Errorf("expected log level, nlp and history changes, got %+v", d)
	}
	if d.ServerChanged {
		t.Error("server did not change")
	}
}
