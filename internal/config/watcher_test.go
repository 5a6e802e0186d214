package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/heravelli/tollgate/internal/config"
)

const watcherBaseYAML = `
log_level: info
nlp:
  provider: ollama
  model: sqlcoder
`

const watcherDebugYAML = `
log_level: debug
nlp:
  provider: ollama
  model: sqlcoder
`

const watcherBrokenYAML = `
log_level: bananas
`

// watchEvent is one onChange invocation.
type watchEvent struct {
	old, new *config.Config
}

// writeConfigFile writes content to a config file in a fresh temp dir and
// returns its path.
func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tollchat.yaml")
	rewriteConfigFile(t, path, content)
	return path
}

func rewriteConfigFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// startWatcher builds a fast-polling watcher whose change events arrive on
// the returned channel.
func startWatcher(t *testing.T, path string) (*config.Watcher, <-chan watchEvent) {
	t.Helper()
	events := make(chan watchEvent, 4)
	w, err := config.NewWatcher(path, func(old, new *config.Config) {
		events <- watchEvent{old: old, new: new}
	}, config.WithInterval(50*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	t.Cleanup(w.Stop)
	return w, events
}

func TestNewWatcher_LoadsImmediately(t *testing.T) {
	t.Parallel()
	path := writeConfigFile(t, watcherBaseYAML)

	w, _ := startWatcher(t, path)

	cfg := w.Current()
	if cfg == nil {
		t.Fatal("Current() = nil right after NewWatcher")
	}
	if cfg.LogLevel != config.LogInfo {
		t.Errorf("log_level = %q, want %q", cfg.LogLevel, config.LogInfo)
	}
	if cfg.NLP.Model != "sqlcoder" {
		t.Errorf("nlp.model = %q, want %q", cfg.NLP.Model, "sqlcoder")
	}
}

func TestNewWatcher_MissingFile(t *testing.T) {
	t.Parallel()
	if _, err := config.NewWatcher(filepath.Join(t.TempDir(), "absent.yaml"), nil); err == nil {
		t.Fatal("NewWatcher on a missing file succeeded")
	}
}

func TestWatcher_ReloadsOnEdit(t *testing.T) {
	t.Parallel()
	path := writeConfigFile(t, watcherBaseYAML)
	w, events := startWatcher(t, path)

	// Let the first poll land on the unchanged file before editing.
	time.Sleep(100 * time.Millisecond)
	rewriteConfigFile(t, path, watcherDebugYAML)

	var ev watchEvent
	select {
	case ev = <-events:
	case <-time.After(2 * time.Second):
		t.Fatal("no reload event after editing the file")
	}

	if ev.old == nil || ev.new == nil {
		t.Fatalf("event carries a nil config: %+v", ev)
	}
	if ev.old.LogLevel != config.LogInfo {
		t.Errorf("old log_level = %q, want %q", ev.old.LogLevel, config.LogInfo)
	}
	if ev.new.LogLevel != config.LogDebug {
		t.Errorf("new log_level = %q, want %q", ev.new.LogLevel, config.LogDebug)
	}
	if got := w.Current().LogLevel; got != config.LogDebug {
		t.Errorf("Current().LogLevel = %q, want %q", got, config.LogDebug)
	}
}

func TestWatcher_BrokenEditKeepsServing(t *testing.T) {
	t.Parallel()
	path := writeConfigFile(t, watcherBaseYAML)
	w, events := startWatcher(t, path)

	time.Sleep(100 * time.Millisecond)
	rewriteConfigFile(t, path, watcherBrokenYAML)

	select {
	case ev := <-events:
		t.Fatalf("broken config produced a reload event: %+v", ev)
	case <-time.After(400 * time.Millisecond):
	}

	if got := w.Current().LogLevel; got != config.LogInfo {
		t.Errorf("Current().LogLevel = %q, want the pre-edit %q", got, config.LogInfo)
	}
}

func TestWatcher_TouchAloneDoesNotFire(t *testing.T) {
	t.Parallel()
	path := writeConfigFile(t, watcherBaseYAML)
	_, events := startWatcher(t, path)

	time.Sleep(100 * time.Millisecond)
	stamp := time.Now().Add(time.Second)
	if err := os.Chtimes(path, stamp, stamp); err != nil {
		t.Fatalf("touch %s: %v", path, err)
	}

	select {
	case ev := <-events:
		t.Fatalf("mtime-only change produced a reload event: %+v", ev)
	case <-time.After(400 * time.Millisecond):
	}
}

func TestWatcher_StopTwice(t *testing.T) {
	t.Parallel()
	path := writeConfigFile(t, watcherBaseYAML)
	w, _ := startWatcher(t, path)

	w.Stop()
	w.Stop()
}
