package config

import "maps"

// ConfigDiff describes what changed between two configs. The chat client
// applies log level and NLP changes live; server and history changes need
// a restart because connections and open stores hang off them.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// NLPChanged is true when any field of the nlp block changed. The
	// translator can be rebuilt without dropping the server connection.
	NLPChanged bool

	// ServerChanged is true when the tool server connection settings
	// changed. Applying this requires a reconnect.
	ServerChanged bool

	// HistoryChanged is true when the transcript store settings changed.
	HistoryChanged bool

	// ListenAddrChanged is true when the web frontend bind address changed.
	ListenAddrChanged bool
}

// HotReloadable reports whether every change in d can be applied without
// restarting.
func (d ConfigDiff) HotReloadable() bool {
	return !d.ServerChanged && !d.HistoryChanged && !d.ListenAddrChanged
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.LogLevel != new.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.LogLevel
	}

	if old.NLP != new.NLP {
		d.NLPChanged = true
	}

	if serverChanged(old.Server, new.Server) {
		d.ServerChanged = true
	}

	if old.History != new.History {
		d.HistoryChanged = true
	}

	if old.ListenAddr != new.ListenAddr {
		d.ListenAddrChanged = true
	}

	return d
}

// serverChanged compares two server blocks field by field; ServerConfig is
// not comparable with == because of the Env map.
func serverChanged(old, new ServerConfig) bool {
	if old.Transport != new.Transport ||
		old.Command != new.Command ||
		old.URL != new.URL ||
		old.Token != new.Token {
		return true
	}
	return !maps.Equal(old.Env, new.Env)
}
