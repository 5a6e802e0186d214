// Package config provides the configuration schema, loaders, and NLP
// provider registry for the Tollgate tool server and chat client.
package config

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Transport selects how the chat client connects to the tool server.
type Transport string

const (
	// TransportStdio launches the tool server as a subprocess and speaks
	// MCP over its stdin/stdout.
	TransportStdio Transport = "stdio"

	// TransportStreamableHTTP connects to a tool server already listening
	// on an HTTP endpoint.
	TransportStreamableHTTP Transport = "streamable-http"
)

// IsValid reports whether t is a recognised transport.
func (t Transport) IsValid() bool {
	return t == TransportStdio || t == TransportStreamableHTTP
}

// Config is the root configuration structure for the chat client.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// ListenAddr is the TCP address the chat web frontend listens on
	// (e.g., ":8090"). Only used by the serve command.
	ListenAddr string `yaml:"listen_addr"`

	Server  ServerConfig  `yaml:"server"`
	NLP     NLPConfig     `yaml:"nlp"`
	History HistoryConfig `yaml:"history"`
}

// ServerConfig describes how to reach the tool server.
type ServerConfig struct {
	// Transport specifies the connection mechanism.
	Transport Transport `yaml:"transport"`

	// Command is the executable (with optional arguments) launched when
	// Transport is "stdio". Ignored for streamable-http transport.
	Command string `yaml:"command"`

	// URL is the tool server endpoint used when Transport is
	// "streamable-http" (e.g., "http://localhost:8080/mcp"). Ignored for
	// stdio transport.
	URL string `yaml:"url"`

	// Token is a static Bearer token sent in the Authorization header of
	// every streamable-http request. Ignored for stdio transport.
	Token string `yaml:"token"`

	// Env holds additional environment variables injected into the
	// subprocess when Transport is "stdio". May be nil.
	Env map[string]string `yaml:"env"`
}

// NLPConfig selects and configures the natural language to SQL backend.
type NLPConfig struct {
	// Provider selects the translation backend. "gateway" posts to a plain
	// completion endpoint, "openai" uses the OpenAI API, and the remaining
	// names ("anthropic", "ollama", ...) go through any-llm-go. Leave empty
	// to disable translation.
	Provider string `yaml:"provider"`

	// Model is the model name passed to the backend.
	Model string `yaml:"model"`

	// BaseURL overrides the backend's default endpoint. Required for the
	// gateway provider, where it is the full completion route.
	BaseURL string `yaml:"base_url"`

	// APIKey authenticates against the backend if it needs one.
	APIKey string `yaml:"api_key"`

	// MaxTokens caps the completion length.
	MaxTokens int `yaml:"max_tokens"`
}

// HistoryConfig configures the chat transcript store.
type HistoryConfig struct {
	// Path is the SQLite database file. An empty path disables
	// persistence; transcripts then live only in memory.
	Path string `yaml:"path"`

	// RetentionDays prunes stored turns older than this many days.
	// Zero keeps everything.
	RetentionDays int `yaml:"retention_days"`
}

// Default returns the configuration used when no config file is present.
// Loading a file overrides only the fields it sets.
func Default() *Config {
	return &Config{
		LogLevel:   LogInfo,
		ListenAddr: ":8090",
		Server: ServerConfig{
			Transport: TransportStdio,
			Command:   "tollgate",
		},
		NLP: NLPConfig{
			MaxTokens: 200,
		},
		History: HistoryConfig{
			Path: "tollchat.db",
		},
	}
}
