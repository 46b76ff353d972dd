package config

import "time"

// ServerConfig holds configuration for the queuesim server.
type ServerConfig struct {
	Addr         string        // Listen address (default ":8080")
	LogLevel     string        // Log level: debug, info, warn, error
	LogFormat    string        // Log format: text, json
	DBPath       string        // SQLite database path ("" disables persistence, ":memory:" for testing)
	TickInterval time.Duration // Period of automatically advancing simulations
	MaxSessions  int           // Live simulations kept in memory at once
}

// DefaultServerConfig returns sensible defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:         ":8080",
		LogLevel:     "info",
		LogFormat:    "text",
		TickInterval: 100 * time.Millisecond,
		MaxSessions:  64,
	}
}
