package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds validated environment configuration for the game host.
type Config struct {
	// Server
	Port            string
	GoEnv           string
	LogLevel        string
	DevelopmentMode bool
	AllowedOrigins  string

	// Room runtime
	TickRate          int           // Hz, 20-60
	SnapshotRate      int           // Hz
	MaxPlayersPerRoom int
	MaxRooms          int
	RoomIdleTimeout   time.Duration
	MaxSequenceDrift  uint64
	DeterministicRNG  bool
	CommandTimeout    time.Duration
	UndoJournalSize   int

	// Redis (optional, cross-instance fan-out)
	RedisEnabled  bool
	RedisAddr     string
	RedisPassword string

	// Rate limits (ulule/limiter formatted, e.g. "100-M")
	RateLimitWsIP     string
	RateLimitWsPlayer string
}

// Defaults for the room runtime knobs.
const (
	DefaultTickRate          = 30
	DefaultSnapshotRate      = 10
	DefaultMaxPlayersPerRoom = 8
	DefaultMaxRooms          = 100
	DefaultRoomIdleTimeout   = 30 * time.Minute
	DefaultMaxSequenceDrift  = 100
	DefaultCommandTimeout    = 5 * time.Millisecond
	DefaultUndoJournalSize   = 64
)

// TickInterval returns the fixed timestep derived from TickRate.
func (c *Config) TickInterval() time.Duration {
	return time.Second / time.Duration(c.TickRate)
}

// SnapshotInterval returns the wall-time spacing of full snapshots.
func (c *Config) SnapshotInterval() time.Duration {
	return time.Second / time.Duration(c.SnapshotRate)
}

// ValidateEnv validates all environment variables and returns a Config.
// Returns an error listing every invalid or missing variable.
func ValidateEnv() (*Config, error) {
	cfg := &Config{}
	var errs []string

	// Required: PORT (valid port number)
	cfg.Port = os.Getenv("PORT")
	if cfg.Port == "" {
		errs = append(errs, "PORT is required")
	} else {
		port, err := strconv.Atoi(cfg.Port)
		if err != nil || port < 1 || port > 65535 {
			errs = append(errs, fmt.Sprintf("PORT must be a valid port number between 1 and 65535 (got '%s')", cfg.Port))
		}
	}

	// TICK_RATE: permitted 20-60 Hz
	cfg.TickRate = intEnvOrDefault("TICK_RATE", DefaultTickRate, &errs)
	if cfg.TickRate < 20 || cfg.TickRate > 60 {
		errs = append(errs, fmt.Sprintf("TICK_RATE must be between 20 and 60 Hz (got %d)", cfg.TickRate))
	}

	cfg.SnapshotRate = intEnvOrDefault("SNAPSHOT_RATE", DefaultSnapshotRate, &errs)
	if cfg.SnapshotRate < 1 || cfg.SnapshotRate > cfg.TickRate {
		errs = append(errs, fmt.Sprintf("SNAPSHOT_RATE must be between 1 and TICK_RATE (got %d)", cfg.SnapshotRate))
	}

	cfg.MaxPlayersPerRoom = intEnvOrDefault("MAX_PLAYERS_PER_ROOM", DefaultMaxPlayersPerRoom, &errs)
	if cfg.MaxPlayersPerRoom < 1 {
		errs = append(errs, "MAX_PLAYERS_PER_ROOM must be at least 1")
	}

	cfg.MaxRooms = intEnvOrDefault("MAX_ROOMS", DefaultMaxRooms, &errs)
	if cfg.MaxRooms < 1 {
		errs = append(errs, "MAX_ROOMS must be at least 1")
	}

	idleMs := intEnvOrDefault("ROOM_IDLE_TIMEOUT_MS", int(DefaultRoomIdleTimeout/time.Millisecond), &errs)
	cfg.RoomIdleTimeout = time.Duration(idleMs) * time.Millisecond

	drift := intEnvOrDefault("MAX_SEQUENCE_DRIFT", DefaultMaxSequenceDrift, &errs)
	if drift < 0 {
		errs = append(errs, "MAX_SEQUENCE_DRIFT must not be negative")
		drift = DefaultMaxSequenceDrift
	}
	cfg.MaxSequenceDrift = uint64(drift)

	cfg.DeterministicRNG = boolEnvOrDefault("DETERMINISTIC_RNG", true)

	timeoutMs := intEnvOrDefault("COMMAND_TIMEOUT_MS", int(DefaultCommandTimeout/time.Millisecond), &errs)
	cfg.CommandTimeout = time.Duration(timeoutMs) * time.Millisecond

	cfg.UndoJournalSize = intEnvOrDefault("UNDO_JOURNAL_SIZE", DefaultUndoJournalSize, &errs)
	if cfg.UndoJournalSize < 1 {
		errs = append(errs, "UNDO_JOURNAL_SIZE must be at least 1")
	}

	// Conditional: REDIS_ADDR (required if REDIS_ENABLED=true)
	cfg.RedisEnabled = os.Getenv("REDIS_ENABLED") == "true"
	if cfg.RedisEnabled {
		cfg.RedisAddr = os.Getenv("REDIS_ADDR")
		if cfg.RedisAddr == "" {
			cfg.RedisAddr = "localhost:6379"
			slog.Warn("REDIS_ADDR not set, using default", "addr", cfg.RedisAddr)
		} else if !isValidHostPort(cfg.RedisAddr) {
			errs = append(errs, fmt.Sprintf("REDIS_ADDR must be in format 'host:port' (got '%s')", cfg.RedisAddr))
		}
		cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	}

	// Optional: GO_ENV (defaults to "production")
	cfg.GoEnv = os.Getenv("GO_ENV")
	if cfg.GoEnv == "" {
		cfg.GoEnv = "production"
	}

	// Optional: LOG_LEVEL (defaults to "info")
	cfg.LogLevel = os.Getenv("LOG_LEVEL")
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	cfg.DevelopmentMode = os.Getenv("DEVELOPMENT_MODE") == "true"
	cfg.AllowedOrigins = os.Getenv("ALLOWED_ORIGINS")

	// Rate limits (defaults: M = minute)
	cfg.RateLimitWsIP = getEnvOrDefault("RATE_LIMIT_WS_IP", "100-M")
	cfg.RateLimitWsPlayer = getEnvOrDefault("RATE_LIMIT_WS_PLAYER", "600-M")

	if len(errs) > 0 {
		return nil, fmt.Errorf("environment validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	logValidatedConfig(cfg)

	return cfg, nil
}

// isValidHostPort checks if a string is in the format "host:port"
func isValidHostPort(addr string) bool {
	parts := strings.Split(addr, ":")
	if len(parts) != 2 {
		return false
	}

	port, err := strconv.Atoi(parts[1])
	if err != nil || port < 1 || port > 65535 {
		return false
	}

	return parts[0] != ""
}

// logValidatedConfig logs the validated configuration
func logValidatedConfig(cfg *Config) {
	slog.Info("✅ Environment configuration validated successfully")
	slog.Info("Configuration",
		"port", cfg.Port,
		"tick_rate", cfg.TickRate,
		"snapshot_rate", cfg.SnapshotRate,
		"max_players_per_room", cfg.MaxPlayersPerRoom,
		"max_rooms", cfg.MaxRooms,
		"room_idle_timeout", cfg.RoomIdleTimeout,
		"deterministic_rng", cfg.DeterministicRNG,
		"redis_enabled", cfg.RedisEnabled,
		"go_env", cfg.GoEnv,
		"development_mode", cfg.DevelopmentMode,
	)
}

// getEnvOrDefault returns the value of the environment variable or a default value if not set
func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func intEnvOrDefault(key string, defaultValue int, errs *[]string) int {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s must be an integer (got '%s')", key, value))
		return defaultValue
	}
	return n
}

func boolEnvOrDefault(key string, defaultValue bool) bool {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return defaultValue
	}
	return value == "true"
}
