package elector

import (
	"fmt"
	"os"
	"time"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// Session behaviors understood by backends that support them.
const (
	// BehaviorRelease releases locks held by an invalidated session.
	BehaviorRelease = "release"

	// BehaviorDelete deletes keys locked by an invalidated session.
	BehaviorDelete = "delete"
)

// SessionConfig configures the session every lock is scoped to.
type SessionConfig struct {
	// Name is a human readable session name shown by the coordination service.
	Name string `yaml:"name"`

	// TTL is the session time-to-live. The session is renewed every TTL/2.
	//
	// A crashed leader keeps the lock for up to TTL (Consul may wait up to 2x TTL)
	// plus LockDelay before another candidate can take over.
	TTL time.Duration `yaml:"ttl"`

	// LockDelay is how long a candidate waits after observing a release before trying
	// to acquire. Backends also enforce it after a session is invalidated.
	//
	// Nil selects the default; an explicit zero disables the delay.
	LockDelay *time.Duration `yaml:"lockDelay"`

	// Datacenter scopes session calls (Consul only, optional).
	Datacenter string `yaml:"datacenter"`

	// Behavior is "release" (default) or "delete".
	Behavior string `yaml:"behavior"`
}

// Config is the configuration for an Elector.
//
// All duration fields accept standard Go duration strings like "10s", "500ms".
// Zero values are replaced by DefaultConfig() values: an explicit value always wins.
type Config struct {
	// Key is the name of the lock key candidates compete for.
	Key string `yaml:"key"`

	// Value is the payload written to the key with every acquire and release,
	// typically an identifier of the candidate.
	Value string `yaml:"value"`

	// Session configures the candidate's session.
	Session SessionConfig `yaml:"session"`

	// OperationTimeout bounds each background call to the coordination service
	// (renewals and delayed acquire attempts).
	OperationTimeout time.Duration `yaml:"operationTimeout"`

	// ShutdownTimeout bounds Resign when the caller's context has no deadline.
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`

	// EventBuffer is the channel capacity of Events() and LockEvents() subscriptions.
	EventBuffer int `yaml:"eventBuffer"`
}

// DefaultConfig returns a Config with sensible defaults.
//
// Returns:
//   - Config: Configuration with default values
func DefaultConfig() Config {
	return Config{
		Key:   "elector/leader",
		Value: "leader",
		Session: SessionConfig{
			Name:      "elector",
			TTL:       10 * time.Second,
			LockDelay: Duration(15 * time.Second),
			Behavior:  BehaviorRelease,
		},
		OperationTimeout: 4 * time.Second,
		ShutdownTimeout:  10 * time.Second,
		EventBuffer:      64,
	}
}

// SetDefaults fills in missing configuration values with production defaults.
//
// Parameters:
//   - cfg: Config to apply defaults to (modified in place)
func SetDefaults(cfg *Config) {
	// Merge only fills zero-valued fields, it never overrides explicit ones.
	// Pointers are compared without dereferencing so a set zero LockDelay survives.
	_ = mergo.Merge(cfg, DefaultConfig(), mergo.WithoutDereference)
}

// Duration returns a pointer to d, for optional duration fields such as
// SessionConfig.LockDelay.
//
// Example:
//
//	cfg.Session.LockDelay = elector.Duration(0) // no lock-delay
func Duration(d time.Duration) *time.Duration {
	return &d
}

// lockDelay returns the configured delay, zero when unset.
func (s *SessionConfig) lockDelay() time.Duration {
	if s.LockDelay == nil {
		return 0
	}

	return *s.LockDelay
}

// LoadConfig reads a YAML configuration file and applies defaults.
//
// Parameters:
//   - path: Path to the YAML file
//
// Returns:
//   - Config: Loaded configuration with defaults applied
//   - error: Read or parse error
//
// Example:
//
//	# elector.yaml
//	key: billing/leader
//	value: billing-7f9c
//	session:
//	  ttl: 15s
//	  lockDelay: 5s
//
//	cfg, err := elector.LoadConfig("elector.yaml")
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	SetDefaults(&cfg)

	return cfg, nil
}

// Validate checks configuration constraints and returns error for invalid values.
//
// Hard Validation Rules:
//   - Key must not be empty
//   - Session.TTL > 0
//   - Session.LockDelay >= 0
//   - Session.Behavior is "release" or "delete"
//   - OperationTimeout > 0
//   - ShutdownTimeout > 0
//   - EventBuffer >= 0
//
// Returns:
//   - error: Validation error with clear explanation, nil if valid
func (cfg *Config) Validate() error {
	if cfg.Key == "" {
		return fmt.Errorf("key must not be empty")
	}

	if cfg.Session.TTL <= 0 {
		return fmt.Errorf("session TTL must be > 0, got %v", cfg.Session.TTL)
	}

	if d := cfg.Session.lockDelay(); d < 0 {
		return fmt.Errorf("session LockDelay must be >= 0, got %v", d)
	}

	switch cfg.Session.Behavior {
	case BehaviorRelease, BehaviorDelete:
	default:
		return fmt.Errorf("session Behavior must be %q or %q, got %q",
			BehaviorRelease, BehaviorDelete, cfg.Session.Behavior)
	}

	if cfg.OperationTimeout <= 0 {
		return fmt.Errorf("OperationTimeout must be > 0, got %v", cfg.OperationTimeout)
	}

	if cfg.ShutdownTimeout <= 0 {
		return fmt.Errorf("ShutdownTimeout must be > 0, got %v", cfg.ShutdownTimeout)
	}

	if cfg.EventBuffer < 0 {
		return fmt.Errorf("EventBuffer must be >= 0, got %d", cfg.EventBuffer)
	}

	return nil
}

// ValidateWithWarnings logs warnings for values that are valid but unusual.
//
// This is called after Validate() in New() to provide operator guidance.
//
// Parameters:
//   - logger: Logger instance for warning output
func (cfg *Config) ValidateWithWarnings(logger Logger) {
	// Consul rejects session TTLs outside [10s, 24h].
	if cfg.Session.TTL < 10*time.Second || cfg.Session.TTL > 24*time.Hour {
		logger.Warn(
			"session TTL is outside the range Consul accepts",
			"ttl", cfg.Session.TTL,
			"recommended", "10s to 24h",
		)
	}

	// Consul caps lock-delay at 60s.
	if cfg.Session.lockDelay() > 60*time.Second {
		logger.Warn(
			"session LockDelay exceeds the maximum Consul enforces",
			"lockDelay", cfg.Session.lockDelay(),
			"max", 60*time.Second,
		)
	}

	if cfg.OperationTimeout >= cfg.Session.TTL/2 {
		logger.Warn(
			"OperationTimeout is not shorter than the renewal interval, a slow renewal can overlap the next tick",
			"operationTimeout", cfg.OperationTimeout,
			"renewInterval", cfg.Session.TTL/2,
		)
	}
}

// TestConfig returns a configuration optimized for fast test execution.
//
// Timings are far below what a real Consul cluster accepts. Use DefaultConfig()
// for production deployments.
//
// Returns:
//   - Config: Configuration with fast timings for tests
//
// Example:
//
//	cfg := elector.TestConfig()
//	cfg.Key = "test/" + t.Name()
//	e, err := elector.Campaign(ctx, cfg, memory.New())
func TestConfig() Config {
	cfg := DefaultConfig()

	cfg.Session.TTL = 2 * time.Second
	cfg.Session.LockDelay = Duration(100 * time.Millisecond)
	cfg.OperationTimeout = 500 * time.Millisecond
	cfg.ShutdownTimeout = 5 * time.Second

	return cfg
}

func (cfg *Config) sessionOptions() SessionOptions {
	return SessionOptions{
		Name:       cfg.Session.Name,
		TTL:        cfg.Session.TTL,
		LockDelay:  cfg.Session.lockDelay(),
		Datacenter: cfg.Session.Datacenter,
		Behavior:   cfg.Session.Behavior,
	}
}
