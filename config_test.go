package elector

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/arloliu/elector/internal/logger"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	require.Equal(t, "elector/leader", cfg.Key)
	require.Equal(t, "leader", cfg.Value)
	require.Equal(t, "elector", cfg.Session.Name)
	require.Equal(t, 10*time.Second, cfg.Session.TTL)
	require.Equal(t, 15*time.Second, *cfg.Session.LockDelay)
	require.Empty(t, cfg.Session.Datacenter)
	require.Equal(t, BehaviorRelease, cfg.Session.Behavior)
	require.Equal(t, 4*time.Second, cfg.OperationTimeout)
	require.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	require.Equal(t, 64, cfg.EventBuffer)
	require.NoError(t, cfg.Validate())

	// Every call returns an independent value.
	other := DefaultConfig()
	other.Key = "changed"
	require.Equal(t, "elector/leader", DefaultConfig().Key)
}

func TestSetDefaults(t *testing.T) {
	t.Run("applies defaults to empty config", func(t *testing.T) {
		cfg := Config{}
		SetDefaults(&cfg)

		require.Equal(t, DefaultConfig(), cfg)
	})

	t.Run("preserves custom values", func(t *testing.T) {
		cfg := Config{
			Key:   "billing/leader",
			Value: "node-7",
			Session: SessionConfig{
				TTL:        30 * time.Second,
				LockDelay:  Duration(time.Second),
				Datacenter: "dc2",
			},
			OperationTimeout: 3 * time.Second,
		}
		SetDefaults(&cfg)

		require.Equal(t, "billing/leader", cfg.Key)
		require.Equal(t, "node-7", cfg.Value)
		require.Equal(t, 30*time.Second, cfg.Session.TTL)
		require.Equal(t, time.Second, *cfg.Session.LockDelay)
		require.Equal(t, "dc2", cfg.Session.Datacenter)
		require.Equal(t, 3*time.Second, cfg.OperationTimeout)

		// Unset fields still get defaults.
		require.Equal(t, "elector", cfg.Session.Name)
		require.Equal(t, BehaviorRelease, cfg.Session.Behavior)
		require.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	})

	t.Run("keeps explicit zero lock delay", func(t *testing.T) {
		cfg := Config{
			Key:     "k",
			Session: SessionConfig{TTL: 10 * time.Second, LockDelay: Duration(0)},
		}
		SetDefaults(&cfg)

		require.NotNil(t, cfg.Session.LockDelay)
		require.Equal(t, time.Duration(0), *cfg.Session.LockDelay)
		require.Equal(t, time.Duration(0), cfg.sessionOptions().LockDelay)
		require.NoError(t, cfg.Validate())
	})

	t.Run("does not share the default lock delay", func(t *testing.T) {
		a, b := Config{}, Config{}
		SetDefaults(&a)
		SetDefaults(&b)

		*a.Session.LockDelay = time.Minute
		require.Equal(t, 15*time.Second, *b.Session.LockDelay)
	})
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"empty key", func(c *Config) { c.Key = "" }, false},
		{"zero ttl", func(c *Config) { c.Session.TTL = 0 }, false},
		{"negative lock delay", func(c *Config) { c.Session.LockDelay = Duration(-time.Second) }, false},
		{"zero lock delay", func(c *Config) { c.Session.LockDelay = Duration(0) }, true},
		{"unset lock delay", func(c *Config) { c.Session.LockDelay = nil }, true},
		{"delete behavior", func(c *Config) { c.Session.Behavior = BehaviorDelete }, true},
		{"unknown behavior", func(c *Config) { c.Session.Behavior = "explode" }, false},
		{"zero operation timeout", func(c *Config) { c.OperationTimeout = 0 }, false},
		{"zero shutdown timeout", func(c *Config) { c.ShutdownTimeout = 0 }, false},
		{"negative buffer", func(c *Config) { c.EventBuffer = -1 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.ok {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
			}
		})
	}
}

// warnRecorder collects warning messages.
type warnRecorder struct {
	logger.NopLogger
	warnings []string
}

func (r *warnRecorder) Warn(msg string, _ ...any) {
	r.warnings = append(r.warnings, msg)
}

func TestConfig_ValidateWithWarnings(t *testing.T) {
	t.Run("test timings", func(t *testing.T) {
		cfg := TestConfig()

		// Test timings are below Consul's minimum TTL; warnings must not panic or fail.
		require.NotPanics(t, func() {
			cfg.ValidateWithWarnings(logger.NewTest(t))
		})
		require.NoError(t, cfg.Validate())
	})

	t.Run("defaults are quiet", func(t *testing.T) {
		cfg := DefaultConfig()
		rec := &warnRecorder{}
		cfg.ValidateWithWarnings(rec)
		require.Empty(t, rec.warnings)
	})

	t.Run("slow operation timeout", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.OperationTimeout = cfg.Session.TTL / 2
		rec := &warnRecorder{}
		cfg.ValidateWithWarnings(rec)
		require.Len(t, rec.warnings, 1)
		require.Contains(t, rec.warnings[0], "OperationTimeout")
	})

	t.Run("long lock delay", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Session.LockDelay = Duration(2 * time.Minute)
		rec := &warnRecorder{}
		cfg.ValidateWithWarnings(rec)
		require.Len(t, rec.warnings, 1)
		require.Contains(t, rec.warnings[0], "LockDelay")
	})
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()

	t.Run("yaml with durations", func(t *testing.T) {
		path := filepath.Join(dir, "elector.yaml")
		content := `
key: jobs/leader
value: worker-3
session:
  ttl: 20s
  lockDelay: 2s
  datacenter: dc1
operationTimeout: 4s
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

		cfg, err := LoadConfig(path)
		require.NoError(t, err)
		require.Equal(t, "jobs/leader", cfg.Key)
		require.Equal(t, "worker-3", cfg.Value)
		require.Equal(t, 20*time.Second, cfg.Session.TTL)
		require.Equal(t, 2*time.Second, *cfg.Session.LockDelay)
		require.Equal(t, "dc1", cfg.Session.Datacenter)
		require.Equal(t, 4*time.Second, cfg.OperationTimeout)
		require.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
		require.NoError(t, cfg.Validate())
	})

	t.Run("explicit zero lock delay", func(t *testing.T) {
		path := filepath.Join(dir, "nodelay.yaml")
		require.NoError(t, os.WriteFile(path, []byte("key: jobs/leader\nsession:\n  lockDelay: 0s\n"), 0o600))

		cfg, err := LoadConfig(path)
		require.NoError(t, err)
		require.Equal(t, time.Duration(0), *cfg.Session.LockDelay)
	})

	t.Run("omitted lock delay", func(t *testing.T) {
		path := filepath.Join(dir, "default.yaml")
		require.NoError(t, os.WriteFile(path, []byte("key: jobs/leader\n"), 0o600))

		cfg, err := LoadConfig(path)
		require.NoError(t, err)
		require.Equal(t, 15*time.Second, *cfg.Session.LockDelay)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(dir, "missing.yaml"))
		require.Error(t, err)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		path := filepath.Join(dir, "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("session: [unterminated"), 0o600))

		_, err := LoadConfig(path)
		require.Error(t, err)
	})
}

func TestConfig_YAMLRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Key = "svc/leader"

	data, err := yaml.Marshal(&cfg)
	require.NoError(t, err)
	require.Contains(t, string(data), "lockDelay:")

	var decoded Config
	require.NoError(t, yaml.Unmarshal(data, &decoded))
	require.Equal(t, cfg, decoded)
}
