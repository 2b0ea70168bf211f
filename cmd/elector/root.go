package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/hashicorp/consul/api"
	"github.com/hashicorp/go-hclog"
	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/arloliu/elector"
	"github.com/arloliu/elector/backend/consul"
	"github.com/arloliu/elector/backend/etcd"
	"github.com/arloliu/elector/backend/memory"
	"github.com/arloliu/elector/backend/natskv"
)

// cliParams holds the flags shared by every subcommand.
type cliParams struct {
	configPath string
	backend    string
	key        string
	value      string
	ttl        time.Duration
	lockDelay  time.Duration

	// lockDelaySet reports whether --lock-delay was given, so 0 can disable the delay.
	lockDelaySet bool

	natsURL       string
	consulAddr    string
	etcdEndpoints []string
	bucketPrefix  string

	logFormat string
	logLevel  string
}

func newRootCmd() *cobra.Command {
	params := &cliParams{}

	rootCmd := &cobra.Command{
		Use:           "elector",
		Short:         "Session-scoped leader election over a KV coordination service",
		SilenceUsage:  true,
		SilenceErrors: false,

		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			params.lockDelaySet = cmd.Flags().Changed("lock-delay")
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&params.configPath, "config", "c", "", "YAML configuration file")
	flags.StringVar(&params.backend, "backend", "nats", "coordination service: nats, consul, etcd or memory")
	flags.StringVar(&params.key, "key", "", "lock key (overrides config)")
	flags.StringVar(&params.value, "value", "", "value written with the lock (overrides config)")
	flags.DurationVar(&params.ttl, "ttl", 0, "session TTL (overrides config)")
	flags.DurationVar(&params.lockDelay, "lock-delay", 0, "lock-delay (overrides config)")
	flags.StringVar(&params.natsURL, "nats-url", nats.DefaultURL, "NATS server URL")
	flags.StringVar(&params.consulAddr, "consul-addr", "127.0.0.1:8500", "Consul agent address")
	flags.StringSliceVar(&params.etcdEndpoints, "etcd-endpoints", []string{"127.0.0.1:2379"}, "etcd endpoints")
	flags.StringVar(&params.bucketPrefix, "prefix", "elector", "bucket (NATS) or key (etcd) prefix")
	flags.StringVar(&params.logFormat, "log-format", "slog", "logger: slog, zap or hclog")
	flags.StringVar(&params.logLevel, "log-level", "info", "log level: debug, info, warn or error")

	rootCmd.AddCommand(newCampaignCmd(params), newStatusCmd(params))

	return rootCmd
}

// loadConfig reads the config file (if any), applies defaults and flag overrides.
func (p *cliParams) loadConfig() (elector.Config, error) {
	cfg := elector.DefaultConfig()
	if p.configPath != "" {
		loaded, err := elector.LoadConfig(p.configPath)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}

	if p.key != "" {
		cfg.Key = p.key
	}
	if p.value != "" {
		cfg.Value = p.value
	}
	if p.ttl > 0 {
		cfg.Session.TTL = p.ttl
	}
	if p.lockDelaySet {
		cfg.Session.LockDelay = elector.Duration(p.lockDelay)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%w: %w", elector.ErrInvalidConfig, err)
	}

	return cfg, nil
}

// newLogger builds the logger selected by --log-format writing to out.
//
// The zap logger is returned as well so the etcd client can share it.
func (p *cliParams) newLogger(out io.Writer) (elector.Logger, *zap.Logger, error) {
	switch strings.ToLower(p.logFormat) {
	case "slog":
		var level slog.Level
		if err := level.UnmarshalText([]byte(p.logLevel)); err != nil {
			return nil, nil, fmt.Errorf("invalid log level %q: %w", p.logLevel, err)
		}
		l := slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level}))

		return elector.NewSlogLogger(l), zap.NewNop(), nil

	case "zap":
		level, err := zapcore.ParseLevel(p.logLevel)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid log level %q: %w", p.logLevel, err)
		}
		encoder := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
		l := zap.New(zapcore.NewCore(encoder, zapcore.AddSync(out), level))

		return elector.NewZapLogger(l.Sugar()), l, nil

	case "hclog":
		level := hclog.LevelFromString(p.logLevel)
		if level == hclog.NoLevel {
			return nil, nil, fmt.Errorf("invalid log level %q", p.logLevel)
		}
		l := hclog.New(&hclog.LoggerOptions{Name: "elector", Level: level, Output: out})

		return elector.NewHclogLogger(l), zap.NewNop(), nil

	default:
		return nil, nil, fmt.Errorf("unknown log format %q", p.logFormat)
	}
}

// newClient connects to the backend selected by --backend.
//
// The returned function releases the backend and must always be called.
func (p *cliParams) newClient(ctx context.Context, cfg elector.Config, logger elector.Logger, zl *zap.Logger) (elector.Client, func(), error) {
	switch p.backend {
	case "nats":
		nc, err := nats.Connect(p.natsURL, nats.Name("elector"))
		if err != nil {
			return nil, nil, fmt.Errorf("connect to NATS: %w", err)
		}

		client, err := natskv.New(ctx, nc, natskv.WithBucketPrefix(p.bucketPrefix), natskv.WithLogger(logger))
		if err != nil {
			nc.Close()
			return nil, nil, err
		}

		return client, func() {
			client.Close()
			nc.Close()
		}, nil

	case "consul":
		client, err := consul.New(&api.Config{Address: p.consulAddr, Datacenter: cfg.Session.Datacenter}, consul.WithLogger(logger))
		if err != nil {
			return nil, nil, err
		}

		return client, func() {}, nil

	case "etcd":
		cli, err := clientv3.New(clientv3.Config{
			Endpoints:   p.etcdEndpoints,
			DialTimeout: 5 * time.Second,
			Logger:      zl,
			Context:     ctx,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("connect to etcd: %w", err)
		}

		client := etcd.New(cli, etcd.WithPrefix(p.bucketPrefix), etcd.WithLogger(logger))

		return client, func() {
			client.Close()
			_ = cli.Close()
		}, nil

	case "memory":
		store := memory.New()

		return store, store.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown backend %q", p.backend)
	}
}
