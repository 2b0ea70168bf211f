package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/arloliu/elector"
)

func newCampaignCmd(params *cliParams) *cobra.Command {
	var (
		metricsAddr string
		hold        time.Duration
	)

	cmd := &cobra.Command{
		Use:   "campaign",
		Short: "Campaign for the lock key until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			cfg, err := params.loadConfig()
			if err != nil {
				return err
			}

			logger, zl, err := params.newLogger(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			client, closeClient, err := params.newClient(ctx, cfg, logger, zl)
			if err != nil {
				return err
			}
			defer closeClient()

			opts := []elector.Option{elector.WithLogger(logger)}
			if metricsAddr != "" {
				reg := prometheus.NewRegistry()
				reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
				opts = append(opts, elector.WithMetrics(elector.NewPrometheusMetrics(reg, "")))

				stop, err := serveMetrics(metricsAddr, reg)
				if err != nil {
					return err
				}
				defer stop()
			}

			e, err := elector.New(&cfg, client, opts...)
			if err != nil {
				return err
			}

			events, unsubscribe := e.Events()
			printed := make(chan struct{})
			go func() {
				defer close(printed)
				for ev := range events {
					_, _ = fmt.Fprintf(out, "%s %s key=%s session=%s\n",
						time.Now().Format(time.RFC3339), ev.Type, ev.Key, ev.SessionID)
				}
			}()
			defer func() {
				unsubscribe()
				<-printed
			}()

			if err := e.Start(ctx); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(out, "campaigning for %q with session %s\n", cfg.Key, e.SessionID())

			if hold > 0 {
				timer := time.NewTimer(hold)
				select {
				case <-timer.C:
				case <-ctx.Done():
					timer.Stop()
				}
			} else {
				<-ctx.Done()
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()

			if err := e.Resign(shutdownCtx); err != nil {
				return fmt.Errorf("resign: %w", err)
			}
			_, _ = fmt.Fprintln(out, "resigned")

			return nil
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9090)")
	cmd.Flags().DurationVar(&hold, "hold", 0, "resign after this long (0: until interrupted)")

	return cmd
}

// serveMetrics exposes reg on addr/metrics and returns a function that stops the server.
func serveMetrics(addr string, reg *prometheus.Registry) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listener: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		_ = srv.Serve(ln)
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}
