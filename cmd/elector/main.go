// Command elector campaigns for leadership of a key on a coordination service.
//
// Usage:
//
//	elector campaign --backend nats --nats-url nats://127.0.0.1:4222 --key jobs/leader
//	elector status --backend consul --consul-addr 127.0.0.1:8500 --key jobs/leader
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
