// Package elector provides session-scoped leader election over a key/value
// coordination service with sessions and lock-delay semantics.
//
// Each candidate owns a session on the coordination service and competes for a
// single lock key. The candidate whose session holds the key is the leader. A
// released or lost lock stays unclaimable for the session's lock-delay, so a
// partitioned former leader has time to notice and stop before anyone else starts.
//
// # Quick Start
//
//	import (
//	    "github.com/arloliu/elector"
//	    "github.com/arloliu/elector/backend/natskv"
//	)
//
//	client, err := natskv.New(ctx, natsConn)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	cfg := elector.DefaultConfig()
//	cfg.Key = "billing/leader"
//
//	e, err := elector.Campaign(ctx, cfg, client)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer e.Resign(context.Background())
//
// # Backends
//
// A backend implements the Client interface: session create/renew/destroy plus
// lock acquire/release and a change watch on a single key.
//
//   - backend/consul: HashiCorp Consul sessions and KV locks
//   - backend/natskv: NATS JetStream key-value buckets with revision CAS
//   - backend/etcd: etcd v3 leases and transactions
//   - backend/memory: in-process store for tests and single-node use
//
// # Architecture
//
// An Elector combines three pieces:
//
//	session manager → renews the session every TTL/2 and recreates it when lost
//	lock key        → turns watch notifications into released/taken/lost/acquired
//	candidate       → acquires after lock-delay and publishes elected/retired
//
// Candidates move through a small state machine:
//
//	Candidate → Elected → Candidate ... → Retiring → Resigned
//
// # Observing the Election
//
// Hooks run synchronously in event order; event channels are fan-out copies:
//
//	hooks := &elector.Hooks{
//	    OnElected: func(ctx context.Context) error { return startLeaderWork(ctx) },
//	    OnRetired: func(ctx context.Context) error { stopLeaderWork(); return nil },
//	}
//
//	e, err := elector.New(&cfg, client, elector.WithHooks(hooks))
//	events, unsubscribe := e.Events()
//	defer unsubscribe()
//
// See the examples/ directory for complete working examples.
package elector
