package testing

import (
	"fmt"
	"net"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const natsReadyTimeout = 10 * time.Second

// StartEmbeddedNATS starts an in-process NATS server with JetStream enabled.
//
// The server listens on a random loopback port and keeps JetStream data under
// t.TempDir(). The server and the returned connection are shut down by t.Cleanup.
//
// Parameters:
//   - t: Testing context for logging and cleanup
//
// Returns:
//   - *server.Server: The embedded NATS server
//   - *nats.Conn: Connected client
//
// Example:
//
//	func TestNATSBackend(t *testing.T) {
//	    _, nc := electortest.StartEmbeddedNATS(t)
//	    client, err := natskv.New(t.Context(), nc)
//	    require.NoError(t, err)
//	}
func StartEmbeddedNATS(t testing.TB) (*server.Server, *nats.Conn) {
	t.Helper()

	ns := startNATSNode(t, natsNodeOptions(t, "", nil))
	t.Cleanup(func() { stopNATSNodes(ns) })

	nc := connectNATS(t, ns.ClientURL())

	return ns, nc
}

// StartEmbeddedNATSCluster starts an in-process JetStream cluster of size nodes.
//
// The call returns once every node is routed to every other node and the
// JetStream meta group has a leader, so replicated KV buckets can be created
// right away. Nodes may be shut down individually to simulate failures. A size
// of 1 or less starts a single standalone server.
//
// Parameters:
//   - t: Testing context for logging and cleanup
//   - size: Number of nodes
//
// Returns:
//   - []*server.Server: Cluster nodes in start order
//   - *nats.Conn: Client connected to the first node, reconnecting to the others
//
// Example:
//
//	servers, nc := electortest.StartEmbeddedNATSCluster(t, 3)
//	client, err := natskv.New(t.Context(), nc, natskv.WithReplicas(3))
func StartEmbeddedNATSCluster(t testing.TB, size int) ([]*server.Server, *nats.Conn) {
	t.Helper()

	// A JetStream meta group expects at least two peers.
	if size <= 1 {
		ns, nc := StartEmbeddedNATS(t)
		return []*server.Server{ns}, nc
	}

	// A clustered JetStream node refuses to start without routes, so every node
	// gets the full route list (itself included) before any of them starts.
	clusterPorts := make([]int, size)
	routes := make([]*url.URL, size)
	for i := range size {
		clusterPorts[i] = freePort(t)
		routes[i] = &url.URL{Scheme: "nats", Host: fmt.Sprintf("127.0.0.1:%d", clusterPorts[i])}
	}

	nodes := make([]*server.Server, 0, size)
	t.Cleanup(func() { stopNATSNodes(nodes...) })

	for i := range size {
		opts := natsNodeOptions(t, fmt.Sprintf("elector-node-%d", i), routes)
		opts.Cluster.Port = clusterPorts[i]
		nodes = append(nodes, startNATSNode(t, opts))
	}

	deadline := time.Now().Add(natsReadyTimeout)
	for !clusterReady(nodes) {
		if time.Now().After(deadline) {
			t.Fatalf("NATS cluster of %d nodes did not form within %v", size, natsReadyTimeout)
		}
		time.Sleep(50 * time.Millisecond)
	}

	urls := make([]string, len(nodes))
	for i, ns := range nodes {
		urls[i] = ns.ClientURL()
	}

	nc := connectNATS(t, urls...)

	return nodes, nc
}

// OpenKV binds to an existing JetStream KV bucket, such as one created by the
// NATS backend, so tests can inspect or tamper with raw records.
//
// Parameters:
//   - t: Testing context
//   - nc: Connection to the server holding the bucket
//   - bucket: Bucket name (e.g. "elector-locks")
//
// Returns:
//   - jetstream.KeyValue: Handle on the bucket
func OpenKV(t testing.TB, nc *nats.Conn, bucket string) jetstream.KeyValue {
	t.Helper()

	js, err := jetstream.New(nc)
	if err != nil {
		t.Fatalf("jetstream: %v", err)
	}

	kv, err := js.KeyValue(t.Context(), bucket)
	if err != nil {
		t.Fatalf("open KV bucket %s: %v", bucket, err)
	}

	return kv
}

// natsNodeOptions builds quiet JetStream-enabled options; a non-empty name makes
// the node a cluster member routed to routes.
func natsNodeOptions(t testing.TB, name string, routes []*url.URL) *server.Options {
	opts := &server.Options{
		Host:      "127.0.0.1",
		Port:      -1,
		JetStream: true,
		StoreDir:  t.TempDir(),
		NoLog:     true,
		NoSigs:    true,
	}

	if name != "" {
		opts.ServerName = name
		opts.Cluster = server.ClusterOpts{
			Name: "elector-test",
			Host: "127.0.0.1",
			Port: -1,
		}
		opts.Routes = routes
	}

	return opts
}

// freePort reserves a loopback port by listening on it briefly.
func freePort(t testing.TB) int {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("reserve port: %v", err)
	}
	defer l.Close()

	return l.Addr().(*net.TCPAddr).Port
}

func startNATSNode(t testing.TB, opts *server.Options) *server.Server {
	t.Helper()

	ns, err := server.NewServer(opts)
	if err != nil {
		t.Fatalf("create NATS server: %v", err)
	}

	go ns.Start()

	if !ns.ReadyForConnections(natsReadyTimeout) {
		ns.Shutdown()
		t.Fatalf("NATS server %s not ready within %v", opts.ServerName, natsReadyTimeout)
	}

	return ns
}

func connectNATS(t testing.TB, urls ...string) *nats.Conn {
	t.Helper()

	nc, err := nats.Connect(
		strings.Join(urls, ","),
		nats.Name("elector-test"),
		nats.Timeout(2*time.Second),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(50*time.Millisecond),
	)
	if err != nil {
		t.Fatalf("connect to NATS: %v", err)
	}

	// Registered after the server cleanup, so it runs first.
	t.Cleanup(nc.Close)

	return nc
}

// clusterReady reports whether every node is routed and follows an elected
// JetStream meta leader. NumRoutes counts pooled connections, so routes alone
// do not prove every peer joined.
func clusterReady(nodes []*server.Server) bool {
	leader := false
	for _, ns := range nodes {
		if ns.NumRoutes() < len(nodes)-1 || !ns.JetStreamIsCurrent() {
			return false
		}
		if ns.JetStreamIsLeader() {
			leader = true
		}
	}

	return leader || len(nodes) == 1
}

func stopNATSNodes(nodes ...*server.Server) {
	for _, ns := range nodes {
		if ns == nil {
			continue
		}
		ns.Shutdown()
		ns.WaitForShutdown()
	}
}
