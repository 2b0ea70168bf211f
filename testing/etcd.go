package testing

import (
	"fmt"
	"net"
	"net/url"
	"testing"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.etcd.io/etcd/server/v3/embed"
	"go.uber.org/zap"
)

// StartEmbeddedEtcd starts a single-member etcd server in-process for testing.
//
// The member stores its data in a temporary directory and listens on free loopback
// ports. Server and client are shut down automatically on test completion.
//
// Parameters:
//   - t: Testing context for logging and cleanup
//
// Returns:
//   - *embed.Etcd: The embedded etcd server
//   - *clientv3.Client: Connected client (closed automatically on test completion)
//
// Example:
//
//	func TestEtcdBackend(t *testing.T) {
//	    _, cli := electortest.StartEmbeddedEtcd(t)
//	    client := etcd.New(cli)
//	    defer client.Close()
//	}
func StartEmbeddedEtcd(t testing.TB) (*embed.Etcd, *clientv3.Client) {
	t.Helper()

	clientURL := freeURL(t)
	peerURL := freeURL(t)

	cfg := embed.NewConfig()
	cfg.Name = "elector-test"
	cfg.Dir = t.TempDir()
	cfg.Logger = "zap"
	cfg.LogLevel = "error"
	cfg.ListenClientUrls = []url.URL{clientURL}
	cfg.AdvertiseClientUrls = []url.URL{clientURL}
	cfg.ListenPeerUrls = []url.URL{peerURL}
	cfg.AdvertisePeerUrls = []url.URL{peerURL}
	cfg.InitialCluster = cfg.InitialClusterFromName(cfg.Name)

	e, err := embed.StartEtcd(cfg)
	if err != nil {
		t.Fatalf("Failed to start embedded etcd: %v", err)
	}

	select {
	case <-e.Server.ReadyNotify():
	case <-time.After(10 * time.Second):
		e.Close()
		t.Fatal("Embedded etcd not ready within timeout")
	}

	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   []string{clientURL.String()},
		DialTimeout: 5 * time.Second,
		Logger:      zap.NewNop(),
	})
	if err != nil {
		e.Close()
		t.Fatalf("Failed to connect to embedded etcd: %v", err)
	}

	t.Cleanup(func() {
		_ = cli.Close()
		e.Close()
	})

	return e, cli
}

// freeURL reserves a loopback port and returns it as an http URL.
func freeURL(t testing.TB) url.URL {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to reserve port: %v", err)
	}
	addr := l.Addr().String()
	_ = l.Close()

	u, err := url.Parse(fmt.Sprintf("http://%s", addr))
	if err != nil {
		t.Fatalf("Failed to parse URL: %v", err)
	}

	return *u
}
