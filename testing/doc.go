// Package testing provides test utilities for the elector library.
//
// This package offers helpers for setting up test environments, particularly
// embedded NATS and etcd servers for the backends, and for asserting on event
// streams. It follows Go's convention of providing testing utilities in a
// dedicated package (similar to net/http/httptest).
//
// Key utilities:
//   - StartEmbeddedNATS: Single NATS server with JetStream
//   - StartEmbeddedNATSCluster: Multi-node JetStream cluster for replicated buckets
//   - OpenKV: Raw access to a bucket written by the NATS backend
//   - StartEmbeddedEtcd: Single-member etcd server
//   - NewRecorder: Collects values from an event channel for assertions
//   - NewTestLogger: Logger writing to t.Log
//
// Example usage:
//
//	import (
//	    "testing"
//	    electortest "github.com/arloliu/elector/testing"
//	)
//
//	func TestMyComponent(t *testing.T) {
//	    _, nc := electortest.StartEmbeddedNATS(t)
//	    client, _ := natskv.New(t.Context(), nc)
//	    // Use client for your tests
//	}
package testing
