// Package consul implements types.Client on the Consul HTTP API.
//
// Sessions, lock-delay and the release/delete behaviors are native Consul features,
// so the backend is a thin mapping onto github.com/hashicorp/consul/api. Watches are
// blocking queries on the key: each query waits for the key's modify index to move
// past the last one seen, transport errors are reported on the subscription's error
// channel and the query is retried with jittered backoff, and a rate limiter keeps a
// misbehaving agent from turning the loop into a hot spin.
package consul
