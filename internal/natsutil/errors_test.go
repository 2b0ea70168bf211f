package natsutil

import (
	"errors"
	"fmt"
	"testing"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/require"
)

func TestIsConnectivityError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"timeout", nats.ErrTimeout, true},
		{"no servers", nats.ErrNoServers, true},
		{"wrapped disconnect", fmt.Errorf("watch: %w", nats.ErrDisconnected), true},
		{"connection closed", nats.ErrConnectionClosed, true},
		{"no stream response", jetstream.ErrNoStreamResponse, true},
		{"refused text", errors.New("dial tcp 127.0.0.1:4222: connect: connection refused"), true},
		{"key not found", jetstream.ErrKeyNotFound, false},
		{"plain", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, IsConnectivityError(tt.err))
		})
	}
}

func TestIsRevisionConflict(t *testing.T) {
	wrongSeq := &jetstream.APIError{Code: 400, ErrorCode: jetstream.JSErrCodeStreamWrongLastSequence}

	require.False(t, IsRevisionConflict(nil))
	require.True(t, IsRevisionConflict(jetstream.ErrKeyExists))
	require.True(t, IsRevisionConflict(fmt.Errorf("update: %w", wrongSeq)))
	require.False(t, IsRevisionConflict(&jetstream.APIError{Code: 404, ErrorCode: jetstream.JSErrCodeStreamNotFound}))
	require.False(t, IsRevisionConflict(jetstream.ErrKeyNotFound))
}
