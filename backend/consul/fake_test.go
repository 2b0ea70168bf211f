package consul

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hashicorp/consul/api"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/elector/backend/memory"
	"github.com/arloliu/elector/types"
)

// fakeConsul serves the subset of the Consul HTTP API the backend uses,
// keeping state in a memory store that follows Consul's lock semantics.
type fakeConsul struct {
	store  *memory.Store
	server *httptest.Server

	// failGets makes the next n KV reads answer 500.
	failGets atomic.Int32
}

func newFakeConsul(t *testing.T) *fakeConsul {
	t.Helper()

	f := &fakeConsul{store: memory.New(memory.WithReapInterval(10 * time.Millisecond))}
	t.Cleanup(f.store.Close)

	mux := http.NewServeMux()
	mux.HandleFunc("PUT /v1/session/create", f.sessionCreate)
	mux.HandleFunc("PUT /v1/session/renew/{id}", f.sessionRenew)
	mux.HandleFunc("PUT /v1/session/destroy/{id}", f.sessionDestroy)
	mux.HandleFunc("GET /v1/kv/{key...}", f.kvGet)
	mux.HandleFunc("PUT /v1/kv/{key...}", f.kvPut)

	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)

	return f
}

func (f *fakeConsul) client(t *testing.T, opts ...Option) *Client {
	t.Helper()

	c, err := New(&api.Config{Address: f.server.Listener.Addr().String()}, opts...)
	require.NoError(t, err)

	return c
}

func (f *fakeConsul) sessionCreate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name      string
		TTL       string
		LockDelay string
		Behavior  string
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	opts := types.SessionOptions{Name: body.Name, Behavior: body.Behavior}
	if body.TTL != "" {
		opts.TTL, _ = time.ParseDuration(body.TTL)
	}
	if body.LockDelay != "" {
		opts.LockDelay, _ = time.ParseDuration(body.LockDelay)
	}

	id, err := f.store.SessionCreate(r.Context(), opts)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]string{"ID": id})
}

func (f *fakeConsul) sessionRenew(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := f.store.SessionRenew(r.Context(), id, ""); err != nil {
		http.Error(w, "Session id '"+id+"' not found", http.StatusNotFound)
		return
	}

	writeJSON(w, []map[string]string{{"ID": id}})
}

func (f *fakeConsul) sessionDestroy(w http.ResponseWriter, r *http.Request) {
	if err := f.store.SessionDestroy(r.Context(), r.PathValue("id"), ""); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, true)
}

func (f *fakeConsul) kvGet(w http.ResponseWriter, r *http.Request) {
	if f.failGets.Load() > 0 {
		f.failGets.Add(-1)
		http.Error(w, "rpc error: no leader", http.StatusInternalServerError)
		return
	}

	key := r.PathValue("key")
	waitIndex, _ := strconv.ParseUint(r.URL.Query().Get("index"), 10, 64)
	waitTime, _ := time.ParseDuration(r.URL.Query().Get("wait"))
	deadline := time.Now().Add(waitTime)

	for {
		pair, err := f.store.KVGet(r.Context(), key)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		// Absent keys report index 1; present keys sit strictly above it.
		index := uint64(1)
		if pair != nil {
			index = pair.ModifyIndex + 1
		}

		if waitIndex == 0 || index != waitIndex || !time.Now().Before(deadline) {
			w.Header().Set("X-Consul-Index", strconv.FormatUint(index, 10))
			w.Header().Set("X-Consul-LastContact", "0")
			w.Header().Set("X-Consul-KnownLeader", "true")

			if pair == nil {
				w.WriteHeader(http.StatusNotFound)
				return
			}

			writeJSON(w, []api.KVPair{{
				Key:         pair.Key,
				Value:       pair.Value,
				Session:     pair.Session,
				ModifyIndex: pair.ModifyIndex,
			}})

			return
		}

		select {
		case <-r.Context().Done():
			return
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func (f *fakeConsul) kvPut(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	value, _ := io.ReadAll(r.Body)
	query := r.URL.Query()

	var (
		ok  bool
		err error
	)

	switch {
	case query.Has("acquire"):
		ok, err = f.store.KVAcquire(r.Context(), key, value, query.Get("acquire"))
	case query.Has("release"):
		ok, err = f.store.KVRelease(r.Context(), key, value, query.Get("release"))
	default:
		http.Error(w, "unsupported", http.StatusBadRequest)
		return
	}

	if errors.Is(err, types.ErrSessionNotFound) {
		http.Error(w, "invalid session", http.StatusInternalServerError)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, ok)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
