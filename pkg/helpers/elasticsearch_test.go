package helpers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeES struct {
	mu       sync.Mutex
	exists   int
	create   int
	createTx string
	calls    []string
	body     string
}

func (f *fakeES) start(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		defer f.mu.Unlock()
		f.calls = append(f.calls, r.Method+" "+r.URL.Path)
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		switch r.Method {
		case http.MethodHead:
			w.WriteHeader(f.exists)
		case http.MethodPut:
			f.body = string(b)
			w.WriteHeader(f.create)
			_, _ = w.Write([]byte(f.createTx))
		}
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestEnsureIndex(t *testing.T) {
	const mapping = `{"mappings":{"properties":{"email":{"type":"keyword"}}}}`

	t.Run("creates missing index", func(t *testing.T) {
		f := &fakeES{exists: http.StatusNotFound, create: http.StatusOK, createTx: `{"acknowledged":true}`}
		es, err := NewESClient([]string{f.start(t)}, "", "")
		require.NoError(t, err)

		created, err := EnsureIndex(context.Background(), es, "login_log", mapping)
		require.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, []string{"HEAD /login_log", "PUT /login_log"}, f.calls)
		assert.JSONEq(t, mapping, f.body)
	})

	t.Run("leaves existing index", func(t *testing.T) {
		f := &fakeES{exists: http.StatusOK}
		es, err := NewESClient([]string{f.start(t)}, "", "")
		require.NoError(t, err)

		created, err := EnsureIndex(context.Background(), es, "login_log", mapping)
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, []string{"HEAD /login_log"}, f.calls)
	})

	t.Run("lost race is fine", func(t *testing.T) {
		f := &fakeES{exists: http.StatusNotFound, create: http.StatusBadRequest,
			createTx: `{"error":{"type":"resource_already_exists_exception"},"status":400}`}
		es, err := NewESClient([]string{f.start(t)}, "", "")
		require.NoError(t, err)

		created, err := EnsureIndex(context.Background(), es, "login_log", mapping)
		require.NoError(t, err)
		assert.False(t, created)
	})

	t.Run("bad mapping", func(t *testing.T) {
		f := &fakeES{exists: http.StatusNotFound, create: http.StatusBadRequest,
			createTx: `{"error":{"type":"mapper_parsing_exception"},"status":400}`}
		es, err := NewESClient([]string{f.start(t)}, "", "")
		require.NoError(t, err)

		_, err = EnsureIndex(context.Background(), es, "login_log", mapping)
		assert.Error(t, err)
	})
}
