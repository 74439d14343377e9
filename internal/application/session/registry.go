package session

import (
	"context"
	"sync"
	"time"
)

// Factory builds the session client for a device.
type Factory func(deviceID string) *Client

// Registry holds one Client per browser device.
type Registry struct {
	mu      sync.Mutex
	clients map[string]*entry
	factory Factory
}

// entry is a client plus the outcome of its one Init. ready closes once Init
// returns; err is written before that and read only after.
type entry struct {
	c     *Client
	ready chan struct{}
	err   error
}

func (e *entry) initialized() bool {
	select {
	case <-e.ready:
		return e.err == nil
	default:
		return false
	}
}

func NewRegistry(factory Factory) *Registry {
	return &Registry{clients: make(map[string]*entry), factory: factory}
}

// Get returns the device's client, creating and initializing it on first use.
// Concurrent callers for the same device wait for that first Init and share
// its result.
func (r *Registry) Get(ctx context.Context, deviceID string) (*Client, error) {
	r.mu.Lock()
	e, ok := r.clients[deviceID]
	if !ok {
		e = &entry{c: r.factory(deviceID), ready: make(chan struct{})}
		r.clients[deviceID] = e
	}
	r.mu.Unlock()

	if !ok {
		e.err = e.c.Init(ctx)
		if e.err != nil {
			r.mu.Lock()
			if r.clients[deviceID] == e {
				delete(r.clients, deviceID)
			}
			r.mu.Unlock()
		}
		close(e.ready)
		if e.err != nil {
			e.c.Close()
			return nil, e.err
		}
		return e.c, nil
	}

	select {
	case <-e.ready:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if e.err != nil {
		return nil, e.err
	}
	return e.c, nil
}

// Lookup returns the device's initialized client without creating one.
func (r *Registry) Lookup(deviceID string) (*Client, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.clients[deviceID]
	if !ok || !e.initialized() {
		return nil, false
	}
	return e.c, true
}

func (r *Registry) remove(deviceID string, c *Client) {
	r.mu.Lock()
	if e, ok := r.clients[deviceID]; ok && e.c == c {
		delete(r.clients, deviceID)
	}
	r.mu.Unlock()
	c.Close()
}

// Teardown logs the device out and forgets its client.
func (r *Registry) Teardown(ctx context.Context, deviceID string) {
	c, ok := r.Lookup(deviceID)
	if !ok {
		return
	}
	c.Logout(ctx)
	r.remove(deviceID, c)
}

// Sweep drops clients idle for longer than maxIdle. The provider session
// stays in Redis and is restored on the device's next request.
func (r *Registry) Sweep(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)
	var stale []*Client
	r.mu.Lock()
	for id, e := range r.clients {
		if !e.initialized() {
			continue
		}
		if loggingIn, _ := e.c.Guard(); !loggingIn && e.c.idleSince().Before(cutoff) {
			stale = append(stale, e.c)
			delete(r.clients, id)
		}
	}
	r.mu.Unlock()
	for _, c := range stale {
		c.Close()
	}
	return len(stale)
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

// Close releases every client.
func (r *Registry) Close() {
	r.mu.Lock()
	all := r.clients
	r.clients = make(map[string]*entry)
	r.mu.Unlock()
	for _, e := range all {
		e.c.Close()
	}
}
