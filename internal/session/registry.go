// Package session tracks caller connections in process memory. Nothing
// here is persisted: on restart, callers re-resolve their current task
// from directory state.
package session

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a connection id is unknown.
var ErrNotFound = errors.New("connection not found")

// Connection is one caller session and its current-task pointer.
type Connection struct {
	ID            string            `json:"id"`
	Agent         string            `json:"agent"`
	StartTime     time.Time         `json:"start_time"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	CurrentTaskID string            `json:"current_task_id,omitempty"`
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock overrides the time source used for StartTime.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// Registry is a concurrency-safe map from connection id to connection
// state. It is the only session state in the system and is deliberately
// narrow: register, look up, move the current-task pointer, remove.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]*Connection
	now   func() time.Time
}

// NewRegistry creates an empty Registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		conns: make(map[string]*Connection),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register creates a connection for an agent and returns a snapshot of it.
func (r *Registry) Register(agent string, metadata map[string]string) Connection {
	conn := &Connection{
		ID:        uuid.NewString(),
		Agent:     agent,
		StartTime: r.now(),
		Metadata:  cloneMeta(metadata),
	}

	r.mu.Lock()
	r.conns[conn.ID] = conn
	r.mu.Unlock()

	return *conn
}

// Get returns a snapshot of the connection, if present.
func (r *Registry) Get(id string) (Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.conns[id]
	if !ok {
		return Connection{}, false
	}
	c := *conn
	c.Metadata = cloneMeta(conn.Metadata)
	return c, true
}

// SetCurrentTask moves the connection's current-task pointer.
// An empty taskID clears it.
func (r *Registry) SetCurrentTask(id, taskID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.conns[id]
	if !ok {
		return ErrNotFound
	}
	conn.CurrentTaskID = taskID
	return nil
}

// CurrentTask returns the connection's current task id ("" when unset).
func (r *Registry) CurrentTask(id string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.conns[id]
	if !ok {
		return "", ErrNotFound
	}
	return conn.CurrentTaskID, nil
}

// SetMetadata sets one metadata key on the connection.
func (r *Registry) SetMetadata(id, key, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.conns[id]
	if !ok {
		return ErrNotFound
	}
	if conn.Metadata == nil {
		conn.Metadata = make(map[string]string)
	}
	conn.Metadata[key] = value
	return nil
}

// Remove drops the connection. Returns false if it was not registered.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conns[id]; !ok {
		return false
	}
	delete(r.conns, id)
	return true
}

// ByAgent returns snapshots of all connections for an agent, sorted by
// start time then id for deterministic output.
func (r *Registry) ByAgent(agent string) []Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Connection
	for _, conn := range r.conns {
		if conn.Agent != agent {
			continue
		}
		c := *conn
		c.Metadata = cloneMeta(conn.Metadata)
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].StartTime.Before(out[j].StartTime)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Len returns the number of live connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

func cloneMeta(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
