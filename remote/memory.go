package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/eringen/bulletin/content"
)

// MemoryStore is an in-process PathStore. It keeps a one-level tree of
// JSON values and delivers change callbacks synchronously. Subscribing
// delivers the current value once before Subscribe returns.
type MemoryStore struct {
	mu     sync.Mutex
	tree   map[string]json.RawMessage
	subs   map[string]map[int]func(json.RawMessage)
	nextID int
}

var _ PathStore = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tree: make(map[string]json.RawMessage),
		subs: make(map[string]map[int]func(json.RawMessage)),
	}
}

func normalizePath(path string) string {
	p := strings.Trim(path, "/")
	if p == "" {
		return content.PathRoot
	}
	return p
}

// Get returns the value at path, or nil when nothing is stored there.
func (m *MemoryStore) Get(_ context.Context, path string) (json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.valueLocked(normalizePath(path)), nil
}

func (m *MemoryStore) valueLocked(path string) json.RawMessage {
	if path != content.PathRoot {
		v := m.tree[path]
		if v == nil {
			return nil
		}
		return append(json.RawMessage(nil), v...)
	}
	if len(m.tree) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m.tree))
	for k := range m.tree {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, _ := json.Marshal(k)
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(m.tree[k])
	}
	buf.WriteByte('}')
	return buf.Bytes()
}

// Set stores value at path. Setting the root replaces the whole tree and
// must be given an object or null.
func (m *MemoryStore) Set(_ context.Context, path string, value json.RawMessage) error {
	path = normalizePath(path)
	isNull := len(bytes.TrimSpace(value)) == 0 || bytes.Equal(bytes.TrimSpace(value), []byte("null"))

	m.mu.Lock()
	var changed []string
	if path == content.PathRoot {
		next := map[string]json.RawMessage{}
		if !isNull {
			if err := json.Unmarshal(value, &next); err != nil {
				m.mu.Unlock()
				return fmt.Errorf("memory store: root must be an object: %w", err)
			}
		}
		for k, v := range next {
			if !bytes.Equal(m.tree[k], v) {
				changed = append(changed, k)
			}
		}
		for k := range m.tree {
			if _, ok := next[k]; !ok {
				changed = append(changed, k)
			}
		}
		m.tree = next
	} else {
		if isNull {
			if _, ok := m.tree[path]; ok {
				delete(m.tree, path)
				changed = append(changed, path)
			}
		} else if !bytes.Equal(m.tree[path], value) {
			m.tree[path] = append(json.RawMessage(nil), value...)
			changed = append(changed, path)
		}
	}
	if len(changed) > 0 {
		changed = append(changed, content.PathRoot)
	}
	calls := m.pendingLocked(changed)
	m.mu.Unlock()

	for _, call := range calls {
		call()
	}
	return nil
}

func (m *MemoryStore) pendingLocked(paths []string) []func() {
	var calls []func()
	for _, p := range paths {
		value := m.valueLocked(p)
		for _, fn := range m.subs[p] {
			fn := fn
			calls = append(calls, func() { fn(value) })
		}
	}
	return calls
}

// Subscribe registers fn for changes at path and delivers the current value.
func (m *MemoryStore) Subscribe(_ context.Context, path string, fn func(json.RawMessage)) (Subscription, error) {
	path = normalizePath(path)
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	if m.subs[path] == nil {
		m.subs[path] = make(map[int]func(json.RawMessage))
	}
	m.subs[path][id] = fn
	current := m.valueLocked(path)
	m.mu.Unlock()

	fn(current)

	return SubscriptionFunc(func() error {
		m.mu.Lock()
		delete(m.subs[path], id)
		m.mu.Unlock()
		return nil
	}), nil
}
