// Package remote adapts the two supported remote content stores, a realtime
// path store and a polling REST endpoint, to one Backend interface.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/eringen/bulletin/content"
)

// Kind names the active backend variant.
type Kind int

const (
	KindPolling Kind = iota
	KindRealtime
)

func (k Kind) String() string {
	if k == KindRealtime {
		return "realtime"
	}
	return "polling"
}

// ParseKind resolves a configured backend name. The empty string selects
// polling.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "polling", "rest":
		return KindPolling, nil
	case "realtime":
		return KindRealtime, nil
	}
	return 0, fmt.Errorf("remote: unknown backend %q", s)
}

// Backend reads and writes whole snapshots.
type Backend interface {
	Kind() Kind
	Read(ctx context.Context) (content.Snapshot, error)
	Write(ctx context.Context, snap content.Snapshot) error
}

// Subscription is an active change subscription.
type Subscription interface {
	Close() error
}

// Subscriber is implemented by backends that push changes. The callback
// fires on every change to path, including the subscriber's own writes.
type Subscriber interface {
	Subscribe(ctx context.Context, path string, fn func(json.RawMessage)) (Subscription, error)
}

// SubscriptionFunc adapts a func to Subscription.
type SubscriptionFunc func() error

func (f SubscriptionFunc) Close() error { return f() }
