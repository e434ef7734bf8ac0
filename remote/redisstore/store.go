// Package redisstore implements the realtime path store on Redis. Every
// content field is one key; changes are announced on a pub/sub channel per
// field so subscribers re-read the value they care about.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/go-redis/redis/v8"

	"github.com/eringen/bulletin/content"
	"github.com/eringen/bulletin/remote"
)

const defaultPrefix = "bulletin"

// Store is a remote.PathStore backed by Redis.
type Store struct {
	client redis.UniversalClient
	prefix string
}

var _ remote.PathStore = (*Store)(nil)

// New wraps client. Keys and channels are namespaced under prefix.
func New(client redis.UniversalClient, prefix string) *Store {
	prefix = strings.Trim(strings.TrimSpace(prefix), ":")
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &Store{client: client, prefix: prefix}
}

// Dial connects to addr and verifies the connection.
func Dial(ctx context.Context, addr, password string, db int, prefix string) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redisstore: ping %s: %w", addr, err)
	}
	return New(client, prefix), nil
}

// Close closes the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) key(path string) string {
	return s.prefix + ":data:" + path
}

func (s *Store) indexKey() string {
	return s.prefix + ":keys"
}

func (s *Store) channel(path string) string {
	return s.prefix + ":changed:" + path
}

func fieldPath(path string) string {
	p := strings.Trim(path, "/")
	if p == "" {
		return content.PathRoot
	}
	return p
}

// Get returns the value at path. The root is assembled from the field keys
// and any other top-level keys written through it.
func (s *Store) Get(ctx context.Context, path string) (json.RawMessage, error) {
	path = fieldPath(path)
	if path != content.PathRoot {
		b, err := s.client.Get(ctx, s.key(path)).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return b, nil
	}

	paths, err := s.paths(ctx)
	if err != nil {
		return nil, err
	}
	keys := make([]string, len(paths))
	for i, p := range paths {
		keys[i] = s.key(p)
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	tree := make(map[string]json.RawMessage)
	for i, v := range vals {
		str, ok := v.(string)
		if !ok {
			continue
		}
		tree[paths[i]] = json.RawMessage(str)
	}
	if len(tree) == 0 {
		return nil, nil
	}
	return json.Marshal(tree)
}

// paths returns the content fields followed by every other top-level key
// recorded in the index set.
func (s *Store) paths(ctx context.Context) ([]string, error) {
	others, err := s.client.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(others)
	return append(append([]string(nil), content.FieldPaths...), others...), nil
}

func isField(path string) bool {
	return slices.Contains(content.FieldPaths, path)
}

// Set writes value at path and announces the change. Setting the root
// writes every key in one transaction; keys missing from value are
// deleted.
func (s *Store) Set(ctx context.Context, path string, value json.RawMessage) error {
	path = fieldPath(path)
	if path != content.PathRoot {
		_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if isNull(value) {
				pipe.Del(ctx, s.key(path))
				if !isField(path) {
					pipe.SRem(ctx, s.indexKey(), path)
				}
			} else {
				pipe.Set(ctx, s.key(path), []byte(value), 0)
				if !isField(path) {
					pipe.SAdd(ctx, s.indexKey(), path)
				}
			}
			pipe.Publish(ctx, s.channel(path), path)
			return nil
		})
		return err
	}

	tree := map[string]json.RawMessage{}
	if !isNull(value) {
		if err := json.Unmarshal(value, &tree); err != nil {
			return fmt.Errorf("redisstore: root must be an object: %w", err)
		}
	}
	paths, err := s.paths(ctx)
	if err != nil {
		return err
	}
	for p := range tree {
		if !slices.Contains(paths, p) {
			paths = append(paths, p)
		}
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, p := range paths {
			v, ok := tree[p]
			switch {
			case ok && !isNull(v):
				pipe.Set(ctx, s.key(p), []byte(v), 0)
				if !isField(p) {
					pipe.SAdd(ctx, s.indexKey(), p)
				}
			default:
				pipe.Del(ctx, s.key(p))
				if !isField(p) {
					pipe.SRem(ctx, s.indexKey(), p)
				}
			}
		}
		for _, p := range paths {
			pipe.Publish(ctx, s.channel(p), p)
		}
		return nil
	})
	return err
}

// Subscribe delivers the current value of path and then every change.
// Root subscribers hear changes to any field.
func (s *Store) Subscribe(ctx context.Context, path string, fn func(json.RawMessage)) (remote.Subscription, error) {
	path = fieldPath(path)
	var pubsub *redis.PubSub
	if path == content.PathRoot {
		pubsub = s.client.PSubscribe(ctx, s.channel("*"))
	} else {
		pubsub = s.client.Subscribe(ctx, s.channel(path))
	}
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("redisstore: subscribe %s: %w", path, err)
	}

	current, err := s.Get(ctx, path)
	if err != nil {
		pubsub.Close()
		return nil, err
	}
	fn(current)

	subCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ch := pubsub.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case _, ok := <-ch:
				if !ok {
					return
				}
				value, err := s.Get(subCtx, path)
				if err != nil {
					continue
				}
				fn(value)
			}
		}
	}()

	return remote.SubscriptionFunc(func() error {
		cancel()
		err := pubsub.Close()
		wg.Wait()
		return err
	}), nil
}

func isNull(v json.RawMessage) bool {
	t := strings.TrimSpace(string(v))
	return t == "" || t == "null"
}
