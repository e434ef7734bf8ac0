package remote

import (
	"context"
	"encoding/json"

	"github.com/eringen/bulletin/content"
)

// PathStore is a push-capable store addressed by path. Get on a path that
// holds nothing returns a nil message and no error.
type PathStore interface {
	Get(ctx context.Context, path string) (json.RawMessage, error)
	Set(ctx context.Context, path string, value json.RawMessage) error
	Subscribe(ctx context.Context, path string, fn func(json.RawMessage)) (Subscription, error)
}

// Realtime is the Backend over a PathStore. Snapshot reads and writes use
// the root path; viewers subscribe per field.
type Realtime struct {
	store PathStore
}

var (
	_ Backend    = (*Realtime)(nil)
	_ Subscriber = (*Realtime)(nil)
)

// NewRealtime wraps store.
func NewRealtime(store PathStore) *Realtime {
	return &Realtime{store: store}
}

func (r *Realtime) Kind() Kind { return KindRealtime }

// Read returns the whole tree. An empty tree reads as a snapshot with no
// fields present.
func (r *Realtime) Read(ctx context.Context) (content.Snapshot, error) {
	raw, err := r.store.Get(ctx, content.PathRoot)
	if err != nil {
		return content.Snapshot{}, newError("read", Unreachable, err)
	}
	if len(raw) == 0 {
		return content.Snapshot{}, nil
	}
	snap, err := content.Decode(raw)
	if err != nil {
		return content.Snapshot{}, newError("read", MalformedPayload, err)
	}
	return snap, nil
}

// Write replaces the whole tree with snap.
func (r *Realtime) Write(ctx context.Context, snap content.Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return newError("write", InvalidWrite, err)
	}
	if err := r.store.Set(ctx, content.PathRoot, raw); err != nil {
		return newError("write", Unreachable, err)
	}
	return nil
}

// Subscribe forwards to the underlying store.
func (r *Realtime) Subscribe(ctx context.Context, path string, fn func(json.RawMessage)) (Subscription, error) {
	sub, err := r.store.Subscribe(ctx, path, fn)
	if err != nil {
		return nil, newError("subscribe", Unreachable, err)
	}
	return sub, nil
}

// WatchNews calls fn with the news list on every change. A missing or
// malformed value is delivered as an empty list.
func (r *Realtime) WatchNews(ctx context.Context, fn func([]content.NewsItem)) (Subscription, error) {
	return r.Subscribe(ctx, content.PathNews, func(raw json.RawMessage) {
		var items []content.NewsItem
		_ = json.Unmarshal(raw, &items)
		if items == nil {
			items = []content.NewsItem{}
		}
		fn(items)
	})
}

// WatchGallery calls fn with the gallery list on every change.
func (r *Realtime) WatchGallery(ctx context.Context, fn func([]content.GalleryItem)) (Subscription, error) {
	return r.Subscribe(ctx, content.PathGallery, func(raw json.RawMessage) {
		var items []content.GalleryItem
		_ = json.Unmarshal(raw, &items)
		if items == nil {
			items = []content.GalleryItem{}
		}
		fn(items)
	})
}

// WatchVideo calls fn with the video on every change of the video path. The
// kind is read from its sibling path at notification time.
func (r *Realtime) WatchVideo(ctx context.Context, fn func(content.Video)) (Subscription, error) {
	return r.Subscribe(ctx, content.PathVideo, func(raw json.RawMessage) {
		var payload string
		_ = json.Unmarshal(raw, &payload)
		var kind content.VideoKind
		if kindRaw, err := r.store.Get(ctx, content.PathVideoKind); err == nil && len(kindRaw) > 0 {
			_ = json.Unmarshal(kindRaw, &kind)
		}
		fn(content.NewVideo(payload, kind))
	})
}
