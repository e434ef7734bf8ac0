package syncer

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/eringen/bulletin/content"
	"github.com/eringen/bulletin/localstore"
	"github.com/eringen/bulletin/remote"
)

// ErrIncomplete is returned for an edit that is missing a required value.
var ErrIncomplete = errors.New("syncer: required field is empty")

// Editor holds the admin's working copy of the content and turns edits
// into syncs. List entries are addressed by index, so an index is only
// meaningful against the list the admin is currently looking at.
type Editor struct {
	sync *Synchronizer

	mu      sync.Mutex
	working content.Snapshot
}

// NewEditor creates an Editor over s. Call Load before the first edit.
func NewEditor(s *Synchronizer) *Editor {
	return &Editor{sync: s, working: content.Empty()}
}

// Synchronizer returns the underlying synchronizer.
func (e *Editor) Synchronizer() *Synchronizer { return e.sync }

func (e *Editor) ctx(ctx context.Context) context.Context {
	return localstore.WithOrigin(ctx, e.sync.origin)
}

// Load fills the working copy from the local store.
func (e *Editor) Load(ctx context.Context) error {
	snap, err := e.sync.local.LoadSnapshot(ctx)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.working = content.Empty()
	if snap.Present.Has(content.FieldNews) {
		e.working.SetNews(snap.NewsItems)
	}
	if snap.Present.Has(content.FieldGallery) {
		e.working.SetGallery(snap.GalleryItems)
	}
	if snap.Present.Has(content.FieldVideo) {
		e.working.SetVideo(snap.Video)
	}
	return nil
}

// Snapshot returns a copy of the working content.
func (e *Editor) Snapshot() content.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.working.Clone()
}

// AddNews appends item after trimming it. Both fields are required.
func (e *Editor) AddNews(ctx context.Context, item content.NewsItem) (Result, error) {
	item = content.TrimNews(item)
	if item.Title == "" || item.Description == "" {
		return Result{}, ErrIncomplete
	}
	e.mu.Lock()
	next := content.Append(e.working.NewsItems, item)
	e.working.SetNews(next)
	e.mu.Unlock()
	return e.commitNews(ctx, next), nil
}

// RemoveNews deletes the entry at index i of the working list.
func (e *Editor) RemoveNews(ctx context.Context, i int) Result {
	e.mu.Lock()
	next := content.RemoveAt(e.working.NewsItems, i)
	e.working.SetNews(next)
	e.mu.Unlock()
	return e.commitNews(ctx, next)
}

func (e *Editor) commitNews(ctx context.Context, next []content.NewsItem) Result {
	if err := e.sync.local.SaveNews(e.ctx(ctx), next); err != nil {
		e.sync.log.WithError(err).Error("save news locally")
	}
	return e.await(ctx, func(s *content.Snapshot) { s.SetNews(next) })
}

// AddGalleryImage appends an image. Src is required; alt is trimmed.
func (e *Editor) AddGalleryImage(ctx context.Context, item content.GalleryItem) (Result, error) {
	item.Alt = strings.TrimSpace(item.Alt)
	if item.Src == "" {
		return Result{}, ErrIncomplete
	}
	e.mu.Lock()
	next := content.Append(e.working.GalleryItems, item)
	e.working.SetGallery(next)
	e.mu.Unlock()
	return e.commitGallery(ctx, next), nil
}

// RemoveGalleryImage deletes the image at index i of the working list.
func (e *Editor) RemoveGalleryImage(ctx context.Context, i int) Result {
	e.mu.Lock()
	next := content.RemoveAt(e.working.GalleryItems, i)
	e.working.SetGallery(next)
	e.mu.Unlock()
	return e.commitGallery(ctx, next)
}

func (e *Editor) commitGallery(ctx context.Context, next []content.GalleryItem) Result {
	if err := e.sync.local.SaveGallery(e.ctx(ctx), next); err != nil {
		e.sync.log.WithError(err).Error("save gallery locally")
	}
	return e.await(ctx, func(s *content.Snapshot) { s.SetGallery(next) })
}

// SetVideo replaces the featured video.
func (e *Editor) SetVideo(ctx context.Context, v content.Video) (Result, error) {
	if v.IsZero() {
		return Result{}, ErrIncomplete
	}
	e.mu.Lock()
	e.working.SetVideo(v)
	e.mu.Unlock()
	if err := e.sync.local.SaveVideo(e.ctx(ctx), v); err != nil {
		e.sync.log.WithError(err).Error("save video locally")
	}
	return e.await(ctx, func(s *content.Snapshot) { s.SetVideo(v) }), nil
}

// await starts a detached sync and waits for it while ctx is live. A caller
// that goes away does not cancel the sync; it gets a Result with the context
// error and an unknown status, and the sync still completes.
func (e *Editor) await(ctx context.Context, mutate func(*content.Snapshot)) Result {
	done := e.sync.SyncAsync(mutate)
	select {
	case r := <-done:
		return r
	case <-ctx.Done():
		return Result{Status: StatusUnknown, Err: ctx.Err()}
	}
}

// Refresh pulls the remote snapshot into the working copy. Lists replace
// the working ones only when the remote carries them; a video is taken only
// when non-empty. A failed read leaves the working copy as it is.
func (e *Editor) Refresh(ctx context.Context) error {
	snap, err := e.sync.backend.Read(ctx)
	if err != nil {
		e.sync.log.WithError(err).Warn("admin load: remote read failed, using local content")
		return err
	}
	e.apply(ctx, snap)
	return nil
}

func (e *Editor) apply(ctx context.Context, snap content.Snapshot) {
	var keep content.Snapshot
	e.mu.Lock()
	if snap.Present.Has(content.FieldNews) {
		e.working.SetNews(snap.NewsItems)
		keep.SetNews(snap.NewsItems)
	}
	if snap.Present.Has(content.FieldGallery) {
		e.working.SetGallery(snap.GalleryItems)
		keep.SetGallery(snap.GalleryItems)
	}
	if !snap.Video.IsZero() {
		e.working.SetVideo(snap.Video)
		keep.SetVideo(snap.Video)
	}
	e.mu.Unlock()
	if err := e.sync.local.SaveSnapshot(e.ctx(ctx), keep); err != nil {
		e.sync.log.WithError(err).Error("save refreshed content locally")
	}
}

// Watch keeps the working copy current from a realtime backend until the
// returned func is called. With a polling backend it performs one Refresh
// instead and the returned func is a no-op.
//
// Empty or missing remote lists are ignored, so a realtime tree with no
// content never replaces the last known local content.
func (e *Editor) Watch(ctx context.Context) (stop func(), err error) {
	rt, ok := e.sync.backend.(*remote.Realtime)
	if !ok {
		_ = e.Refresh(ctx)
		return func() {}, nil
	}

	var subs []remote.Subscription
	stop = func() {
		for _, s := range subs {
			_ = s.Close()
		}
	}
	sub, err := rt.WatchNews(ctx, func(items []content.NewsItem) {
		if len(items) == 0 {
			return
		}
		var s content.Snapshot
		s.SetNews(items)
		e.apply(ctx, s)
	})
	if err != nil {
		return stop, err
	}
	subs = append(subs, sub)
	sub, err = rt.WatchGallery(ctx, func(items []content.GalleryItem) {
		if len(items) == 0 {
			return
		}
		var s content.Snapshot
		s.SetGallery(items)
		e.apply(ctx, s)
	})
	if err != nil {
		stop()
		return func() {}, err
	}
	subs = append(subs, sub)
	sub, err = rt.WatchVideo(ctx, func(v content.Video) {
		var s content.Snapshot
		s.SetVideo(v)
		e.apply(ctx, s)
	})
	if err != nil {
		stop()
		return func() {}, err
	}
	subs = append(subs, sub)
	return stop, nil
}
