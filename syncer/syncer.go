// Package syncer keeps admin edits consistent between the local store and the
// remote backend.
//
// Every edit is a read-merge-write of the whole remote snapshot with
// last-write-wins semantics: there is no version check, so two admins saving
// at the same moment race and the later write silently replaces the earlier
// one. The local store is always updated, whether or not the remote write
// succeeds, and remote failures are reported as a status rather than an error.
package syncer

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/eringen/bulletin/content"
	"github.com/eringen/bulletin/localstore"
	"github.com/eringen/bulletin/remote"
)

// Status is the outcome of the last sync, shown on the admin dashboard.
type Status int

const (
	StatusUnknown Status = iota
	StatusSynchronized
	StatusLocalOnly
)

func (s Status) String() string {
	switch s {
	case StatusSynchronized:
		return "Synchronized with backend"
	case StatusLocalOnly:
		return "Unable to reach backend; changes saved locally only"
	}
	return ""
}

// Result reports one sync. Err holds the remote failure behind a local-only
// status; it is informational and never needs handling by the caller.
type Result struct {
	Status   Status
	Err      error
	Snapshot content.Snapshot
}

// Synchronized reports whether the remote write went through.
func (r Result) Synchronized() bool { return r.Status == StatusSynchronized }

// Synchronizer applies mutations to the remote snapshot and mirrors them
// into the local store.
type Synchronizer struct {
	backend remote.Backend
	local   *localstore.Store
	log     logrus.FieldLogger
	origin  string

	mu   sync.Mutex
	last Result
}

// Option configures a Synchronizer.
type Option func(*Synchronizer)

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Synchronizer) { s.log = l }
}

// WithOrigin tags the synchronizer's local writes so watchers sharing the
// origin skip them.
func WithOrigin(origin string) Option {
	return func(s *Synchronizer) { s.origin = origin }
}

// New creates a Synchronizer.
func New(backend remote.Backend, local *localstore.Store, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		backend: backend,
		local:   local,
		log:     logrus.StandardLogger(),
		origin:  "admin",
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.WithField("component", "syncer")
	return s
}

// Backend returns the active remote backend.
func (s *Synchronizer) Backend() remote.Backend { return s.backend }

// Local returns the local store.
func (s *Synchronizer) Local() *localstore.Store { return s.local }

// Origin returns the origin tag used for local writes.
func (s *Synchronizer) Origin() string { return s.origin }

// Sync reads the remote snapshot, applies mutate, mirrors the result into
// the local store and writes it back to the remote.
//
// When the remote cannot be read, mutate is applied to the locally stored
// snapshot instead and nothing is written remotely.
func (s *Synchronizer) Sync(ctx context.Context, mutate func(*content.Snapshot)) Result {
	ctx = localstore.WithOrigin(ctx, s.origin)

	snap, err := s.backend.Read(ctx)
	if err != nil {
		local, lerr := s.local.LoadSnapshot(ctx)
		if lerr != nil {
			s.log.WithError(lerr).Error("load local snapshot")
		}
		mutate(&local)
		s.mirror(ctx, local)
		return s.finish(Result{Status: StatusLocalOnly, Err: err, Snapshot: local})
	}

	mutate(&snap)
	s.mirror(ctx, snap)

	if err := s.backend.Write(ctx, snap); err != nil {
		return s.finish(Result{Status: StatusLocalOnly, Err: err, Snapshot: snap})
	}
	return s.finish(Result{Status: StatusSynchronized, Snapshot: snap})
}

// SyncAsync runs Sync detached from the caller. The returned channel
// receives exactly one Result.
func (s *Synchronizer) SyncAsync(mutate func(*content.Snapshot)) <-chan Result {
	ch := make(chan Result, 1)
	go func() {
		ch <- s.Sync(context.Background(), mutate)
	}()
	return ch
}

// Status returns the outcome of the most recent sync.
func (s *Synchronizer) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last.Status
}

// LastResult returns the most recent Result.
func (s *Synchronizer) LastResult() Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func (s *Synchronizer) mirror(ctx context.Context, snap content.Snapshot) {
	if err := s.local.SaveSnapshot(ctx, snap); err != nil {
		s.log.WithError(err).Error("mirror snapshot to local store")
	}
}

func (s *Synchronizer) finish(r Result) Result {
	entry := s.log.WithFields(logrus.Fields{
		"backend": s.backend.Kind(),
		"status":  r.Status.String(),
	})
	if r.Err != nil {
		entry.WithError(r.Err).Warn("could not sync with backend")
	} else {
		entry.Debug("synced")
	}
	s.mu.Lock()
	s.last = r
	s.mu.Unlock()
	return r
}
