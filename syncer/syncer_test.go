package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eringen/bulletin/content"
	"github.com/eringen/bulletin/datasrv"
	"github.com/eringen/bulletin/localstore"
	"github.com/eringen/bulletin/remote"
)

// fakeBackend is a polling-style backend whose reads and writes can be
// failed or sequenced from the test.
type fakeBackend struct {
	mu        sync.Mutex
	snap      content.Snapshot
	readErr   error
	writeErr  error
	reads     int
	writes    int
	afterRead func(n int)
	onWrite   func(snap content.Snapshot)
}

func (f *fakeBackend) Kind() remote.Kind { return remote.KindPolling }

func (f *fakeBackend) Read(ctx context.Context) (content.Snapshot, error) {
	f.mu.Lock()
	f.reads++
	n := f.reads
	snap, err := f.snap.Clone(), f.readErr
	hook := f.afterRead
	f.mu.Unlock()
	if hook != nil {
		hook(n)
	}
	return snap, err
}

func (f *fakeBackend) Write(ctx context.Context, snap content.Snapshot) error {
	f.mu.Lock()
	f.writes++
	hook := f.onWrite
	f.mu.Unlock()
	if hook != nil {
		hook(snap)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.snap = snap.Clone()
	return nil
}

func (f *fakeBackend) current() content.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap.Clone()
}

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newLocal(t *testing.T) *localstore.Store {
	t.Helper()
	s, err := localstore.Open(filepath.Join(t.TempDir(), "local.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSyncMergesIntoRemote(t *testing.T) {
	ctx := context.Background()
	backend := &fakeBackend{snap: content.Empty()}
	backend.snap.SetGallery([]content.GalleryItem{{Src: "g.jpg"}})
	local := newLocal(t)
	s := New(backend, local, WithLogger(quietLogger()))

	res := s.Sync(ctx, func(snap *content.Snapshot) {
		snap.SetNews([]content.NewsItem{{Title: "t", Description: "d"}})
	})
	require.True(t, res.Synchronized())
	assert.Equal(t, StatusSynchronized, s.Status())
	assert.Equal(t, "Synchronized with backend", s.Status().String())

	remoteSnap := backend.current()
	assert.Len(t, remoteSnap.NewsItems, 1)
	assert.Len(t, remoteSnap.GalleryItems, 1, "untouched field must survive the write")

	gallery, ok, err := local.LoadGallery(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "g.jpg", gallery[0].Src)
}

func TestSyncKeepsKeysItDoesNotTouch(t *testing.T) {
	ctx := context.Background()
	store := datasrv.NewFileStore(filepath.Join(t.TempDir(), "data.json"))
	e := echo.New()
	datasrv.NewHandler(store, quietLogger()).RegisterRoutes(e.Group("/api"))
	srv := httptest.NewServer(e)
	defer srv.Close()

	doc := `{"newsItems":[{"title":"a","description":"b","date":"2024-01-01"}],` +
		`"galleryItems":[],"videoUrl":"","siteNotice":"keep me"}`
	resp, err := http.Post(srv.URL+"/api/data", "application/json", strings.NewReader(doc))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	client, err := remote.NewClient(srv.URL, remote.WithClientLogger(quietLogger()))
	require.NoError(t, err)
	s := New(client, newLocal(t), WithLogger(quietLogger()))

	res := s.Sync(ctx, func(snap *content.Snapshot) {
		snap.SetGallery([]content.GalleryItem{{Src: "x.jpg"}})
	})
	require.True(t, res.Synchronized(), "sync failed: %v", res.Err)

	var stored map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(store.Load(), &stored))
	assert.JSONEq(t, `"keep me"`, string(stored["siteNotice"]))
	assert.JSONEq(t, `[{"title":"a","description":"b","date":"2024-01-01"}]`, string(stored["newsItems"]))
	assert.JSONEq(t, `[{"src":"x.jpg","alt":""}]`, string(stored["galleryItems"]))
}

func TestSyncKeepsRealtimeKeys(t *testing.T) {
	ctx := context.Background()
	mem := remote.NewMemoryStore()
	require.NoError(t, mem.Set(ctx, content.PathRoot, json.RawMessage(`{"newsItems":[],"siteNotice":"keep me"}`)))
	s := New(remote.NewRealtime(mem), newLocal(t), WithLogger(quietLogger()))

	res := s.Sync(ctx, func(snap *content.Snapshot) {
		snap.SetNews([]content.NewsItem{{Title: "t", Description: "d"}})
	})
	require.True(t, res.Synchronized())

	notice, err := mem.Get(ctx, "siteNotice")
	require.NoError(t, err)
	assert.JSONEq(t, `"keep me"`, string(notice))
}

func TestSyncWriteFailureKeepsLocal(t *testing.T) {
	ctx := context.Background()
	backend := &fakeBackend{snap: content.Empty(), writeErr: errors.New("connection refused")}
	local := newLocal(t)
	s := New(backend, local, WithLogger(quietLogger()))

	res := s.Sync(ctx, func(snap *content.Snapshot) {
		snap.SetNews([]content.NewsItem{{Title: "kept", Description: "locally"}})
	})
	assert.Equal(t, StatusLocalOnly, res.Status)
	assert.Error(t, res.Err)
	assert.Equal(t, "Unable to reach backend; changes saved locally only", s.Status().String())

	news, ok, err := local.LoadNews(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "kept", news[0].Title)
	assert.Empty(t, backend.current().NewsItems)
}

func TestSyncReadFailureAppliesToLocal(t *testing.T) {
	ctx := context.Background()
	backend := &fakeBackend{readErr: &remote.Error{Op: "read", Kind: remote.Unreachable}}
	local := newLocal(t)
	require.NoError(t, local.SaveGallery(ctx, []content.GalleryItem{{Src: "old.jpg"}}))
	s := New(backend, local, WithLogger(quietLogger()))

	res := s.Sync(ctx, func(snap *content.Snapshot) {
		snap.SetVideo(content.NewVideo("https://example.com/embed", content.VideoExternal))
	})
	assert.Equal(t, StatusLocalOnly, res.Status)
	assert.True(t, remote.IsUnreachable(res.Err))
	assert.Equal(t, 0, backend.writes, "nothing is written when the read failed")

	video, ok, err := local.LoadVideo(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, content.VideoExternal, video.Kind)

	gallery, ok, err := local.LoadGallery(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, gallery, 1, "other local fields stay intact")
}

func TestSyncAsync(t *testing.T) {
	backend := &fakeBackend{snap: content.Empty()}
	s := New(backend, newLocal(t), WithLogger(quietLogger()))

	res := <-s.SyncAsync(func(snap *content.Snapshot) {
		snap.SetNews([]content.NewsItem{{Title: "a", Description: "b"}})
	})
	assert.True(t, res.Synchronized())
	assert.Len(t, backend.current().NewsItems, 1)
}

// Two syncs where the second reads before the first has written: the later
// write wins and the first mutation is lost. This is the documented
// last-write-wins behaviour.
func TestConcurrentSyncLastWriteWins(t *testing.T) {
	ctx := context.Background()
	backend := &fakeBackend{snap: content.Empty()}
	s := New(backend, newLocal(t), WithLogger(quietLogger()))

	firstRead := make(chan struct{})
	secondRead := make(chan struct{})
	firstWritten := make(chan struct{})
	backend.afterRead = func(n int) {
		switch n {
		case 1:
			close(firstRead)
		case 2:
			close(secondRead)
		}
	}
	backend.onWrite = func(snap content.Snapshot) {
		if len(snap.GalleryItems) == 0 {
			<-secondRead
			return
		}
		<-firstWritten
	}

	done := make(chan Result, 1)
	go func() {
		res := s.Sync(ctx, func(snap *content.Snapshot) {
			snap.SetNews([]content.NewsItem{{Title: "first", Description: "x"}})
		})
		close(firstWritten)
		done <- res
	}()

	<-firstRead
	second := s.Sync(ctx, func(snap *content.Snapshot) {
		snap.SetGallery([]content.GalleryItem{{Src: "second.jpg"}})
	})
	first := <-done

	assert.True(t, first.Synchronized())
	assert.True(t, second.Synchronized())

	final := backend.current()
	assert.Len(t, final.GalleryItems, 1)
	assert.Empty(t, final.NewsItems, "first sync's news is overwritten by the stale read")
}

func TestStatusStartsUnknown(t *testing.T) {
	s := New(&fakeBackend{}, newLocal(t), WithLogger(quietLogger()))
	assert.Equal(t, StatusUnknown, s.Status())
	assert.Empty(t, s.Status().String())
}
