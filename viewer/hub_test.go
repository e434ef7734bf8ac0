package viewer

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eringen/bulletin/content"
	"github.com/eringen/bulletin/localstore"
	"github.com/eringen/bulletin/remote"
)

type stubBackend struct {
	mu   sync.Mutex
	snap content.Snapshot
	err  error
}

func (b *stubBackend) Kind() remote.Kind { return remote.KindPolling }

func (b *stubBackend) Read(ctx context.Context) (content.Snapshot, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snap.Clone(), b.err
}

func (b *stubBackend) Write(ctx context.Context, snap content.Snapshot) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.snap = snap.Clone()
	return b.err
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

func newHub(t *testing.T, backend remote.Backend, local *localstore.Store) *Hub {
	t.Helper()
	return NewHub(backend, local, defaultSurface(),
		WithLogger(quietLogger()), WithPollInterval(20*time.Millisecond))
}

func TestMerge(t *testing.T) {
	var remoteSnap, local content.Snapshot
	remoteSnap.SetNews([]content.NewsItem{{Title: "remote"}})
	local.SetNews([]content.NewsItem{{Title: "local"}})
	local.SetGallery([]content.GalleryItem{{Src: "local.jpg"}})
	local.SetVideo(content.NewVideo("https://example.com/local", content.VideoExternal))

	got := Merge(remoteSnap, local)
	assert.Equal(t, "remote", got.NewsItems[0].Title)
	assert.Equal(t, "local.jpg", got.GalleryItems[0].Src)
	assert.Equal(t, "https://example.com/local", got.Video.Payload)

	remoteSnap.SetVideo(content.NewVideo("https://example.com/remote", content.VideoExternal))
	assert.Equal(t, "https://example.com/remote", Merge(remoteSnap, local).Video.Payload)
}

func TestRefreshFallsBackToLocal(t *testing.T) {
	ctx := context.Background()
	local := newLocal(t)
	require.NoError(t, local.SaveNews(ctx, []content.NewsItem{{Title: "cached", Description: "c"}}))
	backend := &stubBackend{err: errors.New("down")}
	h := newHub(t, backend, local)

	assert.Error(t, h.Refresh(ctx))
	assert.Equal(t, "cached", h.Surface().News[0].Title)
	assert.Equal(t, "/public/a.jpg", h.Surface().Gallery[0].Src, "gallery keeps built-in content")
}

func TestPollingPicksUpRemoteChanges(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	backend := &stubBackend{snap: content.Empty()}
	h := newHub(t, backend, newLocal(t))

	done := make(chan error, 1)
	go func() { done <- h.Start(ctx) }()

	next := content.Empty()
	next.SetGallery([]content.GalleryItem{{Src: "new.jpg"}})
	require.NoError(t, backend.Write(ctx, next))

	assert.Eventually(t, func() bool {
		g := h.Surface().Gallery
		return len(g) == 1 && g[0].Src == "new.jpg"
	}, time.Second, 10*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}

func TestLocalWritesFromOtherOriginsApply(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	local := newLocal(t)
	h := newHub(t, &stubBackend{err: errors.New("down")}, local)
	go h.Start(ctx)

	assert.Eventually(t, func() bool {
		if err := local.SaveVideo(localstore.WithOrigin(ctx, "admin"),
			content.NewVideo("data:video/mp4;base64,AAAA", content.VideoEmbedded)); err != nil {
			return false
		}
		return h.Surface().Video.Inline == "data:video/mp4;base64,AAAA"
	}, time.Second, 10*time.Millisecond)
}

func TestRealtimeSubscriptionsUpdateSurfaceAndLocal(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	store := remote.NewMemoryStore()
	rt := remote.NewRealtime(store)
	local := newLocal(t)
	h := newHub(t, rt, local)
	go h.Start(ctx)

	next := content.Empty()
	next.SetNews([]content.NewsItem{{Title: "live", Description: "now"}})

	assert.Eventually(t, func() bool {
		if err := rt.Write(ctx, next); err != nil {
			return false
		}
		n := h.Surface().News
		return len(n) == 1 && n[0].Title == "live"
	}, time.Second, 10*time.Millisecond)

	news, ok, err := local.LoadNews(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "live", news[0].Title)
}

func TestViewerSessionReceivesChanges(t *testing.T) {
	h := newHub(t, &stubBackend{}, newLocal(t))
	srv := httptest.NewServer(http.HandlerFunc(h.ServeWS))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	seen := map[Section]bool{}
	for i := 0; i < 3; i++ {
		var msg Message
		require.NoError(t, conn.ReadJSON(&msg))
		seen[msg.Section] = true
	}
	assert.Len(t, seen, 3)
	require.Eventually(t, func() bool { return h.Clients() == 1 }, time.Second, 10*time.Millisecond)

	var snap content.Snapshot
	snap.SetNews([]content.NewsItem{{Title: "pushed", Description: "p"}})
	assert.Equal(t, []Section{SectionNews}, h.Apply(snap))

	var msg Message
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, SectionNews, msg.Section)
	assert.Contains(t, msg.HTML, "pushed")
}
