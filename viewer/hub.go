package viewer

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/eringen/bulletin/content"
	"github.com/eringen/bulletin/localstore"
	"github.com/eringen/bulletin/remote"
)

// Origin tags the hub's own local writes.
const Origin = "viewer"

const (
	defaultPollInterval = 30 * time.Second
	sendBuffer          = 16
	writeWait           = 10 * time.Second
)

// Message is pushed to viewer sessions when a section changes.
type Message struct {
	Section Section `json:"section"`
	HTML    string  `json:"html"`
}

type client struct {
	conn *websocket.Conn
	send chan Message
}

// Hub owns the shared Surface, keeps it current from the backend and the
// local store, and fans changes out to connected viewers.
type Hub struct {
	backend  remote.Backend
	local    *localstore.Store
	log      logrus.FieldLogger
	interval time.Duration
	upgrader websocket.Upgrader

	mu      sync.Mutex
	surface Surface
	clients map[*client]struct{}
}

// Option configures a Hub.
type Option func(*Hub)

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(h *Hub) { h.log = l }
}

// WithPollInterval sets how often a polling backend is read.
func WithPollInterval(d time.Duration) Option {
	return func(h *Hub) {
		if d > 0 {
			h.interval = d
		}
	}
}

// NewHub creates a Hub showing initial until the first update arrives.
func NewHub(backend remote.Backend, local *localstore.Store, initial Surface, opts ...Option) *Hub {
	h := &Hub{
		backend:  backend,
		local:    local,
		log:      logrus.StandardLogger(),
		interval: defaultPollInterval,
		upgrader: websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 4096},
		surface:  initial.Clone(),
		clients:  make(map[*client]struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.log = h.log.WithField("component", "viewer")
	return h
}

// Surface returns a copy of what viewers currently see.
func (h *Hub) Surface() Surface {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.surface.Clone()
}

// Clients returns the number of connected viewer sessions.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Apply projects snap onto the surface and pushes every changed section to
// connected viewers.
func (h *Hub) Apply(snap content.Snapshot) []Section {
	h.mu.Lock()
	defer h.mu.Unlock()
	changed := h.surface.Apply(snap)
	for _, sec := range changed {
		msg, err := h.messageLocked(sec)
		if err != nil {
			h.log.WithError(err).WithField("section", sec).Error("render section")
			continue
		}
		for c := range h.clients {
			select {
			case c.send <- msg:
			default:
				h.log.Debug("viewer too slow, dropping session")
				h.dropLocked(c)
			}
		}
	}
	return changed
}

func (h *Hub) messageLocked(sec Section) (Message, error) {
	var buf bytes.Buffer
	if err := SectionComponent(h.surface, sec).Render(context.Background(), &buf); err != nil {
		return Message{}, err
	}
	return Message{Section: sec, HTML: buf.String()}, nil
}

func (h *Hub) dropLocked(c *client) {
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// Merge combines a remote snapshot with local content: remote lists win,
// lists the remote lacks come from local, and the video is the remote one
// unless that is empty.
func Merge(remoteSnap, local content.Snapshot) content.Snapshot {
	var out content.Snapshot
	switch {
	case remoteSnap.Present.Has(content.FieldNews):
		out.SetNews(remoteSnap.NewsItems)
	case local.Present.Has(content.FieldNews):
		out.SetNews(local.NewsItems)
	}
	switch {
	case remoteSnap.Present.Has(content.FieldGallery):
		out.SetGallery(remoteSnap.GalleryItems)
	case local.Present.Has(content.FieldGallery):
		out.SetGallery(local.GalleryItems)
	}
	switch {
	case !remoteSnap.Video.IsZero():
		out.SetVideo(remoteSnap.Video)
	case !local.Video.IsZero():
		out.SetVideo(local.Video)
	}
	return out
}

// Refresh reads the backend and the local store and applies the merge.
// When the backend cannot be read, local content alone is applied and the
// read error is returned.
func (h *Hub) Refresh(ctx context.Context) error {
	local, err := h.local.LoadSnapshot(ctx)
	if err != nil {
		h.log.WithError(err).Error("load local content")
		local = content.Snapshot{}
	}
	snap, rerr := h.backend.Read(ctx)
	if rerr != nil {
		h.log.WithError(rerr).Warn("remote read failed, showing local content")
		h.Apply(local)
		return rerr
	}
	h.Apply(Merge(snap, local))
	return nil
}

// Start keeps the surface current until ctx is done. A realtime backend is
// followed by per-field subscriptions, any other backend is polled. Changes
// written to the local store by other origins are applied in both cases.
func (h *Hub) Start(ctx context.Context) error {
	cancel := h.local.Watch(Origin, func(c localstore.Change) {
		h.applyLocal(ctx, c.Key)
	})
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	if rt, ok := h.backend.(*remote.Realtime); ok {
		g.Go(func() error { return h.follow(gctx, rt) })
	} else {
		g.Go(func() error { return h.poll(gctx) })
	}
	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (h *Hub) poll(ctx context.Context) error {
	_ = h.Refresh(ctx)
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			_ = h.Refresh(ctx)
		}
	}
}

func (h *Hub) follow(ctx context.Context, rt *remote.Realtime) error {
	store := localstore.WithOrigin(ctx, Origin)
	var subs []remote.Subscription
	defer func() {
		for _, s := range subs {
			_ = s.Close()
		}
	}()

	sub, err := rt.WatchNews(ctx, func(items []content.NewsItem) {
		if len(items) > 0 {
			if err := h.local.SaveNews(store, items); err != nil {
				h.log.WithError(err).Error("save news locally")
			}
		}
		var s content.Snapshot
		s.SetNews(items)
		h.Apply(s)
	})
	if err != nil {
		return err
	}
	subs = append(subs, sub)

	sub, err = rt.WatchGallery(ctx, func(items []content.GalleryItem) {
		if len(items) > 0 {
			if err := h.local.SaveGallery(store, items); err != nil {
				h.log.WithError(err).Error("save gallery locally")
			}
		}
		var s content.Snapshot
		s.SetGallery(items)
		h.Apply(s)
	})
	if err != nil {
		return err
	}
	subs = append(subs, sub)

	sub, err = rt.WatchVideo(ctx, func(v content.Video) {
		if !v.IsZero() {
			if err := h.local.SaveVideo(store, v); err != nil {
				h.log.WithError(err).Error("save video locally")
			}
		}
		var s content.Snapshot
		s.SetVideo(v)
		h.Apply(s)
	})
	if err != nil {
		return err
	}
	subs = append(subs, sub)

	<-ctx.Done()
	return ctx.Err()
}

// applyLocal shows the value just written under key. The video kind is
// written before its payload, so only the payload write triggers a render.
func (h *Hub) applyLocal(ctx context.Context, key string) {
	var s content.Snapshot
	switch key {
	case localstore.KeyNews:
		items, ok, err := h.local.LoadNews(ctx)
		if err != nil || !ok {
			return
		}
		s.SetNews(items)
	case localstore.KeyGallery:
		items, ok, err := h.local.LoadGallery(ctx)
		if err != nil || !ok {
			return
		}
		s.SetGallery(items)
	case localstore.KeyVideo:
		v, ok, err := h.local.LoadVideo(ctx)
		if err != nil || !ok {
			return
		}
		s.SetVideo(v)
	default:
		return
	}
	h.Apply(s)
}

// ServeWS upgrades the request to a viewer session. The session receives
// every section on connect and each change after that.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Debug("websocket upgrade failed")
		return
	}
	c := &client{conn: conn, send: make(chan Message, sendBuffer)}

	h.mu.Lock()
	for _, sec := range []Section{SectionNews, SectionGallery, SectionVideo} {
		if msg, err := h.messageLocked(sec); err == nil {
			c.send <- msg
		}
	}
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	go h.writePump(c)

	conn.SetReadLimit(512)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.mu.Lock()
	h.dropLocked(c)
	h.mu.Unlock()
}

func (h *Hub) writePump(c *client) {
	defer c.conn.Close()
	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
}
