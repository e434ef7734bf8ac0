package remote

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eringen/bulletin/content"
)

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestParseBaseURLNormalizes(t *testing.T) {
	u, err := parseBaseURL("example.com:3000/site/?x=1#frag")
	require.NoError(t, err)
	assert.Equal(t, "http", u.Scheme)
	assert.Equal(t, "example.com:3000", u.Host)
	assert.Equal(t, "/site", u.Path)
	assert.Empty(t, u.RawQuery)

	_, err = parseBaseURL("")
	assert.Error(t, err)
}

func TestClientReadAndWrite(t *testing.T) {
	var posted []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/data", r.URL.Path)
		switch r.Method {
		case http.MethodGet:
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"newsItems":[{"title":"t","description":"d"}],"galleryItems":[],"videoUrl":"https://v"}`))
		case http.MethodPost:
			posted, _ = io.ReadAll(r.Body)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
		}
	}))
	defer server.Close()

	c, err := NewClient(server.URL, WithClientLogger(quietLogger()))
	require.NoError(t, err)
	assert.Equal(t, KindPolling, c.Kind())

	snap, err := c.Read(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.NewsItems, 1)
	assert.Equal(t, content.VideoExternal, snap.Video.Kind)

	snap.SetNews(content.Append(snap.NewsItems, content.NewsItem{Title: "n", Description: "m"}))
	require.NoError(t, c.Write(context.Background(), snap))

	var body map[string]any
	require.NoError(t, json.Unmarshal(posted, &body))
	assert.Len(t, body["newsItems"], 2)
	assert.Equal(t, "https://v", body["videoUrl"])
}

func TestClientReadNonSuccessIsEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c, err := NewClient(server.URL, WithClientLogger(quietLogger()))
	require.NoError(t, err)

	snap, err := c.Read(context.Background())
	require.NoError(t, err)
	assert.Zero(t, snap.Present)
}

func TestClientReadMalformed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[1,2,3]`))
	}))
	defer server.Close()

	c, err := NewClient(server.URL, WithClientLogger(quietLogger()))
	require.NoError(t, err)

	_, err = c.Read(context.Background())
	assert.True(t, IsMalformed(err), "err = %v", err)
}

func TestClientUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	c, err := NewClient(url, WithClientLogger(quietLogger()))
	require.NoError(t, err)

	_, err = c.Read(context.Background())
	assert.True(t, IsUnreachable(err), "read err = %v", err)
	err = c.Write(context.Background(), content.Empty())
	assert.True(t, IsUnreachable(err), "write err = %v", err)
}

func TestClientWriteRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"Invalid payload"}`))
	}))
	defer server.Close()

	c, err := NewClient(server.URL, WithClientLogger(quietLogger()))
	require.NoError(t, err)

	err = c.Write(context.Background(), content.Empty())
	assert.True(t, IsInvalidWrite(err), "err = %v", err)
}

func TestSelect(t *testing.T) {
	b, err := Select(Config{Kind: KindRealtime, Store: NewMemoryStore()})
	require.NoError(t, err)
	assert.Equal(t, KindRealtime, b.Kind())

	_, err = Select(Config{Kind: KindRealtime})
	assert.Error(t, err)

	b, err = Select(Config{Kind: KindPolling, BaseURL: "localhost:3000"})
	require.NoError(t, err)
	assert.Equal(t, KindPolling, b.Kind())

	k, err := ParseKind("Realtime")
	require.NoError(t, err)
	assert.Equal(t, KindRealtime, k)
	_, err = ParseKind("firebase")
	assert.Error(t, err)
}
