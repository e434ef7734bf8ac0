package viewer

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eringen/bulletin/content"
)

func render(t *testing.T, s Surface, sec Section) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, SectionComponent(s, sec).Render(context.Background(), &buf))
	return buf.String()
}

func defaultSurface() Surface {
	return NewSurface(
		[]content.NewsItem{{Title: "Welcome", Description: "Built in"}},
		[]content.GalleryItem{{Src: "/public/a.jpg", Alt: "a"}},
		"https://www.youtube.com/embed/default",
	)
}

func TestEmptyInputLeavesSectionsUntouched(t *testing.T) {
	s := defaultSurface()
	before := s.Clone()

	assert.False(t, s.ApplyNews(nil))
	assert.False(t, s.ApplyNews([]content.NewsItem{}))
	assert.False(t, s.ApplyGallery(nil))
	assert.False(t, s.ApplyVideo(content.Video{}))
	assert.Equal(t, before, s)
}

func TestApplyIsIdempotent(t *testing.T) {
	s := defaultSurface()
	news := []content.NewsItem{{Title: "t", Description: "d"}}
	assert.True(t, s.ApplyNews(news))
	first := render(t, s, SectionNews)
	assert.False(t, s.ApplyNews(news))
	assert.Equal(t, first, render(t, s, SectionNews))
}

func TestEmbeddedVideoBecomesInlinePlayer(t *testing.T) {
	s := defaultSurface()
	require.True(t, s.ApplyVideo(content.NewVideo("data:video/mp4;base64,AAAA", content.VideoEmbedded)))

	html := render(t, s, SectionVideo)
	assert.Contains(t, html, "<video controls")
	assert.Contains(t, html, `src="data:video/mp4;base64,AAAA"`)
	assert.NotContains(t, html, "<iframe")
}

func TestExternalVideoRetargetsFrame(t *testing.T) {
	s := defaultSurface()
	require.True(t, s.ApplyVideo(content.NewVideo("https://www.youtube.com/embed/new", content.VideoExternal)))

	html := render(t, s, SectionVideo)
	assert.Contains(t, html, `<iframe src="https://www.youtube.com/embed/new"`)
}

func TestExternalVideoIgnoredOnceInlinePlayerShown(t *testing.T) {
	s := defaultSurface()
	s.ApplyVideo(content.NewVideo("data:video/webm;base64,BBBB", content.VideoEmbedded))
	before := render(t, s, SectionVideo)

	assert.False(t, s.ApplyVideo(content.NewVideo("https://example.com/embed", content.VideoExternal)))
	assert.Equal(t, before, render(t, s, SectionVideo))

	// another embedded video still replaces the player
	assert.True(t, s.ApplyVideo(content.NewVideo("data:video/webm;base64,CCCC", content.VideoEmbedded)))
	assert.Contains(t, render(t, s, SectionVideo), "CCCC")
}

func TestRenderEscapesText(t *testing.T) {
	s := defaultSurface()
	s.ApplyNews([]content.NewsItem{{Title: "<script>x</script>", Description: `"quoted" & more`}})
	html := render(t, s, SectionNews)
	assert.NotContains(t, html, "<script>")
	assert.Contains(t, html, "&lt;script&gt;")
	assert.Contains(t, html, "&amp; more")
}

func TestUnsafeMediaSourcesAreDropped(t *testing.T) {
	s := defaultSurface()
	s.ApplyVideo(content.NewVideo("javascript:alert(1)", content.VideoExternal))
	assert.Contains(t, render(t, s, SectionVideo), `<iframe src=""`)

	s.ApplyGallery([]content.GalleryItem{{Src: "data:text/html,<b>x</b>"}})
	assert.Contains(t, render(t, s, SectionGallery), `src=""`)
}

// Deleting index i re-renders a list one shorter with the rest in order.
func TestDeleteRerendersRemainingInOrder(t *testing.T) {
	items := []content.NewsItem{
		{Title: "one", Description: "1"},
		{Title: "two", Description: "2"},
		{Title: "three", Description: "3"},
	}
	for i := range items {
		s := defaultSurface()
		s.ApplyNews(items)
		s.ApplyNews(content.RemoveAt(items, i))

		html := render(t, s, SectionNews)
		assert.Equal(t, len(items)-1, strings.Count(html, `<article class="news-card">`))
		var want []string
		for j, it := range items {
			if j != i {
				want = append(want, it.Title)
			}
		}
		assert.Less(t, strings.Index(html, want[0]), strings.Index(html, want[1]))
	}
}

func TestAdminListsPlaceholdersAndLabels(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewsList(nil, "tok").Render(context.Background(), &buf))
	assert.Contains(t, buf.String(), "No news items yet.")

	buf.Reset()
	require.NoError(t, GalleryList(nil, "tok").Render(context.Background(), &buf))
	assert.Contains(t, buf.String(), "No gallery images yet.")

	buf.Reset()
	items := []content.GalleryItem{{Src: "a.jpg", Alt: "sunset"}, {Src: "b.jpg"}}
	require.NoError(t, GalleryList(items, "tok").Render(context.Background(), &buf))
	html := buf.String()
	assert.Contains(t, html, "sunset")
	assert.Contains(t, html, "Image 2")
	assert.Contains(t, html, `action="/admin/gallery/1/delete/"`)
	assert.Contains(t, html, `name="_csrf" value="tok"`)
}
