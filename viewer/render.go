package viewer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/a-h/templ"

	"github.com/eringen/bulletin/content"
)

// NewsSection renders the news cards.
func NewsSection(items []content.NewsItem) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var buf bytes.Buffer
		for _, item := range items {
			buf.WriteString(`<article class="news-card"><h3>`)
			buf.WriteString(templ.EscapeString(item.Title))
			buf.WriteString(`</h3><p>`)
			buf.WriteString(templ.EscapeString(item.Description))
			buf.WriteString(`</p></article>`)
		}
		_, err := w.Write(buf.Bytes())
		return err
	})
}

// GallerySection renders the gallery images.
func GallerySection(items []content.GalleryItem) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var buf bytes.Buffer
		for _, item := range items {
			buf.WriteString(`<img class="gallery-image" loading="lazy" src="`)
			buf.WriteString(templ.EscapeString(mediaSrc(item.Src, "data:image/")))
			buf.WriteString(`" alt="`)
			buf.WriteString(templ.EscapeString(item.Alt))
			buf.WriteString(`">`)
		}
		_, err := w.Write(buf.Bytes())
		return err
	})
}

// VideoSection renders the video region: an inline player once an embedded
// video has been shown, otherwise the embed frame.
func VideoSection(p VideoPane) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var err error
		if !p.HasFrame() {
			_, err = fmt.Fprintf(w, `<video controls preload="metadata" style="width:100%%" src="%s"></video>`,
				templ.EscapeString(mediaSrc(p.Inline, "data:video/")))
			return err
		}
		_, err = fmt.Fprintf(w, `<iframe src="%s" title="Featured video" allowfullscreen loading="lazy"></iframe>`,
			templ.EscapeString(mediaSrc(p.Frame, "")))
		return err
	})
}

// SectionComponent renders one section of s.
func SectionComponent(s Surface, sec Section) templ.Component {
	switch sec {
	case SectionNews:
		return NewsSection(s.News)
	case SectionGallery:
		return GallerySection(s.Gallery)
	default:
		return VideoSection(s.Video)
	}
}

// NewsList renders the admin news list with a delete button per entry.
func NewsList(items []content.NewsItem, csrfToken string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var buf bytes.Buffer
		if len(items) == 0 {
			buf.WriteString(`<p class="empty">No news items yet.</p>`)
		}
		for i, item := range items {
			buf.WriteString(`<div class="admin-item"><span><strong>`)
			buf.WriteString(templ.EscapeString(item.Title))
			buf.WriteString(`</strong> `)
			buf.WriteString(templ.EscapeString(item.Description))
			buf.WriteString(`</span>`)
			writeDeleteForm(&buf, fmt.Sprintf("/admin/news/%d/delete/", i), csrfToken)
			buf.WriteString(`</div>`)
		}
		_, err := w.Write(buf.Bytes())
		return err
	})
}

// GalleryList renders the admin gallery list. Images without alt text are
// labelled by position.
func GalleryList(items []content.GalleryItem, csrfToken string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var buf bytes.Buffer
		if len(items) == 0 {
			buf.WriteString(`<p class="empty">No gallery images yet.</p>`)
		}
		for i, item := range items {
			buf.WriteString(`<div class="admin-item"><span>`)
			buf.WriteString(templ.EscapeString(GalleryLabel(item, i)))
			buf.WriteString(`</span>`)
			writeDeleteForm(&buf, fmt.Sprintf("/admin/gallery/%d/delete/", i), csrfToken)
			buf.WriteString(`</div>`)
		}
		_, err := w.Write(buf.Bytes())
		return err
	})
}

// GalleryLabel is the admin label for the image at index i.
func GalleryLabel(item content.GalleryItem, i int) string {
	if item.Alt != "" {
		return item.Alt
	}
	return fmt.Sprintf("Image %d", i+1)
}

func writeDeleteForm(buf *bytes.Buffer, action, csrfToken string) {
	buf.WriteString(`<form method="post" action="`)
	buf.WriteString(templ.EscapeString(action))
	buf.WriteString(`"><input type="hidden" name="_csrf" value="`)
	buf.WriteString(templ.EscapeString(csrfToken))
	buf.WriteString(`"><button type="submit">Delete</button></form>`)
}

// mediaSrc passes through http(s) and relative URLs, and data URIs with the
// given prefix. Anything else renders as an empty source.
func mediaSrc(src, dataPrefix string) string {
	if dataPrefix != "" && strings.HasPrefix(src, dataPrefix) {
		return src
	}
	u, err := url.Parse(src)
	if err != nil {
		return ""
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https", "":
		if u.Scheme == "" && u.Opaque != "" {
			return ""
		}
		return src
	}
	return ""
}
