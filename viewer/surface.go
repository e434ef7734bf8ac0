// Package viewer projects content onto the public page and keeps open
// viewer sessions current.
package viewer

import (
	"slices"

	"github.com/eringen/bulletin/content"
)

// Section names a replaceable region of the page.
type Section string

const (
	SectionNews    Section = "news"
	SectionGallery Section = "gallery"
	SectionVideo   Section = "video"
)

// VideoPane is the state of the video region. The page starts with an
// embed frame; once an embedded video is shown the frame is gone and only
// another embedded video can replace it.
type VideoPane struct {
	Frame  string
	Inline string
}

// HasFrame reports whether the embed frame is still on the page.
func (p VideoPane) HasFrame() bool { return p.Inline == "" }

// Surface is what a viewer currently sees.
type Surface struct {
	News    []content.NewsItem
	Gallery []content.GalleryItem
	Video   VideoPane
}

// NewSurface returns a surface showing the page's built-in content.
func NewSurface(news []content.NewsItem, gallery []content.GalleryItem, frameSrc string) Surface {
	return Surface{
		News:    slices.Clone(news),
		Gallery: slices.Clone(gallery),
		Video:   VideoPane{Frame: frameSrc},
	}
}

// Clone returns a copy that shares no slices with s.
func (s Surface) Clone() Surface {
	return Surface{
		News:    slices.Clone(s.News),
		Gallery: slices.Clone(s.Gallery),
		Video:   s.Video,
	}
}

// ApplyNews replaces the news cards. An empty list leaves the section as it
// is. It reports whether anything changed.
func (s *Surface) ApplyNews(items []content.NewsItem) bool {
	if len(items) == 0 || slices.Equal(s.News, items) {
		return false
	}
	s.News = slices.Clone(items)
	return true
}

// ApplyGallery replaces the gallery. An empty list leaves the section as it
// is.
func (s *Surface) ApplyGallery(items []content.GalleryItem) bool {
	if len(items) == 0 || slices.Equal(s.Gallery, items) {
		return false
	}
	s.Gallery = slices.Clone(items)
	return true
}

// ApplyVideo shows v. An empty video never blanks what is shown. An
// embedded video replaces the region with an inline player; an external one
// only retargets the embed frame, and does nothing once the frame is gone.
func (s *Surface) ApplyVideo(v content.Video) bool {
	if v.IsZero() {
		return false
	}
	if v.Embedded() {
		if s.Video.Inline == v.Payload {
			return false
		}
		s.Video.Inline = v.Payload
		return true
	}
	if !s.Video.HasFrame() || s.Video.Frame == v.Payload {
		return false
	}
	s.Video.Frame = v.Payload
	return true
}

// Apply projects every present field of snap and returns the sections that
// changed.
func (s *Surface) Apply(snap content.Snapshot) []Section {
	var changed []Section
	if snap.Present.Has(content.FieldNews) && s.ApplyNews(snap.NewsItems) {
		changed = append(changed, SectionNews)
	}
	if snap.Present.Has(content.FieldGallery) && s.ApplyGallery(snap.GalleryItems) {
		changed = append(changed, SectionGallery)
	}
	if snap.Present.Has(content.FieldVideo) && s.ApplyVideo(snap.Video) {
		changed = append(changed, SectionVideo)
	}
	return changed
}
