// Package content defines the admin-editable site content: the news list, the
// photo gallery and the featured video, plus the snapshot that carries all
// three between stores.
package content

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
)

// Addressable paths on a realtime backend. PathRoot holds the whole tree;
// the others hold a single field each.
const (
	PathRoot      = "/"
	PathNews      = "newsItems"
	PathGallery   = "galleryItems"
	PathVideo     = "videoUrl"
	PathVideoKind = "videoKind"
)

// FieldPaths lists the per-field paths in the order they are written.
var FieldPaths = []string{PathNews, PathGallery, PathVideo, PathVideoKind}

// MaxDocumentSize bounds an encoded snapshot on the wire. Uploaded media
// travels inline, so upload limits are derived from it.
const MaxDocumentSize = 64 << 20

// ErrNotObject is returned when a payload is valid JSON but not an object.
var ErrNotObject = errors.New("content: payload is not a JSON object")

// NewsItem is one entry of the news list. List position is its only identity.
type NewsItem struct {
	Title       string `json:"title"`
	Description string `json:"description"`

	extra string
}

// GalleryItem is one gallery image. Src is either a URL or a data URI.
type GalleryItem struct {
	Src string `json:"src"`
	Alt string `json:"alt"`

	extra string
}

// Fields is a set of snapshot fields, used to record which ones a decoded
// payload actually carried.
type Fields uint8

const (
	FieldNews Fields = 1 << iota
	FieldGallery
	FieldVideo

	AllFields = FieldNews | FieldGallery | FieldVideo
)

// Has reports whether every field in f is present.
func (s Fields) Has(f Fields) bool { return s&f == f }

// Snapshot is the complete content state, read and written as one unit.
type Snapshot struct {
	NewsItems    []NewsItem
	GalleryItems []GalleryItem
	Video        Video

	// Present records which fields the source payload carried. Fields set
	// through the Set* helpers are marked present as well.
	Present Fields

	// raw is the decoded source object. Keys the snapshot does not model,
	// and fields that were left absent, are written back from it unchanged.
	raw map[string]json.RawMessage
}

// Empty returns the default snapshot used when nothing has been stored yet.
func Empty() Snapshot {
	return Snapshot{
		NewsItems:    []NewsItem{},
		GalleryItems: []GalleryItem{},
		Present:      AllFields,
	}
}

// SetNews replaces the news list.
func (s *Snapshot) SetNews(items []NewsItem) {
	s.NewsItems = items
	s.Present |= FieldNews
}

// SetGallery replaces the gallery list.
func (s *Snapshot) SetGallery(items []GalleryItem) {
	s.GalleryItems = items
	s.Present |= FieldGallery
}

// SetVideo replaces the featured video.
func (s *Snapshot) SetVideo(v Video) {
	s.Video = v
	s.Present |= FieldVideo
}

// Clone returns a deep copy so callers can mutate lists without touching s.
func (s Snapshot) Clone() Snapshot {
	out := s
	if s.NewsItems != nil {
		out.NewsItems = append([]NewsItem(nil), s.NewsItems...)
	}
	if s.GalleryItems != nil {
		out.GalleryItems = append([]GalleryItem(nil), s.GalleryItems...)
	}
	return out
}

type wireSnapshot struct {
	NewsItems    []NewsItem    `json:"newsItems"`
	GalleryItems []GalleryItem `json:"galleryItems"`
	VideoURL     string        `json:"videoUrl"`
	VideoKind    VideoKind     `json:"videoKind,omitempty"`
}

// MarshalJSON writes the wire shape {newsItems, galleryItems, videoUrl,
// videoKind}. Lists are never encoded as null. Any other keys of the decoded
// source are written back as they were.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	w := wireSnapshot{
		NewsItems:    s.NewsItems,
		GalleryItems: s.GalleryItems,
		VideoURL:     s.Video.Payload,
		VideoKind:    s.Video.Kind,
	}
	if w.NewsItems == nil {
		w.NewsItems = []NewsItem{}
	}
	if w.GalleryItems == nil {
		w.GalleryItems = []GalleryItem{}
	}
	if len(s.raw) == 0 {
		return json.Marshal(w)
	}

	out := make(map[string]any, len(s.raw)+len(FieldPaths))
	for k, v := range s.raw {
		out[k] = v
	}
	if _, ok := s.raw[PathNews]; !ok || s.Present.Has(FieldNews) {
		out[PathNews] = w.NewsItems
	}
	if _, ok := s.raw[PathGallery]; !ok || s.Present.Has(FieldGallery) {
		out[PathGallery] = w.GalleryItems
	}
	if _, ok := s.raw[PathVideo]; !ok || s.Present.Has(FieldVideo) {
		out[PathVideo] = w.VideoURL
		if w.VideoKind != "" {
			out[PathVideoKind] = w.VideoKind
		} else {
			delete(out, PathVideoKind)
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts any JSON object. Fields with an unexpected shape are
// left absent instead of failing the whole payload.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	decoded, err := Decode(data)
	if err != nil {
		return err
	}
	*s = decoded
	return nil
}

// Decode parses a snapshot leniently. A JSON null decodes to a snapshot with
// no fields present; any other non-object is ErrNotObject.
func Decode(data []byte) (Snapshot, error) {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		return Snapshot{}, nil
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		if IsObject(trimmed) {
			return Snapshot{}, err
		}
		var v any
		if json.Unmarshal(trimmed, &v) == nil {
			return Snapshot{}, ErrNotObject
		}
		return Snapshot{}, err
	}

	s := Snapshot{raw: raw}
	if v, ok := raw[PathNews]; ok {
		var items []NewsItem
		if json.Unmarshal(v, &items) == nil && items != nil {
			s.SetNews(items)
		}
	}
	if v, ok := raw[PathGallery]; ok {
		var items []GalleryItem
		if json.Unmarshal(v, &items) == nil && items != nil {
			s.SetGallery(items)
		}
	}
	if v, ok := raw[PathVideo]; ok {
		var payload string
		if json.Unmarshal(v, &payload) == nil {
			var kind VideoKind
			if k, ok := raw[PathVideoKind]; ok {
				_ = json.Unmarshal(k, &kind)
			}
			s.SetVideo(NewVideo(payload, kind))
		}
	}
	return s, nil
}

// IsObject reports whether data is a JSON object (and not null, an array or
// a scalar).
func IsObject(data []byte) bool {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return false
	}
	return json.Valid(trimmed)
}

// Append returns a new list with v added at the end. items is not modified.
func Append[T any](items []T, v T) []T {
	out := make([]T, 0, len(items)+1)
	out = append(out, items...)
	return append(out, v)
}

// RemoveAt returns a new list without the element at index i, keeping the
// order of the rest. An out-of-range index returns a copy of items.
func RemoveAt[T any](items []T, i int) []T {
	out := make([]T, 0, len(items))
	for j, v := range items {
		if j != i {
			out = append(out, v)
		}
	}
	return out
}

// TrimNews trims surrounding whitespace from both fields.
func TrimNews(n NewsItem) NewsItem {
	n.Title = strings.TrimSpace(n.Title)
	n.Description = strings.TrimSpace(n.Description)
	return n
}
