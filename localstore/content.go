package localstore

import (
	"context"
	"encoding/json"

	"github.com/eringen/bulletin/content"
)

// LoadNews returns the stored news list. A missing or unreadable value
// reports ok=false so callers can fall back.
func (s *Store) LoadNews(ctx context.Context) (items []content.NewsItem, ok bool, err error) {
	ok, err = s.loadJSON(ctx, KeyNews, &items)
	return items, ok, err
}

// SaveNews stores the news list.
func (s *Store) SaveNews(ctx context.Context, items []content.NewsItem) error {
	if items == nil {
		items = []content.NewsItem{}
	}
	return s.saveJSON(ctx, KeyNews, items)
}

// LoadGallery returns the stored gallery list.
func (s *Store) LoadGallery(ctx context.Context) (items []content.GalleryItem, ok bool, err error) {
	ok, err = s.loadJSON(ctx, KeyGallery, &items)
	return items, ok, err
}

// SaveGallery stores the gallery list.
func (s *Store) SaveGallery(ctx context.Context, items []content.GalleryItem) error {
	if items == nil {
		items = []content.GalleryItem{}
	}
	return s.saveJSON(ctx, KeyGallery, items)
}

// LoadVideo returns the stored video. The payload lives under video_url as a
// plain string; its kind sits beside it under video_kind.
func (s *Store) LoadVideo(ctx context.Context) (content.Video, bool, error) {
	payload, ok, err := s.Get(ctx, KeyVideo)
	if err != nil || !ok || payload == "" {
		return content.Video{}, false, err
	}
	kind, _, err := s.Get(ctx, KeyVideoKind)
	if err != nil {
		return content.Video{}, false, err
	}
	return content.NewVideo(payload, content.VideoKind(kind)), true, nil
}

// SaveVideo stores v. An empty video is ignored so a blank value never
// replaces a previously saved one.
func (s *Store) SaveVideo(ctx context.Context, v content.Video) error {
	if v.IsZero() {
		return nil
	}
	if err := s.Set(ctx, KeyVideoKind, string(v.Kind)); err != nil {
		return err
	}
	return s.Set(ctx, KeyVideo, v.Payload)
}

// LoadSnapshot assembles a snapshot from the stored kinds. Present marks the
// kinds that were found.
func (s *Store) LoadSnapshot(ctx context.Context) (content.Snapshot, error) {
	var snap content.Snapshot
	news, ok, err := s.LoadNews(ctx)
	if err != nil {
		return snap, err
	}
	if ok {
		snap.SetNews(news)
	}
	gallery, ok, err := s.LoadGallery(ctx)
	if err != nil {
		return snap, err
	}
	if ok {
		snap.SetGallery(gallery)
	}
	video, ok, err := s.LoadVideo(ctx)
	if err != nil {
		return snap, err
	}
	if ok {
		snap.SetVideo(video)
	}
	return snap, nil
}

// SaveSnapshot stores every present field of snap.
func (s *Store) SaveSnapshot(ctx context.Context, snap content.Snapshot) error {
	if snap.Present.Has(content.FieldNews) {
		if err := s.SaveNews(ctx, snap.NewsItems); err != nil {
			return err
		}
	}
	if snap.Present.Has(content.FieldGallery) {
		if err := s.SaveGallery(ctx, snap.GalleryItems); err != nil {
			return err
		}
	}
	if snap.Present.Has(content.FieldVideo) {
		if err := s.SaveVideo(ctx, snap.Video); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) loadJSON(ctx context.Context, key string, dest any) (bool, error) {
	raw, ok, err := s.Get(ctx, key)
	if err != nil || !ok || raw == "" || raw == "null" {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		return false, nil
	}
	return true, nil
}

func (s *Store) saveJSON(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.Set(ctx, key, string(b))
}
