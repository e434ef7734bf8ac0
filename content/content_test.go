package content

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestEmptyMarshalsDefaultShape(t *testing.T) {
	b, err := json.Marshal(Empty())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"newsItems":[],"galleryItems":[],"videoUrl":""}`
	if string(b) != want {
		t.Errorf("Empty() = %s, want %s", b, want)
	}
}

func TestDecodeRejectsNonObjects(t *testing.T) {
	for _, in := range []string{`42`, `[1,2]`, `"str"`, `true`} {
		if _, err := Decode([]byte(in)); !errors.Is(err, ErrNotObject) {
			t.Errorf("Decode(%s) err = %v, want ErrNotObject", in, err)
		}
	}
	if _, err := Decode([]byte(`{broken`)); err == nil || errors.Is(err, ErrNotObject) {
		t.Errorf("Decode(broken) err = %v, want syntax error", err)
	}
}

func TestDecodeNullHasNoFields(t *testing.T) {
	s, err := Decode([]byte(`null`))
	if err != nil {
		t.Fatalf("Decode(null): %v", err)
	}
	if s.Present != 0 {
		t.Errorf("Present = %b, want 0", s.Present)
	}
}

func TestDecodeRecordsPresentFields(t *testing.T) {
	s, err := Decode([]byte(`{"newsItems":[{"title":"a","description":"b"}],"galleryItems":"oops"}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !s.Present.Has(FieldNews) {
		t.Error("news should be present")
	}
	if s.Present.Has(FieldGallery) {
		t.Error("gallery with wrong shape should be absent")
	}
	if s.Present.Has(FieldVideo) {
		t.Error("video should be absent")
	}
	if len(s.NewsItems) != 1 || s.NewsItems[0].Title != "a" {
		t.Errorf("NewsItems = %+v", s.NewsItems)
	}
}

func TestDecodeVideoKind(t *testing.T) {
	tests := []struct {
		in   string
		want Video
	}{
		{`{"videoUrl":"data:video/mp4;base64,AAA"}`, Video{Kind: VideoEmbedded, Payload: "data:video/mp4;base64,AAA"}},
		{`{"videoUrl":"https://youtube.com/embed/x"}`, Video{Kind: VideoExternal, Payload: "https://youtube.com/embed/x"}},
		{`{"videoUrl":"https://cdn/x.mp4","videoKind":"embedded"}`, Video{Kind: VideoEmbedded, Payload: "https://cdn/x.mp4"}},
		{`{"videoUrl":""}`, Video{}},
	}
	for _, tt := range tests {
		s, err := Decode([]byte(tt.in))
		if err != nil {
			t.Fatalf("Decode(%s): %v", tt.in, err)
		}
		if s.Video != tt.want {
			t.Errorf("Decode(%s).Video = %+v, want %+v", tt.in, s.Video, tt.want)
		}
	}
}

func TestSnapshotRoundTripKeepsKind(t *testing.T) {
	var s Snapshot
	s.SetVideo(NewVideo("https://example.com/v", VideoEmbedded))
	b, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got Snapshot
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Video.Kind != VideoEmbedded {
		t.Errorf("Kind = %q, want embedded", got.Video.Kind)
	}
}

func TestAppendAndRemoveAt(t *testing.T) {
	items := []NewsItem{{Title: "a"}, {Title: "b"}}
	added := Append(items, NewsItem{Title: "c"})
	if len(items) != 2 {
		t.Fatal("Append modified input")
	}
	if len(added) != 3 || added[2].Title != "c" {
		t.Fatalf("Append = %+v", added)
	}

	removed := RemoveAt(added, 1)
	if len(removed) != 2 || removed[0].Title != "a" || removed[1].Title != "c" {
		t.Errorf("RemoveAt(1) = %+v", removed)
	}
	if len(added) != 3 {
		t.Error("RemoveAt modified input")
	}

	same := RemoveAt(added, 7)
	if len(same) != 3 {
		t.Errorf("RemoveAt out of range len = %d, want 3", len(same))
	}
}

// Any interleaving of adds and index deletes matches a plain slice model.
func TestListOperationsMatchModel(t *testing.T) {
	type op struct {
		add   string
		del   int
		isDel bool
	}
	ops := []op{
		{add: "1"}, {add: "2"}, {add: "3"}, {isDel: true, del: 0},
		{add: "4"}, {isDel: true, del: 2}, {isDel: true, del: 1}, {add: "5"},
	}
	var items []NewsItem
	var model []string
	for _, o := range ops {
		if o.isDel {
			items = RemoveAt(items, o.del)
			model = append(model[:o.del:o.del], model[o.del+1:]...)
			continue
		}
		items = Append(items, NewsItem{Title: o.add})
		model = append(model, o.add)
	}
	if len(items) != len(model) {
		t.Fatalf("len = %d, want %d", len(items), len(model))
	}
	for i := range model {
		if items[i].Title != model[i] {
			t.Errorf("items[%d] = %q, want %q", i, items[i].Title, model[i])
		}
	}
}

func TestSnapshotKeepsUnknownKeys(t *testing.T) {
	in := `{"newsItems":[{"title":"a","description":"b","date":"2024-01-01"}],` +
		`"galleryItems":"oops","videoUrl":"v","videoKind":"external","siteNotice":"keep me"}`
	s, err := Decode([]byte(in))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	s.SetVideo(NewVideo("data:video/mp4;base64,AAA", VideoEmbedded))
	b, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got map[string]json.RawMessage
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	checks := map[string]string{
		"siteNotice":   `"keep me"`,
		"galleryItems": `"oops"`,
		"videoUrl":     `"data:video/mp4;base64,AAA"`,
		"videoKind":    `"embedded"`,
		"newsItems":    `[{"date":"2024-01-01","description":"b","title":"a"}]`,
	}
	for k, want := range checks {
		if string(got[k]) != want {
			t.Errorf("%s = %s, want %s", k, got[k], want)
		}
	}
}

func TestItemExtraFieldsSurviveEdits(t *testing.T) {
	var items []NewsItem
	if err := json.Unmarshal([]byte(`[{"title":" a ","description":"b","pinned":true}]`), &items); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	items = Append(items, NewsItem{Title: "c", Description: "d"})
	items[0] = TrimNews(items[0])
	b, err := json.Marshal(items)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `[{"description":"b","pinned":true,"title":"a"},{"title":"c","description":"d"}]`
	if string(b) != want {
		t.Errorf("items = %s, want %s", b, want)
	}
}
