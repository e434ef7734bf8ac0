package content

import (
	"encoding/json"
)

// Items keep keys they do not model so that a read-modify-write passes them
// through untouched. The leftovers are held as a JSON object string, which
// keeps the item types comparable.

type newsAlias NewsItem

// UnmarshalJSON decodes title and description and keeps any other keys.
func (n *NewsItem) UnmarshalJSON(data []byte) error {
	var a newsAlias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	extra, err := splitExtra(data, "title", "description")
	if err != nil {
		return err
	}
	a.extra = extra
	*n = NewsItem(a)
	return nil
}

// MarshalJSON writes title, description and any keys kept from decoding.
func (n NewsItem) MarshalJSON() ([]byte, error) {
	b, err := json.Marshal(newsAlias(n))
	if err != nil {
		return nil, err
	}
	return joinExtra(b, n.extra)
}

type galleryAlias GalleryItem

// UnmarshalJSON decodes src and alt and keeps any other keys.
func (g *GalleryItem) UnmarshalJSON(data []byte) error {
	var a galleryAlias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	extra, err := splitExtra(data, "src", "alt")
	if err != nil {
		return err
	}
	a.extra = extra
	*g = GalleryItem(a)
	return nil
}

// MarshalJSON writes src, alt and any keys kept from decoding.
func (g GalleryItem) MarshalJSON() ([]byte, error) {
	b, err := json.Marshal(galleryAlias(g))
	if err != nil {
		return nil, err
	}
	return joinExtra(b, g.extra)
}

// splitExtra returns the keys of the object in data other than known,
// encoded as an object, or "" when there are none.
func splitExtra(data []byte, known ...string) (string, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return "", err
	}
	for _, k := range known {
		delete(fields, k)
	}
	if len(fields) == 0 {
		return "", nil
	}
	b, err := json.Marshal(fields)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// joinExtra merges the kept keys into the encoded object base. Keys already
// in base win.
func joinExtra(base []byte, extra string) ([]byte, error) {
	if extra == "" {
		return base, nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(extra), &fields); err != nil {
		return nil, err
	}
	var own map[string]json.RawMessage
	if err := json.Unmarshal(base, &own); err != nil {
		return nil, err
	}
	for k, v := range own {
		fields[k] = v
	}
	return json.Marshal(fields)
}
