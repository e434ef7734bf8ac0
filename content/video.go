package content

import "strings"

// VideoKind says how a video payload is played back.
type VideoKind string

const (
	// VideoEmbedded is a self-contained data URI played in an inline player.
	VideoEmbedded VideoKind = "embedded"
	// VideoExternal is a URL loaded into an embed frame.
	VideoExternal VideoKind = "external"
)

const legacyEmbeddedPrefix = "data:video"

// Video is the featured video reference. The kind is decided when the video
// is saved and travels with the payload.
type Video struct {
	Kind    VideoKind `json:"kind"`
	Payload string    `json:"payload"`
}

// NewVideo builds a Video. An unknown or empty kind is resolved from the
// payload the way values written before kinds existed are read.
func NewVideo(payload string, kind VideoKind) Video {
	if payload == "" {
		return Video{}
	}
	switch kind {
	case VideoEmbedded, VideoExternal:
		return Video{Kind: kind, Payload: payload}
	}
	return VideoFromLegacy(payload)
}

// VideoFromLegacy classifies a bare string that carries no kind.
func VideoFromLegacy(payload string) Video {
	if payload == "" {
		return Video{}
	}
	if strings.HasPrefix(payload, legacyEmbeddedPrefix) {
		return Video{Kind: VideoEmbedded, Payload: payload}
	}
	return Video{Kind: VideoExternal, Payload: payload}
}

// IsZero reports whether no video is set.
func (v Video) IsZero() bool { return v.Payload == "" }

// Embedded reports whether v plays inline.
func (v Video) Embedded() bool { return v.Kind == VideoEmbedded }
