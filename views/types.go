package views

import (
	"github.com/eringen/bulletin/content"
	"github.com/eringen/bulletin/viewer"
)

// Backend indicator texts shown on the dashboard.
const (
	BackendRealtime = "Connected to realtime backend"
	BackendPolling  = "Using REST backend (/api/data) or local store"
)

// SiteConfig holds site-wide settings. Every handler passes this to
// templates so nothing is hardcoded.
type SiteConfig struct {
	Name        string
	URL         string
	Description string
}

// PageMeta carries per-page metadata into the <head> template.
type PageMeta struct {
	Title       string
	Description string
	URL         string // canonical
}

// HomeData is what the public page renders.
type HomeData struct {
	Surface viewer.Surface
	// LiveURL is the websocket endpoint viewers connect to; empty disables
	// live updates.
	LiveURL string
}

// DashboardData is what the admin dashboard renders.
type DashboardData struct {
	Content   content.Snapshot
	Status    string // last sync outcome, empty before the first edit
	Realtime  bool
	Message   string
	CSRFToken string
}
