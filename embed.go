package bulletin

import "embed"

// EmbeddedAssets contains static assets shipped with the site:
// site.css and live.js
//
//go:embed embedded/*
var EmbeddedAssets embed.FS
