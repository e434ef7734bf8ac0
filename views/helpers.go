package views

import (
	"encoding/json"
	"net/url"
	"path"
	"strings"
)

// buildURL joins path segments onto a base URL, ensuring a trailing slash.
func buildURL(base string, pathSegments ...string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	u.Path = path.Join(u.Path, path.Join(pathSegments...))
	if len(pathSegments) > 0 && !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u.String()
}

// WebsiteJsonLD produces a Schema.org WebSite JSON-LD block using cfg values.
func WebsiteJsonLD(cfg SiteConfig) string {
	data := map[string]interface{}{
		"@context": "https://schema.org",
		"@type":    "WebSite",
		"name":     cfg.Name,
		"url":      buildURL(cfg.URL),
	}
	if cfg.Description != "" {
		data["description"] = cfg.Description
	}
	b, err := json.Marshal(data)
	if err != nil {
		return "{}"
	}
	return string(b)
}

func pageTitle(cfg SiteConfig, meta PageMeta) string {
	if meta.Title == "" {
		return cfg.Name
	}
	return meta.Title + " | " + cfg.Name
}

func pageDescription(cfg SiteConfig, meta PageMeta) string {
	if meta.Description != "" {
		return meta.Description
	}
	return cfg.Description
}

func backendLabel(realtime bool) string {
	if realtime {
		return BackendRealtime
	}
	return BackendPolling
}
