package remote

import (
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"
)

// Config selects and configures the backend once at startup.
type Config struct {
	Kind Kind

	// Polling.
	BaseURL    string
	DataPath   string
	HTTPClient *http.Client

	// Realtime. Store is required when Kind is KindRealtime.
	Store PathStore

	Logger logrus.FieldLogger
}

// Select builds the configured backend. There is no fallback between
// variants: a realtime config without a store is an error.
func Select(cfg Config) (Backend, error) {
	switch cfg.Kind {
	case KindRealtime:
		if cfg.Store == nil {
			return nil, fmt.Errorf("remote: realtime backend needs a path store")
		}
		return NewRealtime(cfg.Store), nil
	case KindPolling:
		var opts []ClientOption
		if cfg.DataPath != "" {
			opts = append(opts, WithDataPath(cfg.DataPath))
		}
		if cfg.HTTPClient != nil {
			opts = append(opts, WithHTTPClient(cfg.HTTPClient))
		}
		if cfg.Logger != nil {
			opts = append(opts, WithClientLogger(cfg.Logger))
		}
		return NewClient(cfg.BaseURL, opts...)
	}
	return nil, fmt.Errorf("remote: unknown backend kind %d", cfg.Kind)
}
