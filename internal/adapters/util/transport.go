package util

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// LoggingTransport is an http.RoundTripper that logs each request at debug
// level. Bodies are never dumped; feed pages and EPUB payloads are large.
type LoggingTransport struct {
	Base http.RoundTripper
	Log  zerolog.Logger
}

func (t *LoggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	start := time.Now()
	resp, err := base.RoundTrip(req)
	if err != nil {
		t.Log.Debug().
			Str("method", req.Method).
			Str("url", req.URL.String()).
			Dur("elapsed", time.Since(start)).
			Err(err).
			Msg("outbound request failed")
		return resp, err
	}

	t.Log.Debug().
		Str("method", req.Method).
		Str("url", req.URL.String()).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("outbound request")

	return resp, nil
}
