package logger

import (
	"net/http"
	"time"
)

// Transport is an http.RoundTripper that logs every outbound request
// at debug level, and failures at warn level.
type Transport struct {
	// Base is the wrapped transport; http.DefaultTransport when nil
	Base http.RoundTripper
	// Logger receives the entries; the global logger when nil
	Logger *Logger
}

// NewTransport wraps base with request logging
func NewTransport(base http.RoundTripper, l *Logger) *Transport {
	return &Transport{Base: base, Logger: l}
}

// RoundTrip implements http.RoundTripper
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	log := Ctx(req.Context(), t.Logger)

	start := time.Now()
	resp, err := base.RoundTrip(req)
	duration := time.Since(start)

	fields := map[string]interface{}{
		"method":   req.Method,
		"host":     req.URL.Host,
		"path":     req.URL.Path,
		"query":    req.URL.RawQuery,
		"duration": duration.String(),
	}

	if err != nil {
		fields["error"] = err.Error()
		log.Warn("HTTP request failed", fields)
		return nil, err
	}

	fields["status"] = resp.StatusCode
	log.Debug("HTTP request", fields)
	return resp, nil
}
