// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements RedactingLogger, the access logger of the API. It
// never logs bodies (uploads are audio), masks credential headers such as
// Authorization and X-Vendor-Token, blanks sensitive query parameters and
// scrubs emails from what remains.
package middleware

import (
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const (
	redacted = "[REDACTED]"
	// maxQueryLogLength caps the logged query string.
	maxQueryLogLength = 1024
)

// RedactOptions extends the built-in masking rules.
type RedactOptions struct {
	// MaskHeaders are header names whose values are replaced entirely.
	MaskHeaders []string
	// MaskQuery are query parameter names whose values are replaced.
	MaskQuery []string
}

var emailRE = regexp.MustCompile(`(?i)[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}`)

// RedactingLogger logs one structured line per request and stores a
// request-scoped logger (request id, user id, route) for LoggerFrom.
// 5xx responses log at error level and 4xx at warn.
func RedactingLogger(opts RedactOptions) gin.HandlerFunc {
	maskHeaders := lowerSet(opts.MaskHeaders, "authorization", "cookie", "set-cookie", HeaderVendorToken)
	maskQuery := lowerSet(opts.MaskQuery, "token", "access_token", "secret", "secret_access_key")

	return func(c *gin.Context) {
		start := time.Now()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}

		scoped := log.With().
			Str("request_id", asString(c.Value(requestIDKey))).
			Str("method", c.Request.Method).
			Str("route", route).
			Logger()
		c.Set(loggerKey, &scoped)

		headers := make(map[string]string, len(c.Request.Header))
		for k, vv := range c.Request.Header {
			if _, ok := maskHeaders[strings.ToLower(k)]; ok {
				headers[k] = redacted
				continue
			}
			headers[k] = emailRE.ReplaceAllString(strings.Join(vv, ", "), redacted)
		}
		query := redactQuery(c.Request.URL.RawQuery, maskQuery)

		c.Next()

		status := c.Writer.Status()
		ev := scoped.Info()
		switch {
		case status >= 500 || len(c.Errors) > 0:
			ev = scoped.Error()
		case status >= 400:
			ev = scoped.Warn()
		}
		if len(c.Errors) > 0 {
			ev = ev.Str("errors", c.Errors.String())
		}
		ev.Str("user_id", UserID(c)).
			Str("remote_ip", c.ClientIP()).
			Str("query", truncate(query, maxQueryLogLength)).
			Int("status", status).
			Int64("bytes_in", c.Request.ContentLength).
			Int("bytes_out", c.Writer.Size()).
			Dur("latency", time.Since(start)).
			Interface("headers", headers).
			Msg("http_request")
	}
}

// redactQuery masks listed parameters and scrubs emails from the rest. An
// unparsable query is dropped.
func redactQuery(raw string, mask map[string]struct{}) string {
	if raw == "" {
		return ""
	}
	vals, err := url.ParseQuery(raw)
	if err != nil {
		return redacted
	}
	for k, vv := range vals {
		_, secret := mask[strings.ToLower(k)]
		for i := range vv {
			if secret {
				vv[i] = redacted
			} else {
				vv[i] = emailRE.ReplaceAllString(vv[i], redacted)
			}
		}
	}
	return vals.Encode()
}

func lowerSet(extra []string, base ...string) map[string]struct{} {
	out := make(map[string]struct{}, len(base)+len(extra))
	for _, s := range append(base, extra...) {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out[s] = struct{}{}
		}
	}
	return out
}
