// Package middleware provides HTTP middleware for LocalPaste: security
// headers, CORS enforcement, and request body size limiting.
package middleware

import (
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/pszemraj/localpaste/internal/config"
)

const (
	cspHeaderValue = "default-src 'self'; script-src 'self' 'unsafe-inline'; " +
		"style-src 'self' 'unsafe-inline'; img-src 'self' data:; font-src 'self'; " +
		"connect-src 'self'; frame-ancestors 'none'; base-uri 'self'; form-action 'self'"

	jsonBodyOverheadBytes           = 16 * 1024
	jsonStringEscapeExpansionFactor = 6
	maxJSONRequestBodyBytes         = 256 * 1024 * 1024
)

// SecurityHeaders returns middleware applying LocalPaste's fixed security
// header set to every response.
func SecurityHeaders() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("Content-Security-Policy", cspHeaderValue)
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("X-LocalPaste-Server", "1")
			next.ServeHTTP(w, r)
		})
	}
}

// uncappedRequestBodyLimit computes the transport body limit implied by a
// configured max paste size, before the hard safety cap is applied. JSON
// string escaping can expand a decoded byte into a \u00XX sequence (6
// bytes), hence the multiplier; the additive term covers JSON structural
// overhead (field names, braces, other fields).
func uncappedRequestBodyLimit(maxPasteSize int64) int64 {
	return maxPasteSize*jsonStringEscapeExpansionFactor + jsonBodyOverheadBytes
}

// RequestBodyLimit computes the transport-level request body cap for a
// configured max paste size, capped at a hard ceiling regardless of how
// large max paste size is configured.
func RequestBodyLimit(maxPasteSize int64) int64 {
	limit := uncappedRequestBodyLimit(maxPasteSize)
	if limit > maxJSONRequestBodyBytes {
		return maxJSONRequestBodyBytes
	}
	return limit
}

// BodySizeLimit returns middleware that rejects request bodies larger than
// the computed transport cap with 413 Payload Too Large. Decoded-content
// size (the MAX_PASTE_SIZE check proper) is enforced separately by the
// handler, after JSON decoding, and returns 400.
func BodySizeLimit(maxPasteSize int64) func(http.Handler) http.Handler {
	limit := RequestBodyLimit(maxPasteSize)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > limit {
				http.Error(w, `{"error":"request body exceeds transport limit"}`, http.StatusRequestEntityTooLarge)
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, limit)
			next.ServeHTTP(w, r)
		})
	}
}

// isLoopbackHost reports whether host names localhost or an address in a
// loopback range. Bracketed IPv6 literals are unwrapped first.
func isLoopbackHost(host string) bool {
	if strings.EqualFold(host, "localhost") {
		return true
	}
	normalized := strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
	ip := net.ParseIP(normalized)
	return ip != nil && ip.IsLoopback()
}

func parseHTTPOriginURI(origin string) (*url.URL, bool) {
	u, err := url.Parse(origin)
	if err != nil {
		return nil, false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, false
	}
	return u, true
}

func originPort(u *url.URL) (int, bool) {
	if p := u.Port(); p != "" {
		if port, err := strconv.Atoi(p); err == nil {
			return port, true
		}
		return 0, false
	}
	switch u.Scheme {
	case "http":
		return 80, true
	case "https":
		return 443, true
	default:
		return 0, false
	}
}

// isLoopbackOriginForListenerPort reports whether an Origin header value
// names a loopback host whose port matches the server's listener port.
func isLoopbackOriginForListenerPort(origin string, listenerPort int) bool {
	u, ok := parseHTTPOriginURI(origin)
	if !ok || !isLoopbackHost(u.Hostname()) {
		return false
	}
	port, ok := originPort(u)
	return ok && port == listenerPort
}

// CORS returns middleware enforcing LocalPaste's CORS policy: with public
// access disabled, only loopback origins matching the listener's own port
// are reflected; with public access enabled, any origin is allowed.
func CORS(cfg *config.Config, listenerPort int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" {
				allowed := cfg.AllowPublicAccess || isLoopbackOriginForListenerPort(origin, listenerPort)
				if allowed {
					h := w.Header()
					if cfg.AllowPublicAccess {
						h.Set("Access-Control-Allow-Origin", "*")
					} else {
						h.Set("Access-Control-Allow-Origin", origin)
						h.Set("Vary", "Origin")
					}
					h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE")
					if cfg.AllowPublicAccess {
						h.Set("Access-Control-Allow-Headers", "*")
					} else {
						h.Set("Access-Control-Allow-Headers", "Content-Type, Accept")
					}
				}
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// FolderDeprecation sets the deprecation headers (folder APIs deprecated in
// favor of tags and search) on every response of the routes it wraps. It
// does not inspect requests for a folder_id field or query parameter.
func FolderDeprecation() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("Deprecation", "true")
			h.Set("Sunset", "Fri, 31 Dec 2027 23:59:59 GMT")
			h.Set("Warning", `299 - "Folder APIs are deprecated; prefer tags, search, and smart filters"`)
			next.ServeHTTP(w, r)
		})
	}
}
