package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pszemraj/localpaste/internal/config"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestSecurityHeaders_SetsFixedHeaderSet(t *testing.T) {
	wrapped := SecurityHeaders()(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rr := httptest.NewRecorder()
	wrapped.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Security-Policy"), "default-src 'self'")
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rr.Header().Get("X-Frame-Options"))
	assert.Equal(t, "1", rr.Header().Get("X-LocalPaste-Server"))
}

func TestRequestBodyLimit_CapsAtHardCeiling(t *testing.T) {
	limit := RequestBodyLimit(1024 * 1024 * 1024)
	assert.Equal(t, int64(maxJSONRequestBodyBytes), limit)
}

func TestRequestBodyLimit_UncappedForSmallPasteSize(t *testing.T) {
	limit := RequestBodyLimit(1024)
	assert.Equal(t, int64(1024*6+16*1024), limit)
}

func TestBodySizeLimit_RejectsOversizedContentLength(t *testing.T) {
	wrapped := BodySizeLimit(10)(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.ContentLength = RequestBodyLimit(10) + 1
	rr := httptest.NewRecorder()
	wrapped.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
}

func TestBodySizeLimit_AllowsWithinLimit(t *testing.T) {
	wrapped := BodySizeLimit(1024)(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.ContentLength = 10
	rr := httptest.NewRecorder()
	wrapped.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestIsLoopbackOriginForListenerPort_MatchesLocalhostAndPort(t *testing.T) {
	assert.True(t, isLoopbackOriginForListenerPort("http://localhost:3055", 3055))
	assert.True(t, isLoopbackOriginForListenerPort("http://127.0.0.1:3055", 3055))
	assert.False(t, isLoopbackOriginForListenerPort("http://localhost:3056", 3055))
	assert.False(t, isLoopbackOriginForListenerPort("http://example.com:3055", 3055))
}

func TestIsLoopbackOriginForListenerPort_DefaultPortsWhenOmitted(t *testing.T) {
	assert.True(t, isLoopbackOriginForListenerPort("http://localhost", 80))
	assert.True(t, isLoopbackOriginForListenerPort("https://localhost", 443))
}

func TestCORS_RejectsNonLoopbackOriginWhenPublicAccessDisabled(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.AllowPublicAccess = false
	wrapped := CORS(cfg, 3055)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "http://evil.example.com")
	rr := httptest.NewRecorder()
	wrapped.ServeHTTP(rr, req)

	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_ReflectsMatchingLoopbackOrigin(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.AllowPublicAccess = false
	wrapped := CORS(cfg, 3055)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "http://localhost:3055")
	rr := httptest.NewRecorder()
	wrapped.ServeHTTP(rr, req)

	assert.Equal(t, "http://localhost:3055", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_AllowsAnyOriginWhenPublicAccessEnabled(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.AllowPublicAccess = true
	wrapped := CORS(cfg, 3055)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "http://evil.example.com")
	rr := httptest.NewRecorder()
	wrapped.ServeHTTP(rr, req)

	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestFolderDeprecation_SetsHeaders(t *testing.T) {
	wrapped := FolderDeprecation()(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/folders", nil)
	rr := httptest.NewRecorder()
	wrapped.ServeHTTP(rr, req)

	assert.Equal(t, "true", rr.Header().Get("Deprecation"))
	assert.NotEmpty(t, rr.Header().Get("Sunset"))
	assert.Contains(t, rr.Header().Get("Warning"), "deprecated")
}
