package middlewares

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"physio-server/services/physio-api/internal/utils/platformerrors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestCORS(t *testing.T) {
	tests := []struct {
		name       string
		origins    []string
		origin     string
		method     string
		wantOrigin string
		wantStatus int
	}{
		{name: "wildcard", origins: []string{"*"}, origin: "http://app.local", method: http.MethodGet, wantOrigin: "*", wantStatus: http.StatusOK},
		{name: "listed origin echoed", origins: []string{"http://a.local", "http://b.local"}, origin: "http://b.local", method: http.MethodGet, wantOrigin: "http://b.local", wantStatus: http.StatusOK},
		{name: "unlisted origin", origins: []string{"http://a.local"}, origin: "http://evil.local", method: http.MethodGet, wantOrigin: "", wantStatus: http.StatusOK},
		{name: "preflight", origins: []string{"*"}, origin: "http://app.local", method: http.MethodOptions, wantOrigin: "*", wantStatus: http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := gin.New()
			engine.Use(CORSWithConfig(DefaultCORSConfig(tt.origins)))
			engine.Any("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

			req := httptest.NewRequest(tt.method, "/ping", nil)
			req.Header.Set("Origin", tt.origin)
			rec := httptest.NewRecorder()
			engine.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantOrigin, rec.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}

func TestRequestIDPropagates(t *testing.T) {
	engine := gin.New()
	engine.Use(RequestID())
	var fromCtx string
	engine.GET("/ping", func(c *gin.Context) {
		fromCtx = platformerrors.RequestIDFromContext(c.Request.Context())
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	assert.Equal(t, "req-123", rec.Header().Get(RequestIDHeader))
	assert.Equal(t, "req-123", fromCtx)

	rec = httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
}

func TestMaskQuery(t *testing.T) {
	assert.Equal(t, "", maskQuery(""))
	assert.Equal(t, "limit=10", maskQuery("limit=10"))
	assert.Equal(t, "access_token=%2A%2A%2A&mark_read=false", maskQuery("access_token=secret&mark_read=false"))
}
