package httpserver

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMetricRoute(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{path: "/healthz", want: "/healthz"},
		{path: "/v1/devices/glove/start", want: "/v1/devices/glove/start"},
		{path: "/v1/conversations/3f2b9c1e-0000-4000-8000-000000000001/messages", want: "/v1/conversations/:id/messages"},
		{path: "/v1/users/abc/extra/segments", want: "/v1/users/abc/extra"},
		{path: "/v1/users/patient42x/devices", want: "/v1/users/:id/devices"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, metricRoute(httptest.NewRequest("GET", tt.path, nil)))
		})
	}
}
