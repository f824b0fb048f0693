package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIClientDecodesErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":{"message":"device session already running","type":"CONFLICT","request_id":"req-1"}}`))
	}))
	defer srv.Close()

	_, err := newAPIClient(srv.URL, "tok").post(context.Background(), "/v1/devices/glove/start", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "409")
	assert.Contains(t, err.Error(), "device session already running")
	assert.Contains(t, err.Error(), "req-1")
}

func TestAPIClientReturnsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/healthz", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	body, err := newAPIClient(srv.URL, "").get(context.Background(), "/healthz")
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))
}

func TestFrameSchema(t *testing.T) {
	data, err := frameSchema()
	require.NoError(t, err)

	var schema map[string]any
	require.NoError(t, json.Unmarshal(data, &schema))
	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	for _, field := range []string{"type", "device", "patient_id", "progress", "at"} {
		assert.Contains(t, props, field)
	}
}

func TestParseKind(t *testing.T) {
	kind, err := parseKind("glove")
	require.NoError(t, err)
	assert.Equal(t, "glove", string(kind))

	_, err = parseKind("treadmill")
	assert.Error(t, err)
}

func TestSchemaCommandWritesToStdout(t *testing.T) {
	var out bytes.Buffer
	schemaCmd.SetOut(&out)
	require.NoError(t, schemaCmd.RunE(schemaCmd, nil))
	assert.Contains(t, out.String(), "patient_id")
}
