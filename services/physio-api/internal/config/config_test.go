package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "physio-api", cfg.ServiceName)
	assert.Equal(t, ":8190", cfg.Addr())
	assert.Equal(t, 50, cfg.MessageHistoryLimit)
	assert.Equal(t, 10, cfg.SearchResultLimit)
	assert.Equal(t, ControllerSimulated, cfg.ControllerMode)
	assert.GreaterOrEqual(t, len(cfg.JWTSecret), minJWTSecretLength)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "redis broker without url",
			env:     map[string]string{"REALTIME_BROKER": "redis"},
			wantErr: "REDIS_URL is required",
		},
		{
			name:    "postgres broker on sqlite",
			env:     map[string]string{"REALTIME_BROKER": "postgres", "DB_DRIVER": "sqlite"},
			wantErr: "requires DB_DRIVER postgres",
		},
		{
			name:    "production without secret",
			env:     map[string]string{"ENVIRONMENT": "production"},
			wantErr: "AUTH_JWT_SECRET is required",
		},
		{
			name:    "short secret",
			env:     map[string]string{"AUTH_JWT_SECRET": "short"},
			wantErr: "at least 32 bytes",
		},
		{
			name:    "websocket controller without address",
			env:     map[string]string{"DEVICE_CONTROLLER_MODE": "websocket"},
			wantErr: "DEVICE_CONTROLLER_URL",
		},
		{
			name:    "oidc without jwks",
			env:     map[string]string{"OIDC_ENABLED": "true"},
			wantErr: "OIDC_JWKS_URL",
		},
		{
			name:    "unknown driver",
			env:     map[string]string{"DB_DRIVER": "mysql"},
			wantErr: "unsupported DB_DRIVER",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadCORSOrigins(t *testing.T) {
	t.Setenv("CORS_ALLOW_ORIGINS", "https://clinic.example,https://app.example")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"https://clinic.example", "https://app.example"}, cfg.CORSOrigins)
}
