package config

import (
	"maps"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// minimalRequiredConfig provides the smallest environment Load accepts.
// Every setting has a default, so this only pins the environment.
func minimalRequiredConfig() map[string]string {
	return map[string]string{
		"SLIPUP_APP_ENV": "test",
	}
}

// mergeEnvVars merges additional env vars with minimal required config
func mergeEnvVars(additional map[string]string) map[string]string {
	result := minimalRequiredConfig()
	maps.Copy(result, additional)
	return result
}

// redisProductionConfig returns a valid production configuration that reads flags from Redis.
func redisProductionConfig() map[string]string {
	return map[string]string{
		"SLIPUP_APP_ENV":               "production",
		"SLIPUP_FLAGS_REMOTE_ENDPOINT": "redis://prod-redis.example.com:6379/0",
		"SLIPUP_REDIS_HOST":            "prod-redis.example.com",
		"SLIPUP_REDIS_PORT":            "6379",
		"SLIPUP_REDIS_PASSWORD":        "RedisSecure123!",
		"SLIPUP_REDIS_TLS_ENABLED":     "true",
	}
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		want    func(t *testing.T, cfg *Config)
		wantErr bool
	}{
		{
			name:    "Should use defaults when no env vars are set",
			envVars: map[string]string{},
			want: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "slipup-flags", cfg.App.Name)
				assert.Equal(t, "1.0.0", cfg.App.Version)
				assert.Equal(t, "development", cfg.App.Environment)
				assert.Equal(t, "info", cfg.App.LogLevel)
				assert.Equal(t, "text", cfg.App.LogFormat)
				assert.Equal(t, 30*time.Second, cfg.App.ShutdownTimeout)
				assert.Equal(t, "", cfg.Flags.RemoteEndpoint)
				assert.Equal(t, "android", cfg.Flags.Platform)
				assert.Equal(t, 5*time.Second, cfg.Flags.FetchTimeout)
				assert.Equal(t, "9090", cfg.Observability.Port)
				assert.Equal(t, "8080", cfg.Inspect.Port)
				assert.True(t, cfg.App.IsDevelopment())
			},
			wantErr: false,
		},
		{
			name: "Should load all custom environment variables correctly",
			envVars: mergeEnvVars(map[string]string{
				"SLIPUP_APP_NAME":             "test-app",
				"SLIPUP_APP_VERSION":          "2.3.1",
				"SLIPUP_APP_ENV":              "staging",
				"SLIPUP_APP_LOG_LEVEL":        "debug",
				"SLIPUP_APP_LOG_FORMAT":       "json",
				"SLIPUP_APP_SHUTDOWN_TIMEOUT": "60s",
				"SLIPUP_INSPECT_PORT":         "8181",
			}),
			want: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "test-app", cfg.App.Name)
				assert.Equal(t, "2.3.1", cfg.App.Version)
				assert.Equal(t, "staging", cfg.App.Environment)
				assert.Equal(t, "debug", cfg.App.LogLevel)
				assert.Equal(t, "json", cfg.App.LogFormat)
				assert.Equal(t, 60*time.Second, cfg.App.ShutdownTimeout)
				assert.Equal(t, "8181", cfg.Inspect.Port)
				assert.False(t, cfg.App.IsDevelopment())
			},
			wantErr: false,
		},
		{
			name: "Should fail validation on invalid environment value",
			envVars: mergeEnvVars(map[string]string{
				"SLIPUP_APP_ENV": "invalid",
			}),
			wantErr: true,
		},
		{
			name: "Should fail validation on invalid log level",
			envVars: mergeEnvVars(map[string]string{
				"SLIPUP_APP_LOG_LEVEL": "trace",
			}),
			wantErr: true,
		},
		{
			name: "Should fail validation on invalid log format",
			envVars: mergeEnvVars(map[string]string{
				"SLIPUP_APP_LOG_FORMAT": "xml",
			}),
			wantErr: true,
		},
		{
			name: "Should not require Redis settings when flags come from HTTP",
			envVars: mergeEnvVars(map[string]string{
				"SLIPUP_APP_ENV":               "production",
				"SLIPUP_FLAGS_REMOTE_ENDPOINT": "https://cdn.growthbook.io",
			}),
			want: func(t *testing.T, cfg *Config) {
				assert.False(t, cfg.Flags.UsesRedis())
				assert.False(t, cfg.Redis.IsConfigured())
			},
			wantErr: false,
		},
		{
			name: "Should fail validation on invalid inspect port",
			envVars: mergeEnvVars(map[string]string{
				"SLIPUP_INSPECT_PORT": "70000",
			}),
			wantErr: true,
		},
		{
			name: "Should skip inspect validation when it is disabled",
			envVars: mergeEnvVars(map[string]string{
				"SLIPUP_INSPECT_ENABLED": "false",
				"SLIPUP_INSPECT_PORT":    "70000",
			}),
			want: func(t *testing.T, cfg *Config) {
				assert.False(t, cfg.Inspect.Enabled)
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// t.Setenv automatically prevents parallel execution and cleans up after the test
			for key, value := range tt.envVars {
				t.Setenv(key, value)
			}

			cfg, err := Load()

			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			if tt.want != nil {
				tt.want(t, cfg)
			}
		})
	}
}

func TestInspectConfig_Addr(t *testing.T) {
	cfg := InspectConfig{Host: "127.0.0.1", Port: "8080"}

	assert.Equal(t, "127.0.0.1:8080", cfg.Addr())
}
