package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		App: AppConfig{
			Environment: "development",
		},
		Logger: LoggerConfig{
			Level: "info",
		},
		Data: DataConfig{
			BasePath: "/some/path",
		},
		Sessions: SessionsConfig{
			ReminderSweepInterval: time.Minute,
		},
		RateLimit: RateLimitConfig{
			SubmitRPS:   10,
			SubmitBurst: 30,
		},
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidate_AllEnvironments(t *testing.T) {
	tests := []struct {
		env   string
		valid bool
	}{
		{"development", true},
		{"staging", true},
		{"production", true},
		{"test", false},
		{"", false},
		{"DEVELOPMENT", false}, // case sensitive
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			cfg := validConfig()
			cfg.App.Environment = tt.env

			err := cfg.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestValidate_AllLogLevels(t *testing.T) {
	tests := []struct {
		level string
		valid bool
	}{
		{"debug", true},
		{"info", true},
		{"warn", true},
		{"error", true},
		{"DEBUG", true},  // case insensitive
		{"trace", false}, // not supported
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			cfg := validConfig()
			cfg.Logger.Level = tt.level

			err := cfg.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestValidate_EmptyDataPath(t *testing.T) {
	cfg := validConfig()
	cfg.Data.BasePath = ""
	assert.Error(t, cfg.Validate())
}

func TestValidate_BadSweepInterval(t *testing.T) {
	cfg := validConfig()
	cfg.Sessions.ReminderSweepInterval = 0
	assert.Error(t, cfg.Validate())
}

func TestValidate_BadRateLimits(t *testing.T) {
	cfg := validConfig()
	cfg.RateLimit.SubmitRPS = 0
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.RateLimit.SubmitBurst = -1
	assert.Error(t, cfg.Validate())
}

func TestExpandDataPaths_DerivesLocations(t *testing.T) {
	cfg := validConfig()
	cfg.Data.BasePath = "/srv/pulsecheck"

	require.NoError(t, cfg.expandDataPaths())

	assert.Equal(t, "/srv/pulsecheck", cfg.Data.BasePath)
	assert.Equal(t, filepath.Join("/srv/pulsecheck", "db"), cfg.Data.DatabasePath)
	assert.Equal(t, filepath.Join("/srv/pulsecheck", "search"), cfg.Data.SearchPath)
	assert.Equal(t, filepath.Join("/srv/pulsecheck", "thresholds.json"), cfg.Data.ThresholdsPath)
}

func TestExpandDataPaths_DefaultsToHome(t *testing.T) {
	cfg := validConfig()
	cfg.Data.BasePath = ""

	require.NoError(t, cfg.expandDataPaths())

	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "PulseCheck", "data"), cfg.Data.BasePath)
}

func TestExpandPath_Tilde(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	expanded, err := expandPath("~/pulse/data", "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "pulse", "data"), expanded)
}

func TestGetConfigValue_Precedence(t *testing.T) {
	t.Setenv("PULSECHECK_TEST_KEY", "from-env")

	assert.Equal(t, "from-flag", getConfigValue("from-flag", "PULSECHECK_TEST_KEY", "default"))
	assert.Equal(t, "from-env", getConfigValue("", "PULSECHECK_TEST_KEY", "default"))
	assert.Equal(t, "default", getConfigValue("", "PULSECHECK_TEST_MISSING", "default"))
}

func TestGetBoolConfigValue(t *testing.T) {
	assert.True(t, getBoolConfigValue("true", "MISSING", false))
	assert.True(t, getBoolConfigValue("1", "MISSING", false))
	assert.True(t, getBoolConfigValue("YES", "MISSING", false))
	assert.False(t, getBoolConfigValue("no", "MISSING", true))
	assert.True(t, getBoolConfigValue("", "MISSING", true))
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	content := "# comment\nPULSECHECK_ENVFILE_A=hello\nPULSECHECK_ENVFILE_B=\"quoted\"\n"
	require.NoError(t, os.WriteFile(envPath, []byte(content), 0o600))

	t.Cleanup(func() {
		_ = os.Unsetenv("PULSECHECK_ENVFILE_A")
		_ = os.Unsetenv("PULSECHECK_ENVFILE_B")
	})

	require.NoError(t, loadEnvFile(envPath))
	assert.Equal(t, "hello", os.Getenv("PULSECHECK_ENVFILE_A"))
	assert.Equal(t, "quoted", os.Getenv("PULSECHECK_ENVFILE_B"))
}

func TestLoadEnvFile_BadLine(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envPath, []byte("NOT A PAIR\n"), 0o600))

	assert.Error(t, loadEnvFile(envPath))
}
