package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, DefaultPrefix, cfg.SSIDPrefix)
	assert.Equal(t, DefaultPassword, cfg.Password)
	assert.Equal(t, "request", cfg.Strategy)
	assert.True(t, cfg.AutoEnableRadio)
	assert.True(t, cfg.Rescan)
	assert.Equal(t, []string{"nmtui", "connect"}, cfg.ManualArgv())
}

func TestLoadExplicitMissingFileFails(t *testing.T) {
	_, err := Load(viper.New(), filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `ssid_prefix: Lab_
password: hunter22
strategy: profile
interface: wlp2s0
auto_enable_radio: false
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)

	assert.Equal(t, "Lab_", cfg.SSIDPrefix)
	assert.Equal(t, "hunter22", cfg.Password)
	assert.Equal(t, "profile", cfg.Strategy)
	assert.Equal(t, "wlp2s0", cfg.Interface)
	assert.False(t, cfg.AutoEnableRadio)
	assert.Equal(t, "prefixjoin-debug.log", cfg.LogFile)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("PREFIXJOIN_SSID_PREFIX", "Env_")

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)
	assert.Equal(t, "Env_", cfg.SSIDPrefix)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"ok", Config{SSIDPrefix: "Tops_", Strategy: "request"}, false},
		{"auto", Config{SSIDPrefix: "Tops_", Strategy: "auto"}, false},
		{"empty prefix", Config{Strategy: "request"}, true},
		{"bad strategy", Config{SSIDPrefix: "Tops_", Strategy: "magic"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
