package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	envPrefix       = "PREFIXJOIN"
	configDirName   = "prefixjoin"
	configFileName  = "config"
	DefaultPrefix   = "Tops_"
	DefaultPassword = "12345678"
)

type Config struct {
	SSIDPrefix      string `mapstructure:"ssid_prefix"`
	Password        string `mapstructure:"password"`
	Strategy        string `mapstructure:"strategy"`
	Interface       string `mapstructure:"interface"`
	AutoEnableRadio bool   `mapstructure:"auto_enable_radio"`
	ManualCommand   string `mapstructure:"manual_command"`
	Rescan          bool   `mapstructure:"rescan"`
	LogFile         string `mapstructure:"log_file"`
	LogLevel        string `mapstructure:"log_level"`
}

// SetDefaults registers every key so env vars and flags bind to them.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("ssid_prefix", DefaultPrefix)
	v.SetDefault("password", DefaultPassword)
	v.SetDefault("strategy", "request")
	v.SetDefault("interface", "")
	v.SetDefault("auto_enable_radio", true)
	v.SetDefault("manual_command", "nmtui connect")
	v.SetDefault("rescan", true)
	v.SetDefault("log_file", "prefixjoin-debug.log")
	v.SetDefault("log_level", "info")
}

// DefaultPath is $XDG_CONFIG_HOME/prefixjoin/config.yaml.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, configDirName, configFileName+".yaml")
}

// Load reads configPath (or the default path) into v. A missing file is not
// an error; values then come from defaults, the environment and bound flags.
func Load(v *viper.Viper, configPath string) (*Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	explicit := configPath != ""
	if !explicit {
		configPath = DefaultPath()
	}
	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			switch {
			case errors.As(err, &notFound), errors.Is(err, os.ErrNotExist):
				if explicit {
					return nil, err
				}
			default:
				return nil, err
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.SSIDPrefix == "" {
		return errors.New("ssid_prefix must not be empty")
	}
	switch strings.ToLower(c.Strategy) {
	case "", "auto", "request", "profile":
	default:
		return errors.New("strategy must be one of request, profile, auto")
	}
	return nil
}

// ManualArgv splits ManualCommand into program and arguments.
func (c *Config) ManualArgv() []string {
	return strings.Fields(c.ManualCommand)
}
