package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "USAGESTATS"

// Load reads .env, the YAML config (explicit path or config.yaml in ./configs or .),
// an optional config.<environment>.yaml overlay and USAGESTATS_* environment overrides.
func Load(path string) (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	bindKeys(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("error reading base config: %w", err)
			}
		}

		env := os.Getenv(envPrefix + "_APP_ENVIRONMENT")
		if env != "" {
			v.SetConfigName("config." + env)
			_ = v.MergeInConfig()
		}
	}

	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func loadEnvFile() {
	for _, path := range []string{".env", "../.env"} {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// bindKeys registers every scalar key so AutomaticEnv can override values
// that are absent from the config file.
func bindKeys(v *viper.Viper) {
	for _, key := range []string{
		"app.name", "app.environment",
		"server.addr", "server.base_url", "server.read_timeout", "server.write_timeout", "server.static_dir",
		"results.dir",
		"logs.root", "logs.minor_dir", "logs.periodic_dir", "logs.ssh_login", "logs.ssh_port", "logs.remote_dir",
		"loader.timeout", "loader.user_agent",
		"github.api_url", "github.owner", "github.repo", "github.username", "github.password",
		"github.app_id", "github.installation_id", "github.private_key_path",
		"redis.address", "redis.password", "redis.db", "redis.ttl",
		"geo.workers",
		"logging.level", "logging.format",
		"scripting.pool_size",
	} {
		_ = v.BindEnv(key)
	}
}

func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok || !strings.Contains(strVal, "$") {
			continue
		}
		if expanded := os.ExpandEnv(strVal); expanded != strVal && expanded != "" {
			v.Set(key, expanded)
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "usagestats"
	}
	if cfg.App.Environment == "" {
		cfg.App.Environment = "development"
	}

	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":5000"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15000
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 30000
	}

	if cfg.Results.Dir == "" {
		cfg.Results.Dir = "results"
	}

	if cfg.Logs.Root == "" {
		cfg.Logs.Root = "update_logs"
	}
	if cfg.Logs.MinorDir == "" {
		cfg.Logs.MinorDir = cfg.Logs.Root + "/minor"
	}
	if cfg.Logs.PeriodicDir == "" {
		cfg.Logs.PeriodicDir = cfg.Logs.Root + "/periodic"
	}
	if cfg.Logs.SSHPort == 0 {
		cfg.Logs.SSHPort = 440
	}

	if cfg.Loader.Timeout == 0 {
		cfg.Loader.Timeout = 10000
	}
	if cfg.Loader.UserAgent == "" {
		cfg.Loader.UserAgent = "usagestats dashboard/1.0"
	}

	if cfg.GitHub.APIURL == "" {
		cfg.GitHub.APIURL = "https://api.github.com"
	}

	if cfg.Redis.TTL == 0 {
		cfg.Redis.TTL = 7 * 24 * 3600
	}

	if cfg.Geo.Workers == 0 {
		cfg.Geo.Workers = 256
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "console"
	}

	if cfg.Scripting.PoolSize == 0 {
		cfg.Scripting.PoolSize = 4
	}
}

func validateConfig(cfg *Config) error {
	if cfg.Loader.Timeout < 0 {
		return fmt.Errorf("loader.timeout must not be negative")
	}
	if cfg.Geo.Workers < 0 {
		return fmt.Errorf("geo.workers must not be negative")
	}
	for i, c := range cfg.Charts {
		if c.Name == "" {
			return fmt.Errorf("charts[%d].name is required", i)
		}
		switch c.Kind {
		case "", "bar", "area":
		default:
			return fmt.Errorf("charts[%d].kind %q is not one of bar, area", i, c.Kind)
		}
		switch c.Transform {
		case "", "month":
		case "script":
			if c.Script == "" {
				return fmt.Errorf("charts[%d].script is required for transform script", i)
			}
		default:
			return fmt.Errorf("charts[%d].transform %q is not one of month, script", i, c.Transform)
		}
	}
	return nil
}
