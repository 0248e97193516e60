package config

import "time"

// Config is the root configuration for every usagestats command.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Server    ServerConfig    `mapstructure:"server"`
	Results   ResultsConfig   `mapstructure:"results"`
	Logs      LogsConfig      `mapstructure:"logs"`
	Loader    LoaderConfig    `mapstructure:"loader"`
	Charts    []ChartConfig   `mapstructure:"charts"`
	GitHub    GitHubConfig    `mapstructure:"github"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Geo       GeoConfig       `mapstructure:"geo"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Scripting ScriptingConfig `mapstructure:"scripting"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Addr         string `mapstructure:"addr"`
	BaseURL      string `mapstructure:"base_url"` // empty: derived from the incoming request
	ReadTimeout  int    `mapstructure:"read_timeout"`  // milliseconds
	WriteTimeout int    `mapstructure:"write_timeout"` // milliseconds
	StaticDir    string `mapstructure:"static_dir"`
}

type ResultsConfig struct {
	Dir string `mapstructure:"dir"`
}

// LogsConfig describes where update logs live and how they are fetched.
type LogsConfig struct {
	Root        string `mapstructure:"root"`
	MinorDir    string `mapstructure:"minor_dir"`
	PeriodicDir string `mapstructure:"periodic_dir"`
	SSHLogin    string `mapstructure:"ssh_login"`
	SSHPort     int    `mapstructure:"ssh_port"`
	RemoteDir   string `mapstructure:"remote_dir"`
}

type LoaderConfig struct {
	Timeout   int    `mapstructure:"timeout"` // milliseconds
	UserAgent string `mapstructure:"user_agent"`
}

// ChartConfig overrides one of the dashboard charts. Transform is "", "month" or "script".
type ChartConfig struct {
	Name       string `mapstructure:"name"`
	ElementID  string `mapstructure:"element_id"`
	Title      string `mapstructure:"title"`
	Kind       string `mapstructure:"kind"`
	ValueField string `mapstructure:"value_field"`
	LabelField string `mapstructure:"label_field"`
	Transform  string `mapstructure:"transform"`
	Script     string `mapstructure:"script"`
}

type GitHubConfig struct {
	APIURL         string `mapstructure:"api_url"`
	Owner          string `mapstructure:"owner"`
	Repo           string `mapstructure:"repo"`
	Username       string `mapstructure:"username"`
	Password       string `mapstructure:"password"`
	AppID          string `mapstructure:"app_id"`
	InstallationID string `mapstructure:"installation_id"`
	PrivateKeyPath string `mapstructure:"private_key_path"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	TTL      int    `mapstructure:"ttl"` // seconds
}

type GeoConfig struct {
	Workers int `mapstructure:"workers"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type ScriptingConfig struct {
	PoolSize int `mapstructure:"pool_size"`
}

// GetDuration converts milliseconds from config to time.Duration.
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}
