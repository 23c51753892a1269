package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Channel  ChannelConfig  `mapstructure:"channel"`
	REST     RESTConfig     `mapstructure:"rest"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Redis    RedisConfig    `mapstructure:"redis"`
	MySQL    MySQLConfig    `mapstructure:"mysql"`
	Server   ServerConfig   `mapstructure:"server"`
	Refresh  RefreshConfig  `mapstructure:"refresh"`
	Watch    WatchConfig    `mapstructure:"watch"`
	Instance InstanceConfig `mapstructure:"instance"`
}

type ChannelConfig struct {
	URL              string        `mapstructure:"url"`
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout"`
	BackoffMin       time.Duration `mapstructure:"backoff_min"`
	BackoffMax       time.Duration `mapstructure:"backoff_max"`
	MaxRetries       int           `mapstructure:"max_retries"`
}

type RESTConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type AuthConfig struct {
	Token string `mapstructure:"token"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type MySQLConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Host string `mapstructure:"host"`
}

type RefreshConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

type WatchConfig struct {
	ArtworkIDs []int64 `mapstructure:"artwork_ids"`
}

type InstanceConfig struct {
	ID string `mapstructure:"id"`
}

func Load() (*Config, error) {
	// Set default values
	viper.SetDefault("channel.url", "ws://localhost:8000/ws")
	viper.SetDefault("channel.handshake_timeout", 10*time.Second)
	viper.SetDefault("channel.backoff_min", 500*time.Millisecond)
	viper.SetDefault("channel.backoff_max", 30*time.Second)
	viper.SetDefault("channel.max_retries", 10)
	viper.SetDefault("rest.base_url", "http://localhost:8000/api")
	viper.SetDefault("rest.timeout", 30*time.Second)
	viper.SetDefault("auth.token", "")
	viper.SetDefault("redis.address", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("mysql.dsn", "watcher:watcher_pass@tcp(localhost:3306)/artbid?parseTime=true")
	viper.SetDefault("mysql.max_open_conns", 10)
	viper.SetDefault("mysql.max_idle_conns", 5)
	viper.SetDefault("mysql.conn_max_lifetime", 5*time.Minute)
	viper.SetDefault("server.port", 8090)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("refresh.interval", 30*time.Second)
	viper.SetDefault("watch.artwork_ids", []int64{})
	viper.SetDefault("instance.id", "")

	// Configuration file settings
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/artbid-sync/")

	// Environment variable support
	viper.AutomaticEnv()

	// Environment variable mappings
	viper.BindEnv("channel.url", "CHANNEL_URL")
	viper.BindEnv("channel.max_retries", "CHANNEL_MAX_RETRIES")
	viper.BindEnv("rest.base_url", "REST_BASE_URL")
	viper.BindEnv("auth.token", "AUTH_TOKEN")
	viper.BindEnv("redis.address", "REDIS_ADDRESS")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")
	viper.BindEnv("mysql.dsn", "MYSQL_DSN")
	viper.BindEnv("server.port", "SERVER_PORT")
	viper.BindEnv("server.host", "SERVER_HOST")
	viper.BindEnv("refresh.interval", "REFRESH_INTERVAL")
	viper.BindEnv("instance.id", "INSTANCE_ID")

	// Read configuration file (optional - defaults/env vars cover the rest)
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// LoadFromFile loads configuration from a specific file path.
func LoadFromFile(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// String returns a log-friendly summary of the config.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Channel: %s, REST: %s, Redis: %s, Server: %s:%d, Watching: %d artworks",
		c.Channel.URL,
		c.REST.BaseURL,
		c.Redis.Address,
		c.Server.Host,
		c.Server.Port,
		len(c.Watch.ArtworkIDs),
	)
}
