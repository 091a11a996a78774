package config

import (
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type HTTP struct {
	Host              string
	Port              int
	ReadTimeoutSec    int
	WriteTimeoutSec   int
	IdleTimeoutSec    int
	RequestTimeoutSec int
}

type App struct {
	Name string
	Env  string
	HTTP HTTP
}

type LogFile struct {
	Enable     bool
	Filename   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

type Log struct {
	Level string
	JSON  bool
	File  LogFile
}

type JWT struct {
	Secret            string
	Issuer            string
	AccessTokenTTLMin int
	// 邮箱确认 / 重置密码令牌
	ActionTokenTTLMin int
}

type Redis struct {
	Addr       string `mapstructure:"addr"`
	Password   string `mapstructure:"password"`
	DB         int    `mapstructure:"db"`
	TTLSeconds int    `mapstructure:"ttlSeconds"`
}

type DB struct {
	Driver             string
	DSN                string
	Username           string
	Password           string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeMin int
	AutoMigrate        bool
	LogLevel           string
}

type Upstream struct {
	ProductsBaseURL string `mapstructure:"productsBaseURL"`
	TimeoutSec      int    `mapstructure:"timeoutSec"`
}

type Cascade struct {
	RetryAttempts    int `mapstructure:"retryAttempts"`
	RetryBaseDelayMs int `mapstructure:"retryBaseDelayMs"`
	PollIntervalSec  int `mapstructure:"pollIntervalSec"`
	BatchSize        int `mapstructure:"batchSize"`
	Parallelism      int `mapstructure:"parallelism"`
}

type Mail struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	// 对外链接前缀，如 https://users.example.com
	PublicBaseURL string `mapstructure:"publicBaseURL"`
}

type SeedAdmin struct {
	Email    string
	Password string
	Name     string
}

type Seed struct {
	Admin SeedAdmin
}

type Config struct {
	App      App
	Log      Log
	JWT      JWT
	DB       DB
	Redis    Redis `mapstructure:"redis"`
	Upstream Upstream
	Cascade  Cascade
	Mail     Mail
	Seed     Seed
}

func (c *Config) CascadeRetryDelay() time.Duration {
	return time.Duration(c.Cascade.RetryBaseDelayMs) * time.Millisecond
}

func (c *Config) CascadePollInterval() time.Duration {
	return time.Duration(c.Cascade.PollIntervalSec) * time.Second
}

func (c *Config) UpstreamTimeout() time.Duration {
	return time.Duration(c.Upstream.TimeoutSec) * time.Second
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.http.host", "0.0.0.0")
	v.SetDefault("app.http.port", 8080)
	v.SetDefault("app.http.readTimeoutSec", 5)
	v.SetDefault("app.http.writeTimeoutSec", 10)
	v.SetDefault("app.http.idleTimeoutSec", 60)
	v.SetDefault("app.http.requestTimeoutSec", 10)
	v.SetDefault("log.level", "info")
	v.SetDefault("jwt.issuer", "product-user-services")
	v.SetDefault("jwt.accessTokenTTLMin", 30)
	v.SetDefault("jwt.actionTokenTTLMin", 24*60)
	v.SetDefault("db.driver", "sqlite")
	v.SetDefault("db.maxOpenConns", 20)
	v.SetDefault("db.maxIdleConns", 5)
	v.SetDefault("db.connMaxLifetimeMin", 30)
	v.SetDefault("db.logLevel", "warn")
	v.SetDefault("redis.ttlSeconds", 60)
	v.SetDefault("upstream.timeoutSec", 5)
	v.SetDefault("cascade.retryAttempts", 3)
	v.SetDefault("cascade.retryBaseDelayMs", 200)
	v.SetDefault("cascade.pollIntervalSec", 15)
	v.SetDefault("cascade.batchSize", 50)
	v.SetDefault("cascade.parallelism", 4)
	v.SetDefault("mail.port", 587)
}

// Read 读取 yaml + APP_ 前缀环境变量（a.b.c -> APP_A_B_C）
func Read(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, err
	}
	return &c, nil
}

// Load 失败直接退出；path 为空时取 CONFIG_PATH，再退回 fallback
func Load(path, fallback string) *Config {
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
		if path == "" {
			path = fallback
		}
	}
	c, err := Read(path)
	if err != nil {
		log.Fatalf("load config %s: %v", path, err)
	}
	return c
}
