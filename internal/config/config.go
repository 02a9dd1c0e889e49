package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	App     AppConfig     `yaml:"app"`
	HTTP    HTTPConfig    `yaml:"http"`
	DB      DBConfig      `yaml:"db"`
	Redis   RedisConfig   `yaml:"redis"`
	Auth    AuthConfig    `yaml:"auth"`
	Timebox TimeboxConfig `yaml:"timebox"`
	Usage   UsageConfig   `yaml:"usage"`
	Log     LogConfig     `yaml:"log"`
}

type AppConfig struct {
	Env     string `yaml:"env" env:"APP_ENV" env-default:"dev"`
	Version string `yaml:"version" env:"VERSION" env-default:"dev"`
}

type HTTPConfig struct {
	Addr         string        `yaml:"addr" env:"HTTP_ADDR" env-default:":8080"`
	ReadTimeout  time.Duration `yaml:"read_timeout" env:"HTTP_READ_TIMEOUT" env-default:"10s"`
	WriteTimeout time.Duration `yaml:"write_timeout" env:"HTTP_WRITE_TIMEOUT" env-default:"10s"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" env:"HTTP_IDLE_TIMEOUT" env-default:"60s"`
	CORSOrigins  []string      `yaml:"cors_origins" env:"HTTP_CORS_ORIGINS" env-separator:"," env-default:"*"`
}

// DBConfig selects the usage-log / task store. DSN wins over the discrete
// postgres fields when set.
type DBConfig struct {
	Driver   string `yaml:"driver" env:"DB_DRIVER" env-default:"sqlite"`
	DSN      string `yaml:"dsn" env:"DB_DSN"`
	Host     string `yaml:"host" env:"DB_HOST" env-default:"localhost"`
	Port     int    `yaml:"port" env:"DB_PORT" env-default:"5432"`
	User     string `yaml:"user" env:"DB_USER"`
	Password string `yaml:"password" env:"DB_PASSWORD"`
	Name     string `yaml:"name" env:"DB_NAME"`
	SQLPath  string `yaml:"sqlite_path" env:"DB_SQLITE_PATH" env-default:"lifelock.db"`
}

type RedisConfig struct {
	Addr     string        `yaml:"addr" env:"REDIS_ADDR"`
	Password string        `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int           `yaml:"db" env:"REDIS_DB" env-default:"0"`
	URL      string        `yaml:"url" env:"REDIS_URL"`
	StatsTTL time.Duration `yaml:"stats_ttl" env:"REDIS_STATS_TTL" env-default:"60s"`
}

type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret" env:"JWT_SECRET"`
	TokenTTL  time.Duration `yaml:"token_ttl" env:"JWT_TOKEN_TTL" env-default:"720h"`
}

type TimeboxConfig struct {
	Repository      string  `yaml:"repository" env:"TIMEBOX_REPOSITORY" env-default:"sql"`
	PixelsPerHour   float64 `yaml:"pixels_per_hour" env:"TIMEBOX_PIXELS_PER_HOUR" env-default:"80"`
	MinHeight       float64 `yaml:"min_height" env:"TIMEBOX_MIN_HEIGHT" env-default:"24"`
	MaxHeight       float64 `yaml:"max_height" env:"TIMEBOX_MAX_HEIGHT" env-default:"480"`
	AutoFitStep     int     `yaml:"autofit_step" env:"TIMEBOX_AUTOFIT_STEP" env-default:"15"`
	AutoFitAttempts int     `yaml:"autofit_attempts" env:"TIMEBOX_AUTOFIT_ATTEMPTS" env-default:"32"`

	// RedisTTL expires day lists in the redis repository; 0 keeps them.
	RedisTTL time.Duration `yaml:"redis_ttl" env:"TIMEBOX_REDIS_TTL" env-default:"2160h"`
}

type UsageConfig struct {
	Source         string        `yaml:"source" env:"USAGE_SOURCE" env-default:"store"`
	MockLatency    time.Duration `yaml:"mock_latency" env:"USAGE_MOCK_LATENCY" env-default:"300ms"`
	RollupTimezone string        `yaml:"rollup_timezone" env:"USAGE_ROLLUP_TZ" env-default:"UTC"`
	RollupDebounce time.Duration `yaml:"rollup_debounce" env:"USAGE_ROLLUP_DEBOUNCE" env-default:"2s"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"json"`
}

// Load reads the optional YAML file at path, then applies environment
// variables on top. An empty path or a missing file means env only.
func Load(path string) (Config, error) {
	var cfg Config
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := cleanenv.ReadConfig(path, &cfg); err != nil {
				return Config{}, fmt.Errorf("read config %s: %w", path, err)
			}
			return cfg, cfg.finish()
		} else if !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("stat config %s: %w", path, err)
		}
	}
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("read env: %w", err)
	}
	return cfg, cfg.finish()
}

func (c *Config) finish() error {
	if c.Redis.URL != "" {
		addr, password, db, err := parseRedisURL(c.Redis.URL)
		if err != nil {
			return fmt.Errorf("REDIS_URL: %w", err)
		}
		c.Redis.Addr = addr
		c.Redis.Password = password
		c.Redis.DB = db
	}

	switch c.DB.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("db driver must be postgres or sqlite, got %q", c.DB.Driver)
	}
	switch c.Timebox.Repository {
	case "memory", "sql":
	case "redis":
		if c.Redis.Addr == "" {
			return fmt.Errorf("timebox repository redis needs REDIS_ADDR or REDIS_URL")
		}
	default:
		return fmt.Errorf("timebox repository must be memory, redis or sql, got %q", c.Timebox.Repository)
	}
	switch c.Usage.Source {
	case "store", "mock":
	default:
		return fmt.Errorf("usage source must be store or mock, got %q", c.Usage.Source)
	}
	if _, err := time.LoadLocation(c.Usage.RollupTimezone); err != nil {
		return fmt.Errorf("usage rollup timezone: %w", err)
	}
	return nil
}

// ConnString returns the driver DSN.
func (c *Config) ConnString() string {
	if c.DB.DSN != "" {
		return c.DB.DSN
	}
	if c.DB.Driver == "sqlite" {
		return c.DB.SQLPath
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		c.DB.Host, c.DB.Port, c.DB.User, c.DB.Password, c.DB.Name,
	)
}

// RollupLocation is the timezone daily usage summaries are keyed in.
func (c *Config) RollupLocation() *time.Location {
	loc, err := time.LoadLocation(c.Usage.RollupTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// parseRedisURL extracts host:port, password and DB from redis:// or rediss:// URL.
func parseRedisURL(s string) (addr, password string, db int, err error) {
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil {
		return "", "", 0, err
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return "", "", 0, fmt.Errorf("scheme must be redis or rediss, got %q", u.Scheme)
	}
	addr = u.Host
	if addr == "" {
		return "", "", 0, fmt.Errorf("missing host in Redis URL")
	}
	if u.User != nil {
		password, _ = u.User.Password()
	}
	if len(u.Path) > 1 {
		db, _ = strconv.Atoi(strings.TrimPrefix(u.Path, "/"))
	}
	return addr, password, db, nil
}
