package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Storage drivers.
const (
	DriverMongo    = "mongo"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
	DriverMemory   = "memory"
)

// MinBcryptCost is the lowest bcrypt work factor accepted for user passwords.
const MinBcryptCost = 10

type Config struct {
	Port    string `env:"PORT" envDefault:"5000"`
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	Version string `env:"APP_VERSION" envDefault:"dev"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	DBDriver    string `env:"DB_DRIVER" envDefault:"mongo"`
	MongoURI    string `env:"MONGODB_URI" envDefault:"mongodb://localhost:27017"`
	DBName      string `env:"DB_NAME" envDefault:"user-api"`
	PostgresDSN string `env:"DATABASE_URL"`

	// TokenStore defaults to DBDriver when empty.
	TokenStore    string `env:"TOKEN_STORE"`
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	JWTSecret       string        `env:"JWT_SECRET"`
	AdminEmail      string        `env:"ADMIN_EMAIL"`
	AdminPassword   string        `env:"ADMIN_PASSWORD"`
	AccessTokenTTL  time.Duration `env:"ACCESS_TOKEN_EXPIRE" envDefault:"15m"`
	RefreshTokenTTL time.Duration `env:"REFRESH_TOKEN_EXPIRE" envDefault:"7d"`
	BcryptCost      int           `env:"BCRYPT_COST" envDefault:"10"`

	CORSAllowedOrigins []string      `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
	TokenSweepInterval time.Duration `env:"TOKEN_SWEEP_INTERVAL" envDefault:"1h"`
	ShutdownTimeout    time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	ConnectRetries     int           `env:"CONNECT_RETRIES" envDefault:"3"`

	// GeneratedSecret is set when JWT_SECRET was empty and a random one was used.
	GeneratedSecret bool `env:"-"`
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	return LoadFrom(nil)
}

// LoadFrom reads the configuration from environment; a nil map means the
// process environment.
func LoadFrom(environment map[string]string) (*Config, error) {
	cfg := &Config{}
	opts := env.Options{
		FuncMap: map[reflect.Type]env.ParserFunc{
			reflect.TypeOf(time.Duration(0)): func(v string) (interface{}, error) {
				return ParseDuration(v)
			},
		},
	}
	if environment != nil {
		opts.Environment = environment
	}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if cfg.JWTSecret == "" {
		cfg.JWTSecret = generateDefaultSecret()
		cfg.GeneratedSecret = true
	}
	cfg.DBDriver = strings.ToLower(cfg.DBDriver)
	cfg.TokenStore = strings.ToLower(cfg.TokenStore)
	if cfg.TokenStore == "" {
		cfg.TokenStore = cfg.DBDriver
	}
	cfg.AdminEmail = strings.ToLower(strings.TrimSpace(cfg.AdminEmail))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the server cannot run with.
func (c *Config) Validate() error {
	var errs []error

	switch c.DBDriver {
	case DriverMongo, DriverPostgres, DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("DB_DRIVER: unsupported driver %q", c.DBDriver))
	}
	switch c.TokenStore {
	case DriverMongo, DriverPostgres, DriverRedis, DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("TOKEN_STORE: unsupported driver %q", c.TokenStore))
	}
	if c.DBDriver == DriverPostgres && c.PostgresDSN == "" {
		errs = append(errs, errors.New("DATABASE_URL is required for the postgres driver"))
	}
	if c.TokenStore == DriverPostgres && c.DBDriver != DriverPostgres {
		errs = append(errs, errors.New("TOKEN_STORE=postgres requires DB_DRIVER=postgres"))
	}
	if c.TokenStore == DriverMongo && c.DBDriver != DriverMongo {
		errs = append(errs, errors.New("TOKEN_STORE=mongo requires DB_DRIVER=mongo"))
	}
	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 {
		errs = append(errs, errors.New("token lifetimes must be positive"))
	}
	if c.BcryptCost < MinBcryptCost {
		errs = append(errs, fmt.Errorf("BCRYPT_COST must be at least %d", MinBcryptCost))
	}
	if (c.AdminEmail == "") != (c.AdminPassword == "") {
		errs = append(errs, errors.New("ADMIN_EMAIL and ADMIN_PASSWORD must be set together"))
	}
	if c.TokenSweepInterval <= 0 {
		errs = append(errs, errors.New("TOKEN_SWEEP_INTERVAL must be positive"))
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("SHUTDOWN_TIMEOUT must be positive"))
	}
	if c.ConnectRetries < 0 {
		errs = append(errs, errors.New("CONNECT_RETRIES must not be negative"))
	}

	return errors.Join(errs...)
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	if strings.Contains(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}

// IsProduction toggles secure cookies.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

// ParseDuration accepts Go durations plus a whole-day suffix such as "7d".
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", s)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	return time.ParseDuration(s)
}

func generateDefaultSecret() string {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "dev-secret-change-in-production"
	}
	return hex.EncodeToString(bytes)
}
