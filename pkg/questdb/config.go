package questdb

import (
	"fmt"
	"net/url"
	"time"

	"github.com/muhammadchandra19/tickstore/pkg/errors"
)

// Config is the QuestDB client configuration.
type Config struct {
	Host     string `env:"HOST" envDefault:"localhost"`
	Port     int    `env:"PORT" envDefault:"8812"`
	Database string `env:"DATABASE" envDefault:"qdb"`
	Username string `env:"USERNAME" envDefault:"admin"`
	Password string `env:"PASSWORD" envDefault:"quest"`

	MaxConns        int32         `env:"MAX_CONNS" envDefault:"10"`
	MinConns        int32         `env:"MIN_CONNS" envDefault:"1"`
	MaxConnLifetime time.Duration `env:"MAX_CONN_LIFETIME" envDefault:"1h"`
	MaxConnIdleTime time.Duration `env:"MAX_CONN_IDLE_TIME" envDefault:"30m"`
	ConnectTimeout  time.Duration `env:"CONNECT_TIMEOUT" envDefault:"10s"`
}

// DefaultConfig returns the configuration for a local QuestDB.
func DefaultConfig() Config {
	return Config{
		Host:            "localhost",
		Port:            8812,
		Database:        "qdb",
		Username:        "admin",
		Password:        "quest",
		MaxConns:        10,
		MinConns:        1,
		MaxConnLifetime: time.Hour,
		MaxConnIdleTime: 30 * time.Minute,
		ConnectTimeout:  10 * time.Second,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	details := errors.NewBaseError()
	if c.Host == "" {
		details.AddErrorDetails(errors.NewErrorDetails("host is required", string(errors.QuestDBConfigError), "host"))
	}
	if c.Port <= 0 || c.Port > 65535 {
		details.AddErrorDetails(errors.NewErrorDetails(fmt.Sprintf("port %d out of range", c.Port), string(errors.QuestDBConfigError), "port"))
	}
	if c.MaxConns < 1 || c.MinConns > c.MaxConns {
		details.AddErrorDetails(errors.NewErrorDetails("max_conns must be positive and not below min_conns", string(errors.QuestDBConfigError), "max_conns"))
	}
	if details.HasDetails() {
		return details
	}
	return nil
}

// ConnString returns the PostgreSQL wire connection string.
func (c Config) ConnString() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.Username, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.Database,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}
