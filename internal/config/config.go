package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"rpsnet/internal/transport"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Port       int    `env:"RPS_PORT" envDefault:"50007"`
	ListenHost string `env:"RPS_LISTEN_HOST" envDefault:"0.0.0.0"`

	HandshakeTimeout time.Duration `env:"RPS_HANDSHAKE_TIMEOUT" envDefault:"10s"`
	ReadTimeout      time.Duration `env:"RPS_READ_TIMEOUT" envDefault:"2m"`
	WriteTimeout     time.Duration `env:"RPS_WRITE_TIMEOUT" envDefault:"10s"`
	Keepalive        time.Duration `env:"RPS_KEEPALIVE" envDefault:"30s"`
	MaxLineBytes     int           `env:"RPS_MAX_LINE_BYTES" envDefault:"4096"`

	// Ops HTTP surface (/healthz, /metrics, /ws). Empty disables it.
	OpsAddr       string `env:"RPS_OPS_ADDR"`
	AllowedOrigin string `env:"ALLOWED_ORIGIN"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	WSRateLimit  int           `env:"WS_RATE_LIMIT" envDefault:"10"`
	WSRateWindow time.Duration `env:"WS_RATE_WINDOW" envDefault:"1m"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	LogJSON  bool   `env:"LOG_JSON" envDefault:"false"`
}

// Загрузка конфига из env (+ .env если есть)
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("RPS_PORT out of range: %d", c.Port)
	}
	if c.MaxLineBytes <= 0 {
		return errors.New("RPS_MAX_LINE_BYTES must be positive")
	}
	// A peer that only pings at the keepalive interval must still beat
	// our read deadline.
	if c.ReadTimeout > 0 && c.Keepalive > 0 && c.Keepalive >= c.ReadTimeout {
		return fmt.Errorf("RPS_KEEPALIVE (%s) must be shorter than RPS_READ_TIMEOUT (%s)", c.Keepalive, c.ReadTimeout)
	}
	if c.WSRateLimit <= 0 || c.WSRateWindow <= 0 {
		return errors.New("WS_RATE_LIMIT and WS_RATE_WINDOW must be positive")
	}
	return nil
}

// ListenAddr is the host:port the TCP binding binds to.
func (c *Config) ListenAddr() string {
	return net.JoinHostPort(c.ListenHost, strconv.Itoa(c.Port))
}

// Transport returns the per-connection transport options.
func (c *Config) Transport() transport.Options {
	return transport.Options{
		ReadTimeout:  c.ReadTimeout,
		WriteTimeout: c.WriteTimeout,
		MaxLineBytes: c.MaxLineBytes,
	}
}
