package config

import (
	"fmt"
	"strings"
	"time"
)

type RedisConfig struct {
	Addr         string        `koanf:"addr"`
	Password     string        `koanf:"password"`
	DB           int           `koanf:"db"`
	DialTimeout  time.Duration `koanf:"dialtimeout"`
	ReadTimeout  time.Duration `koanf:"readtimeout"`
	WriteTimeout time.Duration `koanf:"writetimeout"`
	PoolSize     int           `koanf:"poolsize"`
	MaxRetries   int           `koanf:"maxretries"`
}

// String returns a string representation of the Redis configuration.
func (c *RedisConfig) String() string {
	var b strings.Builder
	b.WriteString("\n--- Redis ---\n")
	b.WriteString(fmt.Sprintf("  addr: %s\n", c.Addr))
	if c.Password != "" {
		b.WriteString("  password: ****\n")
	}
	b.WriteString(fmt.Sprintf("  db: %d\n", c.DB))
	b.WriteString(fmt.Sprintf("  dialtimeout: %s\n", c.DialTimeout))
	b.WriteString(fmt.Sprintf("  readtimeout: %s\n", c.ReadTimeout))
	b.WriteString(fmt.Sprintf("  writetimeout: %s\n", c.WriteTimeout))
	b.WriteString(fmt.Sprintf("  poolsize: %d\n", c.PoolSize))
	b.WriteString(fmt.Sprintf("  maxretries: %d\n", c.MaxRetries))
	return b.String()
}

func (c *RedisConfig) Validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return fmt.Errorf("redis address is not configured")
	}
	if c.DB < 0 {
		return fmt.Errorf("redis db must not be negative: %d", c.DB)
	}
	if c.DialTimeout <= 0 {
		return fmt.Errorf("redis dial timeout is not configured")
	}
	if c.PoolSize < 0 {
		return fmt.Errorf("redis pool size must not be negative: %d", c.PoolSize)
	}
	return nil
}
