package config

import (
	"fmt"
	"strings"
	"time"
)

// NATSConfig is optional: an empty URL disables event publishing.
type NATSConfig struct {
	Url       string        `koanf:"url"`
	Timeout   time.Duration `koanf:"timeout"`
	StreamAge time.Duration `koanf:"streamage"`
}

func (c *NATSConfig) Enabled() bool {
	return c.Url != ""
}

// String returns a string representation of the NATS configuration.
func (c *NATSConfig) String() string {
	var b strings.Builder
	b.WriteString("\n--- NATS ---\n")
	b.WriteString(fmt.Sprintf("  url: %s\n", c.Url))
	b.WriteString(fmt.Sprintf("  timeout: %s\n", c.Timeout))
	b.WriteString(fmt.Sprintf("  streamage: %s\n", c.StreamAge))
	return b.String()
}

func (c *NATSConfig) Validate() error {
	if !c.Enabled() {
		return nil
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("nats dial timeout is not configured")
	}
	if c.StreamAge < 0 {
		return fmt.Errorf("nats stream age must not be negative")
	}
	return nil
}
