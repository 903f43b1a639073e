package config

import (
	"fmt"
	"slices"
	"strings"
)

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// String returns a string representation of the log configuration.
func (c *LogConfig) String() string {
	var b strings.Builder
	b.WriteString("\n--- Log ---\n")
	b.WriteString(fmt.Sprintf("  level: %s\n", c.Level))
	b.WriteString(fmt.Sprintf("  format: %s\n", c.Format))
	return b.String()
}

func (c *LogConfig) Validate() error {
	if c.Level != "" && !slices.Contains([]string{"debug", "info", "warn", "error"}, c.Level) {
		return fmt.Errorf("unknown log level: %s", c.Level)
	}
	if c.Format != "" && c.Format != "json" && c.Format != "text" {
		return fmt.Errorf("log format must be json or text: %s", c.Format)
	}
	return nil
}
