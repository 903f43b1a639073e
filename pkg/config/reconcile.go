package config

import (
	"fmt"
	"strings"
	"time"
)

type ReconcileConfig struct {
	BatchSize int           `koanf:"batchsize"`
	Workers   int           `koanf:"workers"`
	LockTTL   time.Duration `koanf:"lockttl"`
}

// String returns a string representation of the ReconcileConfig.
func (c *ReconcileConfig) String() string {
	var b strings.Builder
	b.WriteString("\n--- Reconcile ---\n")
	b.WriteString(fmt.Sprintf("  batchsize: %d\n", c.BatchSize))
	b.WriteString(fmt.Sprintf("  workers: %d\n", c.Workers))
	b.WriteString(fmt.Sprintf("  lockttl: %s\n", c.LockTTL))
	return b.String()
}

func (c *ReconcileConfig) Validate() error {
	if c.BatchSize <= 0 {
		return fmt.Errorf("reconcile: batchsize must be greater than zero")
	}
	if c.Workers <= 0 {
		return fmt.Errorf("reconcile: workers must be greater than zero")
	}
	if c.LockTTL <= 0 {
		return fmt.Errorf("reconcile: lockttl must be greater than zero")
	}
	return nil
}
