package common

import (
	"fmt"
	"runtime"
	"strings"
)

// --------------------------------------------------------------------------
// Store configuration struct
// --------------------------------------------------------------------------

// StoreConfig holds the configuration of an in-memory feed store
type StoreConfig struct {
	// Name identifies the store in log output and metrics
	Name string

	// MaxConcurrentReads limits how many retrievals run in parallel (<= 0 = runtime.NumCPU())
	MaxConcurrentReads int

	// LogLevel is the level of the feedstore loggers
	LogLevel string
}

// DefaultStoreConfig returns the default store configuration
func DefaultStoreConfig() *StoreConfig {
	return &StoreConfig{
		Name:               "feed",
		MaxConcurrentReads: runtime.NumCPU(),
		LogLevel:           "info",
	}
}

// Validate checks the configuration for invalid values
func (c *StoreConfig) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("store name must not be empty")
	}
	if c.MaxConcurrentReads < 0 {
		return fmt.Errorf("max concurrent reads must not be negative, got %d", c.MaxConcurrentReads)
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// String returns a formatted string representation of the configuration
func (c *StoreConfig) String() string {
	var sb strings.Builder

	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Feed Store")
	addField("Name", c.Name)
	if c.MaxConcurrentReads > 0 {
		addField("Max Concurrent Reads", fmt.Sprintf("%d", c.MaxConcurrentReads))
	} else {
		addField("Max Concurrent Reads", fmt.Sprintf("%d (auto)", runtime.NumCPU()))
	}

	addSection("Logging")
	addField("Log Level", c.LogLevel)

	return sb.String()
}
