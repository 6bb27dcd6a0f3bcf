// Package matcher provides the candidate finding engine for bank
// statement reconciliation.
//
// Given a statement line and an ordered list of reconcile models, the
// engine extracts comparable tokens from the line's text fields and
// runs each model through a statically composed pipeline of matcher
// functions (invoice, batch payment, sale order, write-off). The first
// matcher producing a result short-circuits the rest of the pipeline;
// a model whose whole pipeline finds nothing contributes nothing and
// evaluation proceeds to the next model.
//
// Example usage:
//
//	engine, err := matcher.NewEngine(reader, matcher.DefaultConfig())
//	...
//	result, err := engine.Evaluate(ctx, line, modelsInSequenceOrder)
//	if result != nil && result.AllowAutoReconcile {
//		// hand the candidate set to the reconciliation applier
//	}
package matcher

import (
	"fmt"
	"strings"
)

// Config holds engine-level matching settings shared by all models
type Config struct {
	// OrderRefPrefix is the sale order reference sequence prefix
	// (for example "SO" for names like SO0042). Tokens not carrying
	// the prefix never reach the sale order matcher.
	OrderRefPrefix string

	// DefaultPastMonthsLimit bounds the sale order lookback when a
	// model does not set its own limit.
	DefaultPastMonthsLimit int
}

// DefaultConfig returns the default engine configuration
func DefaultConfig() *Config {
	return &Config{
		OrderRefPrefix:         "SO",
		DefaultPastMonthsLimit: 6,
	}
}

// Validate validates the engine configuration
func (c *Config) Validate() error {
	if strings.TrimSpace(c.OrderRefPrefix) == "" {
		return fmt.Errorf("order reference prefix cannot be empty")
	}

	if c.DefaultPastMonthsLimit <= 0 {
		return fmt.Errorf("default past months limit must be positive, got %d", c.DefaultPastMonthsLimit)
	}

	return nil
}

// Clone returns a copy of the configuration
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}
