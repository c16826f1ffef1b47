// Package session holds the read-only configuration the translator
// consults: whether broker-side (whole-store) execution is preferred over
// segment-local execution, and the row-count thresholds that shape
// generated queries.
package session

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Defaults mirror the connector's shipped configuration.
const (
	// DefaultTopNLarge caps grouped queries that carry no explicit
	// limit; the store's grouped-query form always requires one.
	DefaultTopNLarge = 10000

	// DefaultNonAggregateLimitForBrokerQueries caps broker-mode
	// selection queries that carry no explicit limit.
	DefaultNonAggregateLimitForBrokerQueries = 25000
)

// Session is the per-query configuration surface. It is read-only for
// the duration of a translation; translations for independent fragments
// may share one Session concurrently.
type Session struct {
	// PreferBrokerQueries selects whole-store (broker) execution over
	// segment-local execution. Aggregation, limit and top-N pushdown are
	// only legal in broker mode.
	PreferBrokerQueries bool `yaml:"preferBrokerQueries"`

	// NonAggregateLimitForBrokerQueries is both the implicit limit
	// appended to broker-mode selection queries and the row threshold
	// for the short-query classification.
	NonAggregateLimitForBrokerQueries int `yaml:"nonAggregateLimitForBrokerQueries"`

	// TopNLarge is the implicit TOP appended to grouped queries without
	// an explicit limit.
	TopNLarge int `yaml:"topNLarge"`
}

// Default returns the shipped configuration: broker execution preferred,
// default thresholds.
func Default() *Session {
	return &Session{
		PreferBrokerQueries:               true,
		NonAggregateLimitForBrokerQueries: DefaultNonAggregateLimitForBrokerQueries,
		TopNLarge:                         DefaultTopNLarge,
	}
}

// Load reads a YAML session file over the defaults. Absent fields keep
// their default values.
func Load(path string) (*Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read session file: %w", err)
	}
	s := Default()
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parse session file %s: %w", path, err)
	}
	if s.NonAggregateLimitForBrokerQueries <= 0 {
		return nil, fmt.Errorf("session file %s: nonAggregateLimitForBrokerQueries must be positive", path)
	}
	if s.TopNLarge <= 0 {
		return nil, fmt.Errorf("session file %s: topNLarge must be positive", path)
	}
	return s, nil
}
