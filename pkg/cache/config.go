package cache

import "time"

// Config controls the read-response cache of the provenance API.
type Config struct {
	// Enabled turns the cache on. A disabled cache is nil and every request
	// reaches the ledger.
	Enabled bool

	// TTL bounds how long a response is served without re-reading the
	// ledger.
	TTL time.Duration

	// MaxSize is the maximum number of cached responses.
	MaxSize int
}

func DefaultConfig() *Config {
	return &Config{
		Enabled: false,
		TTL:     30 * time.Second,
		MaxSize: 1000,
	}
}
