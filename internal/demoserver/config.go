package demoserver

// Config holds configuration for the demo server.
type Config struct {
	// Port is the port on which the demo server listens.
	Port int

	// Taken lists the ids that resolve to a profile page.
	Taken []string

	// RateLimitBurst makes the first N lookups of every id answer 429.
	RateLimitBurst int

	// RateLimitEvery makes every Nth lookup overall answer 429. Zero disables.
	RateLimitEvery int

	// ErrorIDs answer 500 instead of a page.
	ErrorIDs []string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Port:           9999,
		Taken:          []string{"alice", "bob", "bob123", "gaben", "robin"},
		RateLimitEvery: 7,
	}
}
