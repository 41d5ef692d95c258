package webclient

import "time"

type Client string

const (
	ClientNetHTTP  Client = "nethttp"
	ClientChromedp Client = "chromedp"
)

// Config selects and tunes a WebClient backend.
type Config struct {
	Client Client

	// Timeout bounds a single send. Zero means 30s.
	Timeout time.Duration

	// Headless is only read by the chromedp backend.
	Headless bool

	// IdleAfter is how long the chromedp backend waits for network quiet after
	// load before reading the DOM. Zero disables the wait.
	IdleAfter time.Duration
}

const defaultTimeout = 30 * time.Second

func (c Config) timeout() time.Duration {
	if c.Timeout <= 0 {
		return defaultTimeout
	}
	return c.Timeout
}
