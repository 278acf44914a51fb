// internal/workers/conversation/disambiguate-intent/config.go
package disambiguateintent

import "time"

type Config struct {
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 10 * time.Second,
	}
}
