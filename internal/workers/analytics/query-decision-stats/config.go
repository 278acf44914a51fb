// internal/workers/analytics/query-decision-stats/config.go
package querydecisionstats

import "time"

type Config struct {
	Timeout        time.Duration
	Index          string
	CacheKeyPrefix string
	CacheTTL       time.Duration
	DefaultTop     int
}

func LoadConfig() *Config {
	return &Config{
		Timeout:        15 * time.Second,
		Index:          "routing-decisions",
		CacheKeyPrefix: "stats:",
		CacheTTL:       5 * time.Minute,
		DefaultTop:     10,
	}
}
