// internal/workers/analytics/audit-routing-decision/config.go
package auditroutingdecision

import "time"

type Config struct {
	Timeout time.Duration
	Table   string
	Index   string
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 10 * time.Second,
		Table:   "routing_decisions",
		Index:   "routing-decisions",
	}
}
