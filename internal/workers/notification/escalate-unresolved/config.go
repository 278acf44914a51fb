// internal/workers/notification/escalate-unresolved/config.go
package escalateunresolved

import "time"

type Config struct {
	Timeout        time.Duration
	EmailEnabled   bool
	SMSEnabled     bool
	WebhookEnabled bool
	FromEmail      string
	OperatorEmail  string
	OperatorNumber string
	WebhookURL     string
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 30 * time.Second,
	}
}
