// internal/workers/conversation/build-clarification-prompt/config.go
package buildclarificationprompt

import "time"

type Config struct {
	TemplateRegistry string
	CacheTTL         time.Duration
	Timeout          time.Duration
}

func LoadConfig() *Config {
	return &Config{
		TemplateRegistry: "./configs/prompt-templates.json",
		CacheTTL:         5 * time.Minute,
		Timeout:          10 * time.Second,
	}
}
