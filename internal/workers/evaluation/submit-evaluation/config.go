// internal/workers/evaluation/submit-evaluation/config.go
package submitevaluation

import "time"

type Config struct {
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 10 * time.Second,
	}
}
