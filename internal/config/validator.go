package config

import (
	"fmt"
	"strings"
)

// Validate checks the configuration before a session starts
func (c *Config) Validate() error {
	switch c.Backend.Kind {
	case "remote":
		if err := validateAPIKey(c.Backend.APIKey); err != nil {
			return err
		}
	case "local":
		// No credential required; base URL defaults to localhost.
	default:
		return fmt.Errorf("backend kind must be remote or local, got %q", c.Backend.Kind)
	}

	if c.Session.MaxRounds <= 0 {
		return fmt.Errorf("session max_rounds must be positive")
	}
	if c.Session.RequestTimeout <= 0 {
		return fmt.Errorf("session request_timeout must be positive")
	}
	if c.Session.RetryAttempts <= 0 {
		return fmt.Errorf("session retry_attempts must be positive")
	}
	if c.Backend.MaxTokens < 0 {
		return fmt.Errorf("backend max_tokens cannot be negative")
	}

	return nil
}

func validateAPIKey(key string) error {
	if key == "" {
		return fmt.Errorf("remote backend requires an API key (backend.api_key or TASKPILOT_API_KEY)")
	}
	if !strings.HasPrefix(key, "sk-ant-") {
		return fmt.Errorf("invalid remote API key format (should start with sk-ant-)")
	}
	return nil
}
