package config

import (
	"fmt"
	"strings"
)

var knownChannels = map[string]bool{"smtp": true, "webhook": true}

// Validate checks the config for:
//   - a positive worker count and non-negative timeouts and rates
//   - alert types that fit in a byte
//   - known, non-duplicated alert channels with the settings they need
func Validate(cfg *ServerConfig) error {
	var errs []string

	if cfg.Engine.Workers <= 0 {
		errs = append(errs, fmt.Sprintf("engine.workers must be positive, got %d", cfg.Engine.Workers))
	}
	if cfg.Engine.ReadTimeout < 0 {
		errs = append(errs, "engine.read_timeout must not be negative")
	}
	if cfg.Alert.RatePerMinute < 0 {
		errs = append(errs, "alert.rate_per_minute must not be negative")
	}

	for i, code := range cfg.Alert.Types {
		if code < 0 || code > 255 {
			errs = append(errs, fmt.Sprintf("alert.types[%d]: %d is not a byte", i, code))
		}
	}

	seen := make(map[string]bool)
	for i, ch := range cfg.Alert.Channels {
		switch {
		case !knownChannels[ch]:
			errs = append(errs, fmt.Sprintf("alert.channels[%d]: unknown channel %q", i, ch))
		case seen[ch]:
			errs = append(errs, fmt.Sprintf("alert.channels[%d]: duplicate channel %q", i, ch))
		case ch == "webhook" && cfg.Alert.WebhookURL == "":
			errs = append(errs, "alert.webhook_url is required for the webhook channel")
		}
		seen[ch] = true
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: validation errors:\n  - %s", ErrConfig, strings.Join(errs, "\n  - "))
	}
	return nil
}
