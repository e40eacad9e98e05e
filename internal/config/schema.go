package config

import "time"

// ServerConfig is the collector's configuration file.
type ServerConfig struct {
	Engine EngineConf `yaml:"engine"`
	Alert  AlertConf  `yaml:"alert"`
}

// EngineConf holds tunable concurrency settings.
type EngineConf struct {
	Workers int `yaml:"workers"`
	// FailOpen drops a connection that breaks mid-event instead of
	// terminating the collector.
	FailOpen    bool          `yaml:"fail_open"`
	ReadTimeout time.Duration `yaml:"read_timeout"` // 0 = wait forever
}

// AlertConf selects which event types raise alerts and where they go.
type AlertConf struct {
	Recipient     string   `yaml:"recipient"`
	From          string   `yaml:"from"`
	Types         []int    `yaml:"types"`
	Channels      []string `yaml:"channels"`
	SMTPAddr      string   `yaml:"smtp_addr"`
	WebhookURL    string   `yaml:"webhook_url"`
	RatePerMinute int      `yaml:"rate_per_minute"`
}
