package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/gyaneshwarpardhi/atmsvr/internal/event"
)

// ErrConfig wraps every configuration load or validation failure.
var ErrConfig = errors.New("configuration error")

const DefaultWorkers = 10

// Loader reads the collector config file and watches it for changes. An
// empty path yields defaults and environment overrides only.
type Loader struct {
	path     string
	mu       sync.RWMutex
	current  *ServerConfig
	onChange []func(*ServerConfig)
}

// NewLoader creates a Loader and performs the initial load. A .env file in
// the working directory, if present, seeds the environment first.
func NewLoader(path string) (*Loader, error) {
	_ = godotenv.Load()

	l := &Loader{path: path}
	cfg, err := l.load()
	if err != nil {
		return nil, err
	}
	l.current = cfg
	return l, nil
}

// Path returns the watched file, or "" when running on defaults.
func (l *Loader) Path() string {
	return l.path
}

// Config returns the current (latest) configuration.
func (l *Loader) Config() *ServerConfig {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current
}

// OnChange registers a callback invoked whenever the config reloads.
func (l *Loader) OnChange(fn func(*ServerConfig)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onChange = append(l.onChange, fn)
}

// Watch starts a background goroutine that hot-reloads the config on file changes.
// Call the returned stop function to clean up.
func (l *Loader) Watch() (stop func(), err error) {
	if l.path == "" {
		return nil, fmt.Errorf("config watcher: no config file")
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config watcher: %w", err)
	}
	if err := w.Add(l.path); err != nil {
		w.Close()
		return nil, fmt.Errorf("config watcher add %s: %w", l.path, err)
	}

	done := make(chan struct{})
	go func() {
		defer w.Close()
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
					if _, err := l.Reload(); err != nil {
						slog.Warn("config reload failed, keeping previous config", "path", l.path, "err", err)
					}
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				slog.Warn("config watcher error", "err", err)
			case <-done:
				return
			}
		}
	}()

	return func() { close(done) }, nil
}

// Reload forces an immediate re-read of the config file. An invalid file
// leaves the current config in place.
func (l *Loader) Reload() (*ServerConfig, error) {
	cfg, err := l.load()
	if err != nil {
		return nil, err
	}
	l.mu.Lock()
	l.current = cfg
	callbacks := make([]func(*ServerConfig), len(l.onChange))
	copy(callbacks, l.onChange)
	l.mu.Unlock()
	for _, fn := range callbacks {
		fn(cfg)
	}
	return cfg, nil
}

// load applies, in increasing precedence: built-in defaults, environment,
// the config file. The result is validated.
func (l *Loader) load() (*ServerConfig, error) {
	cfg := &ServerConfig{}
	cfg.Engine.Workers = DefaultWorkers
	cfg.Alert.Channels = []string{"smtp"}
	applyEnv(cfg)

	if l.path != "" {
		data, err := os.ReadFile(l.path)
		if err != nil {
			return nil, fmt.Errorf("%w: read %s: %w", ErrConfig, l.path, err)
		}
		if isYAML(l.path) {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("%w: parse %s: %w", ErrConfig, l.path, err)
			}
		} else if err := parseTokens(string(data), cfg); err != nil {
			return nil, fmt.Errorf("%w: parse %s: %w", ErrConfig, l.path, err)
		}
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	for _, code := range cfg.Alert.Types {
		if !event.Type(code).Valid() {
			slog.Warn("alert type is not a known event type and will never match", "code", code)
		}
	}
	return cfg, nil
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// parseTokens reads the plain token format: the first whitespace-delimited
// token is the recipient address, every following token an alertable type
// code.
func parseTokens(data string, cfg *ServerConfig) error {
	tokens := strings.Fields(data)
	if len(tokens) == 0 {
		return nil
	}
	cfg.Alert.Recipient = tokens[0]
	tokens = tokens[1:]
	types := make([]int, 0, len(tokens))
	for _, tok := range tokens {
		n, err := strconv.Atoi(tok)
		if err != nil {
			return fmt.Errorf("alert type %q is not an integer", tok)
		}
		types = append(types, n)
	}
	cfg.Alert.Types = types
	return nil
}

func applyEnv(cfg *ServerConfig) {
	if v := os.Getenv("SVR_SMTP_ADDR"); v != "" {
		cfg.Alert.SMTPAddr = v
	}
	if v := os.Getenv("SVR_ALERT_RECIPIENT"); v != "" {
		cfg.Alert.Recipient = v
	}
	if v := os.Getenv("SVR_ALERT_FROM"); v != "" {
		cfg.Alert.From = v
	}
	if v := os.Getenv("SVR_WEBHOOK_URL"); v != "" {
		cfg.Alert.WebhookURL = v
	}
	if v := os.Getenv("SVR_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Engine.Workers = n
		}
	}
}
