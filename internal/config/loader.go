package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// DebounceDelay is how long Watch waits after the last file event before
// reloading.
const DebounceDelay = 100 * time.Millisecond

// Load reads configuration from path, applies environment overrides and
// validates the result. A missing file yields the defaults. An empty path
// means ConfigPath().
func Load(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}
	cfg, err := loadConfigFromFile(path)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	return cfg, nil
}

// Loader handles configuration loading, watching, and hot-reloading.
type Loader struct {
	path     string
	tracked  []string
	mu       sync.RWMutex
	config   *Config
	watcher  *fsnotify.Watcher
	onChange []func(old, new *Config)
	ctx      context.Context
	cancel   context.CancelFunc
	errChan  chan error
	done     chan struct{}
}

// NewLoader creates a new configuration loader.
func NewLoader(path string) *Loader {
	if path == "" {
		path = ConfigPath()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Loader{
		path:    path,
		errChan: make(chan error, 1),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Path returns the watched configuration file.
func (l *Loader) Path() string { return l.path }

// Load reads, overrides and validates the configuration file and makes it
// current.
func (l *Loader) Load() (*Config, error) {
	cfg, err := Load(l.path)
	if err != nil {
		return nil, err
	}
	l.mu.Lock()
	l.config = cfg
	l.mu.Unlock()
	return cfg, nil
}

// Track adds files whose changes trigger a reload as if the configuration
// file itself had changed. Empty paths are ignored. Call before Watch.
func (l *Loader) Track(paths ...string) {
	for _, p := range paths {
		if p != "" {
			l.tracked = append(l.tracked, filepath.Clean(p))
		}
	}
}

// Config returns the current configuration.
func (l *Loader) Config() *Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.config
}

// OnChange registers a callback invoked with the previous and new
// configuration after every successful reload. Register before Watch.
func (l *Loader) OnChange(cb func(old, new *Config)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onChange = append(l.onChange, cb)
}

// Errors returns a channel for receiving errors that occur during watching.
// Errors are dropped when nobody is receiving.
func (l *Loader) Errors() <-chan error {
	return l.errChan
}

// Watch starts watching the configuration file and tracked files for
// changes. A reload that fails to parse or validate leaves the current
// configuration in place and is reported on Errors. A configuration file
// whose directory does not exist yet is not watched.
func (l *Loader) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	// Watch directories: editors often replace the file on save.
	dirs := map[string]bool{}
	for _, p := range l.watched() {
		dir := filepath.Dir(p)
		if dirs[dir] {
			continue
		}
		dirs[dir] = true
		if err := watcher.Add(dir); err != nil {
			if p == filepath.Clean(l.path) && errors.Is(err, fs.ErrNotExist) {
				continue
			}
			watcher.Close()
			return fmt.Errorf("watch directory %s: %w", dir, err)
		}
	}

	l.watcher = watcher
	l.done = make(chan struct{})
	go l.watchLoop()
	return nil
}

func (l *Loader) watched() []string {
	return append([]string{filepath.Clean(l.path)}, l.tracked...)
}

func (l *Loader) watchLoop() {
	defer close(l.done)

	names := map[string]bool{}
	for _, p := range l.watched() {
		names[p] = true
	}

	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-l.ctx.Done():
			return

		case event, ok := <-l.watcher.Events:
			if !ok {
				return
			}
			if !names[filepath.Clean(event.Name)] {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(DebounceDelay, l.reload)

		case err, ok := <-l.watcher.Errors:
			if !ok {
				return
			}
			l.report(err)
		}
	}
}

func (l *Loader) reload() {
	if l.ctx.Err() != nil {
		return
	}
	cfg, err := Load(l.path)
	if err != nil {
		l.report(fmt.Errorf("reload config: %w", err))
		return
	}

	l.mu.Lock()
	old := l.config
	l.config = cfg
	callbacks := append([]func(old, new *Config){}, l.onChange...)
	l.mu.Unlock()

	for _, cb := range callbacks {
		cb(old, cfg)
	}
}

func (l *Loader) report(err error) {
	select {
	case l.errChan <- err:
	default:
	}
}

// Close stops the watcher and releases resources.
func (l *Loader) Close() error {
	l.cancel()
	if l.watcher == nil {
		return nil
	}
	err := l.watcher.Close()
	<-l.done
	return err
}

// loadConfigFromFile reads and parses a config file based on its extension.
func loadConfigFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	switch filepath.Ext(path) {
	case ".toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("decode TOML: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("decode JSON: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("decode YAML: %w", err)
		}
	default:
		if err := autoDetectAndParse(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	return cfg, nil
}

// autoDetectAndParse tries TOML, then JSON, then YAML, each on fresh
// defaults so a failed attempt leaves nothing behind.
func autoDetectAndParse(data []byte, cfg *Config) error {
	try := []func(*Config) error{
		func(c *Config) error { _, err := toml.Decode(string(data), c); return err },
		func(c *Config) error { return json.Unmarshal(data, c) },
		func(c *Config) error { return yaml.Unmarshal(data, c) },
	}
	for _, decode := range try {
		candidate := DefaultConfig()
		if err := decode(candidate); err == nil {
			*cfg = *candidate
			return nil
		}
	}
	return fmt.Errorf("unable to parse config file (tried TOML, JSON, YAML)")
}

// Save writes cfg to path as TOML, creating parent directories.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("create config file: %w", err)
	}
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		f.Close()
		return fmt.Errorf("encode TOML: %w", err)
	}
	return f.Close()
}
