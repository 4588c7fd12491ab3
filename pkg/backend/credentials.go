package backend

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// CredentialSource supplies the backend API key. The gateway holds a single
// shared credential; it may be configured inline or read from a file that is
// hot-reloaded on change (Kubernetes-style secret mounts rotate credentials
// by rewriting the file).
type CredentialSource interface {
	// Get returns the current credential value.
	Get() string

	// Close releases any resources held by the source.
	Close() error
}

// StaticCredential is a fixed credential value.
type StaticCredential string

// Get returns the credential value.
func (s StaticCredential) Get() string { return string(s) }

// Close is a no-op for static credentials.
func (s StaticCredential) Close() error { return nil }

// FileCredential reads the credential from a file and reloads it whenever
// the file changes.
type FileCredential struct {
	path string

	mu      sync.RWMutex
	value   string
	watcher *fsnotify.Watcher
	stopCh  chan struct{}
}

// NewFileCredential creates a credential source backed by the given file.
// The file's parent directory is watched so that atomic rename-into-place
// updates are observed as well as in-place writes.
func NewFileCredential(path string) (*FileCredential, error) {
	value, err := readCredentialFile(path)
	if err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to watch credential directory: %w", err)
	}

	c := &FileCredential{
		path:    path,
		value:   value,
		watcher: watcher,
		stopCh:  make(chan struct{}),
	}
	go c.watchLoop()

	slog.Info("credential file watching started", "path", path)
	return c, nil
}

// Get returns the most recently loaded credential value.
func (c *FileCredential) Get() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.value
}

// Close stops the file watcher.
func (c *FileCredential) Close() error {
	close(c.stopCh)
	return c.watcher.Close()
}

// watchLoop reloads the credential when the watched file changes.
func (c *FileCredential) watchLoop() {
	for {
		select {
		case <-c.stopCh:
			return

		case event, ok := <-c.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(c.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			value, err := readCredentialFile(c.path)
			if err != nil {
				slog.Warn("credential reload failed, keeping previous value",
					"path", c.path,
					"error", err,
				)
				continue
			}

			c.mu.Lock()
			changed := value != c.value
			c.value = value
			c.mu.Unlock()

			if changed {
				slog.Info("credential reloaded", "path", c.path)
			}

		case err, ok := <-c.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("credential watcher error", "path", c.path, "error", err)
		}
	}
}

// readCredentialFile reads and trims the credential file contents.
func readCredentialFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read credential file: %w", err)
	}
	value := strings.TrimSpace(string(data))
	if value == "" {
		return "", fmt.Errorf("credential file %q is empty", path)
	}
	return value, nil
}

// NewCredentialSource builds the credential source described by the config:
// a watched file when APIKeyFile is set, otherwise the inline key.
func NewCredentialSource(cfg Config) (CredentialSource, error) {
	if cfg.APIKeyFile != "" {
		return NewFileCredential(cfg.APIKeyFile)
	}
	return StaticCredential(cfg.APIKey), nil
}
