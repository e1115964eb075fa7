// Package fshost implements a directory-backed module host.
//
// Each immediate subdirectory of the host root that contains a manifest.toml
// file is exposed as one active module. The manifest names the module and
// carries its headers:
//
//	name = "greeter"
//
//	[headers]
//	DependencyManager-Component = "components/greeter.dm"
//
// Modules appear when their directory (with manifest) appears and stop when
// it disappears. Changes are picked up by a filesystem watcher and,
// optionally, by a periodic cron rescan that covers events the watcher may
// have missed.
package fshost

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"

	"github.com/declwire/declwire"
	"github.com/declwire/declwire/registry"
)

// Static errors for fshost package
var (
	ErrRootNotDirectory   = errors.New("module root is not a directory")
	ErrManifestRead       = errors.New("failed to read module manifest")
	ErrEntryOutsideModule = errors.New("entry path escapes module directory")
	ErrHostStopped        = errors.New("host is stopped")
)

// manifestName is the per-module manifest file.
const manifestName = "manifest.toml"

type manifest struct {
	Name    string            `toml:"name"`
	Headers map[string]string `toml:"headers"`
}

// Host watches a root directory and exposes its subdirectories as modules.
type Host struct {
	root   string
	logger declwire.Logger
	types  *registry.TypeRegistry

	rescanSpec string

	mu        sync.RWMutex
	modules   map[string]*dirModule // keyed by directory name
	listeners []declwire.ModuleListener
	stopped   bool

	watcher *fsnotify.Watcher
	cron    *cron.Cron
	done    chan struct{}
	wg      sync.WaitGroup
}

// Option configures a Host.
type Option func(*Host)

// WithRescanSpec enables a periodic rescan on a cron schedule, e.g.
// "@every 30s".
func WithRescanSpec(spec string) Option {
	return func(h *Host) { h.rescanSpec = spec }
}

// New creates a host over the given root directory. Component implementation
// types referenced by descriptors are resolved against the type registry.
func New(root string, types *registry.TypeRegistry, logger declwire.Logger, opts ...Option) (*Host, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrRootNotDirectory, root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrRootNotDirectory, root)
	}

	h := &Host{
		root:    root,
		logger:  logger,
		types:   types,
		modules: make(map[string]*dirModule),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Start performs the initial scan and begins watching for changes.
func (h *Host) Start() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create filesystem watcher: %w", err)
	}
	if err := watcher.Add(h.root); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", h.root, err)
	}
	h.watcher = watcher

	h.Rescan()

	h.wg.Add(1)
	go h.watchLoop()

	if h.rescanSpec != "" {
		h.cron = cron.New()
		if _, err := h.cron.AddFunc(h.rescanSpec, h.Rescan); err != nil {
			return fmt.Errorf("invalid rescan schedule %q: %w", h.rescanSpec, err)
		}
		h.cron.Start()
		h.logger.Info("Periodic module rescan enabled", "schedule", h.rescanSpec)
	}

	h.logger.Info("Module host started", "root", h.root, "modules", len(h.ActiveModules()))
	return nil
}

// Stop halts watching and stops every module.
func (h *Host) Stop() error {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return ErrHostStopped
	}
	h.stopped = true
	modules := make([]*dirModule, 0, len(h.modules))
	for _, mod := range h.modules {
		modules = append(modules, mod)
	}
	h.modules = make(map[string]*dirModule)
	h.mu.Unlock()

	close(h.done)
	if h.watcher != nil {
		_ = h.watcher.Close()
	}
	if h.cron != nil {
		<-h.cron.Stop().Done()
	}
	h.wg.Wait()

	for _, mod := range modules {
		h.notify(declwire.ModuleEvent{Module: mod, State: declwire.ModuleStopping})
	}
	h.logger.Info("Module host stopped", "root", h.root)
	return nil
}

// watchLoop turns filesystem events under the root into rescans. Event
// bursts from a single module install collapse into one scan per event; the
// scan itself is idempotent.
func (h *Host) watchLoop() {
	defer h.wg.Done()
	for {
		select {
		case <-h.done:
			return
		case event, ok := <-h.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			h.logger.Debug("Filesystem change detected", "path", event.Name, "op", event.Op.String())
			h.Rescan()
		case err, ok := <-h.watcher.Errors:
			if !ok {
				return
			}
			h.logger.Warn("Filesystem watcher error", "error", err)
		}
	}
}

// Rescan reconciles the module set against the directory contents:
// directories that gained a manifest become active modules, directories that
// disappeared stop their modules. Safe to call concurrently.
func (h *Host) Rescan() {
	entries, err := os.ReadDir(h.root)
	if err != nil {
		h.logger.Error("Failed to scan module root", "root", h.root, "error", err)
		return
	}

	present := make(map[string]bool, len(entries))
	var added, removed []*dirModule

	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dirName := entry.Name()
		present[dirName] = true

		// Watch the module directory itself so a manifest written after
		// the directory appeared still triggers a rescan.
		if h.watcher != nil {
			_ = h.watcher.Add(filepath.Join(h.root, dirName))
		}

		if _, known := h.modules[dirName]; known {
			continue
		}

		mod, err := h.loadModule(dirName)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				h.logger.Debug("Ignoring directory without manifest", "dir", dirName)
			} else {
				h.logger.Error("Failed to load module", "dir", dirName, "error", err)
			}
			continue
		}
		h.modules[dirName] = mod
		added = append(added, mod)
	}
	for dirName, mod := range h.modules {
		if !present[dirName] {
			delete(h.modules, dirName)
			removed = append(removed, mod)
		}
	}
	h.mu.Unlock()

	for _, mod := range removed {
		h.logger.Info("Module removed", "module", mod.Name(), "dir", mod.dir)
		h.notify(declwire.ModuleEvent{Module: mod, State: declwire.ModuleStopping})
	}
	for _, mod := range added {
		h.logger.Info("Module discovered", "module", mod.Name(), "dir", mod.dir)
		h.notify(declwire.ModuleEvent{Module: mod, State: declwire.ModuleActive})
	}
}

// loadModule reads a directory's manifest. Caller holds the host lock.
func (h *Host) loadModule(dirName string) (*dirModule, error) {
	dir := filepath.Join(h.root, dirName)
	data, err := os.ReadFile(filepath.Join(dir, manifestName))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrManifestRead, dirName, err)
	}

	var m manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrManifestRead, dirName, err)
	}
	if m.Name == "" {
		m.Name = dirName
	}

	return &dirModule{host: h, dir: dir, name: m.Name, headers: m.Headers}, nil
}

// ActiveModules implements declwire.ModuleHost.
func (h *Host) ActiveModules() []declwire.Module {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]declwire.Module, 0, len(h.modules))
	for _, mod := range h.modules {
		out = append(out, mod)
	}
	return out
}

// AddListener implements declwire.ModuleHost.
func (h *Host) AddListener(l declwire.ModuleListener) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listeners = append(h.listeners, l)
}

// RemoveListener implements declwire.ModuleHost.
func (h *Host) RemoveListener(l declwire.ModuleListener) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, existing := range h.listeners {
		if existing == l {
			h.listeners = append(h.listeners[:i], h.listeners[i+1:]...)
			return
		}
	}
}

// notify delivers one event to a snapshot of the listeners, synchronously.
func (h *Host) notify(event declwire.ModuleEvent) {
	h.mu.RLock()
	listeners := make([]declwire.ModuleListener, len(h.listeners))
	copy(listeners, h.listeners)
	h.mu.RUnlock()

	for _, l := range listeners {
		l.ModuleChanged(event)
	}
}

// dirModule is one module backed by a directory.
type dirModule struct {
	host    *Host
	dir     string
	name    string
	headers map[string]string
}

// Name implements declwire.Module.
func (m *dirModule) Name() string { return m.name }

// Header implements declwire.Module. Unknown headers return "".
func (m *dirModule) Header(name string) string { return m.headers[name] }

// OpenEntry implements declwire.Module. Entry paths are resolved inside the
// module directory; paths escaping it are rejected.
func (m *dirModule) OpenEntry(path string) (io.ReadCloser, error) {
	full := filepath.Join(m.dir, filepath.FromSlash(path))
	rel, err := filepath.Rel(m.dir, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil, fmt.Errorf("%w: %s", ErrEntryOutsideModule, path)
	}
	return os.Open(full)
}

// LoadType implements declwire.Module by delegating to the host's shared
// type registry.
func (m *dirModule) LoadType(name string) (registry.Constructor, error) {
	return m.host.types.Lookup(name)
}
