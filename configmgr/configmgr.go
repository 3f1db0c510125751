// Package configmgr implements the configuration manager (C11): a
// process-wide singleton exposing atomic snapshot reads and a validated,
// all-or-nothing replace, mirroring caddy.go's currentCfgMu/currentCfg pair
// generalized onto the standard library's generic atomic pointer.
package configmgr

import (
	"sync"
	"sync/atomic"

	"github.com/jerryr7/quantum-safe-proxy/config"
	"github.com/jerryr7/quantum-safe-proxy/qserrors"
)

// Event names which kind of replacement just happened, delivered to
// subscribers after the new snapshot is already live.
type Event int

const (
	// EventUpdated marks a programmatic Install (e.g. installing the startup
	// configuration).
	EventUpdated Event = iota
	// EventReloaded marks a file-based Reload.
	EventReloaded
)

// Listener is invoked, in registration order, after every successful
// replacement. Listeners run synchronously on the calling goroutine
// (Install/Reload's caller), matching caddy's OnEvent dispatch.
type Listener func(Event, *config.ProxyConfig)

// Manager is a process-wide singleton guarded by atomic.Pointer; every
// Get() is a single atomic load, so readers never observe a partially
// constructed ProxyConfig.
type Manager struct {
	current atomic.Pointer[config.ProxyConfig]

	mu        sync.Mutex
	listeners []Listener
}

// New returns a Manager holding an empty, unvalidated default ProxyConfig.
// Callers call Install before relying on Get in production.
func New() *Manager {
	m := &Manager{}
	m.current.Store(config.New())
	return m
}

// Get returns the current snapshot. The returned *ProxyConfig is never
// mutated in place; callers may retain it across concurrent Installs.
func (m *Manager) Get() *config.ProxyConfig {
	return m.current.Load()
}

// Install validates cv and, on success, atomically replaces the current
// snapshot and notifies subscribers with EventUpdated. On validation
// failure the previous snapshot remains live and the error is returned.
func (m *Manager) Install(cv *config.ProxyConfig) error {
	return m.replace(cv, EventUpdated)
}

// Reload reads path via a FileSource, merges it on top of the current
// snapshot with OriginFile, validates the result, and on success replaces
// the snapshot and notifies subscribers with EventReloaded. A reload
// failure leaves the previous configuration active.
func (m *Manager) Reload(path string) error {
	fileCV, err := (config.FileSource{Path: path}).Load()
	if err != nil {
		return qserrors.Configuration("load reload file", err)
	}

	merged := m.Get().Merge(fileCV, config.OriginFile)
	return m.replace(merged, EventReloaded)
}

func (m *Manager) replace(cv *config.ProxyConfig, event Event) error {
	if err := config.Validate(cv); err != nil {
		return err
	}

	m.current.Store(cv)

	m.mu.Lock()
	listeners := append([]Listener(nil), m.listeners...)
	m.mu.Unlock()

	for _, l := range listeners {
		l(event, cv)
	}
	return nil
}

// Subscribe registers listener to be invoked after every successful
// replacement, in registration order.
func (m *Manager) Subscribe(listener Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, listener)
}

// IsClientCertRequired, HasFallback, BufferSize, and ConnectionTimeout are
// derived atomic projections: cheap reads of the current snapshot's
// corresponding accessor, convenient for hot-path callers that need one
// field rather than the whole ProxyConfig.

func (m *Manager) IsClientCertRequired() bool {
	return m.Get().ClientCertRequired()
}

func (m *Manager) HasFallback() bool {
	return m.Get().HasFallback()
}

func (m *Manager) BufferSize() int {
	return m.Get().BufferSize()
}

func (m *Manager) ConnectionTimeout() int {
	return m.Get().ConnectionTimeoutSeconds()
}
