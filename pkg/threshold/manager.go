// Package threshold is the registry of threshold signing engines. An
// engine supplies the coordinator and signer capabilities the run loop
// drives; the cryptography lives entirely behind it.
package threshold

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/luxfi/signer/pkg/committee"
	"github.com/luxfi/signer/pkg/kvstore"
	"github.com/luxfi/signer/pkg/runloop"
)

var ErrEngineNotFound = errors.New("threshold: engine not found")

// EngineConfig is everything an engine needs to build this node's
// coordinator and signer.
type EngineConfig struct {
	SignerID   uint32
	KeyIDs     []uint32
	Threshold  committee.ThresholdConfig
	Keys       committee.PublicKeySet
	PrivateKey *secp256k1.PrivateKey

	DkgPublicTimeout time.Duration
	DkgEndTimeout    time.Duration
	NonceTimeout     time.Duration
	SignTimeout      time.Duration

	// Shares persists key shares across restarts. Nil keeps them in memory.
	Shares kvstore.KVStore
	Logger zerolog.Logger
}

func (c EngineConfig) Validate() error {
	if c.PrivateKey == nil {
		return errors.New("threshold: missing message private key")
	}
	pub, err := c.Keys.PublicKey(c.SignerID)
	if err != nil {
		return err
	}
	if !pub.IsEqual(c.PrivateKey.PubKey()) {
		return fmt.Errorf("threshold: private key does not match signer %d", c.SignerID)
	}
	if len(c.KeyIDs) == 0 {
		return fmt.Errorf("threshold: signer %d holds no key shares", c.SignerID)
	}
	return nil
}

// Engine builds the round capabilities for one signer.
type Engine interface {
	Name() string
	New(cfg EngineConfig) (runloop.Coordinator, runloop.Signer, error)
}

// Manager manages the available threshold engines
type Manager struct {
	engines map[string]Engine
	mu      sync.RWMutex
}

// NewManager creates an empty engine registry
func NewManager() *Manager {
	return &Manager{engines: make(map[string]Engine)}
}

// Register adds an engine, replacing any engine with the same name.
func (m *Manager) Register(engine Engine) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.engines[engine.Name()] = engine
}

// Get returns an engine by name
func (m *Manager) Get(name string) (Engine, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	engine, ok := m.engines[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (registered: %v)", ErrEngineNotFound, name, m.listLocked())
	}
	return engine, nil
}

// List returns the registered engine names in sorted order.
func (m *Manager) List() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listLocked()
}

func (m *Manager) listLocked() []string {
	names := lo.Keys(m.engines)
	slices.Sort(names)
	return names
}

// Build validates cfg and asks the named engine for this node's
// capabilities.
func (m *Manager) Build(name string, cfg EngineConfig) (runloop.Coordinator, runloop.Signer, error) {
	engine, err := m.Get(name)
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	coordinator, signer, err := engine.New(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("threshold: engine %s: %w", name, err)
	}
	return coordinator, signer, nil
}

// Close cleans up all engines
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, engine := range m.engines {
		if closer, ok := engine.(interface{ Close() }); ok {
			closer.Close()
		}
	}
}

var defaultManager = NewManager()

// Default is the process-wide registry engines add themselves to.
func Default() *Manager { return defaultManager }

// Register adds an engine to the default registry.
func Register(engine Engine) { defaultManager.Register(engine) }
