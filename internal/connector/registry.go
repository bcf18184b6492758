package connector

import (
	"fmt"
	"sort"
	"sync"
)

// Constructor creates a Connector bound to one appliance configuration.
type Constructor func(cfg ConnectorConfig) Connector

var (
	mu       sync.RWMutex
	registry = map[string]Constructor{}
)

// Register adds a connector constructor under the given provider name.
func Register(name string, ctor Constructor) {
	mu.Lock()
	defer mu.Unlock()
	registry[name] = ctor
}

// Get returns the connector constructor for the given provider name.
func Get(name string) (Constructor, error) {
	mu.RLock()
	defer mu.RUnlock()
	ctor, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown connector provider: %s", name)
	}
	return ctor, nil
}

// Open builds the connector selected by cfg.
func Open(cfg ConnectorConfig) (Connector, error) {
	ctor, err := Get(cfg.ProviderName())
	if err != nil {
		return nil, err
	}
	return ctor(cfg), nil
}

// Providers returns the names of all registered connector providers, sorted.
func Providers() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
