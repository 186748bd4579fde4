// Package algorithm is the registry of alignment methods. Each plugin
// maps the raw nested config into backend trainer arguments; swapping
// algorithms never touches the pipeline or the orchestrator.
package algorithm

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Plugin is one alignment method.
type Plugin interface {
	// Name is the registry key, e.g. "dpo".
	Name() string
	// RequiredDataFormat names the record layout the method trains on.
	RequiredDataFormat() string
	// BuildTrainerArgs derives the backend argument map from the raw
	// nested run configuration.
	BuildTrainerArgs(raw map[string]any) (map[string]any, error)
}

var (
	mu      sync.RWMutex
	plugins = make(map[string]Plugin)
)

// Register adds a plugin to the registry. Called from init; a
// duplicate name is a programming error.
func Register(p Plugin) {
	mu.Lock()
	defer mu.Unlock()
	name := p.Name()
	if _, dup := plugins[name]; dup {
		panic(fmt.Sprintf("algorithm %q registered twice", name))
	}
	plugins[name] = p
}

// Get resolves a plugin by name.
func Get(name string) (Plugin, error) {
	mu.RLock()
	defer mu.RUnlock()
	p, ok := plugins[name]
	if !ok {
		return nil, fmt.Errorf("unknown algorithm %q, available: %s", name, strings.Join(availableLocked(), ", "))
	}
	return p, nil
}

// Available returns the sorted registered algorithm names.
func Available() []string {
	mu.RLock()
	defer mu.RUnlock()
	return availableLocked()
}

func availableLocked() []string {
	names := make([]string, 0, len(plugins))
	for name := range plugins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
