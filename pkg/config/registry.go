package config

import (
	"embed"
	"fmt"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed taxonomies/*.yaml
var builtinFS embed.FS

var (
	registryMu sync.RWMutex
	registry   = make(map[string]*Taxonomy)

	builtinsOnce sync.Once
)

// RegisterBuiltins registers the taxonomies shipped with the binary
// (comedor, transporte).
func RegisterBuiltins() {
	builtinsOnce.Do(func() {
		entries, err := builtinFS.ReadDir("taxonomies")
		if err != nil {
			panic(fmt.Sprintf("cannot read builtin taxonomies: %v", err))
		}
		for _, entry := range entries {
			raw, err := builtinFS.ReadFile("taxonomies/" + entry.Name())
			if err != nil {
				panic(fmt.Sprintf("cannot read builtin taxonomy %s: %v", entry.Name(), err))
			}
			var t Taxonomy
			if err := yaml.Unmarshal(raw, &t); err != nil {
				panic(fmt.Sprintf("cannot parse builtin taxonomy %s: %v", entry.Name(), err))
			}
			MustRegister(&t)
		}
	})
}

// MustRegister adds a taxonomy under its kind, panicking on invalid or
// duplicate definitions.
func MustRegister(t *Taxonomy) {
	if err := t.Validate(); err != nil {
		panic(err.Error())
	}

	key := normalize(t.Kind)
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[key]; exists {
		panic(fmt.Sprintf("taxonomy '%s' already registered", t.Kind))
	}
	registry[key] = t
}

// Builtin returns the registered taxonomy for kind, or nil when absent.
func Builtin(kind string) *Taxonomy {
	RegisterBuiltins()
	registryMu.RLock()
	defer registryMu.RUnlock()
	return registry[normalize(kind)]
}

// BuiltinKinds lists registered kinds in sorted order.
func BuiltinKinds() []string {
	RegisterBuiltins()
	registryMu.RLock()
	defer registryMu.RUnlock()
	kinds := make([]string, 0, len(registry))
	for k := range registry {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

func normalize(name string) string {
	return strings.TrimSpace(strings.ToLower(name))
}
