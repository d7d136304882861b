package environment

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrUnknown is returned when looking up a Factory that was never
// registered
var ErrUnknown = errors.New("unknown environment")

var (
	mu        sync.RWMutex
	factories = make(map[string]Factory)
)

// Register registers a Factory under its name so that worker processes
// can rebuild it. Register panics if a different Factory was already
// registered under the same name.
func Register(f Factory) {
	mu.Lock()
	defer mu.Unlock()

	if existing, ok := factories[f.Name()]; ok && existing != f {
		panic(fmt.Sprintf("register: environment %q registered twice",
			f.Name()))
	}
	factories[f.Name()] = f
}

// Lookup returns the Factory registered under name
func Lookup(name string) (Factory, error) {
	mu.RLock()
	defer mu.RUnlock()

	f, ok := factories[name]
	if !ok {
		return nil, fmt.Errorf("lookup %q: %w", name, ErrUnknown)
	}
	return f, nil
}

// Names returns the names of all registered factories, sorted
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()

	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
