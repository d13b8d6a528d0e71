package activation

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	ErrActivationExists   = errors.New("activation already registered")
	ErrActivationNotFound = errors.New("activation not found")
)

// Factory builds a fresh unit. Stateful units must not be shared, so the
// registry hands out a new instance per call.
type Factory func() Activation

var registry = struct {
	mu sync.RWMutex
	m  map[string]Factory
}{
	m: make(map[string]Factory),
}

func init() {
	initializeBuiltIns()
}

func initializeBuiltIns() {
	for _, f := range []Func{Identity, TanH, Sigmoid, Elliot, Gaussian, Sinc, ReLU, SoftPlus} {
		fn := f
		MustRegister(fn.Name, func() Activation { return fn })
	}
	MustRegister("simple_if", func() Activation { return NewSimpleIF(DefaultSimpleIFSettings()) })
}

func Register(name string, factory Factory) error {
	if name == "" {
		return errors.New("activation name is required")
	}
	if factory == nil {
		return errors.New("activation factory is required")
	}

	registry.mu.Lock()
	defer registry.mu.Unlock()

	if _, exists := registry.m[name]; exists {
		return fmt.Errorf("%w: %s", ErrActivationExists, name)
	}
	registry.m[name] = factory
	return nil
}

func MustRegister(name string, factory Factory) {
	if err := Register(name, factory); err != nil {
		panic(err)
	}
}

// New builds a unit registered under name.
func New(name string) (Activation, error) {
	registry.mu.RLock()
	factory, ok := registry.m[name]
	registry.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrActivationNotFound, name)
	}
	return factory(), nil
}

func List() []string {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	names := make([]string, 0, len(registry.m))
	for name := range registry.m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func resetRegistryForTests() {
	registry.mu.Lock()
	registry.m = make(map[string]Factory)
	registry.mu.Unlock()
	initializeBuiltIns()
}
