package quant

import (
	"fmt"
	"sync"
)

// Registry dispatches codec construction to the factory registered for a
// given Type. A process-wide Registry (global) is populated by init below;
// tests that want isolation can construct their own with NewRegistry.
type Registry struct {
	mu        sync.RWMutex
	factories map[Type]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[Type]Factory)}
}

func (r *Registry) Register(t Type, factory Factory) error {
	if factory == nil {
		return fmt.Errorf("factory cannot be nil")
	}
	if !factory.Supports(t) {
		return fmt.Errorf("factory %s does not support %s", factory.Name(), t)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[t]; exists {
		return fmt.Errorf("factory for %s already registered", t)
	}
	r.factories[t] = factory
	return nil
}

func (r *Registry) Create(config *Config) (Quantizer, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	factory, exists := r.factories[config.Type]
	r.mu.RUnlock()
	if !exists {
		return nil, fmt.Errorf("no factory registered for %s", config.Type)
	}
	return factory.Create(config)
}

func (r *Registry) IsSupported(t Type) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.factories[t]
	return exists
}

var global = NewRegistry()

func Register(t Type, factory Factory) error { return global.Register(t, factory) }
func Create(config *Config) (Quantizer, error) { return global.Create(config) }
func IsSupported(t Type) bool                 { return global.IsSupported(t) }

func init() {
	if err := Register(ScalarQuantization, NewScalarQuantizerFactory()); err != nil {
		panic(fmt.Sprintf("register scalar quantizer: %v", err))
	}
	if err := Register(ProductQuantization, NewProductQuantizerFactory()); err != nil {
		panic(fmt.Sprintf("register product quantizer: %v", err))
	}
}
