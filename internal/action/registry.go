package action

import (
	"fmt"
	"sync"

	"github.com/haatos/conveyor/internal/pipeline"
)

// Factory builds an action from its definition params.
type Factory func(params map[string]string) (pipeline.Action, error)

// Registry maps action kinds appearing in pipeline definitions to their
// factories. Resolve satisfies pipeline.ActionResolver.
type Registry struct {
	mu        sync.Mutex
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

func (r *Registry) Register(kind string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[kind] = f
}

func (r *Registry) Resolve(kind string, params map[string]string) (pipeline.Action, error) {
	r.mu.Lock()
	f, ok := r.factories[kind]
	r.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("unknown action kind %q", kind)
	}
	return f(params)
}

func requireParam(params map[string]string, name string) (string, error) {
	v, ok := params[name]
	if !ok || v == "" {
		return "", fmt.Errorf("param %q is required", name)
	}
	return v, nil
}
