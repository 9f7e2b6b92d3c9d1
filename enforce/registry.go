package enforce

import (
	"context"
	"mangaapi/bizerror"
	"mangaapi/dac"
	"sync"
)

// Resource is any object that can be the target of a decision.
type Resource interface {
	DACTarget() dac.Target
}

// Flagged is implemented by resources carrying a content-sensitivity flag.
type Flagged interface {
	NSFW() bool
}

// Loader loads the object of its type by id, a missing object is reported as bizerror.ErrNotFound
// or gorm.ErrRecordNotFound.
type Loader func(ctx context.Context, id string) (Resource, error)

// Registry resolves targets back to concrete objects.
type Registry struct {
	mu      sync.RWMutex
	loaders map[dac.TargetType]Loader
}

func NewRegistry() *Registry {
	return &Registry{loaders: map[dac.TargetType]Loader{}}
}

func (r *Registry) Register(targetType dac.TargetType, loader Loader) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loaders[targetType] = loader
}

// Known reports whether the target type has a loader.
func (r *Registry) Known(targetType dac.TargetType) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.loaders[targetType]
	return ok
}

func (r *Registry) Resolve(ctx context.Context, target dac.Target) (Resource, error) {
	r.mu.RLock()
	loader, ok := r.loaders[target.Type]
	r.mu.RUnlock()
	if !ok {
		return nil, bizerror.ErrUnknownTargetType
	}
	if target.ID == "" || target.IsWildcard() {
		return nil, bizerror.ErrNotFound
	}
	res, err := loader(ctx, target.ID)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, bizerror.ErrNotFound
	}
	return res, nil
}
