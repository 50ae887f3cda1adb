package runtime

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
)

// Handler runs one job type. Returning nil without calling Succeed still
// marks the run succeeded.
type Handler interface {
	Type() string
	Run(jc *Context) error
}

// Registry maps job_type to its handler. It is filled once at startup and
// shared by the worker pool and the temporal activity.
type Registry struct {
	mu     sync.RWMutex
	byType map[string]Handler
}

func NewRegistry() *Registry {
	return &Registry{byType: map[string]Handler{}}
}

// Register rejects an empty or duplicate job type.
func (r *Registry) Register(h Handler) error {
	if h == nil {
		return errors.New("runtime: nil handler")
	}
	jobType := strings.TrimSpace(h.Type())
	if jobType == "" {
		return errors.New("runtime: handler has no job type")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.byType[jobType]; dup {
		return fmt.Errorf("runtime: job type %q registered twice", jobType)
	}
	r.byType[jobType] = h
	return nil
}

func (r *Registry) Get(jobType string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.byType[jobType]
	return h, ok
}

func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.byType))
}
