package tool

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/wayfarerlabs/wayfarer/agent/contract"
)

// Handler executes a tool with already-validated arguments. Handlers return
// plain errors; the dispatcher turns them into failed ToolCalls.
type Handler func(ctx context.Context, args map[string]any) (any, error)

// Definition registers one callable tool: its argument contract, execution
// bounds, and handler. Retries defaults to zero — most external calls are
// not safely retryable.
type Definition struct {
	Name    string
	Desc    string
	Params  map[string]*schema.ParameterInfo
	Timeout time.Duration
	Retries int
	Handler Handler
}

// Info renders the definition as the schema handed to the model gateway.
func (d Definition) Info() *schema.ToolInfo {
	return &schema.ToolInfo{
		Name:        d.Name,
		Desc:        d.Desc,
		ParamsOneOf: schema.NewParamsOneOfByParams(d.Params),
	}
}

// Registry is the catalog of callable tools.
type Registry struct {
	mu    sync.RWMutex
	defs  map[string]Definition
	order []string
}

func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]Definition)}
}

func (r *Registry) Register(def Definition) error {
	name := strings.TrimSpace(def.Name)
	if name == "" {
		return fmt.Errorf("%w: tool name is empty", contract.ErrValidation)
	}
	if def.Handler == nil {
		return fmt.Errorf("%w: tool=%s has no handler", contract.ErrValidation, name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.defs[name]; ok {
		return fmt.Errorf("%w: tool=%s already registered", contract.ErrValidation, name)
	}
	def.Name = name
	r.defs[name] = def
	r.order = append(r.order, name)
	return nil
}

func (r *Registry) MustRegister(def Definition) {
	if err := r.Register(def); err != nil {
		panic(err)
	}
}

func (r *Registry) Lookup(name string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[name]
	return def, ok
}

// Infos returns tool schemas in registration order, for the gateway.
func (r *Registry) Infos() []*schema.ToolInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	infos := make([]*schema.ToolInfo, 0, len(r.order))
	for _, name := range r.order {
		def := r.defs[name]
		infos = append(infos, def.Info())
	}
	return infos
}

// Definitions returns the registered definitions in registration order.
func (r *Registry) Definitions() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]Definition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.defs[name])
	}
	return defs
}
