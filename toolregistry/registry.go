// Package toolregistry is the process-wide catalog of callable tools (spec
// §4.1). It is concurrent-read, infrequent-write, following the teacher's
// registry.Manager construction-with-Option idiom: a sync.RWMutex-guarded
// map plus a handful of With* options for injecting telemetry.
package toolregistry

import (
	"context"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/planexec/planexec/telemetry"
	"github.com/planexec/planexec/workflowerrors"
)

type (
	// Invoker executes a tool given a synthesized argument mapping. It
	// returns either a JSON-serializable result value or an error carrying a
	// message (spec §6 Tool invoker contract). Long-running invokers must
	// honor ctx's deadline, which the Executor sets from Schema.TimeoutSeconds.
	Invoker func(ctx context.Context, args map[string]any) (any, error)

	// Schema is the registry record describing one tool (spec §3 Tool Schema).
	Schema struct {
		Name              string
		Description       string
		Parameters        map[string]any // JSON-Schema-shaped
		Returns           map[string]any
		RequiresAuth      bool
		RequiresUserConfig bool
		ConfigSchema      map[string]any
		TimeoutSeconds    int
		Tags              []string
	}

	entry struct {
		schema  Schema
		invoker Invoker
		compiled *jsonschema.Schema
	}

	// Option configures a Registry at construction time.
	Option func(*Registry)

	// Registry is the process-wide tool catalog. The zero value is not
	// usable; construct with New.
	Registry struct {
		mu      sync.RWMutex
		tools   map[string]*entry
		logger  telemetry.Logger
		metrics telemetry.Metrics
	}
)

// WithLogger sets the registry's logger. Defaults to a no-op logger.
func WithLogger(l telemetry.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// WithMetrics sets the registry's metrics recorder. Defaults to a no-op recorder.
func WithMetrics(m telemetry.Metrics) Option {
	return func(r *Registry) { r.metrics = m }
}

// New constructs an empty Registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		tools:   make(map[string]*entry),
		logger:  telemetry.NewNoopLogger(),
		metrics: telemetry.NewNoopMetrics(),
	}
	for _, o := range opts {
		if o != nil {
			o(r)
		}
	}
	return r
}

// Register adds schema/invoker to the catalog. It fails with a
// workflowerrors.KindDuplicateTool error when schema.Name is already
// registered, and compiles schema.Parameters (when non-empty) so later
// ValidateArgs calls don't pay recompilation cost per invocation.
func (r *Registry) Register(schema Schema, invoker Invoker) error {
	if schema.Name == "" {
		return workflowerrors.New(workflowerrors.KindDuplicateTool, "tool name is required")
	}
	if invoker == nil {
		return workflowerrors.Newf(workflowerrors.KindDuplicateTool, "tool %q requires an invoker", schema.Name)
	}
	if schema.TimeoutSeconds <= 0 {
		schema.TimeoutSeconds = 60
	}

	var compiled *jsonschema.Schema
	if len(schema.Parameters) > 0 {
		c, err := compileSchema(schema.Name, schema.Parameters)
		if err != nil {
			return workflowerrors.Wrap(workflowerrors.KindDuplicateTool, fmt.Sprintf("tool %q has invalid parameter schema", schema.Name), err)
		}
		compiled = c
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.tools[schema.Name]; dup {
		return workflowerrors.Newf(workflowerrors.KindDuplicateTool, "tool %q already registered", schema.Name)
	}
	r.tools[schema.Name] = &entry{schema: schema, invoker: invoker, compiled: compiled}
	return nil
}

// Unregister removes a tool from the catalog. Returns false if it was absent.
func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tools[name]; !ok {
		return false
	}
	delete(r.tools, name)
	return true
}

// Get returns the schema and invoker registered under name.
func (r *Registry) Get(name string) (Schema, Invoker, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.tools[name]
	if !ok {
		return Schema{}, nil, false
	}
	return e.schema, e.invoker, true
}

// ListNames returns all registered tool names in no particular order.
func (r *Registry) ListNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.tools))
	for name := range r.tools {
		out = append(out, name)
	}
	return out
}

// ListSchemas returns every registered Schema.
func (r *Registry) ListSchemas() []Schema {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Schema, 0, len(r.tools))
	for _, e := range r.tools {
		out = append(out, e.schema)
	}
	return out
}

// SearchByTag returns the schemas of every tool carrying tag.
func (r *Registry) SearchByTag(tag string) []Schema {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Schema
	for _, e := range r.tools {
		for _, t := range e.schema.Tags {
			if t == tag {
				out = append(out, e.schema)
				break
			}
		}
	}
	return out
}

// ValidateArgs validates args against the compiled parameter schema for
// name, if one was registered. A tool with no declared Parameters accepts
// any argument mapping.
func (r *Registry) ValidateArgs(name string, args map[string]any) error {
	r.mu.RLock()
	e, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return workflowerrors.Newf(workflowerrors.KindToolNotFound, "unknown tool %q", name)
	}
	if e.compiled == nil {
		return nil
	}
	if err := e.compiled.Validate(toAnyMap(args)); err != nil {
		return workflowerrors.Wrap(workflowerrors.KindToolFailed, fmt.Sprintf("arguments for %q do not satisfy schema", name), err)
	}
	return nil
}

func toAnyMap(args map[string]any) any {
	if args == nil {
		return map[string]any{}
	}
	return args
}

func compileSchema(name string, raw map[string]any) (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	res := fmt.Sprintf("inline:///%s.json", name)
	if err := c.AddResource(res, raw); err != nil {
		return nil, err
	}
	return c.Compile(res)
}
