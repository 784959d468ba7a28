// Package registry is the glue of the capability system: it holds the
// resolver, transformer, bundler, namer and runtime implementations a
// build runs with. Modules register their capabilities at startup; the
// registry is validated once before any build starts, so a mismatch
// between configuration and compiled-in modules fails early instead of
// mid-build.
package registry

import (
	"errors"
	"fmt"
)

// Module is the interface every capability module implements to be
// registered at startup.
type Module interface {
	Register(r *Registry)
}

// Registry holds the capability set for a single application instance.
// Namers keep their registration order; during naming the first namer to
// return a non-empty path wins.
type Registry struct {
	resolver    Resolver
	transformer Transformer
	bundler     Bundler
	namers      []namerEntry
	runtimes    []runtimeEntry
}

type namerEntry struct {
	name  string
	namer Namer
}

type runtimeEntry struct {
	name    string
	runtime Runtime
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{}
}

// RegisterResolver installs the resolver capability. There is exactly one
// per registry; registering a second is a programmer error.
func (r *Registry) RegisterResolver(res Resolver) {
	if r.resolver != nil {
		panic("registry: resolver already registered")
	}
	r.resolver = res
}

// RegisterTransformer installs the transformer capability.
func (r *Registry) RegisterTransformer(t Transformer) {
	if r.transformer != nil {
		panic("registry: transformer already registered")
	}
	r.transformer = t
}

// RegisterBundler installs the bundler capability.
func (r *Registry) RegisterBundler(b Bundler) {
	if r.bundler != nil {
		panic("registry: bundler already registered")
	}
	r.bundler = b
}

// RegisterNamer appends a namer. Declaration order is naming priority.
func (r *Registry) RegisterNamer(name string, n Namer) {
	for _, e := range r.namers {
		if e.name == name {
			panic(fmt.Sprintf("registry: namer %q already registered", name))
		}
	}
	r.namers = append(r.namers, namerEntry{name: name, namer: n})
}

// RegisterRuntime appends a runtime, applied in registration order.
func (r *Registry) RegisterRuntime(name string, rt Runtime) {
	for _, e := range r.runtimes {
		if e.name == name {
			panic(fmt.Sprintf("registry: runtime %q already registered", name))
		}
	}
	r.runtimes = append(r.runtimes, runtimeEntry{name: name, runtime: rt})
}

// Resolver returns the registered resolver capability.
func (r *Registry) Resolver() Resolver { return r.resolver }

// Transformer returns the registered transformer capability.
func (r *Registry) Transformer() Transformer { return r.transformer }

// Bundler returns the registered bundler capability.
func (r *Registry) Bundler() Bundler { return r.bundler }

// Namers returns the namers in declaration order.
func (r *Registry) Namers() []Namer {
	out := make([]Namer, len(r.namers))
	for i, e := range r.namers {
		out[i] = e.namer
	}
	return out
}

// Runtimes returns the runtimes in declaration order.
func (r *Registry) Runtimes() []Runtime {
	out := make([]Runtime, len(r.runtimes))
	for i, e := range r.runtimes {
		out[i] = e.runtime
	}
	return out
}

// Validate checks that the registry can support a build: resolution,
// transformation, bundling and at least one namer must be present.
// Runtimes are optional.
func (r *Registry) Validate() error {
	if r.resolver == nil {
		return errors.New("registry: no resolver registered")
	}
	if r.transformer == nil {
		return errors.New("registry: no transformer registered")
	}
	if r.bundler == nil {
		return errors.New("registry: no bundler registered")
	}
	if len(r.namers) == 0 {
		return errors.New("registry: no namer registered")
	}
	return nil
}
