// Package env implements the single parametric environment shape shared by
// every backend: a chain of frames, lookup walking outward, binding always
// happening in the innermost frame. The tree evaluator instantiates it with
// T = value.Value (a live runtime value); the bytecode compiler and native
// code generator each instantiate it with their own compile-time slot
// record. All are a mapping with an outer pointer under the same contract,
// so one generic type serves every backend.
package env

import "schemeimpl.dev/scheme/pkg/scmerr"

// Env is one frame in the chain. The zero value is not usable; use New.
type Env[T any] struct {
	parent *Env[T]
	vars   map[string]T
}

// New returns a fresh, empty, parentless frame — the process-wide top frame
// in the terminology of the spec (built-in procedures get Bind'd here).
func New[T any]() *Env[T] {
	return &Env[T]{vars: map[string]T{}}
}

// Extend returns a new child frame of e. Bindings registered in the child
// shadow same-named bindings in e without mutating it.
func (e *Env[T]) Extend() *Env[T] {
	return &Env[T]{parent: e, vars: map[string]T{}}
}

// Bind introduces name in this frame (not an ancestor), overwriting any
// existing binding of the same name in this frame only.
func (e *Env[T]) Bind(name string, val T) {
	e.vars[name] = val
}

// Find walks the chain from e outward, returning the first binding of name.
// Returns scmerr.UnboundIdentifier if no frame in the chain binds it.
func (e *Env[T]) Find(name string) (T, error) {
	for frame := e; frame != nil; frame = frame.parent {
		if val, ok := frame.vars[name]; ok {
			return val, nil
		}
	}
	var zero T
	return zero, scmerr.New(scmerr.UnboundIdentifier, "unbound identifier %q", name)
}

// Set walks the chain from e outward and overwrites the nearest existing
// binding of name in place, returning scmerr.UnboundIdentifier if none
// exists. Used by SetBang, which must mutate the binding's home frame, not
// shadow it locally.
func (e *Env[T]) Set(name string, val T) error {
	for frame := e; frame != nil; frame = frame.parent {
		if _, ok := frame.vars[name]; ok {
			frame.vars[name] = val
			return nil
		}
	}
	return scmerr.New(scmerr.UnboundIdentifier, "unbound identifier %q", name)
}

// Has reports whether name is bound anywhere in the chain, without the
// error-allocation cost of Find — used by the free-variable pass to test
// "is this name local or does it cross a lambda boundary" without caring
// about the bound value.
func (e *Env[T]) Has(name string) bool {
	for frame := e; frame != nil; frame = frame.parent {
		if _, ok := frame.vars[name]; ok {
			return true
		}
	}
	return false
}
