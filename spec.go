/*
 * Copyright 2026 The Decoy Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package decoy

import (
	"fmt"
	"reflect"
	"sync"
)

// Param describes one positional parameter of a callable Spec. Go has no
// keyword arguments, so canonicalization of a call against a Signature
// (spec.md §4.1) reduces to positional arity and type-assignability
// checking via reflect.
type Param struct {
	Name     string
	Type     reflect.Type
	Variadic bool
}

// Signature is a callable Spec's parameter and return shape.
type Signature struct {
	Params   []Param
	OutTypes []reflect.Type
}

// Bind canonicalizes args against the signature's arity, accounting for a
// trailing variadic parameter. It never mutates args; it returns a
// SignatureMismatch-flavoured error on a binding failure, leaving the
// caller (Spy.Call) to decide whether that is fatal (strict mode) or a
// warning.
func (sig *Signature) Bind(args []interface{}) error {
	if sig == nil {
		return nil
	}
	n := len(sig.Params)
	variadic := n > 0 && sig.Params[n-1].Variadic
	switch {
	case variadic:
		if len(args) < n-1 {
			return fmt.Errorf("expected at least %d argument(s), got %d", n-1, len(args))
		}
	default:
		if len(args) != n {
			return fmt.Errorf("expected %d argument(s), got %d", n, len(args))
		}
	}
	for i, a := range args {
		var pt reflect.Type
		switch {
		case i < n-1 || (i < n && !variadic):
			pt = sig.Params[i].Type
		case variadic:
			pt = sig.Params[n-1].Type
		default:
			continue
		}
		if a == nil || pt == nil {
			continue
		}
		at := reflect.TypeOf(a)
		if !at.AssignableTo(pt) && !(pt.Kind() == reflect.Interface && at.Implements(pt)) {
			return fmt.Errorf("argument %d: %v is not assignable to %v", i, at, pt)
		}
	}
	return nil
}

// ZeroValues returns the signature's zero-valued defaults.
func (sig *Signature) ZeroValues() []interface{} {
	if sig == nil || len(sig.OutTypes) == 0 {
		return nil
	}
	out := make([]interface{}, len(sig.OutTypes))
	for i, t := range sig.OutTypes {
		out[i] = reflect.Zero(t).Interface()
	}
	return out
}

// Spec is an immutable description of a mockable surface: a display name,
// an optional callable Signature, an asyncness flag, and a lazily
// materialized mapping from child attribute name to nested Spec.
type Spec struct {
	Name      string
	FullName  string
	Signature *Signature
	IsAsync   bool
	ClassType reflect.Type // the interface type this Spec was derived from, if any

	mu          sync.Mutex
	children    map[string]*Spec
	deriveChild func(name string) (*Spec, bool)
}

// SpecOption configures a Spec at derivation time.
type SpecOption func(*specConfig)

type specConfig struct {
	name    string
	async   bool
	asyncOf map[string]bool // per-method async override, for SpecFromInterface
}

// Named overrides the Spec's derived display name.
func Named(name string) SpecOption {
	return func(c *specConfig) { c.name = name }
}

// Async marks the Spec (or, for SpecFromInterface, every method not
// otherwise named by AsyncMethod) as asynchronous.
func Async() SpecOption {
	return func(c *specConfig) { c.async = true }
}

// AsyncMethod marks a single method of an interface Spec as asynchronous,
// without requiring every method to be.
func AsyncMethod(name string) SpecOption {
	return func(c *specConfig) {
		if c.asyncOf == nil {
			c.asyncOf = map[string]bool{}
		}
		c.asyncOf[name] = true
	}
}

func buildConfig(opts []SpecOption) *specConfig {
	c := &specConfig{}
	for _, o := range opts {
		o(c)
	}
	return c
}

// SpecFromName builds a bare Spec with no signature; calls against it bind
// with any arguments.
func SpecFromName(name string, opts ...SpecOption) *Spec {
	c := buildConfig(opts)
	if c.name != "" {
		name = c.name
	}
	return &Spec{Name: name, FullName: name, IsAsync: c.async}
}

// SpecFromFunc builds a Spec with a Signature derived from fn, a Go func
// value (not a bound method).
func SpecFromFunc(fn interface{}, opts ...SpecOption) *Spec {
	c := buildConfig(opts)
	ft := reflect.TypeOf(fn)
	if ft == nil || ft.Kind() != reflect.Func {
		panic(fmt.Sprintf("decoy: SpecFromFunc requires a func value, got %T", fn))
	}
	name := c.name
	if name == "" {
		name = "func"
	}
	return &Spec{
		Name:      name,
		FullName:  name,
		Signature: signatureOf(ft),
		IsAsync:   c.async || isAsyncType(ft),
	}
}

// SpecFromInterface builds a Spec from the nil pointer to an interface type,
// e.g. (*Thing)(nil). A child Spec is derived lazily for each interface
// method.
func SpecFromInterface(ptr interface{}, opts ...SpecOption) *Spec {
	c := buildConfig(opts)

	ptrType := reflect.TypeOf(ptr)
	if ptrType == nil || ptrType.Kind() != reflect.Ptr || ptrType.Elem().Kind() != reflect.Interface {
		panic(fmt.Sprintf("decoy: SpecFromInterface expects a pointer to nil interface, got %T", ptr))
	}
	ifaceType := ptrType.Elem()

	name := c.name
	if name == "" {
		name = ifaceType.Name()
	}

	spec := &Spec{
		Name:      name,
		FullName:  ifaceType.PkgPath() + "." + ifaceType.Name(),
		ClassType: ifaceType,
	}
	spec.deriveChild = func(methodName string) (*Spec, bool) {
		m, found := ifaceType.MethodByName(methodName)
		if !found {
			return nil, false
		}
		return &Spec{
			Name:      methodName,
			FullName:  spec.FullName + "." + methodName,
			Signature: signatureOf(m.Type),
			IsAsync:   c.async || c.asyncOf[methodName] || isAsyncType(m.Type),
		}, true
	}
	return spec
}

// Child returns the cached child Spec for name, lazily deriving and caching
// it on first access. Ok is false only for an interface Spec with no method
// of that name; any other Spec synthesizes a bare child.
func (s *Spec) Child(name string) (child *Spec, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.children == nil {
		s.children = map[string]*Spec{}
	}
	if child, ok = s.children[name]; ok {
		return child, true
	}
	if s.deriveChild == nil {
		// Bare or function Specs have no children; synthesize a bare one so
		// arbitrary attribute chains off a loosely-specced Spy still work.
		child = &Spec{Name: name, FullName: s.FullName + "." + name}
		s.children[name] = child
		return child, true
	}
	child, ok = s.deriveChild(name)
	if ok {
		s.children[name] = child
	}
	return child, ok
}

func (s *Spec) String() string {
	return s.FullName
}

func signatureOf(ft reflect.Type) *Signature {
	sig := &Signature{}
	numIn := ft.NumIn()
	for i := 0; i < numIn; i++ {
		pt := ft.In(i)
		variadic := ft.IsVariadic() && i == numIn-1
		if variadic {
			// ft.In(i) for a variadic parameter is the slice type ([]int,
			// not int); Bind matches each trailing argument one at a time,
			// so Param.Type must be the element type actually compared.
			pt = pt.Elem()
		}
		sig.Params = append(sig.Params, Param{
			Name:     fmt.Sprintf("arg%d", i),
			Type:     pt,
			Variadic: variadic,
		})
	}
	for i := 0; i < ft.NumOut(); i++ {
		sig.OutTypes = append(sig.OutTypes, ft.Out(i))
	}
	return sig
}

// isAsyncType reports whether ft's shape suggests an asynchronous call: Go
// has no coroutine keyword, so Decoy treats a function whose sole (or
// final) return is a channel as async-shaped. Explicit Async()/AsyncMethod
// annotations are the normal way to mark a method asynchronous; this is
// only a convenience fallback.
func isAsyncType(ft reflect.Type) bool {
	if ft.NumOut() == 0 {
		return false
	}
	return ft.Out(ft.NumOut()-1).Kind() == reflect.Chan
}
