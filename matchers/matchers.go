/*
 * Copyright 2020 grant@lastweekend.com.au
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

// Package matchers provides single-argument Matcher implementations for
// decoy.WhenBuilder/VerifyBuilder Called(...) conditions: a single-arg
// Matcher contract (Matches(other interface{}) bool), since positional
// arity binding (spec.go's Signature.Bind) already validates argument count
// and type against a Spy's signature.
package matchers

import (
	"fmt"
	"reflect"
	"strings"
)

// Eql matches a single argument via reflect.DeepEqual.
func Eql(v interface{}) interface{ Matches(interface{}) bool } {
	return eqlMatcher{v}
}

type eqlMatcher struct{ want interface{} }

func (m eqlMatcher) Matches(other interface{}) bool { return reflect.DeepEqual(m.want, other) }
func (m eqlMatcher) String() string                 { return fmt.Sprintf("Eql(%v)", m.want) }

type anyMatcher struct{}

func (anyMatcher) Matches(interface{}) bool { return true }
func (anyMatcher) String() string           { return "Any" }

var singletonAny = anyMatcher{}

// AnyValue matches any single argument, including nil.
func AnyValue() interface{ Matches(interface{}) bool } { return singletonAny }

type nilMatcher struct{}

func (nilMatcher) String() string { return "Nil" }

func (nilMatcher) Matches(other interface{}) bool {
	if other == nil {
		return true
	}
	v := reflect.ValueOf(other)
	switch v.Kind() {
	case reflect.Chan, reflect.Func, reflect.Interface, reflect.Map, reflect.Ptr, reflect.Slice:
		return v.IsNil()
	}
	return false
}

var singletonNil = nilMatcher{}

// Nil matches nil, or a nil chan, func, interface, map, pointer or slice.
// Values of other kinds, such as 0 or "", never match.
func Nil() interface{ Matches(interface{}) bool } { return singletonNil }

// IsA matches an argument assignable to, or implementing, t's type. t may be
// a reflect.Type directly, or any value whose reflect.TypeOf is used.
func IsA(t interface{}) interface{ Matches(interface{}) bool } {
	rt, ok := t.(reflect.Type)
	if !ok {
		rt = reflect.TypeOf(t)
	}
	return isAMatcher{rt}
}

type isAMatcher struct{ want reflect.Type }

func (m isAMatcher) String() string { return fmt.Sprintf("IsA(%v)", m.want) }

func (m isAMatcher) Matches(other interface{}) bool {
	if other == nil {
		return false
	}
	at := reflect.TypeOf(other)
	if at.Kind() == reflect.Interface {
		return at.AssignableTo(m.want) || at.Implements(m.want)
	}
	return at.AssignableTo(m.want) || (m.want.Kind() == reflect.Interface && at.Implements(m.want))
}

// Len matches an Array/Chan/Map/Slice/String argument whose length matches
// v, which may be an int or a nested Matcher (e.g. Len(Func(...))).
func Len(v interface{}) interface{ Matches(interface{}) bool } {
	return lenMatcher{toMatcher(v)}
}

type lenMatcher struct{ inner matcher }

func (l lenMatcher) String() string { return fmt.Sprintf("Len(%v)", l.inner) }

func (l lenMatcher) Matches(other interface{}) bool {
	v := reflect.ValueOf(other)
	switch v.Kind() {
	case reflect.Array, reflect.Chan, reflect.Map, reflect.Slice, reflect.String:
		return l.inner.Matches(v.Len())
	default:
		return false
	}
}

// Func builds a Matcher from an arbitrary func(x T) bool, where T is
// assignable from the candidate argument's type. explanation, if given, is
// formatted and used as the matcher's String().
func Func(f interface{}, explanation ...interface{}) interface{ Matches(interface{}) bool } {
	fv := reflect.ValueOf(f)
	explain := fmt.Sprintf("%T", f)
	if len(explanation) > 0 {
		explain = fmt.Sprint(explanation...)
	}
	return funcMatcher{fv, explain}
}

type funcMatcher struct {
	fn      reflect.Value
	explain string
}

func (f funcMatcher) String() string { return f.explain }

func (f funcMatcher) Matches(other interface{}) bool {
	out := f.fn.Call([]reflect.Value{reflect.ValueOf(other)})
	return out[0].Interface().(bool)
}

// matcher is the minimal shape matchers in this package need from each
// other or from a plain value, so All/Any/Not can wrap either.
type matcher interface {
	Matches(other interface{}) bool
}

func toMatcher(v interface{}) matcher {
	if m, ok := v.(matcher); ok {
		return m
	}
	return eqlMatcher{v}
}

type matcherList []matcher

func (l matcherList) String(prefix string, lRune, rRune rune) string {
	var s strings.Builder
	s.WriteString(prefix)
	if len(l) > 0 {
		s.WriteRune(lRune)
		for i, m := range l {
			if i > 0 {
				s.WriteRune(',')
			}
			fmt.Fprint(&s, m)
		}
		s.WriteRune(rRune)
	}
	return s.String()
}

type allMatcher struct{ matcherList }

func (a allMatcher) String() string { return a.matcherList.String("All", '{', '}') }

func (a allMatcher) Matches(other interface{}) bool {
	for _, m := range a.matcherList {
		if !m.Matches(other) {
			return false
		}
	}
	return true
}

// All matches if every one of matchers matches (true for an empty list).
func All(matchers ...interface{}) interface{ Matches(interface{}) bool } {
	ms := make(matcherList, len(matchers))
	for i, m := range matchers {
		ms[i] = toMatcher(m)
	}
	return allMatcher{ms}
}

type anyOfMatcher struct{ matcherList }

func (a anyOfMatcher) String() string { return a.matcherList.String("Any", '{', '}') }

func (a anyOfMatcher) Matches(other interface{}) bool {
	for _, m := range a.matcherList {
		if m.Matches(other) {
			return true
		}
	}
	return false
}

// AnyOf matches if at least one of matchers matches (false for an empty list).
func AnyOf(matchers ...interface{}) interface{ Matches(interface{}) bool } {
	ms := make(matcherList, len(matchers))
	for i, m := range matchers {
		ms[i] = toMatcher(m)
	}
	return anyOfMatcher{ms}
}

type notMatcher struct{ inner matcher }

func (n notMatcher) String() string                 { return fmt.Sprintf("Not(%v)", n.inner) }
func (n notMatcher) Matches(other interface{}) bool { return !n.inner.Matches(other) }

// Not negates v, which may be a Matcher or a plain value (compared via Eql).
func Not(v interface{}) interface{ Matches(interface{}) bool } {
	return notMatcher{toMatcher(v)}
}

// Captor is both a Matcher (it matches any value, like AnyValue) and a recorder
// of every value it has matched, for retrieval after the call has happened -
// spec.md §4.4's matcher capture capability. A Captor is not safe for
// concurrent use from multiple rehearsals; it is meant to be installed on
// exactly one When/Verify condition per test.
type Captor struct {
	values []interface{}
}

// NewCaptor returns a fresh, empty Captor.
func NewCaptor() *Captor { return &Captor{} }

func (c *Captor) String() string { return "Captor" }

// Matches always reports true; Capture(v) is invoked by decoy's matching
// code after Matches returns true, via decoy's (unexported-interface,
// exported-method) captor capability.
func (c *Captor) Matches(interface{}) bool { return true }

// Capture records v as the most recently matched value. Exported so
// package decoy's captor capability can call it across package boundaries.
func (c *Captor) Capture(v interface{}) { c.values = append(c.values, v) }

// Value returns the most recently captured value, and false if nothing was
// ever captured.
func (c *Captor) Value() (interface{}, bool) {
	if len(c.values) == 0 {
		return nil, false
	}
	return c.values[len(c.values)-1], true
}

// Values returns every value captured so far, oldest first.
func (c *Captor) Values() []interface{} {
	out := make([]interface{}, len(c.values))
	copy(out, c.values)
	return out
}
