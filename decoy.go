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
	"sync"
	"sync/atomic"

	"github.com/davecgh/go-spew/spew"
	"github.com/google/uuid"
)

// T is compatible with the builtin testing.T - a Decoy only ever needs these
// four methods from a test.
type T interface {
	Errorf(format string, args ...interface{})
	Fatalf(format string, args ...interface{})
	Logf(format string, args ...interface{})
	Helper()
}

// Decoy is the container described in spec.md §6: it owns every Spy's
// Interaction Log, Stub Store, and the per-goroutine last-call channel, and
// exposes Mock/When/Verify/VerifyOrder/Reset.
type Decoy struct {
	ID uuid.UUID

	t      T
	strict bool

	mu       sync.Mutex
	seq      uint64
	log      []*CallRecord
	spies    []*Spy
	warnings []*Error

	lastCall           sync.Map // goroutineID (or pinned key) -> *lastCallEntry
	pinnedGoroutineKey atomic.Value

	verifyOrderActive int32 // guards against nested VerifyOrder blocks
}

// Option configures a Decoy at construction time.
type Option func(*Decoy)

// Strict makes SignatureMismatch fatal instead of a warning.
func Strict() Option {
	return func(d *Decoy) { d.strict = true }
}

// New constructs a Decoy bound to t.
func New(t T, opts ...Option) *Decoy {
	d := &Decoy{ID: uuid.New(), t: t}
	for _, o := range opts {
		o(d)
	}
	return d
}

// WithGoroutineKey pins the last-call slot this Decoy reads/writes to an
// explicit key, for every goroutine using this Decoy from then on (Reset
// does not unpin it), rather than the default of deriving one from each
// goroutine's runtime id.
// Use this when a rehearsal is deliberately driven from one goroutine (e.g.
// a worker pool feeding the subject under test) while When/Verify run on
// another.
func (d *Decoy) WithGoroutineKey(key uint64) {
	d.pinnedGoroutineKey.Store(key)
}

// MockOption configures a Spy at creation time.
type MockOption func(*mockConfig)

type mockConfig struct {
	ignoreExtraArgs bool
}

// IgnoreExtraArgs makes every rehearsal and verification against the
// resulting Spy default to ignoring extra (trailing) positional arguments.
// The per-rule IgnoreExtraArgs builder methods can only turn this on, not
// off.
func IgnoreExtraArgs() MockOption {
	return func(c *mockConfig) { c.ignoreExtraArgs = true }
}

func buildMockConfig(opts []MockOption) *mockConfig {
	c := &mockConfig{}
	for _, o := range opts {
		o(c)
	}
	return c
}

// MockInterface creates a Spy from the nil pointer to an interface type,
// e.g. decoy.MockInterface(d, (*Thing)(nil)). An incompatible ptr routes
// through the MockSpecInvalid fatal path instead of panicking.
func MockInterface(d *Decoy, ptr interface{}, opts ...MockOption) *Spy {
	d.t.Helper()
	spec, ok := safeSpec(d, func() *Spec { return SpecFromInterface(ptr) })
	if !ok {
		return nil
	}
	return d.newSpy(spec, opts...)
}

// MockFunc creates a Spy from a function value's signature. A non-func fn
// routes through the MockSpecInvalid fatal path instead of panicking.
func MockFunc(d *Decoy, fn interface{}, opts ...MockOption) *Spy {
	d.t.Helper()
	spec, ok := safeSpec(d, func() *Spec { return SpecFromFunc(fn) })
	if !ok {
		return nil
	}
	return d.newSpy(spec, opts...)
}

// MockName creates a bare Spy identified only by name; calls against it
// accept any arguments. An empty name is spec.md §7's canonical invalid
// bare-mock construction and is rejected via MockSpecInvalid.
func MockName(d *Decoy, name string, isAsync bool, opts ...MockOption) *Spy {
	d.t.Helper()
	if name == "" {
		d.report(MockSpecInvalid, "MockName requires a non-empty name")
		return nil
	}
	specOpts := []SpecOption{}
	if isAsync {
		specOpts = append(specOpts, Async())
	}
	return d.newSpy(SpecFromName(name, specOpts...), opts...)
}

// safeSpec runs build, converting any panic (SpecFromInterface/SpecFromFunc
// reject malformed input by panicking, since they have no *Decoy to report
// through) into a MockSpecInvalid report against d.
func safeSpec(d *Decoy, build func() *Spec) (spec *Spec, ok bool) {
	d.t.Helper()
	defer func() {
		if r := recover(); r != nil {
			d.report(MockSpecInvalid, "%v", r)
			ok = false
		}
	}()
	return build(), true
}

func (d *Decoy) newSpy(spec *Spec, opts ...MockOption) *Spy {
	cfg := buildMockConfig(opts)
	spy := &Spy{
		ID:              uuid.New(),
		decoy:           d,
		spec:            spec,
		store:           newStubStore(),
		ignoreExtraArgs: cfg.ignoreExtraArgs,
	}
	d.mu.Lock()
	d.spies = append(d.spies, spy)
	d.mu.Unlock()
	return spy
}

// Reset clears every Stub Store, the Interaction Log, and the last-call
// channel, and runs the miscalled-stub diagnostic (spec.md §4.6) before
// clearing. Spies remain usable after Reset, with cleared state.
func (d *Decoy) Reset() {
	d.t.Helper()
	d.runMiscalledStubDiagnostic()

	d.mu.Lock()
	d.log = nil
	d.seq = 0
	d.warnings = nil
	spies := d.spies
	d.mu.Unlock()

	for _, spy := range spies {
		spy.store = newStubStore()
		spy.resetOverrides()
	}
	d.lastCall.Range(func(key, _ interface{}) bool {
		d.lastCall.Delete(key)
		return true
	})
}

// runMiscalledStubDiagnostic implements spec.md §4.6: for every spy with at
// least one installed rule and at least one recorded call matching no
// rule, emit a warning enumerating the rules and the unmatched calls.
func (d *Decoy) runMiscalledStubDiagnostic() {
	d.mu.Lock()
	spies := append([]*Spy(nil), d.spies...)
	d.mu.Unlock()

	for _, spy := range spies {
		rules := spy.store.snapshot()
		if len(rules) == 0 {
			continue
		}
		var unmatched []*CallRecord
		for _, record := range spy.recordsOf() {
			if record.Kind != KindCall {
				continue
			}
			if !spy.store.matchesAny(record) {
				unmatched = append(unmatched, record)
			}
		}
		if len(unmatched) > 0 {
			conditions := make([]*Condition, len(rules))
			for i, rule := range rules {
				conditions[i] = rule.condition
			}
			d.warn(newError(MiscalledStub,
				"%s has %d rule(s) installed:\n%sbut %d call(s) matched none:\n%s",
				spy.spec, len(rules), spew.Sdump(conditions), len(unmatched), spew.Sdump(unmatched)))
		}
	}
}
