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
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Spy is a live proxy with identity (spec.md §3): every interaction against
// it is recorded on the owning Decoy's interaction log and answered by its
// Stub Store.
type Spy struct {
	ID    uuid.UUID
	decoy *Decoy
	spec  *Spec
	store *stubStore

	parent   *Spy
	attrName string

	ignoreExtraArgs bool

	mu        sync.Mutex
	children  map[string]*Spy
	overrides map[string]interface{}

	entryCount int32
}

// Spec returns the Spy's Spec.
func (s *Spy) Spec() *Spec { return s.spec }

// Decoy returns the Spy's owning Decoy.
func (s *Spy) Decoy() *Decoy { return s.decoy }

func (s *Spy) String() string { return s.spec.String() }

// Attr navigates to the child Spy for attribute name, creating and caching
// it on first access from the Spec's child derivation. This is pure
// navigation: it does not record an interaction and does not consult
// overrides, mirroring spec.md §4.2's "return the cached child Spy (create
// on first access)".
func (s *Spy) Attr(name string) *Spy {
	s.mu.Lock()
	defer s.mu.Unlock()
	if child, ok := s.children[name]; ok {
		return child
	}
	var childSpec *Spec
	if s.spec != nil {
		childSpec, _ = s.spec.Child(name)
	}
	child := &Spy{
		ID:       uuid.New(),
		decoy:    s.decoy,
		spec:     childSpec,
		store:    newStubStore(),
		parent:   s,
		attrName: name,
	}
	if s.children == nil {
		s.children = map[string]*Spy{}
	}
	s.children[name] = child
	s.decoy.mu.Lock()
	s.decoy.spies = append(s.decoy.spies, child)
	s.decoy.mu.Unlock()
	return child
}

// Get records a "get" interaction and returns the stored override for name
// if Set installed one, else the (possibly newly created) child Spy -
// spec.md §4.2's attribute-stub API.
func (s *Spy) Get(name string) interface{} {
	s.mu.Lock()
	override, has := s.overrides[name]
	s.mu.Unlock()

	s.record(&CallRecord{Kind: KindGet, Attr: name})

	if has {
		return override
	}
	return s.Attr(name)
}

// Set records a "set" interaction and stores value, shadowing the child Spy
// at that attribute name until Delete clears it.
func (s *Spy) Set(name string, value interface{}) {
	s.mu.Lock()
	if s.overrides == nil {
		s.overrides = map[string]interface{}{}
	}
	s.overrides[name] = value
	s.mu.Unlock()

	s.record(&CallRecord{Kind: KindSet, Attr: name, Value: value})
}

// Delete records a "delete" interaction and clears any override at name,
// restoring Get's child-Spy fallback.
func (s *Spy) Delete(name string) {
	s.mu.Lock()
	delete(s.overrides, name)
	s.mu.Unlock()

	s.record(&CallRecord{Kind: KindDelete, Attr: name})
}

// Call records a "call" interaction, consults the Stub Store, and executes
// the matched rule's action, or returns the Spec's zero-valued defaults
// (spec.md §4.2).
func (s *Spy) Call(args ...interface{}) ([]interface{}, error) {
	return s.CallKW(args, nil)
}

// CallKW is Call with an additional keyword-argument map, for the rare Go
// caller that wants the keyword-matching semantics of spec.md §4.4 point 4;
// most callers should just use Call.
func (s *Spy) CallKW(args []interface{}, kwargs map[string]interface{}) ([]interface{}, error) {
	s.checkSignature(args)
	record := s.record(&CallRecord{Kind: KindCall, Args: args, Kwargs: kwargs})
	return s.resolve(record)
}

// checkSignature binds args against the Spec's Signature, if it has one -
// there is no Go interface-implementing wrapper enforcing this statically,
// since a Spy answers any interface method through the same untyped
// Call(args ...interface{}), so this is the runtime stand-in for what the
// compiler would otherwise reject. A mismatch reports SignatureMismatch,
// fatal only when the owning Decoy was built with Strict().
func (s *Spy) checkSignature(args []interface{}) {
	if s.spec == nil || s.spec.Signature == nil {
		return
	}
	if err := s.spec.Signature.Bind(args); err != nil {
		s.decoy.report(SignatureMismatch, "%s: %v", s, err)
	}
}

// PendingCall represents an asynchronous call whose stub action resolves at
// Await time, not at call time - spec.md §4.2's load-bearing placement that
// makes the v2 rehearsal surface work identically for async calls.
type PendingCall struct {
	spy    *Spy
	record *CallRecord
}

// CallAsync records the call immediately (so When/Verify can observe it
// right away via the last-call channel) but defers resolving the stub
// action until Await is called.
func (s *Spy) CallAsync(args ...interface{}) *PendingCall {
	s.checkSignature(args)
	record := s.record(&CallRecord{Kind: KindCall, Args: args})
	return &PendingCall{spy: s, record: record}
}

// Await resolves the pending call's stub action. ctx cancellation surfaces
// as ctx.Err(); Decoy never swallows it.
func (p *PendingCall) Await(ctx context.Context) ([]interface{}, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	return p.spy.resolve(p.record)
}

// Enter records an "enter" interaction, increments the entry counter (so
// the record's EntryCountAtRecord already reflects "now entered"), and
// returns the configured value - either from a ThenEnterWith rule, or the
// Spy itself if unstubbed.
func (s *Spy) Enter() interface{} {
	atomic.AddInt32(&s.entryCount, 1)
	record := s.record(&CallRecord{Kind: KindEnter, EntryCountAtRecord: atomic.LoadInt32(&s.entryCount)})

	results, err := s.resolve(record)
	if err != nil || len(results) == 0 {
		return s
	}
	return results[0]
}

// Exit records an "exit" interaction (still reflecting "entered") and then
// decrements the entry counter. The counter never goes negative.
func (s *Spy) Exit() {
	current := atomic.LoadInt32(&s.entryCount)
	record := s.record(&CallRecord{Kind: KindExit, EntryCountAtRecord: current})
	s.resolve(record)

	for {
		current = atomic.LoadInt32(&s.entryCount)
		if current <= 0 {
			return
		}
		if atomic.CompareAndSwapInt32(&s.entryCount, current, current-1) {
			return
		}
	}
}

// ContextManager is a standalone context-manager object built by
// NewContextManager (a ThenEnterWith rule does not produce one; it makes the
// Spy's own Enter return the value). Go has no with-statement, so callers
// invoke Enter/Exit explicitly:
//
//	cm := decoy.NewContextManager(spy, value)
//	v := cm.Enter()
//	defer cm.Exit()
type ContextManager struct {
	spy   *Spy
	value interface{}
}

// NewContextManager builds a standalone ContextManager tied to spy's entry
// counter, for use as a then_return/then_do payload when a *method* of a
// Spy (rather than the Spy itself) is the thing that should behave as a
// context manager.
func NewContextManager(spy *Spy, value interface{}) *ContextManager {
	return &ContextManager{spy: spy, value: value}
}

// Enter increments the owning Spy's entry counter and returns the
// configured value.
func (c *ContextManager) Enter() interface{} {
	atomic.AddInt32(&c.spy.entryCount, 1)
	return c.value
}

// Exit decrements the owning Spy's entry counter.
func (c *ContextManager) Exit() {
	for {
		current := atomic.LoadInt32(&c.spy.entryCount)
		if current <= 0 {
			return
		}
		if atomic.CompareAndSwapInt32(&c.spy.entryCount, current, current-1) {
			return
		}
	}
}

func (s *Spy) record(partial *CallRecord) *CallRecord {
	partial.SpyID = s.ID.String()
	if partial.Kind != KindEnter && partial.Kind != KindExit {
		partial.EntryCountAtRecord = atomic.LoadInt32(&s.entryCount)
	}
	return s.decoy.publish(s, partial)
}

// resolve looks up the Stub Store for a matching rule and executes its
// action, falling back to the Spec's zero-valued defaults. If the Spy has
// at least one installed rule but none matched, a MiscalledStub warning is
// deferred to Decoy.Reset's sweep rather than raised per-call, per
// spec.md §4.6.
func (s *Spy) resolve(record *CallRecord) ([]interface{}, error) {
	a, matched, _ := s.store.match(record)
	if !matched {
		return s.defaultResult(record), nil
	}
	return a.execute(record.Args)
}

func (s *Spy) defaultResult(record *CallRecord) []interface{} {
	if record.Kind == KindEnter {
		return []interface{}{s}
	}
	if s.spec == nil || s.spec.Signature == nil {
		return nil
	}
	return s.spec.Signature.ZeroValues()
}

// recordsOf returns every record on the Decoy's log belonging to this Spy
// or one of its descendants - used by
// Verify's "parent target also matches children" rule (spec.md §4.6) and
// by the miscalled-stub diagnostic.
func (s *Spy) recordsOf() []*CallRecord {
	return s.recordsMatchingSpies(s.selfAndDescendantIDs(), true)
}

func (s *Spy) selfAndDescendantIDs() map[string]bool {
	ids := map[string]bool{s.ID.String(): true}
	s.mu.Lock()
	children := make([]*Spy, 0, len(s.children))
	for _, c := range s.children {
		children = append(children, c)
	}
	s.mu.Unlock()
	for _, c := range children {
		for id := range c.selfAndDescendantIDs() {
			ids[id] = true
		}
	}
	return ids
}

func (s *Spy) recordsMatchingSpies(ids map[string]bool, _ bool) []*CallRecord {
	s.decoy.mu.Lock()
	defer s.decoy.mu.Unlock()
	var out []*CallRecord
	for _, r := range s.decoy.log {
		if ids[r.SpyID] {
			out = append(out, r)
		}
	}
	return out
}

func (s *Spy) resetOverrides() {
	s.mu.Lock()
	s.overrides = nil
	s.mu.Unlock()
	atomic.StoreInt32(&s.entryCount, 0)
	s.mu.Lock()
	children := make([]*Spy, 0, len(s.children))
	for _, c := range s.children {
		children = append(children, c)
	}
	s.mu.Unlock()
	for _, c := range children {
		c.store = newStubStore()
		c.resetOverrides()
	}
}
