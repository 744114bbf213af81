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
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/davecgh/go-spew/spew"
)

// When opens a rehearsal builder against spy. If the calling goroutine's
// last-call slot holds an undrained record for spy, it is drained and used
// to seed the builder's condition (the "v2" channel-driven surface,
// spec.md §1/§4.5); otherwise the builder starts empty and one of
// Called/Get/Set/Delete/Enter must be used to seed it (the "v3" explicit
// surface) before any Then* call.
func (d *Decoy) When(spy *Spy) *WhenBuilder {
	d.t.Helper()
	b := &WhenBuilder{decoy: d, spy: spy}
	if entry, ok := d.drainLastCall(); ok && entry.spy == spy {
		b.condition = conditionFromRecord(entry.record)
		b.condition.IgnoreExtraArgs = spy.ignoreExtraArgs
		b.seeded = true
	}
	return b
}

// WhenBuilder configures a behaviorRule for a Spy - spec.md §4.5.
type WhenBuilder struct {
	decoy     *Decoy
	spy       *Spy
	condition *Condition
	seeded    bool
}

func conditionFromRecord(r *CallRecord) *Condition {
	return &Condition{
		Kind:        r.Kind,
		Attr:        r.Attr,
		Args:        append([]interface{}(nil), r.Args...),
		Kwargs:      r.Kwargs,
		SetValue:    r.Value,
		hasSetValue: r.Kind == KindSet,
	}
}

func (b *WhenBuilder) ensureCondition(kind InteractionKind) *Condition {
	if b.condition == nil {
		b.condition = &Condition{Kind: kind, IgnoreExtraArgs: b.spy.ignoreExtraArgs}
	}
	return b.condition
}

// Called seeds or replaces the condition's argument list for a call
// interaction - the v3 surface's ".called_with", which always replaces the
// args even when a record was already drained (spec.md §4.5).
func (b *WhenBuilder) Called(args ...interface{}) *WhenBuilder {
	c := b.ensureCondition(KindCall)
	c.Kind = KindCall
	c.Args = args
	b.seeded = true
	return b
}

// Get seeds a "get" condition for attribute name.
func (b *WhenBuilder) Get(name string) *WhenBuilder {
	c := b.ensureCondition(KindGet)
	c.Kind = KindGet
	c.Attr = name
	b.seeded = true
	return b
}

// Set seeds a "set" condition for attribute name and value.
func (b *WhenBuilder) Set(name string, value interface{}) *WhenBuilder {
	c := b.ensureCondition(KindSet)
	c.Kind = KindSet
	c.Attr = name
	c.SetValue = value
	c.hasSetValue = true
	b.seeded = true
	return b
}

// Delete seeds a "delete" condition for attribute name.
func (b *WhenBuilder) Delete(name string) *WhenBuilder {
	c := b.ensureCondition(KindDelete)
	c.Kind = KindDelete
	c.Attr = name
	b.seeded = true
	return b
}

// Enter seeds an "enter" condition.
func (b *WhenBuilder) Enter() *WhenBuilder {
	c := b.ensureCondition(KindEnter)
	c.Kind = KindEnter
	b.seeded = true
	return b
}

// IgnoreExtraArgs makes this rule's condition match a prefix of the actual
// positional arguments rather than requiring an exact-length match.
func (b *WhenBuilder) IgnoreExtraArgs() *WhenBuilder {
	b.ensureCondition(KindCall).IgnoreExtraArgs = true
	return b
}

// IsEntered constrains this rule to only match while (entered=true) or
// while not (entered=false) inside an Enter/Exit pair.
func (b *WhenBuilder) IsEntered(entered bool) *WhenBuilder {
	b.ensureCondition(KindCall).IsEntered = &entered
	return b
}

func (b *WhenBuilder) install(action action, remaining *int) {
	b.decoy.t.Helper()
	if !b.seeded {
		b.decoy.report(MissingRehearsal,
			"when(%s) has no rehearsal: perform the interaction first, or call Called/Get/Set/Delete/Enter", b.spy)
		return
	}
	b.spy.store.install(&behaviorRule{condition: b.condition.clone(), action: action, remaining: remaining})
}

// ThenReturn installs a rule returning values.
//
// Go, unlike the dynamic-language original, has true multiple return
// values, which makes "pass N values to then_return" genuinely ambiguous:
// it must mean "this one call returns these N values" for a spy whose Spec
// signature has N out types (e.g. a (bool, error)-returning method), but it
// must mean spec.md's "N successive one-shot calls, in order, then fall
// back to the default" for everything else (the common single-return or
// spec-less case). ThenReturn disambiguates using the Spec's Signature: if
// it is known and has more than one out type and len(values) matches it
// exactly, values are installed as one unbounded rule returning the full
// tuple; otherwise each value becomes its own one-shot rule, appended
// oldest-value-last so the Stub Store's newest-first scan still yields them
// in call order. Use ThenReturnEach to force the one-shot-sequence
// behavior even when the arity happens to match the signature.
func (b *WhenBuilder) ThenReturn(values ...interface{}) {
	b.decoy.t.Helper()
	if b.isMultiValueSingleCall(values) {
		b.install(returnAction{values: values}, nil)
		return
	}
	b.ThenReturnEach(values...)
}

// ThenReturnEach installs two or more values as N one-shot rules consumed in
// order - spec.md §8's "three successive matching calls yield a, b, c, and
// the fourth yields the default" property, regardless of the Spec's
// Signature arity. A single value (or none, treated as one nil value)
// installs one unbounded rule instead, returned on every matching call.
func (b *WhenBuilder) ThenReturnEach(values ...interface{}) {
	b.decoy.t.Helper()
	if len(values) <= 1 {
		var v interface{}
		if len(values) == 1 {
			v = values[0]
		}
		b.install(returnAction{values: []interface{}{v}}, nil)
		return
	}
	for i := len(values) - 1; i >= 0; i-- {
		one := 1
		b.install(returnAction{values: []interface{}{values[i]}}, &one)
	}
}

func (b *WhenBuilder) isMultiValueSingleCall(values []interface{}) bool {
	if b.spy.spec == nil || b.spy.spec.Signature == nil {
		return false
	}
	out := b.spy.spec.Signature.OutTypes
	return len(out) > 1 && len(values) == len(out)
}

// ThenRaise installs a rule that returns err as the action's error.
func (b *WhenBuilder) ThenRaise(err error) {
	b.decoy.t.Helper()
	b.install(raiseAction{err: err}, nil)
}

// ThenDo installs a rule that invokes fn with the matched call's arguments.
func (b *WhenBuilder) ThenDo(fn func(args []interface{}) ([]interface{}, error)) {
	b.decoy.t.Helper()
	b.install(doAction{fn: fn}, nil)
}

// ThenEnterWith installs a rule making a matching Enter() return value. It
// seeds an Enter condition itself when the builder hasn't already been
// seeded by a rehearsal call or an explicit Enter(), so the direct-stub form
// d.When(cm).ThenEnterWith(v) - with no prior Enter() rehearsal - installs a
// rule instead of reporting a MissingRehearsal.
func (b *WhenBuilder) ThenEnterWith(value interface{}) {
	b.decoy.t.Helper()
	if !b.seeded {
		b.ensureCondition(KindEnter)
		b.seeded = true
	}
	b.condition.Kind = KindEnter
	b.install(enterWithAction{value: value}, nil)
}

// ThenDelay installs a rule that, like ThenReturn, returns values, but only
// after d of virtual time has elapsed on clk - useful for exercising a
// subject that itself uses a clock.Clock, without a real sleep.
func (b *WhenBuilder) ThenDelay(clk clock.Clock, d time.Duration, values ...interface{}) {
	b.decoy.t.Helper()
	b.install(doAction{fn: func([]interface{}) ([]interface{}, error) {
		<-clk.After(d)
		return values, nil
	}}, nil)
}

// Verify opens a verification builder against spy. As with When, draining
// the calling goroutine's last-call slot seeds the condition when spy
// itself was just exercised. The assertion itself only runs when Called,
// Get, Set or Delete is invoked, and each of those sets the condition's
// kind and replaces its positional arguments (Called) or attribute and
// value (Get/Set/Delete), so a seeded record alone asserts nothing.
func (d *Decoy) Verify(spy *Spy, opts ...VerifyOption) *VerifyBuilder {
	d.t.Helper()
	cfg := &verifyConfig{}
	for _, o := range opts {
		o(cfg)
	}
	b := &VerifyBuilder{decoy: d, spy: spy, times: cfg.times}
	if entry, ok := d.drainLastCall(); ok && entry.spy == spy {
		b.condition = conditionFromRecord(entry.record)
		b.condition.IgnoreExtraArgs = spy.ignoreExtraArgs
		b.seeded = true
	}
	return b
}

// VerifyOption configures a VerifyBuilder.
type VerifyOption func(*verifyConfig)

type verifyConfig struct {
	times *int
}

// Times requires the verified interaction to have occurred exactly n times.
// Without Times, verification passes if the interaction occurred at least once.
func Times(n int) VerifyOption {
	return func(c *verifyConfig) { c.times = &n }
}

// VerifyBuilder asserts that a condition is satisfied by the Interaction
// Log - spec.md §4.5/§4.6.
type VerifyBuilder struct {
	decoy     *Decoy
	spy       *Spy
	condition *Condition
	times     *int
	seeded    bool
}

func (b *VerifyBuilder) ensureCondition(kind InteractionKind) *Condition {
	if b.condition == nil {
		b.condition = &Condition{Kind: kind, IgnoreExtraArgs: b.spy.ignoreExtraArgs}
	}
	return b.condition
}

// Called seeds the call condition and immediately performs the assertion.
func (b *VerifyBuilder) Called(args ...interface{}) {
	b.decoy.t.Helper()
	c := b.ensureCondition(KindCall)
	c.Kind = KindCall
	c.Args = args
	b.seeded = true
	b.check(nil)
}

// Get asserts that name was read.
func (b *VerifyBuilder) Get(name string) {
	b.decoy.t.Helper()
	c := b.ensureCondition(KindGet)
	c.Kind = KindGet
	c.Attr = name
	b.seeded = true
	b.check(nil)
}

// Set asserts that name was written with value.
func (b *VerifyBuilder) Set(name string, value interface{}) {
	b.decoy.t.Helper()
	c := b.ensureCondition(KindSet)
	c.Kind = KindSet
	c.Attr = name
	c.SetValue = value
	c.hasSetValue = true
	b.seeded = true
	b.check(nil)
}

// Delete asserts that name was deleted.
func (b *VerifyBuilder) Delete(name string) {
	b.decoy.t.Helper()
	c := b.ensureCondition(KindDelete)
	c.Kind = KindDelete
	c.Attr = name
	b.seeded = true
	b.check(nil)
}

// IgnoreExtraArgs makes this verification match a prefix of the actual
// positional arguments.
func (b *VerifyBuilder) IgnoreExtraArgs() *VerifyBuilder {
	b.ensureCondition(KindCall).IgnoreExtraArgs = true
	return b
}

// IsEntered constrains this verification to calls made while (entered=true)
// or while not (entered=false) inside an Enter/Exit pair.
func (b *VerifyBuilder) IsEntered(entered bool) *VerifyBuilder {
	b.ensureCondition(KindCall).IsEntered = &entered
	return b
}

// check performs the assertion described in spec.md §4.6: collect matching
// records from the target spy (and its descendants), apply the condition,
// and compare the count against Times (if set) or require >=1. When minSeq
// is non-nil (set by OrderedVerifier), only records with Seq > *minSeq are
// considered, and the lowest matching Seq is returned.
func (b *VerifyBuilder) check(minSeq *uint64) uint64 {
	b.decoy.t.Helper()
	if !b.seeded {
		b.decoy.report(MissingRehearsal,
			"verify(%s) has no rehearsal: perform the interaction first, or call Called/Get/Set/Delete", b.spy)
		return 0
	}

	if b.decoy.hasRedundantWhen() && b.spy.store.hasEqualCondition(b.condition) {
		b.decoy.warn(newError(RedundantVerify,
			"verify(%s) duplicates an existing when() rule with the same condition", b.spy))
	}

	records := b.spy.recordsOf()
	var matched []*CallRecord
	for _, r := range records {
		if minSeq != nil && r.Seq <= *minSeq {
			continue
		}
		if b.condition.matches(r) {
			matched = append(matched, r)
		}
	}

	count := len(matched)
	ok := count >= 1
	if b.times != nil {
		ok = count == *b.times
	}
	if !ok {
		want := "at least 1"
		if b.times != nil {
			want = itoa(*b.times)
		}
		b.decoy.report(VerificationFailed,
			"%s: expected %s matching call(s), found %d\nexpected condition:\n%srecorded calls:\n%s",
			b.spy, want, count, spew.Sdump(b.condition), spew.Sdump(records))
		return 0
	}

	var seq uint64
	for i, r := range matched {
		if i == 0 || r.Seq < seq {
			seq = r.Seq
		}
	}
	return seq
}

// hasRedundantWhen reports whether this Decoy has ever installed a when()
// rule - a cheap gate before the (slightly more expensive) per-condition
// equality scan in check().
func (d *Decoy) hasRedundantWhen() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, spy := range d.spies {
		if len(spy.store.snapshot()) > 0 {
			return true
		}
	}
	return false
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// OrderedVerifier is the scoped ordering context opened by VerifyOrder -
// spec.md §4.5/§4.6: each successive Verify call must find its first match
// at a Seq strictly greater than the previous call's matched Seq.
type OrderedVerifier struct {
	decoy   *Decoy
	lastSeq uint64
}

// Verify opens a VerifyBuilder constrained to records after the previous
// ordered verification's match.
func (o *OrderedVerifier) Verify(spy *Spy, opts ...VerifyOption) *orderedVerifyBuilder {
	return &orderedVerifyBuilder{inner: o.decoy.Verify(spy, opts...), ov: o}
}

// orderedVerifyBuilder wraps VerifyBuilder so every assertion advances the
// OrderedVerifier's watermark.
type orderedVerifyBuilder struct {
	inner *VerifyBuilder
	ov    *OrderedVerifier
}

func (b *orderedVerifyBuilder) Called(args ...interface{}) {
	b.ov.decoy.t.Helper()
	c := b.inner.ensureCondition(KindCall)
	c.Kind = KindCall
	c.Args = args
	b.inner.seeded = true
	b.advance()
}

func (b *orderedVerifyBuilder) Get(name string) {
	c := b.inner.ensureCondition(KindGet)
	c.Kind = KindGet
	c.Attr = name
	b.inner.seeded = true
	b.advance()
}

func (b *orderedVerifyBuilder) Set(name string, value interface{}) {
	c := b.inner.ensureCondition(KindSet)
	c.Kind = KindSet
	c.Attr = name
	c.SetValue = value
	c.hasSetValue = true
	b.inner.seeded = true
	b.advance()
}

func (b *orderedVerifyBuilder) Delete(name string) {
	c := b.inner.ensureCondition(KindDelete)
	c.Kind = KindDelete
	c.Attr = name
	b.inner.seeded = true
	b.advance()
}

func (b *orderedVerifyBuilder) advance() {
	seq := b.inner.check(&b.ov.lastSeq)
	if seq > b.ov.lastSeq {
		b.ov.lastSeq = seq
	}
}

// VerifyOrder opens an ordering scope and runs fn against it. It is an
// error to call Decoy.VerifyOrder reentrantly from within fn.
func (d *Decoy) VerifyOrder(fn func(*OrderedVerifier)) {
	d.t.Helper()
	if !atomic.CompareAndSwapInt32(&d.verifyOrderActive, 0, 1) {
		d.report(VerificationFailed, "VerifyOrder called reentrantly from within another VerifyOrder block")
		return
	}
	defer atomic.StoreInt32(&d.verifyOrderActive, 0)
	fn(&OrderedVerifier{decoy: d})
}
