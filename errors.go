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

import "fmt"

// ErrorKind names one of Decoy's diagnostic kinds. Kinds, not Go error
// types, are the taxonomy spec.md works with - see §7.
type ErrorKind string

const (
	// VerificationFailed: verify found the wrong number, or no matching, calls. Fatal.
	VerificationFailed ErrorKind = "verification_failed"
	// MissingRehearsal: when/verify called without an available last-call
	// record and without an explicit condition builder call. Fatal.
	MissingRehearsal ErrorKind = "missing_rehearsal"
	// MockSpecInvalid: mock received incompatible arguments, e.g. a non-pointer-to-interface. Fatal.
	MockSpecInvalid ErrorKind = "mock_spec_invalid"
	// AsyncMismatch: a coroutine-shaped action was configured for a synchronous spy, or vice versa. Fatal.
	AsyncMismatch ErrorKind = "async_mismatch"
	// SignatureMismatch: an actual call did not bind to the spec's signature. Fatal in strict mode, warning otherwise.
	SignatureMismatch ErrorKind = "signature_mismatch"
	// MiscalledStub: spy has rules but was called with non-matching args. Warning.
	MiscalledStub ErrorKind = "miscalled_stub"
	// RedundantVerify: verify duplicates an existing when rule. Warning.
	RedundantVerify ErrorKind = "redundant_verify"
	// IncorrectCall is the deprecated alias for SignatureMismatch. Warning.
	IncorrectCall ErrorKind = "incorrect_call"
)

// Error is a single diagnostic raised by Decoy. Fatal kinds are routed to
// T.Fatalf by the component that detects them; warning kinds are routed to
// T.Logf and also appended to Decoy.warnings.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("decoy: %s: %s", e.Kind, e.Message)
}

func newError(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// isFatal reports whether kind must terminate the current test.
func isFatal(kind ErrorKind, strict bool) bool {
	switch kind {
	case VerificationFailed, MissingRehearsal, MockSpecInvalid, AsyncMismatch:
		return true
	case SignatureMismatch:
		return strict
	default:
		return false
	}
}

// fail routes err to t as a fatal failure, always via Fatalf.
func (d *Decoy) fail(err *Error) {
	d.t.Helper()
	d.t.Fatalf("%s", err)
}

// warn routes err to t as a non-fatal warning and records it in
// Decoy.warnings (cleared by Reset) for any caller that wants to escalate
// accumulated warnings to a failure of its own.
func (d *Decoy) warn(err *Error) {
	d.t.Helper()
	d.mu.Lock()
	d.warnings = append(d.warnings, err)
	d.mu.Unlock()
	d.t.Logf("%s", err)
}

// report sends err down the fatal or warning path depending on kind and
// the Decoy's strict setting.
func (d *Decoy) report(kind ErrorKind, format string, args ...interface{}) {
	d.t.Helper()
	err := newError(kind, format, args...)
	if isFatal(kind, d.strict) {
		d.fail(err)
	} else {
		d.warn(err)
	}
}

// Warnings returns every warning-level Error accumulated so far. Useful for
// a fixture that wants to fail a test on any unmatched stub or redundant
// verify rather than merely logging it.
func (d *Decoy) Warnings() []*Error {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*Error, len(d.warnings))
	copy(out, d.warnings)
	return out
}
