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

// Package decoytest adapts decoy.Decoy to testing.TB, since *testing.T
// already satisfies decoy.T structurally but every caller still has to
// remember to wire up Reset.
package decoytest

import (
	"testing"

	"github.com/riftlane/decoy"
)

// New builds a Decoy bound to tb and registers tb.Cleanup(d.Reset), so a
// test's miscalled-stub diagnostic runs automatically at the end of the
// test (or subtest) without every caller having to remember defer d.Reset().
func New(tb testing.TB, opts ...decoy.Option) *decoy.Decoy {
	tb.Helper()
	d := decoy.New(tb, opts...)
	tb.Cleanup(d.Reset)
	return d
}
