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
	"sync"
)

// fakeT is a minimal, self-hosting double for the T interface: Fatalf panics
// so a test can recover() and assert the fatal path was taken, while
// Errorf/Logf just accumulate so assertions can inspect what was reported.
type fakeT struct {
	mu      sync.Mutex
	errorfs []string
	logfs   []string
	helpers int
}

func (f *fakeT) Errorf(format string, args ...interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errorfs = append(f.errorfs, fmt.Sprintf(format, args...))
}

func (f *fakeT) Fatalf(format string, args ...interface{}) {
	panic(fatal(fmt.Sprintf(format, args...)))
}

func (f *fakeT) Logf(format string, args ...interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logfs = append(f.logfs, fmt.Sprintf(format, args...))
}

func (f *fakeT) Helper() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.helpers++
}

// fatal is the payload fakeT.Fatalf panics with, so callers can tell a
// fatal() panic apart from a genuine bug via recoverFatal.
type fatal string

// recoverFatal takes r, the value a deferred function got from recover()
// (recover only stops a panic when the deferred function calls it itself),
// and returns the fakeT.Fatalf message it carries, or re-panics if r wasn't
// one.
func recoverFatal(r interface{}) (msg string, ok bool) {
	if r == nil {
		return "", false
	}
	f, isFatal := r.(fatal)
	if !isFatal {
		panic(r)
	}
	return string(f), true
}

func (f *fakeT) logCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.logfs)
}

func (f *fakeT) lastLog() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.logfs) == 0 {
		return ""
	}
	return f.logfs[len(f.logfs)-1]
}
