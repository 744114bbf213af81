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
	"bytes"
	"runtime"
	"strconv"
)

// CallRecord is an immutable description of one interaction with a Spy -
// spec.md §3's Call Record. Records are never mutated after creation; the
// Interaction Log's ordering is entirely determined by Seq.
type CallRecord struct {
	Seq                uint64
	SpyID              string
	Kind               InteractionKind
	Attr               string
	Args               []interface{}
	Kwargs             map[string]interface{}
	Value              interface{}
	EntryCountAtRecord int32
}

// lastCallEntry is the per-goroutine "last call" slot's payload.
type lastCallEntry struct {
	spy    *Spy
	record *CallRecord
}

// publish appends record to the Decoy's interaction log under its mutex,
// assigning the next sequence number, then stores (spy, record) into the
// calling goroutine's last-call slot, overwriting whatever was there -
// spec.md §4.3 explicitly allows this: prior unread values represent calls
// made outside a rehearsal context.
func (d *Decoy) publish(spy *Spy, partial *CallRecord) *CallRecord {
	d.mu.Lock()
	d.seq++
	partial.Seq = d.seq
	d.log = append(d.log, partial)
	d.mu.Unlock()

	d.lastCall.Store(d.goroutineKey(), &lastCallEntry{spy: spy, record: partial})
	return partial
}

// drainLastCall reads and clears the calling goroutine's last-call slot in
// one atomic step, satisfying the "drain the slot (read then clear)
// atomically" invariant from spec.md §3.
func (d *Decoy) drainLastCall() (*lastCallEntry, bool) {
	v, ok := d.lastCall.LoadAndDelete(d.goroutineKey())
	if !ok {
		return nil, false
	}
	return v.(*lastCallEntry), true
}

// goroutineKey returns the identity Decoy uses for the calling goroutine's
// last-call slot. Go has no built-in thread-local storage; per spec.md §9's
// redesign note ("model as an explicit context object if the host
// discourages thread-locals"), Decoy defaults to parsing the numeric
// goroutine id out of runtime.Stack, the same technique several
// long-lived Go libraries use to emulate goroutine-locals (there is no
// third-party dependency for this anywhere in the retrieval pack - see
// DESIGN.md). WithGoroutineKey overrides this for callers who need to
// coordinate a rehearsal across goroutines deliberately.
func (d *Decoy) goroutineKey() uint64 {
	if key := d.pinnedGoroutineKey.Load(); key != nil {
		return key.(uint64)
	}
	return currentGoroutineID()
}

func currentGoroutineID() uint64 {
	buf := make([]byte, 64)
	n := runtime.Stack(buf, false)
	buf = buf[:n]
	// "goroutine 123 [running]: ..."
	const prefix = "goroutine "
	if !bytes.HasPrefix(buf, []byte(prefix)) {
		return 0
	}
	buf = buf[len(prefix):]
	end := bytes.IndexByte(buf, ' ')
	if end < 0 {
		return 0
	}
	id, err := strconv.ParseUint(string(buf[:end]), 10, 64)
	if err != nil {
		return 0
	}
	return id
}
