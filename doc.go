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

/*
Package decoy is a rehearsal-driven test double library for Go.

Decoy builds live proxies ("Spies") for an interface, a function, or a bare
name. Every interaction with a Spy - a call, an attribute get/set/delete, or
a context-manager enter/exit - is recorded as an immutable CallRecord on the
owning Decoy's interaction log, and also published to the calling
goroutine's "last-call" slot.

Setup phase

Configure stubbed behavior by performing the rehearsal interaction against
the Spy and then feeding it to When, or by building the condition directly
on the builder When returns:

 d := decoy.New(t)
 thing := decoy.MockInterface(d, (*Thing)(nil))
 add := thing.Attr("Add")

 add.Call(1, 2)
 d.When(add).ThenReturn(3)

 // or, without performing the rehearsal call first:
 d.When(add).Called(1, 2).ThenReturn(3)

Exercise phase

The system under test calls the method Spy (add, above). The first rule
whose condition matches, scanning newest-installed-first, supplies the
result; if none matches, the Spec's zero-valued defaults are returned and
(if the spy has any rules at all) a MiscalledStub warning is recorded for
Decoy.Reset to report.

Verify phase

 d.Verify(add).Called(1, 2)

asserts that at least one recorded call on spy matches those arguments.
VerifyOrder additionally asserts relative ordering across multiple
verifications.
*/
package decoy
