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

package matchers

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEql(t *testing.T) {
	m := Eql(42)
	assert.True(t, m.Matches(42))
	assert.False(t, m.Matches(43))
	assert.False(t, m.Matches("42"))
}

func TestAnyValue(t *testing.T) {
	m := AnyValue()
	assert.True(t, m.Matches(nil))
	assert.True(t, m.Matches(42))
	assert.True(t, m.Matches("anything"))
}

func TestNil(t *testing.T) {
	m := Nil()
	assert.True(t, m.Matches(nil))
	var p *int
	assert.True(t, m.Matches(p))
	assert.False(t, m.Matches(0))
	assert.False(t, m.Matches(""))
}

func TestIsA(t *testing.T) {
	m := IsA(errors.New(""))
	assert.True(t, m.Matches(errors.New("boom")))
	assert.False(t, m.Matches("not an error"))

	var errIface error
	mi := IsA(&errIface)
	_ = mi
}

func TestLen(t *testing.T) {
	m := Len(3)
	assert.True(t, m.Matches("abc"))
	assert.True(t, m.Matches([]int{1, 2, 3}))
	assert.False(t, m.Matches([]int{1, 2}))
	assert.False(t, m.Matches(42))
}

func TestFunc(t *testing.T) {
	m := Func(func(i int) bool { return i%2 == 0 }, "even")
	assert.True(t, m.Matches(4))
	assert.False(t, m.Matches(3))
	assert.Equal(t, "even", m.(interface{ String() string }).String())
}

func TestAll(t *testing.T) {
	m := All(Func(func(i int) bool { return i > 0 }), Func(func(i int) bool { return i < 10 }))
	assert.True(t, m.Matches(5))
	assert.False(t, m.Matches(-1))
	assert.False(t, m.Matches(20))
}

func TestAnyOf(t *testing.T) {
	m := AnyOf(Eql(1), Eql(2))
	assert.True(t, m.Matches(1))
	assert.True(t, m.Matches(2))
	assert.False(t, m.Matches(3))
}

func TestNot(t *testing.T) {
	m := Not(Eql(1))
	assert.False(t, m.Matches(1))
	assert.True(t, m.Matches(2))
}

func TestCaptor(t *testing.T) {
	c := NewCaptor()
	assert.True(t, c.Matches("first"))
	c.Capture("first")
	assert.True(t, c.Matches("second"))
	c.Capture("second")

	v, ok := c.Value()
	assert.True(t, ok)
	assert.Equal(t, "second", v)
	assert.Equal(t, []interface{}{"first", "second"}, c.Values())
}

func TestCaptor_ValueOnEmpty(t *testing.T) {
	c := NewCaptor()
	_, ok := c.Value()
	assert.False(t, ok)
}
