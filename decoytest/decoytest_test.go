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

package decoytest

import (
	"testing"

	"github.com/riftlane/decoy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type widget interface {
	Spin() int
}

func TestNew_RegistersCleanupReset(t *testing.T) {
	d := New(t)
	spy := decoy.MockInterface(d, (*widget)(nil))
	spin := spy.Attr("Spin")

	d.When(spin).Called().ThenReturn(7)

	results, err := spin.Call()
	require.NoError(t, err)
	assert.Equal(t, 7, results[0])

	// Reset is wired via t.Cleanup; nothing to assert here directly beyond
	// New not panicking and the Decoy being immediately usable.
}
