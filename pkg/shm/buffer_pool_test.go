/*
 * Copyright 2025 SREDiag Authors
 * Copyright 2023 CloudWeGo Authors
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

package shm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBufferPool_GetRelease(t *testing.T) {
	p := NewBufferPool()
	b := p.Copy([]byte("hello ipc!"))
	assert.True(t, b.Owning())
	assert.Equal(t, "hello ipc!", string(b.Data()))
	assert.Equal(t, PoolStats{Gets: 1, Puts: 0, Outstanding: 1}, p.Stats())

	moved := b.Move()
	b.Release()
	assert.Equal(t, uint64(0), p.Stats().Puts)

	moved.Release()
	moved.Release()
	assert.Equal(t, PoolStats{Gets: 1, Puts: 1, Outstanding: 0}, p.Stats())
}

func TestBufferPool_Sizes(t *testing.T) {
	p := NewBufferPool()
	for _, n := range []int{0, 1, 64, 4096, 1 << 16} {
		b := p.Get(n)
		assert.Equal(t, n, b.Size())
		b.Release()
	}
	st := p.Stats()
	assert.Equal(t, st.Gets, st.Puts)
}
