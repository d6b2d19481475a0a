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
	"unsafe"

	"github.com/stretchr/testify/assert"
)

func TestAtomicHelpers(t *testing.T) {
	// heap byte slices of this size are 8-byte aligned
	mem := make([]byte, 16)
	p64 := unsafe.Pointer(&mem[8])
	AtomicStoreUint64(p64, 41)
	assert.Equal(t, uint64(42), AtomicAddUint64(p64, 1))
	assert.True(t, AtomicCompareAndSwapUint64(p64, 42, 7))
	assert.False(t, AtomicCompareAndSwapUint64(p64, 42, 8))
	assert.Equal(t, uint64(7), AtomicLoadUint64(p64))

	p32 := unsafe.Pointer(&mem[4])
	AtomicStoreUint32(p32, 2)
	assert.Equal(t, uint32(1), AtomicAddUint32(p32, ^uint32(0)))
	assert.Equal(t, uint32(1), AtomicOrUint32(p32, 4))
	assert.Equal(t, uint32(5), AtomicLoadUint32(p32))

	// words are laid out in place
	assert.Equal(t, byte(7), mem[8])
}
