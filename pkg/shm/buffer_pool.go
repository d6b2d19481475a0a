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
	"sync/atomic"

	"github.com/valyala/bytebufferpool"
)

// DefaultBufferPool is shared by receivers that don't bring their own pool.
var DefaultBufferPool = NewBufferPool()

// BufferPool hands out owning Buffers backed by pooled memory. Releasing a
// Buffer returns its memory to the pool, so the bytes must not be retained
// after Release.
type BufferPool struct {
	pool bytebufferpool.Pool

	gets atomic.Uint64
	puts atomic.Uint64
}

// PoolStats counts buffers handed out and returned.
type PoolStats struct {
	Gets        uint64
	Puts        uint64
	Outstanding uint64
}

// NewBufferPool creates an empty pool.
func NewBufferPool() *BufferPool {
	return &BufferPool{}
}

// Get returns an owning Buffer of size bytes. The contents are unspecified.
func (p *BufferPool) Get(size int) *Buffer {
	bb := p.pool.Get()
	if cap(bb.B) < size {
		bb.B = make([]byte, size)
	}
	bb.B = bb.B[:size]
	p.gets.Add(1)
	return OwnedFunc(bb.B, CleanupFunc(func([]byte) {
		p.pool.Put(bb)
		p.puts.Add(1)
	}))
}

// Copy returns an owning Buffer holding a copy of src.
func (p *BufferPool) Copy(src []byte) *Buffer {
	b := p.Get(len(src))
	copy(b.Data(), src)
	return b
}

// Stats returns the current counters.
func (p *BufferPool) Stats() PoolStats {
	gets, puts := p.gets.Load(), p.puts.Load()
	return PoolStats{Gets: gets, Puts: puts, Outstanding: gets - puts}
}
