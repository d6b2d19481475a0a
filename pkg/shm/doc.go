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

// Package shm provides the two primitives shmipc channels are built from:
// Buffer, a move-only byte handle with exactly-once cleanup, and RWLock, a
// reader/writer spin lock that can live inside a shared memory region.
//
// Example usage:
//
//	mem := C.malloc(n)
//	buf := shm.Owned(mem, n, func(p unsafe.Pointer, _ int) { C.free(p) })
//	defer buf.Release()
//
//	var lock shm.RWLock
//	lock.RLock()
//	// ...
//	lock.RUnlock()
//
// Received channel messages are Buffers taken from a BufferPool; releasing
// them returns the memory to the pool.
package shm
