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
	"bytes"
	"runtime"
	"unsafe"
)

// Destructor releases the memory behind an owning Buffer. It receives the
// pointer and size the Buffer was created with.
type Destructor func(p unsafe.Pointer, size int)

// Cleanup is a type-erased cleanup action for an owning Buffer. Implementations
// may capture state, e.g. to drop a reference count or return memory to a pool.
type Cleanup interface {
	Cleanup(data []byte)
}

// CleanupFunc adapts an ordinary function to the Cleanup interface.
type CleanupFunc func(data []byte)

// Cleanup calls f(data).
func (f CleanupFunc) Cleanup(data []byte) { f(data) }

type cleanupKind uint8

const (
	cleanupNone cleanupKind = iota
	cleanupDestructor
	cleanupFunctor
)

// resource is the part of a Buffer that moves between owners.
type resource struct {
	ptr     unsafe.Pointer
	data    []byte
	kind    cleanupKind
	dtor    Destructor
	cleanup Cleanup
}

func (r *resource) release() {
	kind := r.kind
	r.kind = cleanupNone
	switch kind {
	case cleanupDestructor:
		r.dtor(r.ptr, len(r.data))
	case cleanupFunctor:
		r.cleanup.Cleanup(r.data)
	}
	*r = resource{}
}

// Buffer is a move-only handle over a contiguous byte range with an optional
// cleanup action that runs exactly once when the owner releases it.
//
// A Buffer without a cleanup action is a view: the referenced memory is owned
// by the caller. The zero value and a nil *Buffer are empty views.
//
// Buffers are not safe for concurrent use and must not be copied by value;
// transfer ownership with Move or Assign. An owning Buffer carries a
// finalizer, so hold it by pointer rather than embedding it in another struct.
type Buffer struct {
	_ noCopy

	res resource
	// tracked is set when a finalizer guards the owned resource.
	tracked bool
}

// NewBuffer returns an empty buffer.
func NewBuffer() *Buffer {
	return &Buffer{}
}

// View returns a non-owning buffer over data.
func View(data []byte) *Buffer {
	return &Buffer{res: resource{ptr: unsafe.Pointer(unsafe.SliceData(data)), data: data}}
}

// FromPointer returns a non-owning buffer over [p, p+size). The caller keeps
// p valid for the life of the buffer.
func FromPointer(p unsafe.Pointer, size int) *Buffer {
	return &Buffer{res: resource{ptr: p, data: sliceOf(p, size)}}
}

// FromByte returns a one-byte non-owning buffer over *c.
func FromByte(c *byte) *Buffer {
	return FromPointer(unsafe.Pointer(c), 1)
}

// Owned returns a buffer that owns [p, p+size) and calls d(p, size) exactly
// once when released. A nil d yields a view.
func Owned(p unsafe.Pointer, size int, d Destructor) *Buffer {
	b := &Buffer{res: resource{ptr: p, data: sliceOf(p, size)}}
	if d != nil {
		b.res.kind = cleanupDestructor
		b.res.dtor = d
		b.track()
	}
	return b
}

// OwnedFunc returns a buffer that owns data and calls c.Cleanup(data) exactly
// once when released. A nil c yields a view.
func OwnedFunc(data []byte, c Cleanup) *Buffer {
	b := View(data)
	if c != nil {
		b.res.kind = cleanupFunctor
		b.res.cleanup = c
		b.track()
	}
	return b
}

func sliceOf(p unsafe.Pointer, size int) []byte {
	if size < 0 {
		panic("shm: negative buffer size")
	}
	if p == nil {
		if size != 0 {
			panic("shm: nil pointer with non-zero size")
		}
		return nil
	}
	return unsafe.Slice((*byte)(p), size)
}

func (b *Buffer) track() {
	runtime.SetFinalizer(b, (*Buffer).finalize)
	b.tracked = true
}

func (b *Buffer) untrack() {
	if b.tracked {
		runtime.SetFinalizer(b, nil)
		b.tracked = false
	}
}

// syncTracking makes the finalizer follow ownership after contents moved in
// or out of b.
func (b *Buffer) syncTracking() {
	switch {
	case b.res.kind != cleanupNone && !b.tracked:
		b.track()
	case b.res.kind == cleanupNone:
		b.untrack()
	}
}

func (b *Buffer) finalize() {
	b.tracked = false
	b.res.release()
}

// Empty reports whether the buffer holds zero bytes.
func (b *Buffer) Empty() bool {
	return b.Size() == 0
}

// Size returns the byte length.
func (b *Buffer) Size() int {
	if b == nil {
		return 0
	}
	return len(b.res.data)
}

// Data returns the bytes without copying. The slice is only valid until the
// buffer is released.
func (b *Buffer) Data() []byte {
	if b == nil {
		return nil
	}
	return b.res.data
}

// Pointer returns the start address, or nil for a buffer created empty.
func (b *Buffer) Pointer() unsafe.Pointer {
	if b == nil {
		return nil
	}
	return b.res.ptr
}

// Tuple returns the start address and size, for APIs that take both.
func (b *Buffer) Tuple() (unsafe.Pointer, int) {
	return b.Pointer(), b.Size()
}

// ToBytes returns an independent copy of the bytes.
func (b *Buffer) ToBytes() []byte {
	out := make([]byte, b.Size())
	copy(out, b.Data())
	return out
}

// Owning reports whether the buffer will run a cleanup action when released.
func (b *Buffer) Owning() bool {
	return b != nil && b.res.kind != cleanupNone
}

// Equal reports whether b and o have the same size and bytes.
func (b *Buffer) Equal(o *Buffer) bool {
	return b.Size() == o.Size() && bytes.Equal(b.Data(), o.Data())
}

// Move transfers the contents to a new buffer and leaves b empty.
func (b *Buffer) Move() *Buffer {
	out := &Buffer{}
	if b == nil {
		return out
	}
	out.res = b.res
	b.res = resource{}
	b.untrack()
	out.syncTracking()
	return out
}

// Swap exchanges the contents of b and o.
func (b *Buffer) Swap(o *Buffer) {
	b.res, o.res = o.res, b.res
	b.syncTracking()
	o.syncTracking()
}

// Assign takes ownership of src's contents and then releases what b held
// before. src is left empty. Assigning a buffer to itself does nothing; a nil
// src empties b.
func (b *Buffer) Assign(src *Buffer) {
	if b == src {
		return
	}
	old := b.res
	if src != nil {
		b.res = src.res
		src.res = resource{}
		src.untrack()
	} else {
		b.res = resource{}
	}
	b.syncTracking()
	old.release()
}

// Release runs the cleanup action, if any, and leaves b empty. Releasing an
// empty or already released buffer does nothing.
func (b *Buffer) Release() {
	if b == nil {
		return
	}
	b.untrack()
	b.res.release()
}

// As returns a typed pointer to the start of the buffer, or nil when the
// buffer is smaller than T.
func As[T any](b *Buffer) *T {
	var zero T
	p := b.Pointer()
	if p == nil || b.Size() < int(unsafe.Sizeof(zero)) {
		return nil
	}
	return (*T)(p)
}

// noCopy may be embedded into structs which must not be copied after first use.
// See https://golang.org/issues/8005#issuecomment-190753527.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}
