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

package channel

import (
	"fmt"
	"unsafe"

	internalshm "github.com/srediag/shmipc/internal/shm"
	"github.com/srediag/shmipc/pkg/shm"
)

// Region layout, version 1. Header words use native byte order and are only
// touched with atomic operations; record lengths in the ring are little-endian.
//
//	offset  size  field
//	0       4     magic "SHMC"
//	4       4     layout version
//	8       4     RWLock state word
//	12      4     flags
//	16      4     attach reference count
//	20      4     header size
//	24      8     payload capacity
//	32      8     read cursor (monotonic)
//	40      8     write cursor (monotonic)
//	48      8     committed messages
//	56      8     consumed messages
//	64      cap   payload ring
//
// Any change to this table is a breaking format change and must bump layoutVersion.
const (
	magic         uint32 = 0x53484D43
	layoutVersion uint32 = 1
	headerSize           = 64

	recordHeaderSize = 4
	recordAlign      = 8
	wrapMarker       = 0xFFFFFFFF

	flagShutdown uint32 = 1 << 0
)

// header overlays the first headerSize bytes of a mapped region.
type header struct {
	magic      uint32
	version    uint32
	lock       shm.RWLock
	flags      uint32
	refCount   uint32
	headerSize uint32
	capacity   uint64
	readPos    uint64
	writePos   uint64
	committed  uint64
	consumed   uint64
}

var layoutProbe header

// compile-time layout checks
var (
	_ [headerSize - unsafe.Sizeof(layoutProbe)]struct{}
	_ [unsafe.Sizeof(layoutProbe) - headerSize]struct{}
	_ [unsafe.Offsetof(layoutProbe.lock) - 8]struct{}
	_ [unsafe.Offsetof(layoutProbe.capacity) - 24]struct{}
	_ [unsafe.Offsetof(layoutProbe.consumed) - 56]struct{}
)

func headerOf(mem []byte) *header {
	return (*header)(unsafe.Pointer(&mem[0]))
}

func (h *header) loadMagic() uint32 {
	return internalshm.AtomicLoadUint32(unsafe.Pointer(&h.magic))
}

func (h *header) loadFlags() uint32 {
	return internalshm.AtomicLoadUint32(unsafe.Pointer(&h.flags))
}

func (h *header) setFlags(mask uint32) {
	internalshm.AtomicOrUint32(unsafe.Pointer(&h.flags), mask)
}

func (h *header) loadRefCount() uint32 {
	return internalshm.AtomicLoadUint32(unsafe.Pointer(&h.refCount))
}

func (h *header) addRefCount(delta int32) uint32 {
	return internalshm.AtomicAddUint32(unsafe.Pointer(&h.refCount), uint32(delta))
}

func (h *header) loadReadPos() uint64 {
	return internalshm.AtomicLoadUint64(unsafe.Pointer(&h.readPos))
}

func (h *header) storeReadPos(v uint64) {
	internalshm.AtomicStoreUint64(unsafe.Pointer(&h.readPos), v)
}

func (h *header) casReadPos(old, new uint64) bool {
	return internalshm.AtomicCompareAndSwapUint64(unsafe.Pointer(&h.readPos), old, new)
}

func (h *header) loadWritePos() uint64 {
	return internalshm.AtomicLoadUint64(unsafe.Pointer(&h.writePos))
}

func (h *header) storeWritePos(v uint64) {
	internalshm.AtomicStoreUint64(unsafe.Pointer(&h.writePos), v)
}

func (h *header) loadCommitted() uint64 {
	return internalshm.AtomicLoadUint64(unsafe.Pointer(&h.committed))
}

func (h *header) addCommitted() {
	internalshm.AtomicAddUint64(unsafe.Pointer(&h.committed), 1)
}

func (h *header) addConsumed() {
	internalshm.AtomicAddUint64(unsafe.Pointer(&h.consumed), 1)
}

func (h *header) loadConsumed() uint64 {
	return internalshm.AtomicLoadUint64(unsafe.Pointer(&h.consumed))
}

// initialize writes a fresh header for a payload of capacity bytes. The magic
// is stored last so a half-written header is never mistaken for a valid one.
// The caller holds the region's file lock.
func (h *header) initialize(capacity uint64) {
	internalshm.AtomicStoreUint32(unsafe.Pointer(&h.magic), 0)
	*h = header{
		version:    layoutVersion,
		headerSize: headerSize,
		capacity:   capacity,
	}
	internalshm.AtomicStoreUint32(unsafe.Pointer(&h.magic), magic)
}

// validate checks the header against the size of the mapping.
func (h *header) validate(regionSize int) error {
	if m := h.loadMagic(); m != magic {
		return fmt.Errorf("%w: bad magic %#x", ErrCorruptedState, m)
	}
	if h.version != layoutVersion {
		return fmt.Errorf("%w: layout version %d, want %d", ErrCorruptedState, h.version, layoutVersion)
	}
	if h.headerSize != headerSize {
		return fmt.Errorf("%w: header size %d, want %d", ErrCorruptedState, h.headerSize, headerSize)
	}
	if h.capacity%recordAlign != 0 || h.capacity < minCapacity || h.capacity != uint64(regionSize-headerSize) {
		return fmt.Errorf("%w: capacity %d does not match region size %d", ErrCorruptedState, h.capacity, regionSize)
	}
	rd, wr := h.loadReadPos(), h.loadWritePos()
	if wr < rd || wr-rd > h.capacity || rd%recordAlign != 0 || wr%recordAlign != 0 {
		return fmt.Errorf("%w: cursors read=%d write=%d", ErrCorruptedState, rd, wr)
	}
	return nil
}

// HeaderInfo is a point-in-time copy of a region header.
type HeaderInfo struct {
	Magic      uint32
	Version    uint32
	Flags      uint32
	RefCount   uint32
	HeaderSize uint32
	Capacity   uint64
	ReadPos    uint64
	WritePos   uint64
	Committed  uint64
	Consumed   uint64
	Readers    int
	Writer     bool
}

func (h *header) info() HeaderInfo {
	return HeaderInfo{
		Magic:      h.loadMagic(),
		Version:    h.version,
		Flags:      h.loadFlags(),
		RefCount:   h.loadRefCount(),
		HeaderSize: h.headerSize,
		Capacity:   h.capacity,
		ReadPos:    h.loadReadPos(),
		WritePos:   h.loadWritePos(),
		Committed:  h.loadCommitted(),
		Consumed:   h.loadConsumed(),
		Readers:    h.lock.Readers(),
		Writer:     h.lock.WriterHeld(),
	}
}
