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
	"encoding/binary"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srediag/shmipc/pkg/shm"
)

// newTestRing lays a ring over process memory; uint64 backing keeps the
// header 8-byte aligned.
func newTestRing(t *testing.T, capacity uint64) ring {
	words := make([]uint64, (headerSize+capacity)/8)
	mem := unsafeBytes(words)
	hdr := headerOf(mem)
	hdr.initialize(capacity)
	require.NoError(t, hdr.validate(len(mem)))
	return newRing(hdr, mem)
}

func unsafeBytes(words []uint64) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(&words[0])), len(words)*8)
}

func TestRecordSize(t *testing.T) {
	assert.Equal(t, uint64(8), recordSize(1))
	assert.Equal(t, uint64(8), recordSize(4))
	assert.Equal(t, uint64(16), recordSize(5))
	assert.Equal(t, uint64(64), recordSize(60))
	assert.Equal(t, 60, maxMessageSize(64))
}

func TestRing_WrapMarker(t *testing.T) {
	r := newTestRing(t, 64)
	pool := shm.NewBufferPool()

	require.NoError(t, r.write(make([]byte, 20))) // 24 bytes
	require.NoError(t, r.write(make([]byte, 20))) // 48
	buf, err := r.read(pool)
	require.NoError(t, err)
	buf.Release()

	// 24 bytes do not fit in the 16 left before the end: a wrap marker pads them
	require.NoError(t, r.write([]byte("wrapped message of 20b")[:20]))
	assert.Equal(t, uint32(wrapMarker), binary.LittleEndian.Uint32(r.data[48:]))
	assert.Equal(t, uint64(24+16+24), r.used())
	assert.ErrorIs(t, r.write(make([]byte, 1)), errRingFull)

	buf, err = r.read(pool)
	require.NoError(t, err)
	assert.Equal(t, 20, buf.Size())
	buf.Release()
	buf, err = r.read(pool)
	require.NoError(t, err)
	assert.Equal(t, "wrapped message of 2", string(buf.Data()))
	buf.Release()

	_, err = r.read(pool)
	assert.ErrorIs(t, err, ErrNoData)
	assert.Equal(t, uint64(3), r.hdr.loadCommitted())
	assert.Equal(t, uint64(3), r.hdr.loadConsumed())
}

func TestRing_RealignWhenEmpty(t *testing.T) {
	r := newTestRing(t, 64)
	pool := shm.NewBufferPool()

	require.NoError(t, r.write(make([]byte, 4)))
	buf, err := r.read(pool)
	require.NoError(t, err)
	buf.Release()

	// empty again at offset 8: a full-ring message still fits
	require.NoError(t, r.write(make([]byte, 60)))
	assert.Equal(t, uint64(64), r.hdr.loadReadPos())
	assert.Equal(t, uint64(128), r.hdr.loadWritePos())
}

func TestRing_CorruptedRecord(t *testing.T) {
	r := newTestRing(t, 64)
	require.NoError(t, r.write([]byte("abc")))
	binary.LittleEndian.PutUint32(r.data[0:], 1000)
	_, err := r.read(shm.NewBufferPool())
	assert.ErrorIs(t, err, ErrCorruptedState)

	r.hdr.storeWritePos(r.hdr.loadReadPos() + 128)
	assert.ErrorIs(t, r.write([]byte("x")), ErrCorruptedState)
}

func TestHeader_InitializeAndValidate(t *testing.T) {
	r := newTestRing(t, 128)
	info := r.hdr.info()
	assert.Equal(t, magic, info.Magic)
	assert.Equal(t, layoutVersion, info.Version)
	assert.Equal(t, uint32(headerSize), info.HeaderSize)
	assert.Equal(t, uint64(128), info.Capacity)

	assert.ErrorIs(t, r.hdr.validate(headerSize+64), ErrCorruptedState)
	r.hdr.storeReadPos(3)
	r.hdr.storeWritePos(3)
	assert.ErrorIs(t, r.hdr.validate(headerSize+128), ErrCorruptedState)
}
