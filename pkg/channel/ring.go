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
	"errors"
	"fmt"

	"github.com/srediag/shmipc/pkg/shm"
)

var errRingFull = errors.New("ring full")

// ring is the payload area of a region: a circular sequence of records, each
// a little-endian uint32 length followed by the message, padded to 8 bytes.
// A wrapMarker length tells readers to continue at the start of the ring.
//
// Cursors are monotonic byte positions; pos % capacity is the offset.
type ring struct {
	hdr      *header
	data     []byte
	capacity uint64
}

func newRing(hdr *header, mem []byte) ring {
	return ring{
		hdr:      hdr,
		data:     mem[headerSize : headerSize+int(hdr.capacity)],
		capacity: hdr.capacity,
	}
}

func recordSize(n int) uint64 {
	return (uint64(n) + recordHeaderSize + recordAlign - 1) &^ (recordAlign - 1)
}

// maxMessageSize is the largest payload a ring of capacity bytes accepts.
func maxMessageSize(capacity uint64) int {
	return int(capacity - recordHeaderSize)
}

// used returns the bytes between the cursors.
func (r *ring) used() uint64 {
	return r.hdr.loadWritePos() - r.hdr.loadReadPos()
}

// write appends one record. The caller holds the write lock.
func (r *ring) write(p []byte) error {
	rec := recordSize(len(p))
	if rec > r.capacity {
		return ErrCapacityExceeded
	}
	rd, wr := r.hdr.loadReadPos(), r.hdr.loadWritePos()
	if wr < rd || wr-rd > r.capacity {
		return fmt.Errorf("%w: cursors read=%d write=%d", ErrCorruptedState, rd, wr)
	}
	used := wr - rd
	if used == 0 && wr%r.capacity != 0 {
		// empty: restart at offset 0 so any record that fits the ring fits here.
		// Safe because no reader can hold the lock now.
		wr += r.capacity - wr%r.capacity
		r.hdr.storeReadPos(wr)
		r.hdr.storeWritePos(wr)
	}

	off := wr % r.capacity
	toEnd := r.capacity - off
	need := rec
	if toEnd < rec {
		need += toEnd
	}
	if used+need > r.capacity {
		return errRingFull
	}
	if toEnd < rec {
		binary.LittleEndian.PutUint32(r.data[off:], wrapMarker)
		wr += toEnd
		off = 0
	}
	binary.LittleEndian.PutUint32(r.data[off:], uint32(len(p)))
	copy(r.data[off+recordHeaderSize:], p)
	// publishing the cursor is the commit point of the message
	r.hdr.storeWritePos(wr + rec)
	r.hdr.addCommitted()
	return nil
}

// read claims the next record and copies it into a Buffer from pool. The
// caller holds the read lock; concurrent readers race on the read cursor with
// CAS, so each record goes to exactly one of them.
func (r *ring) read(pool *shm.BufferPool) (*shm.Buffer, error) {
	for {
		rd, wr := r.hdr.loadReadPos(), r.hdr.loadWritePos()
		if rd == wr {
			return nil, ErrNoData
		}
		if wr < rd || wr-rd > r.capacity {
			return nil, fmt.Errorf("%w: cursors read=%d write=%d", ErrCorruptedState, rd, wr)
		}
		off := rd % r.capacity
		n := binary.LittleEndian.Uint32(r.data[off:])
		if n == wrapMarker {
			next := rd + (r.capacity - off)
			if next > wr {
				return nil, fmt.Errorf("%w: wrap marker past write cursor", ErrCorruptedState)
			}
			r.hdr.casReadPos(rd, next)
			continue
		}
		rec := recordSize(int(n))
		if n == 0 || off+rec > r.capacity || rd+rec > wr {
			return nil, fmt.Errorf("%w: record length %d at offset %d", ErrCorruptedState, n, off)
		}
		start := off + recordHeaderSize
		buf := pool.Copy(r.data[start : start+uint64(n)])
		if r.hdr.casReadPos(rd, rd+rec) {
			r.hdr.addConsumed()
			return buf, nil
		}
		// another reader took it
		buf.Release()
	}
}
