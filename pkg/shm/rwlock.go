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
	"context"
	"runtime"
	"sync/atomic"
	"time"
)

const (
	rwWriter     = 1 << 31
	rwReaderMask = rwWriter - 1

	// spins yielding the processor before falling back to short sleeps
	spinBudget = 256
	spinSleep  = 20 * time.Microsecond
	// how often the yield phase looks at the context
	ctxCheckEvery = 32
)

// RWLock is a reader/writer spin lock whose whole state is one 32-bit word:
// bit 31 marks a writer, the low bits count readers.
//
// The zero value is unlocked. RWLock holds no pointers, so it can be overlaid
// on shared memory and used by several processes at once:
//
//	lock := (*shm.RWLock)(unsafe.Pointer(&mem[off]))
//
// Waiters spin with runtime.Gosched between attempts and then sleep briefly;
// no OS primitive is involved. A writer claims the writer bit first, which
// stops new readers immediately, and then waits for the readers inside to
// leave. Waiting is unbounded: a steady stream of writers can starve readers.
type RWLock struct {
	state uint32
}

// RLock acquires shared access.
func (rw *RWLock) RLock() {
	_ = rw.rlock(context.Background())
}

// RLockContext acquires shared access or returns ctx.Err() once ctx is done.
func (rw *RWLock) RLockContext(ctx context.Context) error {
	return rw.rlock(ctx)
}

// RUnlock releases one shared hold. It must pair with a successful RLock.
func (rw *RWLock) RUnlock() {
	atomic.AddUint32(&rw.state, ^uint32(0))
}

// Lock acquires exclusive access.
func (rw *RWLock) Lock() {
	_ = rw.lock(context.Background())
}

// LockContext acquires exclusive access or returns ctx.Err() once ctx is done.
// On error the lock is not held.
func (rw *RWLock) LockContext(ctx context.Context) error {
	return rw.lock(ctx)
}

// Unlock releases exclusive access.
func (rw *RWLock) Unlock() {
	atomic.AndUint32(&rw.state, ^uint32(rwWriter))
}

// Readers returns the number of readers holding the lock.
func (rw *RWLock) Readers() int {
	return int(atomic.LoadUint32(&rw.state) & rwReaderMask)
}

// WriterHeld reports whether a writer holds or is acquiring the lock.
func (rw *RWLock) WriterHeld() bool {
	return atomic.LoadUint32(&rw.state)&rwWriter != 0
}

func (rw *RWLock) rlock(ctx context.Context) error {
	var sp spinner
	for {
		s := atomic.LoadUint32(&rw.state)
		if s&rwWriter == 0 && atomic.CompareAndSwapUint32(&rw.state, s, s+1) {
			return nil
		}
		if err := sp.wait(ctx); err != nil {
			return err
		}
	}
}

func (rw *RWLock) lock(ctx context.Context) error {
	var sp spinner
	for {
		s := atomic.LoadUint32(&rw.state)
		if s&rwWriter == 0 && atomic.CompareAndSwapUint32(&rw.state, s, s|rwWriter) {
			break
		}
		if err := sp.wait(ctx); err != nil {
			return err
		}
	}
	for atomic.LoadUint32(&rw.state)&rwReaderMask != 0 {
		if err := sp.wait(ctx); err != nil {
			rw.Unlock()
			return err
		}
	}
	return nil
}

type spinner struct {
	n int
}

func (s *spinner) wait(ctx context.Context) error {
	s.n++
	if s.n < spinBudget {
		if s.n%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		runtime.Gosched()
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	time.Sleep(spinSleep)
	return nil
}
