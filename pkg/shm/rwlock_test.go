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
	"sync"
	"testing"
	"time"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRWLock_ReadersSeeWholeWrites(t *testing.T) {
	const (
		readers = 4
		writers = 4
	)
	var (
		lock  RWLock
		datas []int
		wg    sync.WaitGroup
		sums  = make([]int, readers)
	)

	for r := 0; r < readers; r++ {
		wg.Add(1)
		go func(r int) {
			defer wg.Done()
			cnt, sum := 0, 0
			for {
				x := -1
				lock.RLock()
				if cnt < len(datas) {
					x = datas[cnt]
				}
				lock.RUnlock()
				if x == 0 {
					break
				}
				if x != -1 {
					sum += x
					cnt++
				}
				runtime.Gosched()
			}
			sums[r] = sum
		}(r)
	}

	var ww sync.WaitGroup
	for w := 0; w < writers; w++ {
		ww.Add(1)
		go func() {
			defer ww.Done()
			for i := 1; i <= 100; i++ {
				lock.Lock()
				datas = append(datas, i)
				lock.Unlock()
				runtime.Gosched()
			}
		}()
	}
	ww.Wait()
	lock.Lock()
	datas = append(datas, 0)
	lock.Unlock()
	wg.Wait()

	for r := 0; r < readers; r++ {
		assert.Equal(t, 5050*writers, sums[r], "reader %d", r)
	}
	assert.Len(t, datas, 100*writers+1)
}

func TestRWLock_SharedReaders(t *testing.T) {
	var lock RWLock
	lock.RLock()
	lock.RLock()
	assert.Equal(t, 2, lock.Readers())
	assert.False(t, lock.WriterHeld())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, lock.LockContext(ctx), context.DeadlineExceeded)
	// a failed writer leaves no trace
	assert.False(t, lock.WriterHeld())
	assert.Equal(t, 2, lock.Readers())

	lock.RUnlock()
	lock.RUnlock()
	require.NoError(t, lock.LockContext(context.Background()))
	assert.True(t, lock.WriterHeld())
	lock.Unlock()
}

func TestRWLock_WriterExcludesReaders(t *testing.T) {
	var lock RWLock
	lock.Lock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, lock.RLockContext(ctx), context.DeadlineExceeded)
	assert.Equal(t, 0, lock.Readers())

	acquired := make(chan struct{})
	go func() {
		lock.RLock()
		close(acquired)
		lock.RUnlock()
	}()
	select {
	case <-acquired:
		t.Fatal("reader entered while the writer held the lock")
	case <-time.After(10 * time.Millisecond):
	}
	lock.Unlock()
	<-acquired
}

func TestRWLock_PendingWriterBlocksNewReaders(t *testing.T) {
	var lock RWLock
	lock.RLock()

	locked := make(chan struct{})
	go func() {
		lock.Lock()
		close(locked)
	}()
	require.Eventually(t, lock.WriterHeld, time.Second, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, lock.RLockContext(ctx), context.DeadlineExceeded)

	lock.RUnlock()
	<-locked
	lock.Unlock()
	assert.Equal(t, uint32(0), lock.state)
}

func TestRWLock_OverlaidOnSharedMemory(t *testing.T) {
	mem := make([]uint64, 1)
	l1 := (*RWLock)(unsafe.Pointer(&mem[0]))
	l2 := (*RWLock)(unsafe.Pointer(&mem[0]))

	l1.Lock()
	assert.True(t, l2.WriterHeld())
	l1.Unlock()
	l2.RLock()
	assert.Equal(t, 1, l1.Readers())
	l2.RUnlock()
	assert.Equal(t, uint64(0), mem[0])
}
