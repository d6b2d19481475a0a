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

package transport

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Workiva/go-datastructures/queue"
	"github.com/panjf2000/ants/v2"
	"golang.org/x/sync/errgroup"

	"github.com/srediag/shmipc/internal/logging"
	"github.com/srediag/shmipc/pkg/channel"
	"github.com/srediag/shmipc/pkg/shm"
)

const (
	defaultInboxSize = 1024
	drainPoll        = 10 * time.Millisecond
)

var logger = logging.New("dispatcher")

// Handler processes one message. The Buffer is released when Handler
// returns; copy it (ToBytes) or Move it to keep it.
type Handler func(ctx context.Context, msg *shm.Buffer) error

// DispatcherConfig tunes a Dispatcher.
type DispatcherConfig struct {
	// Workers bounds concurrent handlers. Defaults to runtime.NumCPU().
	Workers int
	// InboxSize is the number of received messages buffered in process
	// before the receive loop stops draining the channel. Rounded up to a
	// power of two. Defaults to 1024.
	InboxSize uint64
}

// DispatcherStats counts messages seen by a Dispatcher.
type DispatcherStats struct {
	Received uint64
	Handled  uint64
	Failed   uint64
}

// Dispatcher receives from a Transport and runs a Handler for every message
// on a worker pool. Messages are dispatched in receive order but handlers
// run concurrently.
type Dispatcher struct {
	t       Transport
	handler Handler
	inbox   *queue.RingBuffer
	pool    *ants.Pool

	receiving atomic.Bool
	inflight  sync.WaitGroup

	received atomic.Uint64
	handled  atomic.Uint64
	failed   atomic.Uint64
}

// NewDispatcher returns a Dispatcher for t. Call Run to start it.
func NewDispatcher(t Transport, h Handler, conf DispatcherConfig) (*Dispatcher, error) {
	if t == nil || h == nil {
		return nil, errors.New("transport and handler must not be nil")
	}
	if conf.Workers <= 0 {
		conf.Workers = runtime.NumCPU()
	}
	if conf.InboxSize == 0 {
		conf.InboxSize = defaultInboxSize
	}
	pool, err := ants.NewPool(conf.Workers, ants.WithPanicHandler(func(p interface{}) {
		logger.Errorf("handler panic: %v", p)
	}))
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	return &Dispatcher{
		t:       t,
		handler: h,
		inbox:   queue.NewRingBuffer(conf.InboxSize),
		pool:    pool,
	}, nil
}

// Run dispatches messages until ctx is done or the channel is shut down and
// drained. It returns nil after a shutdown and the context error after a
// cancellation. Handlers still running are waited for. A Dispatcher runs
// once.
func (d *Dispatcher) Run(ctx context.Context) error {
	defer d.pool.Release()
	defer d.inbox.Dispose()

	d.receiving.Store(true)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer d.receiving.Store(false)
		return d.receive(gctx)
	})
	g.Go(func() error {
		err := d.drain(gctx)
		if err != nil {
			// unblocks a receive loop waiting on a full inbox; buffers still
			// queued are left to their finalizers
			d.inbox.Dispose()
		}
		return err
	})
	err := g.Wait()
	d.inflight.Wait()
	return err
}

// Stats returns the message counters.
func (d *Dispatcher) Stats() DispatcherStats {
	return DispatcherStats{
		Received: d.received.Load(),
		Handled:  d.handled.Load(),
		Failed:   d.failed.Load(),
	}
}

func (d *Dispatcher) receive(ctx context.Context) error {
	for {
		buf, err := d.t.Recv(ctx)
		switch {
		case errors.Is(err, channel.ErrChannelClosed):
			logger.Infof("transport closed after %d messages", d.received.Load())
			return nil
		case errors.Is(err, channel.ErrTimeout) && ctx.Err() == nil:
			// idle channel with a RecvTimeout configured
			continue
		case err != nil:
			return err
		}
		d.received.Add(1)
		if err := d.inbox.Put(buf); err != nil {
			buf.Release()
			return err
		}
	}
}

func (d *Dispatcher) drain(ctx context.Context) error {
	for {
		item, err := d.inbox.Poll(drainPoll)
		if errors.Is(err, queue.ErrTimeout) {
			if !d.receiving.Load() && d.inbox.Len() == 0 {
				return nil
			}
			continue
		}
		if err != nil {
			return err
		}
		buf := item.(*shm.Buffer)
		if ctx.Err() != nil {
			// stopping: free what the receive loop already took
			buf.Release()
			continue
		}
		if err := d.dispatch(ctx, buf); err != nil {
			return err
		}
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, buf *shm.Buffer) error {
	d.inflight.Add(1)
	err := d.pool.Submit(func() {
		defer d.inflight.Done()
		defer buf.Release()
		ok := false
		// runs on panic too
		defer func() {
			if ok {
				d.handled.Add(1)
			} else {
				d.failed.Add(1)
			}
		}()
		if err := d.handler(ctx, buf); err != nil {
			logger.Warnf("handler failed: %v", err)
			return
		}
		ok = true
	})
	if err != nil {
		d.inflight.Done()
		buf.Release()
		return fmt.Errorf("submit handler: %w", err)
	}
	return nil
}
