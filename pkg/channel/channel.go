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
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel/trace"

	internalshm "github.com/srediag/shmipc/internal/shm"
	"github.com/srediag/shmipc/pkg/shm"
)

const (
	maxNameLength          = 200
	initialBackOffInterval = 10 * time.Microsecond
)

// Channel is one process's handle to a named shared memory channel.
//
// All handles connected to the same name, in this process or any other, share
// one ring. A Channel is safe for concurrent use; Disconnect waits for
// in-flight attempts of this handle to finish.
type Channel struct {
	name string
	path string
	conf *Config
	pool *shm.BufferPool

	// life guards region against Disconnect. Operations hold it shared for
	// one attempt at a time, never across a back-off wait.
	life   sync.RWMutex
	closed bool
	region *internalshm.MappedRegion
	hdr    *header
	ring   ring

	metrics *metrics
}

// Stats is a snapshot of a channel's shared state.
type Stats struct {
	Name      string
	Capacity  uint64
	Used      uint64
	Peers     uint32
	Committed uint64
	Consumed  uint64
	Shutdown  bool
}

func validateName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: empty", ErrInvalidName)
	case len(name) > maxNameLength:
		return fmt.Errorf("%w: longer than %d bytes", ErrInvalidName, maxNameLength)
	case strings.ContainsAny(name, "/\x00"):
		return fmt.Errorf("%w: %q contains '/' or NUL", ErrInvalidName, name)
	case name == "." || name == "..":
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// Connect opens the channel called name, creating and initializing its
// shared region if no other handle has it open. conf may be nil, in which
// case DefaultConfig is used.
func Connect(ctx context.Context, name string, conf *Config) (*Channel, error) {
	if conf == nil {
		conf = DefaultConfig()
	}
	if err := VerifyConfig(conf); err != nil {
		return nil, err
	}
	if err := validateName(name); err != nil {
		return nil, err
	}

	path := conf.PathPrefix + name
	region, err := internalshm.MapRegion(ctx, internalshm.MapOptions{
		Path:       path,
		Size:       headerSize + int(conf.Capacity),
		CheckSpace: conf.CheckDiskSpace,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrResourceCreationFailed, err)
	}

	hdr, refs, err := attach(region)
	if uerr := region.Unlock(); uerr != nil && err == nil {
		err = fmt.Errorf("%w: unlock %s: %w", ErrResourceCreationFailed, path, uerr)
	}
	if err != nil {
		_ = internalshm.UnmapRegion(ctx, region)
		return nil, err
	}

	pool := conf.Pool
	if pool == nil {
		pool = shm.DefaultBufferPool
	}
	c := &Channel{
		name:    name,
		path:    path,
		conf:    conf,
		pool:    pool,
		region:  region,
		hdr:     hdr,
		ring:    newRing(hdr, region.Addr),
		metrics: newMetrics(name, conf),
	}
	c.metrics.peers.Set(float64(refs))
	register(c)
	internalLogger.Debugf("connected channel %s path:%s created:%t peers:%d capacity:%d",
		name, path, region.Created, refs, hdr.capacity)
	return c, nil
}

// attach initializes or validates the header of a region whose file lock is
// held and counts the caller as a peer.
func attach(region *internalshm.MappedRegion) (*header, uint32, error) {
	size := len(region.Addr)
	if size < headerSize+minCapacity {
		return nil, 0, fmt.Errorf("%w: region %s is only %d bytes", ErrCorruptedState, region.Path, size)
	}
	hdr := headerOf(region.Addr)
	// a creator that died before publishing the magic leaves an unowned zero header
	if region.Created || (hdr.loadMagic() == 0 && hdr.loadRefCount() == 0) {
		hdr.initialize(uint64(size - headerSize))
	}
	if err := hdr.validate(size); err != nil {
		return nil, 0, err
	}
	return hdr, hdr.addRefCount(1), nil
}

// Name returns the channel name.
func (c *Channel) Name() string {
	return c.name
}

// Path returns the path of the region's backing file.
func (c *Channel) Path() string {
	return c.path
}

// MaxMessageSize returns the largest message Send accepts.
func (c *Channel) MaxMessageSize() int {
	return maxMessageSize(c.ring.capacity)
}

// Send copies data into the channel as one message.
//
// When the ring is full, a BackpressureBlock channel retries until space frees
// or the deadline of ctx (or SendTimeout) expires with ErrTimeout; a
// BackpressureFail channel returns ErrCapacityExceeded at once. A message is
// either committed whole or not at all.
func (c *Channel) Send(ctx context.Context, data []byte) (err error) {
	if c == nil {
		return ErrInvalidHandle
	}
	ctx, span := c.metrics.startSpan(ctx, "send", trace.SpanKindProducer, len(data))
	defer func() {
		if err != nil {
			c.metrics.failed(span, "send", err)
		} else {
			c.metrics.sent(ctx, len(data))
		}
		span.End()
	}()

	if len(data) == 0 {
		return ErrEmptyMessage
	}
	if len(data) > c.MaxMessageSize() {
		return fmt.Errorf("%w: message of %d bytes, max %d", ErrCapacityExceeded, len(data), c.MaxMessageSize())
	}

	ctx, cancel := withTimeout(ctx, c.conf.SendTimeout)
	defer cancel()

	err = c.trySend(ctx, data)
	if !errors.Is(err, errRingFull) {
		return ctxError(err)
	}
	if c.conf.Backpressure == BackpressureFail {
		return fmt.Errorf("%w: ring full", ErrCapacityExceeded)
	}

	err = backoff.Retry(func() error {
		err := c.trySend(ctx, data)
		if err == nil || errors.Is(err, errRingFull) {
			return err
		}
		return backoff.Permanent(err)
	}, backoff.WithContext(c.newBackOff(), ctx))
	return ctxError(err)
}

func (c *Channel) trySend(ctx context.Context, data []byte) error {
	c.life.RLock()
	defer c.life.RUnlock()
	if c.closed {
		return ErrInvalidHandle
	}
	if err := c.hdr.lock.LockContext(ctx); err != nil {
		return err
	}
	defer c.hdr.lock.Unlock()
	// checked under the write lock so nothing is committed after Shutdown
	if c.hdr.loadFlags()&flagShutdown != 0 {
		return ErrChannelClosed
	}
	return c.ring.write(data)
}

// Recv waits for the next message and returns it in an owning Buffer that is
// independent of the shared region. The caller releases the Buffer.
//
// Recv polls with exponential back-off capped at PollInterval. It returns
// ErrTimeout when the deadline of ctx (or RecvTimeout) expires,
// context.Canceled when ctx is canceled, and ErrChannelClosed once the
// channel was shut down and every message was received.
func (c *Channel) Recv(ctx context.Context) (buf *shm.Buffer, err error) {
	if c == nil {
		return nil, ErrInvalidHandle
	}
	ctx, span := c.metrics.startSpan(ctx, "recv", trace.SpanKindConsumer, 0)
	defer func() {
		if err != nil {
			c.metrics.failed(span, "recv", err)
		} else {
			c.metrics.received(ctx, buf.Size())
		}
		span.End()
	}()

	ctx, cancel := withTimeout(ctx, c.conf.RecvTimeout)
	defer cancel()

	buf, err = backoff.RetryWithData[*shm.Buffer](func() (*shm.Buffer, error) {
		buf, err := c.tryRecv(ctx)
		if err == nil || errors.Is(err, ErrNoData) {
			return buf, err
		}
		return nil, backoff.Permanent(err)
	}, backoff.WithContext(c.newBackOff(), ctx))
	if err != nil {
		return nil, ctxError(err)
	}
	return buf, nil
}

// TryRecv makes one attempt to receive a message and returns ErrNoData if
// none is ready.
func (c *Channel) TryRecv() (buf *shm.Buffer, err error) {
	if c == nil {
		return nil, ErrInvalidHandle
	}
	buf, err = c.tryRecv(context.Background())
	if err == nil {
		c.metrics.received(context.Background(), buf.Size())
	}
	return buf, err
}

func (c *Channel) tryRecv(ctx context.Context) (*shm.Buffer, error) {
	c.life.RLock()
	defer c.life.RUnlock()
	if c.closed {
		return nil, ErrInvalidHandle
	}
	if err := c.hdr.lock.RLockContext(ctx); err != nil {
		return nil, err
	}
	defer c.hdr.lock.RUnlock()
	buf, err := c.ring.read(c.pool)
	if errors.Is(err, ErrNoData) && c.hdr.loadFlags()&flagShutdown != 0 {
		return nil, ErrChannelClosed
	}
	return buf, err
}

// Shutdown marks the channel as shut down for every peer. Later sends fail
// with ErrChannelClosed; receivers get the messages already committed and
// then ErrChannelClosed.
func (c *Channel) Shutdown() error {
	if c == nil {
		return ErrInvalidHandle
	}
	c.life.RLock()
	defer c.life.RUnlock()
	if c.closed {
		return ErrInvalidHandle
	}
	c.hdr.lock.Lock()
	c.hdr.setFlags(flagShutdown)
	c.hdr.lock.Unlock()
	internalLogger.Infof("channel %s shut down", c.name)
	return nil
}

// IsShutdown reports whether any peer shut the channel down.
func (c *Channel) IsShutdown() bool {
	if c == nil {
		return false
	}
	c.life.RLock()
	defer c.life.RUnlock()
	return !c.closed && c.hdr.loadFlags()&flagShutdown != 0
}

// Stats returns a snapshot of the shared state.
func (c *Channel) Stats() (Stats, error) {
	if c == nil {
		return Stats{}, ErrInvalidHandle
	}
	c.life.RLock()
	defer c.life.RUnlock()
	if c.closed {
		return Stats{}, ErrInvalidHandle
	}
	info := c.hdr.info()
	c.metrics.peers.Set(float64(info.RefCount))
	return Stats{
		Name:      c.name,
		Capacity:  info.Capacity,
		Used:      info.WritePos - info.ReadPos,
		Peers:     info.RefCount,
		Committed: info.Committed,
		Consumed:  info.Consumed,
		Shutdown:  info.Flags&flagShutdown != 0,
	}, nil
}

// Check validates the shared header. It returns ErrInvalidHandle after
// Disconnect and ErrCorruptedState if the region was damaged.
func (c *Channel) Check() error {
	if c == nil {
		return ErrInvalidHandle
	}
	c.life.RLock()
	defer c.life.RUnlock()
	if c.closed {
		return ErrInvalidHandle
	}
	return c.hdr.validate(len(c.region.Addr))
}

// Disconnect detaches the handle from the channel. The region is unmapped
// and, when this was the last attached handle, its name is removed so the
// next Connect creates an empty channel. Disconnecting twice is a no-op.
func (c *Channel) Disconnect() error {
	if c == nil {
		return nil
	}
	c.life.Lock()
	defer c.life.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	unregister(c)
	return c.detach()
}

func (c *Channel) detach() error {
	var errs []error
	if err := c.region.Lock(); err != nil {
		errs = append(errs, fmt.Errorf("lock %s: %w", c.path, err))
	}
	var refs uint32
	if c.hdr.loadRefCount() > 0 {
		refs = c.hdr.addRefCount(-1)
	} else {
		internalLogger.Warnf("channel %s: attach count already zero on disconnect", c.name)
	}
	c.metrics.peers.Set(float64(refs))
	if refs == 0 {
		if err := internalshm.UnlinkRegion(c.path); err != nil {
			errs = append(errs, err)
		}
	}
	// closing the file also drops the lock
	if err := internalshm.UnmapRegion(context.Background(), c.region); err != nil {
		errs = append(errs, err)
	}
	internalLogger.Debugf("disconnected channel %s peers left:%d", c.name, refs)
	return errors.Join(errs...)
}

func (c *Channel) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = min(initialBackOffInterval, c.conf.PollInterval)
	b.MaxInterval = c.conf.PollInterval
	b.MaxElapsedTime = 0
	return b
}

// withTimeout bounds ctx by d unless ctx already has a deadline or d is zero.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}

func (c *Channel) String() string {
	return fmt.Sprintf("channel %s (%s)", c.name, c.path)
}
