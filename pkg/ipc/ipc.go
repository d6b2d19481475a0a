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

// Package ipc is the handle-style surface over pkg/channel: connect returns a
// handle or nil, send reports success as a bool, recv returns an empty Buffer
// when nothing could be received. Err returns the reason of the last failure.
package ipc

import (
	"context"
	"sync"

	"github.com/srediag/shmipc/internal/logging"
	"github.com/srediag/shmipc/pkg/channel"
	"github.com/srediag/shmipc/pkg/shm"
)

var logger = logging.New("ipc")

// Handle is an open channel.
type Handle struct {
	ch *channel.Channel

	mu      sync.Mutex
	lastErr error
}

// Connect opens the channel called name with the configuration from the
// SHMIPC_* environment. It returns nil if the channel can't be opened.
func Connect(name string) *Handle {
	conf, err := channel.LoadConfig()
	if err != nil {
		logger.Errorf("connect %s: %v", name, err)
		return nil
	}
	h, err := ConnectConfig(name, conf)
	if err != nil {
		logger.Errorf("connect %s: %v", name, err)
		return nil
	}
	return h
}

// ConnectConfig opens the channel called name with conf.
func ConnectConfig(name string, conf *channel.Config) (*Handle, error) {
	ch, err := channel.Connect(context.Background(), name, conf)
	if err != nil {
		return nil, err
	}
	return &Handle{ch: ch}, nil
}

// Send sends data as one message and reports whether it was committed.
func Send(h *Handle, data []byte) bool {
	if h == nil {
		return false
	}
	err := h.ch.Send(context.Background(), data)
	h.setErr(err)
	if err != nil {
		logger.Debugf("send on %s: %v", h.ch.Name(), err)
		return false
	}
	return true
}

// Recv waits for the next message. It returns an empty Buffer on timeout,
// closure or any other failure; Err tells which.
func Recv(h *Handle) *shm.Buffer {
	buf, err := RecvErr(h)
	if err != nil {
		return shm.NewBuffer()
	}
	return buf
}

// RecvErr is Recv with the failure reason.
func RecvErr(h *Handle) (*shm.Buffer, error) {
	if h == nil {
		return nil, channel.ErrInvalidHandle
	}
	buf, err := h.ch.Recv(context.Background())
	h.setErr(err)
	if err != nil {
		logger.Debugf("recv on %s: %v", h.ch.Name(), err)
	}
	return buf, err
}

// Disconnect closes the handle. It is safe to call more than once and on nil.
func Disconnect(h *Handle) {
	if h == nil {
		return
	}
	if err := h.ch.Disconnect(); err != nil {
		logger.Warnf("disconnect %s: %v", h.ch.Name(), err)
		h.setErr(err)
	}
}

// Err returns the error of the last failed operation on h, or nil if the last
// operation succeeded.
func Err(h *Handle) error {
	if h == nil {
		return channel.ErrInvalidHandle
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastErr
}

// Channel returns the channel behind h.
func (h *Handle) Channel() *channel.Channel {
	return h.ch
}

func (h *Handle) setErr(err error) {
	h.mu.Lock()
	h.lastErr = err
	h.mu.Unlock()
}
