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

// Package transport decouples message consumers from the channel they read:
// Transport is the send/recv/disconnect surface, and Dispatcher drains a
// Transport into a pool of handler goroutines.
package transport

import (
	"context"

	"github.com/srediag/shmipc/pkg/channel"
	"github.com/srediag/shmipc/pkg/shm"
)

// Transport is a message stream between processes.
type Transport interface {
	// Send commits data as one message.
	Send(ctx context.Context, data []byte) error
	// Recv waits for the next message. The caller releases the Buffer.
	Recv(ctx context.Context) (*shm.Buffer, error)
	// Disconnect detaches from the stream.
	Disconnect() error
}

var _ Transport = (*channel.Channel)(nil)
