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
)

var (
	// ErrInvalidHandle is returned when using a nil or disconnected channel.
	ErrInvalidHandle = errors.New("invalid or disconnected channel handle")
	// ErrInvalidName is returned by Connect for names that can't name a region.
	ErrInvalidName = errors.New("invalid channel name")
	// ErrResourceCreationFailed is returned when the shared region can't be created or mapped.
	ErrResourceCreationFailed = errors.New("shared memory region could not be created or mapped")
	// ErrCapacityExceeded is returned by Send when the message can't be placed in the ring.
	ErrCapacityExceeded = errors.New("channel capacity exceeded")
	// ErrTimeout is returned when a Send or Recv deadline expires.
	ErrTimeout = errors.New("channel operation timed out")
	// ErrChannelClosed is returned once the channel was shut down and holds no more data.
	ErrChannelClosed = errors.New("channel closed")
	// ErrCorruptedState is returned when the shared region metadata is invalid.
	ErrCorruptedState = errors.New("channel shared state corrupted or version mismatch")
	// ErrEmptyMessage is returned by Send for zero-length messages.
	ErrEmptyMessage = errors.New("zero-length messages are not supported")
	// ErrNoData is returned by TryRecv when no complete message is available.
	ErrNoData = errors.New("no data available")
)

// ctxError maps a context error to the channel's outcome: deadlines become
// ErrTimeout, cancellation stays context.Canceled.
func ctxError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return err
}
