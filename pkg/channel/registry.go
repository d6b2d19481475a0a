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
	"errors"
	"fmt"

	cmap "github.com/orcaman/concurrent-map/v2"
)

// open tracks the handles of this process that are still connected.
var open = cmap.New[*Channel]()

func handleKey(c *Channel) string {
	return fmt.Sprintf("%s#%p", c.path, c)
}

func register(c *Channel) {
	open.Set(handleKey(c), c)
}

func unregister(c *Channel) {
	open.Remove(handleKey(c))
}

// OpenChannels returns the handles this process has connected and not yet
// disconnected.
func OpenChannels() []*Channel {
	chans := make([]*Channel, 0, open.Count())
	for item := range open.IterBuffered() {
		chans = append(chans, item.Val)
	}
	return chans
}

// DisconnectAll disconnects every open handle of this process, e.g. on
// shutdown so the last process out removes the regions.
func DisconnectAll() error {
	var errs []error
	for _, c := range OpenChannels() {
		if err := c.Disconnect(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", c.name, err))
		}
	}
	return errors.Join(errs...)
}
