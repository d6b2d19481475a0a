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
	"fmt"
	"io"
	"os"

	"github.com/srediag/shmipc/internal/logging"
)

var internalLogger = logging.New("channel")

// SetLogLevel changes the level of the package loggers. The default level is
// Warn; the SHMIPC_LOG_LEVEL environment variable sets it at startup.
func SetLogLevel(l int) {
	logging.SetLogLevel(l)
}

// ReadHeader reads the header of the region file at path without attaching.
func ReadHeader(path string) (HeaderInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return HeaderInfo{}, err
	}
	defer f.Close()
	mem := make([]byte, headerSize)
	if _, err := io.ReadFull(f, mem); err != nil {
		return HeaderInfo{}, fmt.Errorf("%w: read header of %s: %w", ErrCorruptedState, path, err)
	}
	return headerOf(mem).info(), nil
}

// DebugChannelDetail prints the header of the channel region mapped at path.
func DebugChannelDetail(path string) {
	info, err := ReadHeader(path)
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Printf("path:%s magic:%#x version:%d flags:%d peers:%d cap:%d read:%d write:%d used:%d committed:%d consumed:%d readers:%d writer:%t\n",
		path, info.Magic, info.Version, info.Flags, info.RefCount, info.Capacity,
		info.ReadPos, info.WritePos, info.WritePos-info.ReadPos,
		info.Committed, info.Consumed, info.Readers, info.Writer)
}
