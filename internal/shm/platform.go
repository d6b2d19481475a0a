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

// Package shm contains platform-specific helpers for named shared memory regions.
package shm

import "errors"

var (
	// ErrUnsupported is returned on platforms without file-backed shared mappings.
	ErrUnsupported = errors.New("shared memory regions are not supported on this platform")
	// ErrRegionRemoved means the backing file was unlinked between open and lock.
	ErrRegionRemoved = errors.New("shared memory region was removed while opening")
	// ErrInsufficientSpace means the shared memory filesystem cannot hold the region.
	ErrInsufficientSpace = errors.New("not enough space left on the shared memory filesystem")
)

// MappedRegion represents a memory-mapped shared region.
//
// The backing file stays open for the life of the mapping so that attach and
// detach can be serialized across processes with an advisory file lock.
type MappedRegion struct {
	Addr    []byte
	Path    string
	Created bool

	fd int
}

// MapOptions defines options for mapping shared memory.
type MapOptions struct {
	Path string
	// Size is the region size used when the backing file is created.
	Size int
	// CheckSpace verifies free space on /dev/shm before the file is grown.
	CheckSpace bool
}

// Function implementations are provided in platform-specific files.
