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

//go:build linux || darwin || freebsd

package shm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// MapRegion opens or creates the file at opts.Path, takes an exclusive lock on
// it and maps it shared. The lock is still held on return: the caller inspects
// or initializes the region and then calls Unlock.
func MapRegion(ctx context.Context, opts MapOptions) (*MappedRegion, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		region, err := mapRegion(opts)
		if errors.Is(err, ErrRegionRemoved) {
			// the last peer tore the region down while we waited on the lock
			continue
		}
		return region, err
	}
}

func mapRegion(opts MapOptions) (*MappedRegion, error) {
	//ignore mkdir error
	_ = os.MkdirAll(filepath.Dir(opts.Path), 0o755)

	fd, err := unix.Open(opts.Path, unix.O_RDWR|unix.O_CREAT|unix.O_CLOEXEC, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", opts.Path, err)
	}
	if err := unix.Flock(fd, unix.LOCK_EX); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("flock %s: %w", opts.Path, err)
	}

	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("fstat %s: %w", opts.Path, err)
	}
	if st.Nlink == 0 {
		_ = unix.Close(fd)
		return nil, ErrRegionRemoved
	}

	size := int(st.Size)
	created := false
	if size == 0 {
		if opts.Size <= 0 {
			_ = unix.Close(fd)
			return nil, fmt.Errorf("invalid region size %d", opts.Size)
		}
		if opts.CheckSpace && !CanCreateOnDevShm(uint64(opts.Size), opts.Path) {
			_ = unix.Close(fd)
			_ = unix.Unlink(opts.Path)
			return nil, fmt.Errorf("%w: path %s, size %d", ErrInsufficientSpace, opts.Path, opts.Size)
		}
		if err := unix.Ftruncate(fd, int64(opts.Size)); err != nil {
			_ = unix.Close(fd)
			return nil, fmt.Errorf("ftruncate: %w", err)
		}
		size = opts.Size
		created = true
	}

	addr, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("mmap: %w", err)
	}
	return &MappedRegion{
		Addr:    addr,
		Path:    opts.Path,
		Created: created,
		fd:      fd,
	}, nil
}

// Lock takes the exclusive attach/detach lock of the region's backing file.
func (r *MappedRegion) Lock() error {
	return unix.Flock(r.fd, unix.LOCK_EX)
}

// Unlock releases the lock taken by MapRegion or Lock.
func (r *MappedRegion) Unlock() error {
	return unix.Flock(r.fd, unix.LOCK_UN)
}

// UnmapRegion unmaps the region and closes its backing file, which also drops
// any file lock still held.
func UnmapRegion(ctx context.Context, region *MappedRegion) error {
	if region == nil || region.Addr == nil {
		return nil
	}
	var errs []error
	if err := unix.Munmap(region.Addr); err != nil {
		errs = append(errs, fmt.Errorf("munmap: %w", err))
	}
	region.Addr = nil
	if err := unix.Close(region.fd); err != nil {
		errs = append(errs, fmt.Errorf("close: %w", err))
	}
	region.fd = -1
	return errors.Join(errs...)
}

// UnlinkRegion removes the named region. A missing file is not an error.
func UnlinkRegion(path string) error {
	if err := unix.Unlink(path); err != nil && !errors.Is(err, unix.ENOENT) {
		return fmt.Errorf("unlink %s: %w", path, err)
	}
	return nil
}
