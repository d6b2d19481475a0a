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
	"strings"

	"github.com/shirou/gopsutil/v3/disk"
)

const devShmPath = "/dev/shm"

// CanCreateOnDevShm reports whether a region of size bytes fits in the free
// space of /dev/shm. Paths outside /dev/shm always report true.
func CanCreateOnDevShm(size uint64, path string) bool {
	if !strings.HasPrefix(path, devShmPath+"/") {
		return true
	}
	stat, err := disk.Usage(devShmPath)
	if err != nil {
		// can't tell, let ftruncate decide
		return true
	}
	return size <= stat.Free
}
