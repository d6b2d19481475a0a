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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/suite"
)

type PlatformTestSuite struct {
	suite.Suite
	path string
}

func (s *PlatformTestSuite) SetupTest() {
	s.path = filepath.Join(s.T().TempDir(), "region")
}

func (s *PlatformTestSuite) TestMapRegion_CreateThenOpen() {
	ctx := context.Background()
	r1, err := MapRegion(ctx, MapOptions{Path: s.path, Size: 4096})
	s.Require().NoError(err)
	s.Require().True(r1.Created)
	s.Require().Len(r1.Addr, 4096)
	copy(r1.Addr, "shared")
	s.Require().NoError(r1.Unlock())

	// a second open sees the existing size and the same bytes
	r2, err := MapRegion(ctx, MapOptions{Path: s.path, Size: 8192})
	s.Require().NoError(err)
	s.Require().False(r2.Created)
	s.Require().Len(r2.Addr, 4096)
	s.Require().NoError(r2.Unlock())
	s.Equal("shared", string(r2.Addr[:6]))

	r2.Addr[0] = 'S'
	s.Equal(byte('S'), r1.Addr[0])

	s.Require().NoError(UnmapRegion(ctx, r1))
	s.Require().NoError(UnmapRegion(ctx, r2))
	s.Nil(r1.Addr)
	// unmapping twice is a no-op
	s.Require().NoError(UnmapRegion(ctx, r1))
}

func (s *PlatformTestSuite) TestMapRegion_InvalidSize() {
	_, err := MapRegion(context.Background(), MapOptions{Path: s.path})
	s.Require().Error(err)
}

func (s *PlatformTestSuite) TestMapRegion_Canceled() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := MapRegion(ctx, MapOptions{Path: s.path, Size: 4096})
	s.Require().ErrorIs(err, context.Canceled)
}

func (s *PlatformTestSuite) TestUnlinkRegion() {
	ctx := context.Background()
	r, err := MapRegion(ctx, MapOptions{Path: s.path, Size: 4096})
	s.Require().NoError(err)
	s.Require().NoError(r.Unlock())
	s.Require().NoError(UnmapRegion(ctx, r))

	s.Require().NoError(UnlinkRegion(s.path))
	_, err = os.Stat(s.path)
	s.True(os.IsNotExist(err))
	s.Require().NoError(UnlinkRegion(s.path))
}

func TestPlatformTestSuite(t *testing.T) {
	suite.Run(t, new(PlatformTestSuite))
}
