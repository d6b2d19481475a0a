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
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/srediag/shmipc/pkg/shm"
)

const (
	defaultCapacity     = 1 << 20
	minCapacity         = 64
	maxCapacity         = 1 << 31
	defaultPollInterval = time.Millisecond
	envPrefix           = "shmipc"
)

// BackpressurePolicy decides what Send does when the ring has no room.
type BackpressurePolicy int

const (
	// BackpressureBlock retries until space frees or the send deadline expires.
	BackpressureBlock BackpressurePolicy = iota
	// BackpressureFail returns ErrCapacityExceeded at once.
	BackpressureFail
)

func (p BackpressurePolicy) String() string {
	switch p {
	case BackpressureBlock:
		return "block"
	case BackpressureFail:
		return "fail"
	}
	return fmt.Sprintf("BackpressurePolicy(%d)", int(p))
}

// Decode lets envconfig read the policy by name.
func (p *BackpressurePolicy) Decode(v string) error {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "block", "":
		*p = BackpressureBlock
	case "fail":
		*p = BackpressureFail
	default:
		return fmt.Errorf("unknown backpressure policy %q", v)
	}
	return nil
}

// Config is used to tune a channel handle.
//
// Every handle to one name must agree on the region layout, but Capacity only
// matters to the process that creates the region; later connects use the
// capacity recorded in the region header.
type Config struct {
	// PathPrefix is prepended to the channel name to form the region's file path.
	PathPrefix string `envconfig:"PATH_PREFIX"`
	// Capacity is the payload ring size in bytes, a multiple of 8.
	Capacity uint32 `envconfig:"CAPACITY"`
	// Backpressure is the policy for sends into a full ring.
	Backpressure BackpressurePolicy `envconfig:"BACKPRESSURE"`
	// SendTimeout bounds Send when the caller's context has no deadline. Zero means no bound.
	SendTimeout time.Duration `envconfig:"SEND_TIMEOUT"`
	// RecvTimeout bounds Recv when the caller's context has no deadline. Zero means no bound.
	RecvTimeout time.Duration `envconfig:"RECV_TIMEOUT"`
	// PollInterval caps the back-off between polls of an empty or full ring.
	PollInterval time.Duration `envconfig:"POLL_INTERVAL"`
	// CheckDiskSpace verifies free space on /dev/shm before creating a region.
	CheckDiskSpace bool `envconfig:"CHECK_DISK_SPACE"`

	// Pool supplies receive buffers. Defaults to shm.DefaultBufferPool.
	Pool *shm.BufferPool `ignored:"true"`
	// Registerer receives the channel's Prometheus collectors. Defaults to
	// prometheus.DefaultRegisterer.
	Registerer prometheus.Registerer `ignored:"true"`
	// Meter and Tracer default to no-op implementations.
	Meter  metric.Meter `ignored:"true"`
	Tracer trace.Tracer `ignored:"true"`
}

// DefaultConfig is used to return a default configuration.
func DefaultConfig() *Config {
	return &Config{
		PathPrefix:     defaultPathPrefix(),
		Capacity:       defaultCapacity,
		Backpressure:   BackpressureBlock,
		PollInterval:   defaultPollInterval,
		CheckDiskSpace: true,
	}
}

func defaultPathPrefix() string {
	if runtime.GOOS == "linux" {
		return "/dev/shm/shmipc_"
	}
	return filepath.Join(os.TempDir(), "shmipc_")
}

// LoadConfig returns DefaultConfig overridden by SHMIPC_* environment
// variables, e.g. SHMIPC_CAPACITY=65536 or SHMIPC_BACKPRESSURE=fail.
func LoadConfig() (*Config, error) {
	conf := DefaultConfig()
	if err := envconfig.Process(envPrefix, conf); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := VerifyConfig(conf); err != nil {
		return nil, err
	}
	return conf, nil
}

// VerifyConfig is used to verify the sanity of configuration.
func VerifyConfig(config *Config) error {
	if config == nil {
		return errors.New("config is nil")
	}
	if config.PathPrefix == "" {
		return errors.New("PathPrefix must not be empty")
	}
	if config.Capacity < minCapacity || uint64(config.Capacity) > maxCapacity {
		return fmt.Errorf("Capacity must be in [%d, %d], got %d", minCapacity, uint64(maxCapacity), config.Capacity)
	}
	if config.Capacity%recordAlign != 0 {
		return fmt.Errorf("Capacity must be a multiple of %d, got %d", recordAlign, config.Capacity)
	}
	if config.Backpressure != BackpressureBlock && config.Backpressure != BackpressureFail {
		return fmt.Errorf("unknown Backpressure %s", config.Backpressure)
	}
	if config.SendTimeout < 0 || config.RecvTimeout < 0 {
		return errors.New("timeouts must not be negative")
	}
	if config.PollInterval <= 0 {
		return errors.New("PollInterval must be positive")
	}
	return nil
}
