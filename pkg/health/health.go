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

// Package health exposes liveness and readiness probes for open channels.
package health

import (
	"fmt"
	"time"

	"github.com/heptiolabs/healthcheck"
	"github.com/prometheus/client_golang/prometheus"
)

// CheckTimeout bounds a single probe of a channel header.
const CheckTimeout = time.Second

// Checker is the part of a channel the probes look at. *channel.Channel
// implements it.
type Checker interface {
	Name() string
	// Check validates the shared header.
	Check() error
	IsShutdown() bool
}

// Register adds, for every checker, a liveness check that fails when its
// shared header is invalid or the handle was disconnected, and a readiness
// check that fails once the channel is shut down.
func Register(h healthcheck.Handler, checkers ...Checker) {
	for _, c := range checkers {
		c := c
		h.AddLivenessCheck("channel-"+c.Name(), healthcheck.Timeout(c.Check, CheckTimeout))
		h.AddReadinessCheck("channel-"+c.Name()+"-open", func() error {
			if c.IsShutdown() {
				return fmt.Errorf("channel %s is shut down", c.Name())
			}
			return nil
		})
	}
}

// NewHandler returns a handler serving /live and /ready for checkers. With a
// non-nil registerer the check results are also exported as Prometheus
// gauges under the shmipc namespace.
func NewHandler(reg prometheus.Registerer, checkers ...Checker) healthcheck.Handler {
	var h healthcheck.Handler
	if reg != nil {
		h = healthcheck.NewMetricsHandler(reg, "shmipc")
	} else {
		h = healthcheck.NewHandler()
	}
	Register(h, checkers...)
	return h
}
