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

package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]int{"0": LevelTrace, "3": LevelWarn, "debug": LevelDebug, " Error ": LevelError, "none": LevelNoPrint} {
		l, ok := ParseLevel(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, l, in)
	}
	for _, in := range []string{"6", "-1", "loud"} {
		_, ok := ParseLevel(in)
		assert.False(t, ok, in)
	}
}

func TestLoggerLevels(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	SetLogger(zap.New(core))
	defer SetLogger(nil)
	defer SetLogLevel(LevelWarn)

	l := New("channel")
	SetLogLevel(LevelInfo)
	l.Debugf("dropped %d", 1)
	l.Infof("kept %d", 2)
	l.Errorf("kept %d", 3)

	entries := logs.AllUntimed()
	if assert.Len(t, entries, 2) {
		assert.Equal(t, "kept 2", entries[0].Message)
		assert.Equal(t, "channel", entries[0].LoggerName)
		assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
	}

	SetLogLevel(LevelNoPrint)
	l.Errorf("silenced")
	assert.Equal(t, 2, logs.Len())

	SetLogLevel(LevelTrace)
	l.Tracef("below the observer")
	l.Warnf("visible")
	assert.Equal(t, 3, logs.Len())
}
