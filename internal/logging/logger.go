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

// Package logging is the leveled logger shared by shmipc packages. Output goes
// through zap; the level defaults to Warn and can be set with the process env
// SHMIPC_LOG_LEVEL (0 Trace ... 4 Error, 5 disables logging, or a level name).
package logging

import (
	"os"
	"strconv"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Levels accepted by SetLogLevel and SHMIPC_LOG_LEVEL, lowest first.
const (
	LevelTrace = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
	// LevelNoPrint disables logging.
	LevelNoPrint
)

// traceLevel sits below zap's Debug.
const traceLevel = zapcore.DebugLevel - 1

var (
	levels = []zapcore.Level{
		traceLevel,
		zapcore.DebugLevel,
		zapcore.InfoLevel,
		zapcore.WarnLevel,
		zapcore.ErrorLevel,
		zapcore.FatalLevel + 1,
	}
	levelNames = []string{"trace", "debug", "info", "warn", "error", "none"}

	atomicLevel = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	base        atomic.Pointer[zap.Logger]
)

func init() {
	if v := os.Getenv("SHMIPC_LOG_LEVEL"); v != "" {
		if l, ok := ParseLevel(v); ok {
			SetLogLevel(l)
		}
	}
	base.Store(newDefault())
}

func newDefault() *zap.Logger {
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05.999999")
	encCfg.EncodeLevel = func(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
		if l == traceLevel {
			enc.AppendString("\x1b[95mTRACE\x1b[0m")
			return
		}
		zapcore.CapitalColorLevelEncoder(l, enc)
	}
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(os.Stdout), atomicLevel)
	return zap.New(core, zap.AddCaller(), zap.AddCallerSkip(2))
}

// ParseLevel accepts a numeric level or a level name.
func ParseLevel(v string) (int, bool) {
	if n, err := strconv.Atoi(v); err == nil {
		return n, n >= LevelTrace && n <= LevelNoPrint
	}
	v = strings.ToLower(strings.TrimSpace(v))
	for i, name := range levelNames {
		if v == name {
			return i, true
		}
	}
	return 0, false
}

// SetLogLevel changes the level of the default sink. The default is Warn.
func SetLogLevel(l int) {
	if l >= LevelTrace && l <= LevelNoPrint {
		atomicLevel.SetLevel(levels[l])
	}
}

// SetLogger replaces the sink. The logger's own level applies on top of
// SetLogLevel. A nil logger restores the default console sink.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = newDefault()
	} else {
		l = l.WithOptions(zap.AddCallerSkip(2))
	}
	base.Store(l)
}

// Logger is a named view of the shared sink.
type Logger struct {
	name string
}

// New returns a logger whose entries carry name.
func New(name string) *Logger {
	return &Logger{name: name}
}

func (l *Logger) logf(lvl zapcore.Level, format string, a ...interface{}) {
	if !atomicLevel.Enabled(lvl) {
		return
	}
	s := base.Load().Sugar()
	if l.name != "" {
		s = s.Named(l.name)
	}
	s.Logf(lvl, format, a...)
}

// Tracef logs at LevelTrace.
func (l *Logger) Tracef(format string, a ...interface{}) { l.logf(traceLevel, format, a...) }

// Debugf logs at LevelDebug.
func (l *Logger) Debugf(format string, a ...interface{}) { l.logf(zapcore.DebugLevel, format, a...) }

// Infof logs at LevelInfo.
func (l *Logger) Infof(format string, a ...interface{}) { l.logf(zapcore.InfoLevel, format, a...) }

// Warnf logs at LevelWarn.
func (l *Logger) Warnf(format string, a ...interface{}) { l.logf(zapcore.WarnLevel, format, a...) }

// Errorf logs at LevelError.
func (l *Logger) Errorf(format string, a ...interface{}) { l.logf(zapcore.ErrorLevel, format, a...) }
