// Copyright 2023 LiveKit, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package clientlogger

import (
	"fmt"

	"github.com/pion/logging"

	"github.com/livekit/protocol/logger"
)

// implements logging.LoggerFactory
type loggerFactory struct {
	logger logger.Logger
	level  logging.LogLevel
}

func NewLoggerFactory(l logger.Logger, level string) logging.LoggerFactory {
	if l == nil {
		l = logger.GetLogger()
	}
	return &loggerFactory{
		logger: l,
		level:  parsePionLevel(level),
	}
}

func (f *loggerFactory) NewLogger(scope string) logging.LeveledLogger {
	return &logAdapter{
		logger: f.logger.WithValues("scope", scope),
		level:  f.level,
	}
}

// implements logging.LeveledLogger
type logAdapter struct {
	logger logger.Logger
	level  logging.LogLevel
}

func (l *logAdapter) enabled(level logging.LogLevel) bool {
	return l.level != logging.LogLevelDisabled && level <= l.level
}

func (l *logAdapter) Trace(msg string) {
	// ignore trace
}

func (l *logAdapter) Tracef(format string, args ...interface{}) {
	// ignore trace
}

func (l *logAdapter) Debug(msg string) {
	if l.enabled(logging.LogLevelDebug) {
		l.logger.Debugw(msg)
	}
}

func (l *logAdapter) Debugf(format string, args ...interface{}) {
	l.Debug(fmt.Sprintf(format, args...))
}

// pion is chatty at info, treat it as debug
func (l *logAdapter) Info(msg string) {
	if l.enabled(logging.LogLevelInfo) {
		l.logger.Debugw(msg)
	}
}

func (l *logAdapter) Infof(format string, args ...interface{}) {
	l.Info(fmt.Sprintf(format, args...))
}

func (l *logAdapter) Warn(msg string) {
	if l.enabled(logging.LogLevelWarn) {
		l.logger.Warnw(msg, nil)
	}
}

func (l *logAdapter) Warnf(format string, args ...interface{}) {
	l.Warn(fmt.Sprintf(format, args...))
}

func (l *logAdapter) Error(msg string) {
	if l.enabled(logging.LogLevelError) {
		l.logger.Errorw(msg, nil)
	}
}

func (l *logAdapter) Errorf(format string, args ...interface{}) {
	l.Error(fmt.Sprintf(format, args...))
}
