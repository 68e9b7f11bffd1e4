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
	"strings"

	"github.com/pion/logging"

	"github.com/livekit/protocol/logger"
)

const loggerName = "janus"

// Config is the logging section of the client configuration.
type Config struct {
	logger.Config `yaml:",inline"`
	// PionLevel filters what the media stack logs: trace, debug, info, warn,
	// error or disabled.
	PionLevel string `yaml:"pion_level,omitempty"`
}

var defaultFactory logging.LoggerFactory

// InitFromConfig sets up the global logger and the pion logger factory.
func InitFromConfig(conf *Config) {
	logger.InitFromConfig(conf.Config, loggerName)
	defaultFactory = NewLoggerFactory(logger.GetLogger().WithValues("component", "pion"), conf.PionLevel)
}

// InitDevelopment logs everything at level or above, pion included.
func InitDevelopment(level string) {
	if level == "" {
		level = "debug"
	}
	InitFromConfig(&Config{
		Config:    logger.Config{Level: level},
		PionLevel: "warn",
	})
}

// LoggerFactory returns the factory media engines should hand to pion.
func LoggerFactory() logging.LoggerFactory {
	if defaultFactory == nil {
		defaultFactory = NewLoggerFactory(logger.GetLogger(), "error")
	}
	return defaultFactory
}

func SetLoggerFactory(lf logging.LoggerFactory) {
	defaultFactory = lf
}

func parsePionLevel(level string) logging.LogLevel {
	switch strings.ToLower(level) {
	case "trace":
		return logging.LogLevelTrace
	case "debug":
		return logging.LogLevelDebug
	case "info":
		return logging.LogLevelInfo
	case "warn", "warning":
		return logging.LogLevelWarn
	case "disabled", "off":
		return logging.LogLevelDisabled
	default:
		return logging.LogLevelError
	}
}
