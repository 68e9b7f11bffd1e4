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

package janus

import (
	"encoding/json"

	"github.com/hashicorp/go-version"
	"github.com/pkg/errors"
)

type PluginInfo struct {
	Name          string `json:"name"`
	Author        string `json:"author"`
	Description   string `json:"description"`
	VersionString string `json:"version_string"`
	Version       int    `json:"version"`
}

type ServerInfo struct {
	Name          string                `json:"name"`
	Version       int                   `json:"version"`
	VersionString string                `json:"version_string"`
	Author        string                `json:"author"`
	DataChannels  bool                  `json:"data_channels"`
	IPv6          bool                  `json:"ipv6"`
	ICETCP        bool                  `json:"ice-tcp"`
	FullTrickle   bool                  `json:"full-trickle"`
	Transports    map[string]PluginInfo `json:"transports"`
	Plugins       map[string]PluginInfo `json:"plugins"`
}

func DecodeServerInfo(msg *Message) (*ServerInfo, error) {
	if msg.Janus != KindServerInfo {
		return nil, errors.Errorf("unexpected reply %s to info request", msg.Janus)
	}
	info := &ServerInfo{}
	if err := json.Unmarshal(msg.Raw, info); err != nil {
		return nil, &ParseError{Payload: truncate(msg.Raw), Err: err}
	}
	return info, nil
}

func (s *ServerInfo) HasPlugin(plugin string) bool {
	_, ok := s.Plugins[plugin]
	return ok
}

// AtLeast reports whether the gateway version is min or newer.
func (s *ServerInfo) AtLeast(min string) (bool, error) {
	required, err := version.NewVersion(min)
	if err != nil {
		return false, errors.Wrap(err, "invalid minimum version")
	}
	current, err := version.NewVersion(s.VersionString)
	if err != nil {
		return false, errors.Wrapf(err, "invalid gateway version %q", s.VersionString)
	}
	return current.GreaterThanOrEqual(required), nil
}
