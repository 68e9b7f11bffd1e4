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
	"fmt"
)

const (
	JANUS_OK = 0

	JANUS_ERROR_UNAUTHORIZED              = 403
	JANUS_ERROR_UNAUTHORIZED_PLUGIN       = 405
	JANUS_ERROR_UNKNOWN                   = 490
	JANUS_ERROR_TRANSPORT_SPECIFIC        = 450
	JANUS_ERROR_MISSING_REQUEST           = 452
	JANUS_ERROR_UNKNOWN_REQUEST           = 453
	JANUS_ERROR_INVALID_JSON              = 454
	JANUS_ERROR_INVALID_JSON_OBJECT       = 455
	JANUS_ERROR_MISSING_MANDATORY_ELEMENT = 456
	JANUS_ERROR_INVALID_REQUEST_PATH      = 457
	JANUS_ERROR_SESSION_NOT_FOUND         = 458
	JANUS_ERROR_HANDLE_NOT_FOUND          = 459
	JANUS_ERROR_PLUGIN_NOT_FOUND          = 460
	JANUS_ERROR_PLUGIN_ATTACH             = 461
	JANUS_ERROR_PLUGIN_MESSAGE            = 462
	JANUS_ERROR_PLUGIN_DETACH             = 463
	JANUS_ERROR_JSEP_UNKNOWN_TYPE         = 464
	JANUS_ERROR_JSEP_INVALID_SDP          = 465
	JANUS_ERROR_TRICKE_INVALID_STREAM     = 466
	JANUS_ERROR_INVALID_ELEMENT_TYPE      = 467
	JANUS_ERROR_SESSION_CONFLICT          = 468
	JANUS_ERROR_UNEXPECTED_ANSWER         = 469
	JANUS_ERROR_TOKEN_NOT_FOUND           = 470

	// video room plugin
	JANUS_VIDEOROOM_ERROR_UNKNOWN_ERROR     = 499
	JANUS_VIDEOROOM_ERROR_NO_MESSAGE        = 421
	JANUS_VIDEOROOM_ERROR_INVALID_JSON      = 422
	JANUS_VIDEOROOM_ERROR_INVALID_REQUEST   = 423
	JANUS_VIDEOROOM_ERROR_JOIN_FIRST        = 424
	JANUS_VIDEOROOM_ERROR_ALREADY_JOINED    = 425
	JANUS_VIDEOROOM_ERROR_NO_SUCH_ROOM      = 426
	JANUS_VIDEOROOM_ERROR_ROOM_EXISTS       = 427
	JANUS_VIDEOROOM_ERROR_NO_SUCH_FEED      = 428
	JANUS_VIDEOROOM_ERROR_MISSING_ELEMENT   = 429
	JANUS_VIDEOROOM_ERROR_INVALID_ELEMENT   = 430
	JANUS_VIDEOROOM_ERROR_INVALID_SDP_TYPE  = 431
	JANUS_VIDEOROOM_ERROR_PUBLISHERS_FULL   = 432
	JANUS_VIDEOROOM_ERROR_UNAUTHORIZED      = 433
	JANUS_VIDEOROOM_ERROR_ALREADY_PUBLISHED = 434
	JANUS_VIDEOROOM_ERROR_NOT_PUBLISHED     = 435
	JANUS_VIDEOROOM_ERROR_ID_EXISTS         = 436
	JANUS_VIDEOROOM_ERROR_INVALID_SDP       = 437
)

// Error is a protocol level error returned by the gateway or a plugin.
type Error struct {
	Code   int
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("janus error %d: %s", e.Code, e.Reason)
}

// ParseError is returned when an inbound frame cannot be decoded.
type ParseError struct {
	Payload string
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("could not parse message: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
