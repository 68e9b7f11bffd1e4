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

package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v2"

	"github.com/livekit/janus-client/pkg/videoroom"
)

// withAdmin runs fn with a video room admin on a fresh session.
func withAdmin(c *cli.Context, fn func(admin *videoroom.Admin) error) error {
	conf, err := getConfig(c)
	if err != nil {
		return err
	}
	client, err := newGatewayClient(conf, nil)
	if err != nil {
		return err
	}
	if err = client.connect(); err != nil {
		return err
	}
	defer client.close()

	h, err := client.attach(videoroom.Plugin, nil)
	if err != nil {
		return err
	}
	return fn(videoroom.NewAdmin(h))
}

func listRooms(c *cli.Context) error {
	return withAdmin(c, func(admin *videoroom.Admin) error {
		type result struct {
			rooms []videoroom.RoomInfo
			err   error
		}
		results := make(chan result, 1)
		admin.List(context.Background(), func(_ context.Context, rooms []videoroom.RoomInfo, err error) {
			results <- result{rooms, err}
		})
		r := <-results
		if r.err != nil {
			return r.err
		}

		table := tablewriter.NewWriter(os.Stdout)
		table.SetRowLine(true)
		table.SetAutoWrapText(false)
		table.SetHeader([]string{
			"Room",
			"Description",
			"Participants",
			"Publishers",
			"Bitrate",
			"Codecs",
			"Pin",
		})
		for _, room := range r.rooms {
			bitrate := "unlimited"
			if room.Bitrate > 0 {
				bitrate = humanize.SI(float64(room.Bitrate), "bps")
			}
			table.Append([]string{
				strconv.FormatUint(room.Room, 10),
				room.Description,
				strconv.Itoa(room.NumParticipants),
				strconv.Itoa(room.MaxPublishers),
				bitrate,
				room.AudioCodec + "/" + room.VideoCodec,
				strconv.FormatBool(room.PinRequired),
			})
		}
		table.Render()
		return nil
	})
}

func createRoom(c *cli.Context) error {
	return withAdmin(c, func(admin *videoroom.Admin) error {
		req := videoroom.NewCreateRequest(c.Uint64("room"), c.String("description"), c.Int("publishers"))
		req.Secret = c.String("secret")

		type result struct {
			room uint64
			err  error
		}
		results := make(chan result, 1)
		admin.Create(context.Background(), req, func(_ context.Context, room uint64, err error) {
			results <- result{room, err}
		})
		r := <-results
		if r.err != nil {
			return r.err
		}
		fmt.Println("created room", r.room)
		return nil
	})
}

func destroyRoom(c *cli.Context) error {
	return withAdmin(c, func(admin *videoroom.Admin) error {
		room := c.Uint64("room")
		errs := make(chan error, 1)
		admin.Destroy(context.Background(), videoroom.NewDestroyRequest(room, c.String("secret")), callback(errs))
		if err := <-errs; err != nil {
			return err
		}
		fmt.Println("destroyed room", room)
		return nil
	})
}

func roomExists(c *cli.Context) error {
	return withAdmin(c, func(admin *videoroom.Admin) error {
		room := c.Uint64("room")
		errs := make(chan error, 1)
		admin.Exists(context.Background(), room, func(_ context.Context, exists bool, err error) {
			if err == nil {
				fmt.Printf("room %d exists: %t\n", room, exists)
			}
			errs <- err
		})
		return <-errs
	})
}

func listParticipants(c *cli.Context) error {
	return withAdmin(c, func(admin *videoroom.Admin) error {
		type result struct {
			participants []videoroom.Participant
			err          error
		}
		results := make(chan result, 1)
		admin.ListParticipants(context.Background(), c.Uint64("room"), func(_ context.Context, participants []videoroom.Participant, err error) {
			results <- result{participants, err}
		})
		r := <-results
		if r.err != nil {
			return r.err
		}

		table := tablewriter.NewWriter(os.Stdout)
		table.SetAutoWrapText(false)
		table.SetHeader([]string{"ID", "Display", "Publisher", "Talking"})
		for _, p := range r.participants {
			table.Append([]string{
				strconv.FormatUint(p.ID, 10),
				p.Display,
				strconv.FormatBool(p.Publisher),
				strconv.FormatBool(p.Talking),
			})
		}
		table.Render()
		return nil
	})
}
