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
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/livekit/protocol/logger"

	"github.com/livekit/janus-client/pkg/config"
	"github.com/livekit/janus-client/version"
)

var baseFlags = []cli.Flag{
	&cli.StringFlag{
		Name:  "config",
		Usage: "path to client config file",
	},
	&cli.StringFlag{
		Name:    "config-body",
		Usage:   "client config in YAML, typically passed in as an environment var in a container",
		EnvVars: []string{"JANUS_CONFIG"},
	},
	&cli.StringFlag{
		Name:    "url",
		Usage:   "websocket url of the gateway",
		EnvVars: []string{"JANUS_URL"},
	},
	&cli.StringFlag{
		Name:    "token",
		Usage:   "gateway token",
		EnvVars: []string{"JANUS_TOKEN"},
	},
	&cli.StringFlag{
		Name:    "api-secret",
		Usage:   "gateway api secret",
		EnvVars: []string{"JANUS_API_SECRET"},
	},
	&cli.BoolFlag{
		Name:  "dev",
		Usage: "sets log-level to debug and console formatter",
	},
	&cli.BoolFlag{
		Name:   "disable-strict-config",
		Usage:  "disables strict config parsing",
		Hidden: true,
	},
}

var roomFlag = &cli.Uint64Flag{
	Name:     "room",
	Usage:    "numeric id of the video room",
	Required: true,
}

func main() {
	generatedFlags, err := config.GenerateCLIFlags(baseFlags, true)
	if err != nil {
		fmt.Println(err)
	}

	app := &cli.App{
		Name:    "janus-cli",
		Usage:   "Janus gateway client",
		Flags:   append(baseFlags, generatedFlags...),
		Version: version.Version,
		Commands: []*cli.Command{
			{
				Name:   "info",
				Usage:  "prints what the gateway reports about itself",
				Action: printInfo,
			},
			{
				Name:  "room",
				Usage: "manages video rooms",
				Subcommands: []*cli.Command{
					{
						Name:   "list",
						Usage:  "lists public rooms",
						Action: listRooms,
					},
					{
						Name:   "create",
						Usage:  "creates a room",
						Action: createRoom,
						Flags: []cli.Flag{
							&cli.Uint64Flag{
								Name:  "room",
								Usage: "room id, assigned by the gateway when unset",
							},
							&cli.StringFlag{
								Name:  "description",
								Usage: "room description",
							},
							&cli.IntFlag{
								Name:  "publishers",
								Usage: "maximum number of concurrent publishers",
								Value: 6,
							},
							&cli.StringFlag{
								Name:  "secret",
								Usage: "secret required to edit or destroy the room",
							},
						},
					},
					{
						Name:   "destroy",
						Usage:  "destroys a room",
						Action: destroyRoom,
						Flags: []cli.Flag{
							roomFlag,
							&cli.StringFlag{
								Name:  "secret",
								Usage: "room secret",
							},
						},
					},
					{
						Name:   "exists",
						Usage:  "checks whether a room exists",
						Action: roomExists,
						Flags:  []cli.Flag{roomFlag},
					},
					{
						Name:   "participants",
						Usage:  "lists the participants of a room",
						Action: listParticipants,
						Flags:  []cli.Flag{roomFlag},
					},
				},
			},
			{
				Name:   "publish",
				Usage:  "joins a room as publisher and streams media until interrupted",
				Action: publish,
				Flags: []cli.Flag{
					roomFlag,
					&cli.StringFlag{
						Name:  "display",
						Usage: "display name",
						Value: "janus-cli",
					},
					&cli.StringFlag{
						Name:  "audio",
						Usage: "ogg file to stream, silence when unset",
					},
					&cli.StringFlag{
						Name:  "video",
						Usage: "ivf file to stream",
					},
					&cli.BoolFlag{
						Name:  "simulcast",
						Usage: "publish video in simulcast layers",
					},
				},
			},
			{
				Name:   "echo",
				Usage:  "runs a media round trip through the echo test plugin",
				Action: echo,
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  "duration",
						Usage: "how long to keep media flowing",
						Value: defaultEchoDuration,
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func getConfig(c *cli.Context) (*config.Config, error) {
	confString, err := config.GetConfigString(c.String("config"), c.String("config-body"))
	if err != nil {
		return nil, err
	}

	conf, err := config.NewConfig(confString, !c.Bool("disable-strict-config"), c, baseFlags)
	if err != nil {
		return nil, err
	}
	config.InitLoggerFromConfig(conf)

	if err = conf.Validate(); err != nil {
		return nil, err
	}
	logger.Debugw("loaded config", "url", conf.Gateway.URL, "development", conf.Development)
	return conf, nil
}
