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

package config

import (
	"fmt"
	"net/url"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/pion/webrtc/v3"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	clientlogger "github.com/livekit/janus-client/pkg/logger"
	"github.com/livekit/janus-client/pkg/simulcast"
)

const (
	generatedCLIFlagUsage = "generated"
	envPrefix             = "JANUS_"
)

var (
	ErrMissingURL       = errors.New("gateway url must be provided")
	ErrInvalidURLScheme = errors.New("gateway url must use ws or wss")
	ErrTooManyRids      = errors.New("at most 3 simulcast rids can be set")

	durationType = reflect.TypeOf(time.Duration(0))
)

type Config struct {
	Gateway        GatewayConfig       `yaml:"gateway,omitempty"`
	RTC            RTCConfig           `yaml:"rtc,omitempty"`
	Simulcast      SimulcastConfig     `yaml:"simulcast,omitempty"`
	Stats          StatsConfig         `yaml:"stats,omitempty"`
	PrometheusPort uint32              `yaml:"prometheus_port,omitempty"`
	Logging        clientlogger.Config `yaml:"logging,omitempty" config:"allowempty"`
	Development    bool                `yaml:"development,omitempty"`
}

type GatewayConfig struct {
	URL       string `yaml:"url,omitempty"`
	Token     string `yaml:"token,omitempty"`
	APISecret string `yaml:"api_secret,omitempty"`
	// KeepaliveInterval must stay below the gateway's session timeout.
	KeepaliveInterval time.Duration `yaml:"keepalive_interval,omitempty"`
	ConnectTimeout    time.Duration `yaml:"connect_timeout,omitempty"`
	PingInterval      time.Duration `yaml:"ping_interval,omitempty"`
	// Claim reclaims the previous session after a reconnect instead of
	// creating a new one.
	Claim bool `yaml:"claim,omitempty"`
}

type RTCConfig struct {
	ICEServers       []ICEServerConfig `yaml:"ice_servers,omitempty"`
	Trickle          *bool             `yaml:"trickle,omitempty"`
	ICEGatherTimeout time.Duration     `yaml:"ice_gather_timeout,omitempty"`
}

type ICEServerConfig struct {
	URLs       []string `yaml:"urls,omitempty"`
	Username   string   `yaml:"username,omitempty"`
	Credential string   `yaml:"credential,omitempty"`
}

type SimulcastConfig struct {
	// Rids name the high, medium and low layers, in that order.
	Rids   []string `yaml:"rids,omitempty"`
	Layers int      `yaml:"layers,omitempty"`
}

type StatsConfig struct {
	Enabled  bool          `yaml:"enabled,omitempty"`
	Interval time.Duration `yaml:"interval,omitempty"`
}

var DefaultConfig = Config{
	Gateway: GatewayConfig{
		KeepaliveInterval: 5 * time.Second,
		ConnectTimeout:    10 * time.Second,
		PingInterval:      30 * time.Second,
		Claim:             true,
	},
	RTC: RTCConfig{
		ICEServers: []ICEServerConfig{
			{URLs: []string{"stun:stun.l.google.com:19302"}},
		},
		ICEGatherTimeout: 10 * time.Second,
	},
	Simulcast: SimulcastConfig{
		Rids:   simulcast.DefaultRids,
		Layers: simulcast.DefaultLayers,
	},
	Stats: StatsConfig{
		Interval: 5 * time.Second,
	},
	Logging: clientlogger.Config{
		PionLevel: "error",
	},
}

func NewConfig(confString string, strictMode bool, c *cli.Context, baseFlags []cli.Flag) (*Config, error) {
	// start with defaults
	marshalled, err := yaml.Marshal(&DefaultConfig)
	if err != nil {
		return nil, err
	}

	var conf Config
	if err = yaml.Unmarshal(marshalled, &conf); err != nil {
		return nil, err
	}

	if confString != "" {
		decoder := yaml.NewDecoder(strings.NewReader(confString))
		decoder.KnownFields(strictMode)
		if err := decoder.Decode(&conf); err != nil {
			return nil, fmt.Errorf("could not parse config: %v", err)
		}
	}

	if c != nil {
		if err := conf.updateFromCLI(c, baseFlags); err != nil {
			return nil, err
		}
	}

	if conf.Logging.Level == "" && conf.Development {
		conf.Logging.Level = "debug"
	}

	return &conf, nil
}

// GetConfigString prefers an inline body over the file.
func GetConfigString(configFile string, inConfigBody string) (string, error) {
	if inConfigBody != "" || configFile == "" {
		return inConfigBody, nil
	}

	file, err := homedir.Expand(os.ExpandEnv(configFile))
	if err != nil {
		return "", err
	}
	outConfigBody, err := os.ReadFile(file)
	if err != nil {
		return "", err
	}

	return string(outConfigBody), nil
}

// Validate checks what a session needs to connect.
func (conf *Config) Validate() error {
	if conf.Gateway.URL == "" {
		return ErrMissingURL
	}
	u, err := url.Parse(conf.Gateway.URL)
	if err != nil {
		return errors.Wrap(err, "invalid gateway url")
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return ErrInvalidURLScheme
	}
	if len(conf.Simulcast.Rids) > 3 {
		return ErrTooManyRids
	}
	if conf.Simulcast.Layers < 1 || conf.Simulcast.Layers > simulcast.MaxLayers {
		return simulcast.ErrInvalidLayers
	}
	return nil
}

// IsTrickle reports whether candidates are sent as they are gathered.
func (r RTCConfig) IsTrickle() bool {
	return r.Trickle == nil || *r.Trickle
}

func (r RTCConfig) WebRTCICEServers() []webrtc.ICEServer {
	servers := make([]webrtc.ICEServer, 0, len(r.ICEServers))
	for _, s := range r.ICEServers {
		server := webrtc.ICEServer{URLs: s.URLs}
		if s.Username != "" {
			server.Username = s.Username
			server.Credential = s.Credential
			server.CredentialType = webrtc.ICECredentialTypePassword
		}
		servers = append(servers, server)
	}
	return servers
}

type configNode struct {
	TypeNode  reflect.Value
	TagPrefix string
}

func (conf *Config) ToCLIFlagNames(existingFlags []cli.Flag) map[string]reflect.Value {
	existingFlagNames := map[string]bool{}
	for _, flag := range existingFlags {
		for _, flagName := range flag.Names() {
			existingFlagNames[flagName] = true
		}
	}

	flagNames := map[string]reflect.Value{}
	var currNode configNode
	nodes := []configNode{{reflect.ValueOf(conf).Elem(), ""}}
	for len(nodes) > 0 {
		currNode, nodes = nodes[0], nodes[1:]
		for i := 0; i < currNode.TypeNode.NumField(); i++ {
			// inspect yaml tag from struct field to get path
			field := currNode.TypeNode.Type().Field(i)
			yamlTagArray := strings.SplitN(field.Tag.Get("yaml"), ",", 2)
			yamlTag := yamlTagArray[0]
			isInline := len(yamlTagArray) > 1 && yamlTagArray[1] == "inline"
			if (yamlTag == "" && (!isInline || currNode.TagPrefix == "")) || yamlTag == "-" {
				continue
			}
			yamlPath := yamlTag
			if currNode.TagPrefix != "" {
				if isInline {
					yamlPath = currNode.TagPrefix
				} else {
					yamlPath = fmt.Sprintf("%s.%s", currNode.TagPrefix, yamlTag)
				}
			}
			if existingFlagNames[yamlPath] {
				continue
			}

			value := currNode.TypeNode.Field(i)
			if value.Kind() == reflect.Struct {
				nodes = append(nodes, configNode{value, yamlPath})
			} else {
				flagNames[yamlPath] = value
			}
		}
	}

	return flagNames
}

// GenerateCLIFlags exposes every config path as a flag with a JANUS_ env
// var, so gateway.url is also JANUS_GATEWAY_URL.
func GenerateCLIFlags(existingFlags []cli.Flag, hidden bool) ([]cli.Flag, error) {
	blankConfig := &Config{}
	flags := make([]cli.Flag, 0)
	for name, value := range blankConfig.ToCLIFlagNames(existingFlags) {
		kind := value.Kind()
		if kind == reflect.Ptr {
			kind = value.Type().Elem().Kind()
		}

		var flag cli.Flag
		envVar := envPrefix + strings.ToUpper(strings.ReplaceAll(name, ".", "_"))

		switch {
		case value.Type() == durationType:
			flag = &cli.DurationFlag{
				Name:    name,
				EnvVars: []string{envVar},
				Usage:   generatedCLIFlagUsage,
				Hidden:  hidden,
			}
		case kind == reflect.Bool:
			flag = &cli.BoolFlag{
				Name:    name,
				EnvVars: []string{envVar},
				Usage:   generatedCLIFlagUsage,
				Hidden:  hidden,
			}
		case kind == reflect.String:
			flag = &cli.StringFlag{
				Name:    name,
				EnvVars: []string{envVar},
				Usage:   generatedCLIFlagUsage,
				Hidden:  hidden,
			}
		case kind == reflect.Int, kind == reflect.Int32, kind == reflect.Int64:
			flag = &cli.Int64Flag{
				Name:    name,
				EnvVars: []string{envVar},
				Usage:   generatedCLIFlagUsage,
				Hidden:  hidden,
			}
		case kind == reflect.Uint8, kind == reflect.Uint16, kind == reflect.Uint32, kind == reflect.Uint64:
			flag = &cli.Uint64Flag{
				Name:    name,
				EnvVars: []string{envVar},
				Usage:   generatedCLIFlagUsage,
				Hidden:  hidden,
			}
		case kind == reflect.Float32, kind == reflect.Float64:
			flag = &cli.Float64Flag{
				Name:    name,
				EnvVars: []string{envVar},
				Usage:   generatedCLIFlagUsage,
				Hidden:  hidden,
			}
		case kind == reflect.Slice && value.Type().Elem().Kind() == reflect.String:
			flag = &cli.StringSliceFlag{
				Name:    name,
				EnvVars: []string{envVar},
				Usage:   generatedCLIFlagUsage,
				Hidden:  hidden,
			}
		case kind == reflect.Slice, kind == reflect.Map:
			// only settable from yaml
			continue
		default:
			return flags, fmt.Errorf("cli flag generation unsupported for config type: %s is a %s", name, kind.String())
		}

		flags = append(flags, flag)
	}

	return flags, nil
}

func (conf *Config) updateFromCLI(c *cli.Context, baseFlags []cli.Flag) error {
	generatedFlagNames := conf.ToCLIFlagNames(baseFlags)
	for _, flag := range c.App.Flags {
		flagName := flag.Names()[0]

		// c.IsSet is always false in unit tests
		if !c.IsSet(flagName) && c.App.Name != "test" {
			continue
		}

		configValue, ok := generatedFlagNames[flagName]
		if !ok {
			continue
		}

		if configValue.Type() == durationType {
			configValue.SetInt(int64(c.Duration(flagName)))
			continue
		}

		kind := configValue.Kind()
		if kind == reflect.Ptr {
			// instantiate value to be set
			configValue.Set(reflect.New(configValue.Type().Elem()))

			kind = configValue.Type().Elem().Kind()
			configValue = configValue.Elem()
		}

		switch kind {
		case reflect.Bool:
			configValue.SetBool(c.Bool(flagName))
		case reflect.String:
			configValue.SetString(c.String(flagName))
		case reflect.Int, reflect.Int32, reflect.Int64:
			configValue.SetInt(c.Int64(flagName))
		case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			configValue.SetUint(c.Uint64(flagName))
		case reflect.Float32, reflect.Float64:
			configValue.SetFloat(c.Float64(flagName))
		case reflect.Slice:
			if values := c.StringSlice(flagName); len(values) > 0 {
				configValue.Set(reflect.ValueOf(values))
			}
		default:
			return fmt.Errorf("unsupported generated cli flag type for config: %s is a %s", flagName, kind.String())
		}
	}

	if c.IsSet("dev") {
		conf.Development = c.Bool("dev")
	}
	if c.IsSet("url") {
		conf.Gateway.URL = c.String("url")
	}
	if c.IsSet("token") {
		conf.Gateway.Token = c.String("token")
	}
	if c.IsSet("api-secret") {
		conf.Gateway.APISecret = c.String("api-secret")
	}
	return nil
}

func InitLoggerFromConfig(conf *Config) {
	if conf.Development && conf.Logging.Level == "" {
		clientlogger.InitDevelopment("debug")
		return
	}
	clientlogger.InitFromConfig(&conf.Logging)
}
