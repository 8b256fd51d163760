package bridge

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
	"github.com/urfave/cli/v2/altsrc"
	"github.com/williamlsh/logging"

	"github.com/SB-IM/zircon/internal/bridge"
	"github.com/SB-IM/zircon/internal/bridge/cfg"
	"github.com/SB-IM/zircon/pkg/mqttclient"
)

const configFlagName = "config"

// Command returns a bridge command.
func Command() *cli.Command {
	ctx := context.Background()

	var (
		logger zerolog.Logger

		mc mqtt.Client

		mqttConfigOptions   mqttclient.ConfigOptions
		topicConfigOptions  cfg.TopicConfigOptions
		serverConfigOptions cfg.ServerConfigOptions
	)

	flags := func() (flags []cli.Flag) {
		for _, v := range [][]cli.Flag{
			loadConfigFlag(),
			mqttFlags(&mqttConfigOptions),
			topicFlags(&topicConfigOptions),
			serverFlags(&serverConfigOptions),
		} {
			flags = append(flags, v...)
		}
		return
	}()

	return &cli.Command{
		Name:  "bridge",
		Usage: "bridge serves scripting-side WebRTC calls over MQTT and WebSocket",
		Flags: flags,
		Before: func(c *cli.Context) error {
			if err := altsrc.InitInputSourceWithContext(
				flags,
				altsrc.NewTomlSourceFromFlagFunc(configFlagName),
			)(c); err != nil {
				return err
			}

			// Set up logger.
			debug := c.Bool("debug")
			logging.Debug(debug)
			logger = log.With().Str("service", "zircon").Str("command", "bridge").Logger()
			ctx = logger.WithContext(ctx)

			// Initializes MQTT client.
			mc = mqttclient.NewClient(ctx, mqttConfigOptions)
			if err := mqttclient.CheckConnectivity(mc, 3*time.Second); err != nil {
				return err
			}
			ctx = mqttclient.WithContext(ctx, mc)

			return nil
		},
		Action: func(c *cli.Context) error {
			svc, err := bridge.New(ctx, cfg.ConfigOptions{
				TopicConfigOptions:  topicConfigOptions,
				ServerConfigOptions: serverConfigOptions,
			})
			if err != nil {
				return err
			}

			runCtx, cancel := context.WithCancel(ctx)
			sigs := make(chan os.Signal, 1)
			signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				<-sigs
				cancel()
			}()

			return svc.Run(runCtx)
		},
		After: func(c *cli.Context) error {
			logger.Info().Msg("exits")
			return nil
		},
	}
}

// loadConfigFlag sets a config file path for app command.
// Note: you can't set any other flags' `Required` value to `true`,
// As it conflicts with this flag. You can set only either this flag or specifically the other flags but not both.
func loadConfigFlag() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        configFlagName,
			Aliases:     []string{"c"},
			Usage:       "Config file path",
			Value:       "config/config.toml",
			DefaultText: "config/config.toml",
		},
	}
}

func mqttFlags(options *mqttclient.ConfigOptions) []cli.Flag {
	return []cli.Flag{
		altsrc.NewStringFlag(&cli.StringFlag{
			Name:        "mqtt.server",
			Usage:       "MQTT server address",
			Value:       "tcp://mosquitto:1883",
			DefaultText: "tcp://mosquitto:1883",
			Destination: &options.Server,
		}),
		altsrc.NewStringFlag(&cli.StringFlag{
			Name:        "mqtt.clientID",
			Usage:       "MQTT client id",
			Value:       "mqtt_bridge",
			DefaultText: "mqtt_bridge",
			Destination: &options.ClientID,
		}),
		altsrc.NewStringFlag(&cli.StringFlag{
			Name:        "mqtt.username",
			Usage:       "MQTT broker username",
			Value:       "",
			Destination: &options.Username,
		}),
		altsrc.NewStringFlag(&cli.StringFlag{
			Name:        "mqtt.password",
			Usage:       "MQTT broker password",
			Value:       "",
			Destination: &options.Password,
		}),
	}
}

func topicFlags(options *cfg.TopicConfigOptions) []cli.Flag {
	return []cli.Flag{
		altsrc.NewStringFlag(&cli.StringFlag{
			Name:        "topic.rpc",
			Usage:       "MQTT topic carrying call frames from the scripting side",
			Value:       "/bridge/rpc/request",
			DefaultText: "/bridge/rpc/request",
			Destination: &options.RPCTopic,
		}),
		altsrc.NewStringFlag(&cli.StringFlag{
			Name:        "topic.response",
			Usage:       "MQTT topic carrying response frames back to the scripting side",
			Value:       "/bridge/rpc/response",
			DefaultText: "/bridge/rpc/response",
			Destination: &options.ResponseTopic,
		}),
		altsrc.NewStringFlag(&cli.StringFlag{
			Name:        "topic.event",
			Usage:       "MQTT topic carrying peer connection events",
			Value:       "/bridge/event",
			DefaultText: "/bridge/event",
			Destination: &options.EventTopic,
		}),
		altsrc.NewUintFlag(&cli.UintFlag{
			Name:        "topic.qos",
			Usage:       "MQTT qos for call and event frames",
			Value:       0,
			DefaultText: "0",
			Destination: &options.Qos,
		}),
		altsrc.NewBoolFlag(&cli.BoolFlag{
			Name:        "topic.retained",
			Usage:       "MQTT retainsion for call and event frames",
			Value:       false,
			DefaultText: "false",
			Destination: &options.Retained,
		}),
	}
}

func serverFlags(options *cfg.ServerConfigOptions) []cli.Flag {
	return []cli.Flag{
		altsrc.NewStringFlag(&cli.StringFlag{
			Name:        "server.host",
			Usage:       "Host of WebSocket server",
			Value:       "0.0.0.0",
			DefaultText: "0.0.0.0",
			Destination: &options.Host,
		}),
		altsrc.NewIntFlag(&cli.IntFlag{
			Name:        "server.port",
			Usage:       "Port of WebSocket server",
			Value:       8082,
			DefaultText: "8082",
			Destination: &options.Port,
		}),
		altsrc.NewStringFlag(&cli.StringFlag{
			Name:        "server.path",
			Usage:       "Path of WebSocket endpoint",
			Value:       "/v1/bridge/ws",
			DefaultText: "/v1/bridge/ws",
			Destination: &options.Path,
		}),
	}
}
