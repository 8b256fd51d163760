package main

import (
	"math/rand"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/SB-IM/zircon/cmd/bridge"
	"github.com/SB-IM/zircon/cmd/internal/build"
	"github.com/SB-IM/zircon/cmd/turn"
)

func init() {
	rand.Seed(time.Now().UTC().UnixNano())
}

func main() {
	if err := run(os.Args); err != nil {
		log.Fatal().Err(err)
	}
}

func run(args []string) error {
	app := &cli.App{
		Name:  "zircon",
		Usage: "zircon bridges scripting-side WebRTC calls to a native engine, with a companion TURN relay",
		Flags: []cli.Flag{ // Global flags.
			&cli.BoolFlag{
				Name:        "debug",
				Value:       false,
				Usage:       "enable debug mod",
				DefaultText: "false",
				EnvVars:     []string{"DEBUG"},
			},
		},
		Commands: []*cli.Command{
			bridge.Command(),
			turn.Command(),
			build.Command(),
		},
	}

	return app.Run(args)
}
