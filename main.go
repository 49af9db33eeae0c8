package main

import (
	"log"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/ha-desktop/agent/cmd"
)

var version = "0.3.0"

func main() {
	app := &cli.App{
		Name:    "ha-desktop-agent",
		Usage:   "pushes desktop sensor data to a home assistant hub",
		Version: version,
		Action:  cmd.AgentCommand,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "settings-path",
				Usage: "path to the persisted settings file",
			},
			&cli.StringFlag{
				Name:  "listen-addr",
				Usage: "address for the local control API",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "zap log level",
			},
			&cli.StringFlag{
				Name:  "webhook-check-schedule",
				Usage: "cron schedule for the webhook liveness probe, empty to disable",
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
