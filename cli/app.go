// Package cli contains the uavnav command line.
package cli

import (
	"io"

	"github.com/urfave/cli/v2"
)

const (
	configFlag   = "config"
	debugFlag    = "debug"
	logFileFlag  = "log-file"
	logLevelFlag = "log-level"
	goalFlag     = "goal"
	agentFlag    = "agent"
	alsoFlag     = "also"
)

var app = &cli.App{
	Name:            "uavnav",
	Usage:           "plan and fly collision free UAV paths",
	HideHelpCommand: true,
	Flags: []cli.Flag{
		&cli.PathFlag{
			Name:    configFlag,
			Aliases: []string{"c"},
			Usage:   "load configuration from `FILE`",
		},
		&cli.BoolFlag{
			Name:    debugFlag,
			Aliases: []string{"vvv"},
			Usage:   "log planning and configuration details regardless of --log-level",
		},
		&cli.StringFlag{
			Name:  logLevelFlag,
			Value: "warn",
			Usage: "minimum `LEVEL` logged: debug, info, warn or error",
		},
		&cli.PathFlag{
			Name:  logFileFlag,
			Usage: "also write logs to `FILE`, rotated once it grows past 100MB",
		},
	},
	Commands: []*cli.Command{
		{
			Name:      "simulate",
			Usage:     "fly simulated agents to a goal and print the dispatched waypoints",
			UsageText: "uavnav [--config FILE] simulate --goal x,y [--agent name]",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     goalFlag,
					Usage:    "goal position as `x,y`",
					Required: true,
				},
				&cli.StringFlag{
					Name:  agentFlag,
					Usage: "agent to fly, defaults to the configured self agent",
				},
				&cli.StringSliceFlag{
					Name:  alsoFlag,
					Usage: "additional simulated agents that hold position",
				},
			},
			Action: SimulateAction,
		},
		{
			Name:      "check-config",
			Usage:     "validate a configuration file",
			ArgsUsage: "[file]",
			Action:    CheckConfigAction,
		},
		{
			Name:   "version",
			Usage:  "print version info for this program",
			Action: VersionAction,
		},
	},
}

// NewApp returns a new app with the CLI API, Writer set to out, and ErrWriter
// set to errOut.
func NewApp(out, errOut io.Writer) *cli.App {
	app.Writer = out
	app.ErrWriter = errOut
	return app
}
