package cli

import (
	"context"
	"fmt"
	"io"
	"runtime/debug"
	"strconv"
	"strings"

	"github.com/golang/geo/r2"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	"gopkg.in/natefinch/lumberjack.v2"

	"go.viam.com/uavnav/config"
	"go.viam.com/uavnav/logging"
	"go.viam.com/uavnav/services/navigation"
	"go.viam.com/uavnav/sim"
)

// printf prints a message to w followed by a newline.
func printf(w io.Writer, format string, a ...interface{}) {
	//nolint:errcheck
	fmt.Fprintf(w, format+"\n", a...)
}

// warningf prints a warning to w.
func warningf(w io.Writer, format string, a ...interface{}) {
	printf(w, "Warning: "+format, a...)
}

// logFiles are the rotating log files a command writes to. They are closed when the command ends.
type logFiles []*lumberjack.Logger

// Close closes every file.
func (files logFiles) Close() error {
	var err error
	for _, f := range files {
		err = multierr.Append(err, f.Close())
	}
	return err
}

// newLogger builds the command's logger at the --log-level level, writing to ErrWriter and, with
// --log-file, to a rotating file. The returned files must be closed once the command is done.
func newLogger(c *cli.Context) (logging.Logger, logFiles, error) {
	level, err := logging.LevelFromString(c.String(logLevelFlag))
	if err != nil {
		return nil, nil, err
	}
	logger := logging.NewBlankLogger("uavnav")
	logger.SetLevel(level)
	logger.AddAppender(logging.NewWriterAppender(c.App.ErrWriter))

	var files logFiles
	if path := c.Path(logFileFlag); path != "" {
		f := &lumberjack.Logger{
			Filename:   path,
			MaxSize:    100,
			MaxBackups: 2,
			Compress:   true,
		}
		files = append(files, f)
		logger.AddAppender(logging.NewWriterAppender(f))
	}
	return logger, files, nil
}

// commandContext returns the command's context, put into debug mode by --debug so that request
// scoped debug logs are written whatever the log level.
func commandContext(c *cli.Context) context.Context {
	if c.Bool(debugFlag) {
		return logging.EnableDebugMode(c.Context, c.Command.Name)
	}
	return c.Context
}

// loadConfig reads the config at path, or returns the defaults when path is empty.
func loadConfig(ctx context.Context, path string, logger logging.Logger) (*config.Config, error) {
	if path == "" {
		cfg := config.Default()
		return &cfg, nil
	}
	return config.Read(ctx, path, logger)
}

// parseGoal parses "x,y".
func parseGoal(s string) (r2.Point, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return r2.Point{}, errors.Errorf("goal %q does not follow the format x,y", s)
	}
	var coords [2]float64
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return r2.Point{}, errors.Wrapf(err, "goal %q", s)
		}
		coords[i] = v
	}
	return r2.Point{X: coords[0], Y: coords[1]}, nil
}

// waypointTable renders waypoints with one row per dispatched waypoint.
func waypointTable(wps []navigation.WaypointCommand) string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"#", "X", "Y", "Z"})
	for i, wp := range wps {
		t.AppendRow(table.Row{
			fmt.Sprintf("%d", i),
			fmt.Sprintf("%.3f", wp.X),
			fmt.Sprintf("%.3f", wp.Y),
			fmt.Sprintf("%.3f", wp.Z),
		})
	}
	return t.Render()
}

// CheckConfigAction validates the config given as an argument or through --config.
func CheckConfigAction(c *cli.Context) (err error) {
	path := c.Args().First()
	if path == "" {
		path = c.Path(configFlag)
	}
	if path == "" {
		return errors.New("no config file given")
	}
	logger, files, err := newLogger(c)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, files.Close())
	}()
	if _, err := config.Read(commandContext(c), path, logger); err != nil {
		return errors.Wrapf(err, "config %s is invalid", path)
	}
	printf(c.App.Writer, "%s is valid", path)
	return nil
}

// SimulateAction flies simulated agents to the requested goal.
func SimulateAction(c *cli.Context) (err error) {
	logger, files, err := newLogger(c)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, files.Close())
	}()
	ctx := commandContext(c)
	cfg, err := loadConfig(ctx, c.Path(configFlag), logger)
	if err != nil {
		return err
	}
	goal, err := parseGoal(c.String(goalFlag))
	if err != nil {
		return err
	}
	agent := c.String(agentFlag)
	if agent == "" {
		agent = cfg.Agents.Self
	}

	world, err := sim.NewWorld(cfg, append([]string{agent}, c.StringSlice(alsoFlag)...), nil, logger)
	if err != nil {
		return err
	}
	res, runErr := world.Run(ctx, map[string]r2.Point{agent: goal})
	if res == nil {
		return runErr
	}
	printf(c.App.Writer, "%s", waypointTable(res.Waypoints[agent]))
	if ps, err := res.PathStats(agent); err == nil {
		printf(c.App.Writer, "%d segments, length %.3f, mean %.3f, longest %.3f",
			ps.Segments, ps.Length, ps.MeanSegment, ps.MaxSegment)
	}
	final := res.Final[agent].Position
	if !res.Arrived[agent] {
		warningf(c.App.ErrWriter, "%s stopped at (%.3f, %.3f, %.3f) without arriving", agent, final.X, final.Y, final.Z)
		return runErr
	}
	printf(c.App.Writer, "%s arrived at (%.3f, %.3f, %.3f)", agent, final.X, final.Y, final.Z)
	return nil
}

// VersionAction prints the version of the uavnav binary.
func VersionAction(c *cli.Context) error {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return errors.New("error reading build info")
	}
	if c.Bool(debugFlag) {
		printf(c.App.Writer, "%s", info.String())
	}
	settings := make(map[string]string, len(info.Settings))
	for _, setting := range info.Settings {
		settings[setting.Key] = setting.Value
	}
	version := "?"
	if rev, ok := settings["vcs.revision"]; ok && len(rev) >= 8 {
		version = rev[:8]
		if settings["vcs.modified"] == "true" {
			version += "+"
		}
	}
	printf(c.App.Writer, "Version %s Git=%s", info.Main.Version, version)
	return nil
}
