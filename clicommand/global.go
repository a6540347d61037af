package clicommand

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/kvenv/kvenv/internal/osutil"
	"github.com/kvenv/kvenv/internal/tracing"
	"github.com/kvenv/kvenv/logger"
	"github.com/oleiade/reflections"
	"github.com/urfave/cli"
)

var ConfigFlag = cli.StringFlag{
	Name:   "config",
	Usage:  "Path to a key=value configuration file",
	EnvVar: "KVENV_CONFIG",
}

var DebugFlag = cli.BoolFlag{
	Name:   "debug",
	Usage:  "Enable debug mode. Synonym for ′--log-level debug′. Takes precedence over ′--log-level′",
	EnvVar: "KVENV_DEBUG",
}

var LogLevelFlag = cli.StringFlag{
	Name:   "log-level",
	Value:  "notice",
	Usage:  "Set the log level for kvenv. Possible values are: \"debug\", \"info\", \"notice\", \"warn\", \"error\", \"fatal\"",
	EnvVar: "KVENV_LOG_LEVEL",
}

var LogFormatFlag = cli.StringFlag{
	Name:   "log-format",
	Value:  "text",
	Usage:  "The format to use for the logger output, either ′text′ or ′json′",
	EnvVar: "KVENV_LOG_FORMAT",
}

var NoColorFlag = cli.BoolFlag{
	Name:   "no-color",
	Usage:  "Don't show colors in logging",
	EnvVar: "KVENV_NO_COLOR",
}

var ProfileFlag = cli.StringFlag{
	Name:   "profile",
	Usage:  "Enable a profiling mode, either cpu, memory, mutex, block, thread or trace",
	EnvVar: "KVENV_PROFILE",
}

var TracingBackendFlag = cli.StringFlag{
	Name:   "tracing-backend",
	Usage:  "Enable tracing of the run with the given backend. The only supported backend is ′opentelemetry′",
	EnvVar: "KVENV_TRACING_BACKEND",
}

var TracingServiceNameFlag = cli.StringFlag{
	Name:   "tracing-service-name",
	Value:  tracing.DefaultServiceName,
	Usage:  "Service name to use when reporting traces",
	EnvVar: "KVENV_TRACING_SERVICE_NAME",
}

// GlobalConfig holds the options every kvenv command accepts.
type GlobalConfig struct {
	Config             string `cli:"config" normalize:"filepath"`
	Debug              bool   `cli:"debug"`
	LogLevel           string `cli:"log-level"`
	LogFormat          string `cli:"log-format"`
	NoColor            bool   `cli:"no-color"`
	Profile            string `cli:"profile"`
	TracingBackend     string `cli:"tracing-backend"`
	TracingServiceName string `cli:"tracing-service-name"`
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		ConfigFlag,
		DebugFlag,
		LogLevelFlag,
		LogFormatFlag,
		NoColorFlag,
		ProfileFlag,
		TracingBackendFlag,
		TracingServiceNameFlag,
	}
}

// DefaultConfigFilePaths returns the config files that are read when
// --config is not given, in order of preference.
func DefaultConfigFilePaths() []string {
	var paths []string

	if dir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, "kvenv", "kvenv.cfg"))
	}
	if home, err := osutil.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".kvenv.cfg"))
	}

	return paths
}

// CreateLogger builds the logger described by the global options in cfg.
// Logs are written to stderr; stdout is reserved for workflow commands.
func CreateLogger(cfg any) (logger.Logger, error) {
	format, _ := reflections.GetField(cfg, "LogFormat")
	noColor, _ := reflections.GetField(cfg, "NoColor")

	var printer logger.Printer
	switch format {
	case "", "text":
		p := logger.NewTextPrinter(os.Stderr)
		if noColor == true {
			p.Colors = false
		}
		printer = p
	case "json":
		printer = logger.NewJSONPrinter(os.Stderr)
	default:
		return nil, fmt.Errorf("invalid log format %q, must be ′text′ or ′json′", format)
	}

	l := logger.NewConsoleLogger(printer, os.Exit)

	if err := setLogLevel(l, cfg); err != nil {
		return nil, err
	}

	return l, nil
}

func setLogLevel(l logger.Logger, cfg any) error {
	// --debug takes precedence over --log-level
	if debug, err := reflections.GetField(cfg, "Debug"); err == nil && debug == true {
		l.SetLevel(logger.DEBUG)
		return nil
	}

	logLevel, err := reflections.GetField(cfg, "LogLevel")
	if err != nil || logLevel == "" {
		return nil
	}

	level, err := logger.LevelFromString(logLevel.(string))
	if err != nil {
		return err
	}
	l.SetLevel(level)
	return nil
}

// HandleGlobalFlags applies the global options that have side effects, and
// returns a function that undoes them.
func HandleGlobalFlags(l logger.Logger, cfg any) (func(), error) {
	profileMode, err := reflections.GetField(cfg, "Profile")
	if err != nil || profileMode == "" {
		return func() {}, nil
	}

	return Profile(l, profileMode.(string))
}
