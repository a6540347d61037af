package clicommand

import (
	"fmt"

	"github.com/kvenv/kvenv/cliconfig"
	"github.com/kvenv/kvenv/logger"
	"github.com/urfave/cli"
)

// setupLoggerAndConfig loads cfg from the CLI context and config files,
// creates the logger it describes, and applies the global flags. The
// returned function must be called when the command finishes.
func setupLoggerAndConfig[T any](c *cli.Context, d *deps, cfg *T) (logger.Logger, func(), error) {
	loader := cliconfig.Loader{
		CLI:                    c,
		Config:                 cfg,
		DefaultConfigFilePaths: d.configPaths(),
	}
	warnings, err := loader.Load()
	if err != nil {
		return nil, nil, NewExitError(ExitCodeConfig, err)
	}

	l, err := d.newLogger(cfg)
	if err != nil {
		return nil, nil, NewExitError(ExitCodeConfig, err)
	}

	// Now that we have a logger, log out the warnings that loading config generated
	for _, warning := range warnings {
		l.Warn("%s", warning)
	}
	if loader.File != nil {
		l.Debug("Loaded config file %s", loader.File.Path)
	}

	done, err := HandleGlobalFlags(l, cfg)
	if err != nil {
		return nil, nil, NewExitError(ExitCodeConfig, fmt.Errorf("handling global flags: %w", err))
	}

	return l, done, nil
}
