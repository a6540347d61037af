package clicommand

import "github.com/urfave/cli"

var KvenvCommands = []cli.Command{
	ExportCommand,
}
