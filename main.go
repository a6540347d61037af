// kvenv fetches secrets from Azure Key Vault and publishes them to a GitHub
// Actions job as environment variables, a JSON step output, and log masks.
package main

import (
	"fmt"
	"os"

	"github.com/kvenv/kvenv/clicommand"
	"github.com/kvenv/kvenv/version"
	"github.com/urfave/cli"
)

const appHelpTemplate = `Usage:

  {{.Name}} [options...]
  {{.Name}} <command> [options...]

Fetches secrets from Azure Key Vault and publishes them to the current
GitHub Actions job. Running {{.Name}} without a command is the same as
running ′{{.Name}} export′.

Available commands are:

  {{range .VisibleCommands}}{{join .Names ", "}}{{ "\t" }}{{.Usage}}
  {{end}}
Use "{{.Name}} <command> --help" for more information about a command.
`

func main() {
	cli.AppHelpTemplate = appHelpTemplate

	app := cli.NewApp()
	app.Name = "kvenv"
	app.Usage = "Fetch Azure Key Vault secrets into GitHub Actions"
	app.Version = version.FullVersion()
	app.ErrWriter = os.Stderr
	app.Flags = clicommand.ExportFlags()
	app.Action = clicommand.ExportAction
	app.Commands = clicommand.KvenvCommands

	// When no sub command is used
	app.CommandNotFound = func(c *cli.Context, command string) {
		cli.ShowAppHelp(c)
		fmt.Fprintf(app.ErrWriter, "\n%s: unknown command %q\n", app.Name, command)
		os.Exit(1)
	}

	os.Exit(clicommand.PrintMessageAndReturnExitCode(app.Run(os.Args)))
}
