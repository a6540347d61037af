package clicommand

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"

	"github.com/kvenv/kvenv/env"
	"github.com/kvenv/kvenv/internal/actions"
	"github.com/kvenv/kvenv/internal/keyvault"
	"github.com/kvenv/kvenv/internal/publish"
	"github.com/kvenv/kvenv/internal/secrets"
	"github.com/kvenv/kvenv/internal/tracing"
	"github.com/kvenv/kvenv/logger"
	"github.com/kvenv/kvenv/version"
	"github.com/urfave/cli"
)

const exportDescription = `Usage:

    kvenv [export] --keyvault <name> --secrets <name,...> --access-token <token> [options...]

Description:

Fetches the current value of every named secret from an Azure Key Vault, in
parallel, and publishes them to the GitHub Actions job that is running kvenv:

  - each secret becomes an environment variable for the following steps. The
    variable name is the secret name in upper case, with ′-′ replaced by ′_′.
  - all of them are written as one JSON object to the step output ′json′.
  - every value is masked in the job log.

Names starting with ′GITHUB_′ are reserved by the runner. Those secrets are
skipped with a warning, but are still part of the JSON output.

The access token must already be valid for the vault, for example one printed
by ′az account get-access-token --resource https://vault.azure.net′.

Example:

    $ kvenv --keyvault my-vault --secrets db-pass,tls-cert \
        --access-token "$(az account get-access-token --resource https://vault.azure.net --query accessToken -o tsv)"`

type ExportConfig struct {
	GlobalConfig

	KeyVault       string   `cli:"keyvault" validate:"required"`
	Secrets        []string `cli:"secrets" normalize:"list" validate:"required"`
	AccessToken    string   `cli:"access-token" validate:"required"`
	VaultDNSSuffix string   `cli:"vault-dns-suffix"`
	MaxConcurrency int      `cli:"max-concurrency"`
	GitHubEnv      string   `cli:"github-env" normalize:"filepath" validate:"required"`
	GitHubOutput   string   `cli:"github-output" normalize:"filepath" validate:"required"`
	OutputName     string   `cli:"output-name"`
	EchoOutput     bool     `cli:"echo-output"`
}

// ExportFlags are accepted both by the export command and by kvenv itself.
func ExportFlags() []cli.Flag {
	return slices.Concat(globalFlags(), []cli.Flag{
		cli.StringFlag{
			Name:   "keyvault",
			Usage:  "The name of the Azure Key Vault to read secrets from",
			EnvVar: "KVENV_KEYVAULT",
		},
		cli.StringSliceFlag{
			Name:   "secrets",
			Usage:  "Comma separated names of the secrets to fetch. Can be given more than once",
			EnvVar: "KVENV_SECRETS",
		},
		cli.StringFlag{
			Name:   "access-token",
			Usage:  "A bearer token that is valid for the vault",
			EnvVar: "KVENV_ACCESS_TOKEN",
		},
		cli.StringFlag{
			Name:   "vault-dns-suffix",
			Value:  keyvault.DefaultDNSSuffix,
			Usage:  "The Key Vault DNS suffix of the Azure cloud, e.g. ′vault.azure.cn′",
			EnvVar: "KVENV_VAULT_DNS_SUFFIX",
		},
		cli.IntFlag{
			Name:   "max-concurrency",
			Value:  0,
			Usage:  "The most secrets to fetch at the same time. 0 fetches every secret at once",
			EnvVar: "KVENV_MAX_CONCURRENCY",
		},
		cli.StringFlag{
			Name:   "github-env",
			Usage:  "The env file to append environment variables to",
			EnvVar: "GITHUB_ENV",
		},
		cli.StringFlag{
			Name:   "github-output",
			Usage:  "The step output file to append the JSON output to",
			EnvVar: "GITHUB_OUTPUT",
		},
		cli.StringFlag{
			Name:   "output-name",
			Value:  publish.DefaultOutputName,
			Usage:  "The name of the step output that holds the JSON object",
			EnvVar: "KVENV_OUTPUT_NAME",
		},
		cli.BoolTFlag{
			Name:   "echo-output",
			Usage:  "Print the step output file after publishing, with secret values redacted",
			EnvVar: "KVENV_ECHO_OUTPUT",
		},
	})
}

// deps are the parts of an export that talk to the outside world.
type deps struct {
	stdout      io.Writer
	environ     func() []string
	configPaths func() []string
	newLogger   func(cfg any) (logger.Logger, error)
	newClient   func(vault, token string, opts keyvault.Options) (secrets.Client, error)
}

func defaultDeps() *deps {
	return &deps{
		stdout:      os.Stdout,
		environ:     os.Environ,
		configPaths: DefaultConfigFilePaths,
		newLogger:   CreateLogger,
		newClient: func(vault, token string, opts keyvault.Options) (secrets.Client, error) {
			return keyvault.NewClient(vault, token, opts)
		},
	}
}

var ExportCommand = cli.Command{
	Name:        "export",
	Usage:       "Fetch secrets from Azure Key Vault and publish them to the GitHub Actions job",
	Description: exportDescription,
	Flags:       ExportFlags(),
	Action:      ExportAction,
}

// ExportAction is the action of both the export command and the root of the
// app.
func ExportAction(c *cli.Context) error {
	return newExportAction(defaultDeps())(c)
}

func newExportAction(d *deps) cli.ActionFunc {
	return func(c *cli.Context) error {
		cfg := ExportConfig{}
		l, done, err := setupLoggerAndConfig(c, d, &cfg)
		if err != nil {
			return err
		}
		defer done()

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		return export(ctx, l, d, cfg)
	}
}

func export(ctx context.Context, l logger.Logger, d *deps, cfg ExportConfig) error {
	environ := env.FromSlice(d.environ())

	ctx, stopTracing, err := tracing.Start(ctx, l, tracing.Config{
		Backend:      cfg.TracingBackend,
		ServiceName:  cfg.TracingServiceName,
		RootSpanName: "kvenv.export",
		Env:          environ,
	})
	if err != nil {
		return NewExitError(ExitCodeConfig, err)
	}
	defer stopTracing()

	commands := actions.New(d.stdout)

	// The token is as sensitive as the secrets it unlocks.
	commands.Mask(cfg.AccessToken)

	l.Debug("kvenv %s", version.UserAgent())
	l.Notice("keyvault: %s", cfg.KeyVault)
	l.Notice("secrets: %s", strings.Join(cfg.Secrets, ","))

	client, err := d.newClient(cfg.KeyVault, cfg.AccessToken, keyvault.Options{
		DNSSuffix: cfg.VaultDNSSuffix,
	})
	if err != nil {
		return NewExitError(ExitCodeConfig, err)
	}

	results, err := secrets.FetchSecrets(ctx, l, client, cfg.Secrets, cfg.MaxConcurrency)
	if err != nil {
		return fmt.Errorf("fetching secrets from %s: %w", cfg.KeyVault, err)
	}

	mapping := secrets.FormatEnvVars(results)
	if names := distinct(cfg.Secrets); mapping.Length() < names {
		l.Warn("%d secret name(s) map to an env var name that is already taken; the last one listed wins", names-mapping.Length())
	}

	publishConf := publish.Config{
		EnvFile:    cfg.GitHubEnv,
		OutputFile: cfg.GitHubOutput,
		OutputName: cfg.OutputName,
		Masker:     commands,
		Warner:     commands,
	}
	if cfg.EchoOutput {
		publishConf.Echo = d.stdout
	}

	publisher, err := publish.New(l, publishConf)
	if err != nil {
		return NewExitError(ExitCodeConfig, err)
	}

	report, err := publisher.Publish(ctx, mapping)
	if err != nil {
		return fmt.Errorf("publishing secrets: %w", err)
	}

	l.Info("Published %d env var(s), skipped %d, output %q", len(report.Written), len(report.Skipped), publishConf.OutputName)
	return nil
}

func distinct(names []string) int {
	seen := make(map[string]struct{}, len(names))
	for _, n := range names {
		seen[n] = struct{}{}
	}
	return len(seen)
}
