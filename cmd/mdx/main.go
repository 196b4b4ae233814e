// Command mdx runs searches, clustering and catalog seeding against a
// modeldex configuration without the HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/modeldex/internal/app"
	"github.com/kailas-cloud/modeldex/internal/config"
	"github.com/kailas-cloud/modeldex/internal/domain"
	logpkg "github.com/kailas-cloud/modeldex/internal/logger"
	"github.com/kailas-cloud/modeldex/internal/version"
)

// Exit codes.
const (
	ExitOK          = 0
	ExitError       = 1
	ExitConfigError = 2
)

// errConfig marks failures to load configuration. Rejected options
// (domain.ErrInvalidConfig) share its exit code.
var errConfig = errors.New("configuration error")

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	configPath string
	env        string
	dotenv     string
	jsonOutput bool
	logLevel   string
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	root := newRootCmd(stdout)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		if errors.Is(err, errConfig) || errors.Is(err, domain.ErrInvalidConfig) {
			return ExitConfigError
		}
		return ExitError
	}
	return ExitOK
}

func newRootCmd(stdout io.Writer) *cobra.Command {
	g := &globalOptions{}

	root := &cobra.Command{
		Use:   "mdx",
		Short: "Discover AI models from the command line",
		Long: `mdx searches the model catalog, clusters the results and seeds
catalog files into the configured vector store.

Configuration is read from config/<env>.yaml unless --config is given.
Variables from a .env file are loaded first and may be referenced in the
YAML as ${VAR}.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&g.configPath, "config", "", "path to a config file (overrides --env)")
	pf.StringVar(&g.env, "env", "", "config environment name (default: $ENV or local)")
	pf.StringVar(&g.dotenv, "dotenv", ".env", "dotenv file loaded before the config")
	pf.BoolVar(&g.jsonOutput, "json", false, "print JSON instead of human-readable output")
	pf.StringVar(&g.logLevel, "log-level", "", "log level override: debug, info, warn, error")

	root.AddCommand(
		newSearchCmd(g, stdout),
		newProcessCmd(g, stdout),
		newClusterCmd(g, stdout),
		newSeedCmd(g, stdout),
	)
	return root
}

// loadConfig resolves the configuration from the persistent flags.
func (g *globalOptions) loadConfig() (config.Config, error) {
	if g.dotenv != "" {
		// A missing dotenv file is not an error.
		_ = godotenv.Load(g.dotenv)
	}

	var (
		cfg config.Config
		err error
	)
	if g.configPath != "" {
		cfg, err = config.LoadFile(g.configPath)
	} else {
		env := g.env
		if env == "" {
			env = config.GetEnv()
		}
		cfg, err = config.Load(env)
	}
	if err != nil {
		return config.Config{}, errors.Join(errConfig, err)
	}
	return cfg, nil
}

// open loads the configuration and wires the services. The returned
// cleanup closes the app and flushes the logger.
func (g *globalOptions) open(ctx context.Context) (*app.App, func(), error) {
	cfg, err := g.loadConfig()
	if err != nil {
		return nil, nil, err
	}

	level := g.logLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	logger, err := logpkg.NewLogger("cli", level)
	if err != nil {
		return nil, nil, errors.Join(errConfig, err)
	}

	a, err := app.New(ctx, &cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, nil, err
	}
	logger.Debug("Services ready",
		zap.String("db_driver", cfg.Database.Driver),
		zap.String("cache_driver", cfg.Cache.Driver),
	)

	cleanup := func() {
		a.Close()
		_ = logger.Sync()
	}
	return a, cleanup, nil
}
