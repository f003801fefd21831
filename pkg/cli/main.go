// Package cli implements the docquery command line: data commands over the
// configured document store plus config, health and version commands.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/nimburion/docquery/pkg/config"
	"github.com/nimburion/docquery/pkg/observability/logger"
	"github.com/nimburion/docquery/pkg/repository/document"
	"github.com/nimburion/docquery/pkg/version"
	"github.com/spf13/cobra"
)

// Options configures the root command.
type Options struct {
	Name        string
	Description string
	ConfigPath  string
	EnvPrefix   string

	// Optional: override how the store is opened (tests, custom adapters).
	OpenBackend BackendOpener
}

// app carries the root flag values shared by every subcommand.
type app struct {
	opts           Options
	cfgPath        string
	secretFilePath string
	output         string
}

// NewCommand creates the docquery root command.
func NewCommand(opts Options) *cobra.Command {
	if opts.Name == "" {
		opts.Name = "docquery"
	}
	if opts.EnvPrefix == "" {
		opts.EnvPrefix = config.DefaultEnvPrefix
	}
	a := &app{opts: opts}

	rootCmd := &cobra.Command{
		Use:           opts.Name,
		Short:         opts.Description,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch a.output {
			case outputJSON, outputYAML:
				return nil
			default:
				return fmt.Errorf("unknown output format %q (supported: json, yaml)", a.output)
			}
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&a.cfgPath, "config-file", "c", opts.ConfigPath, "config file path")
	pf.StringVar(&a.secretFilePath, "secret-file", "", "path to secrets file (sets "+opts.EnvPrefix+"_SECRETS_FILE)")
	pf.StringVarP(&a.output, "output", "o", outputJSON, "output format: json or yaml")
	pf.String("db-type", "", "document store: mongodb, dynamodb or memory")
	pf.String("db-url", "", "MongoDB connection URL")
	pf.String("db-name", "", "MongoDB database name")
	pf.String("db-region", "", "DynamoDB region")
	pf.String("log-level", "", "log level: debug, info, warn or error")
	pf.String("log-format", "", "log format: json or text")

	rootCmd.AddCommand(
		newQueryCommand(a),
		newInsertCommand(a),
		newUpdateCommand(a),
		newRemoveCommand(a),
		newHealthcheckCommand(a),
		newConfigCommand(a),
		newVersionCommand(a),
	)
	return rootCmd
}

// loadConfig resolves configuration for cmd, honouring --secret-file.
func (a *app) loadConfig(cmd *cobra.Command) (*config.Config, logger.Logger, error) {
	if err := applySecretFileFlag(a.opts.EnvPrefix, a.secretFilePath); err != nil {
		return nil, nil, err
	}
	cfg, log, err := loadConfigAndLogger(a.cfgPath, a.opts.EnvPrefix, cmd.Flags())
	if err != nil {
		return nil, nil, err
	}
	return cfg, log.With("command", cmd.Name()), nil
}

// withRuntime opens the configured store for the duration of fn.
func (a *app) withRuntime(cmd *cobra.Command, fn func(rt *runtime) error) error {
	cfg, log, err := a.loadConfig(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	rt, err := openRuntime(ctx, cfg, log, a.opts.OpenBackend)
	if err != nil {
		syncLogger(log)
		return err
	}

	runErr := fn(rt)
	if runErr != nil {
		log.Error("command failed", "error", runErr)
	}
	closeErr := rt.Close(context.WithoutCancel(ctx))
	if runErr != nil {
		return runErr
	}
	return closeErr
}

func newVersionCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			info := version.Current(a.opts.Name)
			if cmd.Flags().Changed("output") {
				return writeOutput(cmd.OutOrStdout(), a.output, info)
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Service:    %s\n", info.Service)
			fmt.Fprintf(w, "Version:    %s\n", info.Version)
			fmt.Fprintf(w, "Commit:     %s\n", info.Commit)
			fmt.Fprintf(w, "Build Time: %s\n", info.BuildTime)
			fmt.Fprintf(w, "Go:         %s\n", info.GoVersion)
			return nil
		},
	}
}

func applySecretFileFlag(envPrefix, secretFilePath string) error {
	if secretFilePath == "" {
		return nil
	}
	info, err := os.Stat(secretFilePath)
	if err != nil {
		return fmt.Errorf("secret file %s is not accessible: %w", secretFilePath, err)
	}
	if info.IsDir() {
		return fmt.Errorf("secret file %s must not be a directory", secretFilePath)
	}
	return os.Setenv(strings.ToUpper(strings.TrimSpace(envPrefix))+"_SECRETS_FILE", filepath.Clean(secretFilePath))
}

// Execute runs cmd with a context cancelled on SIGINT or SIGTERM and exits
// non-zero on failure.
func Execute(cmd *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(reportError(cmd.ErrOrStderr(), err))
	}
}

// exitTempFail is EX_TEMPFAIL from sysexits.h.
const exitTempFail = 75

// reportError prints err and returns the process exit code. Throttled store
// requests exit with exitTempFail so scripts can retry them.
func reportError(w io.Writer, err error) int {
	fmt.Fprintln(w, "Error:", err)
	if errors.Is(err, document.ErrThrottled) {
		fmt.Fprintln(w, "The document store is over capacity; retry later.")
		return exitTempFail
	}
	return 1
}
