// Package cli implements the clickpoints command-line interface.
package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/fabrylab/clickpoints/internal/logging"
	"github.com/fabrylab/clickpoints/internal/paths"
	"github.com/fabrylab/clickpoints/pkg/types"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// errUsage marks errors caused by the command line itself.
var errUsage = errors.New("usage")

// userErrors are failures the user can fix by changing the invocation or data.
var userErrors = []error{
	errUsage,
	paths.ErrNoDatabase,
	os.ErrNotExist,
	types.ErrNotFound,
	types.ErrDoesNotExist,
	types.ErrReadOnly,
	types.ErrNotProjectFile,
	types.ErrInvalidData,
	types.ErrInvalidFilter,
	types.ErrUnknownOption,
	types.ErrInvalidOptionValue,
	types.ErrIntegrityConflict,
}

// rootFlags holds global flag values accessible to all subcommands.
type rootFlags struct {
	configDir string
	logLevel  string
	jsonMode  bool
}

// app is the state shared by the subcommands of one invocation.
type app struct {
	flags     rootFlags
	configDir string
	cfg       *viper.Viper
	log       *slog.Logger
	closeLog  func() error
}

// NewRootCmd creates the top-level "clickpoints" command with global flags
// and all subcommands registered.
func NewRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "clickpoints",
		Short: "Inspect and maintain ClickPoints project files",
		Long: "clickpoints creates, upgrades and queries ClickPoints project files (.cdb)\n" +
			"and mirrors their annotations into a shared MySQL database.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd.ErrOrStderr())
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.closeLog != nil {
				return a.closeLog()
			}
			return nil
		},
	}
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return fmt.Errorf("%w: %v", errUsage, err)
	})

	root.PersistentFlags().StringVar(&a.flags.configDir, "config-dir", "", "configuration directory (env "+paths.EnvConfigDir+")")
	root.PersistentFlags().StringVar(&a.flags.logLevel, "log-level", "", "log level: debug, info, warn or error")
	root.PersistentFlags().BoolVar(&a.flags.jsonMode, "json", false, "output in JSON format")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newInitCmd(a))
	root.AddCommand(newCreateCmd(a))
	root.AddCommand(newMigrateCmd(a))
	root.AddCommand(newInfoCmd(a))
	root.AddCommand(newImagesCmd(a))
	root.AddCommand(newMarkersCmd(a))
	root.AddCommand(newTracksCmd(a))
	root.AddCommand(newOptionCmd(a))
	root.AddCommand(newMirrorCmd(a))

	return root
}

// Execute runs the root command and exits with the appropriate code.
func Execute() {
	os.Exit(run(NewRootCmd(), os.Args[1:], os.Stderr))
}

func run(root *cobra.Command, args []string, stderr io.Writer) int {
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(stderr, "clickpoints:", err)
		return exitCode(err)
	}
	return exitSuccess
}

func exitCode(err error) int {
	for _, target := range userErrors {
		if errors.Is(err, target) {
			return exitUserError
		}
	}
	return exitSysError
}

// setup resolves the configuration directory, loads config.yaml and builds the logger.
func (a *app) setup(stderr io.Writer) error {
	dir, err := paths.ResolveConfigDir(a.flags.configDir)
	if err != nil {
		return fmt.Errorf("resolve config dir: %w", err)
	}
	a.configDir = dir

	if a.cfg, err = loadConfig(dir); err != nil {
		return err
	}

	level := a.flags.logLevel
	if level == "" {
		level = a.cfg.GetString(cfgKeyLogLevel)
	}
	a.log, a.closeLog, err = logging.New(logging.Config{
		Level:  level,
		Format: a.cfg.GetString(cfgKeyLogFormat),
		File:   a.cfg.GetString(cfgKeyLogFile),
		Output: stderr,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	return nil
}

// usageArgs accepts between min and max positional arguments.
func usageArgs(min, max int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) < min || len(args) > max {
			if min == max {
				return fmt.Errorf("%w: %s takes %d argument(s), got %d", errUsage, cmd.Name(), min, len(args))
			}
			return fmt.Errorf("%w: %s takes %d to %d arguments, got %d", errUsage, cmd.Name(), min, max, len(args))
		}
		return nil
	}
}
