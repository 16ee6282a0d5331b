package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"quick-tools-overlay/src/config"
	"quick-tools-overlay/src/display"
	"quick-tools-overlay/src/host"
	"quick-tools-overlay/src/logutil"
	"quick-tools-overlay/src/prefs"
	"quick-tools-overlay/src/singleinstance"
)

type cliOptions struct {
	verbose  bool
	storeDir string
	envFile  string
}

// env is the lazily loaded state shared by every subcommand.
type env struct {
	opts  *cliOptions
	cfg   *config.Config
	store *prefs.Store
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	return runWithArgs(os.Args, os.Stdout)
}

func runWithArgs(args []string, out io.Writer) error {
	if len(args) == 0 {
		args = []string{"quicktools"}
	}

	opts := &cliOptions{}
	cmd := newRootCmd(opts)
	cmd.SetOut(out)
	cmd.SetArgs(args[1:])
	return cmd.Execute()
}

func newRootCmd(opts *cliOptions) *cobra.Command {
	e := &env{opts: opts}
	cmd := &cobra.Command{
		Use:           "quicktools",
		Short:         "Floating quick-tools bubble and its host commands",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Verbose output to stderr")
	cmd.PersistentFlags().StringVar(&opts.storeDir, "store-dir", "", "Directory holding persisted overlay state")
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", "", "Path to a .env file (highest precedence)")

	cmd.AddCommand(
		newOverlayCmd(e),
		newStartCmd(e),
		newStopCmd(e),
		newStatusCmd(e),
		newToolsCmd(e),
		newExportCmd(e),
		newEventsCmd(e),
		newPermissionCmd(e),
		newTrayCmd(e),
	)
	return cmd
}

// load reads configuration, configures logging and opens the store.
func (e *env) load() error {
	if e.cfg != nil {
		return nil
	}
	cfg, err := config.LoadWithOptions(config.LoadOptions{
		StoreDirOverride: e.opts.storeDir,
		EnvPathOverride:  e.opts.envFile,
	})
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Configure logging BEFORE any other operations.
	if e.opts.verbose {
		logutil.SetupStderr()
		fmt.Fprintf(os.Stderr, "[verbose] Store: %s\n", cfg.StoreDir)
	} else {
		logutil.Setup(cfg.EnableFileLogging, cfg.StoreDir)
	}

	store, err := prefs.Open(cfg.StoreDir)
	if err != nil {
		return err
	}
	e.cfg = cfg
	e.store = store
	return nil
}

func (e *env) host() *host.Host {
	return host.New(host.Options{
		Store:      e.store,
		Bridge:     singleinstance.NewClient(),
		Launcher:   host.SelfLauncher{},
		Opener:     host.SystemOpener{},
		GalleryDir: e.cfg.GalleryDir,
		Displays:   display.Active,
	})
}

// readPayload returns args[0], or stdin when it is "-".
func readPayload(cmd *cobra.Command, args []string) (string, error) {
	if args[0] != "-" {
		return args[0], nil
	}
	b, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("failed to read from stdin: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}
