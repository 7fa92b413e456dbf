package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/colonyops/waggle/internal/commands"
	"github.com/colonyops/waggle/internal/core/config"
	"github.com/colonyops/waggle/internal/core/tracker"
	"github.com/colonyops/waggle/internal/data/mapstore"
	"github.com/colonyops/waggle/internal/waggle"
	"github.com/colonyops/waggle/pkg/executil"
	"github.com/colonyops/waggle/pkg/logutils"
)

var (
	// Build information. Populated at build-time via -ldflags flag.
	// When installed via `go install module@version`, init() populates
	// these from runtime/debug.BuildInfo instead.
	version = "dev"
	commit  = "HEAD"
	date    = "now"
)

func build() string {
	v, c, d := version, commit, date

	// When installed via `go install module@version`, ldflags aren't set
	// so version remains "dev". Fall back to runtime/debug.BuildInfo which
	// Go populates automatically with the module version and VCS metadata.
	if v == "dev" {
		if info, ok := debug.ReadBuildInfo(); ok {
			if mv := info.Main.Version; mv != "" && mv != "(devel)" {
				v = mv
			}
			for _, s := range info.Settings {
				switch s.Key {
				case "vcs.revision":
					c = s.Value
				case "vcs.time":
					d = s.Value
				}
			}
		}
	}

	short := c
	if len(c) > 7 {
		short = c[:7]
	}

	return fmt.Sprintf("%s (%s) %s", v, short, d)
}

func main() {
	ctx := context.Background()

	var logCloser func()

	flags := &commands.Flags{}
	waggleApp := &waggle.App{}

	app := &cli.Command{
		Name:      "waggle",
		Usage:     "Keep a session's todo list and the bd issue tracker in sync",
		UsageText: "waggle [global options] command [command options]",
		Description: `Waggle reconciles an agent session's ephemeral todo list against the
bd issue tracker so task state survives session loss.

Run 'waggle sync' from a todo-write hook to project the current list
onto the tracker, and 'waggle restore' after a session restart to
reconstruct it.`,
		Version: build(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "log level (debug, info, warn, error, fatal, panic)",
				Sources:     cli.EnvVars("WAGGLE_LOG_LEVEL"),
				Value:       "info",
				Destination: &flags.LogLevel,
			},
			&cli.StringFlag{
				Name:        "log-file",
				Usage:       "path to log file (defaults to <data-dir>/waggle.log)",
				Sources:     cli.EnvVars("WAGGLE_LOG_FILE"),
				Destination: &flags.LogFile,
			},
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "path to config file",
				Sources:     cli.EnvVars("WAGGLE_CONFIG"),
				Value:       commands.DefaultConfigPath(),
				Destination: &flags.ConfigPath,
			},
			&cli.StringFlag{
				Name:        "data-dir",
				Usage:       "path to data directory",
				Sources:     cli.EnvVars("WAGGLE_DATA_DIR"),
				Value:       commands.DefaultDataDir(),
				Destination: &flags.DataDir,
			},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			// Always log to a file; stdout is reserved for command JSON
			// output and hooks may capture it.
			logFile := flags.LogFile
			if logFile == "" {
				logFile = filepath.Join(flags.DataDir, "waggle.log")
			}

			logger, closer, err := logutils.New(flags.LogLevel, logFile)
			if err != nil {
				return ctx, fmt.Errorf("setup logger: %w", err)
			}
			log.Logger = logger
			logCloser = closer

			cfg, err := config.Load(flags.ConfigPath, flags.DataDir)
			if err != nil {
				return ctx, fmt.Errorf("load config: %w", err)
			}
			flags.Config = &cfg

			store := mapstore.NewFileStore(cfg.MappingPath(), log.Logger)
			client := tracker.NewBDClient(cfg.Tracker.Bin, &executil.RealExecutor{}, log.Logger)

			waggleApp.Store = store
			waggleApp.Sync = waggle.NewService(store, client, cfg.Tracker.DefaultPriority, log.Logger)

			return ctx, nil
		},
	}

	app = commands.NewSyncCmd(flags, waggleApp).Register(app)
	app = commands.NewRestoreCmd(flags, waggleApp).Register(app)
	app = commands.NewStatusCmd(flags, waggleApp).Register(app)

	err := app.Run(ctx, os.Args)
	if logCloser != nil {
		logCloser()
	}
	if err != nil {
		log.Error().Err(err).Msg("command failed")
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
