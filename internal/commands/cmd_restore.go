package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/waggle/internal/waggle"
	"github.com/colonyops/waggle/pkg/iojson"
)

// RestoreCmd implements the waggle restore command.
type RestoreCmd struct {
	flags *Flags
	app   *waggle.App

	session string
}

// NewRestoreCmd creates a new restore command.
func NewRestoreCmd(flags *Flags, app *waggle.App) *RestoreCmd {
	return &RestoreCmd{flags: flags, app: app}
}

// Register adds the restore command to the application.
func (cmd *RestoreCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "restore",
		Usage:     "Reconstruct a session's todo list from tracker state",
		UsageText: "waggle restore --session <id>",
		Description: `Reads back every issue correlated to the session and prints the
reconstructed task list as a JSON array on stdout.

A session that was never synced yields an empty array. Issues deleted
outside waggle are skipped. Ordering reflects first-creation order,
not the authoring order of the lost list.

Examples:
  waggle restore --session sess-1`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "session",
				Aliases:     []string{"s"},
				Usage:       "session id to restore",
				Required:    true,
				Destination: &cmd.session,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *RestoreCmd) run(ctx context.Context, _ *cli.Command) error {
	ctx, cancel := context.WithTimeout(ctx, cmd.flags.Config.Sync.Timeout.Std())
	defer cancel()

	tasks, err := cmd.app.Sync.SyncBackward(ctx, cmd.session)
	if err != nil {
		return fmt.Errorf("restore session %s: %w", cmd.session, err)
	}

	return iojson.Write(tasks)
}
