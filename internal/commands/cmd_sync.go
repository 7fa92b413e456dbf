package commands

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/colonyops/waggle/internal/core/task"
	"github.com/colonyops/waggle/internal/waggle"
	"github.com/colonyops/waggle/pkg/iojson"
)

// SyncCmd implements the waggle sync command.
type SyncCmd struct {
	flags *Flags
	app   *waggle.App

	session string
	input   iojson.Input
}

// NewSyncCmd creates a new sync command.
func NewSyncCmd(flags *Flags, app *waggle.App) *SyncCmd {
	return &SyncCmd{flags: flags, app: app}
}

// Register adds the sync command to the application.
func (cmd *SyncCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "sync",
		Usage:     "Project a session's todo list onto the issue tracker",
		UsageText: "waggle sync --session <id> [-f tasks.json]",
		Description: `Reads a todo-list payload and reconciles the tracker against it:
new tasks get issues under the session anchor, changed tasks get
status updates or closes, and removed tasks close their issues.

The payload is either the hook envelope posted by the agent tool
({"session_id": ..., "todos": [...]}) or a bare JSON array of tasks.

Individual tracker failures are logged and tolerated; the command
fails only when nothing could proceed (no anchor, unwritable state).

Examples:
  waggle sync --session sess-1 -f tasks.json
  some-agent-hook | waggle sync`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "session",
				Aliases:     []string{"s"},
				Usage:       "session id (overrides the payload's session_id)",
				Destination: &cmd.session,
			},
			cmd.input.Flag(),
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *SyncCmd) run(ctx context.Context, _ *cli.Command) error {
	reader, err := cmd.input.Open()
	if err != nil {
		return err
	}
	defer func() { _ = reader.Close() }()

	payloadSession, tasks, err := task.DecodePayload(reader)
	if err != nil {
		return err
	}

	sessionID, err := resolveSessionID(cmd.session, payloadSession)
	if err != nil {
		return err
	}

	if cmd.flags.Config.ShouldSkip(sessionID) {
		log.Info().Str("session", sessionID).Msg("session matches sync.skip, not syncing")
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, cmd.flags.Config.Sync.Timeout.Std())
	defer cancel()

	return cmd.app.Sync.SyncForward(ctx, sessionID, tasks)
}

// resolveSessionID picks the effective session id, the --session flag
// winning over the payload's session_id.
func resolveSessionID(flagValue, payloadValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if payloadValue != "" {
		return payloadValue, nil
	}
	return "", fmt.Errorf("no session id; pass --session or use a payload with session_id")
}
