package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/waggle/internal/waggle"
	"github.com/colonyops/waggle/pkg/iojson"
)

// StatusCmd implements the waggle status command.
type StatusCmd struct {
	flags *Flags
	app   *waggle.App

	session string
}

// NewStatusCmd creates a new status command.
func NewStatusCmd(flags *Flags, app *waggle.App) *StatusCmd {
	return &StatusCmd{flags: flags, app: app}
}

// sessionStatus summarizes one session's correlation state.
type sessionStatus struct {
	Anchor string `json:"anchor"`
	Tasks  int    `json:"tasks"`
}

// statusReport is the JSON document printed by waggle status.
type statusReport struct {
	LastSync string                   `json:"last_sync,omitempty"`
	Sessions map[string]sessionStatus `json:"sessions"`
}

// Register adds the status command to the application.
func (cmd *StatusCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "status",
		Usage:     "Show the recorded session/task correlations",
		UsageText: "waggle status [--session <id>]",
		Description: `Prints the mapping document summary as JSON: known sessions, their
anchor issues, correlation counts, and the last successful sync time.
Read-only; no tracker calls are made.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "session",
				Aliases:     []string{"s"},
				Usage:       "limit output to one session",
				Destination: &cmd.session,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *StatusCmd) run(_ context.Context, _ *cli.Command) error {
	doc := cmd.app.Store.Load()

	report := statusReport{Sessions: map[string]sessionStatus{}}
	if doc.LastSync > 0 {
		report.LastSync = time.UnixMilli(doc.LastSync).UTC().Format(time.RFC3339)
	}

	for sessionID, anchor := range doc.Sessions {
		if cmd.session != "" && sessionID != cmd.session {
			continue
		}
		report.Sessions[sessionID] = sessionStatus{
			Anchor: anchor,
			Tasks:  len(doc.Correlations(sessionID)),
		}
	}

	if cmd.session != "" && len(report.Sessions) == 0 {
		return fmt.Errorf("no sync state for session %s", cmd.session)
	}

	return iojson.Write(report)
}
