package tracker

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/colonyops/waggle/pkg/executil"
)

// BDClient talks to the bd CLI with --json output.
type BDClient struct {
	bin  string
	exec executil.Executor
	log  zerolog.Logger
}

// NewBDClient creates a client for the given bd binary.
func NewBDClient(bin string, exec executil.Executor, log zerolog.Logger) *BDClient {
	return &BDClient{
		bin:  bin,
		exec: exec,
		log:  log.With().Str("component", "tracker").Logger(),
	}
}

// Create creates an issue and returns its tracker-assigned id.
func (c *BDClient) Create(ctx context.Context, req CreateRequest) (string, error) {
	args := []string{
		"create", req.Title,
		"--type", req.IssueType,
		"--priority", strconv.Itoa(req.Priority),
	}
	if req.ParentID != "" {
		args = append(args, "--parent", req.ParentID)
	}
	if req.Description != "" {
		args = append(args, "--description", req.Description)
	}
	args = append(args, "--json")

	out, err := c.exec.Run(ctx, c.bin, args...)
	if err != nil {
		return "", &CallError{Op: "create", Err: err}
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(out, &created); err != nil || created.ID == "" {
		return "", &CallError{Op: "create", Err: unparsable(out, err)}
	}

	c.log.Debug().Str("issue", created.ID).Str("title", req.Title).Msg("issue created")
	return created.ID, nil
}

// Show fetches an issue by id.
func (c *BDClient) Show(ctx context.Context, id string) (Issue, error) {
	out, err := c.exec.Run(ctx, c.bin, "show", id, "--json")
	if err != nil {
		if looksNotFound(out) {
			return Issue{}, ErrNotFound
		}
		return Issue{}, &CallError{Op: "show", IssueID: id, Err: err}
	}

	var issue Issue
	if err := json.Unmarshal(out, &issue); err != nil {
		return Issue{}, &CallError{Op: "show", IssueID: id, Err: unparsable(out, err)}
	}
	if issue.ID == "" {
		return Issue{}, ErrNotFound
	}
	return issue, nil
}

// Update applies a partial update to an issue.
func (c *BDClient) Update(ctx context.Context, id string, req UpdateRequest) error {
	args := []string{"update", id}
	if req.Status != "" {
		args = append(args, "--status", string(req.Status))
	}
	if req.Notes != "" {
		args = append(args, "--notes", req.Notes)
	}
	args = append(args, "--json")

	if _, err := c.exec.Run(ctx, c.bin, args...); err != nil {
		return &CallError{Op: "update", IssueID: id, Err: err}
	}
	return nil
}

// Close transitions an issue to closed with a reason.
func (c *BDClient) Close(ctx context.Context, id, reason string) error {
	if _, err := c.exec.Run(ctx, c.bin, "close", id, "--reason", reason); err != nil {
		return &CallError{Op: "close", IssueID: id, Err: err}
	}
	return nil
}

// looksNotFound checks command output for the tracker's not-found
// message. bd exits non-zero for missing issues, so the distinction
// from a real failure only exists in the output text.
func looksNotFound(out []byte) bool {
	return strings.Contains(strings.ToLower(string(out)), "not found")
}

type parseError struct {
	out []byte
	err error
}

func (e *parseError) Error() string {
	snippet := strings.TrimSpace(string(e.out))
	if len(snippet) > 120 {
		snippet = snippet[:120]
	}
	if e.err != nil {
		return "unparsable output " + strconv.Quote(snippet) + ": " + e.err.Error()
	}
	return "unparsable output " + strconv.Quote(snippet)
}

func unparsable(out []byte, err error) error {
	return &parseError{out: out, err: err}
}
