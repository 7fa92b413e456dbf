// Package tracker is a client for the external bd issue tracker.
//
// Every operation is a single CLI invocation. The client performs no
// retries; tolerate-or-abort policy belongs to the reconciliation
// engine that drives it.
package tracker

import (
	"context"
	"errors"
	"fmt"
)

// Status is the tracker's native issue status vocabulary.
type Status string

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in_progress"
	StatusClosed     Status = "closed"
)

// Issue is the tracker's view of one issue.
type Issue struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Status      Status `json:"status"`
	Priority    int    `json:"priority"`
	IssueType   string `json:"issue_type"`
	Notes       string `json:"notes,omitempty"`
}

// CreateRequest holds the fields for a new issue. Priority is the
// tracker's 0-4 scale, 0 highest.
type CreateRequest struct {
	Title       string
	IssueType   string
	Priority    int
	ParentID    string
	Description string
}

// UpdateRequest is a partial update. Zero-valued fields are left
// unchanged on the issue.
type UpdateRequest struct {
	Status Status
	Notes  string
}

// Client is the operation set the reconciliation engine needs from the
// tracker.
type Client interface {
	// Create creates an issue and returns its tracker-assigned id.
	Create(ctx context.Context, req CreateRequest) (string, error)
	// Show fetches an issue. Returns ErrNotFound if the issue no
	// longer exists; callers treat that as a stale correlation, not
	// a failure.
	Show(ctx context.Context, id string) (Issue, error)
	// Update applies a partial update to an issue.
	Update(ctx context.Context, id string, req UpdateRequest) error
	// Close transitions an issue to closed with a reason. Closing an
	// already-closed issue is not fatal from the caller's view.
	Close(ctx context.Context, id, reason string) error
}

// ErrNotFound signals that an issue does not exist in the tracker.
var ErrNotFound = errors.New("issue not found")

// CallError wraps a failed tracker invocation with the operation and
// issue it targeted.
type CallError struct {
	Op      string
	IssueID string
	Err     error
}

func (e *CallError) Error() string {
	if e.IssueID == "" {
		return fmt.Sprintf("tracker %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("tracker %s %s: %v", e.Op, e.IssueID, e.Err)
}

func (e *CallError) Unwrap() error { return e.Err }
