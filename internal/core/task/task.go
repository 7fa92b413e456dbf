// Package task defines the session todo-list domain model.
package task

import "fmt"

// Status represents the lifecycle state of a todo-list task.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// Terminal reports whether the status is an end state.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

func (s Status) valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Priority represents task urgency as supplied by the session.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

func (p Priority) valid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// Task is a single unit of work owned by an interactive session.
// Tasks are ephemeral; the tracker correlation is what survives
// session loss.
type Task struct {
	ID       string   `json:"id"`
	Content  string   `json:"content"`
	Status   Status   `json:"status"`
	Priority Priority `json:"priority"`
}

// Validate checks required fields and enum values.
func (t Task) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("task id is required")
	}
	if t.Content == "" {
		return fmt.Errorf("task %s: content is required", t.ID)
	}
	if !t.Status.valid() {
		return fmt.Errorf("task %s: invalid status %q", t.ID, t.Status)
	}
	if !t.Priority.valid() {
		return fmt.Errorf("task %s: invalid priority %q", t.ID, t.Priority)
	}
	return nil
}

// List is a session's complete todo list at one point in time.
type List []Task

// Validate checks every task and rejects duplicate ids.
func (l List) Validate() error {
	seen := make(map[string]bool, len(l))
	for _, t := range l {
		if err := t.Validate(); err != nil {
			return err
		}
		if seen[t.ID] {
			return fmt.Errorf("duplicate task id %q", t.ID)
		}
		seen[t.ID] = true
	}
	return nil
}

// AllTerminal reports whether the list is non-empty and every task has
// reached an end state.
func (l List) AllTerminal() bool {
	if len(l) == 0 {
		return false
	}
	for _, t := range l {
		if !t.Status.Terminal() {
			return false
		}
	}
	return true
}

// CountTerminal returns how many tasks are completed and how many are
// cancelled.
func (l List) CountTerminal() (completed, cancelled int) {
	for _, t := range l {
		switch t.Status {
		case StatusCompleted:
			completed++
		case StatusCancelled:
			cancelled++
		}
	}
	return completed, cancelled
}
