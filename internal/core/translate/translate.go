// Package translate maps between the todo-list and tracker vocabularies.
//
// All functions are pure and total: unknown inputs fall back to a
// documented default rather than failing. The mappings are lossy; the
// tracker has five priority levels against the task list's three, and
// no native cancelled status.
package translate

import (
	"strings"

	"github.com/colonyops/waggle/internal/core/task"
	"github.com/colonyops/waggle/internal/core/tracker"
)

// CancelledMarker is the substring searched for in a closed issue's
// notes to recover the cancelled-vs-completed distinction. This is a
// free-text convention shared with the close reasons below; an issue
// whose notes happen to contain the word is misclassified. Fragile,
// but it is the only back channel the tracker offers.
const CancelledMarker = "Cancelled"

// Close reasons written to the tracker. ReasonCancelled must contain
// CancelledMarker for backward sync to recover the distinction.
const (
	ReasonCompleted = "Completed"
	ReasonCancelled = "Cancelled by user"
	ReasonRemoved   = "Removed from todo list"
)

// Priority maps task priority to the tracker's 0-4 scale.
// Unknown values fall back to 2 (medium).
func Priority(p task.Priority) int {
	switch p {
	case task.PriorityHigh:
		return 1
	case task.PriorityMedium:
		return 2
	case task.PriorityLow:
		return 3
	default:
		return 2
	}
}

// PriorityFromTracker maps the tracker's 0-4 scale back onto three
// task levels. Unknown values fall back to medium.
func PriorityFromTracker(p int) task.Priority {
	switch p {
	case 0, 1:
		return task.PriorityHigh
	case 2:
		return task.PriorityMedium
	case 3, 4:
		return task.PriorityLow
	default:
		return task.PriorityMedium
	}
}

// Status maps task status to the tracker status an issue should hold.
// Both terminal task states collapse to closed; the distinction
// survives only in the close reason.
func Status(s task.Status) tracker.Status {
	switch s {
	case task.StatusInProgress:
		return tracker.StatusInProgress
	case task.StatusCompleted, task.StatusCancelled:
		return tracker.StatusClosed
	default:
		return tracker.StatusOpen
	}
}

// StatusFromIssue reconstructs a task status from an issue's status and
// notes. Closed issues are cancelled only when the notes carry
// CancelledMarker; otherwise they read back as completed.
func StatusFromIssue(s tracker.Status, notes string) task.Status {
	switch s {
	case tracker.StatusClosed:
		if strings.Contains(notes, CancelledMarker) {
			return task.StatusCancelled
		}
		return task.StatusCompleted
	case tracker.StatusInProgress:
		return task.StatusInProgress
	default:
		return task.StatusPending
	}
}

// CloseReason returns the reason string recorded when a terminal task
// closes its issue.
func CloseReason(s task.Status) string {
	if s == task.StatusCancelled {
		return ReasonCancelled
	}
	return ReasonCompleted
}
