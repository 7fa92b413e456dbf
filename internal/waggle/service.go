// Package waggle implements the reconciliation engine that keeps a
// session's todo list and the bd issue tracker convergent.
//
// The mapping document is the system of record for task-to-issue
// correlation; the tracker is the system of record for issue content.
// Forward sync projects the todo list onto the tracker, backward sync
// reconstructs a todo list from tracker state through the recorded
// correlations.
package waggle

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/colonyops/waggle/internal/core/task"
	"github.com/colonyops/waggle/internal/core/tracker"
	"github.com/colonyops/waggle/internal/core/translate"
	"github.com/colonyops/waggle/internal/data/mapstore"
)

const taskRefPrefix = "Task ID: "

// Service is the reconciliation engine. Store and client are injected
// so tests can run against in-memory fakes.
type Service struct {
	store          mapstore.Store
	client         tracker.Client
	anchorPriority int
	log            zerolog.Logger
}

// NewService creates a reconciliation engine. anchorPriority is the
// tracker priority (0-4) given to session anchor issues.
func NewService(store mapstore.Store, client tracker.Client, anchorPriority int, log zerolog.Logger) *Service {
	return &Service{
		store:          store,
		client:         client,
		anchorPriority: anchorPriority,
		log:            log.With().Str("component", "engine").Logger(),
	}
}

// SyncForward projects the session's current task list onto the
// tracker: new tasks get issues under the session anchor, known tasks
// get status updates or closes, and tasks that vanished from the list
// close their issues and lose their correlation. The mapping document
// is persisted exactly once at the end, after all tracker operations
// have been attempted; a newly created anchor is additionally persisted
// at creation time.
//
// Individual update/close failures and per-task create failures are
// tolerated so one bad tracker call never blocks the rest of the sync.
// Only anchor creation and document save failures abort.
//
// Callers must not run two concurrent SyncForward calls for the same
// session: both would read the same pre-sync document and the later
// save would silently discard the earlier one's correlation updates.
func (s *Service) SyncForward(ctx context.Context, sessionID string, tasks task.List) error {
	if sessionID == "" {
		return fmt.Errorf("session id is required")
	}
	if err := tasks.Validate(); err != nil {
		return fmt.Errorf("invalid task list: %w", err)
	}

	doc := s.store.Load()
	anchorID, err := s.resolveAnchor(ctx, sessionID, doc)
	if err != nil {
		return err
	}

	corr := doc.Correlations(sessionID)

	seen := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		seen[t.ID] = true

		if issueID, ok := corr[t.ID]; ok {
			if err := s.judge(s.pushState(ctx, t, issueID)); err != nil {
				return err
			}
			continue
		}

		issueID, res := s.createIssue(ctx, anchorID, t)
		if err := s.judge(res); err != nil {
			return err
		}
		if res.outcome != outcomeApplied {
			continue // this task is skipped; the next sync retries it
		}
		doc.Correlate(sessionID, t.ID, issueID)

		// A task can arrive already started or already finished;
		// the fresh issue starts open, so push the real state.
		if t.Status != task.StatusPending {
			if err := s.judge(s.pushState(ctx, t, issueID)); err != nil {
				return err
			}
		}
	}

	for taskID, issueID := range corr {
		if seen[taskID] {
			continue
		}
		res := s.closeIssue(ctx, issueID, translate.ReasonRemoved)
		res.taskID = taskID
		if err := s.judge(res); err != nil {
			return err
		}
		doc.Forget(sessionID, taskID)
	}

	if tasks.AllTerminal() {
		completed, cancelled := tasks.CountTerminal()
		reason := fmt.Sprintf("All tasks finished: %d completed, %d cancelled", completed, cancelled)
		if err := s.judge(s.closeIssue(ctx, anchorID, reason)); err != nil {
			return err
		}
	}

	if err := s.store.Save(doc); err != nil {
		return fmt.Errorf("save mapping document: %w", err)
	}

	s.log.Info().
		Str("session", sessionID).
		Int("tasks", len(tasks)).
		Int("correlations", len(doc.Correlations(sessionID))).
		Msg("forward sync complete")
	return nil
}

// SyncBackward reconstructs a task list from tracker state through the
// recorded correlations. A session with no prior sync yields an empty
// list. Stale correlations (issue deleted outside this system) are
// skipped without being cleaned up; this path is read-only.
//
// The result is ordered by correlated issue id, which reflects
// first-creation order, not the authoring order of any past task list.
func (s *Service) SyncBackward(ctx context.Context, sessionID string) (task.List, error) {
	doc := s.store.Load()
	if _, ok := doc.Anchor(sessionID); !ok {
		return task.List{}, nil
	}

	corr := doc.Correlations(sessionID)
	taskIDs := make([]string, 0, len(corr))
	for taskID := range corr {
		taskIDs = append(taskIDs, taskID)
	}
	sort.Slice(taskIDs, func(i, j int) bool { return corr[taskIDs[i]] < corr[taskIDs[j]] })

	tasks := make(task.List, 0, len(taskIDs))
	for _, taskID := range taskIDs {
		issueID := corr[taskID]

		issue, err := s.client.Show(ctx, issueID)
		if err != nil {
			if errors.Is(err, tracker.ErrNotFound) {
				s.log.Debug().Str("task", taskID).Str("issue", issueID).Msg("stale correlation, skipping")
			} else {
				s.log.Warn().Err(err).Str("task", taskID).Str("issue", issueID).Msg("show failed during restore, skipping")
			}
			continue
		}

		tasks = append(tasks, task.Task{
			ID:       taskID,
			Content:  issue.Title,
			Status:   translate.StatusFromIssue(issue.Status, issue.Notes),
			Priority: translate.PriorityFromTracker(issue.Priority),
		})
	}

	s.log.Info().Str("session", sessionID).Int("tasks", len(tasks)).Msg("backward sync complete")
	return tasks, nil
}

// pushState drives an issue to the tracker state a task's status
// implies: a close with reason for terminal tasks, a status update
// otherwise.
func (s *Service) pushState(ctx context.Context, t task.Task, issueID string) opResult {
	target := translate.Status(t.Status)
	if target == tracker.StatusClosed {
		res := s.closeIssue(ctx, issueID, translate.CloseReason(t.Status))
		res.taskID = t.ID
		return res
	}

	err := s.client.Update(ctx, issueID, tracker.UpdateRequest{Status: target})
	return resultFor("update", t.ID, issueID, err, outcomeTolerated)
}

// createIssue creates the tracker issue for a new task under the
// session anchor. The task id is embedded in the description as the
// only durable link back from the tracker if the mapping document is
// ever lost.
func (s *Service) createIssue(ctx context.Context, anchorID string, t task.Task) (string, opResult) {
	id, err := s.client.Create(ctx, tracker.CreateRequest{
		Title:       t.Content,
		IssueType:   taskIssueType,
		Priority:    translate.Priority(t.Priority),
		ParentID:    anchorID,
		Description: taskRefPrefix + t.ID,
	})
	return id, resultFor("create", t.ID, id, err, outcomeTolerated)
}

func (s *Service) closeIssue(ctx context.Context, issueID, reason string) opResult {
	err := s.client.Close(ctx, issueID, reason)
	return resultFor("close", "", issueID, err, outcomeTolerated)
}
