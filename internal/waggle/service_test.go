package waggle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/waggle/internal/core/task"
	"github.com/colonyops/waggle/internal/core/tracker"
	"github.com/colonyops/waggle/internal/core/translate"
	"github.com/colonyops/waggle/internal/data/mapstore"
)

// fakeTracker is an in-memory tracker.Client that mimics bd's
// observable behavior, including the close reason landing in notes.
type fakeTracker struct {
	mu     sync.Mutex
	nextID int
	issues map[string]*tracker.Issue
	parent map[string]string

	createCalls int
	updateCalls int
	closeCalls  int
	showCalls   int

	failCreateByType map[string]error
	failCreateTitles map[string]error
	failUpdate       error
	failShow         error
}

func newFakeTracker() *fakeTracker {
	return &fakeTracker{
		issues: map[string]*tracker.Issue{},
		parent: map[string]string{},
	}
}

func (f *fakeTracker) Create(_ context.Context, req tracker.CreateRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++

	if err := f.failCreateByType[req.IssueType]; err != nil {
		return "", err
	}
	if err := f.failCreateTitles[req.Title]; err != nil {
		return "", err
	}

	f.nextID++
	id := fmt.Sprintf("wag-%03d", f.nextID)
	f.issues[id] = &tracker.Issue{
		ID:          id,
		Title:       req.Title,
		Description: req.Description,
		Status:      tracker.StatusOpen,
		Priority:    req.Priority,
		IssueType:   req.IssueType,
	}
	if req.ParentID != "" {
		f.parent[id] = req.ParentID
	}
	return id, nil
}

func (f *fakeTracker) Show(_ context.Context, id string) (tracker.Issue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.showCalls++

	if f.failShow != nil {
		return tracker.Issue{}, f.failShow
	}
	issue, ok := f.issues[id]
	if !ok {
		return tracker.Issue{}, tracker.ErrNotFound
	}
	return *issue, nil
}

func (f *fakeTracker) Update(_ context.Context, id string, req tracker.UpdateRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateCalls++

	if f.failUpdate != nil {
		return f.failUpdate
	}
	issue, ok := f.issues[id]
	if !ok {
		return tracker.ErrNotFound
	}
	if req.Status != "" {
		issue.Status = req.Status
	}
	if req.Notes != "" {
		issue.Notes = req.Notes
	}
	return nil
}

func (f *fakeTracker) Close(_ context.Context, id, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeCalls++

	issue, ok := f.issues[id]
	if !ok {
		return tracker.ErrNotFound
	}
	issue.Status = tracker.StatusClosed
	if issue.Notes != "" {
		issue.Notes += "\n"
	}
	issue.Notes += reason
	return nil
}

func (f *fakeTracker) delete(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.issues, id)
}

func (f *fakeTracker) issue(t *testing.T, id string) tracker.Issue {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	issue, ok := f.issues[id]
	require.True(t, ok, "issue %s not in fake tracker", id)
	return *issue
}

func newTestService(t *testing.T) (*Service, *fakeTracker, *mapstore.MemStore) {
	t.Helper()
	ft := newFakeTracker()
	store := mapstore.NewMemStore()
	svc := NewService(store, ft, 2, zerolog.Nop())
	return svc, ft, store
}

func mkTask(id string, status task.Status) task.Task {
	return task.Task{ID: id, Content: "work on " + id, Status: status, Priority: task.PriorityMedium}
}

func TestSyncForward_CreatesIssuesUnderAnchor(t *testing.T) {
	ctx := context.Background()
	svc, ft, store := newTestService(t)

	tasks := task.List{
		{ID: "a", Content: "design the thing", Status: task.StatusPending, Priority: task.PriorityHigh},
		{ID: "b", Content: "build the thing", Status: task.StatusInProgress, Priority: task.PriorityLow},
	}
	require.NoError(t, svc.SyncForward(ctx, "sess-1", tasks))

	// anchor + two task issues
	assert.Equal(t, 3, ft.createCalls)

	doc := store.Load()
	anchorID, ok := doc.Anchor("sess-1")
	require.True(t, ok)
	assert.Equal(t, "epic", ft.issue(t, anchorID).IssueType)

	corr := doc.Correlations("sess-1")
	require.Len(t, corr, 2)

	issueA := ft.issue(t, corr["a"])
	assert.Equal(t, "design the thing", issueA.Title)
	assert.Equal(t, 1, issueA.Priority, "high translates to 1")
	assert.Equal(t, tracker.StatusOpen, issueA.Status)
	assert.Equal(t, "Task ID: a", issueA.Description)
	assert.Equal(t, anchorID, ft.parent[corr["a"]])

	issueB := ft.issue(t, corr["b"])
	assert.Equal(t, 3, issueB.Priority, "low translates to 3")
	assert.Equal(t, tracker.StatusInProgress, issueB.Status, "initial in_progress is pushed after create")
}

func TestSyncForward_Idempotent(t *testing.T) {
	ctx := context.Background()
	svc, ft, store := newTestService(t)

	tasks := task.List{mkTask("a", task.StatusPending), mkTask("b", task.StatusPending)}
	require.NoError(t, svc.SyncForward(ctx, "sess-1", tasks))
	createsAfterFirst := ft.createCalls
	docAfterFirst := store.Load()

	require.NoError(t, svc.SyncForward(ctx, "sess-1", tasks))

	assert.Equal(t, createsAfterFirst, ft.createCalls, "second sync must not create issues")

	docAfterSecond := store.Load()
	assert.Equal(t, docAfterFirst.Sessions, docAfterSecond.Sessions)
	assert.Equal(t, docAfterFirst.Todos, docAfterSecond.Todos)
}

func TestSyncForward_ConvergesStatusChange(t *testing.T) {
	ctx := context.Background()
	svc, ft, store := newTestService(t)

	require.NoError(t, svc.SyncForward(ctx, "sess-1", task.List{mkTask("a", task.StatusPending)}))
	createsAfterFirst := ft.createCalls

	require.NoError(t, svc.SyncForward(ctx, "sess-1", task.List{mkTask("a", task.StatusCompleted)}))

	assert.Equal(t, createsAfterFirst, ft.createCalls, "status change must not create a new issue")

	issueID := store.Load().Correlations("sess-1")["a"]
	issue := ft.issue(t, issueID)
	assert.Equal(t, tracker.StatusClosed, issue.Status)
	assert.Contains(t, issue.Notes, translate.ReasonCompleted)
}

func TestSyncForward_RemovedTaskClosesIssue(t *testing.T) {
	ctx := context.Background()
	svc, ft, store := newTestService(t)

	require.NoError(t, svc.SyncForward(ctx, "sess-1", task.List{
		mkTask("a", task.StatusPending),
		mkTask("b", task.StatusPending),
	}))
	issueB := store.Load().Correlations("sess-1")["b"]

	require.NoError(t, svc.SyncForward(ctx, "sess-1", task.List{mkTask("a", task.StatusPending)}))

	closed := ft.issue(t, issueB)
	assert.Equal(t, tracker.StatusClosed, closed.Status)
	assert.Contains(t, closed.Notes, translate.ReasonRemoved)

	corr := store.Load().Correlations("sess-1")
	assert.NotContains(t, corr, "b", "removed task loses its correlation")
	require.Contains(t, corr, "a")
	assert.Equal(t, tracker.StatusOpen, ft.issue(t, corr["a"]).Status, "surviving task is untouched")
}

func TestSyncForward_AnchorSelfHeals(t *testing.T) {
	ctx := context.Background()
	svc, ft, store := newTestService(t)

	require.NoError(t, svc.SyncForward(ctx, "sess-1", task.List{mkTask("a", task.StatusPending)}))
	oldAnchor, _ := store.Load().Anchor("sess-1")

	ft.delete(oldAnchor)

	require.NoError(t, svc.SyncForward(ctx, "sess-1", task.List{mkTask("a", task.StatusPending)}))

	newAnchor, ok := store.Load().Anchor("sess-1")
	require.True(t, ok)
	assert.NotEqual(t, oldAnchor, newAnchor, "a fresh anchor replaces the deleted one")
	assert.Equal(t, "epic", ft.issue(t, newAnchor).IssueType)
}

func TestSyncForward_AllTerminalClosesAnchor(t *testing.T) {
	ctx := context.Background()
	svc, ft, store := newTestService(t)

	tasks := task.List{
		mkTask("a", task.StatusCompleted),
		mkTask("b", task.StatusCancelled),
	}
	require.NoError(t, svc.SyncForward(ctx, "sess-1", tasks))

	anchorID, _ := store.Load().Anchor("sess-1")
	anchor := ft.issue(t, anchorID)
	assert.Equal(t, tracker.StatusClosed, anchor.Status)
	assert.Contains(t, anchor.Notes, "1 completed")
	assert.Contains(t, anchor.Notes, "1 cancelled")

	// two task closes plus the anchor close
	assert.Equal(t, 3, ft.closeCalls)

	// Re-syncing the identical terminal list closes the already-closed
	// anchor again; that is idempotent, not an error.
	require.NoError(t, svc.SyncForward(ctx, "sess-1", tasks))
}

func TestSyncForward_EmptyListDoesNotCloseAnchor(t *testing.T) {
	ctx := context.Background()
	svc, ft, store := newTestService(t)

	require.NoError(t, svc.SyncForward(ctx, "sess-1", task.List{}))

	anchorID, ok := store.Load().Anchor("sess-1")
	require.True(t, ok, "anchor is still created for an empty list")
	assert.Equal(t, tracker.StatusOpen, ft.issue(t, anchorID).Status)
}

func TestSyncForward_PerTaskCreateFailureIsTolerated(t *testing.T) {
	ctx := context.Background()
	svc, ft, store := newTestService(t)
	ft.failCreateTitles = map[string]error{"work on bad": errors.New("tracker rejected it")}

	tasks := task.List{mkTask("good", task.StatusPending), mkTask("bad", task.StatusPending)}
	require.NoError(t, svc.SyncForward(ctx, "sess-1", tasks), "one failed create must not abort the sync")

	corr := store.Load().Correlations("sess-1")
	assert.Contains(t, corr, "good")
	assert.NotContains(t, corr, "bad", "failed create leaves no correlation, next sync retries")
}

func TestSyncForward_UpdateFailureIsTolerated(t *testing.T) {
	ctx := context.Background()
	svc, ft, _ := newTestService(t)

	require.NoError(t, svc.SyncForward(ctx, "sess-1", task.List{mkTask("a", task.StatusPending)}))

	ft.failUpdate = errors.New("exit status 1")
	err := svc.SyncForward(ctx, "sess-1", task.List{mkTask("a", task.StatusInProgress)})
	assert.NoError(t, err, "update failures are logged and ignored")
}

func TestSyncForward_AnchorCreateFailureIsFatal(t *testing.T) {
	ctx := context.Background()
	svc, ft, store := newTestService(t)
	ft.failCreateByType = map[string]error{"epic": errors.New("tracker down")}

	err := svc.SyncForward(ctx, "sess-1", task.List{mkTask("a", task.StatusPending)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create anchor")
	assert.Equal(t, 0, store.Saves(), "nothing is persisted when the anchor cannot be created")
}

func TestSyncForward_AnchorVerifyFailureIsFatal(t *testing.T) {
	ctx := context.Background()
	svc, ft, _ := newTestService(t)

	require.NoError(t, svc.SyncForward(ctx, "sess-1", task.List{mkTask("a", task.StatusPending)}))

	// A show failure that is not not-found means the anchor cannot be
	// verified; recreating it blindly could duplicate anchors.
	ft.failShow = errors.New("exit status 7")
	err := svc.SyncForward(ctx, "sess-1", task.List{mkTask("a", task.StatusPending)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "verify anchor")
}

func TestSyncForward_SavesOnceAtEnd(t *testing.T) {
	ctx := context.Background()
	svc, _, store := newTestService(t)

	require.NoError(t, svc.SyncForward(ctx, "sess-1", task.List{mkTask("a", task.StatusPending)}))
	assert.Equal(t, 2, store.Saves(), "first sync saves at anchor creation and at the end")

	require.NoError(t, svc.SyncForward(ctx, "sess-1", task.List{mkTask("a", task.StatusPending)}))
	assert.Equal(t, 3, store.Saves(), "subsequent syncs save exactly once")
}

func TestSyncForward_Validation(t *testing.T) {
	ctx := context.Background()
	svc, ft, _ := newTestService(t)

	t.Run("missing session id", func(t *testing.T) {
		err := svc.SyncForward(ctx, "", task.List{mkTask("a", task.StatusPending)})
		require.Error(t, err)
	})

	t.Run("duplicate task ids", func(t *testing.T) {
		err := svc.SyncForward(ctx, "sess-1", task.List{mkTask("a", task.StatusPending), mkTask("a", task.StatusPending)})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "duplicate task id")
	})

	assert.Equal(t, 0, ft.createCalls, "invalid input reaches no tracker call")
}

func TestSyncBackward_EmptySession(t *testing.T) {
	ctx := context.Background()
	svc, ft, _ := newTestService(t)

	tasks, err := svc.SyncBackward(ctx, "never-synced")
	require.NoError(t, err)
	assert.Empty(t, tasks)
	assert.Equal(t, 0, ft.showCalls, "no anchor means no tracker reads")
}

func TestSyncBackward_ReconstructsTasks(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	forward := task.List{
		{ID: "b", Content: "second task", Status: task.StatusInProgress, Priority: task.PriorityHigh},
		{ID: "a", Content: "first task", Status: task.StatusPending, Priority: task.PriorityLow},
	}
	require.NoError(t, svc.SyncForward(ctx, "sess-1", forward))

	restored, err := svc.SyncBackward(ctx, "sess-1")
	require.NoError(t, err)
	require.Len(t, restored, 2)

	// Order follows issue creation, which followed input order.
	assert.Equal(t, "b", restored[0].ID)
	assert.Equal(t, "second task", restored[0].Content)
	assert.Equal(t, task.StatusInProgress, restored[0].Status)
	assert.Equal(t, task.PriorityHigh, restored[0].Priority)

	assert.Equal(t, "a", restored[1].ID)
	assert.Equal(t, task.StatusPending, restored[1].Status)
	assert.Equal(t, task.PriorityLow, restored[1].Priority)
}

func TestSyncBackward_CancelledRecoveryDependsOnNotes(t *testing.T) {
	ctx := context.Background()
	svc, ft, store := newTestService(t)

	require.NoError(t, svc.SyncForward(ctx, "sess-1", task.List{
		mkTask("done", task.StatusCompleted),
		mkTask("gone", task.StatusCancelled),
	}))

	restored, err := svc.SyncBackward(ctx, "sess-1")
	require.NoError(t, err)
	require.Len(t, restored, 2)

	byID := map[string]task.Task{}
	for _, tsk := range restored {
		byID[tsk.ID] = tsk
	}
	assert.Equal(t, task.StatusCompleted, byID["done"].Status)
	assert.Equal(t, task.StatusCancelled, byID["gone"].Status,
		"cancelled survives the round trip only through the close-reason marker")

	// Strip the marker from the notes: the distinction is gone and the
	// task reads back as completed.
	issueID := store.Load().Correlations("sess-1")["gone"]
	ft.mu.Lock()
	ft.issues[issueID].Notes = strings.ReplaceAll(ft.issues[issueID].Notes, translate.CancelledMarker, "dropped")
	ft.mu.Unlock()

	restored, err = svc.SyncBackward(ctx, "sess-1")
	require.NoError(t, err)
	for _, tsk := range restored {
		if tsk.ID == "gone" {
			assert.Equal(t, task.StatusCompleted, tsk.Status)
		}
	}
}

func TestSyncBackward_SkipsStaleCorrelations(t *testing.T) {
	ctx := context.Background()
	svc, ft, store := newTestService(t)

	require.NoError(t, svc.SyncForward(ctx, "sess-1", task.List{
		mkTask("a", task.StatusPending),
		mkTask("b", task.StatusPending),
	}))

	doc := store.Load()
	ft.delete(doc.Correlations("sess-1")["a"])

	restored, err := svc.SyncBackward(ctx, "sess-1")
	require.NoError(t, err)
	require.Len(t, restored, 1)
	assert.Equal(t, "b", restored[0].ID)

	// Read-only path: the stale correlation is not cleaned up.
	assert.Contains(t, store.Load().Correlations("sess-1"), "a")
}
