package waggle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/colonyops/waggle/internal/data/mapstore"
	"github.com/colonyops/waggle/internal/core/tracker"
)

const (
	anchorIssueType = "epic"
	taskIssueType   = "task"
)

// resolveAnchor returns the session's anchor issue id, creating the
// anchor if none is recorded or the recorded one no longer exists in
// the tracker. A newly created anchor is persisted before returning so
// a crash mid-sync cannot orphan it.
func (s *Service) resolveAnchor(ctx context.Context, sessionID string, doc *mapstore.Document) (string, error) {
	if id, ok := doc.Anchor(sessionID); ok {
		_, err := s.client.Show(ctx, id)
		switch {
		case err == nil:
			return id, nil
		case errors.Is(err, tracker.ErrNotFound):
			s.log.Warn().
				Str("session", sessionID).
				Str("issue", id).
				Msg("recorded anchor missing from tracker, recreating")
		default:
			return "", fmt.Errorf("verify anchor %s: %w", id, err)
		}
	}

	title := fmt.Sprintf("Session %s (%s)", shortSessionID(sessionID), time.Now().Format("2006-01-02"))
	id, err := s.client.Create(ctx, tracker.CreateRequest{
		Title:       title,
		IssueType:   anchorIssueType,
		Priority:    s.anchorPriority,
		Description: "Todo list anchor for session " + sessionID,
	})
	if jerr := s.judge(resultFor("create-anchor", "", id, err, outcomeFatal)); jerr != nil {
		return "", fmt.Errorf("create anchor: %w", jerr)
	}

	doc.SetAnchor(sessionID, id)
	if err := s.store.Save(doc); err != nil {
		return "", fmt.Errorf("save mapping document: %w", err)
	}

	s.log.Info().Str("session", sessionID).Str("issue", id).Msg("created session anchor")
	return id, nil
}

func shortSessionID(sessionID string) string {
	if len(sessionID) > 8 {
		return sessionID[:8]
	}
	return sessionID
}
