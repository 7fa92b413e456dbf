// Package mapstore persists the correlation between session tasks and
// tracker issues.
//
// The document is the single source of truth for which tracker issue
// "is" a given task. The tracker itself only carries a best-effort task
// id in issue descriptions, so losing this document loses the
// correlation for all future syncs.
package mapstore

// Document is the on-disk mapping structure.
type Document struct {
	// Sessions maps session id to the session's anchor issue id.
	Sessions map[string]string `json:"sessions"`
	// Todos maps session id to task id to tracker issue id.
	Todos map[string]map[string]string `json:"todos"`
	// LastSync is the epoch-millisecond timestamp of the last save.
	LastSync int64 `json:"lastSync"`
}

// NewDocument returns an empty, fully initialized document.
func NewDocument() *Document {
	return &Document{
		Sessions: map[string]string{},
		Todos:    map[string]map[string]string{},
	}
}

// normalize repairs nil maps after JSON decoding of partial documents.
func (d *Document) normalize() {
	if d.Sessions == nil {
		d.Sessions = map[string]string{}
	}
	if d.Todos == nil {
		d.Todos = map[string]map[string]string{}
	}
	for sessionID, m := range d.Todos {
		if m == nil {
			d.Todos[sessionID] = map[string]string{}
		}
	}
}

// Anchor returns the anchor issue id recorded for a session.
func (d *Document) Anchor(sessionID string) (string, bool) {
	id, ok := d.Sessions[sessionID]
	return id, ok
}

// SetAnchor records a session's anchor issue and ensures the session
// has a correlation map.
func (d *Document) SetAnchor(sessionID, issueID string) {
	d.Sessions[sessionID] = issueID
	if d.Todos[sessionID] == nil {
		d.Todos[sessionID] = map[string]string{}
	}
}

// Correlations returns the task-to-issue map for a session. The
// returned map is the live one; mutations through Correlate and Forget
// are visible in it.
func (d *Document) Correlations(sessionID string) map[string]string {
	if d.Todos[sessionID] == nil {
		d.Todos[sessionID] = map[string]string{}
	}
	return d.Todos[sessionID]
}

// Correlate records that a task maps to a tracker issue.
func (d *Document) Correlate(sessionID, taskID, issueID string) {
	d.Correlations(sessionID)[taskID] = issueID
}

// Forget removes a task's correlation.
func (d *Document) Forget(sessionID, taskID string) {
	delete(d.Correlations(sessionID), taskID)
}

// Clone returns a deep copy of the document.
func (d *Document) Clone() *Document {
	out := NewDocument()
	out.LastSync = d.LastSync
	for k, v := range d.Sessions {
		out.Sessions[k] = v
	}
	for sessionID, m := range d.Todos {
		inner := make(map[string]string, len(m))
		for k, v := range m {
			inner[k] = v
		}
		out.Todos[sessionID] = inner
	}
	return out
}

// Store loads and saves the mapping document.
//
// Load never fails: a missing, empty, or unparsable backing store
// degrades to a fresh empty document. Save failures do propagate, since
// losing correlation updates is a correctness issue the caller may want
// to surface.
type Store interface {
	Load() *Document
	Save(doc *Document) error
}
