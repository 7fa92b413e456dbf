package task

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// Payload is the envelope posted by agent tool hooks. The session id is
// optional because callers may supply it out of band.
type Payload struct {
	SessionID string `json:"session_id"`
	Todos     List   `json:"todos"`
}

// DecodePayload reads a task-list payload from r. Both the hook envelope
// ({"session_id": ..., "todos": [...]}) and a bare JSON array of tasks
// are accepted. The returned session id is empty for the bare-array form.
func DecodePayload(r io.Reader) (string, List, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", nil, fmt.Errorf("read payload: %w", err)
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return "", nil, fmt.Errorf("empty payload")
	}

	if trimmed[0] == '[' {
		var tasks List
		if err := json.Unmarshal(trimmed, &tasks); err != nil {
			return "", nil, fmt.Errorf("decode task list: %w", err)
		}
		return "", tasks, nil
	}

	var p Payload
	if err := json.Unmarshal(trimmed, &p); err != nil {
		return "", nil, fmt.Errorf("decode payload: %w", err)
	}
	if p.Todos == nil {
		return "", nil, fmt.Errorf("payload has no todos field")
	}
	return p.SessionID, p.Todos, nil
}
