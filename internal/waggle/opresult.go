package waggle

// outcome classifies a tracker operation attempted during a sync.
type outcome int

const (
	// outcomeApplied: the operation succeeded.
	outcomeApplied outcome = iota
	// outcomeTolerated: the operation failed but the sync continues.
	// Through the bd interface "already in desired state" is
	// indistinguishable from a real failure, and re-sync is
	// self-healing, so update/close failures land here.
	outcomeTolerated
	// outcomeFatal: the sync cannot proceed. Only anchor creation
	// qualifies; without an anchor nothing else can be done.
	outcomeFatal
)

// opResult is the per-operation record consumed by judge, the single
// decision point for the sync failure policy.
type opResult struct {
	op      string
	taskID  string
	issueID string
	outcome outcome
	err     error
}

// resultFor builds an opResult, classifying a non-nil error with the
// given failure outcome.
func resultFor(op, taskID, issueID string, err error, onErr outcome) opResult {
	r := opResult{op: op, taskID: taskID, issueID: issueID, outcome: outcomeApplied}
	if err != nil {
		r.err = err
		r.outcome = onErr
	}
	return r
}

// judge applies the failure policy for one tracker operation: log and
// continue for tolerated failures, abort the sync for fatal ones.
func (s *Service) judge(r opResult) error {
	switch r.outcome {
	case outcomeTolerated:
		s.log.Warn().
			Err(r.err).
			Str("op", r.op).
			Str("task", r.taskID).
			Str("issue", r.issueID).
			Msg("tracker operation failed, continuing")
		return nil
	case outcomeFatal:
		return r.err
	default:
		s.log.Debug().
			Str("op", r.op).
			Str("task", r.taskID).
			Str("issue", r.issueID).
			Msg("tracker operation applied")
		return nil
	}
}
