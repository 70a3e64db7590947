package core

// Status is the lifecycle state of an ingested file.
type Status string

const (
	StatusUploaded   Status = "uploaded"
	StatusProcessing Status = "processing"
	StatusProcessed  Status = "processed"
	StatusError      Status = "error"
)

// IsValidStatus reports whether s names a known lifecycle status.
func IsValidStatus(s string) bool {
	switch Status(s) {
	case StatusUploaded, StatusProcessing, StatusProcessed, StatusError:
		return true
	}
	return false
}

// IsTerminal reports whether no further transitions are allowed from s.
func (s Status) IsTerminal() bool {
	return s == StatusProcessed || s == StatusError
}

// TransitionSources returns the set of current statuses from which a
// record may move to target. Re-claiming an already-processing record
// is an idempotent success, so processing appears in its own source
// set; the record store uses these sets as the guard of a conditional
// update so concurrent transitions are serialized per record.
func TransitionSources(target Status) []Status {
	switch target {
	case StatusProcessing:
		return []Status{StatusUploaded, StatusProcessing}
	case StatusProcessed, StatusError:
		return []Status{StatusProcessing}
	default:
		return nil
	}
}

// CanTransition reports whether a record currently in from may move to to.
func CanTransition(from, to Status) bool {
	for _, s := range TransitionSources(to) {
		if s == from {
			return true
		}
	}
	return false
}
