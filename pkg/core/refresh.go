package core

// Outcome is the result of one relation in a refresh.
type Outcome struct {
	Relation   string         `json:"relation"`
	Status     RelationStatus `json:"status"`
	Version    uint64         `json:"version"`
	Rows       int            `json:"rows"`
	DurationMS int64          `json:"duration_ms"`
	Error      string         `json:"error,omitempty"`

	// Err is the underlying error for failed relations.
	Err error `json:"-"`
}

// RefreshReport is returned by a refresh: per relation outcome plus the
// final committed versions.
type RefreshReport struct {
	RunID    string            `json:"run_id"`
	Status   RunStatus         `json:"status"`
	Order    []string          `json:"order"`
	Outcomes []Outcome         `json:"outcomes"`
	Versions map[string]uint64 `json:"versions"`
}

// Outcome returns the outcome for relation.
func (r *RefreshReport) Outcome(relation string) (Outcome, bool) {
	for _, o := range r.Outcomes {
		if o.Relation == relation {
			return o, true
		}
	}
	return Outcome{}, false
}

// Failed returns the relations that failed.
func (r *RefreshReport) Failed() []string {
	var out []string
	for _, o := range r.Outcomes {
		if o.Status == RelationStatusFailed {
			out = append(out, o.Relation)
		}
	}
	return out
}

// Changed reports whether the refresh committed or failed anything, as
// opposed to finding every relation current.
func (r *RefreshReport) Changed() bool {
	for _, o := range r.Outcomes {
		if o.Status != RelationStatusCurrent {
			return true
		}
	}
	return false
}
