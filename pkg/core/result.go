package core

import "time"

// MaterializedResult is the committed row set of a relation at one version.
type MaterializedResult struct {
	Table

	Relation string `json:"relation"`
	Version  uint64 `json:"version"`

	// Seq is the store-wide commit sequence. It strictly increases across
	// every commit to every relation.
	Seq uint64 `json:"seq"`

	// Inputs records the upstream versions this result was computed from.
	Inputs map[string]uint64 `json:"inputs,omitempty"`

	Fingerprint string    `json:"fingerprint"`
	CommittedAt time.Time `json:"committed_at"`
}

// VersionInfo is the metadata of a committed result without its rows.
type VersionInfo struct {
	Relation    string            `json:"relation"`
	Version     uint64            `json:"version"`
	Seq         uint64            `json:"seq"`
	Rows        int               `json:"rows"`
	Inputs      map[string]uint64 `json:"inputs,omitempty"`
	Fingerprint string            `json:"fingerprint"`
	CommittedAt time.Time         `json:"committed_at"`
}

// Info returns the result's metadata.
func (m *MaterializedResult) Info() VersionInfo {
	return VersionInfo{
		Relation:    m.Relation,
		Version:     m.Version,
		Seq:         m.Seq,
		Rows:        len(m.Rows),
		Inputs:      m.Inputs,
		Fingerprint: m.Fingerprint,
		CommittedAt: m.CommittedAt,
	}
}
