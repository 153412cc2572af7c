package store

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/leapstack-labs/leapgold/pkg/core"
)

// encodeRows renders rows as a JSON array of arrays. Dates become
// "2006-01-02" strings; everything else is native JSON.
func encodeRows(rows []core.Row) ([]byte, error) {
	out := make([][]any, len(rows))
	for i, row := range rows {
		r := make([]any, len(row))
		for j, v := range row {
			if d, ok := v.(time.Time); ok {
				r[j] = d.Format(core.DateLayout)
				continue
			}
			r[j] = v
		}
		out[i] = r
	}
	return json.Marshal(out)
}

// decodeRows parses rows written by encodeRows, restoring typed values from
// the schema.
func decodeRows(data []byte, schema core.Schema) ([]core.Row, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw [][]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode rows: %w", err)
	}

	rows := make([]core.Row, len(raw))
	for i, r := range raw {
		if len(r) != len(schema) {
			return nil, fmt.Errorf("decode rows: row %d has %d values, schema has %d", i, len(r), len(schema))
		}
		row := make(core.Row, len(r))
		for j, v := range r {
			if n, ok := v.(json.Number); ok {
				v = n.String()
			}
			val, err := core.Coerce(v, schema[j].Type)
			if err != nil {
				return nil, fmt.Errorf("decode rows: row %d column %s: %w", i, schema[j].Name, err)
			}
			row[j] = val
		}
		rows[i] = row
	}
	return rows, nil
}

// Fingerprint is a content hash over the schema and rows of t.
func Fingerprint(t *core.Table) (string, error) {
	h := sha256.New()
	for _, c := range t.Columns {
		fmt.Fprintf(h, "%s:%s:%t;", c.Name, c.Type, c.Nullable)
	}
	h.Write([]byte{'\n'})
	rows, err := encodeRows(t.Rows)
	if err != nil {
		return "", err
	}
	h.Write(rows)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// envelope is the persisted header of a committed result.
type envelope struct {
	Relation    string            `json:"relation"`
	Version     uint64            `json:"version"`
	Seq         uint64            `json:"seq"`
	Columns     core.Schema       `json:"columns"`
	Inputs      map[string]uint64 `json:"inputs,omitempty"`
	Fingerprint string            `json:"fingerprint"`
	CommittedAt time.Time         `json:"committed_at"`

	// Rows live in Chunks separately stored row chunks.
	Chunks   int `json:"chunks"`
	RowCount int `json:"row_count"`
}

func (e *envelope) result(rows []core.Row) *core.MaterializedResult {
	return &core.MaterializedResult{
		Table:       core.Table{Columns: e.Columns, Rows: rows},
		Relation:    e.Relation,
		Version:     e.Version,
		Seq:         e.Seq,
		Inputs:      e.Inputs,
		Fingerprint: e.Fingerprint,
		CommittedAt: e.CommittedAt,
	}
}

func decodeEnvelope(data []byte) (*envelope, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	return &env, nil
}

// encodeHeader encodes res without its rows, which are stored as chunks.
func encodeHeader(res *core.MaterializedResult, chunks int) ([]byte, error) {
	return json.Marshal(envelope{
		Relation:    res.Relation,
		Version:     res.Version,
		Seq:         res.Seq,
		Columns:     res.Columns,
		Inputs:      res.Inputs,
		Fingerprint: res.Fingerprint,
		CommittedAt: res.CommittedAt,
		Chunks:      chunks,
		RowCount:    len(res.Rows),
	})
}

// encodeChunks splits rows into encoded chunks of at most chunkRows rows,
// halving a chunk until its encoding fits in maxBytes.
func encodeChunks(rows []core.Row, chunkRows, maxBytes int) ([][]byte, error) {
	var chunks [][]byte
	for len(rows) > 0 {
		n := min(chunkRows, len(rows))
		for {
			data, err := encodeRows(rows[:n])
			if err != nil {
				return nil, err
			}
			if len(data) <= maxBytes || n == 1 {
				chunks = append(chunks, data)
				rows = rows[n:]
				break
			}
			n /= 2
		}
	}
	return chunks, nil
}

// prepare validates a result before commit and fills derived fields.
func prepare(res *core.MaterializedResult, current uint64, now time.Time) error {
	if strings.TrimSpace(res.Relation) == "" {
		return fmt.Errorf("commit: empty relation name")
	}
	if res.Version <= current {
		return &core.VersionConflictError{Relation: res.Relation, Current: current, Attempted: res.Version}
	}
	for i, row := range res.Rows {
		if len(row) != len(res.Columns) {
			return fmt.Errorf("commit %s: row %d has %d values, schema has %d", res.Relation, i, len(row), len(res.Columns))
		}
	}
	if res.Fingerprint == "" {
		fp, err := Fingerprint(&res.Table)
		if err != nil {
			return err
		}
		res.Fingerprint = fp
	}
	if res.CommittedAt.IsZero() {
		res.CommittedAt = now.UTC()
	}
	return nil
}
