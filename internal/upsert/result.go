package upsert

import (
	"errors"
	"fmt"

	"github.com/dmitrijs2005/pgkit/internal/record"
)

// Status tells whether a written row was new or replaced an existing one.
type Status string

const (
	StatusInserted Status = "inserted"
	StatusUpdated  Status = "updated"
)

// Row is one written row. Status is empty unless status reporting was
// requested.
type Row struct {
	Entity *record.Record `json:"entity"`
	Status Status         `json:"status,omitempty"`
}

// ChunkResult is the outcome of one chunk statement.
type ChunkResult struct {
	Index int
	Size  int
	Rows  []Row
	Err   error
}

// Result aggregates all chunks of one upsert call. Rows are concatenated in
// chunk order; failed chunks contribute no rows.
type Result struct {
	Rows       []Row
	Chunks     []ChunkResult
	Failed     int // failed chunks
	FailedRows int // input records in failed chunks
	// StatusReported is set when rows carry inserted/updated status.
	StatusReported bool
}

// Err joins the errors of all failed chunks, or returns nil.
func (r *Result) Err() error {
	if r == nil || r.Failed == 0 {
		return nil
	}
	errs := make([]error, 0, r.Failed)
	for _, c := range r.Chunks {
		if c.Err != nil {
			errs = append(errs, c.Err)
		}
	}
	return errors.Join(errs...)
}

// Entities returns the written rows without status.
func (r *Result) Entities() []*record.Record {
	out := make([]*record.Record, len(r.Rows))
	for i, row := range r.Rows {
		out[i] = row.Entity
	}
	return out
}

// Output returns what a caller should see: rows with status when status
// was reported, bare entities otherwise. A scalar input with one written row
// gets that single value instead of a slice.
func (r *Result) Output(scalar bool) any {
	if r.StatusReported {
		if scalar && len(r.Rows) == 1 {
			return r.Rows[0]
		}
		return r.Rows
	}
	entities := r.Entities()
	if scalar && len(entities) == 1 {
		return entities[0]
	}
	return entities
}

// Count returns how many rows carry status s.
func (r *Result) Count(s Status) int {
	n := 0
	for _, row := range r.Rows {
		if row.Status == s {
			n++
		}
	}
	return n
}

// ChunkError reports a failed store operation for one chunk.
type ChunkError struct {
	Index int
	Op    string
	Err   error
}

func (e *ChunkError) Error() string {
	return fmt.Sprintf("chunk %d: %s: %v", e.Index, e.Op, e.Err)
}

func (e *ChunkError) Unwrap() error { return e.Err }
