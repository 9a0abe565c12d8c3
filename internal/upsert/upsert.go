package upsert

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrijs2005/pgkit/internal/common"
	"github.com/dmitrijs2005/pgkit/internal/logging"
	"github.com/dmitrijs2005/pgkit/internal/record"
)

// Observer is notified once per finished chunk, successful or not.
type Observer interface {
	ObserveChunk(table string, res ChunkResult)
}

// Upserter issues chunked upserts against a Store.
type Upserter struct {
	store    Store
	logger   logging.Logger
	defaults Options
	observer Observer
}

// New builds an Upserter. defaults apply to every call and are themselves
// completed with DefaultOptions.
func New(store Store, logger logging.Logger, defaults Options) *Upserter {
	return &Upserter{
		store:    store,
		logger:   logging.OrNop(logger).With("module", "upsert"),
		defaults: defaults.Merge(DefaultOptions()),
	}
}

// WithObserver attaches o and returns u.
func (u *Upserter) WithObserver(o Observer) *Upserter {
	u.observer = o
	return u
}

// UpsertOne writes a single record and returns it in the same scalar shape.
// Unlike Upsert, a store failure is returned as the error.
func (u *Upserter) UpsertOne(ctx context.Context, table string, rec *record.Record, conflictKey string, opts Options) (*Row, error) {
	res, err := u.Upsert(ctx, table, []*record.Record{rec}, conflictKey, opts)
	if err != nil {
		return nil, err
	}
	if err := res.Err(); err != nil {
		return nil, err
	}
	if len(res.Rows) == 0 {
		return nil, nil
	}
	row := res.Rows[0]
	return &row, nil
}

// Upsert writes recs in chunks, all chunks in flight at once unless
// Options.Concurrency limits them.
//
// Validation problems (missing conflict key, empty sample, bad chunk size)
// are returned before any I/O. Store failures never abort the batch: the
// failing chunk is logged, contributes no rows and is reported through
// Result.Chunks, Result.Failed and Result.Err. Nothing is retried.
//
// Status classification relies on an existence query issued before the
// write without a transaction, so a concurrent writer can make it wrong.
// Treat it as best-effort.
func (u *Upserter) Upsert(ctx context.Context, table string, recs []*record.Record, conflictKey string, opts Options) (*Result, error) {
	o := opts.Merge(u.defaults)

	if conflictKey == "" {
		return nil, common.ErrEmptyConflictKey
	}
	if o.ChunkSize <= 0 {
		return nil, common.ErrInvalidChunkSize
	}
	if len(recs) == 0 {
		return &Result{}, nil
	}
	for i, r := range recs {
		if r == nil {
			return nil, fmt.Errorf("%w: record %d is nil", common.ErrValidation, i)
		}
		if v, ok := r.Get(conflictKey); !ok || v == nil {
			return nil, fmt.Errorf("%w: record %d, key %q", common.ErrMissingConflictKey, i, conflictKey)
		}
	}

	keys, err := DeriveKeys(recs[0], record.NewExclusionSet(o.DoNotUpsert...))
	if err != nil {
		return nil, err
	}
	if !contains(keys, conflictKey) {
		return nil, fmt.Errorf("%w: key %q is excluded from written fields", common.ErrMissingConflictKey, conflictKey)
	}

	p := plan{
		table:        table,
		keys:         keys,
		columns:      make([]string, len(keys)),
		conflictKey:  conflictKey,
		conflictCol:  o.KeyNaming(conflictKey),
		returnStatus: o.ReturnStatus != nil && *o.ReturnStatus,
	}
	for i, k := range keys {
		p.columns[i] = o.KeyNaming(k)
	}
	p.onConflict = "(" + quoteIdent(p.conflictCol) + ") DO UPDATE SET " +
		buildSetterClause(keys, o.KeyNaming, o.UpdatedAtColumn)

	chunks, err := Chunk(recs, o.ChunkSize)
	if err != nil {
		return nil, err
	}

	results := make([]ChunkResult, len(chunks))
	var g errgroup.Group
	if o.Concurrency > 0 {
		g.SetLimit(o.Concurrency)
	}
	for i, c := range chunks {
		g.Go(func() error {
			results[i] = u.runChunk(ctx, p, i, c)
			return nil
		})
	}
	_ = g.Wait()

	res := &Result{Chunks: results, StatusReported: p.returnStatus}
	for _, c := range results {
		if c.Err != nil {
			res.Failed++
			res.FailedRows += c.Size
			continue
		}
		res.Rows = append(res.Rows, c.Rows...)
	}

	u.logger.Debug(ctx, "upsert finished",
		"table", table, "records", len(recs), "chunks", len(chunks),
		"written", len(res.Rows), "failed_chunks", res.Failed)

	return res, nil
}

// plan is everything derived once per call and shared read-only by chunks.
type plan struct {
	table        string
	keys         []string
	columns      []string
	conflictKey  string
	conflictCol  string
	onConflict   string
	returnStatus bool
}

func (u *Upserter) runChunk(ctx context.Context, p plan, idx int, chunk []*record.Record) (res ChunkResult) {
	res = ChunkResult{Index: idx, Size: len(chunk)}
	defer func() {
		if u.observer != nil {
			u.observer.ObserveChunk(p.table, res)
		}
	}()

	var existing map[string]struct{}
	if p.returnStatus {
		values := make([]any, len(chunk))
		for i, r := range chunk {
			values[i], _ = r.Get(p.conflictKey)
		}
		found, err := u.store.ExistingKeys(ctx, p.table, p.conflictCol, values)
		if err != nil {
			res.Err = u.chunkFailed(ctx, p, idx, len(chunk), "existence check", err)
			return res
		}
		existing = make(map[string]struct{}, len(found))
		for _, v := range found {
			existing[KeyString(v)] = struct{}{}
		}
	}

	rows := make([][]any, len(chunk))
	for i, r := range chunk {
		row := make([]any, len(p.keys))
		for j, k := range p.keys {
			row[j], _ = r.Get(k)
		}
		rows[i] = row
	}

	written, err := u.store.InsertOnConflict(ctx, p.table, p.columns, rows, p.onConflict)
	if err != nil {
		res.Err = u.chunkFailed(ctx, p, idx, len(chunk), "write", err)
		return res
	}

	res.Rows = make([]Row, len(written))
	for i, w := range written {
		row := Row{Entity: w}
		if p.returnStatus {
			v, _ := w.Get(p.conflictCol)
			if _, ok := existing[KeyString(v)]; ok {
				row.Status = StatusUpdated
			} else {
				row.Status = StatusInserted
			}
		}
		res.Rows[i] = row
	}
	return res
}

func (u *Upserter) chunkFailed(ctx context.Context, p plan, idx, size int, op string, err error) error {
	args := []any{"table", p.table, "chunk", idx, "rows", size, "op", op, "error", err}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		args = append(args, "sqlstate", pgErr.Code, "detail", pgErr.Detail)
	}
	u.logger.Error(ctx, "upsert chunk failed", args...)
	return &ChunkError{Index: idx, Op: op, Err: err}
}

// KeyString normalizes conflict-key values so that a record's int, the
// driver's int64 and a decoded float64 of the same number compare equal.
func KeyString(v any) string {
	switch t := v.(type) {
	case []byte:
		return string(t)
	case float64:
		if t == math.Trunc(t) && math.Abs(t) < 1<<53 {
			return strconv.FormatInt(int64(t), 10)
		}
	case float32:
		if f := float64(t); f == math.Trunc(f) && math.Abs(f) < 1<<24 {
			return strconv.FormatInt(int64(f), 10)
		}
	}
	return fmt.Sprint(v)
}

func contains(xs []string, s string) bool {
	for _, x := range xs {
		if x == s {
			return true
		}
	}
	return false
}
