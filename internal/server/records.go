package server

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/dmitrijs2005/pgkit/internal/audit"
	"github.com/dmitrijs2005/pgkit/internal/common"
	"github.com/dmitrijs2005/pgkit/internal/httpx"
	"github.com/dmitrijs2005/pgkit/internal/pagination"
	"github.com/dmitrijs2005/pgkit/internal/record"
	"github.com/dmitrijs2005/pgkit/internal/softdelete"
	"github.com/dmitrijs2005/pgkit/internal/upsert"
	"github.com/dmitrijs2005/pgkit/internal/version"
)

const maxBodyBytes = 32 << 20

// UpsertMeta summarizes an upsert response.
type UpsertMeta struct {
	Written      int `json:"written"`
	Inserted     int `json:"inserted,omitempty"`
	Updated      int `json:"updated,omitempty"`
	FailedChunks int `json:"failedChunks,omitempty"`
	FailedRows   int `json:"failedRows,omitempty"`
}

// upsertRecords writes a JSON object or array into the configured table and
// answers in the same shape, rows carrying status only when ReturnStatus is
// configured. Every written row is audited as an insert or an
// update depending on whether it existed before.
func (app *App) upsertRecords(r *http.Request) (any, error) {
	ctx := r.Context()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", common.ErrValidation, err)
	}
	recs, scalar, err := record.ParseList(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrValidation, err)
	}

	before, err := app.snapshots(ctx, recs)
	if err != nil {
		return nil, err
	}

	res, err := app.upserter.Upsert(ctx, app.config.Table, recs, app.config.ConflictKey, upsert.Options{})
	if err != nil {
		return nil, err
	}
	if res.Failed > 0 && len(res.Rows) == 0 {
		return nil, res.Err()
	}

	for _, row := range res.Rows {
		v, _ := row.Entity.Get(app.keyCol)
		id := upsert.KeyString(v)
		if old, ok := before[id]; ok {
			app.audit.AfterUpdate(ctx, app.config.Table, id, old, row.Entity)
		} else {
			app.audit.AfterInsert(ctx, app.config.Table, id, row.Entity)
		}
	}

	meta := UpsertMeta{
		Written:      len(res.Rows),
		Inserted:     res.Count(upsert.StatusInserted),
		Updated:      res.Count(upsert.StatusUpdated),
		FailedChunks: res.Failed,
		FailedRows:   res.FailedRows,
	}
	out := httpx.Result{Status: http.StatusOK, Meta: meta}
	if res.Failed > 0 {
		out.Message = "some chunks failed"
	}
	out.Data = res.Output(scalar)
	return out, nil
}

// snapshots loads the current rows for the keys in recs, keyed by
// upsert.KeyString of the key column.
func (app *App) snapshots(ctx context.Context, recs []*record.Record) (map[string]*record.Record, error) {
	values := make([]any, 0, len(recs))
	for _, r := range recs {
		if v, ok := r.Get(app.config.ConflictKey); ok && v != nil {
			values = append(values, v)
		}
	}
	batches, err := upsert.Chunk(values, app.config.ChunkSize)
	if err != nil {
		return nil, err
	}

	out := make(map[string]*record.Record, len(values))
	for _, b := range batches {
		rows, err := app.records.FetchByKeys(ctx, app.config.Table, app.keyCol, b)
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			v, _ := row.Get(app.keyCol)
			out[upsert.KeyString(v)] = row
		}
	}
	return out, nil
}

func (app *App) softDeleteRecord(r *http.Request) (any, error) {
	ctx := r.Context()
	id := r.PathValue("id")

	before, err := app.deletes.Find(ctx, app.config.Table, app.keyCol, id)
	if err != nil {
		return nil, err
	}
	n, err := app.deletes.SoftDelete(ctx, app.config.Table, app.keyCol, id, softdelete.Options{ValidateExists: true})
	if err != nil {
		return nil, err
	}
	if n > 0 {
		app.audit.AfterSoftRemove(ctx, app.config.Table, id, before)
	}
	return httpx.Result{Message: "deleted", Data: map[string]any{"id": id, "affected": n}}, nil
}

func (app *App) restoreRecord(r *http.Request) (any, error) {
	ctx := r.Context()
	id := r.PathValue("id")

	n, err := app.deletes.Restore(ctx, app.config.Table, app.keyCol, id, softdelete.Options{ValidateExists: true})
	if err != nil {
		return nil, err
	}
	if n > 0 {
		after, err := app.deletes.Find(ctx, app.config.Table, app.keyCol, id)
		if err != nil {
			return nil, err
		}
		app.audit.AfterRestore(ctx, app.config.Table, id, after)
	}
	return httpx.Result{Message: "restored", Data: map[string]any{"id": id, "affected": n}}, nil
}

func (app *App) listAuditLogs(r *http.Request) (any, error) {
	q := r.URL.Query()
	p, err := pagination.FromQuery(q)
	if err != nil {
		return nil, err
	}

	entries, total, err := app.auditLog.List(r.Context(), audit.ListFilter{
		Entity: q.Get("entity"),
		Limit:  p.Limit,
		Offset: p.Offset(),
	})
	if err != nil {
		return nil, err
	}

	page := pagination.NewPage(entries, p, total)
	return httpx.Result{Data: page.Items, Meta: page.Meta}, nil
}

func (app *App) versionInfo(*http.Request) (any, error) {
	v := version.Current()
	return map[string]any{"version": v.String(), "build": v}, nil
}
