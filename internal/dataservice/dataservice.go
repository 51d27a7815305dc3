// Package dataservice implements the Data Service (C4): high-level
// save/get/delete per entity with the cross-entity invariants of spec.md
// §4.4, grounded on original_source/data_service.py.
package dataservice

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/relaydb/jobcore/internal/codec"
	"github.com/relaydb/jobcore/internal/store"
)

// DataService wraps one store.Table per entity family — the "one table
// per logical entity family" layout of spec.md §6 — behind save/delete/
// getById/getAll operations.
type DataService struct {
	db    *sql.DB
	codec *codec.Codec
	log   *slog.Logger

	systems       *store.Table
	users         *store.Table
	jobs          *store.Table
	tasks         *store.Table
	schedules     *store.Table
	tags          *store.Table
	triggers      *store.Table
	cancellations *store.Table
	executions    *store.Table
	execServers   *store.Table
	workerThreads *store.Table
	configs       *store.Table
	leases        *store.Table
}

// New builds a DataService over db using dialect for DDL, creating every
// table if absent.
func New(ctx context.Context, db *sql.DB, dialect store.Dialect, c *codec.Codec, log *slog.Logger) (*DataService, error) {
	ds := &DataService{
		db:            db,
		codec:         c,
		log:           log,
		systems:       store.NewTable(db, dialect, "systems", store.IDKindUUID),
		users:         store.NewTable(db, dialect, "users", store.IDKindUUID),
		jobs:          store.NewTable(db, dialect, "jobs", store.IDKindUUID),
		tasks:         store.NewTable(db, dialect, "tasks", store.IDKindUUID),
		schedules:     store.NewTable(db, dialect, "schedules", store.IDKindUUID),
		tags:          store.NewTable(db, dialect, "tags", store.IDKindUUID),
		triggers:      store.NewTable(db, dialect, "trigger_events", store.IDKindUUID),
		cancellations: store.NewTable(db, dialect, "cancellation_events", store.IDKindUUID),
		executions:    store.NewTable(db, dialect, "executions", store.IDKindUUID),
		execServers:   store.NewTable(db, dialect, "execution_servers", store.IDKindUUID),
		workerThreads: store.NewTable(db, dialect, "worker_threads", store.IDKindUUID),
		configs:       store.NewTable(db, dialect, "configs", store.IDKindUUID),
		leases:        store.NewTable(db, dialect, "scheduler_leases", store.IDKindUUID),
	}
	for _, t := range []*store.Table{
		ds.systems, ds.users, ds.jobs, ds.tasks, ds.schedules, ds.tags,
		ds.triggers, ds.cancellations, ds.executions, ds.execServers,
		ds.workerThreads, ds.configs, ds.leases,
	} {
		if err := t.CreateTableIfNotExists(ctx); err != nil {
			return nil, err
		}
	}
	return ds, nil
}

// upsertRow inserts row (when id is empty) or updates it under (id, ver)
// CAS, returning the stored row with id/ver populated.
func upsertRow(ctx context.Context, tbl *store.Table, id string, ver int64, row store.Row) (store.Row, error) {
	if id == "" {
		rows, err := tbl.Insert(ctx, nil, []store.Row{row})
		if err != nil {
			return store.Row{}, err
		}
		return rows[0], nil
	}
	partial := store.PartialRow{ID: id, Ver: ver, Dsmall: &row.Dsmall, Dmedium: &row.Dmedium, Dlarge: &row.Dlarge}
	rows, err := tbl.Update(ctx, nil, []store.PartialRow{partial}, true)
	if err != nil {
		return store.Row{}, err
	}
	return rows[0], nil
}

// deleteCheckNotExist logs and reports true when id no longer exists,
// making delete a no-op — grounded on
// original_source/data_service.py's DataServiceBase.delete_check_not_exist.
func (ds *DataService) deleteCheckNotExist(ctx context.Context, tbl *store.Table, entity, id string) (bool, error) {
	_, err := tbl.SelectOne(ctx, nil, id, 0)
	if store.IsNotFound(err) {
		ds.log.Warn("attempt to delete non-existent entity", "entity", entity, "id", id)
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return false, nil
}
