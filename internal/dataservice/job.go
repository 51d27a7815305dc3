package dataservice

import (
	"context"
	"sort"

	"github.com/relaydb/jobcore/internal/codec"
	"github.com/relaydb/jobcore/internal/domain"
	"github.com/relaydb/jobcore/internal/store"
)

// SaveJob is grounded on original_source/data_service.py's
// DataServiceJob.save_job.
func (ds *DataService) SaveJob(ctx context.Context, job domain.Job) (domain.Job, error) {
	if errs := job.Validate(); len(errs) > 0 {
		return domain.Job{}, domain.Invalid("Job", errs)
	}
	row, err := codec.Encode(job, nil)
	if err != nil {
		return domain.Job{}, err
	}
	saved, err := upsertRow(ctx, ds.jobs, job.ID, job.Ver, row)
	if err != nil {
		return domain.Job{}, err
	}
	return ds.decodeJob(saved)
}

func (ds *DataService) decodeJob(row store.Row) (domain.Job, error) {
	out, err := codec.Decode[domain.Job](ds.codec, row)
	if err != nil {
		return domain.Job{}, err
	}
	out.ID, out.Ver = row.ID, row.Ver
	return out, nil
}

// DeleteJob is grounded on DataServiceJob.delete_job: a no-op (logged) if
// the job no longer exists.
func (ds *DataService) DeleteJob(ctx context.Context, id string, ver int64) error {
	noop, err := ds.deleteCheckNotExist(ctx, ds.jobs, "Job", id)
	if err != nil || noop {
		return err
	}
	return ds.jobs.Delete(ctx, nil, []store.IDVer{{ID: id, Ver: ver}})
}

// GetJob fetches one Job by id.
func (ds *DataService) GetJob(ctx context.Context, id string) (domain.Job, error) {
	row, err := ds.jobs.SelectOne(ctx, nil, id, store.ColAll)
	if err != nil {
		return domain.Job{}, err
	}
	return ds.decodeJob(row)
}

// ListJobs is grounded on DataServiceJob.get_jobs.
func (ds *DataService) ListJobs(ctx context.Context) ([]domain.Job, error) {
	rows, err := ds.jobs.SelectAll(ctx, nil, store.ColAll)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Job, 0, len(rows))
	for _, r := range rows {
		j, err := ds.decodeJob(r)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, nil
}

// SaveTask persists one Task of a Job.
func (ds *DataService) SaveTask(ctx context.Context, task domain.Task) (domain.Task, error) {
	if errs := task.Validate(); len(errs) > 0 {
		return domain.Task{}, domain.Invalid("Task", errs)
	}
	row, err := codec.Encode(task, nil)
	if err != nil {
		return domain.Task{}, err
	}
	saved, err := upsertRow(ctx, ds.tasks, task.ID, task.Ver, row)
	if err != nil {
		return domain.Task{}, err
	}
	out, err := codec.Decode[domain.Task](ds.codec, saved)
	if err != nil {
		return domain.Task{}, err
	}
	out.ID, out.Ver = saved.ID, saved.Ver
	return out, nil
}

// DeleteTask removes one Task.
func (ds *DataService) DeleteTask(ctx context.Context, id string, ver int64) error {
	noop, err := ds.deleteCheckNotExist(ctx, ds.tasks, "Task", id)
	if err != nil || noop {
		return err
	}
	return ds.tasks.Delete(ctx, nil, []store.IDVer{{ID: id, Ver: ver}})
}

// ListTasksForJob returns every Task belonging to jobID, ordered ascending
// by step, per spec.md §8's "invokes all n Tasks exactly once, in
// ascending step".
func (ds *DataService) ListTasksForJob(ctx context.Context, jobID string) ([]domain.Task, error) {
	// jobId lives in dlarge, not dmedium, so filtering happens after decode
	// rather than via a store.Predicate.
	rows, err := ds.tasks.SelectAll(ctx, nil, store.ColAll)
	if err != nil {
		return nil, err
	}
	var out []domain.Task
	for _, r := range rows {
		t, err := codec.Decode[domain.Task](ds.codec, r)
		if err != nil {
			return nil, err
		}
		t.ID, t.Ver = r.ID, r.Ver
		if t.JobID == jobID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Step < out[j].Step })
	return out, nil
}

// SaveSchedule persists one Schedule of a Job.
func (ds *DataService) SaveSchedule(ctx context.Context, sched domain.Schedule) (domain.Schedule, error) {
	if errs := sched.Validate(); len(errs) > 0 {
		return domain.Schedule{}, domain.Invalid("Schedule", errs)
	}
	row, err := codec.Encode(sched, nil)
	if err != nil {
		return domain.Schedule{}, err
	}
	saved, err := upsertRow(ctx, ds.schedules, sched.ID, sched.Ver, row)
	if err != nil {
		return domain.Schedule{}, err
	}
	out, err := codec.Decode[domain.Schedule](ds.codec, saved)
	if err != nil {
		return domain.Schedule{}, err
	}
	out.ID, out.Ver = saved.ID, saved.Ver
	return out, nil
}

// DeleteSchedule removes one Schedule.
func (ds *DataService) DeleteSchedule(ctx context.Context, id string, ver int64) error {
	noop, err := ds.deleteCheckNotExist(ctx, ds.schedules, "Schedule", id)
	if err != nil || noop {
		return err
	}
	return ds.schedules.Delete(ctx, nil, []store.IDVer{{ID: id, Ver: ver}})
}

// ListActiveSchedules returns every active Schedule across every Job,
// consumed by the Scheduler loop (C5) step 1.
func (ds *DataService) ListActiveSchedules(ctx context.Context) ([]domain.Schedule, error) {
	rows, err := ds.schedules.SelectAll(ctx, nil, store.ColAll)
	if err != nil {
		return nil, err
	}
	var out []domain.Schedule
	for _, r := range rows {
		s, err := codec.Decode[domain.Schedule](ds.codec, r)
		if err != nil {
			return nil, err
		}
		s.ID, s.Ver = r.ID, r.Ver
		if s.IsActive {
			out = append(out, s)
		}
	}
	return out, nil
}

// SaveTag persists one Tag of a Job.
func (ds *DataService) SaveTag(ctx context.Context, tag domain.Tag) (domain.Tag, error) {
	if errs := tag.Validate(); len(errs) > 0 {
		return domain.Tag{}, domain.Invalid("Tag", errs)
	}
	row, err := codec.Encode(tag, nil)
	if err != nil {
		return domain.Tag{}, err
	}
	saved, err := upsertRow(ctx, ds.tags, tag.ID, tag.Ver, row)
	if err != nil {
		return domain.Tag{}, err
	}
	out, err := codec.Decode[domain.Tag](ds.codec, saved)
	if err != nil {
		return domain.Tag{}, err
	}
	out.ID, out.Ver = saved.ID, saved.Ver
	return out, nil
}

// ListTagsForJob returns every Tag for jobID, deduped and sorted.
func (ds *DataService) ListTagsForJob(ctx context.Context, jobID string) ([]domain.Tag, error) {
	rows, err := ds.tags.SelectAll(ctx, nil, store.ColAll)
	if err != nil {
		return nil, err
	}
	var out []domain.Tag
	for _, r := range rows {
		tg, err := codec.Decode[domain.Tag](ds.codec, r)
		if err != nil {
			return nil, err
		}
		if tg.JobID == jobID {
			out = append(out, tg)
		}
	}
	return domain.DedupeTags(out), nil
}
