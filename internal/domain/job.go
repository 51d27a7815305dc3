package domain

import (
	"sort"
	"strings"
)

// Job is grounded on original_source/database_object3.py's Job dataclass
// (system_id, is_active, name). Its Tasks/Schedules/Tags are separate Rows
// keyed by jobId — assembled by the Data Service, not embedded in the
// Job's own payload, so the codec's struct↔Row mapping stays one entity
// per Row per spec.md §3.
type Job struct {
	ID       string `json:"id"`
	Ver      int64  `json:"-"`
	SystemID string `json:"systemId"`
	Name     string `json:"name"`
	IsActive bool   `json:"isActive"`
}

func (j Job) TypeTag() string { return "Job" }

func (j Job) Validate() []error {
	var errs []error
	if strings.TrimSpace(j.Name) == "" {
		errs = append(errs, errField("name", "must not be empty"))
	}
	if strings.TrimSpace(j.SystemID) == "" {
		errs = append(errs, errField("systemId", "must not be empty"))
	}
	return errs
}

// Task is grounded on original_source/database_object3.py's Task dataclass
// (job_id, is_active, step, action).
type Task struct {
	ID       string `json:"id"`
	Ver      int64  `json:"-"`
	JobID    string `json:"jobId"`
	Step     int    `json:"step"`
	Action   string `json:"action"`
	IsActive bool   `json:"isActive"`
	Name     string `json:"name,omitempty"`
}

func (t Task) TypeTag() string { return "Task" }

func (t Task) Validate() []error {
	var errs []error
	if strings.TrimSpace(t.JobID) == "" {
		errs = append(errs, errField("jobId", "must not be empty"))
	}
	if strings.TrimSpace(t.Action) == "" {
		errs = append(errs, ErrTaskActionEmpty)
	}
	if t.Step < 0 {
		errs = append(errs, errField("step", "must be >= 0"))
	}
	return errs
}

// ReindexTasks re-numbers tasks to be 0-based and dense within a Job,
// preserving their relative order, per spec.md §4.3's "re-indexing on save
// is permitted" allowance.
func ReindexTasks(tasks []Task) []Task {
	out := make([]Task, len(tasks))
	copy(out, tasks)
	for i := range out {
		out[i].Step = i
	}
	return out
}

// Schedule is grounded on original_source/database_object3.py's
// JobSchedule dataclass (job_id, is_active, cron).
type Schedule struct {
	ID       string `json:"id"`
	Ver      int64  `json:"-"`
	JobID    string `json:"jobId"`
	Cron     string `json:"cron"`
	IsActive bool   `json:"isActive"`
}

func (s Schedule) TypeTag() string { return "Schedule" }

func (s Schedule) Validate() []error {
	var errs []error
	if strings.TrimSpace(s.JobID) == "" {
		errs = append(errs, errField("jobId", "must not be empty"))
	}
	if strings.TrimSpace(s.Cron) == "" {
		errs = append(errs, ErrScheduleCronEmpty)
	}
	return errs
}

// Tag is grounded on original_source/database_object3.py's JobTag
// dataclass (job_id, name, value). Per spec.md §4.3, (name, value) are
// trimmed and casefolded and duplicates within a Job collapse to set
// semantics.
type Tag struct {
	ID    string `json:"id"`
	Ver   int64  `json:"-"`
	JobID string `json:"jobId"`
	Name  string `json:"name"`
	Value string `json:"value"`
}

func (t Tag) TypeTag() string { return "Tag" }

func (t Tag) normalized() Tag {
	return Tag{
		ID:    t.ID,
		Ver:   t.Ver,
		JobID: t.JobID,
		Name:  strings.ToLower(strings.TrimSpace(t.Name)),
		Value: strings.ToLower(strings.TrimSpace(t.Value)),
	}
}

func (t Tag) Validate() []error {
	var errs []error
	if strings.TrimSpace(t.Name) == "" {
		errs = append(errs, errField("name", "must not be empty"))
	}
	if strings.TrimSpace(t.JobID) == "" {
		errs = append(errs, errField("jobId", "must not be empty"))
	}
	return errs
}

// DedupeTags normalizes, de-duplicates (by name, value), and sorts tags by
// name then value, per spec.md §4.3.
func DedupeTags(tags []Tag) []Tag {
	seen := map[[2]string]bool{}
	var out []Tag
	for _, t := range tags {
		n := t.normalized()
		key := [2]string{n.Name, n.Value}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Value < out[j].Value
	})
	return out
}
