package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// ExecutionState is the state machine driven by the Worker Thread (C8),
// per spec.md §4.8.
type ExecutionState string

const (
	ExecutionTriggered ExecutionState = "TRIGGERED"
	ExecutionQueued    ExecutionState = "QUEUED"
	ExecutionStarted   ExecutionState = "STARTED"
	ExecutionCompleted ExecutionState = "COMPLETED"
	ExecutionError     ExecutionState = "ERROR"
	ExecutionCancelled ExecutionState = "CANCELLED"
)

// JobSnapshot is the immutable copy of a Job (plus its Tasks and Tags)
// taken at trigger time, so deactivating or editing a Job after trigger
// cannot retroactively change work already admitted — per SPEC_FULL.md
// §9's resolution of the "inactive Job" Open Question. Tags ride along
// because the "http" built-in action (SPEC_FULL.md §4.8) reads its
// url/method/header configuration from them.
type JobSnapshot struct {
	Job   Job    `json:"job"`
	Tasks []Task `json:"tasks"`
	Tags  []Tag  `json:"tags"`
}

// Tag looks up the first Tag named name in the snapshot, case-insensitive,
// matching the casefolded storage semantics of Tag.normalized.
func (s JobSnapshot) Tag(name string) (string, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, t := range s.Tags {
		if strings.ToLower(t.Name) == name {
			return t.Value, true
		}
	}
	return "", false
}

// Execution is grounded on original_source/database_object3.py's
// Execution dataclass. errorKind/errorMessage replace its single
// error_serialized field, split per spec.md §4.8's {VALIDATION,TASK,OTHER}
// error-kind enumeration.
type Execution struct {
	ID                  string         `json:"id"`
	Ver                 int64          `json:"-"`
	SystemID            string         `json:"systemId"`
	TriggerEventID      string         `json:"triggerEventId"`
	State               ExecutionState `json:"state"`
	ExecutingTaskID     string         `json:"executingTaskId,omitempty"`
	StartedOn           *time.Time     `json:"startedOn,omitempty"`
	CompletedOn         *time.Time     `json:"completedOn,omitempty"`
	CancellationEventID string         `json:"cancellationEventId,omitempty"`
	ErrorKind           ErrorKind      `json:"errorKind,omitempty"`
	ErrorMessage        string         `json:"errorMessage,omitempty"`
	JobSnapshot         JobSnapshot    `json:"jobSnapshot"`
	WorkerThreadID      string         `json:"workerThreadId,omitempty"`
}

func (e Execution) TypeTag() string { return "Execution" }

func (e Execution) Validate() []error {
	var errs []error
	if strings.TrimSpace(e.SystemID) == "" {
		errs = append(errs, errField("systemId", "must not be empty"))
	}
	if strings.TrimSpace(e.TriggerEventID) == "" {
		errs = append(errs, errField("triggerEventId", "must not be empty"))
	}
	switch e.State {
	case ExecutionTriggered, ExecutionQueued, ExecutionStarted, ExecutionCompleted, ExecutionError, ExecutionCancelled:
	default:
		errs = append(errs, errField("state", "unrecognized execution state "+string(e.State)))
	}
	return errs
}

// MarshalSnapshot is a convenience used by the Scheduler/triggerJob path to
// freeze a Job+Tasks+Tags triple into the JSON the Execution stores.
func MarshalSnapshot(job Job, tasks []Task, tags []Tag) (JobSnapshot, error) {
	snap := JobSnapshot{Job: job, Tasks: tasks, Tags: tags}
	// Round-trip through JSON once to catch anything unmarshalable early,
	// matching the codec's own tolerant encode/decode path (C2).
	if _, err := json.Marshal(snap); err != nil {
		return JobSnapshot{}, err
	}
	return snap, nil
}

// ExecutionServer is grounded on original_source/database_object3.py's
// ExecutionServer dataclass (system_id, started_on, heartbeat_on).
type ExecutionServer struct {
	ID          string    `json:"id"`
	Ver         int64     `json:"-"`
	SystemID    string    `json:"systemId"`
	StartedOn   time.Time `json:"startedOn"`
	HeartbeatOn time.Time `json:"heartbeatOn"`
}

func (e ExecutionServer) TypeTag() string { return "ExecutionServer" }

func (e ExecutionServer) Validate() []error {
	var errs []error
	if strings.TrimSpace(e.SystemID) == "" {
		errs = append(errs, errField("systemId", "must not be empty"))
	}
	return errs
}

// IsStale reports whether this server's heartbeat is older than threshold,
// per spec.md §4.7 ("a heartbeat older than 30 s marks the entity stale").
func (e ExecutionServer) IsStale(now time.Time, threshold time.Duration) bool {
	return now.Sub(e.HeartbeatOn) > threshold
}

// WorkerThread is grounded on original_source/database_object3.py's
// ExecutionServerThread dataclass (execution_server_id, started_on,
// heartbeat_on, execution_id).
type WorkerThread struct {
	ID                string    `json:"id"`
	Ver               int64     `json:"-"`
	ExecutionServerID string    `json:"executionServerId"`
	StartedOn         time.Time `json:"startedOn"`
	HeartbeatOn       time.Time `json:"heartbeatOn"`
	ExecutionID       string    `json:"executionId,omitempty"`
}

func (w WorkerThread) TypeTag() string { return "WorkerThread" }

func (w WorkerThread) Validate() []error {
	var errs []error
	if strings.TrimSpace(w.ExecutionServerID) == "" {
		errs = append(errs, errField("executionServerId", "must not be empty"))
	}
	return errs
}

// IsStale reports whether this worker's heartbeat is older than threshold.
func (w WorkerThread) IsStale(now time.Time, threshold time.Duration) bool {
	return now.Sub(w.HeartbeatOn) > threshold
}
