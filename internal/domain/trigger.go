package domain

import (
	"strings"
	"time"
)

// TriggerEvent is grounded on original_source/database_object3.py's
// TriggerEvent dataclass, including its "exactly one of triggered_by_*"
// invariant enforced in both create and serialize/deserialize there.
type TriggerEvent struct {
	ID                    string    `json:"id"`
	Ver                   int64     `json:"-"`
	JobID                 string    `json:"jobId"`
	TriggeredOn           time.Time `json:"triggeredOn"`
	TriggeredByScheduleID string    `json:"triggeredByScheduleId,omitempty"`
	TriggeredByUserID     string    `json:"triggeredByUserId,omitempty"`
}

func (t TriggerEvent) TypeTag() string { return "TriggerEvent" }

func (t TriggerEvent) Validate() []error {
	var errs []error
	if strings.TrimSpace(t.JobID) == "" {
		errs = append(errs, errField("jobId", "must not be empty"))
	}
	bySchedule := t.TriggeredByScheduleID != ""
	byUser := t.TriggeredByUserID != ""
	if bySchedule == byUser {
		errs = append(errs, ErrTriggerEventAmbiguous)
	}
	return errs
}

// NewScheduledTrigger builds a TriggerEvent fired by the Scheduler (C5).
func NewScheduledTrigger(jobID, scheduleID string, now time.Time) TriggerEvent {
	return TriggerEvent{JobID: jobID, TriggeredByScheduleID: scheduleID, TriggeredOn: now}
}

// NewManualTrigger builds a TriggerEvent fired by triggerJob (§4.5).
func NewManualTrigger(jobID, userID string, now time.Time) TriggerEvent {
	return TriggerEvent{JobID: jobID, TriggeredByUserID: userID, TriggeredOn: now}
}

// CancellationEvent is grounded on original_source/database_object3.py's
// CancellationEvent dataclass (execution_id, cancelled_on, cancelled_by_user_id).
type CancellationEvent struct {
	ID                string    `json:"id"`
	Ver               int64     `json:"-"`
	ExecutionID       string    `json:"executionId"`
	CancelledOn       time.Time `json:"cancelledOn"`
	CancelledByUserID string    `json:"cancelledByUserId"`
}

func (c CancellationEvent) TypeTag() string { return "CancellationEvent" }

func (c CancellationEvent) Validate() []error {
	var errs []error
	if strings.TrimSpace(c.ExecutionID) == "" {
		errs = append(errs, errField("executionId", "must not be empty"))
	}
	return errs
}
