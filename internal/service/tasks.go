package service

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

// Task types
const (
	// TaskTypeNotify fans an event out to the job's realtime topic
	TaskTypeNotify = "notify:event"

	// TaskTypeReconcile repairs drifted total_bids counters
	TaskTypeReconcile = "jobs:reconcile"
)

// Event names carried by notify tasks
const (
	EventMessageReceived = "messageReceived"
	EventBidAccepted     = "bidAccepted"
	EventJobCompleted    = "jobCompleted"
	EventJobRemoved      = "jobRemoved"
)

// NotifyPayload is the wire form of a notify task
type NotifyPayload struct {
	JobID string          `json:"jobId"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// NewNotifyTask builds a notify task for the given job topic
func NewNotifyTask(jobID, event string, data interface{}) (*asynq.Task, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event data: %w", err)
	}
	payload, err := json.Marshal(NotifyPayload{JobID: jobID, Event: event, Data: raw})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal notify payload: %w", err)
	}
	return asynq.NewTask(TaskTypeNotify, payload), nil
}

// NewReconcileTask builds the scheduled counter-repair task
func NewReconcileTask() *asynq.Task {
	return asynq.NewTask(TaskTypeReconcile, nil)
}
