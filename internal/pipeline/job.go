// Package pipeline contains the core dispatch components of the service: the
// job payload, and the task logic that resolves a topic to its channel
// bindings and pushes the message through each transport.
package pipeline

import (
	"encoding/json"
	"fmt"
)

// DispatchJob is the payload carried through the queue. TopicID is always
// set; NotificationID pins the job to a single binding, which is how the API
// fans out one request into one job per binding. An empty NotificationID
// means "resolve all bindings at execution time".
type DispatchJob struct {
	TopicID        string `json:"topic_id"`
	NotificationID string `json:"notification_id,omitempty"`
	Message        string `json:"message"`
}

// Encode serializes the job for the queue backend.
func (j DispatchJob) Encode() ([]byte, error) {
	return json.Marshal(j)
}

// DecodeDispatchJob safely unmarshals a raw queue payload. A payload that
// does not decode can never execute, so callers drop it rather than retry.
func DecodeDispatchJob(payload []byte) (DispatchJob, error) {
	var j DispatchJob
	if err := json.Unmarshal(payload, &j); err != nil {
		return DispatchJob{}, fmt.Errorf("failed to unmarshal dispatch job: %w", err)
	}
	if j.TopicID == "" {
		return DispatchJob{}, fmt.Errorf("dispatch job has no topic_id")
	}
	return j, nil
}
