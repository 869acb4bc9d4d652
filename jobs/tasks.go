package jobs

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLedgerIntegrityScan verifies the accounting equation per tenant.
	TaskLedgerIntegrityScan = "ledger:integrity_scan"
)

// IntegrityScanPayload selects the scan scope. A nil tenant scans every
// tenant with journal activity.
type IntegrityScanPayload struct {
	TenantID *uuid.UUID `json:"tenant_id,omitempty"`
}

// NewIntegrityScanTask constructs an Asynq task.
func NewIntegrityScanTask(payload IntegrityScanPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerIntegrityScan, data), nil
}
