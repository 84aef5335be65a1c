package recorder

import (
	"errors"
	"time"

	"github.com/hashicorp-forge/courier/pkg/client"
)

// CallRecord is one journaled transaction: who was called, what came
// back, and how long it took. Error fields are empty on success.
type CallRecord struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`

	// TransactionID ties the record back to the client-side transaction.
	TransactionID string `gorm:"type:varchar(64);not null;uniqueIndex:idx_call_records_txid" json:"transactionId"`

	Service   string `gorm:"type:varchar(100);not null;index:idx_call_records_service" json:"service"`
	Operation string `gorm:"type:varchar(200);not null;index:idx_call_records_operation" json:"operation"`
	Target    string `gorm:"type:varchar(500)" json:"target"`

	StatusCode int    `json:"statusCode"`
	RequestID  string `gorm:"type:varchar(100)" json:"requestId,omitempty"`
	Attempts   int    `json:"attempts"`

	Success      bool   `gorm:"index:idx_call_records_success" json:"success"`
	ErrorKind    string `gorm:"type:varchar(20)" json:"errorKind,omitempty"`
	ErrorCode    string `gorm:"type:varchar(200);index:idx_call_records_error_code" json:"errorCode,omitempty"`
	ErrorMessage string `gorm:"type:text" json:"errorMessage,omitempty"`

	StartedAt  time.Time `gorm:"index:idx_call_records_started" json:"startedAt"`
	DurationMS int64     `json:"durationMs"`
}

// TableName specifies the table name.
func (CallRecord) TableName() string {
	return "call_records"
}

// newCallRecord flattens a resolved transaction into a record.
func newCallRecord(service string, tx *client.Transaction) CallRecord {
	rec := CallRecord{
		TransactionID: tx.ID,
		Service:       service,
		Operation:     tx.Operation.Name,
		Success:       tx.Err == nil,
		StartedAt:     tx.StartedAt,
		DurationMS:    tx.Duration.Milliseconds(),
	}
	if rec.Operation == "" {
		rec.Operation = tx.Command.Name
	}
	if tx.Request != nil && tx.Request.URL != nil {
		rec.Target = tx.Request.URL.Host
	}
	if tx.Response != nil {
		rec.StatusCode = tx.Response.StatusCode
		rec.RequestID = tx.Response.RequestID
		rec.Attempts = tx.Response.Attempts
	}

	var oe *client.OperationError
	if errors.As(tx.Err, &oe) {
		rec.ErrorKind = oe.Kind.String()
		rec.ErrorCode = oe.Code
		rec.ErrorMessage = oe.Message
		if rec.Target == "" {
			rec.Target = oe.Target
		}
	} else if tx.Err != nil {
		rec.ErrorKind = "unknown"
		rec.ErrorMessage = tx.Err.Error()
	}
	return rec
}
