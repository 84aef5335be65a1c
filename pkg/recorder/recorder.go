// Package recorder journals every resolved client transaction to a
// database, attached as an interceptor. The journal answers "what did we
// call, when, and how did it go" without touching the request path.
package recorder

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-hclog"
	"gorm.io/gorm"

	"github.com/hashicorp-forge/courier/pkg/client"
)

// Config assembles a Recorder.
type Config struct {
	// DB is an open connection; see Open. Required.
	DB *gorm.DB

	// Service labels every record, usually the description's ServiceID.
	Service string

	Logger hclog.Logger
}

// Recorder persists call records and serves queries over them.
type Recorder struct {
	db      *gorm.DB
	service string
	log     hclog.Logger
}

// New migrates the journal schema and returns a Recorder.
func New(cfg Config) (*Recorder, error) {
	if cfg.DB == nil {
		return nil, fmt.Errorf("recorder requires a database connection")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	if err := cfg.DB.AutoMigrate(&CallRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate call records: %w", err)
	}
	return &Recorder{
		db:      cfg.DB,
		service: cfg.Service,
		log:     logger.Named("recorder"),
	}, nil
}

// Interceptor returns the client interceptor that journals each
// transaction after it resolves. A journaling failure is logged, never
// surfaced to the call.
func (r *Recorder) Interceptor() client.Interceptor {
	return client.InterceptorFuncs{
		OnAfterResolve: func(ctx context.Context, tx *client.Transaction) {
			rec := newCallRecord(r.service, tx)
			if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
				r.log.Warn("failed to journal call",
					"operation", rec.Operation,
					"transaction_id", rec.TransactionID,
					"error", err,
				)
			}
		},
	}
}

// Recent returns the newest records, newest first.
func (r *Recorder) Recent(ctx context.Context, limit int) ([]CallRecord, error) {
	var records []CallRecord
	err := r.db.WithContext(ctx).
		Order("id DESC").
		Limit(limit).
		Find(&records).Error
	return records, err
}

// ByOperation returns the newest records for one operation.
func (r *Recorder) ByOperation(ctx context.Context, operation string, limit int) ([]CallRecord, error) {
	var records []CallRecord
	err := r.db.WithContext(ctx).
		Where("operation = ?", operation).
		Order("id DESC").
		Limit(limit).
		Find(&records).Error
	return records, err
}

// Failures returns the newest failed records.
func (r *Recorder) Failures(ctx context.Context, limit int) ([]CallRecord, error) {
	var records []CallRecord
	err := r.db.WithContext(ctx).
		Where("success = ?", false).
		Order("id DESC").
		Limit(limit).
		Find(&records).Error
	return records, err
}

// Purge deletes records older than the retention window and reports how
// many went away.
func (r *Recorder) Purge(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)
	res := r.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&CallRecord{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to purge call records: %w", res.Error)
	}
	return res.RowsAffected, nil
}
