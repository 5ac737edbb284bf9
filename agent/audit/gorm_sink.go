package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/BaSui01/agentguard/internal/database"
	"gorm.io/gorm"
)

// recordRow is the relational form of a Record.
// TriggeredValidators and Metadata hold JSON documents.
type recordRow struct {
	ID                  string    `gorm:"primaryKey;size:64"`
	Timestamp           time.Time `gorm:"index"`
	RunID               string    `gorm:"index;size:64"`
	ActorKey            string    `gorm:"index;size:255"`
	EventType           string    `gorm:"index;size:32"`
	Input               string    `gorm:"type:text"`
	Output              string    `gorm:"type:text"`
	ToolArgs            string    `gorm:"type:text"`
	Status              string    `gorm:"size:32"`
	DurationMs          int64
	ErrorMessage        string `gorm:"type:text"`
	TriggeredValidators string `gorm:"size:1024"`
	Metadata            string `gorm:"type:text"`
}

func (recordRow) TableName() string { return "guard_audit_records" }

func toRow(r *Record) (*recordRow, error) {
	row := &recordRow{
		ID:                  r.ID,
		Timestamp:           r.Timestamp,
		RunID:               r.RunID,
		ActorKey:            r.ActorKey,
		EventType:           string(r.EventType),
		Input:               r.Input,
		Output:              r.Output,
		ToolArgs:            r.ToolArgs,
		Status:              string(r.Status),
		DurationMs:          r.DurationMs,
		ErrorMessage:        r.ErrorMessage,
	}
	if len(r.TriggeredValidators) > 0 {
		data, err := json.Marshal(r.TriggeredValidators)
		if err != nil {
			return nil, fmt.Errorf("marshal triggered validators: %w", err)
		}
		row.TriggeredValidators = string(data)
	}
	if len(r.Metadata) > 0 {
		data, err := json.Marshal(r.Metadata)
		if err != nil {
			return nil, fmt.Errorf("marshal metadata: %w", err)
		}
		row.Metadata = string(data)
	}
	return row, nil
}

func (row *recordRow) record() (*Record, error) {
	r := &Record{
		ID:           row.ID,
		Timestamp:    row.Timestamp,
		RunID:        row.RunID,
		ActorKey:     row.ActorKey,
		EventType:    EventType(row.EventType),
		Input:        row.Input,
		Output:       row.Output,
		ToolArgs:     row.ToolArgs,
		Status:       Status(row.Status),
		DurationMs:   row.DurationMs,
		ErrorMessage: row.ErrorMessage,
	}
	if row.TriggeredValidators != "" {
		if err := json.Unmarshal([]byte(row.TriggeredValidators), &r.TriggeredValidators); err != nil {
			return nil, fmt.Errorf("decode triggered validators of record %s: %w", row.ID, err)
		}
	}
	if row.Metadata != "" {
		if err := json.Unmarshal([]byte(row.Metadata), &r.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata of record %s: %w", row.ID, err)
		}
	}
	return r, nil
}

// GormSink persists records to a relational table through a pool manager.
type GormSink struct {
	pool *database.PoolManager
}

// GormSinkOption configures NewGormSink.
type GormSinkOption func(*gormSinkOptions)

type gormSinkOptions struct {
	skipAutoMigrate bool
}

// SkipAutoMigrate leaves the audit table schema to versioned migrations.
func SkipAutoMigrate() GormSinkOption {
	return func(o *gormSinkOptions) { o.skipAutoMigrate = true }
}

// NewGormSink migrates the audit table and returns a sink writing to it.
func NewGormSink(ctx context.Context, pool *database.PoolManager, opts ...GormSinkOption) (*GormSink, error) {
	if pool == nil {
		return nil, fmt.Errorf("audit gorm sink: nil pool")
	}
	var o gormSinkOptions
	for _, opt := range opts {
		opt(&o)
	}
	if !o.skipAutoMigrate {
		if err := pool.DB().WithContext(ctx).AutoMigrate(&recordRow{}); err != nil {
			return nil, fmt.Errorf("migrate audit table: %w", err)
		}
	}
	return &GormSink{pool: pool}, nil
}

// Name implements Sink.
func (s *GormSink) Name() string { return "database" }

// Write implements Sink.
func (s *GormSink) Write(ctx context.Context, r *Record) error {
	row, err := toRow(r)
	if err != nil {
		return err
	}
	return s.pool.WithTransaction(ctx, func(tx *gorm.DB) error {
		return tx.Create(row).Error
	})
}

// Query reads persisted records matching filter, newest first.
func (s *GormSink) Query(ctx context.Context, filter *Filter) ([]*Record, error) {
	q := s.pool.DB().WithContext(ctx).Model(&recordRow{})
	if filter != nil {
		if filter.ActorKey != "" {
			q = q.Where("actor_key = ?", filter.ActorKey)
		}
		if filter.RunID != "" {
			q = q.Where("run_id = ?", filter.RunID)
		}
		if len(filter.EventTypes) > 0 {
			types := make([]string, len(filter.EventTypes))
			for i, e := range filter.EventTypes {
				types[i] = string(e)
			}
			q = q.Where("event_type IN ?", types)
		}
		if len(filter.Statuses) > 0 {
			statuses := make([]string, len(filter.Statuses))
			for i, st := range filter.Statuses {
				statuses[i] = string(st)
			}
			q = q.Where("status IN ?", statuses)
		}
		if !filter.Since.IsZero() {
			q = q.Where("timestamp >= ?", filter.Since)
		}
		if !filter.Until.IsZero() {
			q = q.Where("timestamp <= ?", filter.Until)
		}
	}

	var rows []recordRow
	if err := q.Order("timestamp DESC").Limit(filter.limit()).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query audit records: %w", err)
	}

	out := make([]*Record, len(rows))
	for i := range rows {
		r, err := rows[i].record()
		if err != nil {
			return nil, err
		}
		out[i] = r
	}
	return out, nil
}

// Close implements Sink. The pool is owned by the caller.
func (s *GormSink) Close() error { return nil }
