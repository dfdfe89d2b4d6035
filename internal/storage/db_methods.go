package storage

import (
	"context"
	"time"

	"whisperchat/backend/internal/models"
)

// DefaultHistoryLimit caps ListAuditRecords when no limit is given.
const DefaultHistoryLimit = 50

// AuditFilter narrows ListAuditRecords. Zero fields match everything.
type AuditFilter struct {
	// User matches records sent by this handle or display name, or received by this display name.
	User  string
	Kind  string
	Group string
	Since time.Time
	Limit int
}

// SaveAuditRecord stores a record in PostgreSQL.
func (s *Service) SaveAuditRecord(ctx context.Context, rec *models.AuditRecord) error {
	return s.DB.WithContext(ctx).Create(rec).Error
}

// ListAuditRecords returns the newest matching records first.
func (s *Service) ListAuditRecords(ctx context.Context, filter AuditFilter) ([]models.AuditRecord, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	q := s.DB.WithContext(ctx).Model(&models.AuditRecord{})
	if filter.User != "" {
		q = q.Where("sender_id = ? OR sender_name = ? OR ? = ANY(recipients)", filter.User, filter.User, filter.User)
	}
	if filter.Kind != "" {
		q = q.Where("kind = ?", filter.Kind)
	}
	if filter.Group != "" {
		q = q.Where("group_name = ?", filter.Group)
	}
	if !filter.Since.IsZero() {
		q = q.Where("sent_at >= ?", filter.Since)
	}

	var records []models.AuditRecord
	if err := q.Order("sent_at desc").Limit(limit).Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// DeleteAuditRecordsBefore removes records older than before and returns how many were removed.
func (s *Service) DeleteAuditRecordsBefore(ctx context.Context, before time.Time) (int64, error) {
	result := s.DB.WithContext(ctx).Where("sent_at < ?", before).Delete(&models.AuditRecord{})
	return result.RowsAffected, result.Error
}
