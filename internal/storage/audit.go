package storage

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// AuditQuery 用于查询审计记录的过滤条件。
//
// 所有字段都是可选过滤条件，零值表示不参与过滤；时间范围作用于 CreatedAt。
type AuditQuery struct {
	// TraceID 精确匹配请求 ID。
	TraceID string
	// Action 精确匹配操作名。
	Action string
	// TargetID 精确匹配被操作记录。
	TargetID string
	// From/To 过滤 CreatedAt 区间：[From, To]（两端包含）。
	From *time.Time
	To   *time.Time
	// Limit 限制返回条数；<=0 使用默认值。
	Limit int
	// Desc 按写入顺序倒序返回（优先返回最新记录）。
	Desc bool
}

func (s *Storage) InsertAuditRecord(ctx context.Context, rec *AuditRecord) error {
	if s == nil || s.db == nil {
		return errors.New("storage not initialized")
	}
	if rec == nil {
		return errors.New("audit record is nil")
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("insert audit record: %w", err)
	}
	return nil
}

func (s *Storage) QueryAuditRecords(ctx context.Context, q AuditQuery) ([]AuditRecord, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("storage not initialized")
	}

	db := s.db.WithContext(ctx).Model(&AuditRecord{})
	if q.TraceID != "" {
		db = db.Where("trace_id = ?", q.TraceID)
	}
	if q.Action != "" {
		db = db.Where("action = ?", q.Action)
	}
	if q.TargetID != "" {
		db = db.Where("target_id = ?", q.TargetID)
	}
	if q.From != nil {
		db = db.Where("created_at >= ?", *q.From)
	}
	if q.To != nil {
		db = db.Where("created_at <= ?", *q.To)
	}
	if q.Desc {
		db = db.Order("id DESC")
	} else {
		db = db.Order("id ASC")
	}
	db = db.Limit(normalizeLimit(q.Limit))

	var out []AuditRecord
	if err := db.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("query audit records: %w", err)
	}
	return out, nil
}

func (s *Storage) CountAuditRecords(ctx context.Context) (int64, error) {
	if s == nil || s.db == nil {
		return 0, errors.New("storage not initialized")
	}
	var count int64
	if err := s.db.WithContext(ctx).Model(&AuditRecord{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count audit records: %w", err)
	}
	return count, nil
}

// DeleteAuditRecordsBeforeLimited 删除早于 before 的最旧记录，单次最多 limit 条。
func (s *Storage) DeleteAuditRecordsBeforeLimited(ctx context.Context, before time.Time, limit int) (int64, error) {
	if s == nil || s.db == nil {
		return 0, errors.New("storage not initialized")
	}

	limit = normalizeDeleteLimit(limit)

	var ids []uint64
	db := s.db.WithContext(ctx).Model(&AuditRecord{}).
		Select("id").
		Where("created_at < ?", before).
		Order("id ASC").
		Limit(limit)
	if err := db.Find(&ids).Error; err != nil {
		return 0, fmt.Errorf("select audit record ids: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	res := s.db.WithContext(ctx).Where("id IN ?", ids).Delete(&AuditRecord{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete audit records: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// DeleteAuditRecordsKeepLatest 只保留最新的 keep 条审计记录，返回删除条数。
func (s *Storage) DeleteAuditRecordsKeepLatest(ctx context.Context, keep int) (int64, error) {
	var total int64
	for {
		affected, err := s.DeleteAuditRecordsKeepLatestLimited(ctx, keep, maxDeleteLimit)
		if err != nil {
			return total, err
		}
		if affected == 0 {
			return total, nil
		}
		total += affected
	}
}

// DeleteAuditRecordsKeepLatestLimited 删除最新 keep 条之外的最旧记录，单次最多 limit 条。
func (s *Storage) DeleteAuditRecordsKeepLatestLimited(ctx context.Context, keep int, limit int) (int64, error) {
	if s == nil || s.db == nil {
		return 0, errors.New("storage not initialized")
	}
	if keep < 0 {
		return 0, errors.New("keep must be >= 0")
	}

	limit = normalizeDeleteLimit(limit)

	var count int64
	if err := s.db.WithContext(ctx).Model(&AuditRecord{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count audit records: %w", err)
	}
	excess := count - int64(keep)
	if excess <= 0 {
		return 0, nil
	}
	if excess < int64(limit) {
		limit = int(excess)
	}

	var ids []uint64
	if err := s.db.WithContext(ctx).Model(&AuditRecord{}).
		Select("id").
		Order("id ASC").
		Limit(limit).
		Find(&ids).Error; err != nil {
		return 0, fmt.Errorf("select audit record ids: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	res := s.db.WithContext(ctx).Where("id IN ?", ids).Delete(&AuditRecord{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete audit records: %w", res.Error)
	}
	return res.RowsAffected, nil
}
