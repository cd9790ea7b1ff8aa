package storage

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	defaultLimit = 200
	maxLimit     = 5000
)

// RunQuery 用于查询运行记录的过滤条件，零值表示不参与过滤。
type RunQuery struct {
	Kind    string
	Dataset string
	Outcome string
	// From/To 过滤 StartedAt 区间：[From, To]（两端包含）。
	From *time.Time
	To   *time.Time
	// Limit 限制返回条数；<=0 使用默认值。
	Limit int
	Desc  bool
}

func (s *Storage) InsertRunRecord(ctx context.Context, rec *RunRecord) error {
	if s == nil || s.db == nil {
		return errors.New("storage not initialized")
	}
	if rec == nil {
		return errors.New("run record is nil")
	}
	if rec.StartedAt.IsZero() {
		rec.StartedAt = time.Now().UTC()
	}
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("insert run record: %w", err)
	}
	return nil
}

func (s *Storage) QueryRunRecords(ctx context.Context, q RunQuery) ([]RunRecord, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("storage not initialized")
	}

	db := s.db.WithContext(ctx).Model(&RunRecord{})
	if q.Kind != "" {
		db = db.Where("kind = ?", q.Kind)
	}
	if q.Dataset != "" {
		db = db.Where("dataset = ?", q.Dataset)
	}
	if q.Outcome != "" {
		db = db.Where("outcome = ?", q.Outcome)
	}
	if q.From != nil {
		db = db.Where("started_at >= ?", *q.From)
	}
	if q.To != nil {
		db = db.Where("started_at <= ?", *q.To)
	}
	if q.Desc {
		db = db.Order("started_at DESC").Order("id DESC")
	} else {
		db = db.Order("started_at ASC").Order("id ASC")
	}

	var out []RunRecord
	if err := db.Limit(normalizeLimit(q.Limit)).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("query run records: %w", err)
	}
	return out, nil
}

func (s *Storage) CountRunRecords(ctx context.Context) (int64, error) {
	if s == nil || s.db == nil {
		return 0, errors.New("storage not initialized")
	}
	var n int64
	if err := s.db.WithContext(ctx).Model(&RunRecord{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count run records: %w", err)
	}
	return n, nil
}

func (s *Storage) DeleteRunRecordsBefore(ctx context.Context, before time.Time) (int64, error) {
	if s == nil || s.db == nil {
		return 0, errors.New("storage not initialized")
	}
	res := s.db.WithContext(ctx).Where("started_at < ?", before).Delete(&RunRecord{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete run records: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// AuditQuery 用于查询审计记录的过滤条件。
//
// 设计原则：
//   - 所有字段都是"可选过滤条件"，零值表示不参与过滤。
//   - 时间范围使用 CreatedAt（写入时间）。
type AuditQuery struct {
	// TraceID 精确匹配一次运行。
	TraceID string
	// Action 精确匹配工具名。
	Action  string
	Dataset string
	// Status 精确匹配执行状态（running/success/failed）。
	Status string
	// From/To 过滤 CreatedAt 区间：[From, To]（两端包含）。
	From *time.Time
	To   *time.Time
	// Limit 限制返回条数；<=0 使用默认值。
	Limit int
	// Desc 按 CreatedAt 倒序返回（优先返回最新记录）。
	Desc bool
}

func (s *Storage) InsertAuditRecord(ctx context.Context, rec *AuditRecord) error {
	if s == nil || s.db == nil {
		return errors.New("storage not initialized")
	}
	if rec == nil {
		return errors.New("audit record is nil")
	}
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
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

	limit := normalizeLimit(q.Limit)
	db := s.db.WithContext(ctx).Model(&AuditRecord{})
	if q.TraceID != "" {
		db = db.Where("trace_id = ?", q.TraceID)
	}
	if q.Action != "" {
		db = db.Where("action = ?", q.Action)
	}
	if q.Dataset != "" {
		db = db.Where("dataset = ?", q.Dataset)
	}
	if q.Status != "" {
		db = db.Where("status = ?", q.Status)
	}
	if q.From != nil {
		db = db.Where("created_at >= ?", *q.From)
	}
	if q.To != nil {
		db = db.Where("created_at <= ?", *q.To)
	}
	if q.Desc {
		db = db.Order("created_at DESC").Order("id DESC")
	} else {
		db = db.Order("created_at ASC").Order("id ASC")
	}
	db = db.Limit(limit)

	var out []AuditRecord
	if err := db.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("query audit records: %w", err)
	}
	return out, nil
}

type AuditUpdate struct {
	Status       *string
	ResultJSON   *string
	ResultStatus *string
	PlotPath     *string
	ErrorMessage *string
	FinishedAt   *time.Time
}

func (s *Storage) UpdateAuditRecord(ctx context.Context, id uint64, up AuditUpdate) error {
	if s == nil || s.db == nil {
		return errors.New("storage not initialized")
	}

	updates := make(map[string]interface{})
	if up.Status != nil {
		updates["status"] = *up.Status
	}
	if up.ResultJSON != nil {
		updates["result_json"] = *up.ResultJSON
	}
	if up.ResultStatus != nil {
		updates["result_status"] = *up.ResultStatus
	}
	if up.PlotPath != nil {
		updates["plot_path"] = *up.PlotPath
	}
	if up.ErrorMessage != nil {
		updates["error_message"] = *up.ErrorMessage
	}
	if up.FinishedAt != nil {
		updates["finished_at"] = *up.FinishedAt
	}

	if len(updates) == 0 {
		return nil
	}

	res := s.db.WithContext(ctx).Model(&AuditRecord{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("update audit record: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return gormNotFoundError("audit record", id)
	}
	return nil
}

func (s *Storage) CountAuditRecords(ctx context.Context) (int64, error) {
	if s == nil || s.db == nil {
		return 0, errors.New("storage not initialized")
	}
	var n int64
	if err := s.db.WithContext(ctx).Model(&AuditRecord{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count audit records: %w", err)
	}
	return n, nil
}

// ActionCount 为按工具名聚合的调用次数。
type ActionCount struct {
	Action string
	Total  int64
	Failed int64
}

// CountAuditRecordsByAction 按工具名统计调用次数，按次数倒序。
func (s *Storage) CountAuditRecordsByAction(ctx context.Context) ([]ActionCount, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("storage not initialized")
	}
	var out []ActionCount
	err := s.db.WithContext(ctx).Model(&AuditRecord{}).
		Select("action, COUNT(*) AS total, SUM(CASE WHEN status = ? OR result_status = ? THEN 1 ELSE 0 END) AS failed", StatusFailed, "error").
		Group("action").
		Order("total DESC").Order("action ASC").
		Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("count audit records by action: %w", err)
	}
	return out, nil
}

func (s *Storage) DeleteAuditRecordsBefore(ctx context.Context, before time.Time) (int64, error) {
	if s == nil || s.db == nil {
		return 0, errors.New("storage not initialized")
	}
	res := s.db.WithContext(ctx).Where("created_at < ?", before).Delete(&AuditRecord{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete audit records: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// DeleteAuditRecordsKeepLatest 只保留最新的 keep 条记录。
func (s *Storage) DeleteAuditRecordsKeepLatest(ctx context.Context, keep int) (int64, error) {
	if s == nil || s.db == nil {
		return 0, errors.New("storage not initialized")
	}
	if keep < 0 {
		return 0, fmt.Errorf("keep must be >= 0, got %d", keep)
	}
	latest := s.db.Model(&AuditRecord{}).Select("id").Order("created_at DESC").Order("id DESC").Limit(keep)
	res := s.db.WithContext(ctx).Where("id NOT IN (?)", latest).Delete(&AuditRecord{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete audit records: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func normalizeLimit(v int) int {
	if v <= 0 {
		return defaultLimit
	}
	if v > maxLimit {
		return maxLimit
	}
	return v
}

type notFoundError struct {
	Entity string
	ID     uint64
}

func (e notFoundError) Error() string {
	return fmt.Sprintf("%s not found: %d", e.Entity, e.ID)
}

func gormNotFoundError(entity string, id uint64) error {
	return notFoundError{Entity: entity, ID: id}
}
