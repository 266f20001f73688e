package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MaxQueryLimit 是单次查询返回条数的上限。
const MaxQueryLimit = 5000

const (
	defaultLimit = 200

	defaultDeleteLimit = 500
	maxDeleteLimit     = 900
)

// ErrNotFound 表示按 ID 定位的记录不存在。
var ErrNotFound = errors.New("record not found")

func (s *Storage) InsertDevice(ctx context.Context, d *Device) error {
	if s == nil || s.db == nil {
		return errors.New("storage not initialized")
	}
	if d == nil {
		return errors.New("device is nil")
	}
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if d.LastSeen.IsZero() {
		d.LastSeen = now
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	if err := s.db.WithContext(ctx).Create(d).Error; err != nil {
		return fmt.Errorf("insert device: %w", err)
	}
	return nil
}

// GetDevice 按 ID 查询设备；不存在时返回 (nil, nil)。
func (s *Storage) GetDevice(ctx context.Context, id string) (*Device, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("storage not initialized")
	}
	var d Device
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&d).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get device: %w", err)
	}
	return &d, nil
}

// ListDevices 返回全部设备，最新插入的排在最前。
func (s *Storage) ListDevices(ctx context.Context) ([]Device, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("storage not initialized")
	}
	out := make([]Device, 0)
	if err := s.db.WithContext(ctx).Order("seq DESC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	return out, nil
}

type DeviceStatusUpdate struct {
	Status         string
	Uptime         float64
	CPUUsage       float64
	MemoryUsage    float64
	NetworkTraffic float64
	LastSeen       time.Time
}

// UpdateDeviceStatus 覆盖设备的实时状态字段。目标不存在时返回 ErrNotFound。
func (s *Storage) UpdateDeviceStatus(ctx context.Context, id string, up DeviceStatusUpdate) error {
	if s == nil || s.db == nil {
		return errors.New("storage not initialized")
	}
	if up.LastSeen.IsZero() {
		up.LastSeen = time.Now().UTC()
	}
	// 用 map 而不是结构体，保证 0 值（例如 cpu_usage=0）也会被写入。
	res := s.db.WithContext(ctx).Model(&Device{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":          up.Status,
		"uptime":          up.Uptime,
		"cpu_usage":       up.CPUUsage,
		"memory_usage":    up.MemoryUsage,
		"network_traffic": up.NetworkTraffic,
		"last_seen":       up.LastSeen,
	})
	if res.Error != nil {
		return fmt.Errorf("update device status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return notFound("device", id)
	}
	return nil
}

// DeleteDevice 删除设备本身，不级联删除其采样与告警。
func (s *Storage) DeleteDevice(ctx context.Context, id string) error {
	if s == nil || s.db == nil {
		return errors.New("storage not initialized")
	}
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&Device{})
	if res.Error != nil {
		return fmt.Errorf("delete device: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return notFound("device", id)
	}
	return nil
}

func (s *Storage) CountDevices(ctx context.Context) (int64, error) {
	if s == nil || s.db == nil {
		return 0, errors.New("storage not initialized")
	}
	var count int64
	if err := s.db.WithContext(ctx).Model(&Device{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count devices: %w", err)
	}
	return count, nil
}

// CountDevicesByStatus 返回 status -> 数量；没有设备的状态不会出现在结果里。
func (s *Storage) CountDevicesByStatus(ctx context.Context) (map[string]int64, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("storage not initialized")
	}
	return s.countGrouped(ctx, &Device{}, "status")
}

type MetricQuery struct {
	// DeviceID 精确匹配，必填。
	DeviceID string
	// Limit 限制返回条数；<=0 使用默认值。
	Limit int
}

func (s *Storage) InsertMetricSample(ctx context.Context, m *MetricSample) error {
	if s == nil || s.db == nil {
		return errors.New("storage not initialized")
	}
	if m == nil {
		return errors.New("metric sample is nil")
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now().UTC()
	}
	if err := s.db.WithContext(ctx).Create(m).Error; err != nil {
		return fmt.Errorf("insert metric sample: %w", err)
	}
	return nil
}

// QueryMetricSamples 返回某设备最近插入的采样（按插入顺序倒序）。
func (s *Storage) QueryMetricSamples(ctx context.Context, q MetricQuery) ([]MetricSample, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("storage not initialized")
	}
	if q.DeviceID == "" {
		return nil, errors.New("device id is required")
	}

	out := make([]MetricSample, 0)
	err := s.db.WithContext(ctx).
		Where("device_id = ?", q.DeviceID).
		Order("seq DESC").
		Limit(normalizeLimit(q.Limit)).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("query metric samples: %w", err)
	}
	return out, nil
}

func (s *Storage) CountMetricSamples(ctx context.Context) (int64, error) {
	if s == nil || s.db == nil {
		return 0, errors.New("storage not initialized")
	}
	var count int64
	if err := s.db.WithContext(ctx).Model(&MetricSample{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count metric samples: %w", err)
	}
	return count, nil
}

// AlertQuery 的所有字段都是可选过滤条件，零值表示不参与过滤。
type AlertQuery struct {
	// Status 精确匹配告警状态（走 status 索引）。
	Status string
	// DeviceID 精确匹配设备。
	DeviceID string
	// Limit 限制返回条数；<=0 表示不限制（告警列表默认返回全集）。
	Limit int
}

func (s *Storage) InsertAlert(ctx context.Context, a *Alert) error {
	if s == nil || s.db == nil {
		return errors.New("storage not initialized")
	}
	if a == nil {
		return errors.New("alert is nil")
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	if err := s.db.WithContext(ctx).Create(a).Error; err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

// GetAlert 按 ID 查询告警；不存在时返回 (nil, nil)。
func (s *Storage) GetAlert(ctx context.Context, id string) (*Alert, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("storage not initialized")
	}
	var a Alert
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get alert: %w", err)
	}
	return &a, nil
}

// QueryAlerts 返回告警，最新插入的排在最前。
func (s *Storage) QueryAlerts(ctx context.Context, q AlertQuery) ([]Alert, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("storage not initialized")
	}

	db := s.db.WithContext(ctx).Model(&Alert{})
	if q.Status != "" {
		db = db.Where("status = ?", q.Status)
	}
	if q.DeviceID != "" {
		db = db.Where("device_id = ?", q.DeviceID)
	}
	db = db.Order("seq DESC")
	if q.Limit > 0 {
		db = db.Limit(q.Limit)
	}

	out := make([]Alert, 0)
	if err := db.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	return out, nil
}

type AlertUpdate struct {
	Status         *string
	AcknowledgedBy *string
	ResolvedAt     *time.Time
}

// UpdateAlert 只写入非 nil 的字段。目标不存在时返回 ErrNotFound。
func (s *Storage) UpdateAlert(ctx context.Context, id string, up AlertUpdate) error {
	if s == nil || s.db == nil {
		return errors.New("storage not initialized")
	}

	updates := make(map[string]interface{})
	if up.Status != nil {
		updates["status"] = *up.Status
	}
	if up.AcknowledgedBy != nil {
		updates["acknowledged_by"] = *up.AcknowledgedBy
	}
	if up.ResolvedAt != nil {
		updates["resolved_at"] = *up.ResolvedAt
	}

	if len(updates) == 0 {
		return nil
	}

	res := s.db.WithContext(ctx).Model(&Alert{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("update alert: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return notFound("alert", id)
	}
	return nil
}

func (s *Storage) CountAlerts(ctx context.Context) (int64, error) {
	if s == nil || s.db == nil {
		return 0, errors.New("storage not initialized")
	}
	var count int64
	if err := s.db.WithContext(ctx).Model(&Alert{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count alerts: %w", err)
	}
	return count, nil
}

// CountAlertsByStatus 返回 status -> 数量；没有告警的状态不会出现在结果里。
func (s *Storage) CountAlertsByStatus(ctx context.Context) (map[string]int64, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("storage not initialized")
	}
	return s.countGrouped(ctx, &Alert{}, "status")
}

func (s *Storage) countGrouped(ctx context.Context, model interface{}, column string) (map[string]int64, error) {
	type row struct {
		GroupKey string
		Total    int64
	}
	var rows []row
	err := s.db.WithContext(ctx).Model(model).
		Select(column + " AS group_key, COUNT(*) AS total").
		Group(column).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count grouped by %s: %w", column, err)
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.GroupKey] = r.Total
	}
	return out, nil
}

func normalizeLimit(v int) int {
	if v <= 0 {
		return defaultLimit
	}
	if v > MaxQueryLimit {
		return MaxQueryLimit
	}
	return v
}

func normalizeDeleteLimit(v int) int {
	if v <= 0 {
		return defaultDeleteLimit
	}
	if v > maxDeleteLimit {
		return maxDeleteLimit
	}
	return v
}

type notFoundError struct {
	Entity string
	ID     string
}

func (e notFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.ID)
}

func (e notFoundError) Unwrap() error {
	return ErrNotFound
}

func notFound(entity string, id string) error {
	return notFoundError{Entity: entity, ID: id}
}
