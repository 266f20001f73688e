package fleet

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/wwwzy/medfleet/internal/storage"
)

// CreateDeviceInput 的五个字段都必填；除非空外不做格式校验。
type CreateDeviceInput struct {
	Name      string `json:"name" validate:"required"`
	Type      string `json:"type" validate:"required"`
	IPAddress string `json:"ipAddress" validate:"required"`
	Location  string `json:"location" validate:"required"`
	Protocol  string `json:"protocol" validate:"required"`
}

// StatusUpdate 是一次设备状态上报。
type StatusUpdate struct {
	Status         string  `json:"status" validate:"required,oneof=online offline warning"`
	Uptime         float64 `json:"uptime"`
	CPUUsage       float64 `json:"cpuUsage"`
	MemoryUsage    float64 `json:"memoryUsage"`
	NetworkTraffic float64 `json:"networkTraffic"`
}

// ListDevices 返回全部设备，最新创建的在前。未登录时返回空列表。
func (s *Service) ListDevices(ctx context.Context) (devices []storage.Device, err error) {
	started := time.Now()
	denied := false
	defer func() { s.observe(OpListDevices, started, denied, err) }()

	_, allowed, err := s.authorize(ctx, OpListDevices)
	if err != nil {
		return nil, err
	}
	if !allowed {
		denied = true
		return []storage.Device{}, nil
	}

	err = s.store.Transaction(ctx, func(tx *storage.Storage) error {
		var e error
		devices, e = tx.ListDevices(ctx)
		return e
	})
	if err != nil {
		return nil, translateStoreErr(OpListDevices, err)
	}
	return devices, nil
}

// GetDevice 按 ID 查询设备。未登录或设备不存在时返回 (nil, nil)。
func (s *Service) GetDevice(ctx context.Context, id string) (device *storage.Device, err error) {
	started := time.Now()
	denied := false
	defer func() { s.observe(OpGetDevice, started, denied, err) }()

	_, allowed, err := s.authorize(ctx, OpGetDevice)
	if err != nil {
		return nil, err
	}
	if !allowed {
		denied = true
		return nil, nil
	}
	if id == "" {
		return nil, nil
	}

	err = s.store.Transaction(ctx, func(tx *storage.Storage) error {
		var e error
		device, e = tx.GetDevice(ctx, id)
		return e
	})
	if err != nil {
		return nil, translateStoreErr(OpGetDevice, err)
	}
	return device, nil
}

// CreateDevice 登记一台新设备，初始状态为 online、uptime=100、各项使用率为 0。
func (s *Service) CreateDevice(ctx context.Context, in CreateDeviceInput) (id string, err error) {
	started := time.Now()
	defer func() { s.observe(OpCreateDevice, started, false, err) }()

	p, _, err := s.authorize(ctx, OpCreateDevice)
	if err != nil {
		return "", err
	}
	if err := s.validateInput(OpCreateDevice, in); err != nil {
		return "", err
	}

	now := s.now()
	device := &storage.Device{
		Name:           in.Name,
		Type:           in.Type,
		IPAddress:      in.IPAddress,
		Location:       in.Location,
		Protocol:       in.Protocol,
		Status:         storage.DeviceStatusOnline,
		LastSeen:       now,
		Uptime:         100,
		CPUUsage:       0,
		MemoryUsage:    0,
		NetworkTraffic: 0,
		CreatedAt:      now,
	}
	err = s.store.Transaction(ctx, func(tx *storage.Storage) error {
		if err := tx.InsertDevice(ctx, device); err != nil {
			return err
		}
		return s.audit(ctx, tx, OpCreateDevice, p, device.ID, in)
	})
	if err != nil {
		return "", translateStoreErr(OpCreateDevice, err)
	}

	s.logger.Info("设备已登记",
		zap.String("device_id", device.ID),
		zap.String("name", device.Name),
		zap.String("actor", p.DisplayName()),
	)
	return device.ID, nil
}

// UpdateDeviceStatus 覆盖设备的状态与使用率字段，并把 lastSeen 刷新为当前时间。
// 并发上报同一设备时以最后提交的事务为准。
func (s *Service) UpdateDeviceStatus(ctx context.Context, id string, up StatusUpdate) (err error) {
	started := time.Now()
	defer func() { s.observe(OpUpdateDeviceStatus, started, false, err) }()

	p, _, err := s.authorize(ctx, OpUpdateDeviceStatus)
	if err != nil {
		return err
	}
	if id == "" {
		return invalidArgument(OpUpdateDeviceStatus, "device id is required")
	}
	if err := s.validateInput(OpUpdateDeviceStatus, up); err != nil {
		return err
	}

	err = s.store.Transaction(ctx, func(tx *storage.Storage) error {
		if err := tx.UpdateDeviceStatus(ctx, id, storage.DeviceStatusUpdate{
			Status:         up.Status,
			Uptime:         up.Uptime,
			CPUUsage:       up.CPUUsage,
			MemoryUsage:    up.MemoryUsage,
			NetworkTraffic: up.NetworkTraffic,
			LastSeen:       s.now(),
		}); err != nil {
			return err
		}
		return s.audit(ctx, tx, OpUpdateDeviceStatus, p, id, up)
	})
	return translateStoreErr(OpUpdateDeviceStatus, err)
}

// RemoveDevice 删除设备记录。关联的采样与告警保留（弱引用，允许悬空）。
func (s *Service) RemoveDevice(ctx context.Context, id string) (err error) {
	started := time.Now()
	defer func() { s.observe(OpRemoveDevice, started, false, err) }()

	p, _, err := s.authorize(ctx, OpRemoveDevice)
	if err != nil {
		return err
	}
	if id == "" {
		return invalidArgument(OpRemoveDevice, "device id is required")
	}

	err = s.store.Transaction(ctx, func(tx *storage.Storage) error {
		if err := tx.DeleteDevice(ctx, id); err != nil {
			return err
		}
		return s.audit(ctx, tx, OpRemoveDevice, p, id, map[string]string{"id": id})
	})
	if err != nil {
		return translateStoreErr(OpRemoveDevice, err)
	}

	s.logger.Info("设备已删除", zap.String("device_id", id), zap.String("actor", p.DisplayName()))
	return nil
}
