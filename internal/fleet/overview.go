package fleet

import (
	"context"
	"time"

	"github.com/wwwzy/medfleet/internal/storage"
)

// Overview 是仪表盘顶部的汇总计数。
type Overview struct {
	TotalDevices   int64 `json:"totalDevices"`
	OnlineDevices  int64 `json:"onlineDevices"`
	OfflineDevices int64 `json:"offlineDevices"`
	WarningDevices int64 `json:"warningDevices"`
	ActiveAlerts   int64 `json:"activeAlerts"`
}

// Overview 汇总设备数量（按状态）与未处理告警数。未登录时返回零值。
func (s *Service) Overview(ctx context.Context) (out Overview, err error) {
	started := time.Now()
	denied := false
	defer func() { s.observe(OpOverview, started, denied, err) }()

	_, allowed, err := s.authorize(ctx, OpOverview)
	if err != nil {
		return Overview{}, err
	}
	if !allowed {
		denied = true
		return Overview{}, nil
	}

	err = s.store.Transaction(ctx, func(tx *storage.Storage) error {
		devices, err := tx.CountDevicesByStatus(ctx)
		if err != nil {
			return err
		}
		alerts, err := tx.CountAlertsByStatus(ctx)
		if err != nil {
			return err
		}
		out.OnlineDevices = devices[storage.DeviceStatusOnline]
		out.OfflineDevices = devices[storage.DeviceStatusOffline]
		out.WarningDevices = devices[storage.DeviceStatusWarning]
		for _, n := range devices {
			out.TotalDevices += n
		}
		out.ActiveAlerts = alerts[storage.AlertStatusActive]
		return nil
	})
	if err != nil {
		return Overview{}, translateStoreErr(OpOverview, err)
	}
	return out, nil
}
