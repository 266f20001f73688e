package fleet

import (
	"context"
	"time"

	"github.com/wwwzy/medfleet/internal/storage"
)

// Reading 是一次遥测采样的读数；时间戳由服务端赋值。
type Reading struct {
	CPUUsage       float64 `json:"cpuUsage"`
	MemoryUsage    float64 `json:"memoryUsage"`
	NetworkTraffic float64 `json:"networkTraffic"`
	Uptime         float64 `json:"uptime"`
}

// RecordMetric 追加一条采样并返回其 ID。不校验设备是否存在。
func (s *Service) RecordMetric(ctx context.Context, deviceID string, r Reading) (id string, err error) {
	started := time.Now()
	defer func() { s.observe(OpRecordMetric, started, false, err) }()

	p, _, err := s.authorize(ctx, OpRecordMetric)
	if err != nil {
		return "", err
	}
	if deviceID == "" {
		return "", invalidArgument(OpRecordMetric, "device id is required")
	}

	sample := &storage.MetricSample{
		DeviceID:       deviceID,
		CPUUsage:       r.CPUUsage,
		MemoryUsage:    r.MemoryUsage,
		NetworkTraffic: r.NetworkTraffic,
		Uptime:         r.Uptime,
		Timestamp:      s.now(),
	}
	err = s.store.Transaction(ctx, func(tx *storage.Storage) error {
		if err := tx.InsertMetricSample(ctx, sample); err != nil {
			return err
		}
		return s.audit(ctx, tx, OpRecordMetric, p, sample.ID, struct {
			DeviceID string `json:"deviceId"`
			Reading
		}{DeviceID: deviceID, Reading: r})
	})
	if err != nil {
		return "", translateStoreErr(OpRecordMetric, err)
	}
	return sample.ID, nil
}

// MetricsByDevice 返回某设备最近的采样（最新在前），最多 limit 条。
// limit<=0 使用默认值，超过上限时截断到上限。未登录时返回空列表。
func (s *Service) MetricsByDevice(ctx context.Context, deviceID string, limit int) (samples []storage.MetricSample, err error) {
	started := time.Now()
	denied := false
	defer func() { s.observe(OpGetDeviceMetrics, started, denied, err) }()

	_, allowed, err := s.authorize(ctx, OpGetDeviceMetrics)
	if err != nil {
		return nil, err
	}
	if !allowed {
		denied = true
		return []storage.MetricSample{}, nil
	}
	if deviceID == "" {
		return []storage.MetricSample{}, nil
	}

	err = s.store.Transaction(ctx, func(tx *storage.Storage) error {
		var e error
		samples, e = tx.QueryMetricSamples(ctx, storage.MetricQuery{
			DeviceID: deviceID,
			Limit:    s.normalizeSampleLimit(limit),
		})
		return e
	})
	if err != nil {
		return nil, translateStoreErr(OpGetDeviceMetrics, err)
	}
	return samples, nil
}

func (s *Service) normalizeSampleLimit(v int) int {
	if v <= 0 {
		return s.sampleLimit
	}
	if v > s.maxSampleLimit {
		return s.maxSampleLimit
	}
	return v
}
