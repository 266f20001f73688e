package storage

import "time"

const (
	DeviceStatusOnline  = "online"
	DeviceStatusOffline = "offline"
	DeviceStatusWarning = "warning"
)

const (
	AlertStatusActive       = "active"
	AlertStatusAcknowledged = "acknowledged"
	AlertStatusResolved     = "resolved"
)

const (
	SeverityCritical = "critical"
	SeverityWarning  = "warning"
	SeverityInfo     = "info"
)

// Device 表示一台被监控的设备，是设备/指标/告警三者中的聚合根。
//
// Seq 为自增主键，只用于保持插入顺序（"最新插入优先"的列表都按 Seq 倒序）；
// 对外暴露的标识是 ID（UUID），创建后在设备生命周期内保持不变。
type Device struct {
	Seq uint64 `gorm:"primaryKey" json:"-"`
	// ID 为对外的不透明标识（UUID 字符串）。
	ID string `gorm:"size:36;not null;uniqueIndex" json:"id"`

	Name      string `gorm:"size:255;not null" json:"name"`
	Type      string `gorm:"size:128;not null" json:"type"`
	IPAddress string `gorm:"size:64;not null" json:"ipAddress"`
	Location  string `gorm:"size:255;not null" json:"location"`
	// Protocol 只是展示用的标签（SNMP/NETCONF/HTTP...），不对应任何协议实现。
	Protocol string `gorm:"size:64;not null" json:"protocol"`

	// Status 只能是 online/offline/warning 之一。
	Status string `gorm:"size:16;not null;index" json:"status"`
	// LastSeen 为最近一次状态上报的时间；每次 UpdateStatus 都刷新为当前时间，不做乱序保护。
	LastSeen time.Time `gorm:"not null" json:"lastSeen"`

	// Uptime 为百分比（名义上 0~100，不强制）。
	Uptime         float64 `gorm:"not null" json:"uptime"`
	CPUUsage       float64 `gorm:"not null" json:"cpuUsage"`
	MemoryUsage    float64 `gorm:"not null" json:"memoryUsage"`
	NetworkTraffic float64 `gorm:"not null" json:"networkTraffic"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"createdAt"`
}

// MetricSample 是一条不可变的遥测采样。只追加，不更新，不删除。
//
// DeviceID 是弱引用：不校验设备是否存在，设备删除后采样仍然保留。
type MetricSample struct {
	Seq uint64 `gorm:"primaryKey;index:idx_metric_samples_device_seq,priority:2" json:"-"`
	ID  string `gorm:"size:36;not null;uniqueIndex" json:"id"`
	// DeviceID 与 Seq 组成联合索引，支撑"某设备最近 N 条采样"查询。
	DeviceID string `gorm:"size:36;not null;index:idx_metric_samples_device_seq,priority:1" json:"deviceId"`

	CPUUsage       float64 `gorm:"not null" json:"cpuUsage"`
	MemoryUsage    float64 `gorm:"not null" json:"memoryUsage"`
	NetworkTraffic float64 `gorm:"not null" json:"networkTraffic"`
	Uptime         float64 `gorm:"not null" json:"uptime"`

	// Timestamp 由服务端在写入时赋值，调用方无法指定；允许多条采样时间戳相同。
	Timestamp time.Time `gorm:"not null;index" json:"timestamp"`
}

// Alert 是针对某台设备的告警事件，状态按 active -> acknowledged -> resolved 推进。
type Alert struct {
	Seq uint64 `gorm:"primaryKey" json:"-"`
	ID  string `gorm:"size:36;not null;uniqueIndex" json:"id"`

	DeviceID string `gorm:"size:36;not null;index" json:"deviceId"`
	// DeviceName 是创建告警时设备名称的快照，设备改名后不会同步，用于保留"当时告警的对象"。
	DeviceName string `gorm:"size:255;not null" json:"deviceName"`

	Severity string `gorm:"size:16;not null" json:"severity"`
	Message  string `gorm:"type:text;not null" json:"message"`
	// Type 为自由文本分类（例如 Performance、Connectivity）。
	Type string `gorm:"size:128;not null" json:"type"`

	Status string `gorm:"size:16;not null;index" json:"status"`
	// AcknowledgedBy 只有在告警经过 acknowledged 状态后才非空。
	AcknowledgedBy *string `gorm:"size:255" json:"acknowledgedBy"`
	// ResolvedAt 当且仅当状态为 resolved 时非空。
	ResolvedAt *time.Time `json:"resolvedAt"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"createdAt"`
}

// AuditRecord 记录一次成功的写操作，用于追溯"谁在什么时候改了什么"。
//
// 审计记录与业务写入处于同一事务：写操作失败时不会留下审计记录。
type AuditRecord struct {
	// ID 为自增主键（内部使用）。
	ID uint64 `gorm:"primaryKey"`
	// TraceID 为请求 ID（来自 API 层），便于把审计记录和访问日志串起来。
	TraceID string `gorm:"size:64;index"`
	// Action 为操作名（例如 devices.create / alerts.acknowledge）。
	Action string `gorm:"size:128;not null;index"`
	// Actor 为执行者的展示名；未登录调用方记为 anonymous。
	Actor string `gorm:"size:255;not null"`
	// TargetID 为被操作记录的 ID。
	TargetID string `gorm:"size:36;index"`
	// ParamsJSON 存放操作入参（JSON 字符串）。
	ParamsJSON string `gorm:"type:text"`
	// Status 表示执行状态；目前只有 success。
	Status string `gorm:"size:32;not null;index"`
	// CreatedAt 为记录写入时间。
	CreatedAt time.Time `gorm:"not null;autoCreateTime;index"`
}
