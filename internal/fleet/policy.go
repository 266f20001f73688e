package fleet

// Operation 是服务对外暴露的操作名，同时用作审计 Action 与指标标签。
type Operation string

const (
	OpListDevices        Operation = "devices.list"
	OpGetDevice          Operation = "devices.get"
	OpCreateDevice       Operation = "devices.create"
	OpUpdateDeviceStatus Operation = "devices.update_status"
	OpRemoveDevice       Operation = "devices.remove"

	OpRecordMetric     Operation = "metrics.record"
	OpGetDeviceMetrics Operation = "metrics.get_by_device"

	OpListAlerts       Operation = "alerts.list"
	OpCreateAlert      Operation = "alerts.create"
	OpAcknowledgeAlert Operation = "alerts.acknowledge"
	OpResolveAlert     Operation = "alerts.resolve"

	OpOverview Operation = "overview"
)

// Policy 描述单个操作的鉴权要求。
//
// RequireAuth 为 true 时：Mutation 操作在未登录时返回 ErrUnauthorized；
// 只读操作降级为空结果（空列表 / nil / 零值），不返回错误。
type Policy struct {
	RequireAuth bool
	Mutation    bool
}

// policies 是显式声明的鉴权表。状态上报、指标写入、告警创建由监控进程调用，不要求登录。
var policies = map[Operation]Policy{
	OpListDevices:        {RequireAuth: true},
	OpGetDevice:          {RequireAuth: true},
	OpCreateDevice:       {RequireAuth: true, Mutation: true},
	OpUpdateDeviceStatus: {RequireAuth: false, Mutation: true},
	OpRemoveDevice:       {RequireAuth: true, Mutation: true},

	OpRecordMetric:     {RequireAuth: false, Mutation: true},
	OpGetDeviceMetrics: {RequireAuth: true},

	OpListAlerts:       {RequireAuth: true},
	OpCreateAlert:      {RequireAuth: false, Mutation: true},
	OpAcknowledgeAlert: {RequireAuth: true, Mutation: true},
	OpResolveAlert:     {RequireAuth: true, Mutation: true},

	OpOverview: {RequireAuth: true},
}

// PolicyFor 返回操作的鉴权策略。未声明的操作按"需要登录的写操作"处理。
func PolicyFor(op Operation) Policy {
	if p, ok := policies[op]; ok {
		return p
	}
	return Policy{RequireAuth: true, Mutation: true}
}

// Operations 返回所有已声明的操作名。
func Operations() []Operation {
	out := make([]Operation, 0, len(policies))
	for op := range policies {
		out = append(out, op)
	}
	return out
}
