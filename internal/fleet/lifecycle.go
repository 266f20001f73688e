package fleet

import (
	"fmt"

	"github.com/wwwzy/medfleet/internal/storage"
)

// AlertAction 是驱动告警状态机的动作。
type AlertAction string

const (
	ActionAcknowledge AlertAction = "acknowledge"
	ActionResolve     AlertAction = "resolve"
)

// alertTransitions: 当前状态 -> 动作 -> 目标状态。表里没有的组合一律拒绝。
// resolved 是终态，只接受重复 resolve（幂等）。
var alertTransitions = map[string]map[AlertAction]string{
	storage.AlertStatusActive: {
		ActionAcknowledge: storage.AlertStatusAcknowledged,
		ActionResolve:     storage.AlertStatusResolved,
	},
	storage.AlertStatusAcknowledged: {
		ActionAcknowledge: storage.AlertStatusAcknowledged,
		ActionResolve:     storage.AlertStatusResolved,
	},
	storage.AlertStatusResolved: {
		ActionResolve: storage.AlertStatusResolved,
	},
}

// NextAlertStatus 返回 from 状态执行 action 后的状态；不允许的迁移返回 ErrInvalidTransition。
func NextAlertStatus(from string, action AlertAction) (string, error) {
	to, ok := alertTransitions[from][action]
	if !ok {
		return "", fmt.Errorf("%w: %s on %s alert", ErrInvalidTransition, action, from)
	}
	return to, nil
}

func isAlertStatus(v string) bool {
	_, ok := alertTransitions[v]
	return ok
}
