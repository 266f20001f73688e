package fleet

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/wwwzy/medfleet/internal/auth"
	"github.com/wwwzy/medfleet/internal/storage"
)

// AlertStatusAll 是列表过滤中表示"不过滤"的哨兵值。
const AlertStatusAll = "all"

// CreateAlertInput 描述一条新告警。DeviceName 是创建时的设备名快照。
type CreateAlertInput struct {
	DeviceID   string `json:"deviceId" validate:"required"`
	DeviceName string `json:"deviceName" validate:"required"`
	Severity   string `json:"severity" validate:"required,oneof=critical warning info"`
	Message    string `json:"message" validate:"required"`
	Type       string `json:"type" validate:"required"`
}

// ListAlerts 返回告警（最新在前）。status 为空或 "all" 时返回全部，
// 否则只返回该状态的告警；未知状态返回空列表。未登录时返回空列表。
func (s *Service) ListAlerts(ctx context.Context, status string) (alerts []storage.Alert, err error) {
	started := time.Now()
	denied := false
	defer func() { s.observe(OpListAlerts, started, denied, err) }()

	_, allowed, err := s.authorize(ctx, OpListAlerts)
	if err != nil {
		return nil, err
	}
	if !allowed {
		denied = true
		return []storage.Alert{}, nil
	}

	q := storage.AlertQuery{}
	if status != "" && status != AlertStatusAll {
		if !isAlertStatus(status) {
			return []storage.Alert{}, nil
		}
		q.Status = status
	}

	err = s.store.Transaction(ctx, func(tx *storage.Storage) error {
		var e error
		alerts, e = tx.QueryAlerts(ctx, q)
		return e
	})
	if err != nil {
		return nil, translateStoreErr(OpListAlerts, err)
	}
	return alerts, nil
}

// CreateAlert 创建一条 active 告警。不校验设备是否存在。
func (s *Service) CreateAlert(ctx context.Context, in CreateAlertInput) (id string, err error) {
	started := time.Now()
	defer func() { s.observe(OpCreateAlert, started, false, err) }()

	p, _, err := s.authorize(ctx, OpCreateAlert)
	if err != nil {
		return "", err
	}
	if err := s.validateInput(OpCreateAlert, in); err != nil {
		return "", err
	}

	alert := &storage.Alert{
		DeviceID:   in.DeviceID,
		DeviceName: in.DeviceName,
		Severity:   in.Severity,
		Message:    in.Message,
		Type:       in.Type,
		Status:     storage.AlertStatusActive,
		CreatedAt:  s.now(),
	}
	err = s.store.Transaction(ctx, func(tx *storage.Storage) error {
		if err := tx.InsertAlert(ctx, alert); err != nil {
			return err
		}
		return s.audit(ctx, tx, OpCreateAlert, p, alert.ID, in)
	})
	if err != nil {
		return "", translateStoreErr(OpCreateAlert, err)
	}

	s.logger.Info("告警已创建",
		zap.String("alert_id", alert.ID),
		zap.String("device_id", alert.DeviceID),
		zap.String("severity", alert.Severity),
	)
	return alert.ID, nil
}

// AcknowledgeAlert 把告警标记为 acknowledged，并记录确认人展示名。
// 对已解决的告警返回 ErrInvalidTransition，告警保持不变。
func (s *Service) AcknowledgeAlert(ctx context.Context, id string) (err error) {
	started := time.Now()
	defer func() { s.observe(OpAcknowledgeAlert, started, false, err) }()

	p, _, err := s.authorize(ctx, OpAcknowledgeAlert)
	if err != nil {
		return err
	}
	return s.transitionAlert(ctx, OpAcknowledgeAlert, ActionAcknowledge, p, id)
}

// ResolveAlert 把告警标记为 resolved 并记录解决时间；确认人保持不变。
// 重复解决是幂等的，保留第一次的 resolvedAt。
func (s *Service) ResolveAlert(ctx context.Context, id string) (err error) {
	started := time.Now()
	defer func() { s.observe(OpResolveAlert, started, false, err) }()

	p, _, err := s.authorize(ctx, OpResolveAlert)
	if err != nil {
		return err
	}
	return s.transitionAlert(ctx, OpResolveAlert, ActionResolve, p, id)
}

func (s *Service) transitionAlert(ctx context.Context, op Operation, action AlertAction, p *auth.Principal, id string) error {
	if id == "" {
		return invalidArgument(op, "alert id is required")
	}

	var from, to string
	err := s.store.Transaction(ctx, func(tx *storage.Storage) error {
		alert, err := tx.GetAlert(ctx, id)
		if err != nil {
			return err
		}
		if alert == nil {
			return ErrNotFound
		}

		from = alert.Status
		to, err = NextAlertStatus(from, action)
		if err != nil {
			return err
		}

		up := storage.AlertUpdate{Status: &to}
		switch action {
		case ActionAcknowledge:
			by := p.DisplayName()
			up.AcknowledgedBy = &by
		case ActionResolve:
			if from == storage.AlertStatusResolved {
				// 幂等：不刷新 resolvedAt，也不重复写审计。
				return nil
			}
			at := s.now()
			up.ResolvedAt = &at
		}
		if err := tx.UpdateAlert(ctx, id, up); err != nil {
			return err
		}
		return s.audit(ctx, tx, op, p, id, map[string]string{"from": from, "to": to})
	})
	if err != nil {
		return translateStoreErr(op, err)
	}

	if from != to || action == ActionAcknowledge {
		s.metrics.IncAlertTransition(from, to)
		s.logger.Info("告警状态变更",
			zap.String("alert_id", id),
			zap.String("from", from),
			zap.String("to", to),
			zap.String("actor", p.DisplayName()),
		)
	}
	return nil
}
