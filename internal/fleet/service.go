package fleet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/wwwzy/medfleet/internal/auth"
	"github.com/wwwzy/medfleet/internal/observability"
	"github.com/wwwzy/medfleet/internal/storage"
)

const (
	DefaultSampleLimit = 50
	MaxSampleLimit     = 1000

	anonymousActor = "anonymous"
	auditSuccess   = "success"
)

// Clock 提供当前时间，测试中可替换。
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

// Service 是设备/指标/告警状态服务。每个操作都在一个存储事务中完成，
// 写操作成功时在同一事务里写入一条审计记录。
type Service struct {
	store    *storage.Storage
	gate     auth.Gate
	clock    Clock
	logger   *zap.Logger
	metrics  *observability.Metrics
	validate *validator.Validate

	sampleLimit    int
	maxSampleLimit int
}

// ServiceOption 定制 Service。
type ServiceOption func(*Service)

// WithGate 替换身份解析方式，默认从 context 读取 Principal。
func WithGate(gate auth.Gate) ServiceOption {
	return func(s *Service) {
		if gate != nil {
			s.gate = gate
		}
	}
}

// WithClock 替换时钟。
func WithClock(clock Clock) ServiceOption {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

func WithLogger(logger *zap.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithMetrics(m *observability.Metrics) ServiceOption {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithSampleLimits 设置 GetByDevice 的默认条数与上限；非正值保持默认，上限不超过存储层的查询上限。
func WithSampleLimits(def int, max int) ServiceOption {
	return func(s *Service) {
		if def > 0 {
			s.sampleLimit = def
		}
		if max > 0 {
			s.maxSampleLimit = max
		}
	}
}

func NewService(store *storage.Storage, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("fleet: nil storage")
	}
	s := &Service{
		store:          store,
		gate:           auth.ContextGate{},
		clock:          systemClock{},
		logger:         zap.NewNop(),
		validate:       validator.New(),
		sampleLimit:    DefaultSampleLimit,
		maxSampleLimit: MaxSampleLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.maxSampleLimit > storage.MaxQueryLimit {
		s.maxSampleLimit = storage.MaxQueryLimit
	}
	if s.sampleLimit > s.maxSampleLimit {
		s.sampleLimit = s.maxSampleLimit
	}
	return s, nil
}

// authorize 按鉴权表判定调用方。返回 allowed=false 且 err=nil 时，调用方应返回空结果。
func (s *Service) authorize(ctx context.Context, op Operation) (*auth.Principal, bool, error) {
	p := s.gate.CurrentPrincipal(ctx)
	policy := PolicyFor(op)
	if !policy.RequireAuth || p != nil {
		return p, true, nil
	}
	if policy.Mutation {
		return nil, false, fmt.Errorf("%s: %w", op, ErrUnauthorized)
	}
	return nil, false, nil
}

// observe 记录操作结果。denied 表示只读操作因未登录被降级。
func (s *Service) observe(op Operation, started time.Time, denied bool, err error) {
	result := observability.ResultSuccess
	switch {
	case err != nil:
		result = observability.ResultError
	case denied:
		result = observability.ResultDenied
	}
	s.metrics.ObserveOperation(string(op), result, started)

	if err != nil {
		level := zap.WarnLevel
		if errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrNotFound) ||
			errors.Is(err, ErrInvalidArgument) || errors.Is(err, ErrInvalidTransition) {
			level = zap.DebugLevel
		}
		if ce := s.logger.Check(level, "操作失败"); ce != nil {
			ce.Write(zap.String("operation", string(op)), zap.Error(err))
		}
	}
}

func (s *Service) validateInput(op Operation, in any) error {
	if err := s.validate.Struct(in); err != nil {
		return invalidArgument(op, "%v", err)
	}
	return nil
}

// audit 在事务 tx 内写入审计记录。
func (s *Service) audit(ctx context.Context, tx *storage.Storage, op Operation, p *auth.Principal, targetID string, params any) error {
	raw, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("marshal audit params: %w", err)
	}
	actor := anonymousActor
	if p != nil {
		actor = p.DisplayName()
	}
	rec := &storage.AuditRecord{
		TraceID:    TraceIDFromContext(ctx),
		Action:     string(op),
		Actor:      actor,
		TargetID:   targetID,
		ParamsJSON: string(raw),
		Status:     auditSuccess,
		CreatedAt:  s.clock.Now(),
	}
	return tx.InsertAuditRecord(ctx, rec)
}

func (s *Service) now() time.Time {
	return s.clock.Now().UTC()
}
