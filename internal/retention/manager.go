package retention

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// Runner 是可被 Manager 托管的后台任务；ctx 取消时应返回 nil 或 context.Canceled。
type Runner interface {
	Run(ctx context.Context) error
}

// Manager 托管后台任务的生命周期：Start 启动，Stop 取消，Wait 等待退出并返回首个错误。
type Manager struct {
	runners []Runner

	started atomic.Bool

	cancel context.CancelFunc
	wg     sync.WaitGroup

	runErrMu sync.Mutex
	runErr   error
}

func NewManager(runners ...Runner) *Manager {
	m := &Manager{}
	for _, r := range runners {
		if r != nil {
			m.runners = append(m.runners, r)
		}
	}
	return m
}

func (m *Manager) Start(ctx context.Context) error {
	if m == nil {
		return errors.New("manager is nil")
	}
	if !m.started.CompareAndSwap(false, true) {
		return errors.New("manager already started")
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	for _, r := range m.runners {
		m.wg.Add(1)
		go func(r Runner) {
			defer m.wg.Done()
			if err := r.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
				m.runErrMu.Lock()
				if m.runErr == nil {
					m.runErr = err
				}
				m.runErrMu.Unlock()
				m.cancel()
			}
		}(r)
	}
	return nil
}

func (m *Manager) Stop() {
	if m == nil || m.cancel == nil {
		return
	}
	m.cancel()
}

func (m *Manager) Wait() error {
	if m == nil {
		return nil
	}
	m.wg.Wait()
	m.runErrMu.Lock()
	defer m.runErrMu.Unlock()
	return m.runErr
}
