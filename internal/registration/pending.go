package registration

import (
	"context"
	"fmt"
	"sync"
	"time"

	"guardian-relay/internal/models"
)

// PendingStore 保存待审批的注册请求及其终态
// Resolve 必须是单个原子操作：请求移出待审批集合与终态写入同时成功或同时失败
type PendingStore interface {
	// Add 新建待审批请求；已存在时返回 false
	Add(ctx context.Context, p models.PendingRegistration) (bool, error)
	Get(ctx context.Context, senderID string) (models.PendingRegistration, error)
	// Resolve 将待审批请求转入终态；不存在时返回 ErrAlreadyProcessed
	Resolve(ctx context.Context, senderID string, state models.RegistrationState, decidedBy string, at time.Time) (models.Resolution, error)
	Resolution(ctx context.Context, senderID string) (models.Resolution, error)
	MarkRegistered(ctx context.Context, senderID string) error
}

// MemoryPendingStore 进程内实现，重启后丢失
type MemoryPendingStore struct {
	mu          sync.Mutex
	pending     map[string]models.PendingRegistration
	resolutions map[string]models.Resolution
}

func NewMemoryPendingStore() *MemoryPendingStore {
	return &MemoryPendingStore{
		pending:     map[string]models.PendingRegistration{},
		resolutions: map[string]models.Resolution{},
	}
}

func (s *MemoryPendingStore) Add(_ context.Context, p models.PendingRegistration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.pending[p.SenderID]; exists {
		return false, nil
	}
	s.pending[p.SenderID] = p
	return true, nil
}

func (s *MemoryPendingStore) Get(_ context.Context, senderID string) (models.PendingRegistration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pending[senderID]
	if !ok {
		return models.PendingRegistration{}, fmt.Errorf("pending registration %s: %w", senderID, models.ErrNotFound)
	}
	return p, nil
}

func (s *MemoryPendingStore) Resolve(_ context.Context, senderID string, state models.RegistrationState, decidedBy string, at time.Time) (models.Resolution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pending[senderID]
	if !ok {
		return models.Resolution{}, fmt.Errorf("registration %s: %w", senderID, models.ErrAlreadyProcessed)
	}
	res := models.Resolution{
		SenderID:    senderID,
		DisplayName: p.DisplayName,
		State:       state,
		DecidedBy:   decidedBy,
		DecidedAt:   at,
	}
	delete(s.pending, senderID)
	s.resolutions[senderID] = res
	return res, nil
}

func (s *MemoryPendingStore) Resolution(_ context.Context, senderID string) (models.Resolution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, ok := s.resolutions[senderID]
	if !ok {
		return models.Resolution{}, fmt.Errorf("resolution %s: %w", senderID, models.ErrNotFound)
	}
	return res, nil
}

func (s *MemoryPendingStore) MarkRegistered(_ context.Context, senderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, ok := s.resolutions[senderID]
	if !ok || res.State != models.RegistrationApproved {
		return nil
	}
	res.Registered = true
	s.resolutions[senderID] = res
	return nil
}
