package external

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"caseflow/internal/types"
)

// StubNotificationProvider logs each request and returns a fake receipt.
// Used when config.UseStubs reports true.
type StubNotificationProvider struct {
	logger *slog.Logger

	mu   sync.Mutex
	sent []NotificationRequest
}

func NewStubNotificationProvider(logger *slog.Logger) *StubNotificationProvider {
	return &StubNotificationProvider{logger: logger}
}

func (s *StubNotificationProvider) Send(ctx context.Context, req NotificationRequest) (*DeliveryReceipt, error) {
	s.logger.InfoContext(ctx, "stub: notification sent",
		"template_id", req.TemplateID,
		"channel", req.Channel,
		"reference", req.Reference,
	)
	s.mu.Lock()
	s.sent = append(s.sent, req)
	s.mu.Unlock()
	return &DeliveryReceipt{
		ID:        "stub-" + uuid.NewString(),
		Reference: req.Reference,
		SentAt:    time.Now().UTC(),
	}, nil
}

// Sent returns a copy of every request seen so far.
func (s *StubNotificationProvider) Sent() []NotificationRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]NotificationRequest(nil), s.sent...)
}

// MemoryCaseStore is an in-process types.CaseStore.
type MemoryCaseStore struct {
	logger *slog.Logger

	mu    sync.RWMutex
	cases map[int64]types.CaseData
}

func NewMemoryCaseStore(logger *slog.Logger) *MemoryCaseStore {
	return &MemoryCaseStore{logger: logger, cases: make(map[int64]types.CaseData)}
}

// Put seeds a case.
func (s *MemoryCaseStore) Put(caseID int64, data types.CaseData) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cases[caseID] = data.Clone()
}

func (s *MemoryCaseStore) ReadCase(_ context.Context, caseID int64) (types.CaseData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.cases[caseID]
	if !ok {
		return nil, types.NewAppError(types.ErrCodeNotFoundCase, "case not found", nil)
	}
	return data.Clone(), nil
}

func (s *MemoryCaseStore) UpdateCase(ctx context.Context, caseID int64, eventType types.EventType, mutator func(types.CaseData)) (types.CaseData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data := s.cases[caseID].Clone()
	if data == nil {
		data = types.CaseData{}
	}
	if mutator != nil {
		mutator(data)
	}
	s.cases[caseID] = data
	s.logger.InfoContext(ctx, "stub: case updated", "case_id", caseID, "event", eventType)
	return data.Clone(), nil
}

var (
	_ NotificationProvider = (*StubNotificationProvider)(nil)
	_ types.CaseStore      = (*MemoryCaseStore)(nil)
)
