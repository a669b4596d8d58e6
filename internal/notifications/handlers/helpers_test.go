package handlers

import (
	"context"
	"fmt"
	"sync"

	"caseflow/internal/external"
	"caseflow/internal/types"
)

type nopLogger struct{}

func (nopLogger) Info(string, ...any)        {}
func (nopLogger) Warn(string, ...any)        {}
func (nopLogger) Error(string, ...any)       {}
func (l nopLogger) With(...any) types.Logger { return l }

// fakeProvider records requests and can fail the nth send.
type fakeProvider struct {
	mu     sync.Mutex
	sent   []external.NotificationRequest
	failAt int // 1-based; 0 never fails
	err    error
}

func (p *fakeProvider) Send(_ context.Context, req external.NotificationRequest) (*external.DeliveryReceipt, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failAt > 0 && len(p.sent)+1 == p.failAt {
		return nil, p.err
	}
	p.sent = append(p.sent, req)
	return &external.DeliveryReceipt{ID: fmt.Sprintf("ref-%d", len(p.sent)), Reference: req.Reference}, nil
}

func callback(event types.EventType, data types.CaseData) *types.Callback {
	return &types.Callback{
		EventType:   event,
		CaseDetails: types.CaseDetails{ID: 1001, Data: data},
	}
}

func subscribedData() types.CaseData {
	return types.CaseData{
		"caseReference": "SC001/26/01001",
		"appeal": map[string]any{
			"appellant": map[string]any{
				"name": map[string]any{"firstName": "Ada", "lastName": "Lovelace"},
			},
		},
		"subscriptions": map[string]any{
			"appellantSubscription": map[string]any{
				"email": "ada@example.com", "subscribeEmail": "Yes",
				"mobile": "07700900123", "subscribeSms": "Yes",
			},
			"representativeSubscription": map[string]any{
				"email": "rep@example.com", "subscribeEmail": "Yes",
				"mobile": "", "subscribeSms": "Yes",
			},
			"appointeeSubscription": map[string]any{
				"email": "app@example.com", "subscribeEmail": "No",
			},
		},
	}
}
