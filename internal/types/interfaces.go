package types

import (
	"context"
	"time"
)

// CaseStore is the narrow contract to the case platform's persistence. The
// dispatcher never calls it; individual handlers do.
type CaseStore interface {
	ReadCase(ctx context.Context, caseID int64) (CaseData, error)

	// UpdateCase triggers eventType on the case. The mutator receives the
	// current data and edits it in place before submission.
	UpdateCase(ctx context.Context, caseID int64, eventType EventType, mutator func(CaseData)) (CaseData, error)
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the real system time (always UTC).
type RealClock struct{}

// Now returns the current time in UTC.
func (RealClock) Now() time.Time { return time.Now().UTC() }

// Logger defines the structured logging interface used throughout the service.
type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
	With(args ...any) Logger
}
