package db

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"caseflow/internal/types"
)

// --- Mock DBTX ---

type mockDBTX struct {
	mock.Mock
}

func (m *mockDBTX) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	args := m.Called(ctx, sql, arguments)
	return args.Get(0).(pgconn.CommandTag), args.Error(1)
}

func (m *mockDBTX) Query(ctx context.Context, sql string, arguments ...any) (pgx.Rows, error) {
	args := m.Called(ctx, sql, arguments)
	if r := args.Get(0); r != nil {
		return r.(pgx.Rows), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockDBTX) QueryRow(ctx context.Context, sql string, arguments ...any) pgx.Row {
	args := m.Called(ctx, sql, arguments)
	return args.Get(0).(pgx.Row)
}

type mockRow struct {
	scanErr error
	scanFn  func(dest ...any) error
}

func (r *mockRow) Scan(dest ...any) error {
	if r.scanFn != nil {
		return r.scanFn(dest...)
	}
	return r.scanErr
}

func statusRow(status string) *mockRow {
	return &mockRow{scanFn: func(dest ...any) error {
		*dest[0].(*string) = status
		return nil
	}}
}

func TestDeliveryRepository_InsertCreatesRow(t *testing.T) {
	db := new(mockDBTX)
	repo := NewDeliveryRepository(db)

	db.On("QueryRow", mock.Anything, mock.MatchedBy(func(sql string) bool {
		return strings.Contains(sql, "ON CONFLICT (message_id) DO NOTHING")
	}), []any{"msg-1", int64(42), "hearingBooked", "pending"}).Return(statusRow("pending")).Once()

	status, created, err := repo.InsertDeliveryIfNotExists(context.Background(), &types.DeliveryRecord{
		MessageID: "msg-1", CaseID: 42, EventType: types.EventHearingBooked,
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, types.DeliveryStatusPending, status)
	db.AssertExpectations(t)
}

func TestDeliveryRepository_InsertConflictReadsExisting(t *testing.T) {
	db := new(mockDBTX)
	repo := NewDeliveryRepository(db)

	db.On("QueryRow", mock.Anything, mock.MatchedBy(func(sql string) bool {
		return strings.HasPrefix(sql, "INSERT")
	}), mock.Anything).Return(&mockRow{scanErr: pgx.ErrNoRows}).Once()
	db.On("QueryRow", mock.Anything, mock.MatchedBy(func(sql string) bool {
		return strings.HasPrefix(sql, "SELECT")
	}), []any{"msg-1"}).Return(statusRow("delivered")).Once()

	status, created, err := repo.InsertDeliveryIfNotExists(context.Background(), &types.DeliveryRecord{MessageID: "msg-1"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, types.DeliveryStatusDelivered, status)
	db.AssertExpectations(t)
}

func TestDeliveryRepository_InsertError(t *testing.T) {
	db := new(mockDBTX)
	repo := NewDeliveryRepository(db)
	db.On("QueryRow", mock.Anything, mock.Anything, mock.Anything).
		Return(&mockRow{scanErr: errors.New("connection reset")})

	_, _, err := repo.InsertDeliveryIfNotExists(context.Background(), &types.DeliveryRecord{MessageID: "m"})
	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeInternalDB, appErr.Code)
}

func TestDeliveryRepository_Updates(t *testing.T) {
	tests := []struct {
		name     string
		call     func(*DeliveryRepository) error
		wantArgs []any
	}{
		{
			name:     "increment attempt",
			call:     func(r *DeliveryRepository) error { return r.IncrementAttempt(context.Background(), "m1") },
			wantArgs: []any{"m1"},
		},
		{
			name:     "set delivered",
			call:     func(r *DeliveryRepository) error { return r.SetDelivered(context.Background(), "m1", "ref-9") },
			wantArgs: []any{"m1", nilIfEmpty("ref-9")},
		},
		{
			name: "mark failed",
			call: func(r *DeliveryRepository) error {
				return r.UpdateDeliveryStatus(context.Background(), "m1", types.DeliveryStatusFailed, "status_400")
			},
			wantArgs: []any{"m1", "failed", nilIfEmpty("status_400")},
		},
		{
			name: "mark skipped without reason",
			call: func(r *DeliveryRepository) error {
				return r.UpdateDeliveryStatus(context.Background(), "m1", types.DeliveryStatusSkipped, "")
			},
			wantArgs: []any{"m1", "skipped", (*string)(nil)},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := new(mockDBTX)
			db.On("Exec", mock.Anything, mock.AnythingOfType("string"), tt.wantArgs).
				Return(pgconn.NewCommandTag("UPDATE 1"), nil)

			require.NoError(t, tt.call(NewDeliveryRepository(db)))
			db.AssertExpectations(t)
		})
	}
}

func TestDeliveryRepository_UpdateMissingRow(t *testing.T) {
	db := new(mockDBTX)
	db.On("Exec", mock.Anything, mock.Anything, mock.Anything).Return(pgconn.NewCommandTag("UPDATE 0"), nil)

	err := NewDeliveryRepository(db).IncrementAttempt(context.Background(), "ghost")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no delivery for message")
}

func TestApplySchema(t *testing.T) {
	db := new(mockDBTX)
	db.On("Exec", mock.Anything, mock.MatchedBy(func(sql string) bool {
		return strings.Contains(sql, "CREATE TABLE IF NOT EXISTS notification_deliveries")
	}), mock.Anything).Return(pgconn.NewCommandTag("CREATE TABLE"), nil)

	require.NoError(t, ApplySchema(context.Background(), db))
}
