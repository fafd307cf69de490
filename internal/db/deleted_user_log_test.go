package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"meterboard/internal/types"
)

// mockDBTX implements DBTX via testify mocks.
type mockDBTX struct {
	mock.Mock
}

func (m *mockDBTX) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	args := m.Called(ctx, sql, arguments)
	return args.Get(0).(pgconn.CommandTag), args.Error(1)
}

func (m *mockDBTX) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	called := m.Called(ctx, sql, args)
	if called.Get(0) == nil {
		return nil, called.Error(1)
	}
	return called.Get(0).(pgx.Rows), called.Error(1)
}

func (m *mockDBTX) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	called := m.Called(ctx, sql, args)
	return called.Get(0).(pgx.Row)
}

// mockRow implements pgx.Row, returning a fixed (id, deleted_at) pair or an
// error on Scan.
type mockRow struct {
	id        int64
	deletedAt int64
	err       error
}

func (r *mockRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*dest[0].(*int64) = r.id
	*dest[1].(*int64) = r.deletedAt
	return nil
}

// logMockRows implements pgx.Rows over a fixed set of deletion records.
type logMockRows struct {
	data   []types.DeletedUserLog
	idx    int
	errVal error
}

func (r *logMockRows) Next() bool {
	r.idx++
	return r.idx <= len(r.data)
}

func (r *logMockRows) Scan(dest ...any) error {
	row := r.data[r.idx-1]
	*dest[0].(*int64) = row.ID
	*dest[1].(*string) = row.TenantID
	*dest[2].(*string) = row.UserID
	*dest[3].(*string) = row.Email
	*dest[4].(*int64) = row.DeletedAt
	return nil
}

func (r *logMockRows) Close()                                       {}
func (r *logMockRows) Err() error                                   { return r.errVal }
func (r *logMockRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *logMockRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *logMockRows) RawValues() [][]byte                          { return nil }
func (r *logMockRows) Values() ([]any, error)                       { return nil, nil }
func (r *logMockRows) Conn() *pgx.Conn                              { return nil }

func TestAppend_ScansGeneratedFields(t *testing.T) {
	db := &mockDBTX{}
	repo := NewDeletedUserLogRepository(db)

	db.On("QueryRow", mock.Anything, mock.Anything, mock.MatchedBy(func(args []any) bool {
		return len(args) == 4 && args[0] == "tenant-1" && args[1] == "user-9"
	})).Return(&mockRow{id: 42, deletedAt: 1735689600})

	entry := &types.DeletedUserLog{
		TenantID: "tenant-1",
		UserID:   "user-9",
		Email:    "gone@example.com",
	}
	err := repo.Append(context.Background(), entry)
	require.NoError(t, err)

	assert.EqualValues(t, 42, entry.ID)
	assert.EqualValues(t, 1735689600, entry.DeletedAt)
	db.AssertExpectations(t)
}

func TestAppend_DBErrorWrapped(t *testing.T) {
	db := &mockDBTX{}
	repo := NewDeletedUserLogRepository(db)

	db.On("QueryRow", mock.Anything, mock.Anything, mock.Anything).
		Return(&mockRow{err: errors.New("constraint violation")})

	err := repo.Append(context.Background(), &types.DeletedUserLog{TenantID: "t", UserID: "u", Email: "e"})
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeInternalDB, appErr.Code)
}

func TestListByTenant(t *testing.T) {
	db := &mockDBTX{}
	repo := NewDeletedUserLogRepository(db)

	rows := &logMockRows{data: []types.DeletedUserLog{
		{ID: 2, TenantID: "tenant-1", UserID: "u2", Email: "u2@x.com", DeletedAt: 200},
		{ID: 1, TenantID: "tenant-1", UserID: "u1", Email: "u1@x.com", DeletedAt: 100},
	}}
	db.On("Query", mock.Anything, mock.Anything, mock.MatchedBy(func(args []any) bool {
		return len(args) == 1 && args[0] == "tenant-1"
	})).Return(rows, nil)

	logs, err := repo.ListByTenant(context.Background(), "tenant-1")
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "u2", logs[0].UserID)
	assert.EqualValues(t, 100, logs[1].DeletedAt)
}

func TestListByTenant_Empty(t *testing.T) {
	db := &mockDBTX{}
	repo := NewDeletedUserLogRepository(db)

	db.On("Query", mock.Anything, mock.Anything, mock.Anything).
		Return(&logMockRows{}, nil)

	logs, err := repo.ListByTenant(context.Background(), "tenant-empty")
	require.NoError(t, err)
	assert.Empty(t, logs)
	assert.NotNil(t, logs, "empty result should be a non-nil slice for JSON encoding")
}

func TestListByTenant_QueryError(t *testing.T) {
	db := &mockDBTX{}
	repo := NewDeletedUserLogRepository(db)

	db.On("Query", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("connection reset"))

	_, err := repo.ListByTenant(context.Background(), "tenant-1")
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeInternalDB, appErr.Code)
}

func TestListByTenant_RowsError(t *testing.T) {
	db := &mockDBTX{}
	repo := NewDeletedUserLogRepository(db)

	db.On("Query", mock.Anything, mock.Anything, mock.Anything).
		Return(&logMockRows{errVal: errors.New("stream interrupted")}, nil)

	_, err := repo.ListByTenant(context.Background(), "tenant-1")
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeInternalDB, appErr.Code)
}
