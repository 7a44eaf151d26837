package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"climarisk/internal/types"
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

// --- Mock Row ---

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

// --- Mock Rows for Query ---

type mockRows struct {
	data    [][]any
	idx     int
	closed  bool
	scanErr error
	errVal  error
}

func newMockRows(data [][]any) *mockRows {
	return &mockRows{data: data, idx: -1}
}

func (r *mockRows) Next() bool {
	if r.closed {
		return false
	}
	r.idx++
	return r.idx < len(r.data)
}

func (r *mockRows) Scan(dest ...any) error {
	if r.scanErr != nil {
		return r.scanErr
	}
	row := r.data[r.idx]
	for i, d := range dest {
		switch v := d.(type) {
		case *time.Time:
			*v = row[i].(time.Time)
		case *float64:
			*v = row[i].(float64)
		case *int:
			*v = row[i].(int)
		case *int64:
			*v = row[i].(int64)
		case *string:
			*v = row[i].(string)
		case *[]byte:
			*v = row[i].([]byte)
		case *types.ConditionCategory:
			*v = row[i].(types.ConditionCategory)
		}
	}
	return nil
}

func (r *mockRows) Close()                                       { r.closed = true }
func (r *mockRows) Err() error                                   { return r.errVal }
func (r *mockRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *mockRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *mockRows) RawValues() [][]byte                          { return nil }
func (r *mockRows) Values() ([]any, error)                       { return nil, nil }
func (r *mockRows) Conn() *pgx.Conn                              { return nil }

// --- ObservationRepository Tests ---

func obsRow(date time.Time, lat, lon, tmax float64) []any {
	return []any{date, lat, lon, tmax, 20.0, 25.0, 60.0, 5.0, 0.0, 101.0}
}

func TestObservationRepository_AnalogWindow(t *testing.T) {
	tx := new(mockDBTX)
	repo := NewObservationRepository(tx)

	loc := types.Location{Lat: 40.7128, Lon: -74.006}
	d1 := time.Date(2022, 7, 15, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2023, 7, 15, 0, 0, 0, 0, time.UTC)

	rows := newMockRows([][]any{
		obsRow(d1, 40.71, -74.01, 33.0),
		obsRow(d2, 40.71, -74.01, 36.5),
	})

	tx.On("Query", mock.Anything, mock.AnythingOfType("string"),
		[]any{40.71, -74.01, []string{"0714", "0715", "0716"}, 2010, 2025}).
		Return(rows, nil)

	got, err := repo.AnalogWindow(context.Background(), loc, []string{"0714", "0715", "0716"}, 2010, 2025)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, d1, got[0].Date)
	assert.Equal(t, 33.0, got[0].TempMaxC)
	assert.Equal(t, 36.5, got[1].TempMaxC)
	tx.AssertExpectations(t)
}

func TestObservationRepository_AnalogWindow_QueryError(t *testing.T) {
	tx := new(mockDBTX)
	repo := NewObservationRepository(tx)

	tx.On("Query", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(nil, errors.New("connection refused"))

	_, err := repo.AnalogWindow(context.Background(), types.Location{}, []string{"0101"}, 2010, 2025)
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeInternalDB, appErr.Code)
}

func TestObservationRepository_Upsert_RoundsToGridCell(t *testing.T) {
	tx := new(mockDBTX)
	repo := NewObservationRepository(tx)

	var gotArgs []any
	tx.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Run(func(args mock.Arguments) {
			gotArgs = args.Get(2).([]any)
		}).
		Return(pgconn.NewCommandTag("INSERT 0 1"), nil)

	o := types.WeatherObservation{
		Date:     time.Date(2024, 7, 15, 13, 30, 0, 0, time.UTC),
		Location: types.Location{Lat: 40.71284, Lon: -74.00597},
		TempMaxC: 33.0,
	}
	require.NoError(t, repo.Upsert(context.Background(), o))

	assert.Equal(t, time.Date(2024, 7, 15, 0, 0, 0, 0, time.UTC), gotArgs[0])
	assert.Equal(t, 40.71, gotArgs[1])
	assert.Equal(t, -74.01, gotArgs[2])
	tx.AssertExpectations(t)
}
