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

	"climarisk/internal/cache"
	"climarisk/internal/types"
)

func TestPredictionCacheRepository_Get_Hit(t *testing.T) {
	tx := new(mockDBTX)
	repo := NewPredictionCacheRepository(tx)

	created := time.Now().UTC().Add(-time.Minute)

	tx.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), []any{"fp-1"}).
		Return(&mockRow{
			scanFn: func(dest ...any) error {
				*dest[0].(*string) = "fp-1"
				*dest[1].(*[]byte) = []byte(`{"risk_level":"low"}`)
				*dest[2].(*time.Time) = created
				*dest[3].(*int64) = 3600
				return nil
			},
		})

	entry, err := repo.Get(context.Background(), "fp-1")
	require.NoError(t, err)
	require.NotNil(t, entry)

	assert.Equal(t, "fp-1", entry.Fingerprint)
	assert.Equal(t, time.Hour, entry.TTL)
	assert.JSONEq(t, `{"risk_level":"low"}`, string(entry.Result))
	tx.AssertExpectations(t)
}

func TestPredictionCacheRepository_Get_AbsentIsNilNil(t *testing.T) {
	tx := new(mockDBTX)
	repo := NewPredictionCacheRepository(tx)

	tx.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanErr: pgx.ErrNoRows})

	entry, err := repo.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestPredictionCacheRepository_Get_ExpiredIsNilNil(t *testing.T) {
	tx := new(mockDBTX)
	repo := NewPredictionCacheRepository(tx)

	tx.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{
			scanFn: func(dest ...any) error {
				*dest[0].(*string) = "fp-old"
				*dest[1].(*[]byte) = []byte(`{}`)
				*dest[2].(*time.Time) = time.Now().UTC().Add(-2 * time.Hour)
				*dest[3].(*int64) = 3600
				return nil
			},
		})

	entry, err := repo.Get(context.Background(), "fp-old")
	require.NoError(t, err)
	assert.Nil(t, entry, "a row past its TTL reads as absent")
}

func TestPredictionCacheRepository_Get_DBError(t *testing.T) {
	tx := new(mockDBTX)
	repo := NewPredictionCacheRepository(tx)

	tx.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanErr: errors.New("connection refused")})

	_, err := repo.Get(context.Background(), "fp-1")
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeInternalDB, appErr.Code)
}

func TestPredictionCacheRepository_Put(t *testing.T) {
	tx := new(mockDBTX)
	repo := NewPredictionCacheRepository(tx)

	var gotArgs []any
	tx.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Run(func(args mock.Arguments) {
			gotArgs = args.Get(2).([]any)
		}).
		Return(pgconn.NewCommandTag("INSERT 0 1"), nil)

	entry := cache.Entry{
		Fingerprint: "fp-2",
		Result:      []byte(`{"risk_level":"high"}`),
		CreatedAt:   time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
		TTL:         6 * time.Hour,
	}
	require.NoError(t, repo.Put(context.Background(), entry))

	assert.Equal(t, "fp-2", gotArgs[0])
	assert.Equal(t, int64(6*3600), gotArgs[3])
	tx.AssertExpectations(t)
}

func TestPredictionCacheRepository_InvalidateAll(t *testing.T) {
	tx := new(mockDBTX)
	repo := NewPredictionCacheRepository(tx)

	tx.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("DELETE 7"), nil)

	require.NoError(t, repo.InvalidateAll(context.Background()))
	tx.AssertExpectations(t)
}
