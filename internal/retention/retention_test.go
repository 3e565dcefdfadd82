package retention

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestPruner(t *testing.T) (*Pruner, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })
	db := sqlx.NewDb(mockDB, "sqlmock")
	return NewPruner(db, zap.NewNop(), time.Hour, 30*24*time.Hour), mock
}

func TestPruneOnceDeletesOldRows(t *testing.T) {
	p, mock := newTestPruner(t)
	mock.ExpectExec("DELETE FROM accelerometer_data WHERE ts <").
		WillReturnResult(sqlmock.NewResult(0, 42))

	require.NoError(t, p.PruneOnce(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPruneOnceSurfacesDBErrors(t *testing.T) {
	p, mock := newTestPruner(t)
	mock.ExpectExec("DELETE FROM accelerometer_data WHERE ts <").
		WillReturnError(errors.New("db down"))

	assert.Error(t, p.PruneOnce(context.Background()))
}

func TestRunStopsOnCancel(t *testing.T) {
	p, _ := newTestPruner(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("pruner did not stop on context cancellation")
	}
}
