package sql

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/grimoire/dialect"
)

func TestStatsDriver(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	var slow []string
	drv := NewStatsDriver(OpenDB(dialect.SQLite, db),
		WithSlowThreshold(time.Hour),
		WithSlowQueryHook(func(_ context.Context, query string, _ []any, _ time.Duration) {
			slow = append(slow, query)
		}),
	)
	assert.Equal(t, time.Hour, drv.SlowThreshold())

	mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	mock.ExpectExec("DELETE").WillReturnError(errors.New("locked"))
	mock.ExpectExec("INSERT").WillReturnError(errors.New("UNIQUE constraint failed: users.email"))
	var rows Rows
	require.NoError(t, drv.Query(context.Background(), "SELECT 1", []any{}, &rows))
	require.NoError(t, rows.Close())
	require.Error(t, drv.Exec(context.Background(), "DELETE FROM t", []any{}, nil))
	require.Error(t, drv.Exec(context.Background(), "INSERT INTO users (email) VALUES (?)", []any{"a"}, nil))

	s := drv.Snapshot()
	assert.Equal(t, int64(1), s.TotalQueries)
	assert.Equal(t, int64(2), s.TotalExecs)
	assert.Equal(t, int64(2), s.Errors)
	assert.Equal(t, int64(1), s.ConstraintErrors)
	assert.Equal(t, int64(1), s.Statements[KindSelect])
	assert.Equal(t, int64(1), s.Statements[KindDelete])
	assert.Equal(t, int64(1), s.Statements[KindInsert])
	assert.Zero(t, s.SlowQueries)
	assert.Empty(t, slow)

	drv.SetSlowThreshold(-1)
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectRollback()
	tx, err := drv.Tx(context.Background())
	require.NoError(t, err)
	require.NoError(t, tx.Exec(context.Background(), "UPDATE t SET a = 1", []any{}, nil))
	require.NoError(t, tx.Commit())
	tx, err = drv.Tx(context.Background())
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())
	require.NoError(t, mock.ExpectationsWereMet())

	s = drv.Snapshot()
	assert.Equal(t, int64(3), s.TotalExecs)
	assert.Equal(t, int64(1), s.SlowQueries)
	assert.Equal(t, int64(1), s.Commits)
	assert.Equal(t, int64(1), s.Rollbacks)
	assert.Equal(t, []string{"UPDATE t SET a = 1"}, slow)
	assert.Contains(t, s.String(), "queries=1 execs=3")
	assert.Contains(t, s.String(), "update=1")

	drv.Reset()
	s = drv.Snapshot()
	assert.Zero(t, s.TotalExecs)
	assert.Zero(t, s.Statements[KindUpdate])
	assert.Zero(t, StatsSnapshot{}.AvgQueryDuration())
}

func TestStatementKind(t *testing.T) {
	tests := map[string]string{
		"SELECT * FROM `users`":                KindSelect,
		"  select 1":                           KindSelect,
		"INSERT INTO users (a) VALUES (?)":     KindInsert,
		"UPDATE /*+ SET_VAR(x=1) */ users SET": KindUpdate,
		"DELETE FROM users":                    KindDelete,
		"WITH t AS (SELECT 1) SELECT * FROM t": KindOther,
		"":                                     KindOther,
	}
	for query, want := range tests {
		assert.Equal(t, want, kinds[statementKind(query)], query)
	}
}

func TestSlowQueryLog(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	drv := NewStatsDriver(OpenDB(dialect.MySQL, db), WithSlowThreshold(-1), WithSlowQueryLog(logger))
	mock.ExpectExec("DELETE").WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, drv.Exec(context.Background(), "DELETE FROM t", []any{}, nil))
	assert.Contains(t, buf.String(), "slow query detected")
	assert.Contains(t, buf.String(), "DELETE FROM t")
}

func TestDebugDriver(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	drv := NewDebugDriver(OpenDB(dialect.Postgres, db), logger)

	mock.ExpectExec("INSERT").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT").WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	require.NoError(t, drv.Exec(context.Background(), "INSERT INTO t (a) VALUES ($1)", []any{1}, nil))
	tx, err := drv.Tx(context.Background())
	require.NoError(t, err)
	var rows Rows
	require.NoError(t, tx.Query(context.Background(), "SELECT id FROM t", []any{}, &rows))
	require.NoError(t, rows.Close())
	require.NoError(t, tx.Rollback())
	require.NoError(t, mock.ExpectationsWereMet())

	out := buf.String()
	assert.Contains(t, out, "INSERT INTO t (a) VALUES ($1)")
	assert.Contains(t, out, "dialect=postgres")
	assert.Contains(t, out, "begin transaction")
	assert.Contains(t, out, "tx=true")
	assert.Contains(t, out, "rollback transaction")
}
