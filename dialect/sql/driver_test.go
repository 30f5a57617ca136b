package sql

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/quarry/dialect"
)

// TestOpenDB tests the OpenDB function with different dialects.
func TestOpenDB(t *testing.T) {
	tests := []struct {
		name    string
		dialect string
	}{
		{"MySQL", dialect.MySQL},
		{"SQLite", dialect.SQLite},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, _, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()

			drv := OpenDB(tt.dialect, db)
			assert.NotNil(t, drv)
			assert.Equal(t, tt.dialect, drv.Dialect())
			assert.Same(t, db, drv.DB())
		})
	}
}

// TestDriverQuery tests query operations.
func TestDriverQuery(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	drv := OpenDB(dialect.MySQL, db)

	t.Run("simple_query", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, name FROM users").
			WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).
				AddRow(1, "Alice").
				AddRow(2, "Bob"))

		rows := &Rows{}
		err := drv.Query(context.Background(), "SELECT id, name FROM users", []any{}, rows)
		require.NoError(t, err)
		require.NoError(t, rows.Close())
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("query_with_args", func(t *testing.T) {
		mock.ExpectQuery("SELECT name FROM users WHERE id = \\?").
			WithArgs(1).
			WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("Alice"))

		rows := &Rows{}
		err := drv.Query(context.Background(), "SELECT name FROM users WHERE id = ?", []any{1}, rows)
		require.NoError(t, err)
		require.NoError(t, rows.Close())
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("query_error", func(t *testing.T) {
		expectedErr := errors.New("database error")
		mock.ExpectQuery("SELECT").WillReturnError(expectedErr)

		rows := &Rows{}
		err := drv.Query(context.Background(), "SELECT", []any{}, rows)
		require.Error(t, err)
		assert.ErrorIs(t, err, expectedErr)
		assert.Contains(t, err.Error(), "dialect/sql: query:")
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("invalid_destination", func(t *testing.T) {
		var rows []Record
		err := drv.Query(context.Background(), "SELECT 1", []any{}, &rows)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "expect *sql.Rows")
	})

	t.Run("invalid_args", func(t *testing.T) {
		err := drv.Query(context.Background(), "SELECT 1", "not a slice", &Rows{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "expect []any for args")
	})
}

// TestDriverExec tests execute operations.
func TestDriverExec(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	drv := OpenDB(dialect.MySQL, db)

	t.Run("simple_exec", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO users").
			WillReturnResult(sqlmock.NewResult(1, 1))

		err := drv.Exec(context.Background(), "INSERT INTO users (name) VALUES ('test')", []any{}, nil)
		require.NoError(t, err)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("exec_with_result", func(t *testing.T) {
		mock.ExpectExec("UPDATE users SET name = \\? WHERE id = \\?").
			WithArgs("Alice", 1).
			WillReturnResult(sqlmock.NewResult(0, 1))

		var res Result
		err := drv.Exec(context.Background(), "UPDATE users SET name = ? WHERE id = ?", []any{"Alice", 1}, &res)
		require.NoError(t, err)
		n, err := res.RowsAffected()
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("exec_error", func(t *testing.T) {
		expectedErr := errors.New("constraint violation")
		mock.ExpectExec("DELETE").WillReturnError(expectedErr)

		err := drv.Exec(context.Background(), "DELETE FROM users", []any{}, nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, expectedErr)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

// TestDriverTransaction tests transaction operations.
func TestDriverTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	drv := OpenDB(dialect.MySQL, db)

	t.Run("successful_commit", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO users").WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		tx, err := drv.Tx(context.Background())
		require.NoError(t, err)
		require.NoError(t, tx.Exec(context.Background(), "INSERT INTO users (name) VALUES ('test')", []any{}, nil))
		require.NoError(t, tx.Commit())
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rollback", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO users").WillReturnError(errors.New("error"))
		mock.ExpectRollback()

		tx, err := drv.Tx(context.Background())
		require.NoError(t, err)
		require.Error(t, tx.Exec(context.Background(), "INSERT INTO users (name) VALUES ('test')", []any{}, nil))
		require.NoError(t, tx.Rollback())
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("begin_error", func(t *testing.T) {
		mock.ExpectBegin().WillReturnError(errors.New("too many connections"))

		_, err := drv.Tx(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "dialect/sql: begin:")
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestDriverSession(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	drv := OpenDB(dialect.MySQL, db)
	ctx := context.Background()

	t.Run("tx_on_session", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec("CREATE TABLE t").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectCommit()

		sess, err := drv.Acquire(ctx)
		require.NoError(t, err)
		tx, err := sess.Tx(ctx)
		require.NoError(t, err)
		require.NoError(t, tx.Exec(ctx, "CREATE TABLE t (id INT)", []any{}, nil))
		require.NoError(t, tx.Commit())
		require.NoError(t, sess.Release())
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("release_is_idempotent", func(t *testing.T) {
		sess, err := drv.Acquire(ctx)
		require.NoError(t, err)
		require.NoError(t, sess.Release())
		require.NoError(t, sess.Release())
	})

	t.Run("query_on_session", func(t *testing.T) {
		mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))

		sess, err := drv.Acquire(ctx)
		require.NoError(t, err)
		defer sess.Release()

		rows := &Rows{}
		require.NoError(t, sess.Query(ctx, "SELECT 1", []any{}, rows))
		records, err := ScanRecords(rows)
		require.NoError(t, err)
		require.Len(t, records, 1)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

// TestContextCancellation tests that context cancellation is respected.
func TestContextCancellation(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	drv := OpenDB(dialect.MySQL, db)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	mock.ExpectQuery("SELECT").WillReturnError(context.Canceled)
	rows := &Rows{}
	err = drv.Query(ctx, "SELECT 1", []any{}, rows)
	assert.Error(t, err)
}

func TestScanRecords(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	drv := OpenDB(dialect.MySQL, db)

	mock.ExpectQuery("SELECT").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email"}).
			AddRow(int64(1), []byte("Alice"), nil).
			AddRow(int64(2), "Bob", "bob@example.com"))

	rows := &Rows{}
	require.NoError(t, drv.Query(context.Background(), "SELECT id, name, email FROM users", []any{}, rows))
	records, err := ScanRecords(rows)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, Record{"id": int64(1), "name": "Alice", "email": nil}, records[0])
	assert.Equal(t, "bob@example.com", records[1]["email"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDecode(t *testing.T) {
	type user struct {
		ID        int64     `db:"id"`
		Name      string    `db:"name"`
		Age       int       `db:"age"`
		Active    bool      `db:"active"`
		CreatedAt time.Time `db:"created_at"`
	}

	records := []Record{
		{"id": int64(1), "name": "Alice", "age": "30", "active": int64(1), "created_at": "2024-03-01 10:00:00"},
		{"id": int64(2), "name": "Bob", "age": int64(25), "active": int64(0), "created_at": time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)},
	}
	users, err := Decode[user](records)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, user{ID: 1, Name: "Alice", Age: 30, Active: true, CreatedAt: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)}, users[0])
	assert.Equal(t, 25, users[1].Age)
	assert.False(t, users[1].Active)
	assert.Equal(t, 2, users[1].CreatedAt.Day())

	empty, err := Decode[user](nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestParseTime(t *testing.T) {
	for _, s := range []string{"2024-03-01 10:00:00", "2024-03-01T10:00:00Z", "2024-03-01", "2024-03-01 10:00:00.5+00:00"} {
		tm, ok := ParseTime(s)
		assert.True(t, ok, s)
		assert.Equal(t, 2024, tm.Year())
	}
	_, ok := ParseTime("yesterday")
	assert.False(t, ok)
}
